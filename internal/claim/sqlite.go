package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores claims in a local database file. It guards runs on one host
// or on hosts sharing the file.
type SQLite struct {
	db    *sql.DB
	owner string
	ttl   time.Duration
	now   clock
}

// NewSQLite opens (or creates) the claims database at dbPath.
func NewSQLite(ctx context.Context, dbPath, owner string, ttl time.Duration) (*SQLite, error) {
	if owner == "" {
		return nil, errors.New("claim owner is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("claim ttl must be positive, got %s", ttl)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create claims directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes claims from this process.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, owner: owner, ttl: ttl, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS claims (
	message_id TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Claim takes the message unless another owner holds an unexpired claim.
func (s *SQLite) Claim(ctx context.Context, messageID string) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO claims (message_id, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			owner      = excluded.owner,
			expires_at = excluded.expires_at
		WHERE claims.expires_at <= ? OR claims.owner = excluded.owner
	`, messageID, s.owner, now.Add(s.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claim message %s: %w", messageID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim message %s: %w", messageID, err)
	}
	return n == 1, nil
}

// Release deletes the claim if this owner holds it.
func (s *SQLite) Release(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM claims WHERE message_id = ? AND owner = ?", messageID, s.owner)
	if err != nil {
		return fmt.Errorf("release message %s: %w", messageID, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
