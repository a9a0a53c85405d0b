// Package claim keeps overlapping runs from processing the same message.
//
// A run claims a message before calling the extraction endpoint and releases
// the claim when the message is left for a later run. Claims on processed
// messages are kept until they expire, which covers runs that fetched the
// thread before it was labelled.
package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/teemow/dealscout/internal/config"
)

// Claimer claims messages for one owner, normally a run id.
type Claimer interface {
	// Claim reports whether the message is now held by this owner. A claim
	// already held by the same owner is reported as held.
	Claim(ctx context.Context, messageID string) (bool, error)
	// Release drops the claim if this owner holds it.
	Release(ctx context.Context, messageID string) error
	Close() error
}

// New returns the Claimer configured by cfg. Claims are held by owner.
func New(ctx context.Context, cfg config.ClaimsConfig, owner string) (Claimer, error) {
	switch cfg.Backend {
	case config.ClaimsNone, "":
		return Nop{}, nil
	case config.ClaimsSQLite:
		return NewSQLite(ctx, cfg.SQLitePath, owner, cfg.TTL)
	case config.ClaimsRedis:
		return NewRedis(ctx, cfg.RedisURL, cfg.RedisPrefix, owner, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown claims backend %q", cfg.Backend)
	}
}

// Nop grants every claim.
type Nop struct{}

func (Nop) Claim(context.Context, string) (bool, error) { return true, nil }
func (Nop) Release(context.Context, string) error       { return nil }
func (Nop) Close() error                                { return nil }

// clock is replaced in tests.
type clock func() time.Time
