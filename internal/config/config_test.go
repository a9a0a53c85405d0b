package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Account)
	assert.Equal(t, DefaultSearchQuery, cfg.Mailbox.SearchQuery)
	assert.Equal(t, DefaultProcessedLabel, cfg.Mailbox.ProcessedLabel)
	assert.Equal(t, 1, cfg.Mailbox.MaxPerRun)
	assert.True(t, cfg.Sheet.Enabled)
	assert.Equal(t, "Wholesale Emails", cfg.Sheet.Name)
	assert.Equal(t, 15000, cfg.Extraction.MaxPromptChars)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Extraction.APIKeyEnv)
	assert.Equal(t, OnFailureSkip, cfg.Enrichment.OnFailure)
	assert.Equal(t, ClaimsNone, cfg.Claims.Backend)
	assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
account: work
mailbox:
  search_query: "label:deals -label:deals-done"
  processed_label: "Deals/Done"
  max_per_run: 5
sheet:
  spreadsheet_id: "sheet-123"
extraction:
  max_prompt_chars: 8000
  temperature: 0.2
  timeout: 90s
enrichment:
  on_failure: abandon
claims:
  backend: sqlite
  ttl: 10m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "work", cfg.Account)
	assert.Equal(t, "label:deals -label:deals-done", cfg.Mailbox.SearchQuery)
	assert.Equal(t, "Deals/Done", cfg.Mailbox.ProcessedLabel)
	assert.Equal(t, 5, cfg.Mailbox.MaxPerRun)
	assert.Equal(t, "sheet-123", cfg.Sheet.SpreadsheetID)
	// Unset keys keep their defaults
	assert.Equal(t, DefaultSheetName, cfg.Sheet.Name)
	assert.True(t, cfg.Sheet.Enabled)
	assert.Equal(t, 8000, cfg.Extraction.MaxPromptChars)
	require.NotNil(t, cfg.Extraction.Temperature)
	assert.InDelta(t, 0.2, *cfg.Extraction.Temperature, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, OnFailureAbandon, cfg.Enrichment.OnFailure)
	assert.Equal(t, ClaimsSQLite, cfg.Claims.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Claims.TTL)
	assert.Equal(t, DefaultSQLiteClaimsPath, cfg.Claims.SQLitePath)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "mailbox: [not, a, map"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
sheet:
  spreadsheet_id: "from-file"
`)
	t.Setenv("GEMINI_API_KEY", "secret-key")
	t.Setenv("DEALSCOUT_SPREADSHEET_ID", "from-env")
	t.Setenv("DEALSCOUT_MAX_PER_RUN", "3")
	t.Setenv("DEALSCOUT_LOG_TO_SHEET", "false")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.Extraction.APIKey)
	assert.Equal(t, "from-env", cfg.Sheet.SpreadsheetID)
	assert.Equal(t, 3, cfg.Mailbox.MaxPerRun)
	assert.False(t, cfg.Sheet.Enabled)
	assert.Equal(t, "client-id", cfg.Google.ClientID)
}

func TestLoadFromEnv_CustomKeyName(t *testing.T) {
	path := writeConfig(t, `
extraction:
  api_key_env: MY_MODEL_KEY
`)
	t.Setenv("MY_MODEL_KEY", "other-secret")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "other-secret", cfg.Extraction.APIKey)
}

func TestLoadFromEnv_InvalidOverride(t *testing.T) {
	t.Setenv("DEALSCOUT_MAX_PER_RUN", "many")
	_, err := LoadFromEnv("")
	assert.Error(t, err)
}

func validConfig() *Config {
	cfg := Default()
	cfg.Extraction.APIKey = "key"
	cfg.Sheet.SpreadsheetID = "sheet-123"
	return cfg
}

func TestValidate(t *testing.T) {
	temp := 3.0

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"sheet disabled without id", func(c *Config) { c.Sheet.Enabled = false; c.Sheet.SpreadsheetID = "" }, false},
		{"missing spreadsheet id", func(c *Config) { c.Sheet.SpreadsheetID = "" }, true},
		{"zero max per run", func(c *Config) { c.Mailbox.MaxPerRun = 0 }, true},
		{"empty query", func(c *Config) { c.Mailbox.SearchQuery = "" }, true},
		{"empty label", func(c *Config) { c.Mailbox.ProcessedLabel = "" }, true},
		{"bad failure policy", func(c *Config) { c.Enrichment.OnFailure = "retry" }, true},
		{"bad temperature", func(c *Config) { c.Extraction.Temperature = &temp }, true},
		{"bad claims backend", func(c *Config) { c.Claims.Backend = "etcd" }, true},
		{"redis without url", func(c *Config) { c.Claims.Backend = ClaimsRedis }, true},
		{"redis with url", func(c *Config) { c.Claims.Backend = ClaimsRedis; c.Claims.RedisURL = "redis://localhost:6379/0" }, false},
		{"sqlite zero ttl", func(c *Config) { c.Claims.Backend = ClaimsSQLite; c.Claims.TTL = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_MissingSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Extraction.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingSecret))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
