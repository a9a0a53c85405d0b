// Package config loads the dealscout run configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, a .env file in the working directory, and the process environment.
// The resulting Config is built once at startup and passed to every component.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Enrichment failure policies.
const (
	OnFailureSkip    = "skip"
	OnFailureAbandon = "abandon"
)

// Claim backends.
const (
	ClaimsNone   = "none"
	ClaimsSQLite = "sqlite"
	ClaimsRedis  = "redis"
)

// Defaults mirror the deployment the job was first written for.
const (
	DefaultSearchQuery       = "label:flipping-search -label:flipping-search-ai-processed"
	DefaultProcessedLabel    = "Flipping/Search/AI Processed"
	DefaultSheetName         = "Wholesale Emails"
	DefaultMaxPerRun         = 1
	DefaultExtractionURL     = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-lite:generateContent"
	DefaultAPIKeyEnv         = "GEMINI_API_KEY"
	DefaultMaxPromptChars    = 15000
	DefaultEnrichmentURL     = "https://us-central1-gen-lang-client-0639051470.cloudfunctions.net/beenverified_scraper"
	DefaultHTTPTimeout       = 60 * time.Second
	DefaultClaimTTL          = 30 * time.Minute
	DefaultSQLiteClaimsPath  = "dealscout-claims.db"
	DefaultPushgatewayJob    = "dealscout"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultRedisClaimsPrefix = "dealscout:claim:"
)

// ErrMissingSecret is returned by Validate when the extraction API key is not set.
var ErrMissingSecret = errors.New("extraction API key is not set")

// Config holds all configuration for a run
type Config struct {
	Account    string           `yaml:"account"`
	Google     GoogleConfig     `yaml:"google"`
	Mailbox    MailboxConfig    `yaml:"mailbox"`
	Sheet      SheetConfig      `yaml:"sheet"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Claims     ClaimsConfig     `yaml:"claims"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
	DryRun     bool             `yaml:"dry_run"`
}

// GoogleConfig holds the OAuth client used for Gmail and Sheets.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// MailboxConfig selects which threads a run looks at.
type MailboxConfig struct {
	SearchQuery    string `yaml:"search_query"`
	ProcessedLabel string `yaml:"processed_label"`
	// MaxPerRun caps the number of threads returned by the search.
	MaxPerRun int `yaml:"max_per_run"`
}

// SheetConfig holds the destination spreadsheet.
type SheetConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Name          string `yaml:"name"`
}

// ExtractionConfig holds the generative-language endpoint settings.
type ExtractionConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"`
	// MaxPromptChars bounds the whole prompt, instructions included.
	MaxPromptChars   int           `yaml:"max_prompt_chars"`
	InstructionsFile string        `yaml:"instructions_file"`
	Temperature      *float64      `yaml:"temperature"`
	ResponseMIMEType string        `yaml:"response_mime_type"`
	Timeout          time.Duration `yaml:"timeout"`
}

// EnrichmentConfig holds the owner lookup endpoint settings.
type EnrichmentConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	OnFailure string        `yaml:"on_failure"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ClaimsConfig selects how overlapping runs are kept from processing the same message.
type ClaimsConfig struct {
	Backend     string        `yaml:"backend"`
	SQLitePath  string        `yaml:"sqlite_path"`
	RedisURL    string        `yaml:"redis_url"`
	RedisPrefix string        `yaml:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl"`
}

// MetricsConfig holds the Prometheus Pushgateway target used at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Account: "default",
		Mailbox: MailboxConfig{
			SearchQuery:    DefaultSearchQuery,
			ProcessedLabel: DefaultProcessedLabel,
			MaxPerRun:      DefaultMaxPerRun,
		},
		Sheet: SheetConfig{
			Enabled: true,
			Name:    DefaultSheetName,
		},
		Extraction: ExtractionConfig{
			Endpoint:       DefaultExtractionURL,
			APIKeyEnv:      DefaultAPIKeyEnv,
			MaxPromptChars: DefaultMaxPromptChars,
			Timeout:        DefaultHTTPTimeout,
		},
		Enrichment: EnrichmentConfig{
			Endpoint:  DefaultEnrichmentURL,
			OnFailure: OnFailureSkip,
			Timeout:   DefaultHTTPTimeout,
		},
		Claims: ClaimsConfig{
			Backend:     ClaimsNone,
			SQLitePath:  DefaultSQLiteClaimsPath,
			RedisPrefix: DefaultRedisClaimsPrefix,
			TTL:         DefaultClaimTTL,
		},
		Metrics: MetricsConfig{
			Job: DefaultPushgatewayJob,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads a .env file if present, reads the YAML file at path and
// applies environment overrides. The extraction API key is resolved here from
// the variable named by extraction.api_key_env.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Extraction.APIKey = os.Getenv(cfg.Extraction.APIKeyEnv)

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DEALSCOUT_ACCOUNT"); v != "" {
		c.Account = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("DEALSCOUT_SEARCH_QUERY"); v != "" {
		c.Mailbox.SearchQuery = v
	}
	if v := os.Getenv("DEALSCOUT_PROCESSED_LABEL"); v != "" {
		c.Mailbox.ProcessedLabel = v
	}
	if v := os.Getenv("DEALSCOUT_MAX_PER_RUN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEALSCOUT_MAX_PER_RUN %q: %w", v, err)
		}
		c.Mailbox.MaxPerRun = n
	}
	if v := os.Getenv("DEALSCOUT_LOG_TO_SHEET"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEALSCOUT_LOG_TO_SHEET %q: %w", v, err)
		}
		c.Sheet.Enabled = b
	}
	if v := os.Getenv("DEALSCOUT_SPREADSHEET_ID"); v != "" {
		c.Sheet.SpreadsheetID = v
	}
	if v := os.Getenv("DEALSCOUT_SHEET_NAME"); v != "" {
		c.Sheet.Name = v
	}
	if v := os.Getenv("DEALSCOUT_EXTRACTION_ENDPOINT"); v != "" {
		c.Extraction.Endpoint = v
	}
	if v := os.Getenv("DEALSCOUT_ENRICHMENT_ENDPOINT"); v != "" {
		c.Enrichment.Endpoint = v
	}
	if v := os.Getenv("DEALSCOUT_REDIS_URL"); v != "" {
		c.Claims.RedisURL = v
	}
	if v := os.Getenv("DEALSCOUT_PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("DEALSCOUT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the configuration. A missing API key yields ErrMissingSecret.
func (c *Config) Validate() error {
	if c.Extraction.APIKey == "" {
		return fmt.Errorf("%w: set %s in the environment or a .env file", ErrMissingSecret, c.Extraction.APIKeyEnv)
	}
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	if c.Mailbox.SearchQuery == "" {
		return fmt.Errorf("mailbox.search_query is required")
	}
	if c.Mailbox.ProcessedLabel == "" {
		return fmt.Errorf("mailbox.processed_label is required")
	}
	if c.Mailbox.MaxPerRun <= 0 {
		return fmt.Errorf("mailbox.max_per_run must be positive, got %d", c.Mailbox.MaxPerRun)
	}
	if c.Sheet.Enabled {
		if c.Sheet.SpreadsheetID == "" {
			return fmt.Errorf("sheet.spreadsheet_id is required when sheet logging is enabled")
		}
		if c.Sheet.Name == "" {
			return fmt.Errorf("sheet.name is required when sheet logging is enabled")
		}
	}
	if c.Extraction.Endpoint == "" {
		return fmt.Errorf("extraction.endpoint is required")
	}
	if c.Extraction.MaxPromptChars <= 0 {
		return fmt.Errorf("extraction.max_prompt_chars must be positive, got %d", c.Extraction.MaxPromptChars)
	}
	if t := c.Extraction.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("extraction.temperature must be between 0 and 2, got %f", *t)
	}
	if c.Enrichment.Endpoint == "" {
		return fmt.Errorf("enrichment.endpoint is required")
	}
	switch c.Enrichment.OnFailure {
	case OnFailureSkip, OnFailureAbandon:
	default:
		return fmt.Errorf("invalid enrichment.on_failure %q, must be one of: skip, abandon", c.Enrichment.OnFailure)
	}
	switch c.Claims.Backend {
	case ClaimsNone:
	case ClaimsSQLite:
		if c.Claims.SQLitePath == "" {
			return fmt.Errorf("claims.sqlite_path is required for the sqlite backend")
		}
	case ClaimsRedis:
		if c.Claims.RedisURL == "" {
			return fmt.Errorf("claims.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid claims.backend %q, must be one of: none, sqlite, redis", c.Claims.Backend)
	}
	if c.Claims.Backend != ClaimsNone && c.Claims.TTL <= 0 {
		return fmt.Errorf("claims.ttl must be positive")
	}
	return nil
}
