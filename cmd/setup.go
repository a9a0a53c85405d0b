package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"

	"github.com/teemow/dealscout/internal/config"
	"github.com/teemow/dealscout/internal/google"
	"github.com/teemow/dealscout/internal/logging"
)

// loadConfig loads the configuration and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, err
	}
	if account != "" {
		cfg.Account = account
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// setupLogger builds the logger from cfg and installs it as the default.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// oauthConfig returns the OAuth client configuration, which needs a client id and secret.
func oauthConfig(cfg *config.Config) (*oauth2.Config, error) {
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		return nil, fmt.Errorf("google client id and secret are required, set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	return google.GetOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret), nil
}

// googleHTTPClient returns an authenticated client for cfg.Account.
func googleHTTPClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	conf, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !google.HasTokenForAccount(cfg.Account) {
		return nil, errors.New(google.GetAuthenticationErrorMessage(cfg.Account))
	}

	client, err := google.GetHTTPClientForAccount(ctx, conf, cfg.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client for account %s: %w", cfg.Account, err)
	}
	return client, nil
}
