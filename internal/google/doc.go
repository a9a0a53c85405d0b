// Package google provides OAuth2 authentication and token management for Google APIs.
//
// Tokens are stored per account on disk (~/.cache/dealscout/google-<account>.token,
// or under DEALSCOUT_TOKEN_DIR when set) and are refreshed transparently through
// the oauth2 token source. The same HTTP client serves the Gmail and Sheets services.
package google
