// Package cmd implements the command-line interface for dealscout.
//
// This package provides the following commands:
//   - run: Process new wholesaler emails once (default)
//   - auth url / auth exchange: Create the Google OAuth token for an account
//   - sheet check: Create the destination sheet and report header drift
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
