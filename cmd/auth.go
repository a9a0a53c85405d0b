package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/dealscout/internal/google"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Create the Google OAuth token for an account",
		Long: `Bootstrap the OAuth token dealscout uses for Gmail and Google Sheets.

  1. Run 'dealscout auth url' and open the printed URL in a browser.
  2. Grant access and copy the authorization code.
  3. Run 'dealscout auth exchange <code>'.

The token is stored per account in the user cache directory, or in
DEALSCOUT_TOKEN_DIR when set.`,
	}

	cmd.AddCommand(newAuthURLCmd())
	cmd.AddCommand(newAuthExchangeCmd())
	return cmd
}

func newAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the Google authorization URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conf, err := oauthConfig(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL and authorize access for account %q:\n\n%s\n", cfg.Account, google.GetAuthURL(conf))
			return nil
		},
	}
}

func newAuthExchangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for a stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conf, err := oauthConfig(cfg)
			if err != nil {
				return err
			}

			if err := google.SaveToken(context.Background(), conf, cfg.Account, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token saved for account %q\n", cfg.Account)
			return nil
		},
	}
}
