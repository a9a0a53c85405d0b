package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the dealscout application
var rootCmd = &cobra.Command{
	Use:   "dealscout",
	Short: "Extracts real-estate deals from wholesaler emails into a Google Sheet",
	Long: `dealscout reads wholesaler deal emails from Gmail, extracts the property
and deal data with a generative-language model, looks up the property owner
and appends one row per deal to a Google Sheet. Processed threads are labelled
so the next run skips them.

It is meant to be run on a schedule (cron, Kubernetes CronJob). Running it
without a subcommand performs one batch run.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// Persistent flags shared by all commands.
var (
	configPath string
	account    string
	logLevel   string
	logFormat  string
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dealscout version %s\n" .Version}}`)

	// If no subcommand is provided, run the batch job by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DEALSCOUT_CONFIG"), "Path to a YAML config file. Can also use DEALSCOUT_CONFIG env var.")
	rootCmd.PersistentFlags().StringVar(&account, "account", "", "Google account name used to select the OAuth token (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default from config)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newSheetCmd())
	rootCmd.AddCommand(newVersionCmd())
}
