package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/dealscout/internal/sheets"
)

func newSheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Manage the destination Google Sheet",
	}
	cmd.AddCommand(newSheetCheckCmd())
	return cmd
}

func newSheetCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Create the sheet if needed and report header drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			if cfg.Sheet.SpreadsheetID == "" {
				return fmt.Errorf("sheet.spreadsheet_id is not set")
			}

			ctx := context.Background()
			httpClient, err := googleHTTPClient(ctx, cfg)
			if err != nil {
				return err
			}

			sink, err := sheets.NewSink(ctx, sheets.Options{
				SpreadsheetID: cfg.Sheet.SpreadsheetID,
				SheetName:     cfg.Sheet.Name,
				Account:       cfg.Account,
				HTTPClient:    httpClient,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			status, err := sink.EnsureSheet(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case status.Created:
				fmt.Fprintf(out, "Created sheet %q with %d header columns\n", cfg.Sheet.Name, len(sheets.Headers))
			case status.HeadersMatch:
				fmt.Fprintf(out, "Sheet %q headers are up to date\n", cfg.Sheet.Name)
			default:
				fmt.Fprintf(out, "Sheet %q headers don't match.\n  expected: %s\n  found:    %s\n",
					cfg.Sheet.Name, strings.Join(sheets.Headers, " | "), strings.Join(status.Headers, " | "))
				return fmt.Errorf("sheet headers don't match")
			}
			return nil
		},
	}
}
