package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/dealscout/internal/claim"
	"github.com/teemow/dealscout/internal/config"
	"github.com/teemow/dealscout/internal/enrich"
	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/gmail"
	"github.com/teemow/dealscout/internal/instrumentation"
	"github.com/teemow/dealscout/internal/logging"
	"github.com/teemow/dealscout/internal/pipeline"
	"github.com/teemow/dealscout/internal/sheets"
)

// pushTimeout bounds the final Pushgateway push, which runs after the run context may be cancelled.
const pushTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	var (
		dryRun     bool
		maxThreads int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process new wholesaler emails once",
		Long: `Search Gmail for unprocessed wholesaler threads, extract the deal data of every
message, look up the property owner, append a row to the Google Sheet and label
the thread as processed.

Messages whose extraction fails are left untouched and retried by the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if cmd.Flags().Changed("max-threads") {
				cfg.Mailbox.MaxPerRun = maxThreads
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBatch(cfg)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract and enrich but do not write to the sheet or change the mailbox")
	cmd.Flags().IntVar(&maxThreads, "max-threads", config.DefaultMaxPerRun, "Maximum number of threads to process in this run")

	return cmd
}

func runBatch(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With(logging.RunID(runID))

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.PushgatewayURL = cfg.Metrics.PushgatewayURL
	if cfg.Metrics.Job != "" {
		instrConfig.PushgatewayJob = cfg.Metrics.Job
	}
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := provider.Push(pushCtx); err != nil {
			logger.Warn("failed to push metrics", logging.Err(err))
		}
		if err := provider.Shutdown(pushCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	httpClient, err := googleHTTPClient(ctx, cfg)
	if err != nil {
		return err
	}

	mailbox, err := gmail.NewClient(ctx, gmail.Options{
		Account:    cfg.Account,
		HTTPClient: httpClient,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	sink, err := newSink(ctx, cfg, httpClient, logger, metrics)
	if err != nil {
		return err
	}

	instructions, err := extract.LoadInstructions(cfg.Extraction.InstructionsFile)
	if err != nil {
		return err
	}
	extractor, err := extract.NewClient(extract.Options{
		Endpoint:         cfg.Extraction.Endpoint,
		APIKey:           cfg.Extraction.APIKey,
		Instructions:     instructions,
		MaxPromptChars:   cfg.Extraction.MaxPromptChars,
		Temperature:      cfg.Extraction.Temperature,
		ResponseMIMEType: cfg.Extraction.ResponseMIMEType,
		HTTPClient:       &http.Client{Timeout: cfg.Extraction.Timeout},
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return err
	}

	enricher, err := enrich.NewClient(enrich.Options{
		Endpoint:   cfg.Enrichment.Endpoint,
		HTTPClient: &http.Client{Timeout: cfg.Enrichment.Timeout},
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	claimer, err := claim.New(ctx, cfg.Claims, runID)
	if err != nil {
		return fmt.Errorf("failed to open claims backend: %w", err)
	}
	defer func() {
		if err := claimer.Close(); err != nil {
			logger.Warn("failed to close claims backend", logging.Err(err))
		}
	}()

	runner, err := pipeline.NewRunner(pipeline.Options{
		RunID:          runID,
		Account:        mailbox.Account(),
		Query:          cfg.Mailbox.SearchQuery,
		ProcessedLabel: cfg.Mailbox.ProcessedLabel,
		MaxThreads:     cfg.Mailbox.MaxPerRun,
		OnFailure:      cfg.Enrichment.OnFailure,
		DryRun:         cfg.DryRun,
		Mailbox:        mailbox,
		Extractor:      extractor,
		Enricher:       enricher,
		Sink:           sink,
		Claimer:        claimer,
		Logger:         logger,
		Metrics:        metrics,
		Audit:          instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging),
	})
	if err != nil {
		return err
	}

	if cfg.DryRun {
		logger.Info("dry run, no sheet rows or mailbox changes will be written")
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if n := summary.Failed(); n > 0 {
		logger.Warn("some messages were left for the next run", slog.Int("count", n))
	}
	return nil
}

// newSink returns the Sheets sink, or a NopSink when sheet logging is disabled.
func newSink(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger, metrics *instrumentation.Metrics) (pipeline.Sink, error) {
	if !cfg.Sheet.Enabled {
		logger.Info("sheet logging disabled")
		return sheets.NopSink{Logger: logger}, nil
	}
	return sheets.NewSink(ctx, sheets.Options{
		SpreadsheetID: cfg.Sheet.SpreadsheetID,
		SheetName:     cfg.Sheet.Name,
		Account:       cfg.Account,
		HTTPClient:    httpClient,
		Logger:        logger,
		Metrics:       metrics,
	})
}
