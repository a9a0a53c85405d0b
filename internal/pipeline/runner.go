package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/dealscout/internal/claim"
	"github.com/teemow/dealscout/internal/config"
	"github.com/teemow/dealscout/internal/enrich"
	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/gmail"
	"github.com/teemow/dealscout/internal/instrumentation"
	"github.com/teemow/dealscout/internal/logging"
)

// Mailbox is the part of the Gmail client the runner uses.
type Mailbox interface {
	ListThreads(ctx context.Context, query string, max int) ([]*gmail.Thread, error)
	FindLabel(ctx context.Context, name string) (*gmail.Label, error)
	EnsureLabel(ctx context.Context, name string) (*gmail.Label, error)
	MarkRead(ctx context.Context, messageID string) error
	AddThreadLabel(ctx context.Context, threadID, labelID string) error
}

// Extractor turns an email body into a deal.
type Extractor interface {
	Extract(ctx context.Context, body string) (extract.Result, error)
}

// Enricher looks up the owner of a deal's property.
type Enricher interface {
	Lookup(ctx context.Context, deal *extract.Deal) (enrich.Owner, error)
}

// Sink stores records. Log reports whether the record was stored and never
// fails the caller.
type Sink interface {
	Log(ctx context.Context, rec Record) bool
}

// Options configure a Runner.
type Options struct {
	RunID          string
	Account        string
	Query          string
	ProcessedLabel string
	MaxThreads     int
	// OnFailure is the enrichment failure policy: config.OnFailureSkip or config.OnFailureAbandon.
	OnFailure string
	// DryRun assembles records without writing to the sink or the mailbox.
	DryRun bool

	Mailbox   Mailbox
	Extractor Extractor
	Enricher  Enricher
	Sink      Sink
	// Claimer defaults to claim.Nop.
	Claimer claim.Claimer

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes batch runs. It processes one message at a time.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// NewRunner validates opts and creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Mailbox == nil || opts.Extractor == nil || opts.Enricher == nil || opts.Sink == nil {
		return nil, errors.New("mailbox, extractor, enricher and sink are required")
	}
	if opts.Query == "" {
		return nil, errors.New("search query is required")
	}
	if opts.ProcessedLabel == "" {
		return nil, errors.New("processed label is required")
	}
	if opts.MaxThreads <= 0 {
		return nil, fmt.Errorf("max threads must be positive, got %d", opts.MaxThreads)
	}
	switch opts.OnFailure {
	case "":
		opts.OnFailure = config.OnFailureSkip
	case config.OnFailureSkip, config.OnFailureAbandon:
	default:
		return nil, fmt.Errorf("invalid enrichment failure policy %q", opts.OnFailure)
	}
	if opts.Claimer == nil {
		opts.Claimer = claim.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logging.RunID(opts.RunID))
	if opts.Account != "" {
		logger = logging.WithAccount(logger, opts.Account)
	}

	return &Runner{opts: opts, logger: logger}, nil
}

// Run processes up to MaxThreads matching threads. It fails only when the
// processed label cannot be resolved, the search fails, or ctx is cancelled;
// per-message failures are counted in the Summary.
func (r *Runner) Run(ctx context.Context) (summary *Summary, err error) {
	start := time.Now()
	summary = newSummary(r.opts.RunID)

	ctx, span := instrumentation.StartSpan(ctx, "pipeline.run",
		instrumentation.NewSpanAttributeBuilder().WithRunID(r.opts.RunID).WithAccount(r.opts.Account).Build()...)
	defer func() {
		summary.Duration = time.Since(start)
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		r.opts.Metrics.RecordRun(ctx, status, summary.Duration)
		span.End()
	}()

	labelID, err := r.resolveLabel(ctx)
	if err != nil {
		return summary, err
	}

	threads, err := r.opts.Mailbox.ListThreads(ctx, r.opts.Query, r.opts.MaxThreads)
	if err != nil {
		return summary, fmt.Errorf("failed to search threads: %w", err)
	}
	summary.Threads = len(threads)
	r.logger.Info("found threads",
		slog.Int("count", len(threads)),
		slog.String("query", r.opts.Query))

	for _, thread := range threads {
		if thread.Err != nil {
			summary.Messages++
			summary.Outcomes[r.recordUnfetched(ctx, thread, gmail.FetchError{Err: thread.Err}, labelID)]++
			continue
		}

		r.logger.Info("processing thread",
			logging.ThreadID(thread.ID),
			slog.Int("messages", len(thread.Messages)))

		for _, f := range thread.Unfetched {
			summary.Messages++
			summary.Outcomes[r.recordUnfetched(ctx, thread, f, labelID)]++
		}

		for _, msg := range thread.Messages {
			if ctx.Err() != nil {
				summary.Interrupted = true
				r.logger.Warn("run interrupted", slog.Any("summary", summary))
				return summary, fmt.Errorf("run interrupted: %w", ctx.Err())
			}

			summary.Messages++
			outcome, logged := r.processMessage(ctx, thread, msg, labelID)
			summary.Outcomes[outcome]++
			if !logged {
				summary.SinkFailures++
			}
		}
	}

	r.logger.Info("run complete", slog.Any("summary", summary))
	return summary, nil
}

// resolveLabel returns the processed label id. A dry run never creates the
// label and returns "" when it does not exist.
func (r *Runner) resolveLabel(ctx context.Context) (string, error) {
	if r.opts.DryRun {
		label, err := r.opts.Mailbox.FindLabel(ctx, r.opts.ProcessedLabel)
		if err != nil {
			return "", fmt.Errorf("failed to resolve processed label %q: %w", r.opts.ProcessedLabel, err)
		}
		if label == nil {
			return "", nil
		}
		return label.ID, nil
	}

	label, err := r.opts.Mailbox.EnsureLabel(ctx, r.opts.ProcessedLabel)
	if err != nil {
		return "", fmt.Errorf("failed to resolve processed label %q, create it manually: %w", r.opts.ProcessedLabel, err)
	}
	return label.ID, nil
}

// recordUnfetched accounts for a message, or a whole thread, the mailbox
// could not fetch. Nothing is marked, so the next run tries it again.
func (r *Runner) recordUnfetched(ctx context.Context, thread *gmail.Thread, f gmail.FetchError, labelID string) Outcome {
	if labelID != "" && thread.HasLabel(labelID) {
		return OutcomeAlreadyProcessed
	}

	outcome := OutcomeFetchFailed
	r.logger.Warn("could not fetch message, leaving it for the next run",
		logging.ThreadID(thread.ID),
		logging.MessageID(f.MessageID),
		logging.Err(f.Err))
	r.opts.Metrics.RecordMessageOutcome(ctx, string(outcome), r.opts.Account)
	r.opts.Audit.LogMessage(instrumentation.NewMessageAudit(r.opts.RunID, f.MessageID, thread.ID).
		WithAccount(r.opts.Account).
		Complete(string(outcome), false, f.Err))
	return outcome
}

// processMessage runs one message through the pipeline. The second result is
// false only when the sink failed to store the record.
func (r *Runner) processMessage(ctx context.Context, thread *gmail.Thread, msg *gmail.Message, labelID string) (outcome Outcome, logged bool) {
	logged = true
	logger := r.logger.With(logging.MessageID(msg.ID), logging.ThreadID(thread.ID))

	ctx, span := instrumentation.StartSpan(ctx, "pipeline.message",
		instrumentation.NewSpanAttributeBuilder().WithRunID(r.opts.RunID).WithMessage(msg.ID, thread.ID).Build()...)
	audit := instrumentation.NewMessageAudit(r.opts.RunID, msg.ID, thread.ID).
		WithSender(msg.From, msg.Subject).
		WithAccount(r.opts.Account).
		WithSpanContext(ctx)

	var failure error
	defer func() {
		span.SetAttributes(attribute.String(instrumentation.SpanAttrOutcome, string(outcome)))
		if outcome.Failed() {
			instrumentation.SetSpanError(span, failure)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()

		r.opts.Metrics.RecordMessageOutcome(ctx, string(outcome), r.opts.Account)
		r.opts.Audit.LogMessage(audit.Complete(string(outcome), !outcome.Failed(), failure))
	}()

	if o, ok := Precheck(thread, msg, labelID); !ok {
		logger.Info("skipping message", slog.String("reason", string(o)))
		return o, logged
	}

	logger.Info("processing message",
		logging.Sender(msg.From),
		slog.Time("date", msg.Date))

	held, err := r.opts.Claimer.Claim(ctx, msg.ID)
	if err != nil {
		failure = err
		logger.Error("failed to claim message", logging.Err(err))
		return OutcomeClaimFailed, logged
	}
	if !held {
		logger.Info("skipping message", slog.String("reason", string(OutcomeClaimed)))
		return OutcomeClaimed, logged
	}

	res, err := r.opts.Extractor.Extract(ctx, msg.Body)
	if o, ok := CheckExtraction(res, err); !ok {
		failure = err
		if o == OutcomeNoData {
			failure = fmt.Errorf("no data extracted: %s", res.Reason)
		}
		r.logExtractionStop(logger, o, res, err)
		r.release(ctx, logger, msg.ID)
		return o, logged
	}

	owner, enrichErr := r.opts.Enricher.Lookup(ctx, res.Deal)
	d := Plan(msg, res.Deal, owner, enrichErr, r.opts.OnFailure, r.opts.DryRun, r.opts.Now())
	if d.Outcome == OutcomeEnrichFailed {
		failure = enrichErr
		logger.Error("owner lookup failed, leaving message for the next run", enrichAttrs(enrichErr)...)
		r.release(ctx, logger, msg.ID)
		return d.Outcome, logged
	}
	if d.EnrichmentSkipped {
		logger.Warn("owner lookup failed, continuing without owner", enrichAttrs(enrichErr)...)
	}

	if !d.Write && !d.Mark {
		logger.Info("dry run, record not written", slog.Any("row", d.Record))
		r.release(ctx, logger, msg.ID)
		return d.Outcome, logged
	}

	if d.Write {
		logged = r.opts.Sink.Log(ctx, *d.Record)
	}

	if d.Mark {
		if err := r.mark(ctx, thread, msg, labelID); err != nil {
			failure = err
			logger.Error("failed to mark message processed", logging.Err(err))
			return OutcomeMarkFailed, logged
		}
		logger.Info("marked message read and labelled thread", slog.String("label", r.opts.ProcessedLabel))
	}

	return d.Outcome, logged
}

// mark marks the message read, unless it already is, and labels its thread.
// The label is attempted even when marking read fails since it is the durable
// processed marker.
func (r *Runner) mark(ctx context.Context, thread *gmail.Thread, msg *gmail.Message, labelID string) error {
	var readErr error
	if msg.Unread() {
		readErr = r.opts.Mailbox.MarkRead(ctx, msg.ID)
	}

	labelErr := r.opts.Mailbox.AddThreadLabel(ctx, thread.ID, labelID)
	if labelErr == nil {
		thread.AddLabel(labelID)
	}

	return errors.Join(readErr, labelErr)
}

func (r *Runner) release(ctx context.Context, logger *slog.Logger, messageID string) {
	if err := r.opts.Claimer.Release(ctx, messageID); err != nil {
		logger.Warn("failed to release claim", logging.Err(err))
	}
}

func (r *Runner) logExtractionStop(logger *slog.Logger, o Outcome, res extract.Result, err error) {
	if o == OutcomeNoData {
		logger.Warn("could not extract data, response might have been empty or malformed",
			slog.String("reason", res.Reason),
			slog.String("finish_reason", res.FinishReason))
		return
	}

	attrs := []any{logging.Err(err)}
	var statusErr *extract.StatusError
	if errors.As(err, &statusErr) {
		attrs = append(attrs, logging.StatusCode(statusErr.Code))
	}
	logger.Error("extraction failed, leaving message for the next run", attrs...)
}

func enrichAttrs(err error) []any {
	attrs := []any{logging.Err(err)}
	var statusErr *enrich.StatusError
	if errors.As(err, &statusErr) {
		attrs = append(attrs, logging.StatusCode(statusErr.Code))
	}
	return attrs
}
