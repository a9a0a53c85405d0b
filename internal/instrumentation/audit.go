package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// MessageAudit captures how one message left the pipeline.
//
// Sender holds the raw From header and is PII. LogAttrs reduces it to the
// domain; LogAuditAttrs writes it in full.
type MessageAudit struct {
	RunID     string
	Account   string
	MessageID string
	ThreadID  string
	Sender    string
	Subject   string

	// Outcome is the terminal pipeline state.
	Outcome string
	// Success is false for states that leave the message for a later run.
	Success bool
	Error   string

	StartTime time.Time
	Duration  time.Duration

	TraceID string
	SpanID  string
}

// NewMessageAudit starts timing a message.
func NewMessageAudit(runID, messageID, threadID string) *MessageAudit {
	return &MessageAudit{
		RunID:     runID,
		MessageID: messageID,
		ThreadID:  threadID,
		StartTime: time.Now(),
	}
}

// WithSender sets the sender and subject.
func (ma *MessageAudit) WithSender(sender, subject string) *MessageAudit {
	ma.Sender = sender
	ma.Subject = subject
	return ma
}

// WithAccount sets the Google account name.
func (ma *MessageAudit) WithAccount(account string) *MessageAudit {
	ma.Account = account
	return ma
}

// WithSpanContext extracts trace context from the current span.
func (ma *MessageAudit) WithSpanContext(ctx context.Context) *MessageAudit {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ma.TraceID = span.SpanContext().TraceID().String()
		ma.SpanID = span.SpanContext().SpanID().String()
	}
	return ma
}

// Complete records the outcome and the elapsed time.
func (ma *MessageAudit) Complete(outcome string, success bool, err error) *MessageAudit {
	ma.Duration = time.Since(ma.StartTime)
	ma.Outcome = outcome
	ma.Success = success
	if err != nil {
		ma.Error = err.Error()
	}
	return ma
}

// SenderDomain returns the domain of the sender address.
func (ma *MessageAudit) SenderDomain() string {
	return ExtractUserDomain(ma.Sender)
}

// LogAttrs returns cardinality-controlled attributes without PII.
func (ma *MessageAudit) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("message_id", ma.MessageID),
		slog.String("outcome", ma.Outcome),
		slog.String("sender_domain", ma.SenderDomain()),
		slog.Duration("duration", ma.Duration),
		slog.Bool("success", ma.Success),
	}

	if ma.RunID != "" {
		attrs = append(attrs, slog.String("run_id", ma.RunID))
	}
	if ma.Account != "" && ma.Account != "default" {
		attrs = append(attrs, slog.String("account", ma.Account))
	}
	if ma.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ma.TraceID))
	}
	if ma.Error != "" {
		attrs = append(attrs, slog.String("error", ma.Error))
	}

	return attrs
}

// LogAuditAttrs returns attributes including the full sender and subject.
func (ma *MessageAudit) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("message_id", ma.MessageID),
		slog.String("thread_id", ma.ThreadID),
		slog.String("outcome", ma.Outcome),
		slog.String("sender", ma.Sender),
		slog.String("subject", ma.Subject),
		slog.Duration("duration", ma.Duration),
		slog.Bool("success", ma.Success),
	}

	if ma.RunID != "" {
		attrs = append(attrs, slog.String("run_id", ma.RunID))
	}
	if ma.Account != "" {
		attrs = append(attrs, slog.String("account", ma.Account))
	}
	if ma.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ma.TraceID))
	}
	if ma.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ma.SpanID))
	}
	if ma.Error != "" {
		attrs = append(attrs, slog.String("error", ma.Error))
	}

	return attrs
}

// AuditLogger writes one structured line per finished message.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. PII is excluded by default.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogMessage logs the audit record. Failed messages are logged at warn level.
func (al *AuditLogger) LogMessage(ma *MessageAudit) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ma.LogAuditAttrs()
	} else {
		attrs = ma.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ma.Success {
		al.logger.Info("message_done", args...)
	} else {
		al.logger.Warn("message_failed", args...)
	}
}
