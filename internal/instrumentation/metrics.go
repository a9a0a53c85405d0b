package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrOutcome   = "outcome"
	attrAccount   = "account"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// Outbound HTTP endpoints (extraction, enrichment)
	endpointCallsTotal   metric.Int64Counter
	endpointCallDuration metric.Float64Histogram

	// Pipeline metrics
	messagesTotal   metric.Int64Counter
	promptTruncated metric.Int64Counter
	runsTotal       metric.Int64Counter
	runDuration     metric.Float64Histogram
	threadsFetched  metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.endpointCallsTotal, err = meter.Int64Counter(
		"endpoint_calls_total",
		metric.WithDescription("Total number of extraction and enrichment endpoint calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create endpoint_calls_total counter: %w", err)
	}

	m.endpointCallDuration, err = meter.Float64Histogram(
		"endpoint_call_duration_seconds",
		metric.WithDescription("Extraction and enrichment endpoint call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create endpoint_call_duration_seconds histogram: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"messages_processed_total",
		metric.WithDescription("Messages seen by the pipeline by terminal outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_processed_total counter: %w", err)
	}

	m.promptTruncated, err = meter.Int64Counter(
		"prompt_truncations_total",
		metric.WithDescription("Prompts whose email body was truncated to fit the limit"),
		metric.WithUnit("{prompt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt_truncations_total counter: %w", err)
	}

	m.threadsFetched, err = meter.Int64Counter(
		"threads_fetched_total",
		metric.WithDescription("Threads returned by the mailbox search"),
		metric.WithUnit("{thread}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create threads_fetched_total counter: %w", err)
	}

	m.runsTotal, err = meter.Int64Counter(
		"runs_total",
		metric.WithDescription("Total number of batch runs by status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs_total counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(
		"run_duration_seconds",
		metric.WithDescription("Batch run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail, sheets)
//   - operation: Operation type (list, get, create, modify, append)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEndpointCall records a call to the extraction or enrichment endpoint.
// Status is one of "success", "error" or "empty".
func (m *Metrics) RecordEndpointCall(ctx context.Context, service, status string, duration time.Duration) {
	if m == nil || m.endpointCallsTotal == nil || m.endpointCallDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrStatus, status),
	}

	m.endpointCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.endpointCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMessageOutcome counts a message reaching a terminal pipeline state.
// The account label is only added when detailed labels are enabled.
func (m *Metrics) RecordMessageOutcome(ctx context.Context, outcome, account string) {
	if m == nil || m.messagesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOutcome, outcome),
	}
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPromptTruncated counts a prompt whose body was cut.
func (m *Metrics) RecordPromptTruncated(ctx context.Context) {
	if m == nil || m.promptTruncated == nil {
		return // Instrumentation not initialized
	}

	m.promptTruncated.Add(ctx, 1)
}

// RecordThreadsFetched adds the number of threads a search returned.
func (m *Metrics) RecordThreadsFetched(ctx context.Context, n int) {
	if m == nil || m.threadsFetched == nil {
		return // Instrumentation not initialized
	}

	m.threadsFetched.Add(ctx, int64(n))
}

// RecordRun records a finished batch run.
func (m *Metrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.runsTotal == nil || m.runDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
