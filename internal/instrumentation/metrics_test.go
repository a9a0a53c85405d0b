package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, func()) {
	t.Helper()
	ctx := context.Background()

	config := testConfig()
	config.DetailedLabels = detailed

	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return provider.Metrics(), func() { _ = provider.Shutdown(ctx) }
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	metrics, done := newTestMetrics(t, false)
	defer done()
	ctx := context.Background()

	// Should not panic
	metrics.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceSheets, OperationAppend, StatusError, 500*time.Millisecond)
}

func TestMetrics_RecordEndpointCall(t *testing.T) {
	metrics, done := newTestMetrics(t, false)
	defer done()
	ctx := context.Background()

	metrics.RecordEndpointCall(ctx, ServiceExtraction, StatusSuccess, 3*time.Second)
	metrics.RecordEndpointCall(ctx, ServiceExtraction, StatusEmpty, time.Second)
	metrics.RecordEndpointCall(ctx, ServiceEnrichment, StatusError, 10*time.Second)
}

func TestMetrics_PipelineCounters(t *testing.T) {
	for _, detailed := range []bool{false, true} {
		metrics, done := newTestMetrics(t, detailed)
		ctx := context.Background()

		metrics.RecordThreadsFetched(ctx, 3)
		metrics.RecordPromptTruncated(ctx)
		metrics.RecordMessageOutcome(ctx, "marked", "work")
		metrics.RecordMessageOutcome(ctx, "no_data", "")
		metrics.RecordRun(ctx, StatusSuccess, time.Minute)
		done()
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	// Zero value and nil recorders must not panic
	for _, m := range []*Metrics{{}, nil} {
		m.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationGet, StatusSuccess, time.Second)
		m.RecordEndpointCall(ctx, ServiceEnrichment, StatusSuccess, time.Second)
		m.RecordMessageOutcome(ctx, "marked", "")
		m.RecordPromptTruncated(ctx)
		m.RecordThreadsFetched(ctx, 1)
		m.RecordRun(ctx, StatusError, time.Second)
	}
}
