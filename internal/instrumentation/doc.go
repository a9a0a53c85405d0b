// Package instrumentation provides OpenTelemetry instrumentation for dealscout.
//
// A run is short-lived, so metrics are gathered into a per-run Prometheus
// registry and pushed to a Pushgateway when the run ends (see Provider.Push).
// OTLP and stdout exporters are available for metrics, and OTLP and stdout
// for traces.
//
// # Metrics
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Gmail and Sheets operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Endpoint Metrics:
//   - endpoint_calls_total: Counter of extraction and enrichment calls by service and status
//   - endpoint_call_duration_seconds: Histogram of endpoint call durations
//
// Pipeline Metrics:
//   - messages_processed_total: Counter of messages by terminal outcome
//   - prompt_truncations_total: Counter of prompts whose body was truncated
//   - threads_fetched_total: Counter of threads returned by the search
//   - runs_total / run_duration_seconds: Batch runs by status
//
// # Tracing
//
// Spans are created for the run, each message, each Google API call
// (google.<service>.<operation>) and each endpoint call (<service>.<operation>).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: dealscout)
//
// The Pushgateway URL comes from the dealscout configuration file.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGoogleAPIOperation(ctx, "gmail", "list", "success", time.Since(start))
//	recorder.RecordMessageOutcome(ctx, "marked", "default")
//
//	if err := provider.Push(ctx); err != nil {
//		logger.Warn("metrics push failed", logging.Err(err))
//	}
package instrumentation
