// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for elva.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds
//
// Gmail:
//   - google_api_operations_total, google_api_operation_duration_seconds
//   - oauth_auth_total, oauth_token_refresh_total
//
// Assistant:
//   - llm_requests_total, llm_request_duration_seconds (by provider and status)
//   - webhook_deliveries_total
//   - automation_runs_total (by intent and status)
//
// # Tracing
//
// Spans are created for Gmail calls (google.gmail.<operation>), LLM calls
// (llm.<provider>) and chat processing.
//
// # Configuration
//
// Instrumentation is configured through environment variables:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: elva)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
package instrumentation
