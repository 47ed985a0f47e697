package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrProvider  = "provider"
	attrIntent    = "intent"
)

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics records the service's OpenTelemetry instruments.
// The zero value is a valid no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	llmRequestsTotal   metric.Int64Counter
	llmRequestDuration metric.Float64Histogram

	webhookDeliveriesTotal metric.Int64Counter
	automationRunsTotal    metric.Int64Counter
}

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string, buckets []float64) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
	}

	counter(&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}")
	histogram(&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds",
		[]float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0})

	counter(&m.googleAPIOperationsTotal, "google_api_operations_total", "Total number of Google API operations", "{operation}")
	histogram(&m.googleAPIOperationDuration, "google_api_operation_duration_seconds", "Google API operation duration in seconds", latencyBuckets)

	counter(&m.oauthAuthTotal, "oauth_auth_total", "Total number of OAuth authentication attempts", "{attempt}")
	counter(&m.oauthTokenRefreshTotal, "oauth_token_refresh_total", "Total number of OAuth token refresh attempts", "{attempt}")

	counter(&m.llmRequestsTotal, "llm_requests_total", "Total number of LLM provider requests", "{request}")
	histogram(&m.llmRequestDuration, "llm_request_duration_seconds", "LLM provider request duration in seconds", latencyBuckets)

	counter(&m.webhookDeliveriesTotal, "webhook_deliveries_total", "Total number of n8n webhook deliveries", "{delivery}")
	counter(&m.automationRunsTotal, "automation_runs_total", "Total number of direct automation runs", "{run}")

	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route template, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records a Google API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records an OAuth authorization attempt ("success" or "failure").
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a token refresh attempt ("success", "failure" or "expired").
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordLLMRequest records a completion request against an LLM provider.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, status string, duration time.Duration) {
	if m == nil || m.llmRequestsTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrStatus, status),
	)
	m.llmRequestsTotal.Add(ctx, 1, attrs)
	m.llmRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordWebhookDelivery records an n8n webhook delivery.
func (m *Metrics) RecordWebhookDelivery(ctx context.Context, status string) {
	if m == nil || m.webhookDeliveriesTotal == nil {
		return // Instrumentation not initialized
	}
	m.webhookDeliveriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordAutomationRun records a direct automation execution.
// Intent values come from a fixed template table, so cardinality stays bounded.
func (m *Metrics) RecordAutomationRun(ctx context.Context, intent, status string) {
	if m == nil || m.automationRunsTotal == nil {
		return // Instrumentation not initialized
	}
	m.automationRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrIntent, intent),
		attribute.String(attrStatus, status),
	))
}
