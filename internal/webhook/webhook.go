// Package webhook relays approved actions to the n8n workflow endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/logging"
)

// Source identifies Elva as the sender in every payload.
const Source = "elva-ai"

const defaultTimeout = 30 * time.Second

// Response is the outcome of a delivery. Remote failures are reported here
// rather than as Go errors.
type Response struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Map returns the response as a generic document for storage.
func (r Response) Map() map[string]any {
	m := map[string]any{
		"success":     r.Success,
		"status_code": r.StatusCode,
		"data":        r.Data,
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}

// Client posts approved actions to a webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with a 30s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithMetrics records webhook_deliveries_total.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a Client for url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Service(instrumentation.ServiceN8N))
	return c
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// SendApprovedAction posts data, stamped with the user, session, time and
// source, to the webhook.
func (c *Client) SendApprovedAction(ctx context.Context, data map[string]any, userID, sessionID string) Response {
	ctx, span := instrumentation.StartSpan(ctx, "webhook.send_approved_action",
		instrumentation.NewSpanAttributeBuilder().
			WithService(instrumentation.ServiceN8N).
			WithSession(sessionID).
			Build()...)
	defer span.End()

	resp := c.send(ctx, c.payload(data, userID, sessionID))

	status := instrumentation.StatusSuccess
	if !resp.Success {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, errors.New(resp.Error))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordWebhookDelivery(ctx, status)

	c.logger.Info("webhook delivered",
		logging.Session(sessionID),
		logging.Status(status),
		slog.Int("status_code", resp.StatusCode))
	return resp
}

func (c *Client) payload(data map[string]any, userID, sessionID string) map[string]any {
	out := make(map[string]any, len(data)+4)
	for k, v := range data {
		out[k] = v
	}
	out["user_id"] = userID
	out["session_id"] = sessionID
	out["timestamp"] = c.now().UTC().Format(time.RFC3339)
	out["source"] = Source
	return out
}

func (c *Client) send(ctx context.Context, payload map[string]any) Response {
	if c.url == "" {
		return Response{Error: "N8N_WEBHOOK_URL is not configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{Error: fmt.Sprintf("failed to encode payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("webhook request failed", logging.Err(err))
		return Response{Error: fmt.Sprintf("webhook request failed: %v", err)}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{StatusCode: httpResp.StatusCode, Error: fmt.Sprintf("failed to read response: %v", err)}
	}

	resp := Response{
		Success:    httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		StatusCode: httpResp.StatusCode,
		Data:       decodeBody(raw),
	}
	if !resp.Success {
		resp.Error = fmt.Sprintf("webhook returned status %d", httpResp.StatusCode)
	}
	return resp
}

// decodeBody returns the JSON value in raw, or raw as text.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
