// Package llm invokes the hosted language models (Groq and Claude) and
// routes each chat message to the model best suited for its intent.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elva-ai/elva/internal/instrumentation"
)

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer produces a completion for a system prompt and a conversation.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

var (
	// ErrRateLimited is wrapped by APIError for HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized is wrapped by APIError for HTTP 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyResponse means the provider returned no text.
	ErrEmptyResponse = errors.New("empty completion")
)

// APIError is a non-2xx response from a model provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// apiErrorResponse is the error envelope both providers return.
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorMessage extracts error.message from a raw provider error body.
func errorMessage(raw, fallback string) string {
	var env apiErrorResponse
	if json.Unmarshal([]byte(raw), &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		return raw
	}
	return fallback
}

const defaultTimeout = 60 * time.Second

// ClientOption configures a Groq or Claude client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	maxTokens  int
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithMetrics records llm_requests_total for every call.
func WithMetrics(m *instrumentation.Metrics) ClientOption {
	return func(c *clientConfig) { c.metrics = m }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ClientOption {
	return func(c *clientConfig) { c.maxTokens = n }
}

func newClientConfig(defaultURL string, opts []ClientOption) clientConfig {
	cfg := clientConfig{
		baseURL:    defaultURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxTokens:  1024,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// observe wraps a provider call with a span and metrics.
func observe(ctx context.Context, metrics *instrumentation.Metrics, provider, model string, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, span := instrumentation.StartLLMSpan(ctx, provider, model)
	defer span.End()

	start := time.Now()
	text, err := fn(ctx)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	metrics.RecordLLMRequest(ctx, provider, status, time.Since(start))
	return text, err
}
