package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/elva-ai/elva/internal/instrumentation"
)

const (
	// DefaultClaudeModel is used when no model is configured.
	DefaultClaudeModel = "claude-3-5-sonnet-20241022"
	claudeBaseURL      = "https://api.anthropic.com/"
)

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	model  string
	cfg    clientConfig
	client anthropic.Client
}

// NewClaudeClient creates a Claude client. An empty model selects DefaultClaudeModel.
func NewClaudeClient(apiKey, model string, opts ...ClientOption) *ClaudeClient {
	if model == "" {
		model = DefaultClaudeModel
	}
	cfg := newClientConfig(claudeBaseURL, opts)
	if !strings.HasSuffix(cfg.baseURL, "/") {
		cfg.baseURL += "/"
	}

	return &ClaudeClient{
		model: model,
		cfg:   cfg,
		// Retries are left to the router, which falls back to Groq.
		client: anthropic.NewClient(
			anthropicopt.WithAPIKey(apiKey),
			anthropicopt.WithBaseURL(cfg.baseURL),
			anthropicopt.WithHTTPClient(cfg.httpClient),
			anthropicopt.WithMaxRetries(0),
		),
	}
}

// Model returns the configured model name.
func (c *ClaudeClient) Model() string {
	return c.model
}

// Complete sends messages with system as the top-level system prompt.
func (c *ClaudeClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	return observe(ctx, c.cfg.metrics, instrumentation.ServiceClaude, c.model, func(ctx context.Context) (string, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: int64(c.cfg.maxTokens),
			Messages:  make([]anthropic.MessageParam, 0, len(messages)),
		}
		if system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}
		for _, m := range messages {
			block := anthropic.NewTextBlock(m.Content)
			if m.Role == RoleAssistant {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
			} else {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
			}
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", claudeError(err)
		}

		var parts []string
		for _, block := range resp.Content {
			if block.Type == "text" {
				parts = append(parts, block.Text)
			}
		}
		text := strings.Join(parts, "")
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("claude: %w", ErrEmptyResponse)
		}
		return text, nil
	})
}

// claudeError converts SDK status errors into *APIError.
func claudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   "claude",
			StatusCode: apiErr.StatusCode,
			Message:    errorMessage(apiErr.RawJSON(), http.StatusText(apiErr.StatusCode)),
		}
	}
	return fmt.Errorf("calling claude API: %w", err)
}
