package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/elva-ai/elva/internal/instrumentation"
)

const (
	// DefaultGroqModel is used when no model is configured.
	DefaultGroqModel = "llama3-8b-8192"
	groqBaseURL      = "https://api.groq.com/openai/v1"
)

// GroqClient calls Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	model  string
	cfg    clientConfig
	client *openai.Client
}

// NewGroqClient creates a Groq client. An empty model selects DefaultGroqModel.
func NewGroqClient(apiKey, model string, opts ...ClientOption) *GroqClient {
	if model == "" {
		model = DefaultGroqModel
	}
	cfg := newClientConfig(groqBaseURL, opts)

	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = strings.TrimSuffix(cfg.baseURL, "/")
	oc.HTTPClient = cfg.httpClient

	return &GroqClient{
		model:  model,
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
	}
}

// Model returns the configured model name.
func (g *GroqClient) Model() string {
	return g.model
}

// Complete sends the system prompt followed by messages.
func (g *GroqClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	return observe(ctx, g.cfg.metrics, instrumentation.ServiceGroq, g.model, func(ctx context.Context) (string, error) {
		all := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
		if system != "" {
			all = append(all, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
		}
		for _, m := range messages {
			all = append(all, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
		}

		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    all,
			MaxTokens:   g.cfg.maxTokens,
			Temperature: 0.3,
		})
		if err != nil {
			return "", groqError(err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", fmt.Errorf("groq: %w", ErrEmptyResponse)
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// groqError converts go-openai status errors into *APIError.
func groqError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &APIError{Provider: "groq", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			Provider:   "groq",
			StatusCode: reqErr.HTTPStatusCode,
			Message:    errorMessage(string(reqErr.Body), reqErr.HTTPStatus),
		}
	}
	return fmt.Errorf("calling groq API: %w", err)
}
