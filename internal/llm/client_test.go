package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type capturedText struct {
	Text string `json:"text"`
}

type capturedRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    []capturedText    `json:"system"`
	Messages  []capturedMessage `json:"messages"`
}

func TestGroqClient_Complete(t *testing.T) {
	var got capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello from groq"}}]}`))
	}))
	defer server.Close()

	client := NewGroqClient("gsk_test", "", WithBaseURL(server.URL))
	assert.Equal(t, DefaultGroqModel, client.Model())

	text, err := client.Complete(context.Background(), "be brief", []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello from groq", text)

	assert.Equal(t, DefaultGroqModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, capturedMessage{Role: "system", Content: "be brief"}, got.Messages[0])
	assert.Equal(t, capturedMessage{Role: "user", Content: "hi"}, got.Messages[1])
}

func TestClaudeClient_Complete(t *testing.T) {
	var got capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}]}`))
	}))
	defer server.Close()

	client := NewClaudeClient("sk-ant-test", "claude-test", WithBaseURL(server.URL), WithMaxTokens(256))
	text, err := client.Complete(context.Background(), "system prompt", []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Equal(t, "system prompt", got.System[0].Text)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, []string{"user", "assistant", "user"},
		[]string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role})
}

func TestClients_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantIs  error
		wantMsg string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error","message":"slow down"}}`, ErrRateLimited, "slow down"},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`, ErrUnauthorized, "invalid x-api-key"},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"forbidden"}}`, ErrUnauthorized, "forbidden"},
		{"server error plain body", http.StatusBadGateway, `upstream down`, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(tt.body, "{") {
					w.Header().Set("Content-Type", "application/json")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			clients := map[string]Completer{
				"groq":   NewGroqClient("k", "", WithBaseURL(server.URL)),
				"claude": NewClaudeClient("k", "", WithBaseURL(server.URL)),
			}
			for provider, c := range clients {
				_, err := c.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "hi"}})
				require.Error(t, err)

				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr), provider)
				assert.Equal(t, provider, apiErr.Provider)
				assert.Equal(t, tt.status, apiErr.StatusCode)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, apiErr.Message, provider)
				}
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				} else {
					assert.NotErrorIs(t, err, ErrRateLimited)
					assert.NotErrorIs(t, err, ErrUnauthorized)
				}
			}
		})
	}
}

func TestClients_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[],"content":[]}`))
	}))
	defer server.Close()

	_, err := NewGroqClient("k", "", WithBaseURL(server.URL)).Complete(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = NewClaudeClient("k", "", WithBaseURL(server.URL)).Complete(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClients_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGroqClient("k", "", WithBaseURL(server.URL)).Complete(ctx, "", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
