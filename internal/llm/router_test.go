package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	system   string
	messages []Message
}

// fakeCompleter answers intent prompts with intentReply and everything
// else with reply.
type fakeCompleter struct {
	mu          sync.Mutex
	intentReply string
	intentErr   error
	reply       string
	err         error
	calls       []call
}

func (f *fakeCompleter) Complete(_ context.Context, system string, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{system: system, messages: messages})
	if system == intentSystemPrompt {
		return f.intentReply, f.intentErr
	}
	return f.reply, f.err
}

func (f *fakeCompleter) nonIntentCalls() []call {
	var out []call
	for _, c := range f.calls {
		if c.system != intentSystemPrompt {
			out = append(out, c)
		}
	}
	return out
}

func TestRouter_GeneralChat(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"general_chat"}`, reply: "groq reply"}
	claude := &fakeCompleter{reply: "claude reply"}
	r := NewRouter(groq, claude, nil)

	data, resp, decision, err := r.Process(context.Background(), "s1", "hello there")
	require.NoError(t, err)

	assert.Equal(t, "general_chat", data["intent"])
	assert.Equal(t, "claude reply", resp)
	assert.Equal(t, RouteClaude, decision.PrimaryModel)
	assert.False(t, decision.Fallback)
	assert.InDelta(t, 0.9, decision.Confidence, 1e-9)
	assert.Empty(t, groq.nonIntentCalls())

	history := r.history.Messages("s1")
	require.Len(t, history, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "hello there"}, history[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "claude reply"}, history[1])
}

func TestRouter_IncludesHistory(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"general_chat"}`}
	claude := &fakeCompleter{reply: "ok"}
	r := NewRouter(groq, claude, nil)

	_, _, _, err := r.Process(context.Background(), "s1", "first")
	require.NoError(t, err)
	_, _, _, err = r.Process(context.Background(), "s1", "second")
	require.NoError(t, err)

	last := claude.calls[len(claude.calls)-1]
	require.Len(t, last.messages, 3)
	assert.Equal(t, "first", last.messages[0].Content)
	assert.Equal(t, "second", last.messages[2].Content)
}

func TestRouter_StructuredGoesToGroq(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"add_todo","task":"buy milk"}`, reply: "Adding: buy milk"}
	claude := &fakeCompleter{reply: "claude"}
	r := NewRouter(groq, claude, nil)

	data, resp, decision, err := r.Process(context.Background(), "s1", "add buy milk to my todo")
	require.NoError(t, err)

	assert.Equal(t, "buy milk", data["task"])
	assert.Equal(t, "Adding: buy milk", resp)
	assert.Equal(t, RouteGroq, decision.PrimaryModel)
	assert.Empty(t, claude.calls)

	calls := groq.nonIntentCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].system, `"task":"buy milk"`)
}

func TestRouter_Sequential(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"send_email","recipient_email":"bob@example.com"}`, reply: "DRAFT"}
	claude := &fakeCompleter{reply: "Friendly email"}
	r := NewRouter(groq, claude, nil)

	_, resp, decision, err := r.Process(context.Background(), "s1", "email bob")
	require.NoError(t, err)

	assert.Equal(t, "Friendly email", resp)
	assert.Equal(t, RouteSequential, decision.PrimaryModel)
	assert.False(t, decision.Fallback)
	require.Len(t, claude.calls, 1)
	assert.Equal(t, rewriteSystemPrompt, claude.calls[0].system)
	assert.True(t, strings.Contains(claude.calls[0].messages[0].Content, "DRAFT"))
}

func TestRouter_SequentialFallbacks(t *testing.T) {
	t.Run("rewrite fails returns draft", func(t *testing.T) {
		groq := &fakeCompleter{intentReply: `{"intent":"send_email"}`, reply: "DRAFT"}
		claude := &fakeCompleter{err: errors.New("claude down")}
		_, resp, decision, err := NewRouter(groq, claude, nil).Process(context.Background(), "s", "email bob")
		require.NoError(t, err)
		assert.Equal(t, "DRAFT", resp)
		assert.True(t, decision.Fallback)
	})

	t.Run("draft fails claude answers", func(t *testing.T) {
		groq := &fakeCompleter{intentReply: `{"intent":"generate_post_prompt_package"}`, err: errors.New("groq down")}
		claude := &fakeCompleter{reply: "post"}
		_, resp, decision, err := NewRouter(groq, claude, nil).Process(context.Background(), "s", "post about launch")
		require.NoError(t, err)
		assert.Equal(t, "post", resp)
		assert.True(t, decision.Fallback)
	})
}

func TestRouter_DirectAutomation(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"gmail_unread_count"}`}
	claude := &fakeCompleter{}
	r := NewRouter(groq, claude, nil)

	_, resp, decision, err := r.Process(context.Background(), "s1", "how many unread emails?")
	require.NoError(t, err)

	assert.Equal(t, "Counting unread emails...", resp)
	assert.Equal(t, RouteDirect, decision.PrimaryModel)
	assert.InDelta(t, 1.0, decision.Confidence, 1e-9)
	assert.Empty(t, groq.nonIntentCalls())
	assert.Empty(t, claude.calls)
}

func TestRouter_HeuristicFallback(t *testing.T) {
	tests := []struct {
		name string
		groq *fakeCompleter
	}{
		{"provider error", &fakeCompleter{intentErr: errors.New("429"), reply: "x"}},
		{"unparseable", &fakeCompleter{intentReply: "I think it's an inbox check", reply: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.groq, &fakeCompleter{}, nil)
			data, _, decision, err := r.Process(context.Background(), "s1", "check my inbox please")
			require.NoError(t, err)
			assert.Equal(t, IntentCheckInbox, data["intent"])
			assert.Equal(t, RouteDirect, decision.PrimaryModel)
		})
	}
}

func TestRouter_ModelFallback(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"general_chat"}`, reply: "groq answer"}
	claude := &fakeCompleter{err: errors.New("overloaded")}
	r := NewRouter(groq, claude, nil)

	_, resp, decision, err := r.Process(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "groq answer", resp)
	assert.Equal(t, RouteClaude, decision.PrimaryModel)
	assert.True(t, decision.Fallback)
}

func TestRouter_AllModelsFail(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"general_chat"}`, err: errors.New("groq down")}
	claude := &fakeCompleter{err: errors.New("claude down")}
	r := NewRouter(groq, claude, nil)

	_, _, _, err := r.Process(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groq down")
	assert.Contains(t, err.Error(), "claude down")
	assert.Empty(t, r.history.Messages("s1"))
	assert.Zero(t, r.Stats("s1").TotalRequests)
}

func TestRouter_Stats(t *testing.T) {
	groq := &fakeCompleter{intentReply: `{"intent":"general_chat"}`, reply: "g"}
	claude := &fakeCompleter{reply: "c"}
	r := NewRouter(groq, claude, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, _, err := r.Process(ctx, "s1", "hello")
		require.NoError(t, err)
	}
	groq.intentReply = `{"intent":"gmail_check_inbox"}`
	_, _, _, err := r.Process(ctx, "s1", "inbox")
	require.NoError(t, err)

	stats := r.Stats("s1")
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, map[string]int{RouteClaude: 2, RouteDirect: 1}, stats.ByModel)
	assert.Zero(t, stats.Fallbacks)
	assert.Zero(t, r.Stats("other").TotalRequests)

	r.Reset("s1")
	assert.Zero(t, r.Stats("s1").TotalRequests)
	assert.Empty(t, r.history.Messages("s1"))
}
