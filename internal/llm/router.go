package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/logging"
)

// Routing strategies reported in RoutingDecision.PrimaryModel.
const (
	RouteClaude     = "claude_primary"
	RouteGroq       = "groq_primary"
	RouteSequential = "sequential"
	RouteDirect     = "direct_automation"
)

// RoutingDecision explains how a message was answered.
type RoutingDecision struct {
	PrimaryModel string  `json:"primary_model"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	Fallback     bool    `json:"fallback"`
}

// RoutingStats counts routing decisions for a session.
type RoutingStats struct {
	TotalRequests int            `json:"total_requests"`
	ByModel       map[string]int `json:"by_model"`
	Fallbacks     int            `json:"fallbacks"`
}

// Router detects intents and dispatches messages to Groq or Claude.
type Router struct {
	groq    Completer
	claude  Completer
	history *ConversationContext
	logger  *slog.Logger

	mu    sync.Mutex
	stats map[string]*RoutingStats
}

// NewRouter creates a Router. A nil logger means slog.Default().
func NewRouter(groq, claude Completer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		groq:    groq,
		claude:  claude,
		history: NewConversationContext(DefaultHistorySize),
		logger:  logger.With(slog.String("component", "router")),
		stats:   make(map[string]*RoutingStats),
	}
}

// Process classifies message, routes it and returns the intent data, the
// reply text and the routing decision.
func (r *Router) Process(ctx context.Context, sessionID, message string) (map[string]any, string, RoutingDecision, error) {
	ctx, span := instrumentation.StartSpan(ctx, "chat.process",
		instrumentation.NewSpanAttributeBuilder().WithSession(sessionID).Build()...)
	defer span.End()

	intentData, confidence := r.detectIntent(ctx, message)
	intent := IntentOf(intentData)
	logger := r.logger.With(logging.Session(sessionID), logging.Intent(intent))

	var (
		response string
		decision RoutingDecision
		err      error
	)

	switch {
	case IsDirectAutomationIntent(intent):
		decision = RoutingDecision{
			PrimaryModel: RouteDirect,
			Confidence:   1.0,
			Reasoning:    "Direct automation intent runs without a model call",
		}
		response = AutomationStatusMessage(intent)

	case intent == IntentSendEmail || intent == IntentPostPackage:
		decision = RoutingDecision{
			PrimaryModel: RouteSequential,
			Confidence:   confidence,
			Reasoning:    "Groq drafts the structure, Claude rewrites it in a friendly tone",
		}
		response, decision.Fallback, err = r.sequential(ctx, sessionID, message, intentData)

	case intent == IntentGeneralChat:
		decision = RoutingDecision{
			PrimaryModel: RouteClaude,
			Confidence:   confidence,
			Reasoning:    "Conversational message routed to Claude",
		}
		response, decision.Fallback, err = r.withFallback(ctx, r.claude, r.groq, chatSystemPrompt, r.conversation(sessionID, message))

	default:
		decision = RoutingDecision{
			PrimaryModel: RouteGroq,
			Confidence:   confidence,
			Reasoning:    "Structured task routed to Groq",
		}
		response, decision.Fallback, err = r.withFallback(ctx, r.groq, r.claude, structuredSystemPrompt(intentData), r.conversation(sessionID, message))
	}

	if err != nil {
		instrumentation.SetSpanError(span, err)
		logger.Error("all models failed", logging.Err(err))
		return intentData, "", decision, err
	}

	r.history.Add(sessionID, RoleUser, message)
	r.history.Add(sessionID, RoleAssistant, response)
	r.record(sessionID, decision)

	logger.Debug("message routed",
		slog.String("route", decision.PrimaryModel),
		slog.Bool("fallback", decision.Fallback))
	instrumentation.SetSpanSuccess(span)
	return intentData, response, decision, nil
}

// detectIntent asks Groq for structured intent data and falls back to the
// keyword heuristic.
func (r *Router) detectIntent(ctx context.Context, message string) (map[string]any, float64) {
	text, err := r.groq.Complete(ctx, intentSystemPrompt, []Message{{Role: RoleUser, Content: message}})
	if err == nil {
		data, parseErr := parseIntentJSON(text)
		if parseErr == nil {
			return data, 0.9
		}
		err = parseErr
	}
	r.logger.Warn("intent detection fell back to heuristic", logging.Err(err))
	return DetectIntentHeuristic(message), 0.6
}

func (r *Router) conversation(sessionID, message string) []Message {
	return append(r.history.Messages(sessionID), Message{Role: RoleUser, Content: message})
}

func (r *Router) withFallback(ctx context.Context, primary, secondary Completer, system string, msgs []Message) (string, bool, error) {
	text, err := primary.Complete(ctx, system, msgs)
	if err == nil {
		return text, false, nil
	}
	attrs := []any{logging.Err(err)}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, logging.Provider(apiErr.Provider))
	}
	r.logger.Warn("primary model failed, using fallback", attrs...)

	text, fbErr := secondary.Complete(ctx, system, msgs)
	if fbErr != nil {
		return "", true, errors.Join(err, fbErr)
	}
	return text, true, nil
}

func (r *Router) sequential(ctx context.Context, sessionID, message string, intentData map[string]any) (string, bool, error) {
	msgs := r.conversation(sessionID, message)

	draft, err := r.groq.Complete(ctx, structuredSystemPrompt(intentData), msgs)
	if err != nil {
		r.logger.Warn("draft step failed, Claude answers alone", logging.Err(err))
		text, claudeErr := r.claude.Complete(ctx, chatSystemPrompt, msgs)
		if claudeErr != nil {
			return "", true, errors.Join(err, claudeErr)
		}
		return text, true, nil
	}

	rewrite := []Message{{
		Role:    RoleUser,
		Content: fmt.Sprintf("User request: %s\n\nDraft:\n%s", message, draft),
	}}
	text, err := r.claude.Complete(ctx, rewriteSystemPrompt, rewrite)
	if err != nil {
		r.logger.Warn("rewrite step failed, returning draft", logging.Err(err))
		return draft, true, nil
	}
	return text, false, nil
}

func (r *Router) record(sessionID string, d RoutingDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[sessionID]
	if !ok {
		s = &RoutingStats{ByModel: make(map[string]int)}
		r.stats[sessionID] = s
	}
	s.TotalRequests++
	s.ByModel[d.PrimaryModel]++
	if d.Fallback {
		s.Fallbacks++
	}
}

// Stats returns a copy of the routing counts for the session.
func (r *Router) Stats(sessionID string) RoutingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := RoutingStats{ByModel: make(map[string]int)}
	if s, ok := r.stats[sessionID]; ok {
		out.TotalRequests = s.TotalRequests
		out.Fallbacks = s.Fallbacks
		for k, v := range s.ByModel {
			out.ByModel[k] = v
		}
	}
	return out
}

// Reset clears the session's history and statistics.
func (r *Router) Reset(sessionID string) {
	r.history.Reset(sessionID)
	r.mu.Lock()
	delete(r.stats, sessionID)
	r.mu.Unlock()
}
