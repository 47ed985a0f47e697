package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/elva-ai/elva/internal/gmail"
	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/llm"
	"github.com/elva-ai/elva/internal/logging"
	"github.com/elva-ai/elva/internal/store"
)

// APIVersion is reported by GET /api/ and /api/health.
const APIVersion = "2.0"

const (
	gmailAvailable        = "available"
	gmailNotAuthenticated = "not_authenticated"
	healthPingTimeout     = 5 * time.Second
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// ChatResponse is returned by POST /api/chat.
type ChatResponse struct {
	ID            string         `json:"id"`
	Message       string         `json:"message"`
	Response      string         `json:"response"`
	IntentData    map[string]any `json:"intent_data"`
	NeedsApproval bool           `json:"needs_approval"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ApprovalRequest is the body of POST /api/approve.
type ApprovalRequest struct {
	SessionID  string         `json:"session_id"`
	MessageID  string         `json:"message_id"`
	Approved   bool           `json:"approved"`
	EditedData map[string]any `json:"edited_data"`
}

// GmailAutomationRequest is the body of POST /api/gmail-automation.
type GmailAutomationRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

type api struct {
	*Services
}

func registerAPI(r *mux.Router, s *Services) {
	a := &api{Services: s}

	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/", a.root).Methods(http.MethodGet)
	sub.HandleFunc("/chat", a.chat).Methods(http.MethodPost)
	sub.HandleFunc("/approve", a.approve).Methods(http.MethodPost)
	sub.HandleFunc("/history/{session_id}", a.history).Methods(http.MethodGet)
	sub.HandleFunc("/history/{session_id}", a.clearHistory).Methods(http.MethodDelete)
	sub.HandleFunc("/routing-stats/{session_id}", a.routingStats).Methods(http.MethodGet)
	sub.HandleFunc("/automation-status/{intent}", a.automationStatus).Methods(http.MethodGet)
	sub.HandleFunc("/gmail-automation", a.gmailAutomation).Methods(http.MethodPost)
	sub.HandleFunc("/gmail-auth-status", a.gmailAuthStatus).Methods(http.MethodGet)
	sub.HandleFunc("/automation-history/{session_id}", a.automationHistory).Methods(http.MethodGet)
	sub.HandleFunc("/health", a.health).Methods(http.MethodGet)
}

func (a *api) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"message": "Elva AI Backend with Advanced Hybrid Routing! 🤖✨🧠",
		"version": APIVersion,
	}, http.StatusOK)
}

func (a *api) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "message and session_id are required", nil)
		return
	}

	ctx := r.Context()
	logger := logging.WithSession(a.Logger, req.SessionID)

	intentData, response, _, err := a.Router.Process(ctx, req.SessionID, req.Message)
	if err != nil {
		logger.Error("chat processing failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	if intentData == nil {
		intentData = map[string]any{"intent": llm.IntentGeneralChat}
	}
	intent := llm.IntentOf(intentData)

	needsApproval := intent != llm.IntentGeneralChat
	if llm.IsDirectAutomationIntent(intent) && a.Automation != nil {
		result := a.Automation.Process(ctx, req.SessionID, intentData)
		response = result.Message
		intentData["automation_result"] = result.Data
		intentData["automation_success"] = result.Success
		intentData["execution_time"] = result.ExecutionTime
		intentData["direct_automation"] = true
		needsApproval = false
	}

	msg := &store.ChatMessage{
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		Message:    req.Message,
		Response:   response,
		IntentData: intentData,
	}
	if err := a.Store.SaveMessage(ctx, msg); err != nil {
		logger.Error("failed to save chat message", logging.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to save chat message", nil)
		return
	}

	writeJSON(w, ChatResponse{
		ID:            msg.ID,
		Message:       req.Message,
		Response:      response,
		IntentData:    intentData,
		NeedsApproval: needsApproval,
		Timestamp:     msg.Timestamp,
	}, http.StatusOK)
}

func (a *api) approve(w http.ResponseWriter, r *http.Request) {
	var req ApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "message_id is required", nil)
		return
	}

	ctx := r.Context()
	msg, err := a.Store.GetMessage(ctx, req.MessageID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Message not found", nil)
		return
	}
	if err != nil {
		a.Logger.Error("failed to load message", slog.String("message_id", req.MessageID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}

	// An empty edited_data object counts as no edit.
	edited := len(req.EditedData) > 0
	audit := instrumentation.NewApprovalAudit(msg.ID, msg.SessionID, msg.UserID).
		WithDecision(llm.IntentOf(msg.IntentData), req.Approved, edited).
		WithSpanContext(ctx)

	if !req.Approved {
		if err := a.Store.UpdateApproval(ctx, msg.ID, store.ApprovalUpdate{Approved: false}); err != nil {
			writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
			return
		}
		a.Audit.LogApproval(audit.Complete(true, 0, nil))
		writeJSON(w, map[string]any{"success": true, "message": "Action cancelled"}, http.StatusOK)
		return
	}

	finalData, editedData := msg.IntentData, map[string]any(nil)
	if edited {
		finalData, editedData = req.EditedData, req.EditedData
	}
	resp := a.Webhook.SendApprovedAction(ctx, finalData, msg.UserID, msg.SessionID)

	err = a.Store.UpdateApproval(ctx, msg.ID, store.ApprovalUpdate{
		Approved:    true,
		N8NResponse: resp.Map(),
		EditedData:  editedData,
	})
	if err != nil {
		a.Audit.LogApproval(audit.Complete(false, resp.StatusCode, err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}

	var deliveryErr error
	if resp.Error != "" {
		deliveryErr = errors.New(resp.Error)
	}
	a.Audit.LogApproval(audit.Complete(resp.Success, resp.StatusCode, deliveryErr))

	message := "Action executed successfully!"
	if !resp.Success {
		message = "Action sent but n8n had issues"
	}
	writeJSON(w, map[string]any{
		"success":      true,
		"message":      message,
		"n8n_response": resp,
	}, http.StatusOK)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	msgs, err := a.Store.History(r.Context(), sessionID, store.DefaultHistoryLimit)
	if err != nil {
		a.Logger.Error("failed to load history", logging.Session(sessionID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	if msgs == nil {
		msgs = []store.ChatMessage{}
	}
	writeJSON(w, map[string]any{"messages": msgs}, http.StatusOK)
}

func (a *api) clearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	deleted, err := a.Store.ClearHistory(r.Context(), sessionID)
	if err != nil {
		a.Logger.Error("failed to clear history", logging.Session(sessionID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	a.Router.Reset(sessionID)
	writeJSON(w, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Cleared %d messages from chat history", deleted),
	}, http.StatusOK)
}

func (a *api) routingStats(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	writeJSON(w, map[string]any{
		"session_id":         sessionID,
		"routing_statistics": a.Router.Stats(sessionID),
	}, http.StatusOK)
}

func (a *api) automationStatus(w http.ResponseWriter, r *http.Request) {
	intent := mux.Vars(r)["intent"]
	writeJSON(w, map[string]any{
		"intent":               intent,
		"status_message":       llm.AutomationStatusMessage(intent),
		"is_direct_automation": llm.IsDirectAutomationIntent(intent),
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

var gmailActions = map[string]bool{
	"check_inbox":  true,
	"unread_count": true,
	"search":       true,
	"send":         true,
	"mark_read":    true,
}

func (a *api) gmailAutomation(w http.ResponseWriter, r *http.Request) {
	var req GmailAutomationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !gmailActions[req.Action] {
		writeError(w, http.StatusBadRequest, CodeUnsupportedAction,
			fmt.Sprintf("Unsupported Gmail action: %s", req.Action), nil)
		return
	}

	var email gmail.Email
	if req.Action == "send" {
		email = gmail.Email{
			To:      stringParam(req.Parameters, "to"),
			Subject: stringParam(req.Parameters, "subject"),
			Body:    stringParam(req.Parameters, "body"),
			Cc:      stringParam(req.Parameters, "cc"),
			Bcc:     stringParam(req.Parameters, "bcc"),
		}
		if err := email.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
			return
		}
	}

	if a.Gmail == nil {
		writeError(w, http.StatusUnauthorized, CodeNotAuthenticated, "Gmail is not configured", nil)
		return
	}

	ctx := r.Context()
	svc, err := a.Gmail.Service(ctx)
	if err != nil {
		writeGmailError(w, err)
		return
	}

	result, err := runGmailAction(ctx, svc, req.Action, req.Parameters, email)
	if err != nil {
		a.Gmail.Invalidate(err)
		logging.WithOperation(a.Logger, req.Action).Warn("gmail automation failed", logging.Err(err))
		writeGmailError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"action":  req.Action,
		"result":  result,
	}, http.StatusOK)
}

func runGmailAction(ctx context.Context, svc *gmail.Service, action string, params map[string]any, email gmail.Email) (any, error) {
	switch action {
	case "check_inbox":
		return svc.Inbox(ctx, int64Param(params, "max_results", 10), stringParam(params, "query"))
	case "unread_count":
		return svc.UnreadCount(ctx)
	case "search":
		return svc.Search(ctx, stringParam(params, "query"), int64Param(params, "max_results", 10))
	case "send":
		return svc.Send(ctx, email)
	default:
		return svc.MarkAsRead(ctx, stringSliceParam(params, "message_ids"))
	}
}

func (a *api) gmailAuthStatus(w http.ResponseWriter, r *http.Request) {
	if a.Gmail == nil {
		writeJSON(w, gmail.AuthStatus{
			State:  gmail.StatusNotAuthenticated,
			Status: "Gmail API not authenticated. Please run authentication flow.",
		}, http.StatusOK)
		return
	}
	writeJSON(w, a.Gmail.Status(r.Context()), http.StatusOK)
}

func (a *api) automationHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	logs, err := a.Store.AutomationHistory(r.Context(), sessionID, store.DefaultAutomationHistoryLimit)
	if err != nil {
		a.Logger.Error("failed to load automation history", logging.Session(sessionID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	if logs == nil {
		logs = []store.AutomationLog{}
	}
	writeJSON(w, map[string]any{"automation_history": logs}, http.StatusOK)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceUnavailable,
			fmt.Sprintf("Health check failed: %v", err), nil)
		return
	}

	cfg := a.Config
	gmailStatus := gmailNotAuthenticated
	gmailAuthenticated := a.Gmail != nil && a.Gmail.Authenticated()
	if gmailAuthenticated {
		gmailStatus = gmailAvailable
	}

	writeJSON(w, map[string]any{
		"status": "healthy",
		"store": map[string]string{
			"driver": cfg.StoreDriver,
			"status": "connected",
		},
		"hybrid_ai_system": map[string]any{
			"version":        APIVersion,
			"groq_api_key":   configured(cfg.GroqAPIKey != ""),
			"claude_api_key": configured(cfg.ClaudeAPIKey != ""),
			"groq_model":     cfg.GroqModel,
			"claude_model":   cfg.ClaudeModel,
		},
		"n8n_webhook": configured(a.Webhook != nil && a.Webhook.Configured()),
		"gmail_service": map[string]any{
			"status":        gmailStatus,
			"authenticated": gmailAuthenticated,
		},
	}, http.StatusOK)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "missing"
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func int64Param(params map[string]any, key string, def int64) int64 {
	if v, ok := params[key].(float64); ok && v > 0 {
		return int64(v)
	}
	return def
}

func stringSliceParam(params map[string]any, key string) []string {
	raw, _ := params[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
