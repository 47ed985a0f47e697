// Package automation runs direct automation intents, which execute as soon
// as they are detected instead of waiting for the user's approval.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elva-ai/elva/internal/gmail"
	"github.com/elva-ai/elva/internal/google"
	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/llm"
	"github.com/elva-ai/elva/internal/logging"
	"github.com/elva-ai/elva/internal/store"
)

// Automation types recorded in the automation log.
const (
	TypeLinkedIn       = "linkedin_insights"
	TypePriceMonitor   = "price_monitoring"
	TypeDataExtraction = "data_extraction"
	TypeWebScraping    = "web_scraping"
	TypeGmail          = "gmail_integration"
)

// ErrBrowserUnavailable is reported for automations that need a headless browser.
var ErrBrowserUnavailable = errors.New("browser automation is not available")

const gmailAuthFailedMessage = "Gmail authentication failed. Please set up Gmail API credentials."

type template struct {
	automationType string
	// failure is the error message prefix. {field} placeholders are filled
	// from the intent data.
	failure string
}

var templates = map[string]template{
	llm.IntentLinkedInNotif: {TypeLinkedIn, "Unable to check LinkedIn notifications"},
	llm.IntentJobAlerts:     {TypeLinkedIn, "Unable to check job alerts"},
	llm.IntentScrapePrice:   {TypePriceMonitor, "Unable to find price for {product}"},
	llm.IntentProductList:   {TypeDataExtraction, "Unable to scrape product listings"},
	llm.IntentCompetitors:   {TypeDataExtraction, "Unable to monitor competitor data"},
	llm.IntentWebsiteUpdate: {TypeWebScraping, "Unable to check website updates"},
	llm.IntentNews:          {TypeWebScraping, "Unable to scrape news articles"},
	llm.IntentCheckInbox:    {TypeGmail, "Unable to check Gmail inbox"},
	llm.IntentUnreadCount:   {TypeGmail, "Unable to get unread count"},
}

// placeholderDefaults fill {field} placeholders missing from the intent data.
var placeholderDefaults = map[string]string{
	"product": "Unknown Product",
}

// Result is the outcome of one direct automation.
type Result struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	ExecutionTime    float64        `json:"execution_time"`
	Data             map[string]any `json:"data"`
	AutomationIntent string         `json:"automation_intent,omitempty"`
}

// GmailProvider hands out an authenticated Gmail service.
type GmailProvider interface {
	Service(ctx context.Context) (*gmail.Service, error)
	Invalidate(err error) bool
}

// Handler executes direct automation intents and records every run.
type Handler struct {
	gmail   GmailProvider
	store   store.Store
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler. mail and st may be nil; Gmail intents then
// fail with the authentication message and runs are not logged.
func NewHandler(mail GmailProvider, st store.Store, metrics *instrumentation.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gmail:   mail,
		store:   st,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "automation")),
	}
}

// Process runs the automation for intentData's intent.
func (h *Handler) Process(ctx context.Context, sessionID string, intentData map[string]any) Result {
	intent := llm.IntentOf(intentData)
	tmpl, ok := templates[intent]
	if !ok {
		return Result{
			Message: fmt.Sprintf("❌ Unknown automation intent: %s", intent),
			Data:    map[string]any{},
		}
	}

	ctx, span := instrumentation.StartSpan(ctx, "automation.process",
		instrumentation.NewSpanAttributeBuilder().
			WithSession(sessionID).
			WithIntent(intent).
			Build()...)
	defer span.End()

	logger := h.logger.With(logging.Session(sessionID), logging.Intent(intent))
	logger.Info("processing direct automation")

	start := time.Now()
	data, message, err := h.run(ctx, intent, intentData)
	if err != nil && h.gmail != nil && h.gmail.Invalidate(err) {
		logger.Info("dropped cached gmail service after token rejection")
	}
	result := Result{
		Success:          err == nil,
		ExecutionTime:    time.Since(start).Seconds(),
		Data:             data,
		AutomationIntent: intent,
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		result.Message = fmt.Sprintf("❌ %s: %s", expand(tmpl.failure, intentData), err)
		result.Data = map[string]any{}
		instrumentation.SetSpanError(span, err)
		logger.Warn("direct automation failed", logging.Err(err))
	} else {
		result.Message = message
		instrumentation.SetSpanSuccess(span)
		logger.Info("direct automation completed", slog.Float64("execution_time", result.ExecutionTime))
	}
	h.metrics.RecordAutomationRun(ctx, intent, status)

	h.record(ctx, logger, sessionID, tmpl.automationType, intent, intentData, result)
	return result
}

func (h *Handler) run(ctx context.Context, intent string, intentData map[string]any) (map[string]any, string, error) {
	switch intent {
	case llm.IntentCheckInbox:
		return h.checkInbox(ctx, intentData)
	case llm.IntentUnreadCount:
		return h.unreadCount(ctx)
	default:
		return nil, "", ErrBrowserUnavailable
	}
}

func (h *Handler) service(ctx context.Context) (*gmail.Service, error) {
	if h.gmail == nil {
		return nil, errors.New(gmailAuthFailedMessage)
	}
	svc, err := h.gmail.Service(ctx)
	if err != nil {
		h.logger.Warn("gmail authentication failed",
			logging.Err(err),
			slog.String("remediation", google.Remediation(err)))
		return nil, errors.New(gmailAuthFailedMessage)
	}
	return svc, nil
}

func (h *Handler) checkInbox(ctx context.Context, intentData map[string]any) (map[string]any, string, error) {
	svc, err := h.service(ctx)
	if err != nil {
		return nil, "", err
	}

	query, _ := intentData["query"].(string)
	res, err := svc.Inbox(ctx, intParam(intentData, "max_results", 10), query)
	if err != nil {
		return nil, "", err
	}

	data := map[string]any{
		"count":          res.Count,
		"messages":       res.Messages,
		"total_in_inbox": res.TotalInInbox,
	}
	return data, FormatInbox(res), nil
}

func (h *Handler) unreadCount(ctx context.Context) (map[string]any, string, error) {
	svc, err := h.service(ctx)
	if err != nil {
		return nil, "", err
	}

	res, err := svc.UnreadCount(ctx)
	if err != nil {
		return nil, "", err
	}
	return map[string]any{"unread_count": res.UnreadCount}, FormatUnread(res), nil
}

func (h *Handler) record(ctx context.Context, logger *slog.Logger, sessionID, automationType, intent string, params map[string]any, result Result) {
	if h.store == nil {
		return
	}
	err := h.store.SaveAutomationLog(ctx, &store.AutomationLog{
		SessionID:      sessionID,
		AutomationType: automationType,
		Intent:         intent,
		Parameters:     params,
		Result:         result.Data,
		Success:        result.Success,
		Message:        result.Message,
		ExecutionTime:  result.ExecutionTime,
	})
	if err != nil {
		logger.Warn("failed to save automation log", logging.Err(err))
	}
}

// expand replaces {field} placeholders with values from data.
func expand(tmpl string, data map[string]any) string {
	var sb strings.Builder
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			break
		}
		end += start

		key := tmpl[start+1 : end]
		value := placeholderDefaults[key]
		if v, ok := data[key]; ok && v != nil && v != "" {
			value = fmt.Sprint(v)
		}
		sb.WriteString(tmpl[:start])
		sb.WriteString(value)
		tmpl = tmpl[end+1:]
	}
	sb.WriteString(tmpl)
	return sb.String()
}

// intParam reads a JSON number from data, falling back to def.
func intParam(data map[string]any, key string, def int64) int64 {
	switch v := data[key].(type) {
	case float64:
		if v > 0 {
			return int64(v)
		}
	case int:
		if v > 0 {
			return int64(v)
		}
	case int64:
		if v > 0 {
			return v
		}
	}
	return def
}
