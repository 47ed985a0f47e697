package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/elva-ai/elva/internal/logging"
)

// ApprovalAudit captures a user's decision on an action that needs approval
// and, when approved, the outcome of relaying it to the webhook.
type ApprovalAudit struct {
	MessageID string
	SessionID string
	UserID    string
	Intent    string

	Approved bool
	Edited   bool

	// WebhookStatus is the HTTP status returned by the webhook, 0 if not sent.
	WebhookStatus int

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewApprovalAudit starts timing an approval decision.
func NewApprovalAudit(messageID, sessionID, userID string) *ApprovalAudit {
	return &ApprovalAudit{
		MessageID: messageID,
		SessionID: sessionID,
		UserID:    userID,
		StartTime: time.Now(),
	}
}

// WithDecision records the approval decision and the intent it applies to.
func (a *ApprovalAudit) WithDecision(intent string, approved, edited bool) *ApprovalAudit {
	a.Intent = intent
	a.Approved = approved
	a.Edited = edited
	return a
}

// WithSpanContext extracts trace context from the current span.
func (a *ApprovalAudit) WithSpanContext(ctx context.Context) *ApprovalAudit {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		a.TraceID = sc.TraceID().String()
		a.SpanID = sc.SpanID().String()
	}
	return a
}

// Complete marks the audit entry finished.
func (a *ApprovalAudit) Complete(success bool, webhookStatus int, err error) *ApprovalAudit {
	a.Duration = time.Since(a.StartTime)
	a.Success = success
	a.WebhookStatus = webhookStatus
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// Status returns "success" or "error" based on the Success field.
func (a *ApprovalAudit) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the entry. The user id is replaced
// by an anonymized hash unless includePII is set.
func (a *ApprovalAudit) LogAttrs(includePII bool) []slog.Attr {
	user := logging.AnonymizeEmail(a.UserID)
	if includePII {
		user = a.UserID
	}

	attrs := []slog.Attr{
		slog.String("message_id", a.MessageID),
		logging.Session(a.SessionID),
		slog.String("user", user),
		logging.Intent(a.Intent),
		slog.Bool("approved", a.Approved),
		slog.Bool("edited", a.Edited),
		slog.Duration(logging.KeyDuration, a.Duration),
		slog.Bool("success", a.Success),
	}
	if a.WebhookStatus != 0 {
		attrs = append(attrs, slog.Int("webhook_status", a.WebhookStatus))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID), slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, a.Error))
	}
	return attrs
}

// AuditLogger writes approval audit entries to a dedicated logger.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger means slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogApproval writes one audit entry. Rejections and failed deliveries
// are logged at warn level.
func (al *AuditLogger) LogApproval(a *ApprovalAudit) {
	if al == nil || !al.enabled {
		return
	}

	attrs := a.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	switch {
	case !a.Approved:
		al.logger.Warn("action_rejected", args...)
	case a.Success:
		al.logger.Info("action_approved", args...)
	default:
		al.logger.Warn("action_failed", args...)
	}
}
