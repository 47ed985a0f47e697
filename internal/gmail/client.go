package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/elva-ai/elva/internal/google"
	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/logging"
)

const (
	defaultMaxResults = 10
	inboxQuery        = "in:inbox"
	unreadQuery       = "is:unread in:inbox"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	// Limiter gates every API call. Defaults to 10 requests per second, burst 5.
	Limiter *rate.Limiter
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Service performs Gmail operations on behalf of the authenticated user.
type Service struct {
	api     API
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewService creates a Service backed by api.
func NewService(api API, opts Options) *Service {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(10, 5)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		api:     api,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		logger:  logging.WithService(opts.Logger, instrumentation.ServiceGmail),
	}
}

// call waits for the limiter, then runs fn inside a span and records the
// outcome. Errors are classified.
func (s *Service) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gmail rate limiter: %w", err)
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		err = google.Classify(err)
		instrumentation.SetSpanError(span, err)
		s.logger.Debug("gmail call failed", logging.Operation(operation), logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
	return err
}

func (s *Service) list(ctx context.Context, query string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	var res *gmail.ListMessagesResponse
	err := s.call(ctx, "list", func(ctx context.Context) error {
		var err error
		res, err = s.api.ListMessages(ctx, query, maxResults)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return res, nil
}

// summaries fetches every listed message in full. Messages that fail to
// load are skipped.
func (s *Service) summaries(ctx context.Context, refs []*gmail.Message) []MessageSummary {
	out := make([]MessageSummary, 0, len(refs))
	for _, ref := range refs {
		var msg *gmail.Message
		err := s.call(ctx, "get", func(ctx context.Context) error {
			var err error
			msg, err = s.api.GetMessage(ctx, ref.Id)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Warn("failed to get message details",
				slog.String("message_id", ref.Id),
				logging.Err(err))
			continue
		}
		out = append(out, Summarize(msg))
	}
	return out
}

// Inbox lists up to maxResults messages matching query, "in:inbox" by default.
func (s *Service) Inbox(ctx context.Context, maxResults int64, query string) (*InboxResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if query == "" {
		query = inboxQuery
	}

	res, err := s.list(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if len(res.Messages) == 0 {
		return &InboxResult{
			Messages: []MessageSummary{},
			Message:  "No messages found in inbox",
		}, nil
	}

	msgs := s.summaries(ctx, res.Messages)
	return &InboxResult{
		Messages:     msgs,
		Count:        len(msgs),
		TotalInInbox: res.ResultSizeEstimate,
		Message:      fmt.Sprintf("Retrieved %d messages from inbox", len(msgs)),
	}, nil
}

// UnreadCount returns the estimated number of unread inbox messages.
func (s *Service) UnreadCount(ctx context.Context) (*UnreadResult, error) {
	res, err := s.list(ctx, unreadQuery, 0)
	if err != nil {
		return nil, err
	}
	return &UnreadResult{
		UnreadCount: res.ResultSizeEstimate,
		Message:     fmt.Sprintf("You have %d unread messages", res.ResultSizeEstimate),
	}, nil
}

// Search runs a Gmail search query.
func (s *Service) Search(ctx context.Context, query string, maxResults int64) (*SearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	res, err := s.list(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if len(res.Messages) == 0 {
		return &SearchResult{
			Messages: []MessageSummary{},
			Query:    query,
			Message:  fmt.Sprintf("No messages found for query: %s", query),
		}, nil
	}

	msgs := s.summaries(ctx, res.Messages)
	return &SearchResult{
		Messages: msgs,
		Count:    len(msgs),
		Query:    query,
		Message:  fmt.Sprintf("Found %d messages for query: %s", len(msgs), query),
	}, nil
}

// Send sends a plain text email.
func (s *Service) Send(ctx context.Context, e Email) (*SendResult, error) {
	raw, err := buildRawMessage(e)
	if err != nil {
		return nil, err
	}

	var sent *gmail.Message
	err = s.call(ctx, "send", func(ctx context.Context) error {
		var err error
		sent, err = s.api.SendMessage(ctx, &gmail.Message{Raw: raw})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("message_id", sent.Id), logging.Domain(e.To))
	return &SendResult{
		MessageID: sent.Id,
		Message:   fmt.Sprintf("Email sent successfully to %s", e.To),
	}, nil
}

// MarkAsRead removes the UNREAD label from ids in one batch call.
func (s *Service) MarkAsRead(ctx context.Context, ids []string) (*MarkReadResult, error) {
	if len(ids) == 0 {
		return &MarkReadResult{Message: "No messages to mark as read"}, nil
	}

	err := s.call(ctx, "batch_modify", func(ctx context.Context) error {
		return s.api.BatchModify(ctx, &gmail.BatchModifyMessagesRequest{
			Ids:            ids,
			RemoveLabelIds: []string{labelUnread},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages as read: %w", err)
	}

	return &MarkReadResult{Message: fmt.Sprintf("Marked %d messages as read", len(ids))}, nil
}

// Profile returns the authenticated mailbox profile.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	var p *gmail.Profile
	err := s.call(ctx, "profile", func(ctx context.Context) error {
		var err error
		p, err = s.api.GetProfile(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
		HistoryID:     p.HistoryId,
	}, nil
}
