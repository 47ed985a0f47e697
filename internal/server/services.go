package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/elva-ai/elva/internal/automation"
	"github.com/elva-ai/elva/internal/config"
	"github.com/elva-ai/elva/internal/gmail"
	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/llm"
	"github.com/elva-ai/elva/internal/store"
	"github.com/elva-ai/elva/internal/webhook"
)

// ChatRouter turns a chat message into intent data and a reply.
type ChatRouter interface {
	Process(ctx context.Context, sessionID, message string) (map[string]any, string, llm.RoutingDecision, error)
	Stats(sessionID string) llm.RoutingStats
	Reset(sessionID string)
}

// Automator runs direct automation intents.
type Automator interface {
	Process(ctx context.Context, sessionID string, intentData map[string]any) automation.Result
}

// GmailProvider hands out the authenticated Gmail service.
type GmailProvider interface {
	Service(ctx context.Context) (*gmail.Service, error)
	Status(ctx context.Context) gmail.AuthStatus
	Authenticated() bool
	Invalidate(err error) bool
}

// Relay delivers approved actions to the workflow webhook.
type Relay interface {
	SendApprovedAction(ctx context.Context, data map[string]any, userID, sessionID string) webhook.Response
	Configured() bool
}

// Dependencies are the collaborators of the HTTP handlers.
type Dependencies struct {
	Config     *config.Config
	Store      store.Store
	Router     ChatRouter
	Automation Automator
	Gmail      GmailProvider
	Webhook    Relay

	// Metrics and Audit may be nil.
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Services holds the dependencies shared by the HTTP handlers and tracks
// the server lifetime.
type Services struct {
	Dependencies

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	shutdown bool
}

// NewServices returns a Services bound to ctx. Shutdown cancels the
// derived context.
func NewServices(ctx context.Context, deps Dependencies) *Services {
	shutdownCtx, cancel := context.WithCancel(ctx)
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config == nil {
		deps.Config = &config.Config{}
	}
	return &Services{
		Dependencies: deps,
		ctx:          shutdownCtx,
		cancel:       cancel,
	}
}

// Context returns the server lifetime context.
func (s *Services) Context() context.Context {
	return s.ctx
}

// IsShutdown reports whether Shutdown has been called.
func (s *Services) IsShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shutdown
}

// Shutdown marks the services as stopping and cancels the lifetime context.
func (s *Services) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return
	}
	s.shutdown = true
	s.cancel()
}
