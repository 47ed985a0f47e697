package gmail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/elva-ai/elva/internal/google"
)

// Auth status values reported by Provider.Status.
const (
	StatusConnected         = "connected"
	StatusNotAuthenticated  = "not_authenticated"
	StatusCredentialsAbsent = "credentials_missing"
	StatusAuthFailed        = "auth_failed"
	StatusError             = "error"
)

// AuthStatus describes whether Gmail is usable.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	EmailAddress  string `json:"email_address,omitempty"`
	State         string `json:"state"`
	Status        string `json:"status"`
	Remediation   string `json:"remediation,omitempty"`
}

// Provider authenticates lazily and caches the resulting Service.
// Failed attempts are not cached, so a token created later by
// 'elva auth' is picked up on the next call.
type Provider struct {
	connect func(ctx context.Context) (API, error)
	opts    Options

	mu  sync.Mutex
	svc *Service
}

// NewProvider returns a Provider that reads the OAuth client descriptor
// and token from the given paths on first use.
func NewProvider(credentialsPath, tokenPath string, opts Options) *Provider {
	return &Provider{
		opts: opts,
		connect: func(ctx context.Context) (API, error) {
			auth, err := google.NewAuthenticator(credentialsPath, tokenPath, opts.Metrics, opts.Logger)
			if err != nil {
				return nil, err
			}
			// The token source outlives the request that triggered it.
			client, err := auth.HTTPClient(context.WithoutCancel(ctx))
			if err != nil {
				return nil, err
			}
			svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
			if err != nil {
				return nil, fmt.Errorf("failed to create Gmail service: %w", err)
			}
			return NewAPI(svc), nil
		},
	}
}

// NewProviderFromAPI returns a Provider that always uses api.
func NewProviderFromAPI(api API, opts Options) *Provider {
	return &Provider{
		opts:    opts,
		connect: func(context.Context) (API, error) { return api, nil },
	}
}

// Service returns the cached Service, authenticating first if needed.
func (p *Provider) Service(ctx context.Context) (*Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.svc != nil {
		return p.svc, nil
	}

	api, err := p.connect(ctx)
	if err != nil {
		return nil, google.Classify(err)
	}
	p.svc = NewService(api, p.opts)
	return p.svc, nil
}

// Authenticated reports whether a Service has been established.
func (p *Provider) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.svc != nil
}

// Reset drops the cached Service so the next call re-authenticates.
func (p *Provider) Reset() {
	p.mu.Lock()
	p.svc = nil
	p.mu.Unlock()
}

// Invalidate drops the cached Service when err shows that its token was
// rejected, so a token re-issued by 'elva auth' is loaded on the next call.
// It reports whether the Service was dropped.
func (p *Provider) Invalidate(err error) bool {
	if !errors.Is(err, google.ErrAuthFailed) && !errors.Is(err, google.ErrInsufficientScope) {
		return false
	}
	p.Reset()
	return true
}

// Status authenticates if needed and reads the mailbox profile.
func (p *Provider) Status(ctx context.Context) AuthStatus {
	svc, err := p.Service(ctx)
	if err != nil {
		return failedStatus(err)
	}

	profile, err := svc.Profile(ctx)
	if err != nil {
		p.Invalidate(err)
		return failedStatus(err)
	}

	return AuthStatus{
		Authenticated: true,
		EmailAddress:  profile.EmailAddress,
		State:         StatusConnected,
		Status:        "Connected to Gmail API",
	}
}

func failedStatus(err error) AuthStatus {
	st := AuthStatus{Remediation: google.Remediation(err)}
	switch {
	case errors.Is(err, google.ErrNotAuthenticated):
		st.State = StatusNotAuthenticated
		st.Status = "Gmail API not authenticated. Please run authentication flow."
	case errors.Is(err, google.ErrCredentialsNotFound):
		st.State = StatusCredentialsAbsent
		st.Status = "Gmail credentials file not found."
	case errors.Is(err, google.ErrAuthFailed), errors.Is(err, google.ErrInsufficientScope):
		st.State = StatusAuthFailed
		st.Status = fmt.Sprintf("Authentication check failed: %v", err)
	default:
		st.State = StatusError
		st.Status = fmt.Sprintf("Authentication check failed: %v", err)
	}
	return st
}
