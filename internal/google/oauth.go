package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/logging"
)

// LoadOAuthConfig reads the OAuth client descriptor (installed or web) at
// credentialsPath and returns a config requesting Scopes.
func LoadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, credentialsPath)
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	conf, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", credentialsPath, err)
	}
	return conf, nil
}

// Authenticator runs the installed-app OAuth flow and hands out token
// sources backed by the token file.
type Authenticator struct {
	credentialsPath string
	tokenPath       string
	config          *oauth2.Config
	metrics         *instrumentation.Metrics
	logger          *slog.Logger
}

// NewAuthenticator loads the client descriptor. metrics may be nil.
func NewAuthenticator(credentialsPath, tokenPath string, metrics *instrumentation.Metrics, logger *slog.Logger) (*Authenticator, error) {
	conf, err := LoadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		config:          conf,
		metrics:         metrics,
		logger:          logging.WithService(logger, instrumentation.ServiceGmail),
	}, nil
}

// TokenPath returns the path the token is persisted to.
func (a *Authenticator) TokenPath() string {
	return a.tokenPath
}

// HasToken reports whether a token file exists.
func (a *Authenticator) HasToken() bool {
	_, err := os.Stat(a.tokenPath)
	return err == nil
}

func (a *Authenticator) configFor(redirectURL string) *oauth2.Config {
	conf := *a.config
	if redirectURL != "" {
		conf.RedirectURL = redirectURL
	}
	return &conf
}

// AuthCodeURL returns the consent page URL. Offline access is requested so
// the grant includes a refresh token.
func (a *Authenticator) AuthCodeURL(state, redirectURL string) string {
	return a.configFor(redirectURL).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it.
func (a *Authenticator) Exchange(ctx context.Context, code, redirectURL string) (*oauth2.Token, error) {
	tok, err := a.configFor(redirectURL).Exchange(ctx, code)
	if err != nil {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, Classify(fmt.Errorf("failed to exchange auth code: %w", err))
	}

	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		if err := ValidateScopes(strings.Fields(granted)); err != nil {
			a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
			return nil, err
		}
	}

	if err := SaveToken(a.tokenPath, tok); err != nil {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}

	a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	a.logger.Info("gmail token stored", slog.String("path", a.tokenPath))
	return tok, nil
}

// TokenSource returns a token source that refreshes when needed and writes
// refreshed tokens back to the token path.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := LoadToken(a.tokenPath)
	if err != nil {
		return nil, err
	}

	if !tok.Valid() && tok.RefreshToken == "" {
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
		return nil, fmt.Errorf("%w: token expired and has no refresh token", ErrAuthFailed)
	}

	return &persistingTokenSource{
		base:    oauth2.ReuseTokenSource(tok, a.config.TokenSource(ctx, tok)),
		path:    a.tokenPath,
		last:    tok.AccessToken,
		metrics: a.metrics,
		logger:  a.logger,
	}, nil
}

// HTTPClient returns an HTTP client authorized with the stored token.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	return client, nil
}
