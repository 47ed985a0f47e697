package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/logging"
)

// LoadToken reads a JSON encoded oauth2.Token from path.
// A missing file yields ErrNotAuthenticated.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no token at %s", ErrNotAuthenticated, path)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: token file %s is malformed: %v", ErrAuthFailed, path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path atomically with mode 0600.
func SaveToken(path string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token is nil")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// persistingTokenSource writes refreshed tokens back to disk.
type persistingTokenSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	path    string
	last    string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(context.Background(), instrumentation.OAuthResultFailure)
		return nil, Classify(err)
	}

	if tok.AccessToken != s.last {
		s.metrics.RecordOAuthTokenRefresh(context.Background(), instrumentation.OAuthResultSuccess)
		if err := SaveToken(s.path, tok); err != nil {
			// The refreshed token is still usable for this process.
			s.logger.Warn("failed to persist refreshed token", logging.Err(err))
		} else {
			s.logger.Debug("refreshed token persisted", slog.Time("expiry", tok.Expiry))
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
