package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeCredentials(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	body := fmt.Sprintf(`{"installed":{
		"client_id":"client-id.apps.googleusercontent.com",
		"client_secret":"client-secret",
		"redirect_uris":["http://localhost"],
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":%q}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0400))
	return path
}

type tokenServer struct {
	*httptest.Server
	calls atomic.Int32
	scope string
}

func newTokenServer(t *testing.T, scope string) *tokenServer {
	ts := &tokenServer{scope: scope}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		resp := map[string]any{
			"access_token": fmt.Sprintf("access-%d", n),
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if r.FormValue("grant_type") == "authorization_code" {
			resp["refresh_token"] = "refresh-1"
		}
		if ts.scope != "" {
			resp["scope"] = ts.scope
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestLoadOAuthConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeCredentials(t, dir, "https://oauth2.googleapis.com/token")

	conf, err := LoadOAuthConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "client-id.apps.googleusercontent.com", conf.ClientID)
	assert.Equal(t, Scopes, conf.Scopes)
	assert.Equal(t, "https://oauth2.googleapis.com/token", conf.Endpoint.TokenURL)
}

func TestLoadOAuthConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadOAuthConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not":"oauth"}`), 0600))
	_, err = LoadOAuthConfig(bad)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
	assert.Contains(t, err.Error(), "failed to parse credentials file")
}

func TestNewAuthenticator_MissingCredentials(t *testing.T) {
	dir := t.TempDir()
	_, err := NewAuthenticator(filepath.Join(dir, "credentials.json"), filepath.Join(dir, "token.json"), nil, nil)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestAuthenticator_AuthCodeURL(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAuthenticator(writeCredentials(t, dir, "https://oauth2.googleapis.com/token"), filepath.Join(dir, "token.json"), nil, nil)
	require.NoError(t, err)

	raw := a.AuthCodeURL("state-123", "http://127.0.0.1:8085/callback")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "http://127.0.0.1:8085/callback", q.Get("redirect_uri"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, strings.Join(Scopes, " "), q.Get("scope"))
}

func TestAuthenticator_Exchange(t *testing.T) {
	server := newTokenServer(t, strings.Join(Scopes, " "))
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	credPath := writeCredentials(t, dir, server.URL)

	a, err := NewAuthenticator(credPath, tokenPath, nil, nil)
	require.NoError(t, err)
	assert.False(t, a.HasToken())

	tok, err := a.Exchange(context.Background(), "code-1", "http://127.0.0.1:8085/callback")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.True(t, a.HasToken())

	stored, err := LoadToken(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored.RefreshToken)

	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	credInfo, err := os.Stat(credPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0400), credInfo.Mode().Perm(), "credentials file must not be rewritten")
}

func TestAuthenticator_Exchange_ScopeMismatch(t *testing.T) {
	server := newTokenServer(t, "https://www.googleapis.com/auth/gmail.readonly")
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")

	a, err := NewAuthenticator(writeCredentials(t, dir, server.URL), tokenPath, nil, nil)
	require.NoError(t, err)

	_, err = a.Exchange(context.Background(), "code-1", "")
	assert.ErrorIs(t, err, ErrInsufficientScope)
	assert.False(t, a.HasToken())
}

func TestAuthenticator_TokenSource(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		dir := t.TempDir()
		a, err := NewAuthenticator(writeCredentials(t, dir, "http://127.0.0.1:1/token"), filepath.Join(dir, "token.json"), nil, nil)
		require.NoError(t, err)

		_, err = a.TokenSource(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		dir := t.TempDir()
		tokenPath := filepath.Join(dir, "token.json")
		require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}))

		a, err := NewAuthenticator(writeCredentials(t, dir, "http://127.0.0.1:1/token"), tokenPath, nil, nil)
		require.NoError(t, err)

		_, err = a.TokenSource(context.Background())
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("valid token is reused", func(t *testing.T) {
		server := newTokenServer(t, "")
		dir := t.TempDir()
		tokenPath := filepath.Join(dir, "token.json")
		require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "current", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}))

		a, err := NewAuthenticator(writeCredentials(t, dir, server.URL), tokenPath, nil, nil)
		require.NoError(t, err)

		ts, err := a.TokenSource(context.Background())
		require.NoError(t, err)
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "current", tok.AccessToken)
		assert.Equal(t, int32(0), server.calls.Load())
	})

	t.Run("expired token is refreshed and persisted", func(t *testing.T) {
		server := newTokenServer(t, "")
		dir := t.TempDir()
		tokenPath := filepath.Join(dir, "token.json")
		require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}))

		a, err := NewAuthenticator(writeCredentials(t, dir, server.URL), tokenPath, nil, nil)
		require.NoError(t, err)

		ts, err := a.TokenSource(context.Background())
		require.NoError(t, err)
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "access-1", tok.AccessToken)

		stored, err := LoadToken(tokenPath)
		require.NoError(t, err)
		assert.Equal(t, "access-1", stored.AccessToken)
		assert.Equal(t, "r", stored.RefreshToken, "refresh token is kept when the response omits it")
	})

	t.Run("revoked grant", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
		}))
		defer server.Close()

		dir := t.TempDir()
		tokenPath := filepath.Join(dir, "token.json")
		require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}))

		a, err := NewAuthenticator(writeCredentials(t, dir, server.URL), tokenPath, nil, nil)
		require.NoError(t, err)

		ts, err := a.TokenSource(context.Background())
		require.NoError(t, err)
		_, err = ts.Token()
		assert.ErrorIs(t, err, ErrAuthFailed)

		var retrieveErr *oauth2.RetrieveError
		assert.True(t, errors.As(err, &retrieveErr))
	})
}

func TestAuthenticator_HTTPClient(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "current", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}))

	a, err := NewAuthenticator(writeCredentials(t, dir, "http://127.0.0.1:1/token"), tokenPath, nil, nil)
	require.NoError(t, err)

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer api.Close()

	client, err := a.HTTPClient(context.Background())
	require.NoError(t, err)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer current", gotAuth)
}
