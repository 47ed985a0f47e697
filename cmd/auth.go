package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/elva-ai/elva/internal/google"
	"github.com/elva-ai/elva/internal/logging"
)

const (
	defaultAuthPort = 8085
	authWaitTimeout = 5 * time.Minute
)

type authResult struct {
	code string
	err  error
}

func newAuthCmd() *cobra.Command {
	var (
		port   int
		manual bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the OAuth token",
		Long: `Run the installed-app OAuth flow for the client in GMAIL_CREDENTIALS_PATH
and write the resulting token to GMAIL_TOKEN_PATH (mode 0600).

By default a loopback listener on 127.0.0.1:<port> receives the redirect.
With --manual, open the printed URL, approve access, and paste the code
(or the full redirect URL) back into the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			auth, err := google.NewAuthenticator(cfg.GmailCredentialsPath, cfg.GmailTokenPath, nil, logger)
			if err != nil {
				return fmt.Errorf("%w\n%s", err, google.Remediation(err))
			}
			if auth.HasToken() && !force {
				return fmt.Errorf("token already exists at %s; use --force to replace it", auth.TokenPath())
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			redirectURL := fmt.Sprintf("http://127.0.0.1:%d/", port)
			state := uuid.NewString()
			authURL := auth.AuthCodeURL(state, redirectURL)

			out := cmd.OutOrStdout()
			var code string
			if manual {
				code, err = readCodeManually(ctx, out, cmd.InOrStdin(), authURL, state)
			} else {
				code, err = waitForCallback(ctx, out, logger, port, authURL, state)
			}
			if err != nil {
				return err
			}

			if _, err := auth.Exchange(ctx, code, redirectURL); err != nil {
				return fmt.Errorf("%w\n%s", err, google.Remediation(err))
			}
			fmt.Fprintf(out, "✓ Gmail token saved to %s\n", auth.TokenPath())
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", defaultAuthPort, "Loopback port for the OAuth redirect")
	cmd.Flags().BoolVar(&manual, "manual", false, "Paste the authorization code instead of running a loopback listener")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing token")

	return cmd
}

func waitForCallback(ctx context.Context, out io.Writer, logger *slog.Logger, port int, authURL, state string) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("failed to listen on loopback port %d: %w", port, err)
	}

	results := make(chan authResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("oauth callback server failed", logging.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Open this URL in your browser to authorize Gmail access:\n\n  %s\n\nWaiting for the redirect on %s ...\n", authURL, ln.Addr())

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("authorization cancelled: %w", ctx.Err())
	case <-time.After(authWaitTimeout):
		return "", fmt.Errorf("timed out after %s waiting for authorization", authWaitTimeout)
	}
}

// callbackHandler accepts a single OAuth redirect and reports it on results.
func callbackHandler(state string, results chan<- authResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, err := codeFromQuery(r.URL.Query(), state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "Authorization complete. You can close this window and return to the terminal.\n")
		}
		select {
		case results <- authResult{code: code, err: err}:
		default:
		}
	})
}

func readCodeManually(ctx context.Context, out io.Writer, in io.Reader, authURL, state string) (string, error) {
	fmt.Fprintf(out, "Open this URL in your browser to authorize Gmail access:\n\n  %s\n\n", authURL)
	fmt.Fprint(out, "The browser will fail to load the redirect page. Paste its URL (or just the code) here: ")

	lines := make(chan authResult, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			lines <- authResult{err: fmt.Errorf("failed to read authorization code: %w", err)}
			return
		}
		code, err := extractCode(line, state)
		lines <- authResult{code: code, err: err}
	}()

	select {
	case res := <-lines:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("authorization cancelled: %w", ctx.Err())
	}
}

// extractCode accepts either a bare authorization code or the redirect URL
// carrying it. A URL must carry the expected state.
func extractCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no authorization code entered")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	raw := input
	if i := strings.Index(raw, "?"); i >= 0 {
		raw = raw[i+1:]
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	return codeFromQuery(q, state)
}

func codeFromQuery(q url.Values, state string) (string, error) {
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: authorization denied: %s", google.ErrAuthFailed, e)
	}
	if q.Get("state") != state {
		return "", errors.New("state mismatch in OAuth redirect")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("OAuth redirect did not include a code")
	}
	return code, nil
}
