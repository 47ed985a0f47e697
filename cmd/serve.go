package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/elva-ai/elva/internal/automation"
	"github.com/elva-ai/elva/internal/config"
	"github.com/elva-ai/elva/internal/gmail"
	"github.com/elva-ai/elva/internal/instrumentation"
	"github.com/elva-ai/elva/internal/llm"
	"github.com/elva-ai/elva/internal/logging"
	"github.com/elva-ai/elva/internal/server"
	"github.com/elva-ai/elva/internal/store"
	"github.com/elva-ai/elva/internal/webhook"
)

const (
	storeConnectTimeout = 15 * time.Second
	gmailCheckTimeout   = 10 * time.Second
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// ServeOptions are the serve flags after environment fallbacks.
type ServeOptions struct {
	HTTPAddr    string
	CORSOrigins []string
	Metrics     MetricsConfig
}

func newServeCmd() *cobra.Command {
	var (
		httpAddr       string
		corsOrigins    string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the Elva AI HTTP API.

Required environment:
  MONGO_URL, DB_NAME, GROQ_API_KEY, CLAUDE_API_KEY, N8N_WEBHOOK_URL

Gmail:
  GMAIL_CREDENTIALS_PATH and GMAIL_TOKEN_PATH locate the OAuth client and
  token. A missing token is not fatal; Gmail endpoints report
  not-authenticated until 'elva auth' has been run.

Storage:
  STORE_DRIVER selects mongo (default), sqlite (SQLITE_PATH) or memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := ServeOptions{
				HTTPAddr:    httpAddr,
				CORSOrigins: parseCommaSeparatedList(corsOrigins),
				Metrics: MetricsConfig{
					Enabled: metricsEnabled,
					Addr:    metricsAddr,
				},
			}
			loadMetricsEnvVars(cmd, &opts.Metrics)

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") || cfg.HTTPAddr == "" {
				cfg.HTTPAddr = opts.HTTPAddr
			}
			if len(opts.CORSOrigins) > 0 {
				cfg.CORSAllowedOrigins = opts.CORSOrigins
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runServe(cmd.Context(), cfg, opts.Metrics, logger)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP API address. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins. Overrides CORS_ALLOWED_ORIGINS.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics", false, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, metricsConfig MetricsConfig, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := provider.Metrics()

	connectCtx, connectCancel := context.WithTimeout(shutdownCtx, storeConnectTimeout)
	st, err := store.Open(connectCtx, cfg)
	connectCancel()
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return err
	}
	logger.Info("store opened", slog.String("driver", cfg.StoreDriver))

	router := llm.NewRouter(
		llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, llm.WithMetrics(metrics)),
		llm.NewClaudeClient(cfg.ClaudeAPIKey, cfg.ClaudeModel, llm.WithMetrics(metrics)),
		logger,
	)

	mail := gmail.NewProvider(cfg.GmailCredentialsPath, cfg.GmailTokenPath, gmail.Options{
		Limiter: rate.NewLimiter(rate.Limit(cfg.GmailRateLimit), cfg.GmailRateBurst),
		Metrics: metrics,
		Logger:  logger,
	})
	checkGmail(shutdownCtx, mail, logger)

	services := server.NewServices(shutdownCtx, server.Dependencies{
		Config:     cfg,
		Store:      st,
		Router:     router,
		Automation: automation.NewHandler(mail, st, metrics, logger),
		Gmail:      mail,
		Webhook:    webhook.NewClient(cfg.N8NWebhookURL, webhook.WithMetrics(metrics), webhook.WithLogger(logger)),
		Metrics:    metrics,
		Audit:      instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
		Logger:     logger,
	})

	httpServer := server.NewHTTPServer(server.HTTPConfig{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, services)

	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return errors.Join(fmt.Errorf("failed to create metrics server: %w", err), st.Close(), provider.Shutdown(context.Background()))
		}
	}

	serverDone := make(chan error, 2)
	go func() { serverDone <- httpServer.Start() }()
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(); err != nil {
				serverDone <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	logger.Info("elva started",
		slog.String("version", version),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.Bool("metrics", metricsServer != nil))

	var runErr error
	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping servers")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("server stopped with error: %w", err)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer stopCancel()

	errs := []error{runErr}
	if err := httpServer.Shutdown(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}
	if err := st.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing store: %w", err))
	}
	if err := provider.Shutdown(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("error during instrumentation shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("elva stopped")
	return nil
}

// checkGmail logs whether Gmail is usable. Failures are not fatal.
func checkGmail(ctx context.Context, mail *gmail.Provider, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, gmailCheckTimeout)
	defer cancel()

	status := mail.Status(ctx)
	if status.Authenticated {
		logger.Info("gmail connected", slog.String("state", status.State), logging.UserHash(status.EmailAddress))
		return
	}
	logger.Warn("gmail unavailable",
		slog.String("state", status.State),
		slog.String("status", status.Status),
		slog.String("remediation", status.Remediation))
}

// loadMetricsEnvVars applies METRICS_ENABLED and METRICS_ADDR when the
// corresponding flag was not set explicitly.
func loadMetricsEnvVars(cmd *cobra.Command, mc *MetricsConfig) {
	if !cmd.Flags().Changed("metrics") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			mc.Enabled = strings.EqualFold(v, "true") || v == "1"
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			mc.Addr = addr
		}
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
