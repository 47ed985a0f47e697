package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/elva-ai/elva/internal/config"
	"github.com/elva-ai/elva/internal/logging"
)

var (
	envFile   string
	debugMode bool
)

// rootCmd represents the base command for the elva application
var rootCmd = &cobra.Command{
	Use:   "elva",
	Short: "Elva AI backend: hybrid LLM chat with approved n8n actions and Gmail automation",
	Long: `elva serves the Elva AI chat API. Messages are classified by intent and
routed to Groq or Claude. Actions that need approval are relayed to an n8n
webhook once the user confirms them; Gmail requests run directly.

Configuration comes from the environment, optionally seeded from a .env
file (see --env-file). Run 'elva check' to validate it and 'elva auth' to
authorize Gmail access.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "elva version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment. A missing file is ignored.")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.LogFormat, debugMode)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
