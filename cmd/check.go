package cmd

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elva-ai/elva/internal/config"
	"github.com/elva-ai/elva/internal/google"
)

// errCheckFailed is returned when any check fails so the process exits non-zero.
var errCheckFailed = errors.New("configuration check failed")

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, credential paths and OAuth scopes",
		Long: `Load the configuration and verify that:
  - every required environment variable is set
  - GMAIL_CREDENTIALS_PATH is readable and GMAIL_TOKEN_PATH is writable
  - the requested OAuth scopes match the expected set

Secrets are masked in the report. The command exits non-zero when any
check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			return runCheck(cmd, cfg)
		},
	}
}

func runCheck(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration:")
	redacted := cfg.Redacted()
	keys := make([]string, 0, len(redacted))
	for k := range redacted {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := redacted[k]
		if v == "" {
			v = "(unset)"
		}
		fmt.Fprintf(out, "  %-24s %s\n", k, v)
	}
	fmt.Fprintln(out)

	failed := false
	report := func(name string, err error) {
		if err == nil {
			fmt.Fprintf(out, "✓ %s\n", name)
			return
		}
		failed = true
		fmt.Fprintf(out, "✗ %s\n", name)
		printIndented(out, err.Error())
		if fix := google.Remediation(err); fix != "" {
			printIndented(out, fix)
		}
	}

	report("environment", cfg.Validate())
	report("credential paths", cfg.CheckPaths())
	report("oauth scopes", google.ValidateScopes(google.Scopes))

	if !cfg.TokenIgnored(cmd.Context()) {
		fmt.Fprintf(out, "⚠ %s is not ignored by git; add it to .gitignore\n", cfg.GmailTokenPath)
	}

	if failed {
		return errCheckFailed
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}

func printIndented(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}
