package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/elva-ai/elva/internal/google"
)

// CheckPaths verifies that the credentials file is readable and that the
// token path is writable. Neither file is modified.
func (c *Config) CheckPaths() error {
	return errors.Join(
		checkReadable(c.GmailCredentialsPath),
		checkWritable(c.GmailTokenPath),
	)
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", google.ErrCredentialsNotFound, path)
		}
		return fmt.Errorf("failed to stat credentials file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("credentials path %s is not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("credentials file %s is not readable: %w", path, err)
	}
	return f.Close()
}

func checkWritable(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return fmt.Errorf("token path %s is a directory", path)
		}
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("token file %s is not writable: %w", path, err)
		}
		return f.Close()

	case errors.Is(err, fs.ErrNotExist):
		dir := filepath.Dir(path)
		tmp, err := os.CreateTemp(dir, ".elva-write-*")
		if err != nil {
			return fmt.Errorf("token directory %s is not writable: %w", dir, err)
		}
		name := tmp.Name()
		_ = tmp.Close()
		return os.Remove(name)

	default:
		return fmt.Errorf("failed to stat token path: %w", err)
	}
}

// TokenIgnored reports whether the token file is excluded from git.
// It returns true when git is not installed or the path is not inside a
// working tree, since there is nothing to commit it to.
func (c *Config) TokenIgnored(ctx context.Context) bool {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return true
	}

	abs, err := filepath.Abs(c.GmailTokenPath)
	if err != nil {
		return true
	}
	dir := filepath.Dir(abs)

	inside := exec.CommandContext(ctx, gitPath, "-C", dir, "rev-parse", "--is-inside-work-tree")
	out, err := inside.Output()
	if err != nil || strings.TrimSpace(string(out)) != "true" {
		return true
	}

	// check-ignore exits 0 when the path is ignored, 1 when it is not.
	check := exec.CommandContext(ctx, gitPath, "-C", dir, "check-ignore", "-q", abs)
	return check.Run() == nil
}
