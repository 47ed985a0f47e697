// Package logging provides structured logging utilities for elva.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.inbox")
//	logger.Info("inbox fetched", logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("token refreshed", slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))
//	logger.Info("connecting", slog.String("mongo_url", logging.SanitizeURL(cfg.MongoURL)))
//
// # Security Considerations
//
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens and API keys are never logged directly
package logging
