package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elva-ai/elva/internal/gmail"
	"github.com/elva-ai/elva/internal/google"
)

// DefaultMaxBodySize caps request bodies.
const DefaultMaxBodySize = 512 << 10 // 512 KB

// Error codes returned in ErrorDetail.Code.
const (
	CodeInvalidJSON        = "INVALID_JSON"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedAction  = "UNSUPPORTED_ACTION"
	CodeNotAuthenticated   = "GMAIL_NOT_AUTHENTICATED"
	CodeInsufficientScope  = "GMAIL_INSUFFICIENT_SCOPE"
	CodeQuotaExceeded      = "GMAIL_QUOTA_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, body any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, code, message string, details map[string]any) {
	writeJSON(w, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}, statusCode)
}

// decodeJSON reads the request body into v and writes the error response
// itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		slog.Warn("request body size limit exceeded",
			"remote_addr", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"max_bytes", maxErr.Limit)
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			"Request body exceeds maximum allowed size",
			map[string]any{
				"max_size_bytes": maxErr.Limit,
				"max_size_human": formatBytes(maxErr.Limit),
			})
		return false
	}

	writeError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid request body",
		map[string]any{"reason": err.Error()})
	return false
}

// writeGmailError maps a classified Gmail error to its HTTP status.
func writeGmailError(w http.ResponseWriter, err error) {
	details := map[string]any{}
	if fix := google.Remediation(err); fix != "" {
		details["remediation"] = fix
	}

	switch {
	case errors.Is(err, gmail.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, google.ErrNotAuthenticated),
		errors.Is(err, google.ErrAuthFailed),
		errors.Is(err, google.ErrCredentialsNotFound):
		writeError(w, http.StatusUnauthorized, CodeNotAuthenticated, err.Error(), details)
	case errors.Is(err, google.ErrInsufficientScope):
		writeError(w, http.StatusForbidden, CodeInsufficientScope, err.Error(), details)
	case errors.Is(err, google.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, CodeQuotaExceeded, err.Error(), details)
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
