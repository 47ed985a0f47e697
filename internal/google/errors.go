package google

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrCredentialsNotFound means the OAuth client descriptor is missing.
	ErrCredentialsNotFound = errors.New("gmail credentials file not found")
	// ErrAuthFailed covers bad or expired tokens, revoked grants and invalid clients.
	ErrAuthFailed = errors.New("gmail authentication failed")
	// ErrInsufficientScope means the grant lacks a required Gmail scope.
	ErrInsufficientScope = errors.New("insufficient gmail scope")
	// ErrQuotaExceeded means the Gmail API quota or rate limit is exhausted.
	ErrQuotaExceeded = errors.New("gmail quota exceeded")
	// ErrNotAuthenticated means no token has been stored yet.
	ErrNotAuthenticated = errors.New("gmail not authenticated")
)

var sentinels = []error{
	ErrCredentialsNotFound,
	ErrAuthFailed,
	ErrInsufficientScope,
	ErrQuotaExceeded,
	ErrNotAuthenticated,
}

var scopeReasons = []string{"insufficientPermissions", "ACCESS_TOKEN_SCOPE_INSUFFICIENT"}

var quotaReasons = []string{"rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded"}

// Classify maps err onto one of the package sentinels. The original error
// stays in the chain, so errors.As still finds *googleapi.Error and
// *oauth2.RetrieveError. Unrecognized errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return wrap(ErrAuthFailed, err)
		case http.StatusTooManyRequests:
			return wrap(ErrQuotaExceeded, err)
		case http.StatusForbidden:
			switch {
			case hasReason(apiErr, scopeReasons) ||
				strings.Contains(strings.ToLower(apiErr.Message), "insufficient authentication scopes"):
				return wrap(ErrInsufficientScope, err)
			case hasReason(apiErr, quotaReasons):
				return wrap(ErrQuotaExceeded, err)
			}
		}
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return wrap(ErrAuthFailed, err)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return wrap(ErrCredentialsNotFound, err)
	}

	return err
}

// Remediation returns the manual fix for a classified error, or an empty
// string when err is not in any category.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrCredentialsNotFound):
		return "Download the OAuth client file (Desktop app) from the Google Cloud console and save it at GMAIL_CREDENTIALS_PATH."
	case errors.Is(err, ErrAuthFailed):
		return "Delete the file at GMAIL_TOKEN_PATH and run 'elva auth' again."
	case errors.Is(err, ErrInsufficientScope):
		return "Delete the file at GMAIL_TOKEN_PATH and re-authorize with the gmail.readonly, gmail.send and gmail.modify scopes."
	case errors.Is(err, ErrQuotaExceeded):
		return "Wait before retrying, or review the Gmail API quotas in the Google Cloud console."
	case errors.Is(err, ErrNotAuthenticated):
		return "Run 'elva auth' to authorize Gmail access."
	}
	return ""
}

func wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}

func hasReason(apiErr *googleapi.Error, reasons []string) bool {
	for _, item := range apiErr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	// Newer responses carry the reason only in error details.
	for _, r := range reasons {
		if strings.Contains(apiErr.Body, r) {
			return true
		}
	}
	return false
}
