package google

import (
	"fmt"
	"slices"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// Scopes are the Gmail OAuth scopes elva requests. The grant must match
// this set exactly.
var Scopes = []string{
	gmail.GmailReadonlyScope, // https://www.googleapis.com/auth/gmail.readonly
	gmail.GmailSendScope,     // https://www.googleapis.com/auth/gmail.send
	gmail.GmailModifyScope,   // https://www.googleapis.com/auth/gmail.modify
}

// ValidateScopes checks that requested equals Scopes as a set, with no
// duplicates and nothing extra.
func ValidateScopes(requested []string) error {
	seen := make(map[string]bool, len(requested))
	var duplicates, extra []string
	for _, s := range requested {
		if seen[s] {
			duplicates = append(duplicates, s)
			continue
		}
		seen[s] = true
		if !slices.Contains(Scopes, s) {
			extra = append(extra, s)
		}
	}

	var missing []string
	for _, s := range Scopes {
		if !seen[s] {
			missing = append(missing, s)
		}
	}

	if len(missing) == 0 && len(extra) == 0 && len(duplicates) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(extra, ", "))
	}
	if len(duplicates) > 0 {
		parts = append(parts, "duplicate "+strings.Join(duplicates, ", "))
	}
	return fmt.Errorf("%w: %s", ErrInsufficientScope, strings.Join(parts, "; "))
}
