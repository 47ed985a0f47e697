package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopes(t *testing.T) {
	assert.Equal(t, []string{
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/gmail.send",
		"https://www.googleapis.com/auth/gmail.modify",
	}, Scopes)
}

func TestValidateScopes(t *testing.T) {
	const (
		readonly = "https://www.googleapis.com/auth/gmail.readonly"
		send     = "https://www.googleapis.com/auth/gmail.send"
		modify   = "https://www.googleapis.com/auth/gmail.modify"
	)

	tests := []struct {
		name        string
		requested   []string
		errContains string
	}{
		{"exact order", []string{readonly, send, modify}, ""},
		{"any order", []string{modify, readonly, send}, ""},
		{"missing send", []string{readonly, modify}, "missing " + send},
		{"extra scope", []string{readonly, send, modify, "https://mail.google.com/"}, "unexpected https://mail.google.com/"},
		{"duplicate", []string{readonly, send, modify, send}, "duplicate " + send},
		{"empty", nil, "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScopes(tt.requested)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInsufficientScope)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
