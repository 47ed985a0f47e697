package gmail

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// ErrInvalidEmail is wrapped by every Email validation failure.
var ErrInvalidEmail = errors.New("invalid email")

// Validate checks the required fields and rejects header values that
// contain line breaks.
func (e Email) Validate() error {
	if strings.TrimSpace(e.To) == "" || e.Subject == "" || e.Body == "" {
		return fmt.Errorf("%w: to, subject and body are required", ErrInvalidEmail)
	}
	headers := []struct{ name, value string }{
		{"to", e.To},
		{"cc", e.Cc},
		{"bcc", e.Bcc},
		{"subject", e.Subject},
	}
	for _, h := range headers {
		if strings.ContainsAny(h.value, "\r\n") {
			return fmt.Errorf("%w: %s must not contain line breaks", ErrInvalidEmail, h.name)
		}
	}
	return nil
}

// buildRawMessage renders e as an RFC 2822 text/plain message, encoded as
// base64url for the Gmail API.
func buildRawMessage(e Email) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(e.To)
	b.WriteString("\r\n")

	if e.Cc != "" {
		b.WriteString("Cc: ")
		b.WriteString(e.Cc)
		b.WriteString("\r\n")
	}

	if e.Bcc != "" {
		b.WriteString("Bcc: ")
		b.WriteString(e.Bcc)
		b.WriteString("\r\n")
	}

	// Add Subject (encode for non-ASCII characters like umlauts)
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(e.Subject))
	b.WriteString("\r\n")

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(e.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
