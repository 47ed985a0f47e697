package gmail

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	previewLength = 200

	defaultSubject = "No Subject"
	defaultSender  = "Unknown Sender"
	defaultDate    = "Unknown Date"

	labelUnread = "UNREAD"
)

// HeaderValue extracts a header value from a Gmail message
func HeaderValue(m *gmail.Message, header string) string {
	mpart := m.Payload
	if mpart == nil {
		return ""
	}
	for _, mph := range mpart.Headers {
		if mph.Name == header {
			return mph.Value
		}
	}
	return ""
}

func headerOr(m *gmail.Message, header, fallback string) string {
	if v := HeaderValue(m, header); v != "" {
		return v
	}
	return fallback
}

// Summarize builds a MessageSummary from a message fetched in full format.
func Summarize(m *gmail.Message) MessageSummary {
	unread := false
	for _, l := range m.LabelIds {
		if l == labelUnread {
			unread = true
			break
		}
	}
	return MessageSummary{
		ID:          m.Id,
		ThreadID:    m.ThreadId,
		Subject:     headerOr(m, "Subject", defaultSubject),
		Sender:      headerOr(m, "From", defaultSender),
		Date:        headerOr(m, "Date", defaultDate),
		BodyPreview: Preview(ExtractBody(m.Payload), previewLength),
		IsUnread:    unread,
	}
}

// Preview truncates s to n runes, appending "..." when truncated.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// ExtractBody returns the message text. text/plain parts win over
// text/html; parts are searched recursively.
func ExtractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	var plain, html string
	walkParts(payload, func(part *gmail.MessagePart) {
		if part.Body == nil || part.Body.Data == "" {
			return
		}
		switch part.MimeType {
		case "text/plain":
			if plain == "" {
				plain = part.Body.Data
			}
		case "text/html":
			if html == "" {
				html = part.Body.Data
			}
		}
	})

	data := plain
	if data == "" {
		data = html
	}
	if data == "" {
		return ""
	}
	return strings.TrimSpace(decodeBody(data))
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// decodeBody decodes base64url body data, falling back to standard base64.
// Undecodable data is returned as-is.
func decodeBody(data string) string {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
	} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded)
		}
	}
	return data
}
