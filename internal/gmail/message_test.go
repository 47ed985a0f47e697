package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func part(mime, text string) *gmail.MessagePart {
	return &gmail.MessagePart{
		MimeType: mime,
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(text))},
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{"nil payload", nil, ""},
		{"single part plain", part("text/plain", "  Hello there \n"), "Hello there"},
		{"single part html", part("text/html", "<p>Hi</p>"), "<p>Hi</p>"},
		{
			"plain preferred over html",
			&gmail.MessagePart{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
				part("text/html", "<b>html</b>"),
				part("text/plain", "plain"),
			}},
			"plain",
		},
		{
			"html fallback",
			&gmail.MessagePart{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
				part("text/html", "<b>only html</b>"),
			}},
			"<b>only html</b>",
		},
		{
			"nested multipart",
			&gmail.MessagePart{MimeType: "multipart/mixed", Parts: []*gmail.MessagePart{
				{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
					part("text/plain", "deep"),
				}},
				{MimeType: "application/pdf", Filename: "a.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att"}},
			}},
			"deep",
		},
		{
			"standard base64 fallback",
			&gmail.MessagePart{MimeType: "text/plain", Body: &gmail.MessagePartBody{
				Data: base64.StdEncoding.EncodeToString([]byte("?>?>")),
			}},
			"?>?>",
		},
		{"no text parts", &gmail.MessagePart{MimeType: "multipart/mixed"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBody(tt.payload))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 200))
	assert.Equal(t, strings.Repeat("a", 200), Preview(strings.Repeat("a", 200), 200))
	assert.Equal(t, strings.Repeat("a", 200)+"...", Preview(strings.Repeat("a", 250), 200))
	assert.Equal(t, "äöü...", Preview("äöüß", 3), "truncates on runes")
}

func TestSummarize_Defaults(t *testing.T) {
	s := Summarize(&gmail.Message{Id: "x", Payload: &gmail.MessagePart{MimeType: "text/plain"}})

	assert.Equal(t, "x", s.ID)
	assert.Equal(t, "No Subject", s.Subject)
	assert.Equal(t, "Unknown Sender", s.Sender)
	assert.Equal(t, "Unknown Date", s.Date)
	assert.Empty(t, s.BodyPreview)
	assert.False(t, s.IsUnread)
}

func TestHeaderValue(t *testing.T) {
	m := &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
		{Name: "From", Value: "a@example.com"},
		{Name: "Subject", Value: "Hi"},
	}}}

	assert.Equal(t, "Hi", HeaderValue(m, "Subject"))
	assert.Empty(t, HeaderValue(m, "Cc"))
	assert.Empty(t, HeaderValue(&gmail.Message{}, "Subject"))
}
