package automation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/elva-ai/elva/internal/gmail"
)

const (
	inboxPreviewMessages = 5
	inboxPreviewRunes    = 100
)

// FormatInbox renders the first five messages of an inbox listing.
func FormatInbox(res *gmail.InboxResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📧 **Gmail Inbox** (%d messages)", res.Count)

	if len(res.Messages) == 0 {
		sb.WriteString("\nNo messages found in inbox")
		return sb.String()
	}

	for i, m := range res.Messages {
		if i == inboxPreviewMessages {
			break
		}
		fmt.Fprintf(&sb, "\n• **%s** from %s", m.Subject, m.Sender)
		if m.IsUnread {
			sb.WriteString(" 🔴")
		}
		fmt.Fprintf(&sb, "\n  %s...", firstRunes(m.BodyPreview, inboxPreviewRunes))
	}

	if more := len(res.Messages) - inboxPreviewMessages; more > 0 {
		fmt.Fprintf(&sb, "\n... and %d more messages", more)
	}
	return sb.String()
}

// FormatUnread renders the unread count.
func FormatUnread(res *gmail.UnreadResult) string {
	return fmt.Sprintf("📬 **Unread Emails**: %d messages", res.UnreadCount)
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
