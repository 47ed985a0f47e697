package llm

import "sync"

// DefaultHistorySize is the number of messages kept per session.
const DefaultHistorySize = 10

// ConversationContext keeps the most recent messages of every session.
type ConversationContext struct {
	mu          sync.Mutex
	sessions    map[string][]Message
	maxMessages int
}

// NewConversationContext creates a context keeping maxMessages per session.
// Non-positive values select DefaultHistorySize.
func NewConversationContext(maxMessages int) *ConversationContext {
	if maxMessages <= 0 {
		maxMessages = DefaultHistorySize
	}
	return &ConversationContext{
		sessions:    make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

// Add appends a message to the session, trimming the oldest entries.
func (c *ConversationContext) Add(sessionID string, role Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := append(c.sessions[sessionID], Message{Role: role, Content: content})
	if excess := len(msgs) - c.maxMessages; excess > 0 {
		msgs = append([]Message(nil), msgs[excess:]...)
	}
	c.sessions[sessionID] = msgs
}

// Messages returns a copy of the session history.
func (c *ConversationContext) Messages(sessionID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.sessions[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Reset forgets the session.
func (c *ConversationContext) Reset(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, sessionID)
}
