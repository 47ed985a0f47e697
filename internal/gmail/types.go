package gmail

// MessageSummary is the condensed view of a message returned by Inbox and Search.
type MessageSummary struct {
	ID          string `json:"id" bson:"id"`
	ThreadID    string `json:"thread_id,omitempty" bson:"thread_id,omitempty"`
	Subject     string `json:"subject" bson:"subject"`
	Sender      string `json:"sender" bson:"sender"`
	Date        string `json:"date" bson:"date"`
	BodyPreview string `json:"body_preview" bson:"body_preview"`
	IsUnread    bool   `json:"is_unread" bson:"is_unread"`
}

// InboxResult is returned by Inbox.
type InboxResult struct {
	Messages     []MessageSummary `json:"messages" bson:"messages"`
	Count        int              `json:"count" bson:"count"`
	TotalInInbox int64            `json:"total_in_inbox" bson:"total_in_inbox"`
	Message      string           `json:"message" bson:"message"`
}

// UnreadResult is returned by UnreadCount.
type UnreadResult struct {
	UnreadCount int64  `json:"unread_count" bson:"unread_count"`
	Message     string `json:"message" bson:"message"`
}

// SearchResult is returned by Search.
type SearchResult struct {
	Messages []MessageSummary `json:"messages" bson:"messages"`
	Count    int              `json:"count" bson:"count"`
	Query    string           `json:"query" bson:"query"`
	Message  string           `json:"message" bson:"message"`
}

// Email is an outgoing plain text message.
type Email struct {
	To      string `json:"to" bson:"to"`
	Subject string `json:"subject" bson:"subject"`
	Body    string `json:"body" bson:"body"`
	Cc      string `json:"cc,omitempty" bson:"cc,omitempty"`
	Bcc     string `json:"bcc,omitempty" bson:"bcc,omitempty"`
}

// SendResult is returned by Send.
type SendResult struct {
	MessageID string `json:"message_id" bson:"message_id"`
	Message   string `json:"message" bson:"message"`
}

// MarkReadResult is returned by MarkAsRead.
type MarkReadResult struct {
	Message string `json:"message" bson:"message"`
}

// Profile describes the authenticated mailbox.
type Profile struct {
	EmailAddress  string `json:"email_address" bson:"email_address"`
	MessagesTotal int64  `json:"messages_total" bson:"messages_total"`
	ThreadsTotal  int64  `json:"threads_total" bson:"threads_total"`
	HistoryID     uint64 `json:"history_id" bson:"history_id"`
}
