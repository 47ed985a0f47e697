// Package gmailtest provides an in-memory fake of the gmail.API interface.
package gmailtest

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// FakeAPI is a scriptable gmail.API. The zero value is an empty mailbox.
type FakeAPI struct {
	mu sync.Mutex

	// Messages are returned by ListMessages in order, truncated to maxResults.
	Messages []*gmail.Message
	// Estimate overrides ResultSizeEstimate when non-zero.
	Estimate int64
	Email    string

	ListErr    error
	GetErr     map[string]error
	SendErr    error
	ModifyErr  error
	ProfileErr error

	Queries  []string
	Sent     []*gmail.Message
	Modified []*gmail.BatchModifyMessagesRequest
}

func (f *FakeAPI) ListMessages(_ context.Context, query string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Queries = append(f.Queries, query)
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	refs := make([]*gmail.Message, 0, len(f.Messages))
	for _, m := range f.Messages {
		if maxResults > 0 && int64(len(refs)) >= maxResults {
			break
		}
		refs = append(refs, &gmail.Message{Id: m.Id, ThreadId: m.ThreadId})
	}

	estimate := f.Estimate
	if estimate == 0 {
		estimate = int64(len(f.Messages))
	}
	return &gmail.ListMessagesResponse{Messages: refs, ResultSizeEstimate: estimate}, nil
}

func (f *FakeAPI) GetMessage(_ context.Context, id string) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.GetErr[id]; err != nil {
		return nil, err
	}
	for _, m := range f.Messages {
		if m.Id == id {
			return m, nil
		}
	}
	return nil, &googleapi.Error{Code: 404, Message: fmt.Sprintf("message %s not found", id)}
}

func (f *FakeAPI) SendMessage(_ context.Context, msg *gmail.Message) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.Sent = append(f.Sent, msg)
	return &gmail.Message{Id: fmt.Sprintf("sent-%d", len(f.Sent))}, nil
}

func (f *FakeAPI) BatchModify(_ context.Context, req *gmail.BatchModifyMessagesRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ModifyErr != nil {
		return f.ModifyErr
	}
	f.Modified = append(f.Modified, req)
	return nil
}

func (f *FakeAPI) GetProfile(context.Context) (*gmail.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	return &gmail.Profile{
		EmailAddress:  f.Email,
		MessagesTotal: int64(len(f.Messages)),
		ThreadsTotal:  int64(len(f.Messages)),
		HistoryId:     1,
	}, nil
}

// Message builds a single part text/plain message.
func Message(id, subject, from, body string, unread bool) *gmail.Message {
	labels := []string{"INBOX"}
	if unread {
		labels = append(labels, "UNREAD")
	}
	var headers []*gmail.MessagePartHeader
	if subject != "" {
		headers = append(headers, &gmail.MessagePartHeader{Name: "Subject", Value: subject})
	}
	if from != "" {
		headers = append(headers, &gmail.MessagePartHeader{Name: "From", Value: from})
	}
	headers = append(headers, &gmail.MessagePartHeader{Name: "Date", Value: "Mon, 2 Jun 2025 10:00:00 +0000"})

	return &gmail.Message{
		Id:       id,
		ThreadId: "thread-" + id,
		LabelIds: labels,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  headers,
			Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
}
