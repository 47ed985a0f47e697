package gmail

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// Results are stored inside chat intent data, so their BSON documents
// must carry the same keys the API returns as JSON.
func TestResultTypes_BSONKeysMatchJSON(t *testing.T) {
	summary := MessageSummary{
		ID:          "m1",
		ThreadID:    "t1",
		Subject:     "Hi",
		Sender:      "a@example.com",
		Date:        "Mon, 1 Jan 2024",
		BodyPreview: "preview",
		IsUnread:    true,
	}

	tests := []struct {
		name  string
		value any
	}{
		{"message summary", summary},
		{"inbox", InboxResult{Messages: []MessageSummary{summary}, Count: 1, TotalInInbox: 3, Message: "m"}},
		{"unread", UnreadResult{UnreadCount: 2, Message: "m"}},
		{"search", SearchResult{Messages: []MessageSummary{summary}, Count: 1, Query: "q", Message: "m"}},
		{"email", Email{To: "a@example.com", Subject: "s", Body: "b", Cc: "c@example.com", Bcc: "d@example.com"}},
		{"send", SendResult{MessageID: "id", Message: "m"}},
		{"mark read", MarkReadResult{Message: "m"}},
		{"profile", Profile{EmailAddress: "me@example.com", MessagesTotal: 1, ThreadsTotal: 1, HistoryID: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsonBytes, err := json.Marshal(tt.value)
			require.NoError(t, err)
			var fromJSON map[string]any
			require.NoError(t, json.Unmarshal(jsonBytes, &fromJSON))

			// Wrapped in a map the way intent data holds them.
			bsonBytes, err := bson.Marshal(bson.M{"value": tt.value})
			require.NoError(t, err)
			var fromBSON bson.M
			require.NoError(t, bson.Unmarshal(bsonBytes, &fromBSON))
			doc, ok := fromBSON["value"].(bson.M)
			require.True(t, ok)

			assert.ElementsMatch(t, keys(fromJSON), keys(doc))
		})
	}
}

func TestInboxResult_BSONNestedMessages(t *testing.T) {
	res := InboxResult{Messages: []MessageSummary{{ID: "m1", ThreadID: "t1", BodyPreview: "p", IsUnread: true}}}

	data, err := bson.Marshal(bson.M{"automation_result": res})
	require.NoError(t, err)

	var out bson.M
	require.NoError(t, bson.Unmarshal(data, &out))

	msgs, ok := out["automation_result"].(bson.M)["messages"].(bson.A)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	msg := msgs[0].(bson.M)
	assert.Equal(t, "t1", msg["thread_id"])
	assert.Equal(t, "p", msg["body_preview"])
	assert.Equal(t, true, msg["is_unread"])
	assert.NotContains(t, msg, "threadid")
}

func keys[M ~map[string]any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
