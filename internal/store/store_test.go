package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elva-ai/elva/internal/config"
)

// backends returns one fresh store per implementation that runs without
// external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "elva.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, sqlite.Close()) })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_SaveAndGetMessage(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			msg := &ChatMessage{
				SessionID:  "s1",
				Message:    "add buy milk to my todo",
				Response:   "Adding: buy milk",
				IntentData: map[string]any{"intent": "add_todo", "task": "buy milk"},
			}
			require.NoError(t, s.SaveMessage(ctx, msg))

			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, DefaultUserID, msg.UserID)
			assert.False(t, msg.Timestamp.IsZero())

			got, err := s.GetMessage(ctx, msg.ID)
			require.NoError(t, err)
			assert.Equal(t, msg.ID, got.ID)
			assert.Equal(t, "s1", got.SessionID)
			assert.Equal(t, DefaultUserID, got.UserID)
			assert.Equal(t, msg.Response, got.Response)
			assert.Equal(t, "buy milk", got.IntentData["task"])
			assert.Nil(t, got.Approved)
			assert.Nil(t, got.N8NResponse)
			assert.WithinDuration(t, msg.Timestamp, got.Timestamp, time.Millisecond)
		})
	}
}

func TestStore_GetMessageNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetMessage(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_UpdateApproval(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			approved := &ChatMessage{SessionID: "s1", Message: "email bob", IntentData: map[string]any{"intent": "send_email"}}
			rejected := &ChatMessage{SessionID: "s1", Message: "email alice", IntentData: map[string]any{"intent": "send_email"}}
			require.NoError(t, s.SaveMessage(ctx, approved))
			require.NoError(t, s.SaveMessage(ctx, rejected))

			require.NoError(t, s.UpdateApproval(ctx, approved.ID, ApprovalUpdate{
				Approved:    true,
				N8NResponse: map[string]any{"success": true, "status_code": float64(200)},
				EditedData:  map[string]any{"intent": "send_email", "subject": "Hi"},
			}))
			require.NoError(t, s.UpdateApproval(ctx, rejected.ID, ApprovalUpdate{Approved: false}))

			got, err := s.GetMessage(ctx, approved.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Approved)
			assert.True(t, *got.Approved)
			assert.Equal(t, true, got.N8NResponse["success"])
			assert.Equal(t, "Hi", got.EditedData["subject"])

			got, err = s.GetMessage(ctx, rejected.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Approved)
			assert.False(t, *got.Approved)
			assert.Nil(t, got.N8NResponse)

			err = s.UpdateApproval(ctx, "missing", ApprovalUpdate{Approved: true})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_HistoryAndClear(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

			// Saved out of order to check sorting.
			for _, i := range []int{2, 0, 1} {
				require.NoError(t, s.SaveMessage(ctx, &ChatMessage{
					SessionID: "s1",
					Message:   fmt.Sprintf("m%d", i),
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				}))
			}
			require.NoError(t, s.SaveMessage(ctx, &ChatMessage{SessionID: "s2", Message: "other", Timestamp: base}))

			history, err := s.History(ctx, "s1", 0)
			require.NoError(t, err)
			require.Len(t, history, 3)
			assert.Equal(t, "m0", history[0].Message)
			assert.Equal(t, "m1", history[1].Message)
			assert.Equal(t, "m2", history[2].Message)

			limited, err := s.History(ctx, "s1", 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			deleted, err := s.ClearHistory(ctx, "s1")
			require.NoError(t, err)
			assert.EqualValues(t, 3, deleted)

			history, err = s.History(ctx, "s1", 0)
			require.NoError(t, err)
			assert.Empty(t, history)

			other, err := s.History(ctx, "s2", 0)
			require.NoError(t, err)
			assert.Len(t, other, 1)

			deleted, err = s.ClearHistory(ctx, "nobody")
			require.NoError(t, err)
			assert.Zero(t, deleted)
		})
	}
}

func TestStore_AutomationHistory(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

			for i := 0; i < 3; i++ {
				require.NoError(t, s.SaveAutomationLog(ctx, &AutomationLog{
					SessionID:      "s1",
					AutomationType: "gmail_integration",
					Intent:         "gmail_unread_count",
					Parameters:     map[string]any{"intent": "gmail_unread_count"},
					Result:         map[string]any{"unread_count": float64(i)},
					Success:        true,
					Message:        fmt.Sprintf("run %d", i),
					ExecutionTime:  0.25,
					Timestamp:      base.Add(time.Duration(i) * time.Second),
				}))
			}
			require.NoError(t, s.SaveAutomationLog(ctx, &AutomationLog{SessionID: "s2", AutomationType: "web_scraping"}))

			logs, err := s.AutomationHistory(ctx, "s1", 0)
			require.NoError(t, err)
			require.Len(t, logs, 3)
			assert.Equal(t, "run 2", logs[0].Message)
			assert.Equal(t, "run 0", logs[2].Message)
			assert.NotEmpty(t, logs[0].ID)
			assert.True(t, logs[0].Success)
			assert.InDelta(t, 0.25, logs[0].ExecutionTime, 1e-9)
			assert.Equal(t, float64(2), logs[0].Result["unread_count"])
			assert.Equal(t, "gmail_unread_count", logs[0].Parameters["intent"])

			limited, err := s.AutomationHistory(ctx, "s1", 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestStore_Ping(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg := &ChatMessage{SessionID: "s1", IntentData: map[string]any{"intent": "add_todo"}}
	require.NoError(t, s.SaveMessage(ctx, msg))
	msg.IntentData["intent"] = "changed"

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "add_todo", got.IntentData["intent"])
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elva.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	msg := &ChatMessage{SessionID: "s1", Message: "hello"}
	require.NoError(t, s.SaveMessage(ctx, msg))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveMessage(context.Background(), &ChatMessage{SessionID: "s1"}))
	history, err := s.History(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, &config.Config{StoreDriver: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, &config.Config{StoreDriver: "redis"})
	assert.ErrorContains(t, err, `unknown store driver "redis"`)
}
