// Package store persists chat messages and automation logs.
//
// Three backends implement Store: MongoDB (the production default), SQLite
// for single-node deployments and an in-memory store used by tests and
// STORE_DRIVER=memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/elva-ai/elva/internal/config"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const (
	// DefaultUserID is stored when a chat request carries no user.
	DefaultUserID = "default_user"
	// DefaultHistoryLimit caps History when limit <= 0.
	DefaultHistoryLimit = 1000
	// DefaultAutomationHistoryLimit caps AutomationHistory when limit <= 0.
	DefaultAutomationHistoryLimit = 50
)

// ChatMessage is one exchange between the user and Elva.
type ChatMessage struct {
	ID          string         `json:"id" bson:"id"`
	SessionID   string         `json:"session_id" bson:"session_id"`
	UserID      string         `json:"user_id" bson:"user_id"`
	Message     string         `json:"message" bson:"message"`
	Response    string         `json:"response" bson:"response"`
	IntentData  map[string]any `json:"intent_data" bson:"intent_data"`
	Approved    *bool          `json:"approved" bson:"approved"`
	N8NResponse map[string]any `json:"n8n_response" bson:"n8n_response"`
	EditedData  map[string]any `json:"edited_data" bson:"edited_data"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
}

// AutomationLog records one direct automation run.
type AutomationLog struct {
	ID             string         `json:"id" bson:"id"`
	SessionID      string         `json:"session_id" bson:"session_id"`
	AutomationType string         `json:"automation_type" bson:"automation_type"`
	Intent         string         `json:"intent" bson:"intent"`
	Parameters     map[string]any `json:"parameters" bson:"parameters"`
	Result         map[string]any `json:"result" bson:"result"`
	Success        bool           `json:"success" bson:"success"`
	Message        string         `json:"message" bson:"message"`
	ExecutionTime  float64        `json:"execution_time" bson:"execution_time"`
	Timestamp      time.Time      `json:"timestamp" bson:"timestamp"`
}

// ApprovalUpdate is applied to a chat message once the user decides.
type ApprovalUpdate struct {
	Approved    bool
	N8NResponse map[string]any
	EditedData  map[string]any
}

// Store is the persistence interface used by the HTTP API.
type Store interface {
	SaveMessage(ctx context.Context, msg *ChatMessage) error
	GetMessage(ctx context.Context, id string) (*ChatMessage, error)
	UpdateApproval(ctx context.Context, id string, update ApprovalUpdate) error
	// History returns the session's messages oldest first.
	History(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) (int64, error)

	SaveAutomationLog(ctx context.Context, log *AutomationLog) error
	// AutomationHistory returns the session's automation runs newest first.
	AutomationHistory(ctx context.Context, sessionID string, limit int) ([]AutomationLog, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo, "":
		return NewMongoStore(ctx, cfg.MongoURL, cfg.DBName)
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// prepareMessage fills the ID, user and timestamp defaults.
func prepareMessage(msg *ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.UserID == "" {
		msg.UserID = DefaultUserID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
}

func prepareLog(log *AutomationLog) {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
