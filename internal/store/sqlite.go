package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path, enables WAL mode
// and applies pending migrations. ":memory:" gives a private database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	current := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

type chatRow struct {
	ID          string         `db:"id"`
	SessionID   string         `db:"session_id"`
	UserID      string         `db:"user_id"`
	Message     string         `db:"message"`
	Response    string         `db:"response"`
	IntentData  sql.NullString `db:"intent_data"`
	Approved    sql.NullInt64  `db:"approved"`
	N8NResponse sql.NullString `db:"n8n_response"`
	EditedData  sql.NullString `db:"edited_data"`
	Timestamp   time.Time      `db:"timestamp"`
}

func (r chatRow) toMessage() (ChatMessage, error) {
	msg := ChatMessage{
		ID:        r.ID,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Message:   r.Message,
		Response:  r.Response,
		Timestamp: r.Timestamp.UTC(),
	}
	if r.Approved.Valid {
		approved := r.Approved.Int64 != 0
		msg.Approved = &approved
	}

	var err error
	if msg.IntentData, err = decodeJSONMap(r.IntentData); err != nil {
		return ChatMessage{}, fmt.Errorf("unmarshaling intent_data of %s: %w", r.ID, err)
	}
	if msg.N8NResponse, err = decodeJSONMap(r.N8NResponse); err != nil {
		return ChatMessage{}, fmt.Errorf("unmarshaling n8n_response of %s: %w", r.ID, err)
	}
	if msg.EditedData, err = decodeJSONMap(r.EditedData); err != nil {
		return ChatMessage{}, fmt.Errorf("unmarshaling edited_data of %s: %w", r.ID, err)
	}
	return msg, nil
}

type logRow struct {
	ID             string         `db:"id"`
	SessionID      string         `db:"session_id"`
	AutomationType string         `db:"automation_type"`
	Intent         string         `db:"intent"`
	Parameters     sql.NullString `db:"parameters"`
	Result         sql.NullString `db:"result"`
	Success        int            `db:"success"`
	Message        string         `db:"message"`
	ExecutionTime  float64        `db:"execution_time"`
	Timestamp      time.Time      `db:"timestamp"`
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *ChatMessage) error {
	prepareMessage(msg)

	intentData, err := encodeJSONMap(msg.IntentData)
	if err != nil {
		return fmt.Errorf("marshaling intent_data: %w", err)
	}
	n8n, err := encodeJSONMap(msg.N8NResponse)
	if err != nil {
		return fmt.Errorf("marshaling n8n_response: %w", err)
	}
	edited, err := encodeJSONMap(msg.EditedData)
	if err != nil {
		return fmt.Errorf("marshaling edited_data: %w", err)
	}

	var approved sql.NullInt64
	if msg.Approved != nil {
		approved = sql.NullInt64{Int64: boolToInt(*msg.Approved), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chat_messages (
			id, session_id, user_id, message, response,
			intent_data, approved, n8n_response, edited_data, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.UserID, msg.Message, msg.Response,
		intentData, approved, n8n, edited, msg.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving chat message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*ChatMessage, error) {
	var row chatRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM chat_messages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat message %s: %w", id, err)
	}

	msg, err := row.toMessage()
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *SQLiteStore) UpdateApproval(ctx context.Context, id string, update ApprovalUpdate) error {
	var (
		result sql.Result
		err    error
	)
	if update.Approved {
		n8n, encErr := encodeJSONMap(update.N8NResponse)
		if encErr != nil {
			return fmt.Errorf("marshaling n8n_response: %w", encErr)
		}
		edited, encErr := encodeJSONMap(update.EditedData)
		if encErr != nil {
			return fmt.Errorf("marshaling edited_data: %w", encErr)
		}
		result, err = s.db.ExecContext(ctx,
			"UPDATE chat_messages SET approved = 1, n8n_response = ?, edited_data = ? WHERE id = ?",
			n8n, edited, id)
	} else {
		result, err = s.db.ExecContext(ctx,
			"UPDATE chat_messages SET approved = 0 WHERE id = ?", id)
	}
	if err != nil {
		return fmt.Errorf("updating approval of %s: %w", id, err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	var rows []chatRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM chat_messages WHERE session_id = ? ORDER BY timestamp ASC, rowid ASC LIMIT ?",
		sessionID, limitOr(limit, DefaultHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}

	out := make([]ChatMessage, 0, len(rows))
	for _, r := range rows {
		msg, err := r.toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("clearing chat history: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) SaveAutomationLog(ctx context.Context, log *AutomationLog) error {
	prepareLog(log)

	params, err := encodeJSONMap(log.Parameters)
	if err != nil {
		return fmt.Errorf("marshaling parameters: %w", err)
	}
	result, err := encodeJSONMap(log.Result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automation_logs (
			id, session_id, automation_type, intent, parameters,
			result, success, message, execution_time, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.SessionID, log.AutomationType, log.Intent, params,
		result, boolToInt(log.Success), log.Message, log.ExecutionTime, log.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving automation log %s: %w", log.ID, err)
	}
	return nil
}

func (s *SQLiteStore) AutomationHistory(ctx context.Context, sessionID string, limit int) ([]AutomationLog, error) {
	var rows []logRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM automation_logs WHERE session_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?",
		sessionID, limitOr(limit, DefaultAutomationHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("querying automation history: %w", err)
	}

	out := make([]AutomationLog, 0, len(rows))
	for _, r := range rows {
		log := AutomationLog{
			ID:             r.ID,
			SessionID:      r.SessionID,
			AutomationType: r.AutomationType,
			Intent:         r.Intent,
			Success:        r.Success != 0,
			Message:        r.Message,
			ExecutionTime:  r.ExecutionTime,
			Timestamp:      r.Timestamp.UTC(),
		}
		if log.Parameters, err = decodeJSONMap(r.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshaling parameters of %s: %w", r.ID, err)
		}
		if log.Result, err = decodeJSONMap(r.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling result of %s: %w", r.ID, err)
		}
		out = append(out, log)
	}
	return out, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeJSONMap stores nil maps as NULL.
func encodeJSONMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeJSONMap(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
