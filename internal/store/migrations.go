package store

// migration is a schema change applied once, in version order.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL DEFAULT 'default_user',
	message      TEXT NOT NULL,
	response     TEXT NOT NULL DEFAULT '',
	intent_data  TEXT,
	approved     INTEGER CHECK(approved IN (0, 1)),
	n8n_response TEXT,
	edited_data  TEXT,
	timestamp    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session_ts
	ON chat_messages(session_id, timestamp);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS automation_logs (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	automation_type TEXT NOT NULL,
	intent          TEXT NOT NULL DEFAULT '',
	parameters      TEXT,
	result          TEXT,
	success         INTEGER NOT NULL DEFAULT 0 CHECK(success IN (0, 1)),
	message         TEXT NOT NULL DEFAULT '',
	execution_time  REAL NOT NULL DEFAULT 0,
	timestamp       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_automation_logs_session_ts
	ON automation_logs(session_id, timestamp);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
