package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	task_id      TEXT PRIMARY KEY,
	position     INTEGER NOT NULL DEFAULT 0,
	task_name    TEXT NOT NULL DEFAULT '',
	task_desc    TEXT NOT NULL DEFAULT '',
	due_date     TEXT NOT NULL DEFAULT '',
	assigned_to  TEXT NOT NULL DEFAULT '',
	created_by   TEXT NOT NULL DEFAULT '',
	created_date TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS users (
	user_id   TEXT PRIMARY KEY,
	position  INTEGER NOT NULL DEFAULT 0,
	user_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(position);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS sync_state (
	key       TEXT PRIMARY KEY,
	synced_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks(created_by COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_notifications_task_id ON notifications(task_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
