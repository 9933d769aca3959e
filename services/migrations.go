package services

type migration struct {
	version int
	sql     string
}

// migrations must stay ordered; versions start at 1 and never change once released.
// Timestamps are stored as UTC unix nanoseconds so range filters compare numerically.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	taskid     TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	assignee   TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'not_started',
	priority   TEXT NOT NULL DEFAULT 'medium',
	due_date   INTEGER,
	updated_at INTEGER NOT NULL DEFAULT 0,
	last_overdue_notification  INTEGER,
	last_reminder_notification INTEGER,
	last_weekly_reminder       INTEGER,
	last_stuck_notification    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks(status, due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_status_updated ON tasks(status, updated_at);

CREATE TABLE IF NOT EXISTS notifications (
	notificationid TEXT PRIMARY KEY,
	user_id    TEXT,
	type       TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'medium',
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	taskid     TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '{}',
	read       INTEGER NOT NULL DEFAULT 0,
	read_at    INTEGER,
	created_at INTEGER NOT NULL,
	expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(read, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
