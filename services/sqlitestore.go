package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tasknotify/model"
)

// SQLiteStore keeps tasks and notifications in a single SQLite database.
// It satisfies both TaskRepository and NotificationStore.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// pending migrations. ":memory:" is accepted for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across pool connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite db: %w", err)
	}
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

type taskRow struct {
	TaskID    string        `db:"taskid"`
	Title     string        `db:"title"`
	Assignee  string        `db:"assignee"`
	Status    string        `db:"status"`
	Priority  string        `db:"priority"`
	DueDate   sql.NullInt64 `db:"due_date"`
	UpdatedAt int64         `db:"updated_at"`

	LastOverdue  sql.NullInt64 `db:"last_overdue_notification"`
	LastReminder sql.NullInt64 `db:"last_reminder_notification"`
	LastWeekly   sql.NullInt64 `db:"last_weekly_reminder"`
	LastStuck    sql.NullInt64 `db:"last_stuck_notification"`
}

func (r taskRow) toModel() model.Tasks {
	return model.Tasks{
		TaskID:                   r.TaskID,
		Title:                    r.Title,
		Assignee:                 r.Assignee,
		Status:                   r.Status,
		Priority:                 r.Priority,
		DueDate:                  fromNullNanos(r.DueDate),
		UpdatedAt:                time.Unix(0, r.UpdatedAt).UTC(),
		LastOverdueNotification:  fromNullNanos(r.LastOverdue),
		LastReminderNotification: fromNullNanos(r.LastReminder),
		LastWeeklyReminder:       fromNullNanos(r.LastWeekly),
		LastStuckNotification:    fromNullNanos(r.LastStuck),
	}
}

// SaveTask inserts or replaces a task. The task CRUD side owns task rows;
// this exists for seeding and tests.
func (s *SQLiteStore) SaveTask(ctx context.Context, t model.Tasks) error {
	if t.TaskID == "" {
		t.TaskID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (
			taskid, title, assignee, status, priority, due_date, updated_at,
			last_overdue_notification, last_reminder_notification,
			last_weekly_reminder, last_stuck_notification
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.Title, t.Assignee, t.Status, t.Priority,
		toNullNanos(t.DueDate), t.UpdatedAt.UnixNano(),
		toNullNanos(t.LastOverdueNotification), toNullNanos(t.LastReminderNotification),
		toNullNanos(t.LastWeeklyReminder), toNullNanos(t.LastStuckNotification),
	)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", t.TaskID, err)
	}
	return nil
}

func (s *SQLiteStore) FindTasks(ctx context.Context, filter model.TaskFilter) ([]model.Tasks, error) {
	var conditions []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if len(filter.Priorities) > 0 {
		conditions = append(conditions, "priority IN (?)")
		args = append(args, filter.Priorities)
	}
	if filter.DueFrom != nil {
		conditions = append(conditions, "due_date >= ?")
		args = append(args, filter.DueFrom.UnixNano())
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, "due_date < ?")
		args = append(args, filter.DueBefore.UnixNano())
	}
	if filter.DueAfter != nil {
		conditions = append(conditions, "due_date > ?")
		args = append(args, filter.DueAfter.UnixNano())
	}
	if filter.DueUntil != nil {
		conditions = append(conditions, "due_date <= ?")
		args = append(args, filter.DueUntil.UnixNano())
	}
	if filter.UpdatedBefore != nil {
		conditions = append(conditions, "updated_at < ?")
		args = append(args, filter.UpdatedBefore.UnixNano())
	}
	if filter.Marker != "" {
		if !filter.Marker.Valid() {
			return nil, fmt.Errorf("unknown marker %q", filter.Marker)
		}
		col := string(filter.Marker)
		conditions = append(conditions, fmt.Sprintf("(%s IS NULL OR %s < ?)", col, col))
		args = append(args, filter.MarkerBefore.UnixNano())
	}

	query := "SELECT * FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY taskid"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("building task query: %w", err)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Tasks, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toModel())
	}
	return tasks, nil
}

// UpdateTaskMarker is a single conditional UPDATE, so a stale write can never
// move the marker backwards.
func (s *SQLiteStore) UpdateTaskMarker(ctx context.Context, taskID string, marker model.Marker, at time.Time) error {
	if !marker.Valid() {
		return fmt.Errorf("unknown marker %q", marker)
	}
	col := string(marker)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE tasks SET %s = ? WHERE taskid = ? AND (%s IS NULL OR %s < ?)", col, col, col),
		at.UnixNano(), taskID, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("updating %s on task %s: %w", col, taskID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM tasks WHERE taskid = ?", taskID); err != nil {
		return fmt.Errorf("checking task %s: %w", taskID, err)
	}
	if count == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

type notificationRow struct {
	NotificationID string         `db:"notificationid"`
	UserID         sql.NullString `db:"user_id"`
	Type           string         `db:"type"`
	Priority       string         `db:"priority"`
	Title          string         `db:"title"`
	Message        string         `db:"message"`
	TaskID         string         `db:"taskid"`
	Metadata       string         `db:"metadata"`
	Read           bool           `db:"read"`
	ReadAt         sql.NullInt64  `db:"read_at"`
	CreatedAt      int64          `db:"created_at"`
	ExpiresAt      sql.NullInt64  `db:"expires_at"`
}

func (r notificationRow) toModel() (model.Notification, error) {
	n := model.Notification{
		NotificationID: r.NotificationID,
		Type:           r.Type,
		Priority:       r.Priority,
		Title:          r.Title,
		Message:        r.Message,
		TaskID:         r.TaskID,
		Read:           r.Read,
		ReadAt:         fromNullNanos(r.ReadAt),
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
		ExpiresAt:      fromNullNanos(r.ExpiresAt),
	}
	if r.UserID.Valid {
		uid := r.UserID.String
		n.UserID = &uid
	}
	if r.Metadata != "" && r.Metadata != "{}" {
		if err := json.Unmarshal([]byte(r.Metadata), &n.Metadata); err != nil {
			return model.Notification{}, fmt.Errorf("decoding metadata of notification %s: %w", r.NotificationID, err)
		}
	}
	return n, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, n model.Notification) (string, error) {
	if n.NotificationID == "" {
		n.NotificationID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	metadata := "{}"
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return "", fmt.Errorf("encoding metadata of notification %s: %w", n.NotificationID, err)
		}
		metadata = string(b)
	}

	var userID sql.NullString
	if n.UserID != nil {
		userID = sql.NullString{String: *n.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			notificationid, user_id, type, priority, title, message, taskid,
			metadata, read, read_at, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.NotificationID, userID, n.Type, n.Priority, n.Title, n.Message, n.TaskID,
		metadata, boolToInt(n.Read), toNullNanos(n.ReadAt), n.CreatedAt.UnixNano(), toNullNanos(n.ExpiresAt),
	)
	if err != nil {
		return "", fmt.Errorf("inserting notification %s: %w", n.NotificationID, err)
	}
	return n.NotificationID, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM notifications WHERE notificationid = ?", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading notification %s: %w", id, err)
	}

	n, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns matching notifications, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	where, args, err := notificationWhere(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM notifications" + where + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *SQLiteStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1, read_at = ? WHERE notificationid = ?",
		at.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteWhere(ctx context.Context, filter model.NotificationFilter) (int, error) {
	where, args, err := notificationWhere(filter)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM notifications"+where), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted notifications: %w", err)
	}
	return int(n), nil
}

func notificationWhere(filter model.NotificationFilter) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Read != nil {
		conditions = append(conditions, "read = ?")
		args = append(args, boolToInt(*filter.Read))
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, filter.CreatedBefore.UnixNano())
	}
	if len(filter.ExcludePriorities) > 0 {
		conditions = append(conditions, "priority NOT IN (?)")
		args = append(args, filter.ExcludePriorities)
	}
	if len(conditions) == 0 {
		return "", nil, nil
	}

	query, args, err := sqlx.In(" WHERE "+strings.Join(conditions, " AND "), args...)
	if err != nil {
		return "", nil, fmt.Errorf("building notification filter: %w", err)
	}
	return query, args, nil
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
