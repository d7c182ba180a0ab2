package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/task-suite/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
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

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
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

const taskColumns = `task_id, task_name, task_desc, due_date, assigned_to,
	created_by, created_date, status`

// ReplaceTasks swaps the task snapshot for tasks, keeping their order.
func (s *SQLiteStore) ReplaceTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO tasks (
			task_id, position, task_name, task_desc, due_date,
			assigned_to, created_by, created_date, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	skipped := 0
	for i, t := range tasks {
		if t.TaskID == "" {
			skipped++
			continue
		}
		_, err = stmt.ExecContext(ctx,
			t.TaskID, i, t.TaskName, t.TaskDesc, t.DueDate,
			t.AssignedTo, t.CreatedBy, t.CreatedDate, t.Status,
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.TaskID, err)
		}
	}
	if skipped > 0 {
		log.Printf("store: %d of %d tasks have no id and were not saved", skipped, len(tasks))
	}

	return tx.Commit()
}

// UpsertTask inserts or updates a single task. New tasks are appended
// after the current snapshot.
func (s *SQLiteStore) UpsertTask(ctx context.Context, t model.Task) error {
	if t.TaskID == "" {
		return errors.New("upserting task: empty task id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			task_id, position, task_name, task_desc, due_date,
			assigned_to, created_by, created_date, status
		) VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			task_name = excluded.task_name,
			task_desc = excluded.task_desc,
			due_date = excluded.due_date,
			assigned_to = excluded.assigned_to,
			created_by = excluded.created_by,
			created_date = excluded.created_date,
			status = excluded.status`,
		t.TaskID, t.TaskName, t.TaskDesc, t.DueDate,
		t.AssignedTo, t.CreatedBy, t.CreatedDate, t.Status,
	)
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", t.TaskID, err)
	}
	return nil
}

// GetTasks retrieves snapshot tasks matching the filter, in API order.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	opts TaskFilter,
) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	if opts.CreatedBy != nil {
		conditions = append(conditions, "created_by = ? COLLATE NOCASE")
		args = append(args, *opts.CreatedBy)
	}
	if opts.AssignedTo != nil {
		conditions = append(conditions, "assigned_to = ? COLLATE NOCASE")
		args = append(args, *opts.AssignedTo)
	}
	if opts.Query != nil && strings.TrimSpace(*opts.Query) != "" {
		conditions = append(conditions,
			"(task_name LIKE ? OR task_desc LIKE ? OR assigned_to LIKE ? OR created_by LIKE ?)")
		q := "%" + strings.TrimSpace(*opts.Query) + "%"
		args = append(args, q, q, q, q)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY position"

	tasks := []model.Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// GetTaskByID retrieves a single snapshot task by its ID.
func (s *SQLiteStore) GetTaskByID(
	ctx context.Context,
	id string,
) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task, "SELECT "+taskColumns+" FROM tasks WHERE task_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	return &task, nil
}

// ReplaceUsers swaps the cached user list.
func (s *SQLiteStore) ReplaceUsers(ctx context.Context, users []model.User) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}
	for i, u := range users {
		id := u.UserID
		if id == "" {
			id = u.UserName
		}
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO users (user_id, position, user_name) VALUES (?, ?, ?)",
			id, i, u.UserName,
		)
		if err != nil {
			return fmt.Errorf("inserting user %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetUsers returns the cached users in API order.
func (s *SQLiteStore) GetUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.db.SelectContext(ctx, &users, "SELECT user_id, user_name FROM users ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}

// MarkSynced records a successful refresh of key.
func (s *SQLiteStore) MarkSynced(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sync_state (key, synced_at) VALUES (?, ?)",
		key, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking %s synced: %w", key, err)
	}
	return nil
}

// LastSynced reports when key was last refreshed.
func (s *SQLiteStore) LastSynced(ctx context.Context, key string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.GetContext(ctx, &at, "SELECT synced_at FROM sync_state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading sync state %s: %w", key, err)
	}
	return at, true, nil
}

// UpsertNotifications stores feed items, keeping the read flag of items
// already known. It returns how many were new.
func (s *SQLiteStore) UpsertNotifications(
	ctx context.Context,
	ns []model.Notification,
) (int, error) {
	if len(ns) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, n := range ns {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO notifications (id, task_id, message, read, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			n.ID, n.TaskID, n.Message, boolToInt(n.Read), n.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("creating notification %s: %w", n.ID, err)
		}
		if rows, err := res.RowsAffected(); err == nil {
			added += int(rows)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing notifications: %w", err)
	}
	return added, nil
}

// GetNotifications returns the most recent notifications, newest first.
// A non-positive limit returns all of them.
func (s *SQLiteStore) GetNotifications(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	query := "SELECT id, task_id, message, read, created_at FROM notifications ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryNotifications(ctx, query)
}

// CountUnreadNotifications returns the number of unread notifications.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE read = 0"); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	id string,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE read = 0"); err != nil {
		return fmt.Errorf("marking notifications as read: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryNotifications(ctx context.Context, query string) ([]model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n         model.Notification
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(&n.ID, &n.TaskID, &n.Message, &readInt, &createdAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Read = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
