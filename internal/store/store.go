package store

import (
	"context"
	"time"

	"github.com/nhle/task-suite/internal/model"
)

// TaskFilter narrows snapshot task queries. Nil fields match everything.
type TaskFilter struct {
	CreatedBy  *string // case-insensitive
	AssignedTo *string // case-insensitive
	Query      *string // name, description, assignee and creator
}

// Store defines the local snapshot of the remote task API and the
// notifications feed.
type Store interface {
	// === Task snapshot ===

	ReplaceTasks(ctx context.Context, tasks []model.Task) error
	GetTasks(ctx context.Context, opts TaskFilter) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	UpsertTask(ctx context.Context, task model.Task) error

	// === Users ===

	ReplaceUsers(ctx context.Context, users []model.User) error
	GetUsers(ctx context.Context) ([]model.User, error)

	// === Sync bookkeeping ===

	MarkSynced(ctx context.Context, key string, at time.Time) error
	LastSynced(ctx context.Context, key string) (time.Time, bool, error)

	// === Notifications ===

	UpsertNotifications(ctx context.Context, ns []model.Notification) (int, error)
	GetNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error

	Close() error
}

// Sync keys used with MarkSynced.
const (
	SyncTasks         = "tasks"
	SyncUsers         = "users"
	SyncNotifications = "notifications"
)
