package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return open(t, ":memory:")
}

// NewFileStore creates a SQLiteStore in a temporary directory, for tests
// that reopen the same database.
func NewFileStore(t *testing.T) (*store.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	return open(t, path), path
}

func open(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SampleTasks returns a small board spanning every default status plus
// one task with an unknown status.
func SampleTasks() []model.Task {
	return []model.Task{
		{TaskID: "1", TaskName: "Write report", TaskDesc: "quarterly numbers", DueDate: "2026-11-01", AssignedTo: "Alice", CreatedBy: "bob@corp.example", CreatedDate: "2026-10-01", Status: "To Do"},
		{TaskID: "2", TaskName: "Fix login", TaskDesc: "token refresh", DueDate: "2026-10-20", CreatedBy: "carol@corp.example", CreatedDate: "2026-10-02", Status: "InProgress"},
		{TaskID: "3", TaskName: "Ship release", TaskDesc: "v1.2", DueDate: "2026-10-10", AssignedTo: "Dave", CreatedBy: "bob@corp.example", CreatedDate: "2026-09-15", Status: "Completed"},
		{TaskID: "4", TaskName: "Archive logs", TaskDesc: "old", DueDate: "2026-09-01", AssignedTo: "Alice", CreatedBy: "carol@corp.example", CreatedDate: "2026-08-01", Status: "Blocked"},
	}
}

// SeedTasks replaces the store's task snapshot with tasks.
func SeedTasks(t *testing.T, s store.Store, tasks []model.Task) {
	t.Helper()
	if err := s.ReplaceTasks(context.Background(), tasks); err != nil {
		t.Fatalf("seeding tasks: %v", err)
	}
}
