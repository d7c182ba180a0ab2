package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskUnmarshal_IDForms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string TaskID", `{"TaskID":"17","TaskName":"a"}`, "17"},
		{"numeric TaskID", `{"TaskID":17,"TaskName":"a"}`, "17"},
		{"camel taskId", `{"taskId":"x-9","TaskName":"a"}`, "x-9"},
		{"null falls back", `{"TaskID":null,"taskId":4,"TaskName":"a"}`, "4"},
		{"missing", `{"TaskName":"a"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task Task
			require.NoError(t, json.Unmarshal([]byte(tt.body), &task))
			assert.Equal(t, tt.want, task.TaskID)
			assert.Equal(t, "a", task.TaskName)
		})
	}
}

func TestTaskUnmarshal_KeepsOtherFields(t *testing.T) {
	body := `{"TaskID":1,"TaskName":"n","TaskDesc":"d","DueDate":"2026-01-02","AssignedTo":"Alice","CreatedBy":"bob","CreatedDate":"2025-12-31","Status":"To Do"}`
	var task Task
	require.NoError(t, json.Unmarshal([]byte(body), &task))
	assert.Equal(t, Task{
		TaskID: "1", TaskName: "n", TaskDesc: "d", DueDate: "2026-01-02",
		AssignedTo: "Alice", CreatedBy: "bob", CreatedDate: "2025-12-31", Status: "To Do",
	}, task)
}

func TestTaskUnmarshal_BadID(t *testing.T) {
	var task Task
	assert.Error(t, json.Unmarshal([]byte(`{"TaskID":{"nested":true}}`), &task))
}

func TestUserUnmarshal(t *testing.T) {
	var users []User
	require.NoError(t, json.Unmarshal([]byte(`[{"UserID":3,"UserName":"Alice"},{"UserID":"u4","UserName":"Bob"}]`), &users))
	assert.Equal(t, []User{{UserID: "3", UserName: "Alice"}, {UserID: "u4", UserName: "Bob"}}, users)
}

func TestNewTask_HasNoIdentifier(t *testing.T) {
	data, err := json.Marshal(NewTask{TaskName: "a", Status: "To Do"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "TaskID")
	assert.NotContains(t, string(data), "TaskId")
}

func TestUpdateFrom(t *testing.T) {
	u := UpdateFrom(Task{TaskID: "9", TaskName: "n", Status: "Completed", CreatedBy: "bob"})
	assert.Equal(t, TaskUpdate{TaskID: "9", TaskName: "n", Status: "Completed"}, u)

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TaskId":"9"`)
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	statuses := DefaultStatuses()

	assert.True(t, Task{DueDate: "2026-03-09", Status: "To Do"}.IsOverdue(statuses, now))
	assert.False(t, Task{DueDate: "2026-03-10", Status: "To Do"}.IsOverdue(statuses, now), "due today is not overdue")
	assert.False(t, Task{DueDate: "2026-03-09", Status: "Completed"}.IsOverdue(statuses, now))
	assert.False(t, Task{DueDate: "soon", Status: "To Do"}.IsOverdue(statuses, now))
	assert.False(t, Task{Status: "To Do"}.IsOverdue(statuses, now))
}

func TestStatusSet(t *testing.T) {
	s := DefaultStatuses()
	require.NoError(t, s.Validate())
	assert.Equal(t, []string{"To Do", "InProgress", "Completed"}, s.Labels())

	st, ok := s.ByLabel("InProgress")
	require.True(t, ok)
	assert.Equal(t, StatusKeyInProgress, st.Key)
	_, ok = s.ByLabel("In Progress")
	assert.False(t, ok, "labels match verbatim")

	first, _ := s.First()
	last, _ := s.Last()
	assert.Equal(t, StatusKeyTodo, first.Key)
	assert.Equal(t, StatusKeyDone, last.Key)

	_, ok = StatusSet{}.First()
	assert.False(t, ok)
}

func TestStatusSetValidate(t *testing.T) {
	assert.Error(t, StatusSet{}.Validate())
	assert.Error(t, StatusSet{{Key: "a"}}.Validate())
	assert.Error(t, StatusSet{{Key: "a", Label: "A"}, {Key: "a", Label: "B"}}.Validate())
	assert.Error(t, StatusSet{{Key: "a", Label: "A"}, {Key: "b", Label: "A"}}.Validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, def.Identity.ClientID, cfg.Identity.ClientID)
	assert.Equal(t, DefaultStatuses(), cfg.Board.Statuses)
	assert.Equal(t, 6, cfg.Display.BannerSec)
	assert.Equal(t, 120, cfg.Notifications.PollIntervalSec)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `api:
  base_url: https://tasks.test/
  timeout_sec: 15
board:
  statuses:
    - key: open
      label: Open
    - key: closed
      label: Closed
display:
  banner_sec: -1
notifications:
  enabled: true
  url: https://feed.test
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://tasks.test", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.API.TimeoutSec)
	assert.Equal(t, StatusSet{{Key: "open", Label: "Open"}, {Key: "closed", Label: "Closed"}}, cfg.Board.Statuses)
	assert.Equal(t, 6, cfg.Display.BannerSec, "non-positive banner duration falls back")
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, "https://feed.test", cfg.Notifications.URL)
	assert.Equal(t, DefaultConfig().Graph.BaseURL, cfg.Graph.BaseURL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TASKSUITE_API_BASE_URL", "https://env.test")
	t.Setenv("TASKSUITE_NOTIFICATIONS_POLL_INTERVAL_SEC", "30")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.test", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.Notifications.PollIntervalSec)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://saved.test"
	cfg.Store.Path = "/tmp/tasks.db"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.test", loaded.API.BaseURL)
	assert.Equal(t, "/tmp/tasks.db", loaded.Store.Path)
	assert.Equal(t, DefaultStatuses(), loaded.Board.Statuses)
}

func TestProfileIsEmpty(t *testing.T) {
	assert.True(t, Profile{}.IsEmpty())
	assert.False(t, Profile{Name: "a"}.IsEmpty())
}
