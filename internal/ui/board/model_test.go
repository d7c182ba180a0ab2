package board

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/task-suite/internal/keys"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/tests/testutil"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newBoard(t *testing.T) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), model.DefaultStatuses(), 120, 40)
	m.SetNow(func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) })
	m.SetProfileName("bob@corp.example")
	m.SetTasks(testutil.SampleTasks())
	return m
}

func send(m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func TestBoard_InitialGrouping(t *testing.T) {
	m := newBoard(t)

	counts := m.Board().Counts()
	assert.Equal(t, 1, counts[model.StatusKeyTodo])
	assert.Equal(t, 1, counts[model.StatusKeyInProgress])
	assert.Equal(t, 1, counts[model.StatusKeyDone])

	sel, ok := m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "1", sel.TaskID)
}

func TestBoard_MoveFocusAcrossColumns(t *testing.T) {
	m := newBoard(t)

	m, _ = send(m, runes("l"))
	assert.Equal(t, 1, m.Focus())
	sel, ok := m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "2", sel.TaskID)

	m, _ = send(m, runes("l"), runes("l"), runes("l"))
	assert.Equal(t, 2, m.Focus(), "focus clamps at the last column")

	m, _ = send(m, tea.KeyMsg{Type: tea.KeyShiftTab}, runes("h"), runes("h"))
	assert.Equal(t, 0, m.Focus())
}

func TestBoard_SearchFiltersLive(t *testing.T) {
	m := newBoard(t)

	m, _ = send(m, runes("/"))
	require.True(t, m.Searching())

	m, _ = send(m, runes("l"), runes("o"), runes("g"))
	assert.Equal(t, "log", m.Query().Text)
	assert.Equal(t, 1, m.Board().Len())
	assert.Equal(t, []model.Task{testutil.SampleTasks()[1]}, m.Board().Flatten())

	m, _ = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Searching())
	assert.Equal(t, "log", m.Query().Text, "enter keeps the query")

	m, _ = send(m, runes("/"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.Query().Text, "esc clears the query")
	assert.Equal(t, 3, m.Board().Len())
}

func TestBoard_MineToggle(t *testing.T) {
	m := newBoard(t)

	m, _ = send(m, runes("m"))
	assert.True(t, m.Query().MineOnly)
	for _, task := range m.Board().Flatten() {
		assert.Equal(t, "bob@corp.example", task.CreatedBy)
	}
	assert.Equal(t, 2, m.Board().Len())

	m, _ = send(m, runes("m"))
	assert.False(t, m.Query().MineOnly)
	assert.Equal(t, 3, m.Board().Len())
}

func TestBoard_CycleAssignee(t *testing.T) {
	m := newBoard(t)

	m, _ = send(m, runes("u"))
	assert.Equal(t, "Alice", m.Query().Assignee)
	assert.Equal(t, 1, m.Board().Len())

	m, _ = send(m, runes("u"))
	assert.Equal(t, "Dave", m.Query().Assignee)

	m, _ = send(m, runes("u"))
	assert.Empty(t, m.Query().Assignee, "cycling past the last assignee clears the filter")
}

func TestBoard_SetAssigneeAndClear(t *testing.T) {
	m := newBoard(t)

	m.SetAssignee("dave")
	assert.Equal(t, []model.Task{testutil.SampleTasks()[2]}, m.Board().Flatten())

	m.ToggleMine()
	m.ClearFilters()
	assert.True(t, m.Query().IsZero())
	assert.Equal(t, "bob@corp.example", m.Query().ProfileName)
}

func TestBoard_SelectionMessages(t *testing.T) {
	m := newBoard(t)

	_, cmd := send(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedTaskMsg{Task: testutil.SampleTasks()[0]}, cmd())

	_, cmd = send(m, runes("e"))
	require.NotNil(t, cmd)
	assert.Equal(t, EditRequestMsg{Task: testutil.SampleTasks()[0]}, cmd())

	_, cmd = send(m, runes("n"))
	require.NotNil(t, cmd)
	assert.Equal(t, CreateRequestMsg{}, cmd())

	_, cmd = send(m, runes("r"))
	require.NotNil(t, cmd)
	assert.Equal(t, RefreshRequestMsg{}, cmd())
}

func TestBoard_EnterOnEmptyColumnDoesNothing(t *testing.T) {
	m := newBoard(t)
	m.SetAssignee("nobody")

	_, cmd := send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestBoard_QuitKeyIsNotConsumed(t *testing.T) {
	m := newBoard(t)

	_, cmd := send(m, runes("q"))
	assert.Nil(t, cmd)
}

func TestBoard_ViewStates(t *testing.T) {
	m := New(keys.DefaultKeyMap(), model.DefaultStatuses(), 120, 40)
	assert.Contains(t, m.View(), "Loading tasks")

	m.SetTasks(nil)
	assert.Contains(t, m.View(), "No tasks yet")

	m.SetTasks(testutil.SampleTasks())
	view := m.View()
	assert.Contains(t, view, "To Do")
	assert.Contains(t, view, "InProgress")
	assert.Contains(t, view, "Completed")
	assert.Contains(t, view, "Write report")

	m.SetAssignee("nobody")
	assert.Contains(t, m.View(), "No matching tasks")
}

func TestDueLabel(t *testing.T) {
	now := time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		due  string
		want string
	}{
		{"2026-10-14", "due today"},
		{"2026-10-15", "due tomorrow"},
		{"2026-10-13", "due yesterday"},
		{"2026-10-17", "due in 3d"},
		{"2026-10-10", "due 4d ago"},
		{"2026-12-25", "due Dec 25"},
		{"someday", "someday"},
	}
	for _, tt := range tests {
		t.Run(tt.due, func(t *testing.T) {
			assert.Equal(t, tt.want, dueLabel(model.Task{DueDate: tt.due}, now))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
