// Package board is the three-column task view: one list per status, with
// search, creator and assignee filters applied client-side.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	taskboard "github.com/nhle/task-suite/internal/board"
	"github.com/nhle/task-suite/internal/keys"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/theme"
	"github.com/nhle/task-suite/internal/ui"
)

// SelectedTaskMsg is sent when the user opens a task.
type SelectedTaskMsg struct {
	Task model.Task
}

// CreateRequestMsg asks the app to open the create form.
type CreateRequestMsg struct{}

// EditRequestMsg asks the app to open the edit form for a task.
type EditRequestMsg struct {
	Task model.Task
}

// RefreshRequestMsg asks the app to reload tasks from the API.
type RefreshRequestMsg struct{}

// chromeHeight is the filter line plus the column border and header.
const chromeHeight = 4

// Model is the board view component.
type Model struct {
	keys     *keys.KeyMap
	statuses model.StatusSet
	now      func() time.Time

	tasks     []model.Task
	query     taskboard.Query
	assignees []string
	// assigneeIdx is the position in assignees; -1 means unfiltered.
	assigneeIdx int
	loaded      bool

	columns []list.Model
	focus   int

	searchMode  bool
	searchInput textinput.Model

	width  int
	height int
}

// New creates a board with one column per status.
func New(k *keys.KeyMap, statuses model.StatusSet, width, height int) Model {
	si := textinput.New()
	si.Placeholder = "search name, description, people..."
	si.Prompt = "/ "
	si.Width = width - 4

	m := Model{
		keys:        k,
		statuses:    statuses,
		now:         time.Now,
		assigneeIdx: -1,
		searchInput: si,
		width:       width,
		height:      height,
	}
	m.columns = make([]list.Model, len(statuses))
	for i := range statuses {
		l := list.New([]list.Item{}, m.delegate(i), 0, 0)
		l.SetShowTitle(false)
		l.SetShowStatusBar(false)
		l.SetShowHelp(false)
		l.SetFilteringEnabled(false)
		l.SetShowPagination(true)
		l.DisableQuitKeybindings()
		m.columns[i] = l
	}
	m.SetSize(width, height)
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the board view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searchMode {
		return m.handleSearchKeys(keyMsg)
	}
	return m.handleNormalKeys(keyMsg)
}

// handleSearchKeys filters live as the user types. Enter keeps the query,
// esc clears it.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil
	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.query.Text = ""
		m.rebuild()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() != m.query.Text {
		m.query.Text = m.searchInput.Value()
		m.rebuild()
	}
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.query.Text)
		m.searchInput.CursorEnd()
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Left):
		m.setFocus(m.focus - 1)
		return m, nil

	case key.Matches(msg, m.keys.Right):
		m.setFocus(m.focus + 1)
		return m, nil

	case key.Matches(msg, m.keys.MineOnly):
		m.ToggleMine()
		return m, nil

	case key.Matches(msg, m.keys.CycleAssignee):
		m.CycleAssignee()
		return m, nil

	case key.Matches(msg, m.keys.Select):
		t, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return SelectedTaskMsg{Task: t} }

	case key.Matches(msg, m.keys.Edit):
		t, ok := m.SelectedTask()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return EditRequestMsg{Task: t} }

	case key.Matches(msg, m.keys.Create):
		return m, func() tea.Msg { return CreateRequestMsg{} }

	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg { return RefreshRequestMsg{} }

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		if len(m.columns) == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.columns[m.focus], cmd = m.columns[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// SetTasks replaces the task list and regroups it.
func (m *Model) SetTasks(tasks []model.Task) {
	m.tasks = tasks
	m.loaded = true
	m.assignees = taskboard.Assignees(tasks)
	if m.query.Assignee != "" {
		m.assigneeIdx = indexFold(m.assignees, m.query.Assignee)
	}
	m.rebuild()
}

// Tasks returns the unfiltered task list.
func (m Model) Tasks() []model.Task {
	return m.tasks
}

// SetProfileName sets the name the "mine" filter compares against.
func (m *Model) SetProfileName(name string) {
	m.query.ProfileName = name
	m.rebuild()
}

// Query returns the active filters.
func (m Model) Query() taskboard.Query {
	return m.query
}

// Board returns the current grouping.
func (m Model) Board() taskboard.Board {
	return taskboard.Partition(m.tasks, m.query, m.statuses)
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// ToggleMine flips the created-by-me filter.
func (m *Model) ToggleMine() {
	m.query.MineOnly = !m.query.MineOnly
	m.rebuild()
}

// CycleAssignee advances the assignee filter through the known assignees
// and back to unfiltered.
func (m *Model) CycleAssignee() {
	if len(m.assignees) == 0 {
		m.assigneeIdx = -1
		m.query.Assignee = ""
		m.rebuild()
		return
	}
	m.assigneeIdx++
	if m.assigneeIdx >= len(m.assignees) {
		m.assigneeIdx = -1
		m.query.Assignee = ""
	} else {
		m.query.Assignee = m.assignees[m.assigneeIdx]
	}
	m.rebuild()
}

// SetAssignee filters by an explicit assignee name; empty clears it.
func (m *Model) SetAssignee(name string) {
	name = strings.TrimSpace(name)
	m.query.Assignee = name
	m.assigneeIdx = -1
	if name != "" {
		m.assigneeIdx = indexFold(m.assignees, name)
	}
	m.rebuild()
}

// ClearFilters removes every filter except the profile name.
func (m *Model) ClearFilters() {
	m.query = taskboard.Query{ProfileName: m.query.ProfileName}
	m.assigneeIdx = -1
	m.searchInput.Reset()
	m.rebuild()
}

// SelectedTask returns the highlighted task of the focused column.
func (m Model) SelectedTask() (model.Task, bool) {
	if len(m.columns) == 0 {
		return model.Task{}, false
	}
	item, ok := m.columns[m.focus].SelectedItem().(CardItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Focus returns the index of the focused column.
func (m Model) Focus() int {
	return m.focus
}

// SetNow overrides the clock used for due-date rendering.
func (m *Model) SetNow(now func() time.Time) {
	m.now = now
	for i := range m.columns {
		m.columns[i].SetDelegate(m.delegate(i))
	}
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = width - 4

	colW := ui.NewLayout(width, height).ColumnWidth(len(m.columns))
	listH := height - chromeHeight
	if listH < 0 {
		listH = 0
	}
	for i := range m.columns {
		m.columns[i].SetSize(colW-4, listH)
	}
}

func (m *Model) setFocus(i int) {
	if len(m.columns) == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= len(m.columns) {
		i = len(m.columns) - 1
	}
	m.focus = i
	for c := range m.columns {
		m.columns[c].SetDelegate(m.delegate(c))
	}
}

func (m Model) delegate(col int) CardDelegate {
	return CardDelegate{statuses: m.statuses, now: m.now, focused: col == m.focus}
}

// rebuild regroups the tasks into the column lists, keeping each column's
// cursor where possible.
func (m *Model) rebuild() {
	b := taskboard.Partition(m.tasks, m.query, m.statuses)
	for i, col := range b.Columns {
		items := make([]list.Item, len(col.Tasks))
		for j, t := range col.Tasks {
			items[j] = CardItem{Task: t}
		}
		idx := m.columns[i].Index()
		m.columns[i].SetItems(items)
		if idx >= len(items) {
			idx = len(items) - 1
		}
		if idx >= 0 {
			m.columns[i].Select(idx)
		}
	}
}

// View renders the board view.
func (m Model) View() string {
	top := m.renderFilterLine()
	if m.searchMode {
		top = lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
	}

	b := m.Board()
	if b.Len() == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, top, m.renderEmptyState())
	}

	colW := ui.NewLayout(m.width, m.height).ColumnWidth(len(m.columns))
	rendered := make([]string, len(b.Columns))
	for i, col := range b.Columns {
		header := theme.StatusStyle(col.Status.Key).Render(col.Status.Label) +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render(fmt.Sprintf("(%d)", len(col.Tasks)))
		style := theme.ColumnStyle
		if i == m.focus {
			style = theme.FocusedColumnStyle
		}
		rendered[i] = style.Width(colW - 2).Render(
			lipgloss.JoinVertical(lipgloss.Left, header, m.columns[i].View()),
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		top,
		lipgloss.JoinHorizontal(lipgloss.Top, rendered...),
	)
}

// renderFilterLine summarizes the active filters.
func (m Model) renderFilterLine() string {
	var parts []string
	if q := strings.TrimSpace(m.query.Text); q != "" {
		parts = append(parts, fmt.Sprintf("search: %q", q))
	}
	if m.query.MineOnly {
		parts = append(parts, "created by me")
	}
	if m.query.Assignee != "" {
		parts = append(parts, "assignee: "+m.query.Assignee)
	}
	if len(parts) == 0 {
		return theme.HelpStyle.Render(" all tasks")
	}
	return theme.HelpStyle.Render(" filters: " + strings.Join(parts, ", "))
}

// renderEmptyState shows guidance text when no cards are visible.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-1).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case !m.loaded:
		return style.Render("Loading tasks...")
	case len(m.tasks) > 0 || !m.query.IsZero():
		return style.Render("No matching tasks.\nPress : then type 'clear' to reset filters.")
	default:
		return style.Render("No tasks yet.\n\nPress n to create one.")
	}
}

func indexFold(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
