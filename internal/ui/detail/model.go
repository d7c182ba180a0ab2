package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/keys"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/theme"
)

// BackMsg signals the parent to navigate back to the board.
type BackMsg struct{}

// EditMsg asks the parent to open the edit form for the shown task.
type EditMsg struct {
	Task model.Task
}

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	statuses model.StatusSet
	viewport viewport.Model
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, statuses model.StatusSet, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		statuses: statuses,
		keys:     keys,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Edit):
			if m.task != nil {
				t := *m.task
				return m, func() tea.Msg {
					return EditMsg{Task: t}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.task == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No task selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	name := task.TaskName
	if name == "" {
		name = "(untitled)"
	}
	sections = append(sections, titleStyle.Render(name))

	statusKey := ""
	if st, ok := m.statuses.ByLabel(task.Status); ok {
		statusKey = st.Key
	}
	badges := []string{theme.StatusStyle(statusKey).Render(task.Status)}
	overdue := task.IsOverdue(m.statuses, m.now())
	if overdue {
		badges = append(badges, "  ", theme.DueStyle(true).Render("OVERDUE"))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, badges...))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	assignee := task.AssignedTo
	if assignee == "" {
		assignee = "unassigned"
	}
	rows := [][2]string{
		{"ID:", task.TaskID},
		{"Assignee:", assignee},
		{"Due:", task.DueDate},
		{"Created by:", task.CreatedBy},
		{"Created:", task.CreatedDate},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		val := valStyle.Render(r[1])
		if r[0] == "Due:" {
			val = theme.DueStyle(overdue).Render(r[1])
		}
		sections = append(sections, fmt.Sprintf(
			"%s %s",
			metaStyle.Width(12).Render(r[0]),
			val,
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, descHeaderStyle.Render("Description"))

	body := task.TaskDesc
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	} else {
		body = lipgloss.NewStyle().Width(max(m.width-4, 10)).Render(body)
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(t model.Task) {
	m.task = &t
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Task returns the shown task.
func (m Model) Task() (model.Task, bool) {
	if m.task == nil {
		return model.Task{}, false
	}
	return *m.task, true
}

// Clear removes the shown task.
func (m *Model) Clear() {
	m.task = nil
	m.viewport.SetContent("")
}

// SetNow overrides the clock used for the overdue badge.
func (m *Model) SetNow(now func() time.Time) {
	m.now = now
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
