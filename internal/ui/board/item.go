package board

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/theme"
)

// CardItem wraps a model.Task so it can be used in a bubbles/list.
type CardItem struct {
	Task model.Task
}

// FilterValue returns the string used for list filtering.
func (i CardItem) FilterValue() string { return i.Task.TaskName }

// Title returns the task name.
func (i CardItem) Title() string { return i.Task.TaskName }

// Description returns the assignee and due date.
func (i CardItem) Description() string {
	parts := []string{}
	if i.Task.IsAssigned() {
		parts = append(parts, "@"+i.Task.AssignedTo)
	}
	if i.Task.DueDate != "" {
		parts = append(parts, "due "+i.Task.DueDate)
	}
	return strings.Join(parts, " | ")
}

// CardDelegate implements list.ItemDelegate for task cards.
type CardDelegate struct {
	statuses model.StatusSet
	now      func() time.Time
	focused  bool
}

// Height returns the number of lines each card takes.
func (d CardDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between cards.
func (d CardDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d CardDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws one card: the task name, then the assignee and due date.
func (d CardDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	card, ok := item.(CardItem)
	if !ok {
		return
	}
	t := card.Task

	width := m.Width() - 3
	if width < 4 {
		width = 4
	}
	title := truncate(t.TaskName, width)
	if title == "" {
		title = "(untitled)"
	}

	var meta []string
	if t.IsAssigned() {
		meta = append(meta, lipgloss.NewStyle().
			Foreground(theme.ColorMagenta).
			Render("@"+t.AssignedTo))
	}
	if t.DueDate != "" {
		overdue := t.IsOverdue(d.statuses, d.now())
		due := dueLabel(t, d.now())
		if overdue {
			due += " OVERDUE"
		}
		meta = append(meta, theme.DueStyle(overdue).Render(due))
	}
	second := strings.Join(meta, " ")
	if second == "" {
		second = theme.HelpStyle.Render("unassigned")
	}

	text := lipgloss.JoinVertical(lipgloss.Left, title, second)
	if d.focused && index == m.Index() {
		text = theme.SelectedCardStyle.Render(text)
	} else {
		text = theme.CardStyle.Render(text)
	}
	fmt.Fprint(w, text)
}

// dueLabel returns the due date relative to today, falling back to the raw
// value when it does not parse.
func dueLabel(t model.Task, now time.Time) string {
	due, ok := t.Due()
	if !ok {
		return t.DueDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(due.Sub(today).Hours() / 24)
	switch {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days == -1:
		return "due yesterday"
	case days > 1 && days < 7:
		return fmt.Sprintf("due in %dd", days)
	case days < -1 && days > -7:
		return fmt.Sprintf("due %dd ago", -days)
	default:
		return "due " + due.Format("Jan 02")
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
