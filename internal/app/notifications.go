package app

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/theme"
)

// notificationsLimit caps the entries shown in the notifications view.
const notificationsLimit = 50

// notificationsLoadedMsg carries the stored notifications.
type notificationsLoadedMsg struct {
	items  []model.Notification
	unread int
	err    error
}

// notificationsView lists stored notifications, newest first.
type notificationsView struct {
	items  []model.Notification
	cursor int
	err    error
	width  int
	height int
}

func newNotificationsView() notificationsView {
	return notificationsView{}
}

func (v *notificationsView) set(items []model.Notification, err error) {
	v.items = items
	v.err = err
	if v.cursor >= len(items) {
		v.cursor = max(len(items)-1, 0)
	}
}

func (v *notificationsView) setSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *notificationsView) selected() (model.Notification, bool) {
	if v.cursor < 0 || v.cursor >= len(v.items) {
		return model.Notification{}, false
	}
	return v.items[v.cursor], true
}

func (v notificationsView) view() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	lines := []string{titleStyle.Render("Notifications")}
	switch {
	case v.err != nil:
		lines = append(lines, theme.DueStyle(true).Render("Could not read notifications: "+v.err.Error()))
	case len(v.items) == 0:
		lines = append(lines, theme.HelpStyle.Render("No notifications."))
	}

	visible := max(v.height-6, 1)
	start := 0
	if v.cursor >= visible {
		start = v.cursor - visible + 1
	}
	for i := start; i < len(v.items) && i < start+visible; i++ {
		n := v.items[i]
		marker := "  "
		if !n.Read {
			marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("● ")
		}
		when := ""
		if !n.CreatedAt.IsZero() {
			when = theme.HelpStyle.Render(" " + n.CreatedAt.Local().Format("Jan 02 15:04"))
		}
		line := marker + n.Message + when
		if i == v.cursor {
			line = theme.SelectedCardStyle.Render(line)
		} else {
			line = theme.CardStyle.Render(line)
		}
		lines = append(lines, line)
	}

	return theme.DetailPanelStyle.
		Width(max(v.width-4, 10)).
		Render(strings.Join(lines, "\n"))
}

// loadNotifications reads the newest stored notifications.
func (m Model) loadNotifications() tea.Cmd {
	s := m.deps.Store
	if s == nil {
		return func() tea.Msg {
			return notificationsLoadedMsg{err: fmt.Errorf("no local store configured")}
		}
	}
	ctx := m.ctx
	return func() tea.Msg {
		items, err := s.GetNotifications(ctx, notificationsLimit)
		if err != nil {
			return notificationsLoadedMsg{err: err}
		}
		unread, err := s.CountUnreadNotifications(ctx)
		if err != nil {
			log.Printf("app: counting unread notifications: %v", err)
		}
		return notificationsLoadedMsg{items: items, unread: unread}
	}
}

// markRead marks one notification read and reloads the view.
func (m Model) markRead(id string) tea.Cmd {
	s := m.deps.Store
	if s == nil {
		return nil
	}
	ctx := m.ctx
	reload := m.loadNotifications()
	return func() tea.Msg {
		if err := s.MarkNotificationRead(ctx, id); err != nil {
			log.Printf("app: marking notification read: %v", err)
		}
		return reload()
	}
}

// markAllRead marks every notification read and reloads the view.
func (m Model) markAllRead() tea.Cmd {
	s := m.deps.Store
	if s == nil {
		return nil
	}
	ctx := m.ctx
	reload := m.loadNotifications()
	return func() tea.Msg {
		if err := s.MarkAllNotificationsRead(ctx); err != nil {
			log.Printf("app: marking notifications read: %v", err)
		}
		return reload()
	}
}

func (m Model) handleNotificationKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "j", "down":
		if m.notifView.cursor < len(m.notifView.items)-1 {
			m.notifView.cursor++
		}
		return m, nil, true
	case "k", "up":
		if m.notifView.cursor > 0 {
			m.notifView.cursor--
		}
		return m, nil, true
	case "enter":
		n, ok := m.notifView.selected()
		if !ok || n.Read {
			return m, nil, true
		}
		return m, m.markRead(n.ID), true
	case "a":
		return m, m.markAllRead(), true
	}
	return m, nil, false
}
