// Package banner shows a one-line success or error notice that hides itself
// after a fixed duration.
package banner

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/theme"
)

// Kind selects the banner style.
type Kind int

const (
	Success Kind = iota
	Error
)

// hideMsg hides the banner if it is still showing message seq.
type hideMsg struct {
	seq int
}

// Model is the banner component.
type Model struct {
	kind    Kind
	text    string
	visible bool
	seq     int
	ttl     time.Duration
	width   int
}

// New creates a banner that hides after ttl.
func New(ttl time.Duration) Model {
	if ttl <= 0 {
		ttl = 6 * time.Second
	}
	return Model{ttl: ttl}
}

// Show displays text and schedules it to hide. A newer Show supersedes the
// pending hide of an older one.
func (m *Model) Show(kind Kind, text string) tea.Cmd {
	m.seq++
	m.kind = kind
	m.text = text
	m.visible = true
	seq := m.seq
	return tea.Tick(m.ttl, func(time.Time) tea.Msg {
		return hideMsg{seq: seq}
	})
}

// Success shows a success banner.
func (m *Model) Success(text string) tea.Cmd { return m.Show(Success, text) }

// Error shows an error banner.
func (m *Model) Error(text string) tea.Cmd { return m.Show(Error, text) }

// Hide clears the banner immediately.
func (m *Model) Hide() {
	m.visible = false
	m.text = ""
}

// Visible reports whether the banner is shown.
func (m Model) Visible() bool { return m.visible }

// Text returns the current message.
func (m Model) Text() string { return m.text }

// Kind returns the current style.
func (m Model) Kind() Kind { return m.kind }

// Update handles the auto-hide tick.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(hideMsg); ok && msg.seq == m.seq {
		m.Hide()
	}
	return m, nil
}

// View renders the banner, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	style := theme.SuccessBannerStyle
	if m.kind == Error {
		style = theme.ErrorBannerStyle
	}
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(lipgloss.NewStyle().MaxWidth(max(m.width-2, 1)).Render(m.text))
}

// SetWidth sets the rendered width.
func (m *Model) SetWidth(width int) {
	m.width = width
}
