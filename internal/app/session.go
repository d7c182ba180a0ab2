package app

import (
	"context"
	"errors"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/profile"
	"github.com/nhle/task-suite/internal/theme"
)

// loginState tracks an interactive sign-in.
type loginState struct {
	running bool
	url     string
	err     string
	cancel  context.CancelFunc
}

func (l *loginState) cancelIfRunning() {
	if l.running && l.cancel != nil {
		l.cancel()
	}
}

// loginURLMsg carries the authorization URL the user must open.
type loginURLMsg struct {
	url string
}

// loginResultMsg is sent when the sign-in flow returns.
type loginResultMsg struct {
	account model.Account
	err     error
}

// logoutResultMsg is sent after the token cache is cleared.
type logoutResultMsg struct {
	err error
}

// profileMsg carries a profile published by the profile store.
type profileMsg struct {
	profile model.Profile
}

// populateDoneMsg is sent when profile population finishes.
type populateDoneMsg struct {
	result profile.Result
}

// startLogin runs the interactive sign-in in the background. The
// authorization URL arrives separately as a loginURLMsg.
func (m *Model) startLogin() tea.Cmd {
	if m.login.running {
		return nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.login = loginState{running: true, cancel: cancel}

	ids := m.deps.Identity
	urls := make(chan string, 1)
	run := func() tea.Msg {
		defer cancel()
		acct, err := ids.Login(ctx, func(u string) {
			select {
			case urls <- u:
			default:
			}
		})
		close(urls)
		return loginResultMsg{account: acct, err: err}
	}
	wait := func() tea.Msg {
		u, ok := <-urls
		if !ok {
			return nil
		}
		return loginURLMsg{url: u}
	}
	return tea.Batch(run, wait)
}

func (m Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "l", "L", "enter":
		cmd := m.startLogin()
		return m, cmd, true
	case "esc":
		m.login.cancelIfRunning()
		return m, nil, true
	case "q":
		if !m.login.running {
			return m, m.quit(), true
		}
	}
	return m, nil, false
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.login.running = false
	m.login.cancel = nil
	m.login.url = ""

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			m.login.err = "Sign-in cancelled."
			return m, nil
		}
		log.Printf("app: sign-in failed: %v", msg.err)
		m.login.err = "Sign-in failed: " + msg.err.Error()
		cmd := m.banner.Error("Sign-in failed")
		return m, cmd
	}

	m.login.err = ""
	m.account = msg.account
	m.currentView = ViewBoard
	m.applyProfile(m.profile)

	who := msg.account.Username
	if who == "" {
		who = msg.account.Name
	}
	cmd := tea.Batch(
		m.banner.Success("Signed in as "+who),
		m.populateProfile(),
		m.startLoad(),
	)
	return m, cmd
}

// logout clears the token cache in the background.
func (m Model) logout() tea.Cmd {
	ids := m.deps.Identity
	return func() tea.Msg {
		return logoutResultMsg{err: ids.Logout()}
	}
}

func (m Model) handleLogoutResult(msg logoutResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		log.Printf("app: sign-out failed: %v", msg.err)
		cmd := m.banner.Error("Sign-out failed")
		return m, cmd
	}
	m.cancelLoad()
	m.load.stale = false
	m.account = model.Account{}
	m.deps.Profile.Reset()
	m.board.ClearFilters()
	m.currentView = ViewLogin
	cmd := m.banner.Success("Signed out")
	return m, cmd
}

// populateProfile fills the profile store from the directory.
func (m Model) populateProfile() tea.Cmd {
	if m.deps.Directory == nil {
		return nil
	}
	ids, dir, ps := m.deps.Identity, m.deps.Directory, m.deps.Profile
	ctx := m.ctx
	return func() tea.Msg {
		return populateDoneMsg{result: profile.Populate(ctx, ids, dir, ps)}
	}
}

// waitForProfile delivers the next published profile.
func (m Model) waitForProfile() tea.Cmd {
	ch := m.profileCh
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case p := <-ch:
			return profileMsg{profile: p}
		case <-ctx.Done():
			return nil
		}
	}
}

// renderLogin draws the sign-in screen.
func (m Model) renderLogin() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	lines := []string{
		titleStyle.Render("Task Suite"),
		"Sign in with your organization account to see your tasks.",
		"",
	}

	switch {
	case m.login.running && m.login.url != "":
		lines = append(lines,
			m.spinner.View()+" Waiting for sign-in. Open this URL in your browser:",
			"",
			lipgloss.NewStyle().Foreground(theme.ColorBlue).Render(m.login.url),
		)
	case m.login.running:
		lines = append(lines, m.spinner.View()+" Starting sign-in...")
	default:
		lines = append(lines, theme.HelpStyle.Render("Press l to sign in."))
	}

	if m.login.err != "" {
		lines = append(lines, "", theme.DueStyle(true).Render(m.login.err))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	box := theme.DetailPanelStyle.
		Width(min(m.layout.ContentWidth()-4, 90)).
		Render(content)

	return lipgloss.Place(
		m.layout.ContentWidth(),
		m.layout.ContentHeight(),
		lipgloss.Center,
		lipgloss.Center,
		box,
	)
}
