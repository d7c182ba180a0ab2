package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/task-suite/internal/api"
	"github.com/nhle/task-suite/internal/identity"
	"github.com/nhle/task-suite/internal/keys"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/notify"
	"github.com/nhle/task-suite/internal/profile"
	"github.com/nhle/task-suite/internal/store"
	"github.com/nhle/task-suite/internal/theme"
	"github.com/nhle/task-suite/internal/ui"
	"github.com/nhle/task-suite/internal/ui/banner"
	"github.com/nhle/task-suite/internal/ui/board"
	"github.com/nhle/task-suite/internal/ui/command"
	"github.com/nhle/task-suite/internal/ui/detail"
	helpview "github.com/nhle/task-suite/internal/ui/help"
	"github.com/nhle/task-suite/internal/ui/taskform"
)

// TaskAPI is the subset of the task API client the UI uses.
type TaskAPI interface {
	ListTasks(ctx context.Context, scope api.Scope) ([]model.Task, error)
	CreateTask(ctx context.Context, t model.NewTask) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, u model.TaskUpdate) error
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Deps are the collaborators of the root model. Store and Poller are
// optional.
type Deps struct {
	Config    model.AppConfig
	Tasks     TaskAPI
	Identity  identity.Adapter
	Directory profile.Directory
	Profile   *profile.Store
	Store     store.Store
	Poller    *notify.Poller
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewBoard
	ViewDetail
	ViewForm
	ViewHelp
	ViewCommand
	ViewNotifications
)

// Model is the root Bubble Tea model that manages view routing, layout
// and the lifetime of background work.
type Model struct {
	deps     Deps
	statuses model.StatusSet

	ctx    context.Context
	cancel context.CancelFunc

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	board     board.Model
	detail    detail.Model
	form      taskform.Model
	helpView  helpview.Model
	command   command.Model
	banner    banner.Model
	spinner   spinner.Model
	notifView notificationsView

	// load tracks the in-flight board load; see tasks.go.
	load loadState

	login     loginState
	account   model.Account
	profile   model.Profile
	profileCh <-chan model.Profile
	users     []model.User

	unreadCount int
	ready       bool
}

// New creates the root model. The returned model owns a context that is
// cancelled on quit.
func New(d Deps) Model {
	if d.Profile == nil {
		d.Profile = profile.NewStore()
	}
	statuses := d.Config.Board.Statuses
	if statuses.Validate() != nil {
		statuses = model.DefaultStatuses()
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := keys.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.HelpStyle

	m := Model{
		deps:      d,
		statuses:  statuses,
		ctx:       ctx,
		cancel:    cancel,
		keys:      k,
		layout:    ui.NewLayout(80, 24),
		board:     board.New(k, statuses, 80, 22),
		detail:    detail.New(k, statuses, 80, 22),
		form:      taskform.New(statuses, 80, 22),
		helpView:  helpview.New(k, command.Names(), 80, 22),
		command:   command.New(80, 22),
		banner:    banner.New(time.Duration(d.Config.Display.BannerSec) * time.Second),
		spinner:   sp,
		notifView: newNotificationsView(),
		profile:   d.Profile.Snapshot(),
		profileCh: d.Profile.Subscribe(),
	}

	if acct, ok := d.Identity.CurrentAccount(); ok {
		m.account = acct
		m.currentView = ViewBoard
	} else {
		m.currentView = ViewLogin
	}
	m.applyProfile(m.profile)
	return m
}

// Init loads the local snapshot, starts the first board load when signed
// in, and starts the notifications poller.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.waitForProfile(),
		m.loadSnapshot(),
	}
	if m.currentView == ViewBoard {
		cmds = append(cmds, m.populateProfile())
	}
	if m.deps.Poller != nil {
		cmds = append(cmds, m.deps.Poller.Start(m.ctx))
	}
	if m.currentView == ViewBoard {
		cmds = append(cmds, initialLoad)
	}
	return tea.Batch(cmds...)
}

// initialLoad defers the first board load to Update, where the load state
// can be recorded on the model.
func initialLoad() tea.Msg { return board.RefreshRequestMsg{} }

// Update handles messages and dispatches to the active view. Views are
// resized whenever the banner appears or disappears.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	nm, ok := next.(Model)
	if !ok {
		return next, cmd
	}
	if nm.ready && (nm.layout.BannerHeight > 0) != nm.banner.Visible() {
		nm.resize()
	}
	return nm, cmd
}

func (m Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m.updateActiveView(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	// === Board loading ===

	case snapshotLoadedMsg:
		return m.handleSnapshot(msg), nil

	case tasksLoadedMsg:
		return m.handleTasksLoaded(msg)

	case board.RefreshRequestMsg:
		cmd := m.startLoad()
		return m, cmd

	// === Navigation between views ===

	case board.SelectedTaskMsg:
		m.cancelLoad()
		m.detail.SetTask(msg.Task)
		m.switchTo(ViewDetail)
		return m, nil

	case detail.BackMsg:
		cmd := m.backToBoard()
		return m, cmd

	case board.CreateRequestMsg:
		m.cancelLoad()
		m.form.SetUsers(m.users)
		m.switchTo(ViewForm)
		cmd := m.form.StartCreate()
		return m, cmd

	case board.EditRequestMsg:
		cmd := m.startEdit(msg.Task)
		return m, cmd

	case detail.EditMsg:
		cmd := m.startEdit(msg.Task)
		return m, cmd

	case taskform.CancelMsg:
		cmd := m.leaveForm()
		return m, cmd

	case taskform.TaskCreatedMsg:
		cmd := tea.Batch(m.leaveForm(), m.createTask(msg.Task))
		return m, cmd

	case taskform.TaskUpdatedMsg:
		cmd := tea.Batch(m.leaveForm(), m.updateTask(msg.ID, msg.Update))
		return m, cmd

	case taskSavedMsg:
		return m.handleTaskSaved(msg)

	// === Session ===

	case loginURLMsg:
		m.login.url = msg.url
		return m, nil

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case logoutResultMsg:
		return m.handleLogoutResult(msg)

	case profileMsg:
		m.applyProfile(msg.profile)
		return m, m.waitForProfile()

	case populateDoneMsg:
		return m, nil

	// === Notifications ===

	case notify.ResultMsg:
		if msg.Error == nil {
			m.unreadCount = msg.Unread
		}
		cmds := []tea.Cmd{m.deps.Poller.WaitForNextResult()}
		if m.currentView == ViewNotifications && msg.Added > 0 {
			cmds = append(cmds, m.loadNotifications())
		}
		return m, tea.Batch(cmds...)

	case notificationsLoadedMsg:
		m.notifView.set(msg.items, msg.err)
		m.unreadCount = msg.unread
		return m, nil

	// === Command palette ===

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg)
		return m, cmd

	case command.UnknownMsg:
		m.currentView = m.previousView
		cmd := m.banner.Error(fmt.Sprintf("unknown command: %s", string(msg)))
		return m, cmd

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKeys(msg); handled {
			return next, cmd
		}
	}

	if _, ok := msg.(tea.KeyMsg); !ok {
		var cmd tea.Cmd
		m.banner, cmd = m.banner.Update(msg)
		if cmd != nil {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that apply across views. handled is
// false when the key should go to the active view.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, m.quit(), true
	}

	// Forms and text inputs own every other key.
	if m.currentView == ViewForm || (m.currentView == ViewCommand && msg.String() != "esc") {
		return m, nil, false
	}
	if m.currentView == ViewBoard && m.board.Searching() {
		return m, nil, false
	}

	switch {
	case m.currentView == ViewLogin:
		return m.handleLoginKeys(msg)

	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewBoard {
			return m, m.quit(), true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.switchTo(ViewHelp)
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.switchTo(ViewCommand)
		cmd := m.command.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Back):
		switch m.currentView {
		case ViewHelp, ViewCommand:
			m.currentView = m.previousView
			return m, nil, true
		case ViewNotifications:
			cmd := m.backToBoard()
			return m, cmd, true
		}

	case key.Matches(msg, m.keys.Notifications):
		if m.currentView == ViewBoard {
			m.cancelLoad()
			m.switchTo(ViewNotifications)
			return m, m.loadNotifications(), true
		}

	case key.Matches(msg, m.keys.Logout):
		if m.currentView == ViewBoard {
			return m, m.logout(), true
		}
	}

	if m.currentView == ViewNotifications {
		return m.handleNotificationKeys(msg)
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBoard:
		m.board, cmd = m.board.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewForm:
		m.form, cmd = m.form.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.command, cmd = m.command.Update(msg)
	}

	return m, cmd
}

// switchTo records the current view and activates v.
func (m *Model) switchTo(v ViewState) {
	if m.currentView != ViewHelp && m.currentView != ViewCommand {
		m.previousView = m.currentView
	}
	m.currentView = v
}

// backToBoard returns to the board, restarting a load that was cancelled
// when the board was left.
func (m *Model) backToBoard() tea.Cmd {
	m.currentView = ViewBoard
	m.detail.Clear()
	if m.load.stale {
		return m.startLoad()
	}
	return nil
}

func (m *Model) leaveForm() tea.Cmd {
	if m.previousView == ViewDetail {
		m.currentView = ViewDetail
		return nil
	}
	return m.backToBoard()
}

func (m *Model) startEdit(t model.Task) tea.Cmd {
	if t.TaskID == "" {
		return m.banner.Error("cannot edit: task has no ID")
	}
	m.cancelLoad()
	m.form.SetUsers(m.users)
	m.switchTo(ViewForm)
	return m.form.StartEdit(t)
}

// quit cancels background work and exits the program.
func (m Model) quit() tea.Cmd {
	m.cancelLoad()
	m.login.cancelIfRunning()
	if m.deps.Poller != nil {
		m.deps.Poller.Stop()
	}
	m.cancel()
	return tea.Quit
}

// resize propagates the layout to every view.
func (m *Model) resize() {
	m.layout = m.layout.WithBanner(m.banner.Visible())
	w := m.layout.ContentWidth()
	h := m.layout.ContentHeight()
	m.board.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.form.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.command.SetSize(w, h)
	m.banner.SetWidth(w)
	m.notifView.setSize(w, h)
}

// applyProfile pushes a profile snapshot into the views that use it.
func (m *Model) applyProfile(p model.Profile) {
	m.profile = p
	name := p.Name
	if name == "" {
		name = m.account.Username
	}
	m.board.SetProfileName(name)
	m.form.SetCreator(name)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	layout := m.layout
	title := "Task Suite"
	if m.unreadCount > 0 {
		title = fmt.Sprintf("Task Suite [%d new]", m.unreadCount)
	}
	header := layout.RenderHeader(title, m.headerStatus())
	content := m.renderContent()
	statusBar := layout.RenderStatusBar(m.keyHints())

	return layout.RenderWithFrame(header, m.banner.View(), content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.renderLogin()
	case ViewBoard:
		return m.board.View()
	case ViewDetail:
		return m.detail.View()
	case ViewForm:
		return m.form.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.command.View()
	case ViewNotifications:
		return m.notifView.view()
	default:
		return ""
	}
}

// snapshotTimeLayout formats the sync time of an offline board.
const snapshotTimeLayout = "Jan 02 15:04"

// headerStatus shows the signed-in user, load activity, the age of an
// offline board and a failing notifications feed.
func (m Model) headerStatus() string {
	who := m.profile.Name
	if who == "" {
		who = m.account.Username
	}
	if who == "" {
		who = "signed out"
	}

	var parts []string
	if m.load.running {
		parts = append(parts, m.spinner.View()+" loading")
	}
	if !m.load.live && !m.load.snapshotAt.IsZero() {
		parts = append(parts, "offline copy from "+m.load.snapshotAt.Local().Format(snapshotTimeLayout))
	}
	if m.deps.Poller != nil && m.deps.Poller.Status().State == notify.PollError {
		parts = append(parts, "feed error")
	}
	return strings.Join(append(parts, who), " | ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		if m.login.running {
			return "esc cancel sign-in | ctrl+c quit"
		}
		return "l sign in | q quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | e edit | j/k scroll"
	case ViewForm:
		return "enter next | esc cancel"
	case ViewNotifications:
		return "j/k move | enter mark read | a mark all read | esc back"
	default:
		if m.board.Searching() {
			return "enter apply | esc clear search"
		}
		return "q quit | ? help | n new | e edit | / search | m mine | u assignee | r refresh"
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Name {
	case command.Refresh:
		if m.deps.Poller != nil {
			m.deps.Poller.Refresh()
		}
		return m.startLoad()
	case command.NewTask:
		if m.account == (model.Account{}) {
			return nil
		}
		m.cancelLoad()
		m.form.SetUsers(m.users)
		m.currentView = ViewBoard
		m.switchTo(ViewForm)
		return m.form.StartCreate()
	case command.Mine:
		m.board.ToggleMine()
	case command.Assignee:
		m.board.SetAssignee(c.Arg)
	case command.Clear:
		m.board.ClearFilters()
	case command.Notifications:
		m.cancelLoad()
		m.currentView = ViewBoard
		m.switchTo(ViewNotifications)
		return m.loadNotifications()
	case command.ReadAll:
		return m.markAllRead()
	case command.Login:
		if m.currentView != ViewLogin {
			m.currentView = ViewLogin
		}
		return m.startLogin()
	case command.Logout:
		return m.logout()
	case command.Quit:
		return m.quit()
	}
	return nil
}
