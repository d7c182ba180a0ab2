package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	Refresh       Name = "refresh"
	NewTask       Name = "new"
	Mine          Name = "mine"
	Assignee      Name = "assignee"
	Clear         Name = "clear"
	Notifications Name = "notifications"
	ReadAll       Name = "read-all"
	Login         Name = "login"
	Logout        Name = "logout"
	Quit          Name = "quit"
)

// Names lists the commands in the order shown to the user.
func Names() []string {
	return []string{
		string(Refresh), string(NewTask), string(Mine), string(Assignee) + " <name>",
		string(Clear), string(Notifications), string(ReadAll),
		string(Login), string(Logout), string(Quit),
	}
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name Name
	Arg  string
}

// Parse splits a command line into its name and argument. Unknown names
// and missing arguments report ok=false.
func Parse(line string) (CommandMsg, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	name, arg, _ := strings.Cut(line, " ")
	msg := CommandMsg{Name: Name(strings.ToLower(name)), Arg: strings.TrimSpace(arg)}

	switch msg.Name {
	case Refresh, NewTask, Mine, Clear, Notifications, ReadAll, Login, Logout, Quit:
		return msg, true
	case Assignee:
		return msg, msg.Arg != ""
	case "q":
		return CommandMsg{Name: Quit}, true
	default:
		return msg, false
	}
}

// UnknownMsg is emitted for a line that does not parse.
type UnknownMsg string

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions([]string{
		string(Refresh), string(NewTask), string(Mine), string(Assignee) + " ",
		string(Clear), string(Notifications), string(ReadAll),
		string(Login), string(Logout), string(Quit),
	})
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			parsed, ok := Parse(line)
			return m, func() tea.Msg {
				if !ok {
					return UnknownMsg(line)
				}
				return parsed
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
