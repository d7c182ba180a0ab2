package taskform

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/theme"
)

// TaskCreatedMsg is dispatched when the create form is submitted.
type TaskCreatedMsg struct {
	Task model.NewTask
}

// TaskUpdatedMsg is dispatched when the edit form is submitted.
type TaskUpdatedMsg struct {
	ID     string
	Update model.TaskUpdate
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name        string
	description string
	dueDate     string
	assignee    string
	status      string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form        *huh.Form
	fb          *formBindings
	editMode    bool
	editID      string
	originalDue string
	createdBy   string
	statuses    model.StatusSet
	users       []model.User
	now         func() time.Time
	width       int
	height      int
}

// New creates a new task form model.
func New(statuses model.StatusSet, width, height int) Model {
	return Model{
		fb:       &formBindings{},
		statuses: statuses,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// SetUsers sets the entries offered by the assignee picker.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// SetCreator sets the name recorded as CreatedBy on new tasks.
func (m *Model) SetCreator(name string) {
	m.createdBy = name
}

// SetNow overrides the clock used for today's date.
func (m *Model) SetNow(now func() time.Time) {
	m.now = now
}

// Editing reports whether the form edits an existing task.
func (m Model) Editing() bool {
	return m.editMode
}

// StartCreate initializes the form for a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.editID = ""
	m.originalDue = ""
	*m.fb = formBindings{}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with the fields of an existing task.
func (m *Model) StartEdit(t model.Task) tea.Cmd {
	m.editMode = true
	m.editID = t.TaskID
	m.originalDue = t.DueDate
	*m.fb = formBindings{
		name:        t.TaskName,
		description: t.TaskDesc,
		dueDate:     t.DueDate,
		assignee:    t.AssignedTo,
		status:      t.Status,
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		submit := m.submitCmd()
		m.form = nil
		return m, submit
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editMode {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	hint := theme.HelpStyle.Render("enter next • shift+tab back • esc cancel")
	content := titleStyle.Render(titleText) + "\n" + m.form.View() + "\n" + hint

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Name").
			Placeholder("What needs to be done?").
			Value(&m.fb.name).
			Validate(validateRequired("Name")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&m.fb.description),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD").
			Value(&m.fb.dueDate).
			Validate(validateDueDate(m.now, m.originalDue)),
		huh.NewSelect[string]().
			Title("Assign To").
			Options(assigneeOptions(m.users, m.fb.assignee)...).
			Value(&m.fb.assignee),
	}
	if m.editMode {
		fields = append(fields,
			huh.NewSelect[string]().
				Title("Status").
				Options(statusOptions(m.statuses, m.fb.status)...).
				Value(&m.fb.status),
		)
	}

	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("esc", "ctrl+c"))

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithKeyMap(km).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// assigneeOptions lists "Unassigned" then every user by name. A current
// assignee missing from users is kept as an option so editing does not
// silently drop it.
func assigneeOptions(users []model.User, current string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	found := current == ""
	for _, u := range users {
		if u.UserName == "" {
			continue
		}
		if u.UserName == current {
			found = true
		}
		opts = append(opts, huh.NewOption(u.UserName, u.UserName))
	}
	if !found {
		opts = append(opts, huh.NewOption(current, current))
	}
	return opts
}

// statusOptions lists the configured labels, plus current when it is not
// one of them.
func statusOptions(statuses model.StatusSet, current string) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(statuses)+1)
	for _, st := range statuses {
		opts = append(opts, huh.NewOption(st.Label, st.Label))
	}
	if _, ok := statuses.ByLabel(current); !ok && current != "" {
		opts = append(opts, huh.NewOption(current+" (unknown)", current))
	}
	return opts
}

func (m Model) submitCmd() tea.Cmd {
	fb := *m.fb
	name := strings.TrimSpace(fb.name)
	desc := strings.TrimSpace(fb.description)
	due := strings.TrimSpace(fb.dueDate)

	if m.editMode {
		update := model.TaskUpdate{
			TaskName:   name,
			TaskDesc:   desc,
			DueDate:    due,
			AssignedTo: fb.assignee,
			Status:     fb.status,
			TaskID:     m.editID,
		}
		id := m.editID
		return func() tea.Msg { return TaskUpdatedMsg{ID: id, Update: update} }
	}

	status := ""
	if first, ok := m.statuses.First(); ok {
		status = first.Label
	}
	task := model.NewTask{
		TaskName:    name,
		TaskDesc:    desc,
		DueDate:     due,
		AssignedTo:  fb.assignee,
		CreatedBy:   m.createdBy,
		CreatedDate: m.now().Format(model.DateLayout),
		Status:      status,
	}
	return func() tea.Msg { return TaskCreatedMsg{Task: task} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// validateDueDate requires a YYYY-MM-DD date no earlier than today. The
// unchanged date of an edited task is accepted even when it has passed.
func validateDueDate(now func() time.Time, original string) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("Due Date is required")
		}
		due, err := time.Parse(model.DateLayout, s)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		if original != "" && s == original {
			return nil
		}
		n := now()
		today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
		if due.Before(today) {
			return fmt.Errorf("due date cannot be in the past")
		}
		return nil
	}
}
