package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/task-suite/internal/api"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/store"
)

// loadState tracks the board load in flight. Each load gets its own
// context and sequence number; results whose seq is not the latest are
// dropped.
type loadState struct {
	seq     int
	cancel  context.CancelFunc
	running bool
	// stale is set when a load was cancelled by leaving the board.
	stale bool
	// live is set once a load from the API has succeeded, after which the
	// local snapshot is no longer applied.
	live bool
	// snapshotAt is when the shown snapshot was last synced. Zero when the
	// board is not showing a snapshot.
	snapshotAt time.Time
}

// tasksLoadedMsg carries the result of a board load.
type tasksLoadedMsg struct {
	seq      int
	tasks    []model.Task
	users    []model.User
	err      error
	usersErr error
}

// snapshotLoadedMsg carries the last stored task and user lists.
type snapshotLoadedMsg struct {
	tasks    []model.Task
	users    []model.User
	syncedAt time.Time
}

// taskSavedMsg is sent after a create or update call returns.
type taskSavedMsg struct {
	created bool
	id      string
	// record is the server's copy of a created task, when it returned one.
	record *model.Task
	update model.TaskUpdate
	err    error
}

// startLoad cancels any load in flight and fetches tasks and users.
func (m *Model) startLoad() tea.Cmd {
	if m.load.cancel != nil {
		m.load.cancel()
	}
	m.load.seq++
	ctx, cancel := context.WithCancel(m.ctx)
	m.load.cancel = cancel
	m.load.running = true
	m.load.stale = false

	seq := m.load.seq
	tasksAPI := m.deps.Tasks
	s := m.deps.Store
	return func() tea.Msg {
		defer cancel()
		msg := fetchBoard(ctx, tasksAPI)
		msg.seq = seq
		if msg.err == nil && s != nil {
			saveSnapshot(ctx, s, msg)
		}
		return msg
	}
}

// cancelLoad abandons the load in flight, if any.
func (m *Model) cancelLoad() {
	if !m.load.running {
		return
	}
	if m.load.cancel != nil {
		m.load.cancel()
	}
	m.load.cancel = nil
	m.load.running = false
	m.load.stale = true
}

// fetchBoard fetches tasks and users concurrently. A users failure is
// reported separately and does not fail the load.
func fetchBoard(ctx context.Context, c TaskAPI) tasksLoadedMsg {
	var (
		g   errgroup.Group
		msg tasksLoadedMsg
	)
	g.Go(func() error {
		tasks, err := c.ListTasks(ctx, api.All())
		if err != nil {
			return fmt.Errorf("loading tasks: %w", err)
		}
		msg.tasks = tasks
		return nil
	})
	g.Go(func() error {
		users, err := c.ListUsers(ctx)
		if err != nil {
			msg.usersErr = fmt.Errorf("loading users: %w", err)
			return nil
		}
		msg.users = users
		return nil
	})
	msg.err = g.Wait()
	return msg
}

func saveSnapshot(ctx context.Context, s store.Store, msg tasksLoadedMsg) {
	now := time.Now()
	if err := s.ReplaceTasks(ctx, msg.tasks); err != nil {
		log.Printf("app: saving task snapshot: %v", err)
	} else if err := s.MarkSynced(ctx, store.SyncTasks, now); err != nil {
		log.Printf("app: %v", err)
	}
	if msg.usersErr != nil {
		return
	}
	if err := s.ReplaceUsers(ctx, msg.users); err != nil {
		log.Printf("app: saving user snapshot: %v", err)
	} else if err := s.MarkSynced(ctx, store.SyncUsers, now); err != nil {
		log.Printf("app: %v", err)
	}
}

// loadSnapshot reads the last stored board so it can be shown before the
// first live load completes.
func (m Model) loadSnapshot() tea.Cmd {
	s := m.deps.Store
	if s == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		tasks, err := s.GetTasks(ctx, store.TaskFilter{})
		if err != nil {
			log.Printf("app: reading task snapshot: %v", err)
			return nil
		}
		users, err := s.GetUsers(ctx)
		if err != nil {
			log.Printf("app: reading user snapshot: %v", err)
		}
		msg := snapshotLoadedMsg{tasks: tasks, users: users}
		if at, ok, err := s.LastSynced(ctx, store.SyncTasks); err != nil {
			log.Printf("app: %v", err)
		} else if ok {
			msg.syncedAt = at
		}
		return msg
	}
}

func (m Model) handleSnapshot(msg snapshotLoadedMsg) Model {
	if m.load.live {
		return m
	}
	if len(msg.tasks) > 0 {
		m.board.SetTasks(msg.tasks)
		m.load.snapshotAt = msg.syncedAt
	}
	if len(msg.users) > 0 && len(m.users) == 0 {
		m.users = msg.users
	}
	return m
}

func (m Model) handleTasksLoaded(msg tasksLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.load.seq {
		return m, nil
	}
	m.load.running = false
	m.load.cancel = nil

	if msg.usersErr != nil {
		log.Printf("app: %v", msg.usersErr)
	} else {
		m.users = msg.users
	}

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		// Prior board state stays on screen.
		log.Printf("app: %v", msg.err)
		cmd := m.banner.Error(errorText("Could not load tasks", msg.err))
		return m, cmd
	}

	m.load.live = true
	m.load.snapshotAt = time.Time{}
	m.board.SetTasks(msg.tasks)
	if t, ok := m.detail.Task(); ok {
		for _, fresh := range msg.tasks {
			if fresh.TaskID == t.TaskID {
				m.detail.SetTask(fresh)
				break
			}
		}
	}
	return m, nil
}

// createTask posts a new task.
func (m Model) createTask(t model.NewTask) tea.Cmd {
	c := m.deps.Tasks
	s := m.deps.Store
	ctx := m.ctx
	return func() tea.Msg {
		rec, err := c.CreateTask(ctx, t)
		msg := taskSavedMsg{created: true, record: rec, err: err}
		if err == nil && s != nil {
			persistSaved(ctx, s, msg)
		}
		return msg
	}
}

// updateTask puts an edited task.
func (m Model) updateTask(id string, u model.TaskUpdate) tea.Cmd {
	c := m.deps.Tasks
	s := m.deps.Store
	ctx := m.ctx
	return func() tea.Msg {
		err := c.UpdateTask(ctx, id, u)
		msg := taskSavedMsg{id: id, update: u, err: err}
		if err == nil && s != nil {
			persistSaved(ctx, s, msg)
		}
		return msg
	}
}

// persistSaved writes a successful save into the snapshot so it survives
// a failed reload. Tasks never seen in the snapshot are left to the next
// full load.
func persistSaved(ctx context.Context, s store.Store, msg taskSavedMsg) {
	if msg.created {
		if msg.record == nil || msg.record.TaskID == "" {
			return
		}
		if err := s.UpsertTask(ctx, *msg.record); err != nil {
			log.Printf("app: saving created task: %v", err)
		}
		return
	}

	t, err := s.GetTaskByID(ctx, msg.id)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("app: reading task %s: %v", msg.id, err)
		return
	}
	updated := applyUpdate([]model.Task{*t}, msg.id, msg.update)[0]
	if err := s.UpsertTask(ctx, updated); err != nil {
		log.Printf("app: saving updated task: %v", err)
	}
}

// handleTaskSaved reports the outcome and reloads the board right away on
// success.
func (m Model) handleTaskSaved(msg taskSavedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		log.Printf("app: saving task: %v", msg.err)
		what := "Could not update task"
		if msg.created {
			what = "Could not create task"
		}
		cmd := m.banner.Error(errorText(what, msg.err))
		return m, cmd
	}

	text := "Task updated"
	tasks := m.board.Tasks()
	if msg.created {
		text = "Task created"
		if msg.record != nil {
			tasks = append(append([]model.Task(nil), tasks...), *msg.record)
		}
	} else {
		tasks = applyUpdate(tasks, msg.id, msg.update)
	}
	m.board.SetTasks(tasks)

	cmd := tea.Batch(m.banner.Success(text), m.startLoad())
	return m, cmd
}

// applyUpdate returns a copy of tasks with the edited fields of id
// replaced.
func applyUpdate(tasks []model.Task, id string, u model.TaskUpdate) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		if out[i].TaskID != id {
			continue
		}
		out[i].TaskName = u.TaskName
		out[i].TaskDesc = u.TaskDesc
		out[i].DueDate = u.DueDate
		out[i].AssignedTo = u.AssignedTo
		out[i].Status = u.Status
	}
	return out
}

// errorText turns an error into a short banner line.
func errorText(prefix string, err error) string {
	if code := api.StatusCode(err); code != 0 {
		return fmt.Sprintf("%s (HTTP %d)", prefix, code)
	}
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) && reqErr.IsTransport() {
		return prefix + ": server unreachable"
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
