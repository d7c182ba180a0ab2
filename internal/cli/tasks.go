package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/task-suite/internal/api"
	"github.com/nhle/task-suite/internal/board"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/profile"
	"github.com/nhle/task-suite/internal/store"
	"github.com/nhle/task-suite/internal/theme"
)

type tasksFlags struct {
	mine       bool
	query      string
	assignee   string
	assignedTo string
	createdBy  string
}

// scope picks the server-side listing. At most one of the name flags is
// set; cobra enforces that.
func (f tasksFlags) scope() api.Scope {
	switch {
	case f.assignedTo != "":
		return api.AssignedTo(f.assignedTo)
	case f.createdBy != "":
		return api.CreatedBy(f.createdBy)
	default:
		return api.All()
	}
}

func newTasksCmd(opts *options) *cobra.Command {
	var f tasksFlags
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Print tasks grouped by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupCLILogging(opts)
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := openServices(cfg, false)
			if err != nil {
				return err
			}

			q := board.Query{Text: f.query, MineOnly: f.mine, Assignee: f.assignee}
			if f.mine {
				name, err := profileName(cmd, svc)
				if err != nil {
					return err
				}
				q.ProfileName = name
			}

			tasks, err := svc.tasks.ListTasks(cmd.Context(), f.scope())
			if err != nil {
				tasks, err = offlineTasks(cmd, cfg.Store.Path, f, err)
				if err != nil {
					return err
				}
			}
			renderBoard(cmd.OutOrStdout(), board.Partition(tasks, q, cfg.Board.Statuses))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&f.mine, "mine", false, "only tasks you created")
	flags.StringVarP(&f.query, "query", "q", "", "free-text filter")
	flags.StringVar(&f.assignee, "assignee", "", "only tasks assigned to this user (client-side)")
	flags.StringVar(&f.assignedTo, "assigned-to", "", "list the tasks assigned to this user")
	flags.StringVar(&f.createdBy, "created-by", "", "list the tasks created by this user")
	cmd.MarkFlagsMutuallyExclusive("assigned-to", "created-by")
	return cmd
}

// offlineTasks reads the snapshot in place of a listing that failed to
// reach the server. Any other failure, or a missing snapshot, returns
// apiErr.
func offlineTasks(cmd *cobra.Command, path string, f tasksFlags, apiErr error) ([]model.Task, error) {
	listErr := fmt.Errorf("listing tasks: %w", apiErr)
	var reqErr *api.RequestError
	if !errors.As(apiErr, &reqErr) || !reqErr.IsTransport() {
		return nil, listErr
	}

	st, err := openSnapshot(path)
	if err != nil {
		log.Printf("cli: %v", err)
		return nil, listErr
	}
	if st == nil {
		return nil, listErr
	}
	defer st.Close()

	tasks, syncedAt, err := fallbackTasks(cmd.Context(), st, f)
	if err != nil {
		log.Printf("cli: %v", err)
		return nil, listErr
	}

	note := "server unreachable, showing offline copy"
	if !syncedAt.IsZero() {
		note += " from " + syncedAt.Local().Format(snapshotTimeLayout)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), theme.HelpStyle.Render(note))
	return tasks, nil
}

const snapshotTimeLayout = "Jan 02 15:04"

// openSnapshot opens an existing snapshot file. It returns nil when there
// is none, so the listing never creates an empty one.
func openSnapshot(path string) (*store.SQLiteStore, error) {
	if path == "" || path == ":memory:" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking snapshot: %w", err)
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	return st, nil
}

// fallbackTasks applies the listing scope and free-text filter to the
// snapshot. The returned time is the last task sync, zero if unknown.
func fallbackTasks(ctx context.Context, st store.Store, f tasksFlags) ([]model.Task, time.Time, error) {
	var filter store.TaskFilter
	switch {
	case f.assignedTo != "":
		filter.AssignedTo = &f.assignedTo
	case f.createdBy != "":
		filter.CreatedBy = &f.createdBy
	}
	if f.query != "" {
		filter.Query = &f.query
	}

	tasks, err := st.GetTasks(ctx, filter)
	if err != nil {
		return nil, time.Time{}, err
	}
	at, _, err := st.LastSynced(ctx, store.SyncTasks)
	if err != nil {
		return nil, time.Time{}, err
	}
	return tasks, at, nil
}

// profileName resolves the signed-in user's name for --mine. The profile
// service's name wins; the account username is the fallback.
func profileName(cmd *cobra.Command, svc *services) (string, error) {
	acct, ok := svc.identity.CurrentAccount()
	if !ok {
		return "", errors.New("--mine needs a signed-in account, run `tasksuite login`")
	}
	ps := profile.NewStore()
	profile.Populate(cmd.Context(), svc.identity, svc.graph, ps)
	if name := ps.Snapshot().Name; name != "" {
		return name, nil
	}
	return acct.Username, nil
}

// renderBoard prints one table per column.
func renderBoard(w io.Writer, b board.Board) {
	header := lipgloss.NewStyle().Bold(true)
	for i, col := range b.Columns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, header.Render(fmt.Sprintf("%s (%d)", col.Status.Label, len(col.Tasks))))
		if len(col.Tasks) == 0 {
			fmt.Fprintln(w, theme.HelpStyle.Render("  no tasks"))
			continue
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "NAME", "ASSIGNEE", "DUE", "CREATED BY")
		for _, task := range col.Tasks {
			assignee := task.AssignedTo
			if assignee == "" {
				assignee = "unassigned"
			}
			t.Row(task.TaskID, task.TaskName, assignee, task.DueDate, task.CreatedBy)
		}
		fmt.Fprintln(w, t.Render())
	}
}
