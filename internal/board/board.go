// Package board partitions a flat task list into status columns after
// applying the free-text, creator and assignee filters.
package board

import (
	"strings"

	"github.com/nhle/task-suite/internal/model"
)

// Query holds the client-side filters applied before grouping.
type Query struct {
	// Text is matched case-insensitively as a substring of name,
	// description, assignee and creator. Empty matches everything.
	Text string

	// MineOnly keeps only tasks whose creator equals ProfileName
	// (case-insensitive).
	MineOnly bool

	// ProfileName is the signed-in user's name.
	ProfileName string

	// Assignee, when non-empty, keeps only tasks assigned to that user
	// (case-insensitive).
	Assignee string
}

// IsZero reports whether no filter is active.
func (q Query) IsZero() bool {
	return strings.TrimSpace(q.Text) == "" && !q.MineOnly && q.Assignee == ""
}

// Column is one status bucket with its tasks in input order.
type Column struct {
	Status model.Status
	Tasks  []model.Task
}

// Board is the grouped result: one column per status, in StatusSet order.
type Board struct {
	Columns []Column
}

// Partition filters tasks by q and groups them by exact status label.
// Relative input order is preserved inside each column. Tasks whose
// status matches no label of statuses appear in no column.
func Partition(tasks []model.Task, q Query, statuses model.StatusSet) Board {
	b := Board{Columns: make([]Column, len(statuses))}
	index := make(map[string]int, len(statuses))
	for i, st := range statuses {
		b.Columns[i] = Column{Status: st, Tasks: []model.Task{}}
		index[st.Label] = i
	}

	m := newMatcher(q)
	for _, t := range tasks {
		col, ok := index[t.Status]
		if !ok || !m.match(t) {
			continue
		}
		b.Columns[col].Tasks = append(b.Columns[col].Tasks, t)
	}
	return b
}

// matcher holds the normalized form of a Query.
type matcher struct {
	text     string
	mineOnly bool
	profile  string
	assignee string
}

func newMatcher(q Query) matcher {
	return matcher{
		text:     strings.ToLower(strings.TrimSpace(q.Text)),
		mineOnly: q.MineOnly,
		profile:  q.ProfileName,
		assignee: q.Assignee,
	}
}

func (m matcher) match(t model.Task) bool {
	if m.mineOnly && !strings.EqualFold(t.CreatedBy, m.profile) {
		return false
	}
	if m.assignee != "" && !strings.EqualFold(t.AssignedTo, m.assignee) {
		return false
	}
	if m.text == "" {
		return true
	}
	fields := [...]string{t.TaskName, t.TaskDesc, t.AssignedTo, t.CreatedBy}
	for _, f := range fields {
		if f == "" {
			continue
		}
		if strings.Contains(strings.ToLower(f), m.text) {
			return true
		}
	}
	return false
}

// Column returns the column for a status key.
func (b Board) Column(key string) (Column, bool) {
	for _, c := range b.Columns {
		if c.Status.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// Bucket returns the tasks of the column with the given key, or nil.
func (b Board) Bucket(key string) []model.Task {
	c, ok := b.Column(key)
	if !ok {
		return nil
	}
	return c.Tasks
}

// Len returns the total number of tasks across all columns.
func (b Board) Len() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// Counts returns the number of tasks per status key.
func (b Board) Counts() map[string]int {
	out := make(map[string]int, len(b.Columns))
	for _, c := range b.Columns {
		out[c.Status.Key] = len(c.Tasks)
	}
	return out
}

// Flatten returns all tasks column by column.
func (b Board) Flatten() []model.Task {
	out := make([]model.Task, 0, b.Len())
	for _, c := range b.Columns {
		out = append(out, c.Tasks...)
	}
	return out
}

// Assignees returns the distinct non-empty assignees of tasks in first-seen
// order, used to cycle the assignee filter.
func Assignees(tasks []model.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		key := strings.ToLower(t.AssignedTo)
		if t.AssignedTo == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t.AssignedTo)
	}
	return out
}
