package model

import (
	"errors"
	"fmt"
)

// Status is one bucket of the board: a stable key used by the UI and the
// label the task API stores in Task.Status.
type Status struct {
	Key   string `mapstructure:"key" yaml:"key"`
	Label string `mapstructure:"label" yaml:"label"`
}

// StatusSet is the ordered status vocabulary. Labels are compared verbatim
// against Task.Status, so they must match the API exactly.
type StatusSet []Status

// Default bucket keys.
const (
	StatusKeyTodo       = "todo"
	StatusKeyInProgress = "inProgress"
	StatusKeyDone       = "done"
)

// DefaultStatuses returns the vocabulary the task API ships with.
func DefaultStatuses() StatusSet {
	return StatusSet{
		{Key: StatusKeyTodo, Label: "To Do"},
		{Key: StatusKeyInProgress, Label: "InProgress"},
		{Key: StatusKeyDone, Label: "Completed"},
	}
}

// Validate checks that the set is non-empty and that keys and labels are
// unique and non-empty.
func (s StatusSet) Validate() error {
	if len(s) == 0 {
		return errors.New("status set is empty")
	}
	keys := make(map[string]bool, len(s))
	labels := make(map[string]bool, len(s))
	for i, st := range s {
		if st.Key == "" || st.Label == "" {
			return fmt.Errorf("status %d: key and label are required", i)
		}
		if keys[st.Key] {
			return fmt.Errorf("duplicate status key %q", st.Key)
		}
		if labels[st.Label] {
			return fmt.Errorf("duplicate status label %q", st.Label)
		}
		keys[st.Key] = true
		labels[st.Label] = true
	}
	return nil
}

// Labels returns the labels in order.
func (s StatusSet) Labels() []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = st.Label
	}
	return out
}

// ByLabel looks up a status by its exact label.
func (s StatusSet) ByLabel(label string) (Status, bool) {
	for _, st := range s {
		if st.Label == label {
			return st, true
		}
	}
	return Status{}, false
}

// First returns the initial status assigned to newly created tasks.
func (s StatusSet) First() (Status, bool) {
	if len(s) == 0 {
		return Status{}, false
	}
	return s[0], true
}

// Last returns the terminal status.
func (s StatusSet) Last() (Status, bool) {
	if len(s) == 0 {
		return Status{}, false
	}
	return s[len(s)-1], true
}
