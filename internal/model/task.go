package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar-date format the task API uses for DueDate and
// CreatedDate.
const DateLayout = "2006-01-02"

// Task is a unit of work as returned by the remote task API. Field names
// on the wire match the API verbatim.
type Task struct {
	// TaskID is the server-assigned identifier.
	TaskID string `json:"TaskID" db:"task_id"`

	// TaskName is the short title of the task.
	TaskName string `json:"TaskName" db:"task_name"`

	// TaskDesc is the free-text description.
	TaskDesc string `json:"TaskDesc" db:"task_desc"`

	// DueDate is a calendar date (YYYY-MM-DD).
	DueDate string `json:"DueDate" db:"due_date"`

	// AssignedTo is the assignee's display name; empty when unassigned.
	AssignedTo string `json:"AssignedTo,omitempty" db:"assigned_to"`

	// CreatedBy is the creator's name as recorded by the API.
	CreatedBy string `json:"CreatedBy" db:"created_by"`

	// CreatedDate is the calendar date the task was created.
	CreatedDate string `json:"CreatedDate" db:"created_date"`

	// Status is one of the labels of the configured StatusSet.
	Status string `json:"Status" db:"status"`
}

// UnmarshalJSON accepts the identifier under either "TaskID" or "taskId",
// as a string or a number. The API has been observed returning both.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var raw struct {
		plain
		TaskID json.RawMessage `json:"TaskID"`
		TaskId json.RawMessage `json:"taskId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.plain)

	id := raw.TaskID
	if len(id) == 0 || string(id) == "null" {
		id = raw.TaskId
	}
	parsed, err := decodeID(id)
	if err != nil {
		return fmt.Errorf("decoding task id: %w", err)
	}
	t.TaskID = parsed
	return nil
}

// decodeID turns a JSON string or number into its string form.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// IsAssigned reports whether the task has an assignee.
func (t Task) IsAssigned() bool { return t.AssignedTo != "" }

// Due parses DueDate. ok is false when the date is missing or malformed.
func (t Task) Due() (time.Time, bool) {
	d, err := time.Parse(DateLayout, t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// IsOverdue reports whether the due date is before today and the task is
// not in the final bucket of statuses.
func (t Task) IsOverdue(statuses StatusSet, now time.Time) bool {
	due, ok := t.Due()
	if !ok {
		return false
	}
	if last, ok := statuses.Last(); ok && t.Status == last.Label {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

// NewTask is the payload for POST /createTask. It carries no identifier;
// the server assigns one.
type NewTask struct {
	TaskName    string `json:"TaskName"`
	TaskDesc    string `json:"TaskDesc"`
	DueDate     string `json:"DueDate"`
	AssignedTo  string `json:"AssignedTo"`
	CreatedBy   string `json:"CreatedBy"`
	CreatedDate string `json:"CreatedDate"`
	Status      string `json:"Status"`
}

// TaskUpdate is the payload for PUT /updateTask/{id}.
type TaskUpdate struct {
	TaskName   string `json:"TaskName"`
	TaskDesc   string `json:"TaskDesc"`
	DueDate    string `json:"DueDate"`
	AssignedTo string `json:"AssignedTo"`
	Status     string `json:"Status"`
	TaskID     string `json:"TaskId"`
}

// UpdateFrom builds an update payload carrying every editable field of t.
func UpdateFrom(t Task) TaskUpdate {
	return TaskUpdate{
		TaskName:   t.TaskName,
		TaskDesc:   t.TaskDesc,
		DueDate:    t.DueDate,
		AssignedTo: t.AssignedTo,
		Status:     t.Status,
		TaskID:     t.TaskID,
	}
}

// User is an entry of GET /user, used to populate the assignee picker.
type User struct {
	UserID   string `json:"UserID" db:"user_id"`
	UserName string `json:"UserName" db:"user_name"`
}

// UnmarshalJSON accepts UserID as a string or a number.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserID   json.RawMessage `json:"UserID"`
		UserName string          `json:"UserName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodeID(raw.UserID)
	if err != nil {
		return fmt.Errorf("decoding user id: %w", err)
	}
	u.UserID = id
	u.UserName = raw.UserName
	return nil
}
