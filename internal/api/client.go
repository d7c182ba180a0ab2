// Package api is a thin HTTP client for the remote task API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/task-suite/internal/model"
)

// Client issues list/create/update requests against the task API. It does
// not retry; every failure is reported as a *RequestError.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL. A nil
// httpClient uses a client without a timeout; cancellation comes from the
// request context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// NewClientWithTimeout is NewClient with a per-request timeout. A zero
// timeout disables it.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return NewClient(baseURL, &http.Client{Timeout: timeout})
}

// ScopeKind selects which task listing endpoint is used.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeAssignedTo
	ScopeCreatedBy
)

// Scope narrows ListTasks to tasks assigned to or created by Name.
type Scope struct {
	Kind ScopeKind
	Name string
}

// All lists every task.
func All() Scope { return Scope{Kind: ScopeAll} }

// AssignedTo lists tasks assigned to name.
func AssignedTo(name string) Scope { return Scope{Kind: ScopeAssignedTo, Name: name} }

// CreatedBy lists tasks created by name.
func CreatedBy(name string) Scope { return Scope{Kind: ScopeCreatedBy, Name: name} }

// path returns the endpoint path for the scope.
func (s Scope) path() string {
	switch s.Kind {
	case ScopeAssignedTo:
		return "/tasks/assignedTo/" + url.PathEscape(s.Name)
	case ScopeCreatedBy:
		return "/tasks/createdBy/" + url.PathEscape(s.Name)
	default:
		return "/tasks"
	}
}

// ErrMissingTaskID is returned by UpdateTask when no identifier is given.
var ErrMissingTaskID = errors.New("task id is required")

// ListTasks fetches tasks for the given scope.
func (c *Client) ListTasks(ctx context.Context, scope Scope) ([]model.Task, error) {
	if scope.Kind != ScopeAll && scope.Name == "" {
		return nil, fmt.Errorf("listing tasks: scope requires a name")
	}
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, scope.path(), nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// CreateTask submits a new task. When the API echoes the created record
// it is returned as the authoritative version; otherwise the returned
// task is nil and the caller should re-fetch.
func (c *Client) CreateTask(ctx context.Context, t model.NewTask) (*model.Task, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/createTask", t, &raw); err != nil {
		return nil, err
	}
	return decodeEcho(raw), nil
}

// UpdateTask replaces the editable fields of task id.
func (c *Client) UpdateTask(ctx context.Context, id string, u model.TaskUpdate) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingTaskID
	}
	u.TaskID = id
	return c.do(ctx, http.MethodPut, "/updateTask/"+url.PathEscape(id), u, nil)
}

// ListUsers fetches the users that tasks can be assigned to.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// decodeEcho interprets a create response body. Only an object with a
// non-empty task id counts as a record.
func decodeEcho(raw json.RawMessage) *model.Task {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var t model.Task
	if err := json.Unmarshal(trimmed, &t); err != nil || t.TaskID == "" {
		return nil
	}
	return &t
}

// do builds the request, sends it once and decodes a JSON response into
// result when result is non-nil and the body is not empty.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("api: %s %s [%s] failed: %v", method, path, requestID, err)
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("api: %s %s [%s] returned %d", method, path, requestID, resp.StatusCode)
		return &RequestError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   truncate(string(respBody), 200),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if raw, ok := result.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &RequestError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unmarshaling response: %w", err),
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
