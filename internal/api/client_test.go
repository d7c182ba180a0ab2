package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/task-suite/internal/model"
)

func newTestServer(t *testing.T, r *mux.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListTasks_Scopes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, req *http.Request) {
		assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"TaskID": 7, "TaskName": "a", "Status": "To Do"},
			{"taskId": "x-1", "TaskName": "b", "Status": "Completed"},
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/tasks/assignedTo/{name}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, []model.Task{{TaskID: "1", AssignedTo: mux.Vars(req)["name"]}})
	}).Methods(http.MethodGet)
	r.HandleFunc("/tasks/createdBy/{name}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, []model.Task{{TaskID: "2", CreatedBy: mux.Vars(req)["name"]}})
	}).Methods(http.MethodGet)

	c := newTestServer(t, r)
	ctx := context.Background()

	all, err := c.ListTasks(ctx, All())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "7", all[0].TaskID)
	assert.Equal(t, "x-1", all[1].TaskID)

	assigned, err := c.ListTasks(ctx, AssignedTo("Jane Doe"))
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "Jane Doe", assigned[0].AssignedTo)

	created, err := c.ListTasks(ctx, CreatedBy("bob@corp.example"))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "bob@corp.example", created[0].CreatedBy)
}

func TestListTasks_ScopeWithoutName(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	_, err := c.ListTasks(context.Background(), AssignedTo(""))
	assert.Error(t, err)
}

func TestListTasks_NullBodyIsEmptySlice(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "null")
	})
	c := newTestServer(t, r)

	tasks, err := c.ListTasks(context.Background(), All())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestListTasks_StatusError(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newTestServer(t, r)

	_, err := c.ListTasks(context.Background(), All())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.False(t, reqErr.IsTransport())
	assert.Contains(t, reqErr.Body, "boom")
}

func TestListTasks_MalformedBody(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	})
	c := newTestServer(t, r)

	_, err := c.ListTasks(context.Background(), All())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestListTasks_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil)
	_, err := c.ListTasks(context.Background(), All())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.True(t, reqErr.IsTransport())
}

func TestListTasks_NoRetry(t *testing.T) {
	var calls int32
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := newTestServer(t, r)

	_, err := c.ListTasks(context.Background(), All())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListTasks_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-release:
		case <-req.Context().Done():
		}
	})
	c := newTestServer(t, r)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListTasks(ctx, All())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestCreateTask_SendsPayloadWithoutID(t *testing.T) {
	var got map[string]interface{}
	r := mux.NewRouter()
	r.HandleFunc("/createTask", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"TaskID":   "srv-1",
			"TaskName": got["TaskName"],
			"Status":   got["Status"],
		})
	}).Methods(http.MethodPost)
	c := newTestServer(t, r)

	created, err := c.CreateTask(context.Background(), model.NewTask{
		TaskName:    "Write docs",
		TaskDesc:    "api section",
		DueDate:     "2026-11-01",
		AssignedTo:  "Alice",
		CreatedBy:   "bob@corp.example",
		CreatedDate: "2026-10-14",
		Status:      "To Do",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "srv-1", created.TaskID)
	assert.Equal(t, "Write docs", created.TaskName)

	_, hasID := got["TaskID"]
	assert.False(t, hasID)
	assert.Equal(t, "bob@corp.example", got["CreatedBy"])
	assert.Equal(t, "To Do", got["Status"])
}

func TestCreateTask_NonRecordResponse(t *testing.T) {
	bodies := []string{"", `"ok"`, `{"message":"created"}`, `[1,2]`}
	for _, body := range bodies {
		body := body
		t.Run(body, func(t *testing.T) {
			r := mux.NewRouter()
			r.HandleFunc("/createTask", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			c := newTestServer(t, r)

			created, err := c.CreateTask(context.Background(), model.NewTask{TaskName: "x"})
			require.NoError(t, err)
			assert.Nil(t, created)
		})
	}
}

func TestCreateTask_Rejected(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/createTask", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c := newTestServer(t, r)

	created, err := c.CreateTask(context.Background(), model.NewTask{TaskName: "x"})
	require.Error(t, err)
	assert.Nil(t, created)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestUpdateTask(t *testing.T) {
	var gotID string
	var got map[string]interface{}
	r := mux.NewRouter()
	r.HandleFunc("/updateTask/{id}", func(w http.ResponseWriter, req *http.Request) {
		gotID = mux.Vars(req)["id"]
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPut)
	c := newTestServer(t, r)

	task := model.Task{TaskID: "42", TaskName: "n", TaskDesc: "d", DueDate: "2026-12-01", AssignedTo: "Dave", Status: "InProgress"}
	err := c.UpdateTask(context.Background(), task.TaskID, model.UpdateFrom(task))
	require.NoError(t, err)

	assert.Equal(t, "42", gotID)
	assert.Equal(t, "42", got["TaskId"])
	assert.Equal(t, "InProgress", got["Status"])
	assert.Equal(t, "Dave", got["AssignedTo"])
}

func TestUpdateTask_MissingID(t *testing.T) {
	var calls int32
	r := mux.NewRouter()
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	c := newTestServer(t, r)

	for _, id := range []string{"", "   "} {
		err := c.UpdateTask(context.Background(), id, model.TaskUpdate{TaskName: "x"})
		assert.ErrorIs(t, err, ErrMissingTaskID)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestUpdateTask_NotFound(t *testing.T) {
	r := mux.NewRouter()
	c := newTestServer(t, r)

	err := c.UpdateTask(context.Background(), "missing", model.TaskUpdate{})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestListUsers(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"UserID":1,"UserName":"Alice"},{"UserID":"u2","UserName":"Dave"}]`)
	}).Methods(http.MethodGet)
	c := newTestServer(t, r)

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.User{{UserID: "1", UserName: "Alice"}, {UserID: "u2", UserName: "Dave"}}, users)
}

func TestRequestError_Message(t *testing.T) {
	err := &RequestError{Method: "GET", Path: "/tasks", Status: 502}
	assert.Equal(t, "GET /tasks: unexpected status 502", err.Error())

	err = &RequestError{Method: "GET", Path: "/tasks", Err: errors.New("dial")}
	assert.Equal(t, "GET /tasks: dial", err.Error())
	assert.Zero(t, StatusCode(errors.New("other")))
}
