package graph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGraph(t *testing.T, r *mux.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client())
}

var testToken = &oauth2.Token{AccessToken: "graph-token", TokenType: "Bearer"}

func TestMe(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/me", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer graph-token", req.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userPrincipalName":"bob@corp.example","displayName":"Bob"}`))
	})
	c := newGraph(t, r)

	me, err := c.Me(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "bob@corp.example", me.UserPrincipalName)
	assert.Equal(t, "Bob", me.DisplayName)
}

func TestMe_Unauthorized(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/me", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newGraph(t, r)

	_, err := c.Me(context.Background(), testToken)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
}

func TestPhoto_DataURI(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/me/photo/$value", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png!"))
	})
	c := newGraph(t, r)

	uri, err := c.Photo(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5nIQ==", uri)
}

func TestPhoto_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "not found", handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{name: "empty body", handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.NewRouter()
			r.HandleFunc("/me/photo/$value", tt.handler)
			c := newGraph(t, r)

			_, err := c.Photo(context.Background(), testToken)
			assert.Error(t, err)
		})
	}
}
