package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nhle/task-suite/internal/credential"
)

func signedIDToken(t *testing.T, username string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"preferred_username": username,
		"name":               "Test User",
		"oid":                "oid-1",
		"tid":                "tenant-x",
		"sub":                "subject",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

// tokenServer fakes the identity platform token endpoint.
type tokenServer struct {
	t        *testing.T
	srv      *httptest.Server
	idToken  string
	refreshN int32
	reject   bool
}

func newTokenServer(t *testing.T, username string) *tokenServer {
	ts := &tokenServer{t: t, idToken: signedIDToken(t, username)}
	r := mux.NewRouter()
	r.HandleFunc("/tenant-x/oauth2/v2.0/token", ts.handleToken).Methods(http.MethodPost)
	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *tokenServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if !assert.NoError(ts.t, r.ParseForm()) {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if ts.reject {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	resp := map[string]interface{}{
		"token_type": "Bearer",
		"expires_in": 3600,
		"id_token":   ts.idToken,
	}
	switch r.Form.Get("grant_type") {
	case "authorization_code":
		assert.Equal(ts.t, "the-code", r.Form.Get("code"))
		assert.NotEmpty(ts.t, r.Form.Get("code_verifier"))
		resp["access_token"] = "access-1"
		resp["refresh_token"] = "refresh-1"
	case "refresh_token":
		atomic.AddInt32(&ts.refreshN, 1)
		assert.Equal(ts.t, "refresh-1", r.Form.Get("refresh_token"))
		resp["access_token"] = "access-2"
		resp["refresh_token"] = "refresh-2"
	default:
		http.Error(w, "unsupported grant", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (ts *tokenServer) client(t *testing.T, cache credential.Store) *Client {
	t.Helper()
	c, err := NewClient(Config{
		ClientID:    "client-1",
		Authority:   ts.srv.URL + "/tenant-x",
		RedirectURL: "http://127.0.0.1:0/callback",
		Scopes:      []string{"openid", "profile", "User.Read"},
	}, cache)
	require.NoError(t, err)
	return c
}

func seed(t *testing.T, cache credential.Store, ct cachedToken) {
	t.Helper()
	data, err := json.Marshal(ct)
	require.NoError(t, err)
	require.NoError(t, cache.Set(tokenKey, string(data)))
}

// browser simulates the user completing sign-in for the given auth URL.
func browser(t *testing.T, query url.Values) func(string) {
	return func(authURL string) {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		params := u.Query()
		assert.Equal(t, "S256", params.Get("code_challenge_method"))
		assert.Contains(t, params.Get("scope"), "offline_access")

		cb, err := url.Parse(params.Get("redirect_uri"))
		require.NoError(t, err)
		q := url.Values{"state": {params.Get("state")}}
		for k, v := range query {
			q[k] = v
		}
		cb.RawQuery = q.Encode()

		go func() {
			resp, err := http.Get(cb.String())
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Authority: "https://login.example/t"}, credential.NewMemory())
	assert.Error(t, err)

	_, err = NewClient(Config{ClientID: "c", Authority: "::bad"}, credential.NewMemory())
	assert.Error(t, err)
}

func TestEndpointFor(t *testing.T) {
	ep, err := endpointFor("https://login.microsoftonline.com/tenant-1/")
	require.NoError(t, err)
	assert.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/v2.0/token", ep.TokenURL)

	ep, err = endpointFor("http://127.0.0.1:9999/t2")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/t2/oauth2/v2.0/authorize", ep.AuthURL)
}

func TestCurrentAccount_NoCache(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	c := ts.client(t, credential.NewMemory())

	_, ok := c.CurrentAccount()
	assert.False(t, ok)
}

func TestLogin_CachesAccountAndToken(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	cache := credential.NewMemory()
	c := ts.client(t, cache)

	acct, err := c.Login(context.Background(), browser(t, url.Values{"code": {"the-code"}}))
	require.NoError(t, err)
	assert.Equal(t, "bob@corp.example", acct.Username)
	assert.Equal(t, "oid-1", acct.ObjectID)

	got, ok := c.CurrentAccount()
	require.True(t, ok)
	assert.Equal(t, acct, got)

	// A fresh client over the same cache sees the same account.
	again := ts.client(t, cache)
	got, ok = again.CurrentAccount()
	require.True(t, ok)
	assert.Equal(t, "bob@corp.example", got.Username)

	tok, err := again.AcquireTokenSilent(context.Background(), []string{"User.Read"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
}

func TestLogin_Denied(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	c := ts.client(t, credential.NewMemory())

	_, err := c.Login(context.Background(), browser(t, url.Values{"error": {"access_denied"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")

	_, ok := c.CurrentAccount()
	assert.False(t, ok)
}

func TestLogin_Cancelled(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	c := ts.client(t, credential.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Login(ctx, func(string) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireTokenSilent_NoAccount(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	c := ts.client(t, credential.NewMemory())

	_, err := c.AcquireTokenSilent(context.Background(), []string{"User.Read"})
	assert.ErrorIs(t, err, ErrInteractionRequired)
}

func TestAcquireTokenSilent_Refreshes(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	cache := credential.NewMemory()
	seed(t, cache, cachedToken{
		Token: &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "refresh-1",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Hour),
		},
		IDToken: ts.idToken,
	})
	c := ts.client(t, cache)

	tok, err := c.AcquireTokenSilent(context.Background(), []string{"user.read"})
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ts.refreshN))

	// The refreshed token is persisted and reused without another refresh.
	tok, err = ts.client(t, cache).AcquireTokenSilent(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ts.refreshN))
}

func TestAcquireTokenSilent_RefreshRejected(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	ts.reject = true
	cache := credential.NewMemory()
	seed(t, cache, cachedToken{
		Token:   &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)},
		IDToken: ts.idToken,
	})

	_, err := ts.client(t, cache).AcquireTokenSilent(context.Background(), []string{"User.Read"})
	assert.ErrorIs(t, err, ErrInteractionRequired)
}

func TestAcquireTokenSilent_ExpiredWithoutRefreshToken(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	cache := credential.NewMemory()
	seed(t, cache, cachedToken{
		Token:   &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)},
		IDToken: ts.idToken,
	})

	_, err := ts.client(t, cache).AcquireTokenSilent(context.Background(), []string{"User.Read"})
	assert.ErrorIs(t, err, ErrInteractionRequired)
	assert.Zero(t, atomic.LoadInt32(&ts.refreshN))
}

func TestAcquireTokenSilent_UnconsentedScope(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	cache := credential.NewMemory()
	seed(t, cache, cachedToken{
		Token:   &oauth2.Token{AccessToken: "live", Expiry: time.Now().Add(time.Hour)},
		IDToken: ts.idToken,
	})

	_, err := ts.client(t, cache).AcquireTokenSilent(context.Background(), []string{"Mail.Read"})
	assert.True(t, errors.Is(err, ErrInteractionRequired))
}

func TestLogout(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	cache := credential.NewMemory()
	seed(t, cache, cachedToken{
		Token:   &oauth2.Token{AccessToken: "live", Expiry: time.Now().Add(time.Hour)},
		IDToken: ts.idToken,
	})
	c := ts.client(t, cache)

	_, ok := c.CurrentAccount()
	require.True(t, ok)

	require.NoError(t, c.Logout())
	_, ok = c.CurrentAccount()
	assert.False(t, ok)

	_, err := cache.Get(tokenKey)
	assert.ErrorIs(t, err, credential.ErrNotFound)

	// Logging out twice is harmless.
	assert.NoError(t, c.Logout())
}

func TestCurrentAccount_CorruptCache(t *testing.T) {
	ts := newTokenServer(t, "bob@corp.example")
	cache := credential.NewMemory()
	require.NoError(t, cache.Set(tokenKey, "{not json"))

	_, ok := ts.client(t, cache).CurrentAccount()
	assert.False(t, ok)
}
