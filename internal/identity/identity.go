// Package identity signs the user in against the Microsoft identity
// platform and hands out access tokens for the profile service.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/nhle/task-suite/internal/credential"
	"github.com/nhle/task-suite/internal/model"
)

// ErrInteractionRequired is returned by AcquireTokenSilent when no cached
// account can satisfy the request without prompting the user.
var ErrInteractionRequired = errors.New("interaction required")

// tokenKey is the credential store key holding the cached token.
const tokenKey = "token"

// Adapter is the identity capability the rest of the program depends on.
type Adapter interface {
	CurrentAccount() (model.Account, bool)
	AcquireTokenSilent(ctx context.Context, scopes []string) (*oauth2.Token, error)
	Login(ctx context.Context, prompt func(authURL string)) (model.Account, error)
	Logout() error
}

// Config describes the public client registration.
type Config struct {
	ClientID    string
	Authority   string
	RedirectURL string
	Scopes      []string
}

// FromAppConfig maps the identity section of the app config.
func FromAppConfig(c model.IdentityConfig) Config {
	return Config{
		ClientID:    c.ClientID,
		Authority:   c.Authority,
		RedirectURL: c.RedirectURL,
		Scopes:      c.Scopes,
	}
}

// Client implements Adapter with the authorization code flow and a token
// cache kept in a credential.Store.
type Client struct {
	oauth *oauth2.Config
	cache credential.Store

	mu     sync.Mutex
	cached *cachedToken
	loaded bool
}

// cachedToken is what gets persisted. oauth2.Token does not serialize its
// extra fields, so the id_token is kept alongside.
type cachedToken struct {
	Token   *oauth2.Token `json:"token"`
	IDToken string        `json:"id_token,omitempty"`
}

// NewClient builds a client for cfg that caches tokens in cache.
func NewClient(cfg Config, cache credential.Store) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("identity: client id is required")
	}
	endpoint, err := endpointFor(cfg.Authority)
	if err != nil {
		return nil, err
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			Endpoint:    endpoint,
			RedirectURL: cfg.RedirectURL,
			Scopes:      withOfflineAccess(cfg.Scopes),
		},
		cache: cache,
	}, nil
}

// endpointFor derives the v2.0 endpoints from an authority URL. Tenants on
// login.microsoftonline.com use the library's Azure AD endpoint.
func endpointFor(authority string) (oauth2.Endpoint, error) {
	u, err := url.Parse(strings.TrimRight(authority, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return oauth2.Endpoint{}, fmt.Errorf("identity: invalid authority %q", authority)
	}
	tenant := strings.Trim(u.Path, "/")
	if tenant == "" {
		tenant = "common"
	}
	if u.Host == "login.microsoftonline.com" {
		return microsoft.AzureADEndpoint(tenant), nil
	}
	base := u.Scheme + "://" + u.Host + "/" + tenant
	return oauth2.Endpoint{
		AuthURL:   base + "/oauth2/v2.0/authorize",
		TokenURL:  base + "/oauth2/v2.0/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, nil
}

func withOfflineAccess(scopes []string) []string {
	out := make([]string, 0, len(scopes)+1)
	for _, s := range scopes {
		if s == "offline_access" {
			continue
		}
		out = append(out, s)
	}
	return append(out, "offline_access")
}

// CurrentAccount returns the account of the cached token, if any.
func (c *Client) CurrentAccount() (model.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.load()
	if ct == nil || ct.IDToken == "" {
		return model.Account{}, false
	}
	acct, err := accountFromIDToken(ct.IDToken)
	if err != nil {
		log.Printf("identity: reading cached account: %v", err)
		return model.Account{}, false
	}
	return acct, true
}

// AcquireTokenSilent returns a valid access token for scopes, refreshing it
// through the cached refresh token when needed. It never prompts.
func (c *Client) AcquireTokenSilent(ctx context.Context, scopes []string) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.load()
	if ct == nil || ct.Token == nil {
		return nil, ErrInteractionRequired
	}
	if missing := c.unconsented(scopes); len(missing) > 0 {
		return nil, fmt.Errorf("scopes %v not granted at login: %w", missing, ErrInteractionRequired)
	}
	if ct.Token.Valid() {
		return ct.Token, nil
	}
	if ct.Token.RefreshToken == "" {
		return nil, ErrInteractionRequired
	}

	tok, err := c.oauth.TokenSource(ctx, ct.Token).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			log.Printf("identity: refresh rejected: %v", err)
			return nil, fmt.Errorf("refreshing token: %w", ErrInteractionRequired)
		}
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	next := &cachedToken{Token: tok, IDToken: ct.IDToken}
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		next.IDToken = id
	}
	if err := c.save(next); err != nil {
		log.Printf("identity: persisting refreshed token: %v", err)
	}
	return tok, nil
}

// unconsented returns the requested scopes not covered by the configured
// ones. Comparison is case-insensitive.
func (c *Client) unconsented(scopes []string) []string {
	granted := make(map[string]bool, len(c.oauth.Scopes))
	for _, s := range c.oauth.Scopes {
		granted[strings.ToLower(s)] = true
	}
	var missing []string
	for _, s := range scopes {
		if !granted[strings.ToLower(s)] {
			missing = append(missing, s)
		}
	}
	return missing
}

// Logout forgets the cached token.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cache.Delete(tokenKey); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	c.cached = nil
	c.loaded = true
	return nil
}

// load returns the cached token, reading the store on first use. Callers
// hold c.mu.
func (c *Client) load() *cachedToken {
	if c.loaded {
		return c.cached
	}
	c.loaded = true

	raw, err := c.cache.Get(tokenKey)
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			log.Printf("identity: reading token cache: %v", err)
		}
		return nil
	}
	var ct cachedToken
	if err := json.Unmarshal([]byte(raw), &ct); err != nil {
		log.Printf("identity: discarding corrupt token cache: %v", err)
		return nil
	}
	c.cached = &ct
	return c.cached
}

// save persists ct and makes it current. Callers hold c.mu.
func (c *Client) save(ct *cachedToken) error {
	data, err := json.Marshal(ct)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	c.cached = ct
	c.loaded = true
	if err := c.cache.Set(tokenKey, string(data)); err != nil {
		return err
	}
	return nil
}

// idClaims are the id_token claims the account is built from.
type idClaims struct {
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	UPN               string `json:"upn"`
	jwt.RegisteredClaims
}

// accountFromIDToken decodes the account from an id_token. The signature
// is not checked; the token was received directly from the token endpoint.
func accountFromIDToken(raw string) (model.Account, error) {
	var claims idClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return model.Account{}, fmt.Errorf("parsing id token: %w", err)
	}
	username := claims.PreferredUsername
	if username == "" {
		username = claims.UPN
	}
	if username == "" {
		username = claims.Subject
	}
	return model.Account{
		Username: username,
		Name:     claims.Name,
		ObjectID: claims.ObjectID,
		TenantID: claims.TenantID,
	}, nil
}
