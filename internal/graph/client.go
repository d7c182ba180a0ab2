// Package graph is a minimal Microsoft Graph client for the signed-in
// user's profile and photo.
package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Graph v1.0 root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// maxPhotoBytes caps how much of a photo response is read.
const maxPhotoBytes = 4 << 20

// Me is the subset of GET /me the client uses.
type Me struct {
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
}

// StatusError is returned when Graph answers with a non-2xx status.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph %s: unexpected status %d", e.Path, e.Status)
}

// Client calls Graph with a caller-supplied access token.
type Client struct {
	baseURL string
	base    *http.Client
}

// NewClient creates a client rooted at baseURL. A nil httpClient uses
// http.DefaultClient as the transport.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), base: httpClient}
}

// Me fetches the signed-in user's directory entry.
func (c *Client) Me(ctx context.Context, tok *oauth2.Token) (Me, error) {
	resp, err := c.get(ctx, tok, "/me")
	if err != nil {
		return Me{}, err
	}
	defer resp.Body.Close()

	var me Me
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return Me{}, fmt.Errorf("decoding /me: %w", err)
	}
	return me, nil
}

// Photo fetches the user's photo and returns it as a data: URI.
func (c *Client) Photo(ctx context.Context, tok *oauth2.Token) (string, error) {
	resp, err := c.get(ctx, tok, "/me/photo/$value")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return "", fmt.Errorf("reading photo: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("reading photo: empty body")
	}

	contentType := "image/jpeg"
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mt, "image/") {
		contentType = mt
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// get issues an authenticated GET and returns the response on 2xx.
func (c *Client) get(ctx context.Context, tok *oauth2.Token, path string) (*http.Response, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating graph request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{Path: path, Status: resp.StatusCode}
	}
	return resp, nil
}
