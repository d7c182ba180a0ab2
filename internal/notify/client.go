// Package notify fetches the notifications feed and polls it in the
// background, keeping new items in the local store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/task-suite/internal/model"
)

// Client reads the notifications feed from a single URL.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a feed client. A nil httpClient uses http.DefaultClient.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient}
}

// feedItem matches the feed's entries; encoding/json matches keys
// case-insensitively, so "Id" and "TaskID" also decode.
type feedItem struct {
	ID        json.RawMessage `json:"id"`
	TaskID    json.RawMessage `json:"taskId"`
	Message   string          `json:"message"`
	Text      string          `json:"text"`
	Title     string          `json:"title"`
	Read      bool            `json:"read"`
	CreatedAt string          `json:"createdAt"`
	Timestamp string          `json:"timestamp"`
}

// feedEnvelope covers feeds that wrap the list in an object.
type feedEnvelope struct {
	Notifications []feedItem `json:"notifications"`
	Value         []feedItem `json:"value"`
}

// Fetch retrieves the current feed.
func (c *Client) Fetch(ctx context.Context) ([]model.Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating notifications request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading notifications: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching notifications: unexpected status %d", resp.StatusCode)
	}

	items, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(items))
	for _, it := range items {
		n, ok := it.toModel()
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func decodeFeed(body []byte) ([]feedItem, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []feedItem
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var env feedEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil, err
	}
	if len(env.Notifications) > 0 {
		return env.Notifications, nil
	}
	return env.Value, nil
}

// toModel converts a feed entry. Entries without any text are dropped.
// Entries without an id get one derived from their content so repeated
// polls recognise them.
func (it feedItem) toModel() (model.Notification, bool) {
	msg := firstNonEmpty(it.Message, it.Text, it.Title)
	if msg == "" {
		return model.Notification{}, false
	}
	stamp := firstNonEmpty(it.CreatedAt, it.Timestamp)

	n := model.Notification{
		ID:      rawString(it.ID),
		TaskID:  rawString(it.TaskID),
		Message: msg,
		Read:    it.Read,
	}
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		n.CreatedAt = t
	}
	if n.ID == "" {
		n.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(n.TaskID+"|"+msg+"|"+stamp)).String()
	}
	return n, true
}

// rawString renders a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
