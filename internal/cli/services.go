package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/task-suite/internal/api"
	"github.com/nhle/task-suite/internal/credential"
	"github.com/nhle/task-suite/internal/graph"
	"github.com/nhle/task-suite/internal/identity"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/notify"
	"github.com/nhle/task-suite/internal/store"
)

// services are the collaborators built from the config.
type services struct {
	cfg      *model.AppConfig
	identity *identity.Client
	tasks    *api.Client
	graph    *graph.Client

	// store is nil unless requested. The tasks command opens an existing
	// snapshot on its own when the server is unreachable.
	store *store.SQLiteStore
}

// openServices builds the identity client, API clients and, when
// withStore is set, the local snapshot store.
func openServices(cfg *model.AppConfig, withStore bool) (*services, error) {
	ring, err := credential.Open(cfg.Identity.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("opening token cache: %w", err)
	}

	ids, err := identity.NewClient(identity.FromAppConfig(cfg.Identity), ring)
	if err != nil {
		return nil, fmt.Errorf("configuring sign-in: %w", err)
	}

	s := &services{
		cfg:      cfg,
		identity: ids,
		tasks:    api.NewClientWithTimeout(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSec)*time.Second),
		graph:    graph.NewClient(cfg.Graph.BaseURL, nil),
	}

	if withStore {
		if err := ensureDir(cfg.Store.Path); err != nil {
			return nil, err
		}
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot store: %w", err)
		}
		s.store = st
	}
	return s, nil
}

// poller returns the notifications poller, or nil when the feed is
// disabled or there is no store to keep items in.
func (s *services) poller() *notify.Poller {
	n := s.cfg.Notifications
	if !n.Enabled || n.URL == "" || s.store == nil {
		return nil
	}
	interval := time.Duration(n.PollIntervalSec) * time.Second
	return notify.NewPoller(s.store, notify.NewClient(n.URL, nil), interval)
}

// Close releases the store, if open.
func (s *services) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("cli: closing store: %v", err)
	}
}

// ensureDir creates the parent directory of a file path.
func ensureDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
