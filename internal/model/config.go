package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// appDirName is the directory under the user's config home.
const appDirName = "tasksuite"

// envPrefix is prepended to upper-cased config keys for environment
// overrides, e.g. TASKSUITE_API_BASE_URL.
const envPrefix = "TASKSUITE"

// APIConfig locates the remote task API.
type APIConfig struct {
	// BaseURL is the root of the task API (no trailing slash required).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single request. Zero means no client timeout.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// IdentityConfig holds the identity provider registration.
type IdentityConfig struct {
	// ClientID is the application (client) id of the public client.
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// Authority is the tenant authority URL,
	// e.g. https://login.microsoftonline.com/<tenant>.
	Authority string `mapstructure:"authority" yaml:"authority"`

	// RedirectURL is the loopback URL the login callback listens on.
	RedirectURL string `mapstructure:"redirect_url" yaml:"redirect_url"`

	// Scopes requested at login. offline_access is always added.
	Scopes []string `mapstructure:"scopes" yaml:"scopes"`

	// CacheDir is where the file keyring backend keeps the token cache.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// GraphConfig locates the profile service.
type GraphConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// BoardConfig holds the status vocabulary used to group tasks.
type BoardConfig struct {
	Statuses StatusSet `mapstructure:"statuses" yaml:"statuses"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// BannerSec is how long success/error banners stay visible.
	BannerSec int `mapstructure:"banner_sec" yaml:"banner_sec"`
}

// NotificationsConfig controls the notifications feed poller.
type NotificationsConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	URL             string `mapstructure:"url" yaml:"url"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// StoreConfig locates the local snapshot database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Identity      IdentityConfig      `mapstructure:"identity" yaml:"identity"`
	Graph         GraphConfig         `mapstructure:"graph" yaml:"graph"`
	Board         BoardConfig         `mapstructure:"board" yaml:"board"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
}

// ConfigDir returns ~/.config/tasksuite, or XDG_CONFIG_HOME/tasksuite
// when set.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(home, ".config", appDirName)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tasksuite/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL: "https://global-task-suite-api.azurewebsites.net",
		},
		Identity: IdentityConfig{
			ClientID:    "201f9e01-322a-402b-866d-00b52b65c91a",
			Authority:   "https://login.microsoftonline.com/48342a33-25ad-4d79-b854-4d66877e41c1",
			RedirectURL: "http://localhost:8400/callback",
			Scopes:      []string{"openid", "profile", "User.Read"},
			CacheDir:    filepath.Join(dir, "credentials"),
		},
		Graph: GraphConfig{
			BaseURL: "https://graph.microsoft.com/v1.0",
		},
		Board: BoardConfig{
			Statuses: DefaultStatuses(),
		},
		Display: DisplayConfig{
			Theme:     "default",
			BannerSec: 6,
		},
		Notifications: NotificationsConfig{
			Enabled:         false,
			PollIntervalSec: 120,
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "snapshot.db"),
		},
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *AppConfig {
	return defaultAppConfig()
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the defaults with environment
// overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Scalar defaults double as the key registry for env overrides.
	def := defaultAppConfig()
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("identity.client_id", def.Identity.ClientID)
	v.SetDefault("identity.authority", def.Identity.Authority)
	v.SetDefault("identity.redirect_url", def.Identity.RedirectURL)
	v.SetDefault("identity.cache_dir", def.Identity.CacheDir)
	v.SetDefault("graph.base_url", def.Graph.BaseURL)
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("display.banner_sec", def.Display.BannerSec)
	v.SetDefault("notifications.enabled", def.Notifications.Enabled)
	v.SetDefault("notifications.url", def.Notifications.URL)
	v.SetDefault("notifications.poll_interval_sec", def.Notifications.PollIntervalSec)
	v.SetDefault("store.path", def.Store.Path)

	if err := v.ReadInConfig(); err != nil {
		_, missingFile := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !missingFile && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	// A configured status list replaces the defaults rather than merging
	// into them element by element.
	cfg.Board.Statuses = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Board.Statuses) == 0 {
		cfg.Board.Statuses = DefaultStatuses()
	}
	if err := cfg.Board.Statuses.Validate(); err != nil {
		return nil, fmt.Errorf("parsing config %s: board.statuses: %w", path, err)
	}
	if cfg.Display.BannerSec <= 0 {
		cfg.Display.BannerSec = 6
	}
	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = 120
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("identity", cfg.Identity)
	v.Set("graph", cfg.Graph)
	v.Set("board", cfg.Board)
	v.Set("display", cfg.Display)
	v.Set("notifications", cfg.Notifications)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
