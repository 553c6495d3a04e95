package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	DefaultStorageKey = "chrono_events"
	DefaultOwnerID    = "local_user"
)

// StorageConfig selects the on-device durable store.
type StorageConfig struct {
	// Driver is "file" (default) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is a directory for the file driver and a database file for sqlite.
	Path string `yaml:"path" json:"path"`
	// Key is the fixed namespace the event collection lives under.
	Key string `yaml:"key" json:"key"`
}

// OwnerConfig describes the signed-in user when no remote auth is used.
// An empty ID means "nobody signed in"; records then get DefaultOwnerID.
type OwnerConfig struct {
	ID          string `yaml:"id" json:"id"`
	Email       string `yaml:"email" json:"email"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	PhotoURL    string `yaml:"photo_url" json:"photo_url"`
}

// WidgetConfig controls the home-screen tile.
type WidgetConfig struct {
	// Theme is "light", "dark" or "system". With "system" the host decides
	// per invocation (widget --dark).
	Theme string `yaml:"theme" json:"theme"`

	// Width and Height are the tile size in CSS pixels.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// OutputDir receives widget.html, widget.json and (optionally) widget.png.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// PNG enables headless Chromium screenshots of the tile.
	PNG bool `yaml:"png" json:"png"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used by `days serve` to emit UPDATE events.
	RefreshCron string `yaml:"refresh" json:"refresh"`
}

// LogConfig controls internal/log.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the local API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone whose wall clock defines "today". Empty means
	// the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Owner   OwnerConfig   `yaml:"owner" json:"owner"`
	Widget  WidgetConfig  `yaml:"widget" json:"widget"`
	Log     LogConfig     `yaml:"log" json:"log"`

	// Listen is the HTTP listen address for `days serve`.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "",
		Storage: StorageConfig{
			Driver: "file",
			Path:   defaultDataDir(),
			Key:    DefaultStorageKey,
		},
		Widget: WidgetConfig{
			Theme:       "light",
			Width:       360,
			Height:      180,
			OutputDir:   filepath.Join(defaultDataDir(), "widget"),
			PNG:         false,
			RefreshCron: "*/15 * * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Listen:    "127.0.0.1:8080",
		BasicAuth: nil,
	}
}

// DefaultPath is where the CLI looks for its config file.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "days", "config.yaml")
	}
	return filepath.Join(".", "days.yaml")
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".local", "share", "days")
	}
	return filepath.Join(".", "var", "days")
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	switch strings.ToLower(c.Storage.Driver) {
	case "file", "sqlite":
		c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	default:
		// Unknown or empty driver; the file store is always available.
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
		if c.Storage.Driver == "sqlite" {
			c.Storage.Path = filepath.Join(def.Storage.Path, "days.db")
		}
	}
	if c.Storage.Key == "" {
		c.Storage.Key = DefaultStorageKey
	}

	switch c.Widget.Theme {
	case "light", "dark", "system":
	default:
		c.Widget.Theme = "light"
	}
	if c.Widget.Width <= 0 {
		c.Widget.Width = def.Widget.Width
	}
	if c.Widget.Height <= 0 {
		c.Widget.Height = def.Widget.Height
	}
	if c.Widget.OutputDir == "" {
		c.Widget.OutputDir = filepath.Join(c.Storage.dataDir(), "widget")
	}
	if c.Widget.RefreshCron == "" {
		c.Widget.RefreshCron = def.Widget.RefreshCron
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
}

// Dark reports whether the tile defaults to the dark palette.
func (w WidgetConfig) Dark() bool { return w.Theme == "dark" }

func (s StorageConfig) dataDir() string {
	if s.Driver == "sqlite" {
		return filepath.Dir(s.Path)
	}
	return s.Path
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, fsync, chmod 0600, rename).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".days-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
