package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directories owned by seqwatch itself.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Sensor contains configuration for the polling reconciler.
type Sensor struct {
	WatchDirectories  []string `toml:"watch_directories"`
	PollInterval      int      `toml:"poll_interval"`
	AnalysisPlatforms []string `toml:"analysis_platforms"`
	NotificationEmail []string `toml:"notification_email"`
	TargetDirectory   string   `toml:"target_directory"`
	WatchEvents       bool     `toml:"watch_events"`
	NudgeDebounceMS   int      `toml:"nudge_debounce_ms"`
}

// Platform overrides one entry of the instrument platform table. Entries are
// evaluated in file order.
type Platform struct {
	Name         string `toml:"name"`
	SerialTag    string `toml:"serial_tag"`
	SerialPrefix string `toml:"serial_prefix"`
}

// Registry contains configuration for the run registry HTTP API.
type Registry struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Events contains configuration for the event bus and dedup history.
type Events struct {
	BusURL               string `toml:"bus_url"`
	APIURL               string `toml:"api_url"`
	APIKey               string `toml:"api_key"`
	TriggerPrefix        string `toml:"trigger_prefix"`
	History              string `toml:"history"`
	DedupWindowDays      int    `toml:"dedup_window_days"`
	RequestTimeout       int    `toml:"request_timeout"`
	Journal              bool   `toml:"journal"`
	JournalRetentionDays int    `toml:"journal_retention_days"`
}

// Actions controls whether emitted events are applied to the registry in
// process instead of (or in addition to) an external rule engine.
type Actions struct {
	Apply bool `toml:"apply"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic           string `toml:"ntfy_topic"`
	RequestTimeout      int    `toml:"request_timeout"`
	IncompleteDirectory bool   `toml:"incomplete_directory"`
	DuplicateRun        bool   `toml:"duplicate_run"`
	PollFailures        bool   `toml:"poll_failures"`
}

// InteropDestination maps a platform to the directory its InterOp files are
// copied to.
type InteropDestination struct {
	Platform string `toml:"platform"`
	Path     string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for seqwatch.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - Sensor: watched roots, poll cadence, notification recipients
//   - Platforms: optional override of the instrument platform table
//   - Registry: run registry endpoint and credentials
//   - Events: event bus, dedup history, local journal
//   - Actions: in-process registry updates
//   - Notifications: ntfy push notification settings
//   - InteropDestinations: per-platform InterOp copy targets
//   - Logging: log format, level, and retention
type Config struct {
	Paths               Paths                `toml:"paths"`
	Sensor              Sensor               `toml:"sensor"`
	Platforms           []Platform           `toml:"platforms"`
	Registry            Registry             `toml:"registry"`
	Events              Events               `toml:"events"`
	Actions             Actions              `toml:"actions"`
	Notifications       Notifications        `toml:"notifications"`
	InteropDestinations []InteropDestination `toml:"interop_destinations"`
	Logging             Logging              `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/seqwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("seqwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the location of the SQLite event journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "events.db")
}

// PollInterval returns the sensor poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sensor.PollInterval) * time.Second
}

// DedupWindow returns how far back the deduplicator looks for identical events.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Events.DedupWindowDays) * 24 * time.Hour
}

// WatchedRoots returns the configured roots in configuration order.
func (c *Config) WatchedRoots() []WatchedRoot {
	roots := make([]WatchedRoot, 0, len(c.Sensor.WatchDirectories))
	for _, raw := range c.Sensor.WatchDirectories {
		root, err := ParseWatchedRoot(raw)
		if err != nil {
			continue
		}
		roots = append(roots, root)
	}
	return roots
}

// InteropDestination returns the configured InterOp destination for platform.
func (c *Config) InteropDestination(platform string) (string, bool) {
	for _, dest := range c.InteropDestinations {
		if dest.Platform == platform {
			return dest.Path, true
		}
	}
	return "", false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
