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

// Paths contains file and directory locations.
type Paths struct {
	ScheduleFile string `toml:"schedule_file"`
	LogDir       string `toml:"log_dir"`
}

// Checker contains configuration for the background reconciliation loop.
type Checker struct {
	IntervalSeconds     int  `toml:"interval_seconds"`
	ErrorBackoffSeconds int  `toml:"error_backoff_seconds"`
	StartupCleanup      bool `toml:"startup_cleanup"`
	WatchSchedule       bool `toml:"watch_schedule"`
}

// Lock contains configuration for the advisory schedule marker.
type Lock struct {
	Retries      int `toml:"retries"`
	RetryDelayMS int `toml:"retry_delay_ms"`
	// StaleSeconds removes markers older than this many seconds. Zero disables
	// age-based recovery; dead-owner recovery still applies.
	StaleSeconds int `toml:"stale_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Failures       bool   `toml:"failures"`
	Lifecycle      bool   `toml:"lifecycle"`
}

// History contains configuration for the reconciliation journal.
type History struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// API contains configuration for the daemon HTTP API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Config encapsulates all configuration values for Tempodel.
//
// Configuration sections by subsystem:
//   - Paths: schedule file and log directory
//   - Checker: loop interval, error backoff, startup cleanup, schedule watch
//   - Lock: advisory marker polling budget and stale recovery
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//   - History: SQLite journal of reconciliation outcomes
//   - API: daemon HTTP bind address and token
type Config struct {
	Paths         Paths         `toml:"paths"`
	Checker       Checker       `toml:"checker"`
	Lock          Lock          `toml:"lock"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	API           API           `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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

		decoder := toml.NewDecoder(file)
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tempodel.toml")
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

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Paths.ScheduleFile), c.Paths.LogDir}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the advisory marker path co-located with the schedule file.
func (c *Config) LockPath() string {
	return c.Paths.ScheduleFile + LockSuffix
}

// CheckInterval returns the checker tick interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Checker.IntervalSeconds) * time.Second
}

// ErrorBackoff returns the extended wait applied after a failed tick.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Checker.ErrorBackoffSeconds) * time.Second
}

// LockRetryDelay returns the sleep between marker polls.
func (c *Config) LockRetryDelay() time.Duration {
	return time.Duration(c.Lock.RetryDelayMS) * time.Millisecond
}

// LockStaleAfter returns the marker age after which it is considered abandoned.
func (c *Config) LockStaleAfter() time.Duration {
	return time.Duration(c.Lock.StaleSeconds) * time.Second
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
