package testsupport

import (
	"path/filepath"
	"testing"

	"tempodel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Lock polling is shortened and the checker interval is one second so tests
// never wait on production defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScheduleFile = filepath.Join(base, "state", "schedule.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	cfgVal.Checker.IntervalSeconds = 1
	cfgVal.Checker.ErrorBackoffSeconds = 1
	cfgVal.Checker.WatchSchedule = false
	cfgVal.Lock.Retries = 3
	cfgVal.Lock.RetryDelayMS = 5
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.API.Token = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithHistory toggles the SQLite journal.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = enabled
	}
}

// WithAPIToken requires bearer authentication on the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithNtfyTopic points notifications at the given endpoint, typically an
// httptest server URL.
func WithNtfyTopic(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = endpoint
	}
}

// WithScheduleWatch enables the fsnotify schedule watch.
func WithScheduleWatch() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Checker.WatchSchedule = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
