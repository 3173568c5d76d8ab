package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tempodel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantSchedule := filepath.Join(tempHome, ".local", "share", "tempodel", "schedule.json")
	if cfg.Paths.ScheduleFile != wantSchedule {
		t.Fatalf("unexpected schedule file: got %q want %q", cfg.Paths.ScheduleFile, wantSchedule)
	}
	if cfg.LockPath() != wantSchedule+".lock" {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if cfg.Lock.Retries != 10 || cfg.Lock.RetryDelayMS != 200 {
		t.Fatalf("unexpected lock defaults: %+v", cfg.Lock)
	}
	if cfg.CheckInterval().Seconds() != 60 {
		t.Fatalf("unexpected check interval: %v", cfg.CheckInterval())
	}
	if cfg.ErrorBackoff() != 2*cfg.CheckInterval() {
		t.Fatalf("expected backoff to default to twice the interval, got %v", cfg.ErrorBackoff())
	}
	if !cfg.Checker.StartupCleanup {
		t.Fatal("expected startup cleanup enabled by default")
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected empty ntfy topic, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadHonoursScheduleFileEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	override := filepath.Join(t.TempDir(), "custom.json")
	t.Setenv("TEMPODEL_SCHEDULE_FILE", override)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ScheduleFile != override {
		t.Fatalf("expected env override %q, got %q", override, cfg.Paths.ScheduleFile)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	type payload struct {
		Paths struct {
			ScheduleFile string `toml:"schedule_file"`
			LogDir       string `toml:"log_dir"`
		} `toml:"paths"`
		Checker struct {
			IntervalSeconds int `toml:"interval_seconds"`
		} `toml:"checker"`
		Lock struct {
			Retries      int `toml:"retries"`
			RetryDelayMS int `toml:"retry_delay_ms"`
		} `toml:"lock"`
		Logging struct {
			Format string `toml:"format"`
			Level  string `toml:"level"`
		} `toml:"logging"`
	}

	var p payload
	p.Paths.ScheduleFile = "~/schedules/main.json"
	p.Paths.LogDir = "~/logs"
	p.Checker.IntervalSeconds = 15
	p.Lock.Retries = 5
	p.Lock.RetryDelayMS = 50
	p.Logging.Format = " JSON "
	p.Logging.Level = "DEBUG"

	data, err := toml.Marshal(p)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.ScheduleFile != filepath.Join(tempHome, "schedules", "main.json") {
		t.Fatalf("unexpected schedule file: %q", cfg.Paths.ScheduleFile)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
	if cfg.Checker.IntervalSeconds != 15 {
		t.Fatalf("unexpected interval: %d", cfg.Checker.IntervalSeconds)
	}
	if cfg.Lock.Retries != 5 || cfg.LockRetryDelay().Milliseconds() != 50 {
		t.Fatalf("unexpected lock config: %+v", cfg.Lock)
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths\nschedule_file = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"interval", func(c *config.Config) { c.Checker.IntervalSeconds = 0 }, "checker.interval_seconds"},
		{"retries", func(c *config.Config) { c.Lock.Retries = -1 }, "lock.retries"},
		{"budget", func(c *config.Config) { c.Lock.Retries = 100; c.Lock.RetryDelayMS = 1000 }, "must not exceed"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"schedule", func(c *config.Config) { c.Paths.ScheduleFile = "" }, "paths.schedule_file"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.API.Bind != config.Default().API.Bind {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
}

func TestEnsureDirectoriesCreatesParents(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ScheduleFile = filepath.Join(base, "data", "schedule.json")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.History.Path = filepath.Join(base, "hist", "history.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{"data", "logs", "hist"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, err=%v", dir, err)
		}
	}
}
