package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeChecker()
	c.normalizeLogging()
	c.normalizeNotifications()
	c.normalizeAPI()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(scheduleFileEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.ScheduleFile = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.ScheduleFile) == "" {
		c.Paths.ScheduleFile = defaultScheduleFile
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.ScheduleFile, err = expandPath(c.Paths.ScheduleFile); err != nil {
		return fmt.Errorf("paths.schedule_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeChecker() {
	// Unset backoff tracks the interval.
	if c.Checker.ErrorBackoffSeconds == 0 && c.Checker.IntervalSeconds > 0 {
		c.Checker.ErrorBackoffSeconds = c.Checker.IntervalSeconds * errorBackoffIntervalFactor
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if value, ok := os.LookupEnv(apiTokenEnv); ok {
		c.API.Token = strings.TrimSpace(value)
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}
