package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateChecker(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ScheduleFile) == "" {
		return errors.New("paths.schedule_file must be set")
	}
	if strings.HasSuffix(c.Paths.ScheduleFile, string(filepath.Separator)) {
		return fmt.Errorf("paths.schedule_file %q must name a file", c.Paths.ScheduleFile)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateChecker() error {
	if c.Checker.IntervalSeconds < minCheckIntervalSeconds {
		return fmt.Errorf("checker.interval_seconds must be at least %d", minCheckIntervalSeconds)
	}
	if c.Checker.ErrorBackoffSeconds < 0 {
		return errors.New("checker.error_backoff_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateLock() error {
	if c.Lock.Retries < 0 {
		return errors.New("lock.retries must be non-negative")
	}
	if c.Lock.RetryDelayMS < 0 {
		return errors.New("lock.retry_delay_ms must be non-negative")
	}
	// The marker wait is the only designed suspension point and must stay short.
	if c.Lock.Retries*c.Lock.RetryDelayMS > maxLockRetryBudgetMS {
		return fmt.Errorf("lock.retries * lock.retry_delay_ms must not exceed %dms", maxLockRetryBudgetMS)
	}
	if c.Lock.StaleSeconds < 0 {
		return errors.New("lock.stale_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be non-negative")
	}
	return nil
}
