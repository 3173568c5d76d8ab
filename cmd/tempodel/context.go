package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"tempodel/internal/api"
	"tempodel/internal/config"
	"tempodel/internal/logging"
	"tempodel/internal/schedule"
)

// cliRole tags schedule markers and log lines written by this binary.
const cliRole = "cli"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger returns a stderr logger tagged with the CLI role. Setup failures
// fall back to a no-op logger so commands still run.
func (c *commandContext) logger() *slog.Logger {
	logger, err := logging.NewFromConfig(c.configValue(), false)
	if err != nil {
		return logging.NewNop()
	}
	return logger.With(logging.String(logging.FieldRole, cliRole))
}

func (c *commandContext) openStore() (*schedule.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return schedule.NewStoreFromConfig(cfg, afero.NewOsFs(), cliRole, c.logger()), nil
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(cfg)
	if errors.Is(err, api.ErrUnavailable) {
		return nil, fmt.Errorf("daemon api disabled: set api.bind in the configuration")
	}
	return client, err
}

func wrapDaemonError(err error, addr string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `tempodel daemon`", addr)
	}
	return fmt.Errorf("daemon request: %w", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
