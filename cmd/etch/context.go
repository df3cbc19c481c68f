package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"etch/internal/catalog"
	"etch/internal/config"
	"etch/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
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

// ensureLogger builds the CLI logger. All log output goes to stderr so
// stdout stays clean for tables and JSON.
func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil || cfg == nil {
			c.logger = slog.New(slog.DiscardHandler)
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: os.Stderr,
		})
		if err != nil {
			c.logger = slog.New(slog.DiscardHandler)
			return
		}
		c.logger = logger
	})
	return c.logger
}

// openCatalog opens the catalog cache under the configured state directory.
// Callers own closing the returned store.
func (c *commandContext) openCatalog() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(filepath.Join(cfg.Paths.StateDir, "catalog.db"))
}

// helperPath resolves the privileged helper binary: the configured path if
// set, otherwise etch-helper next to the running executable.
func (c *commandContext) helperPath() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if configured := strings.TrimSpace(cfg.Helper.Path); configured != "" {
		return configured, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate running executable: %w", err)
	}
	sibling := filepath.Join(filepath.Dir(exe), "etch-helper")
	if _, err := os.Stat(sibling); err != nil {
		return "", fmt.Errorf("helper binary not found at %s; set helper.path in the config", sibling)
	}
	return sibling, nil
}
