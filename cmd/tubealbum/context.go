package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/handiism/tubealbum/internal/config"
	"github.com/handiism/tubealbum/internal/history"
	"github.com/handiism/tubealbum/internal/logging"
)

// commandContext holds the persistent flags shared by every subcommand.
type commandContext struct {
	configPath string
	logLevel   string
	logFormat  string
}

// resolvedConfigPath returns --config, or the default path.
func (c *commandContext) resolvedConfigPath() (string, error) {
	if path := strings.TrimSpace(c.configPath); path != "" {
		return config.ExpandPath(path)
	}
	return config.DefaultConfigPath()
}

// loadSettings reads the configuration file and applies the logging flags.
func (c *commandContext) loadSettings() (*config.Settings, error) {
	path, err := c.resolvedConfigPath()
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if c.logLevel != "" {
		settings.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		settings.LogFormat = c.logFormat
	}
	return settings, nil
}

// newLogger builds the structured logger. Logs go to stderr unless a log
// file is configured.
func (c *commandContext) newLogger(settings *config.Settings) (*slog.Logger, error) {
	opts := settings.ToLoggingOptions()
	if len(opts.OutputPaths) == 0 {
		opts.Writer = os.Stderr
	}
	return logging.New(opts)
}

// openHistory opens the run ledger, or returns nil when history is disabled.
func (c *commandContext) openHistory(settings *config.Settings) (*history.Store, error) {
	if strings.TrimSpace(settings.HistoryPath) == "" {
		return nil, nil
	}
	return history.Open(settings.HistoryPath)
}
