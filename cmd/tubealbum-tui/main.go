package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/handiism/tubealbum/internal/config"
	"github.com/handiism/tubealbum/internal/history"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	flag.Parse()

	settings, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to Bubble Tea, so logs only go to a file.
	logger := logging.NewNop()
	if settings.LogFile != "" {
		if logger, err = logging.New(settings.ToLoggingOptions()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	store := openHistory(settings, logger)
	if store != nil {
		defer store.Close()
	}

	if err := tui.Run(tui.Options{Settings: settings, History: store, Logger: logger}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings(path string) (*config.Settings, error) {
	var err error
	if path == "" {
		if path, err = config.DefaultConfigPath(); err != nil {
			return nil, err
		}
	} else if path, err = config.ExpandPath(path); err != nil {
		return nil, err
	}
	return config.Load(path)
}

func openHistory(settings *config.Settings, logger *slog.Logger) *history.Store {
	if settings.HistoryPath == "" {
		return nil
	}
	store, err := history.Open(settings.HistoryPath)
	if err != nil {
		logger.Warn("history disabled", logging.Error(err))
		return nil
	}
	return store
}
