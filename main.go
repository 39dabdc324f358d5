// Package main is the entry point for the glucose spike analyzer
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/mrcode/glucose-spikes/internal/app"
	"github.com/mrcode/glucose-spikes/internal/cli"
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "settings file, JSON or YAML (default settings.json in the config directory)")
	logJSON := flag.Bool("log-json", false, "write logs as JSON")
	initConfig := flag.Bool("init", false, "write the default settings to the config path and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [command args...]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Without a command an interactive shell is started. Type 'help' there for commands.")
		flag.PrintDefaults()
	}
	flag.Parse()

	path := *configPath
	if path == "" {
		var err error
		if path, err = models.GetConfigPath(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			return 1
		}
	}

	settings := models.DefaultSettings()
	if *initConfig {
		if err := settings.SaveFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			return 1
		}
		fmt.Printf("[OK] Default settings written to %s\n", path)
		return 0
	}
	if err := settings.LoadFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}

	logger := newLogger(os.Stderr, settings.Logging, *logJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(settings.Storage, logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		return 1
	}

	application, err := app.New(settings, repo, logger)
	if err != nil {
		_ = repo.Close()
		logger.Error("Failed to create application", "error", err)
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	if err := application.LoadSnapshot(ctx); err != nil {
		logger.Error("Failed to load data", "error", err)
		return 1
	}
	if _, err := application.LoadReadings(ctx); err != nil {
		logger.Warn("No CGM data loaded", "error", err)
	}

	shell := cli.New(application, os.Stdin, os.Stdout, logger)
	if flag.NArg() > 0 {
		if err := shell.ExecuteArgs(ctx, flag.Args()); err != nil {
			return 1
		}
		return 0
	}

	if err := shell.Run(ctx); err != nil {
		logger.Error("Reading input failed", "error", err)
		return 1
	}
	return 0
}

// newLogger builds the console handler, colourised when w is a terminal, or a
// JSON handler when asked for
func newLogger(w *os.File, cfg models.LoggingConfig, forceJSON bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	if forceJSON || cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(w.Fd()),
	}))
}
