package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tasklist/app"
	"tasklist/config"
	"tasklist/model"
	"tasklist/store"
	"tasklist/store/memory"
	"tasklist/store/sqlite"
	"tasklist/telemetry"
	"tasklist/tui"
)

func main() {
	seed := flag.Bool("seed", false, "add demo tasks when the store is empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(context.Background(), cfg, *seed, runProgram); err != nil {
		log.Fatalf("tasks: %v", err)
	}
}

func runProgram(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// run wires the application and blocks in startUI. Everything it opens is
// released before it returns, including when startUI fails.
func run(ctx context.Context, cfg config.Config, seed bool, startUI func(tea.Model) error) error {
	logOut, err := openLogOutput(cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logOut.Close()
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	opts := []app.Option{app.WithLogger(logger), app.WithFilterKey(cfg.Filter.Key)}
	if cfg.Tracing.Enabled {
		tcfg := telemetry.Config{ServiceName: "tasks"}
		if cfg.Tracing.Stdout {
			// stdout belongs to the UI; spans go wherever logs go.
			tcfg.Writer = logOut
		}
		tp, err := telemetry.Init(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", "err", err)
			}
		}()
		opts = append(opts, app.WithTracerProvider(tp))
	}

	repo, filters, closeStore, err := openBackend(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store failed", "err", err)
		}
	}()

	if seed {
		if err := seedTasks(ctx, repo); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	proc := app.NewProcessor(ctx, repo, filters, opts...)
	defer func() {
		if err := proc.Close(); err != nil {
			logger.Error("processor stopped with error", "err", err)
		}
		logger.Info("stopped", "backend", cfg.Storage.Backend)
	}()

	if err := startUI(tui.NewModel(proc, repo)); err != nil {
		logger.Error("ui exited", "err", err)
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

func openBackend(cfg config.StorageConfig, logger *slog.Logger) (app.Repository, app.FilterStore, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewRepository(), memory.NewFilterStore(), func() error { return nil }, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := sqlite.NewTaskRepo(db)
		return repo, repo, db.Close, nil
	default:
		fs, note, err := store.OpenFile(cfg.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		if note != "" {
			logger.Warn("task file recovered", "path", fs.Path(), "note", note)
		}
		return fs, fs, func() error { return nil }, nil
	}
}

func seedTasks(ctx context.Context, repo app.Repository) error {
	existing, err := repo.Tasks(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return repo.Add(ctx,
		model.NewTask("Buy groceries", "Milk, eggs, bread"),
		model.NewTask("Write weekly report", ""),
		model.NewTask("", "Call the plumber about the kitchen sink"),
		model.NewTask("Renew passport", "").WithCompleted(true),
	)
}

func openLogOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}
