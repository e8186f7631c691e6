package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	audioimpl "github.com/foxseedlab/kikitori/external/audio"
	configloader "github.com/foxseedlab/kikitori/external/config"
	gatewayimpl "github.com/foxseedlab/kikitori/external/gateway"
	notifierimpl "github.com/foxseedlab/kikitori/external/notifier"
	repositoryimpl "github.com/foxseedlab/kikitori/external/repository"
	webhookimpl "github.com/foxseedlab/kikitori/external/webhook"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "backend", cfg.GatewayBackend)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	run(injector, os.Args[1:])
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	gatewayimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	notifierimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func run(injector do.Injector, paths []string) {
	if len(paths) == 0 {
		slog.Error("no audio files given; usage: backend <file.wav> [file.wav ...]")
		os.Exit(1)
	}

	pipeline, err := do.Invoke[*session.Pipeline](injector)
	if err != nil {
		slog.Error("failed to resolve pipeline", "error", err)
		os.Exit(1)
	}
	warnStaleSessions(injector)
	transcriber, err := do.Invoke[*session.Transcriber](injector)
	if err != nil {
		slog.Error("failed to resolve transcriber", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := transcriber.Close(); err != nil {
			slog.Error("transcriber close failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, path := range paths {
		if ctx.Err() != nil {
			slog.Info("shutting down")
			return
		}
		slog.Info("transcribing file", "path", path)
		if err := pipeline.RunFile(ctx, path); err != nil {
			slog.Error("transcription failed", "error", err, "path", path)
			os.Exit(1)
		}
	}
}

// warnStaleSessions flags sessions a previous run left marked running.
func warnStaleSessions(injector do.Injector) {
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		return
	}
	stale, err := repo.ListRunningSessions(context.Background())
	if err != nil {
		slog.Warn("failed to check for stale sessions", "error", err)
		return
	}
	for _, s := range stale {
		slog.Warn("stale running session found", "session_id", s.ID, "started_at", s.StartedAt)
	}
}
