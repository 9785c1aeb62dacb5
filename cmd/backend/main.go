package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	analyzerimpl "github.com/pairloop/pairloop/external/analyzer"
	configloader "github.com/pairloop/pairloop/external/config"
	"github.com/pairloop/pairloop/external/httpserver"
	mailerimpl "github.com/pairloop/pairloop/external/mailer"
	repositoryimpl "github.com/pairloop/pairloop/external/repository"
	storageimpl "github.com/pairloop/pairloop/external/storage"
	tasksimpl "github.com/pairloop/pairloop/external/tasks"
	transcriberimpl "github.com/pairloop/pairloop/external/transcriber"
	videoimpl "github.com/pairloop/pairloop/external/video"
	"github.com/pairloop/pairloop/internal/analytics"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/pairing"
	"github.com/pairloop/pairloop/internal/pipeline"
	"github.com/samber/do/v2"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching backend")
	run(cfg, injector)
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
	videoimpl.RegisterDI(injector)
	storageimpl.RegisterDI(injector)
	tasksimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	analyzerimpl.RegisterDI(injector)
	mailerimpl.RegisterDI(injector)
	analytics.RegisterDI(injector)
	pairing.RegisterDI(injector)
	pipeline.RegisterDI(injector)
	httpserver.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) {
	server, err := do.Invoke[*httpserver.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	engine, err := do.Invoke[*pairing.Engine](injector)
	if err != nil {
		slog.Error("failed to resolve pairing engine", "error", err)
		os.Exit(1)
	}

	scanCtx, stopScan := context.WithCancel(context.Background())
	defer stopScan()
	go runScheduleScan(scanCtx, cfg, engine)

	done := make(chan struct{})
	go func() {
		if err := server.Run(); err != nil {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	stopScan()
	if err := server.Shutdown(); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
}

// runScheduleScan wakes up on the configured interval and runs every due
// pairing schedule. The scan is cheap when nothing is due.
func runScheduleScan(ctx context.Context, cfg *config.Config, engine *pairing.Engine) {
	ticker := time.NewTicker(cfg.ScheduleScanInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ran, err := engine.RunDueSchedules(ctx)
			if err != nil {
				slog.Error("schedule scan failed", "error", err)
				continue
			}
			if ran > 0 {
				slog.Info("schedule scan completed", "schedules_run", ran)
			}
		}
	}
}
