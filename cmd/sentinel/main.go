package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beaconsentry/engine/internal/app"
	"github.com/beaconsentry/engine/internal/config"
	"github.com/beaconsentry/engine/internal/telemetry"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("beacon sentinel starting")

	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		slog.Error("tracer initialization failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown failed", "error", err.Error())
		}
	}()

	cfg := config.Load()
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}

	engine, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("engine initialization failed", "error", err.Error())
		os.Exit(1)
	}

	if err := engine.Run(ctx); err != nil {
		slog.Error("engine run failed", "error", err.Error())
		os.Exit(1)
	}

	time.Sleep(1 * time.Second)
	slog.Info("beacon sentinel stopped")
}
