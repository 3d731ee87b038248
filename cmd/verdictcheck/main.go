package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/verdictlabs/verdict/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	probeTimeout := flag.Duration("timeout", 5*time.Second, "Per-probe timeout")
	listenPort := flag.Int("listen", 0, "Serve /health and /metrics on this port after probing (0 = exit after probes)")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load environment from .env if present
	_ = godotenv.Load()

	// Load Configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Fall back to default logger for config load errors
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Simplified logging logic (debug < info)
	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))
	slog.Info("Logger initialized", "level", slogLevel.String())

	// Setup Context with Cancellation on OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := newRunner(cfg, *probeTimeout)
	report := runner.Run(ctx)

	for _, probe := range report.Probes {
		if probe.OK {
			slog.Info("Probe succeeded", "backend", probe.Backend, "duration", probe.Duration)
		} else {
			slog.Error("Probe failed",
				"backend", probe.Backend,
				"kind", probe.Kind,
				"tier", probe.Tier,
				"error", probe.Message,
				"duration", probe.Duration)
		}
	}

	if *listenPort > 0 {
		srv := newHealthServer(report, *listenPort)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("Health server stopped", "error", err)
			}
		}()
		slog.Info("Serving health and metrics", "port", *listenPort)

		<-ctx.Done()
		slog.Info("Received signal, shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
			os.Exit(1)
		}
	}

	if !report.Healthy() {
		os.Exit(1)
	}
}
