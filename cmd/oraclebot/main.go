// Command oraclebot is the entry point for the resolution oracle. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/oraclebot/internal/app"
	"github.com/alanyoungcy/oraclebot/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (worker, sync, create)")

	// Create-mode flags.
	marketID := flag.String("market-id", "", "create: market identifier (must match the on-chain pool)")
	deadline := flag.Int64("deadline", 0, "create: lock deadline as a Unix timestamp")
	threshold := flag.Float64("threshold", 0, "create: resolution threshold; metric >= threshold resolves option A")
	metricName := flag.String("metric", "", "create: metric name the market resolves against")
	description := flag.String("description", "", "create: human-readable market description")
	optionA := flag.String("option-a", "", "create: label for option A (default YES)")
	optionB := flag.String("option-b", "", "create: label for option B (default NO)")

	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("oracle starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Mode == "create" {
		err = application.RunCreate(ctx, app.CreateParams{
			ID:           *marketID,
			Deadline:     *deadline,
			Threshold:    *threshold,
			MetricName:   *metricName,
			Description:  *description,
			OptionALabel: *optionA,
			OptionBLabel: *optionB,
		})
	} else {
		err = application.Run(ctx)
	}

	if err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("oracle shut down gracefully")
		} else {
			logger.Error("oracle exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("oracle stopped")
}
