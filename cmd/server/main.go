// Package main is the entry point for the store catalog server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/store-catalog/internal/config"
	"github.com/vyrodovalexey/store-catalog/internal/repository"
	"github.com/vyrodovalexey/store-catalog/internal/seed"
	"github.com/vyrodovalexey/store-catalog/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.Int("probe_port", cfg.ProbePort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.Bool("websocket_enabled", cfg.WebSocketEnabled),
		zap.String("store_delete_policy", string(cfg.StoreDeletePolicy)),
		zap.String("seed_file", cfg.SeedFile),
	)

	repo, err := newRepository(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to prepare catalog", zap.Error(err))
		return 1
	}

	srv := server.New(cfg, logger, repo)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return 1
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// newRepository builds the catalog repository and applies the seed file,
// if one is configured.
func newRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.MemoryRepository, error) {
	policy, err := repository.ParseDeletePolicy(string(cfg.StoreDeletePolicy))
	if err != nil {
		return nil, err
	}

	repo := repository.NewMemoryRepository(repository.WithDeletePolicy(policy))

	if cfg.SeedFile == "" {
		return repo, nil
	}

	file, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("loading seed: %w", err)
	}

	res, err := seed.Apply(ctx, repo, file)
	if err != nil {
		return nil, fmt.Errorf("applying seed: %w", err)
	}

	logger.Info("catalog seeded",
		zap.String("file", cfg.SeedFile),
		zap.Int("stores", res.Stores),
		zap.Int("items", res.Items),
	)

	return repo, nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
