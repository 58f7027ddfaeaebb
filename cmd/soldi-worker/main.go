package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soldi/internal/amqp"
	"soldi/internal/config"
	applog "soldi/internal/log"
	"soldi/internal/ratelimit"
	"soldi/internal/services"
	"soldi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting soldi-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Per-user throttle: one user's pile of due templates cannot starve
	// everyone else's.
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.UserThrottlePerMinute,
	})
	defer limiter.Stop()

	processor := services.NewRecurringProcessor(
		repo,
		limiter,
		logger.WithComponent(applog.ComponentRecurring),
		cfg.ProcessorMaxAttempts,
		cfg.ProcessorBackoff,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- amqpClient.ConsumeRecurringProcess(ctx, processor.HandleMessage)
	}()

	logger.Info("Worker consuming",
		"queue", cfg.AMQPQueue,
		"throttle_per_minute", cfg.UserThrottlePerMinute,
		"max_attempts", cfg.ProcessorMaxAttempts,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	case err := <-consumeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
			os.Exit(1)
		}
	}

	// Give the in-flight message a moment to finish.
	select {
	case <-consumeDone:
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	logger.Info("Worker stopped")
}
