package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soldi/internal/config"
	apphttp "soldi/internal/http"
	"soldi/internal/insights"
	applog "soldi/internal/log"
	"soldi/internal/ratelimit"
	"soldi/internal/services"
	"soldi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	logger.Info("Starting soldi")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Receipt scanning is optional; without an API key the endpoint
	// reports itself as unavailable.
	scanner, err := insights.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel,
		logger.WithComponent(applog.ComponentInsights))
	if err != nil {
		logger.Error("Failed to initialize insights client", applog.FieldError, err)
		os.Exit(1)
	}
	if scanner == nil {
		logger.Info("Insights disabled - no GEMINI_API_KEY provided")
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.UserThrottlePerMinute,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Repo:         repo,
		Accounts:     services.NewAccountService(repo, logger.WithComponent(applog.ComponentHTTP)),
		Transactions: services.NewTransactionService(repo, scanner, logger.WithComponent(applog.ComponentHTTP)),
		Budgets:      services.NewBudgetService(repo, logger.WithComponent(applog.ComponentHTTP)),
		Limiter:      limiter,
		Logger:       logger.WithComponent(applog.ComponentHTTP),
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	}()

	logger.Info("HTTP server listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
