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
	"soldi/internal/insights"
	applog "soldi/internal/log"
	"soldi/internal/mailer"
	"soldi/internal/scheduler"
	"soldi/internal/services"
	"soldi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentScheduler})
	applog.SetDefault(logger)

	logger.Info("Starting soldi-scheduler")

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

	// AMQP is optional: without it the daily run logs what it would
	// have dispatched instead of publishing.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, due templates will not be dispatched", applog.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	sender := mailer.New(mailer.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger.WithComponent(applog.ComponentMailer))

	generator, err := insights.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel,
		logger.WithComponent(applog.ComponentInsights))
	if err != nil {
		logger.Error("Failed to initialize insights client", applog.FieldError, err)
		os.Exit(1)
	}

	alerts := services.NewBudgetAlertEvaluator(repo, sender,
		logger.WithComponent(applog.ComponentBudget), cfg.BudgetAlertThreshold)
	reports := services.NewReportService(repo, generator, sender,
		logger.WithComponent(applog.ComponentReport))

	sched := scheduler.New(logger)

	sched.Add(scheduler.Job{
		Name: "dispatch-due-recurring",
		Next: scheduler.NextMidnight,
		Run: func(ctx context.Context) error {
			return dispatchDueRecurring(ctx, repo, amqpClient, logger)
		},
	})
	sched.Add(scheduler.Job{
		Name: "budget-alerts",
		Next: scheduler.NextSixHourly,
		Run: func(ctx context.Context) error {
			checked, sent, err := alerts.Run(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "budget alert sweep complete", "checked", checked, "sent", sent)
			return nil
		},
	})
	sched.Add(scheduler.Job{
		Name: "monthly-reports",
		Next: scheduler.NextFirstOfMonth,
		Run: func(ctx context.Context) error {
			sent, err := reports.RunMonthly(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "monthly report run complete", "sent", sent)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Scheduler stopped")
}

// dispatchDueRecurring selects every due recurring template and fans
// each one out as a queue message. Processing happens in soldi-worker
// under its per-user throttle.
func dispatchDueRecurring(ctx context.Context, repo *storage.Repository, client *amqp.Client, logger *applog.Logger) error {
	due, err := repo.ListDueRecurring(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	if client == nil {
		logger.WarnContext(ctx, "AMQP unavailable, skipping dispatch", "due", len(due))
		return nil
	}

	dispatched := 0
	for _, t := range due {
		if err := client.PublishRecurringProcess(ctx, t.ID.String(), t.UserID.String()); err != nil {
			logger.ErrorContext(ctx, "failed to dispatch due template",
				applog.FieldTransactionID, t.ID.String(),
				applog.FieldError, err,
			)
			continue
		}
		dispatched++
	}

	logger.InfoContext(ctx, "due recurring dispatch complete",
		"due", len(due),
		"dispatched", dispatched,
	)
	return nil
}
