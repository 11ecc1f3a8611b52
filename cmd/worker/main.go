package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/app"
	"github.com/bivex/paygate/internal/infrastructure/config"
	"github.com/bivex/paygate/internal/infrastructure/logging"
	worker_tasks "github.com/bivex/paygate/internal/worker/tasks"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting billing worker")

	services, err := app.New(context.Background(), cfg)
	if err != nil {
		logging.Logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	billingJobs := worker_tasks.NewBillingJobHandler(services.Billing, logging.WithComponent("billing_jobs"))
	notificationJobs := worker_tasks.NewNotificationJobHandler(services.Users, services.Telegram, logging.WithComponent("notification_jobs"))

	// Initialize Asynq server
	server := asynq.NewServerFromRedisClient(services.Redis, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			worker_tasks.QueueBilling:       6,
			worker_tasks.QueueNotifications: 4,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// Exponential backoff: 2^n seconds
			return time.Duration(1<<uint(n)) * time.Second
		},
	})

	// Register task handlers
	mux := asynq.NewServeMux()
	worker_tasks.RegisterHandlers(mux, billingJobs, notificationJobs)

	// Start server in background
	if err := server.Start(mux); err != nil {
		logging.Logger.Fatal("Failed to start worker", zap.Error(err))
	}

	// Register scheduled tasks
	scheduler := asynq.NewSchedulerFromRedisClient(services.Redis, nil)
	if err := worker_tasks.RegisterScheduledTasks(scheduler, cfg.Billing.SweepCron); err != nil {
		logging.Logger.Fatal("Failed to register scheduled tasks", zap.Error(err))
	}

	// Start scheduler
	if err := scheduler.Start(); err != nil {
		logging.Logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	logging.Logger.Info("Worker started successfully", zap.String("sweep_cron", cfg.Billing.SweepCron))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down worker...")

	scheduler.Shutdown()
	server.Shutdown()

	logging.Logger.Info("Worker exited")
}
