package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kopilka/internal/cli"
	"kopilka/internal/log"
	"kopilka/internal/services"
	"kopilka/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting kopilka-worker")

	res := cli.InitBackend(context.Background(), logger, cfg, false)
	svc := services.New(res.Store, res.Publisher())

	reconcileWorker := worker.NewReconcileWorker(svc.Balance)
	scheduler := services.NewScheduler(svc.Balance, svc.Reminders, services.SchedulerConfig{
		ReconcileInterval: cfg.ReconcileInterval,
		ReminderInterval:  cfg.ReminderInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Scheduler stop error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// Balances may have drifted while nothing was consuming requests.
	if err := reconcileWorker.StartupReconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if res.Broker != nil {
		go func() {
			err := res.Broker.ConsumeReconcileRequests(ctx, reconcileWorker.HandleReconcileRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Reconcile request consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP disabled, reminders and reconcile requests are not consumed")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
