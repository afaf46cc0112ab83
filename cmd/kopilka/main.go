package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kopilka/internal/cli"
	apphttp "kopilka/internal/http"
	"kopilka/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg, false)

	svc := services.New(res.Store, res.Publisher())
	svc.Notifications.SetDefaultThreshold(cfg.LargeExpenseThreshold)

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitRPM: cfg.RateLimitRPM,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to configure server", "error", err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting kopilka server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", res.Broker != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
