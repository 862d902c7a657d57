package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fieldops/fieldops/internal/app"
	"github.com/fieldops/fieldops/internal/console"
	"github.com/fieldops/fieldops/internal/observability"
	"github.com/fieldops/fieldops/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping console startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "console")
	metrics := observability.NewMetrics()

	stack, err := app.BuildStack(ctx, cfg, logger, app.StackOptions{Metrics: metrics})
	if err != nil {
		logger.Error("build stack", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("close stack", slog.Any("error", err))
		}
	}()
	if stack.Redis == nil {
		logger.Warn("REDIS_ADDR not set, pending actions and table views stay in process")
	}

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Sessions: shared.NewSessionManager(shared.DefaultSessionCookie, cfg.SessionTTL, cfg.IsProduction()),
		Metrics:  metrics,
		Console:  console.NewHandler(stack.Services, stack.Dispatcher, stack.Views, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting console server", slog.String("addr", cfg.AppAddr), slog.String("gateway", cfg.GatewayBaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
