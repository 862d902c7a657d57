package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"

	"github.com/fieldops/fieldops/internal/app"
	"github.com/fieldops/fieldops/internal/observability"
	"github.com/fieldops/fieldops/internal/platform/cache"
	"github.com/fieldops/fieldops/internal/worker"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "worker")
	if !cfg.HasRedis() {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}

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

	queueOpts, err := cache.QueueOptions(cfg.RedisAddr)
	if err != nil {
		logger.Error("queue options", slog.Any("error", err))
		os.Exit(1)
	}

	taskMetrics := worker.NewMetrics(metrics.Registerer())
	refreshJob := worker.NewRefreshJob(stack.Views, logger, taskMetrics)
	settleJob := worker.NewSettleJob(stack.Services.Invoices, logger, taskMetrics)

	settleTask, err := worker.NewSettleTask("cron")
	if err != nil {
		logger.Error("build settle task", slog.Any("error", err))
		os.Exit(1)
	}

	w, err := worker.NewWorker(worker.WorkerConfig{
		RedisOpts:   queueOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []worker.TaskHandler{
			{Type: worker.TaskViewsRefresh, Handler: refreshJob.Handle},
			{Type: worker.TaskInvoicesSettle, Handler: settleJob.Handle},
		},
		Cron: []worker.CronRegistration{
			{Spec: cfg.SettleCron, Task: settleTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(worker.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(queueOpts)
	defer inspector.Close()
	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Metrics:       metrics,
		WorkerHandler: worker.NewHandler(inspector, logger),
	})
	server := &http.Server{Addr: cfg.AppAddr, Handler: router, ReadTimeout: cfg.AppReadTimeout, WriteTimeout: cfg.AppWriteTimeout}
	go func() {
		logger.Info("starting worker status server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker status server", slog.Any("error", err))
		}
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
