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
	"github.com/fieldops/fieldops/internal/gateway/memory"
	"github.com/fieldops/fieldops/internal/mockapi"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping mockapi startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "mockapi")

	backend := memory.New()
	seed := &mockapi.Seed{}
	if cfg.MockAPISeed != "" {
		seed, err = mockapi.LoadSeed(cfg.MockAPISeed)
		if err != nil {
			logger.Error("load seed", slog.String("path", cfg.MockAPISeed), slog.Any("error", err))
			os.Exit(1)
		}
	}
	seed.Technicians = append(seed.Technicians, mockapi.ParseTechnicians(cfg.MockAPITechnicians)...)
	if err := seed.Apply(ctx, backend); err != nil {
		logger.Error("apply seed", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.MockAPIAddr,
		Handler:      mockapi.NewServer(backend, logger).Routes(),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting mockapi server", slog.String("addr", cfg.MockAPIAddr), slog.String("prefix", mockapi.Prefix))
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
