package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/fieldops/internal/console"
	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/dispatch"
	"github.com/fieldops/fieldops/internal/gateway"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/money"
	"github.com/fieldops/fieldops/internal/observability"
	"github.com/fieldops/fieldops/internal/platform/cache"
	"github.com/fieldops/fieldops/internal/views"
	"github.com/fieldops/fieldops/internal/worker"
)

// Stack bundles the dependencies shared by the console and the worker.
type Stack struct {
	Gateway    gateway.Gateway
	Services   console.Services
	Views      *views.Cache
	Dispatcher *dispatch.Dispatcher
	// Redis and Queue are nil when REDIS_ADDR is empty.
	Redis *redis.Client
	Queue *worker.Client
}

// StackOptions tweaks BuildStack, mainly for tests.
type StackOptions struct {
	Gateway gateway.Gateway
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// BuildStack wires gateway, services, view cache and dispatcher from cfg.
func BuildStack(ctx context.Context, cfg *Config, logger *slog.Logger, opts StackOptions) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	formatter, err := money.NewFormatter(cfg.DisplayLocale, cfg.DisplayCurrency)
	if err != nil {
		return nil, err
	}

	st := &Stack{Gateway: opts.Gateway, Redis: opts.Redis}
	if st.Gateway == nil {
		client, err := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout,
			gateway.WithLogger(logger),
			gateway.WithObserver(opts.Metrics),
		)
		if err != nil {
			return nil, err
		}
		st.Gateway = client
	}

	if st.Redis == nil && cfg.HasRedis() {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		st.Redis = client
	}
	if st.Redis != nil && cfg.HasRedis() {
		queueOpts, err := cache.QueueOptions(cfg.RedisAddr)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("app: queue options: %w", err)
		}
		st.Queue = worker.NewClient(queueOpts, 0)
	}

	st.Views = views.New(st.Redis, cfg.ViewCacheTTL, logger)
	if st.Queue != nil {
		st.Views.SetEnqueuer(st.Queue)
	}

	customerSvc := customers.NewService(st.Gateway, logger)
	customerSvc.SetInvalidator(st.Views)
	jobSvc := jobs.NewService(st.Gateway, jobs.NewMachine(), logger)
	jobSvc.SetCustomers(customerSvc)
	jobSvc.SetInvalidator(st.Views)
	invoiceSvc := invoicing.NewService(st.Gateway, jobSvc, logger)
	invoiceSvc.SetInvalidator(st.Views)
	if st.Queue != nil {
		invoiceSvc.SetSettleQueue(st.Queue)
	}
	st.Services = console.Services{Customers: customerSvc, Jobs: jobSvc, Invoices: invoiceSvc}

	console.RegisterViews(st.Views, st.Services, formatter)

	var store dispatch.Store
	if st.Redis != nil {
		store = dispatch.NewRedisStore(st.Redis, cfg.DispatchTTL)
	} else {
		store = dispatch.NewMemoryStore(cfg.DispatchTTL)
	}
	st.Dispatcher = dispatch.NewDispatcher(store, console.NewRegistry(st.Services, cfg.DefaultTechnicianID), logger)
	return st, nil
}

// Close releases the queue client and the Redis connection.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Queue != nil {
		errs = append(errs, s.Queue.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}
