package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fieldops/fieldops/internal/shared"
)

const (
	// QueueDefault is the default queue name for background tasks.
	QueueDefault = "default"
	// TaskViewsRefresh reloads one console table from the gateway.
	TaskViewsRefresh = "views:refresh"
	// TaskInvoicesSettle moves jobs whose invoices are fully paid to PAID.
	TaskInvoicesSettle = "invoices:settle"
)

// RefreshPayload names the table to reload.
type RefreshPayload struct {
	Table shared.Table `json:"table"`
}

// SettlePayload carries no data today; the struct keeps the payload JSON stable.
type SettlePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewRefreshTask constructs a views refresh task.
func NewRefreshTask(table shared.Table) (*asynq.Task, error) {
	if !table.IsValid() {
		return nil, fmt.Errorf("worker: unknown table %q", table)
	}
	data, err := json.Marshal(RefreshPayload{Table: table})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskViewsRefresh, data), nil
}

// NewSettleTask constructs an invoice settlement task.
func NewSettleTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(SettlePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoicesSettle, data), nil
}

// Warmer loads a table into the view cache.
type Warmer interface {
	Warm(ctx context.Context, table shared.Table) error
}

// Settler reconciles paid invoices with their jobs.
type Settler interface {
	Settle(ctx context.Context) (int, error)
}

// RefreshJob handles TaskViewsRefresh.
type RefreshJob struct {
	Views   Warmer
	Logger  *slog.Logger
	Metrics *Metrics
}

// NewRefreshJob wires dependencies for the refresh handler.
func NewRefreshJob(views Warmer, logger *slog.Logger, metrics *Metrics) *RefreshJob {
	return &RefreshJob{Views: views, Logger: logger, Metrics: metrics}
}

// Handle processes refresh tasks.
func (j *RefreshJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Views == nil {
		return errors.New("views refresh: handler not configured")
	}
	var payload RefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !payload.Table.IsValid() {
		return fmt.Errorf("views refresh: unknown table %q: %w", payload.Table, asynq.SkipRetry)
	}

	done := j.Metrics.Start(TaskViewsRefresh)
	defer func() { resultErr = done(resultErr) }()

	logger := taskLogger(j.Logger, TaskViewsRefresh).With(slog.String("table", string(payload.Table)))
	start := time.Now()
	if err := j.Views.Warm(ctx, payload.Table); err != nil {
		logger.Error("refresh table", slog.Any("error", err))
		return err
	}
	logger.Info("refreshed table", slog.Duration("duration", time.Since(start)))
	return nil
}

// SettleJob handles TaskInvoicesSettle.
type SettleJob struct {
	Invoices Settler
	Logger   *slog.Logger
	Metrics  *Metrics
}

// NewSettleJob wires dependencies for the settlement handler.
func NewSettleJob(invoices Settler, logger *slog.Logger, metrics *Metrics) *SettleJob {
	return &SettleJob{Invoices: invoices, Logger: logger, Metrics: metrics}
}

// Handle processes settlement tasks.
func (j *SettleJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Invoices == nil {
		return errors.New("invoices settle: handler not configured")
	}
	var payload SettlePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	done := j.Metrics.Start(TaskInvoicesSettle)
	defer func() { resultErr = done(resultErr) }()

	logger := taskLogger(j.Logger, TaskInvoicesSettle)
	settled, err := j.Invoices.Settle(ctx)
	j.Metrics.AddSettled(settled)
	if err != nil {
		logger.Error("settle invoices", slog.Int("settled", settled), slog.Any("error", err))
		return err
	}
	logger.Info("settled invoices", slog.Int("settled", settled), slog.String("reason", payload.Reason))
	return nil
}

func taskLogger(logger *slog.Logger, task string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("task", task))
	}
	return slog.Default().With(slog.String("task", task))
}
