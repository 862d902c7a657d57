package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/shared"
)

// Gateway is the slice of the remote API used for invoices and payments.
type Gateway interface {
	GenerateInvoice(ctx context.Context, jobID string, input GenerateInput) (*Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
	RecordPayment(ctx context.Context, invoiceID string, input PaymentInput) (*Payment, error)
}

// JobService is what invoicing needs from the job workflows.
type JobService interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	MarkPaid(ctx context.Context, jobID string, note string) (*jobs.Job, error)
	Machine() *jobs.Machine
}

// SettleQueue requests a later settlement run for jobs that could not be
// moved to PAID inline.
type SettleQueue interface {
	EnqueueSettle(ctx context.Context, reason string) error
}

// Service runs the invoice and payment workflows.
type Service struct {
	gateway Gateway
	jobs    JobService
	views   shared.Invalidator
	settle  SettleQueue
	logger  *slog.Logger
}

// NewService builds a Service.
func NewService(gateway Gateway, jobService JobService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, jobs: jobService, views: shared.NopInvalidator{}, logger: logger}
}

// SetInvalidator sets the observer notified after mutations.
func (s *Service) SetInvalidator(inv shared.Invalidator) {
	if inv != nil {
		s.views = inv
	}
}

// SetSettleQueue sets the queue used when an inline settlement fails.
func (s *Service) SetSettleQueue(q SettleQueue) {
	s.settle = q
}

// Preview prices the form without calling the remote API.
func (s *Service) Preview(input GenerateInput) (Totals, error) {
	return Compute(input.Items, input.TaxRate)
}

// Generate creates the single invoice of a job.
func (s *Service) Generate(ctx context.Context, jobID string, input GenerateInput) (*Invoice, error) {
	totals, err := Compute(input.Items, input.TaxRate)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Machine().CanInvoice(job); err != nil {
		return nil, err
	}

	input.Items = normalizeItems(input.Items)
	inv, err := s.gateway.GenerateInvoice(ctx, job.ID, input)
	if err != nil {
		return nil, fmt.Errorf("generate invoice: %w", err)
	}
	if err := totals.Matches(*inv); err != nil {
		s.logger.Warn("remote invoice totals differ", slog.String("job_id", job.ID), slog.Any("error", err))
	}

	if refreshed, err := s.jobs.Get(ctx, job.ID); err == nil && refreshed.Status != jobs.StatusInvoiced {
		s.logger.Warn("job not invoiced after invoice generation",
			slog.String("job_id", job.ID),
			slog.String("status", string(refreshed.Status)))
	}

	s.logger.Info("invoice generated",
		slog.String("invoice_id", inv.ID),
		slog.String("job_id", job.ID),
		slog.String("total", inv.Total.String()))

	// A zero-total invoice is settled as soon as it exists.
	if ComputeBalance(*inv).Settled {
		s.settleOrEnqueue(ctx, job.ID, "zero-total invoice "+inv.ID)
	}
	s.views.Invalidate(ctx, shared.TableJobs, shared.TableInvoices)
	return inv, nil
}

// List returns every invoice with its derived balance.
func (s *Service) List(ctx context.Context) ([]InvoiceWithBalance, error) {
	invoices, err := s.gateway.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]InvoiceWithBalance, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, InvoiceWithBalance{Invoice: inv, Balance: ComputeBalance(inv)})
	}
	return out, nil
}

// Get finds an invoice by id. The remote API has no single-invoice read, so
// the list is scanned.
func (s *Service) Get(ctx context.Context, id string) (*InvoiceWithBalance, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.Validation("invoice id is required")
	}
	invoices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if invoices[i].ID == id {
			return &invoices[i], nil
		}
	}
	return nil, shared.NotFound(fmt.Sprintf("invoice %s not found", id))
}

// RecordPayment applies a payment. When the invoice becomes settled the
// owning job is moved to PAID.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, input PaymentInput) (*Payment, Balance, error) {
	if !input.Amount.IsPositive() {
		return nil, Balance{}, shared.Validation("amount must be greater than 0")
	}
	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, Balance{}, err
	}
	if inv.Balance.Settled {
		return nil, inv.Balance, shared.Conflict(fmt.Sprintf("invoice %s is already paid in full", inv.ID))
	}
	if _, err := inv.Balance.Paid.Add(input.Amount); err != nil {
		return nil, inv.Balance, shared.Validation("amount: " + shared.UserSafeMessage(err))
	}

	payment, err := s.gateway.RecordPayment(ctx, inv.ID, input)
	if err != nil {
		return nil, inv.Balance, fmt.Errorf("record payment: %w", err)
	}
	inv.Payments = append(inv.Payments, *payment)
	balance := ComputeBalance(inv.Invoice)

	s.logger.Info("payment recorded",
		slog.String("invoice_id", inv.ID),
		slog.String("amount", payment.Amount.String()),
		slog.String("remaining", balance.Remaining.String()))

	if balance.Settled {
		s.settleOrEnqueue(ctx, inv.JobID, "payment "+payment.ID)
	}
	s.views.Invalidate(ctx, shared.TableInvoices, shared.TableJobs)
	return payment, balance, nil
}

// settleOrEnqueue moves the job to PAID, handing it to the settlement task
// when that fails.
func (s *Service) settleOrEnqueue(ctx context.Context, jobID, reason string) {
	err := s.settleJob(ctx, jobID)
	if err == nil {
		return
	}
	s.logger.Warn("settle job", slog.String("job_id", jobID), slog.Any("error", err))
	if s.settle == nil {
		return
	}
	if err := s.settle.EnqueueSettle(ctx, reason); err != nil {
		s.logger.Error("enqueue settlement", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (s *Service) settleJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusInvoiced {
		return nil
	}
	_, err = s.jobs.MarkPaid(ctx, job.ID, "")
	return err
}

// Settle moves every job whose invoice is fully paid but which is still
// INVOICED to PAID. It returns the number of jobs moved. A job that cannot be
// moved does not stop the run; the failures are joined into the error.
func (s *Service) Settle(ctx context.Context) (int, error) {
	invoices, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	moved := 0
	var errs []error
	for _, inv := range invoices {
		if !inv.Balance.Settled {
			continue
		}
		job, err := s.jobs.Get(ctx, inv.JobID)
		if err != nil {
			s.logger.Warn("settle: load job", slog.String("job_id", inv.JobID), slog.Any("error", err))
			continue
		}
		if job.Status != jobs.StatusInvoiced {
			continue
		}
		if _, err := s.jobs.MarkPaid(ctx, job.ID, ""); err != nil {
			s.logger.Warn("settle: mark paid", slog.String("job_id", job.ID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("settle job %s: %w", job.ID, err))
			continue
		}
		moved++
	}
	if moved > 0 {
		s.views.Invalidate(ctx, shared.TableJobs)
	}
	return moved, errors.Join(errs...)
}
