package invoicing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/gateway/memory"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/money"
	"github.com/fieldops/fieldops/internal/shared"
)

// countingBackend counts the calls that create remote records.
type countingBackend struct {
	*memory.Backend
	generateCalls int
	paymentCalls  int
}

func (c *countingBackend) GenerateInvoice(ctx context.Context, jobID string, input invoicing.GenerateInput) (*invoicing.Invoice, error) {
	c.generateCalls++
	return c.Backend.GenerateInvoice(ctx, jobID, input)
}

func (c *countingBackend) RecordPayment(ctx context.Context, invoiceID string, input invoicing.PaymentInput) (*invoicing.Payment, error) {
	c.paymentCalls++
	return c.Backend.RecordPayment(ctx, invoiceID, input)
}

// flakyJobs fails MarkPaid for one job.
type flakyJobs struct {
	*jobs.Service
	failID string
}

func (f *flakyJobs) MarkPaid(ctx context.Context, jobID string, note string) (*jobs.Job, error) {
	if jobID == f.failID {
		return nil, errors.New("gateway unavailable")
	}
	return f.Service.MarkPaid(ctx, jobID, note)
}

type recordingQueue struct {
	reasons []string
}

func (q *recordingQueue) EnqueueSettle(ctx context.Context, reason string) error {
	q.reasons = append(q.reasons, reason)
	return nil
}

type fixture struct {
	backend  *countingBackend
	jobs     *jobs.Service
	invoices *invoicing.Service
	customer *customers.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &countingBackend{Backend: memory.New()}
	jobService := jobs.NewService(backend, jobs.NewMachine(), logger)
	customer, err := backend.CreateCustomer(context.Background(), customers.CreateInput{Name: "Ada", Phone: "555", Email: "ada@example.com", Address: "1 Main St"})
	require.NoError(t, err)
	return &fixture{
		backend:  backend,
		jobs:     jobService,
		invoices: invoicing.NewService(backend, jobService, logger),
		customer: customer,
	}
}

func (f *fixture) doneJob(t *testing.T) *jobs.Job {
	t.Helper()
	ctx := context.Background()
	job, err := f.jobs.Create(ctx, jobs.CreateInput{Title: "Fix sink", Description: "Leaking", CustomerID: f.customer.ID})
	require.NoError(t, err)
	job, err = f.jobs.Transition(ctx, job.ID, jobs.StatusDone, "")
	require.NoError(t, err)
	return job
}

func laborInput() invoicing.GenerateInput {
	return invoicing.GenerateInput{
		Items:   []invoicing.ItemInput{{Description: "Labor", Quantity: 2, UnitPrice: money.FromMajor(50)}},
		TaxRate: money.Percent(10),
	}
}

func TestGenerateInvoiceMovesJobToInvoiced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)

	inv, err := f.invoices.Generate(ctx, job.ID, laborInput())
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(100), inv.Subtotal)
	assert.Equal(t, money.FromMajor(10), inv.Tax)
	assert.Equal(t, money.FromMajor(110), inv.Total)

	got, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusInvoiced, got.Status)
	require.NotNil(t, got.Invoice)
}

func TestGenerateInvoiceTwiceIsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)

	_, err := f.invoices.Generate(ctx, job.ID, laborInput())
	require.NoError(t, err)

	_, err = f.invoices.Generate(ctx, job.ID, laborInput())
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 1, f.backend.generateCalls)

	list, err := f.invoices.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGenerateInvoiceValidatesBeforeAnyCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)

	_, err := f.invoices.Generate(ctx, job.ID, invoicing.GenerateInput{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.invoices.Generate(ctx, "missing", laborInput())
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Zero(t, f.backend.generateCalls)
}

func TestPaymentSettlesInvoiceAndJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)
	inv, err := f.invoices.Generate(ctx, job.ID, laborInput())
	require.NoError(t, err)

	_, bal, err := f.invoices.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(60)})
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(50), bal.Remaining)
	assert.False(t, bal.Settled)

	got, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusInvoiced, got.Status)

	_, bal, err = f.invoices.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(50)})
	require.NoError(t, err)
	assert.True(t, bal.Settled)
	assert.True(t, bal.Remaining.IsZero())

	got, err = f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPaid, got.Status)
	assert.Equal(t, jobs.StatusPaid, got.LastEntry().Status)

	_, _, err = f.invoices.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(1)})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 2, f.backend.paymentCalls)
}

func TestRecordPaymentRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.invoices.RecordPayment(ctx, "inv-1", invoicing.PaymentInput{Amount: money.Zero})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = f.invoices.RecordPayment(ctx, "missing", invoicing.PaymentInput{Amount: money.FromMajor(5)})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Zero(t, f.backend.paymentCalls)
}

func TestSettleCatchesUpPaidInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)
	inv, err := f.invoices.Generate(ctx, job.ID, laborInput())
	require.NoError(t, err)

	// Paid directly against the backend, bypassing the console.
	_, err = f.backend.Backend.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(110)})
	require.NoError(t, err)

	moved, err := f.invoices.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPaid, got.Status)

	moved, err = f.invoices.Settle(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestZeroTotalInvoiceMovesJobToPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)

	inv, err := f.invoices.Generate(ctx, job.ID, invoicing.GenerateInput{
		Items:   []invoicing.ItemInput{{Description: "Warranty visit", Quantity: 1, UnitPrice: money.Zero}},
		TaxRate: money.Percent(0),
	})
	require.NoError(t, err)
	assert.True(t, inv.Total.IsZero())

	got, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPaid, got.Status)

	_, _, err = f.invoices.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(1)})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestFailedInlineSettlementIsQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)
	inv, err := f.invoices.Generate(ctx, job.ID, laborInput())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := invoicing.NewService(f.backend, &flakyJobs{Service: f.jobs, failID: job.ID}, logger)
	queue := &recordingQueue{}
	svc.SetSettleQueue(queue)

	payment, bal, err := svc.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(110)})
	require.NoError(t, err)
	assert.True(t, bal.Settled)
	assert.Equal(t, []string{"payment " + payment.ID}, queue.reasons)

	got, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusInvoiced, got.Status)

	moved, err := f.invoices.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
}

func TestSettleContinuesPastFailingJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.doneJob(t)
	second := f.doneJob(t)
	for _, job := range []*jobs.Job{first, second} {
		inv, err := f.invoices.Generate(ctx, job.ID, laborInput())
		require.NoError(t, err)
		_, err = f.backend.Backend.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMajor(110)})
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := invoicing.NewService(f.backend, &flakyJobs{Service: f.jobs, failID: first.ID}, logger)

	moved, err := svc.Settle(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), first.ID)
	assert.Equal(t, 1, moved)

	got, err := f.jobs.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPaid, got.Status)
	got, err = f.jobs.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusInvoiced, got.Status)
}

func TestRecordPaymentRejectsAmountPastRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	job := f.doneJob(t)
	inv, err := f.invoices.Generate(ctx, job.ID, invoicing.GenerateInput{
		Items:   []invoicing.ItemInput{{Description: "Plant", Quantity: 1, UnitPrice: money.MaxAmount}},
		TaxRate: money.Percent(0),
	})
	require.NoError(t, err)

	_, _, err = f.invoices.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.MaxAmount.Sub(money.FromMinor(1))})
	require.NoError(t, err)

	_, _, err = f.invoices.RecordPayment(ctx, inv.ID, invoicing.PaymentInput{Amount: money.FromMinor(2)})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, 1, f.backend.paymentCalls)
}
