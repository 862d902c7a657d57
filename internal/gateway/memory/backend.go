// Package memory is an in-process stand-in for the remote REST backend. It
// keeps the same contract, including its leniency on status updates.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/gateway"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/shared"
)

// Backend stores everything in maps guarded by one mutex.
type Backend struct {
	mu      sync.RWMutex
	machine *jobs.Machine
	now     func() time.Time
	newID   func() string

	customers     map[string]customers.Customer
	customerOrder []string
	technicians   map[string]jobs.Technician
	jobs          map[string]*jobs.Job
	jobOrder      []string
	appointments  map[string]jobs.Appointment
	invoices      map[string]*invoicing.Invoice
	invoiceOrder  []string
	invoiceByJob  map[string]string
}

// Option customises a Backend.
type Option func(*Backend)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(b *Backend) { b.newID = newID }
}

// New builds an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		machine:      jobs.NewMachine(),
		now:          time.Now,
		newID:        uuid.NewString,
		customers:    make(map[string]customers.Customer),
		technicians:  make(map[string]jobs.Technician),
		jobs:         make(map[string]*jobs.Job),
		appointments: make(map[string]jobs.Appointment),
		invoices:     make(map[string]*invoicing.Invoice),
		invoiceByJob: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ gateway.Gateway = (*Backend)(nil)

// AddTechnician seeds a technician. An empty id gets a generated one.
func (b *Backend) AddTechnician(id, name string) jobs.Technician {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		id = b.newID()
	}
	now := b.now().UTC()
	tech := jobs.Technician{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	b.technicians[id] = tech
	return tech
}

// Technicians lists the seeded technicians.
func (b *Backend) Technicians() []jobs.Technician {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]jobs.Technician, 0, len(b.technicians))
	for _, t := range b.technicians {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateCustomer implements customers.Gateway.
func (b *Backend) CreateCustomer(ctx context.Context, input customers.CreateInput) (*customers.Customer, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().UTC()
	c := customers.Customer{
		ID:        b.newID(),
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     input.Email,
		Address:   input.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.customers[c.ID] = c
	b.customerOrder = append(b.customerOrder, c.ID)
	return &c, nil
}

// ListCustomers implements customers.Gateway.
func (b *Backend) ListCustomers(ctx context.Context) ([]customers.Customer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]customers.Customer, 0, len(b.customerOrder))
	for _, id := range b.customerOrder {
		out = append(out, b.customers[id])
	}
	return out, nil
}

// ListJobs implements jobs.Gateway.
func (b *Backend) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]jobs.Job, 0, len(b.jobOrder))
	for _, id := range b.jobOrder {
		out = append(out, b.expandJob(b.jobs[id]))
	}
	return out, nil
}

// GetJob implements jobs.Gateway.
func (b *Backend) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	job, ok := b.jobs[id]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	out := b.expandJob(job)
	return &out, nil
}

// CreateJob implements jobs.Gateway.
func (b *Backend) CreateJob(ctx context.Context, input jobs.CreateInput) (*jobs.Job, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.customers[input.CustomerID]; !ok {
		return nil, shared.NotFound("Customer not found")
	}
	now := b.now().UTC()
	job := &jobs.Job{
		ID:          b.newID(),
		Title:       input.Title,
		Description: input.Description,
		CustomerID:  input.CustomerID,
		CreatedAt:   now,
	}
	b.machine.Start(job, "", now)
	b.jobs[job.ID] = job
	b.jobOrder = append(b.jobOrder, job.ID)
	out := b.expandJob(job)
	return &out, nil
}

// CreateAppointment implements jobs.Gateway. Booking moves the job to SCHEDULED.
func (b *Backend) CreateAppointment(ctx context.Context, jobID string, input jobs.AppointmentInput) (*jobs.Appointment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	tech, ok := b.technicians[input.TechnicianID]
	if !ok {
		return nil, shared.NotFound("Technician not found")
	}
	if _, exists := b.appointments[jobID]; exists {
		return nil, shared.Conflict("Job already has an appointment")
	}
	now := b.now().UTC()
	appt := jobs.Appointment{
		ID:           b.newID(),
		Start:        input.Start.UTC(),
		End:          input.End.UTC(),
		JobID:        jobID,
		TechnicianID: tech.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.appointments[jobID] = appt
	b.record(job, jobs.StatusScheduled, jobs.DefaultNote(jobs.TriggerAppointment, jobs.StatusScheduled), now)

	appt.Technician = &tech
	return &appt, nil
}

// UpdateJobStatus implements jobs.Gateway. Like the remote backend it accepts
// any known status; lifecycle rules are enforced by the console.
func (b *Backend) UpdateJobStatus(ctx context.Context, jobID string, input jobs.StatusInput) (*jobs.Job, error) {
	status, err := jobs.ParseStatus(string(input.Status))
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	note := strings.TrimSpace(input.Note)
	if note == "" {
		note = jobs.DefaultNote(jobs.TriggerManual, status)
	}
	b.record(job, status, note, b.now().UTC())
	out := b.expandJob(job)
	return &out, nil
}

// GenerateInvoice implements invoicing.Gateway. Invoicing moves the job to INVOICED.
func (b *Backend) GenerateInvoice(ctx context.Context, jobID string, input invoicing.GenerateInput) (*invoicing.Invoice, error) {
	totals, err := invoicing.Compute(input.Items, input.TaxRate)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	if _, exists := b.invoiceByJob[jobID]; exists {
		return nil, shared.Conflict("Invoice already exists for this job")
	}
	now := b.now().UTC()
	inv := &invoicing.Invoice{
		ID:        b.newID(),
		JobID:     jobID,
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, line := range totals.Lines {
		inv.Items = append(inv.Items, invoicing.Item{
			ID:          b.newID(),
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total,
			InvoiceID:   inv.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	b.invoices[inv.ID] = inv
	b.invoiceOrder = append(b.invoiceOrder, inv.ID)
	b.invoiceByJob[jobID] = inv.ID
	b.record(job, jobs.StatusInvoiced, jobs.DefaultNote(jobs.TriggerInvoice, jobs.StatusInvoiced), now)

	out := copyInvoice(inv)
	return &out, nil
}

// ListInvoices implements invoicing.Gateway.
func (b *Backend) ListInvoices(ctx context.Context) ([]invoicing.Invoice, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]invoicing.Invoice, 0, len(b.invoiceOrder))
	for _, id := range b.invoiceOrder {
		out = append(out, copyInvoice(b.invoices[id]))
	}
	return out, nil
}

// RecordPayment implements invoicing.Gateway. It never changes the job status.
func (b *Backend) RecordPayment(ctx context.Context, invoiceID string, input invoicing.PaymentInput) (*invoicing.Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, shared.Validation("amount must be a positive number")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	inv, ok := b.invoices[invoiceID]
	if !ok {
		return nil, shared.NotFound("Invoice not found")
	}
	now := b.now().UTC()
	payment := invoicing.Payment{
		ID:        b.newID(),
		Amount:    input.Amount,
		InvoiceID: inv.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inv.Payments = append(inv.Payments, payment)
	inv.UpdatedAt = now
	return &payment, nil
}

func (b *Backend) record(job *jobs.Job, status jobs.Status, note string, now time.Time) {
	b.machine.Record(job, status, note, now)
}

// expandJob copies job and attaches its customer, appointment and invoice.
// Callers hold the lock.
func (b *Backend) expandJob(job *jobs.Job) jobs.Job {
	out := *job
	out.History = append([]jobs.HistoryEntry(nil), job.History...)
	if c, ok := b.customers[job.CustomerID]; ok {
		out.Customer = &c
	}
	if appt, ok := b.appointments[job.ID]; ok {
		if tech, ok := b.technicians[appt.TechnicianID]; ok {
			appt.Technician = &tech
		}
		out.Appointment = &appt
	}
	if invID, ok := b.invoiceByJob[job.ID]; ok {
		inv := b.invoices[invID]
		out.Invoice = &jobs.InvoiceSummary{
			ID:        inv.ID,
			JobID:     inv.JobID,
			Subtotal:  inv.Subtotal,
			Tax:       inv.Tax,
			Total:     inv.Total,
			CreatedAt: inv.CreatedAt,
			UpdatedAt: inv.UpdatedAt,
		}
	}
	return out
}

func copyInvoice(inv *invoicing.Invoice) invoicing.Invoice {
	out := *inv
	out.Items = append([]invoicing.Item(nil), inv.Items...)
	out.Payments = append([]invoicing.Payment(nil), inv.Payments...)
	return out
}

// String is used in logs.
func (b *Backend) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("memory backend: %d customers, %d jobs, %d invoices", len(b.customers), len(b.jobs), len(b.invoices))
}
