package console

import (
	"context"
	"time"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/dispatch"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/money"
	"github.com/fieldops/fieldops/internal/shared"
	"github.com/fieldops/fieldops/internal/views"
)

// CustomerRow is one line of the customers table.
type CustomerRow struct {
	customers.Customer
	Actions []dispatch.Action `json:"actions"`
}

// JobRow is one line of the jobs table.
type JobRow struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Status         jobs.Status       `json:"status"`
	CustomerID     string            `json:"customerId"`
	CustomerName   string            `json:"customerName"`
	ScheduledStart *time.Time        `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time        `json:"scheduledEnd,omitempty"`
	TechnicianName string            `json:"technicianName,omitempty"`
	InvoiceID      string            `json:"invoiceId,omitempty"`
	InvoiceTotal   string            `json:"invoiceTotal,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	Actions        []dispatch.Action `json:"actions"`
}

// InvoiceRow is one line of the invoices table.
type InvoiceRow struct {
	ID        string            `json:"id"`
	JobID     string            `json:"jobId"`
	Subtotal  money.Amount      `json:"subtotal"`
	Tax       money.Amount      `json:"tax"`
	Total     money.Amount      `json:"total"`
	Paid      money.Amount      `json:"paid"`
	Remaining money.Amount      `json:"remaining"`
	Settled   bool              `json:"settled"`
	Display   InvoiceDisplay    `json:"display"`
	CreatedAt time.Time         `json:"createdAt"`
	Actions   []dispatch.Action `json:"actions"`
}

// InvoiceDisplay holds locale formatted amounts.
type InvoiceDisplay struct {
	Subtotal  string `json:"subtotal"`
	Tax       string `json:"tax"`
	Total     string `json:"total"`
	Paid      string `json:"paid"`
	Remaining string `json:"remaining"`
}

// RegisterViews installs the table loaders on cache. The worker registers the
// same loaders so a background refresh produces identical rows.
func RegisterViews(cache *views.Cache, svc Services, formatter *money.Formatter) {
	cache.Register(shared.TableCustomers, func(ctx context.Context) (any, error) {
		list, err := svc.Customers.List(ctx)
		if err != nil {
			return nil, err
		}
		return customerRows(list), nil
	})
	cache.Register(shared.TableJobs, func(ctx context.Context) (any, error) {
		list, err := svc.Jobs.List(ctx)
		if err != nil {
			return nil, err
		}
		return jobRows(list, svc.Jobs.Machine(), formatter), nil
	})
	cache.Register(shared.TableInvoices, func(ctx context.Context) (any, error) {
		list, err := svc.Invoices.List(ctx)
		if err != nil {
			return nil, err
		}
		return invoiceRows(list, formatter), nil
	})
}

func customerRows(list []customers.Customer) []CustomerRow {
	rows := make([]CustomerRow, 0, len(list))
	for _, c := range list {
		rows = append(rows, CustomerRow{Customer: c, Actions: dispatch.Actions(shared.TableCustomers)})
	}
	return rows
}

func jobRows(list []jobs.Job, machine *jobs.Machine, formatter *money.Formatter) []JobRow {
	rows := make([]JobRow, 0, len(list))
	for i := range list {
		job := &list[i]
		row := JobRow{
			ID:         job.ID,
			Title:      job.Title,
			Status:     job.Status,
			CustomerID: job.CustomerID,
			CreatedAt:  job.CreatedAt,
			Actions:    jobActions(job, machine),
		}
		if job.Customer != nil {
			row.CustomerName = job.Customer.Name
		}
		if appt := job.Appointment; appt != nil {
			start, end := appt.Start, appt.End
			row.ScheduledStart = &start
			row.ScheduledEnd = &end
			if appt.Technician != nil {
				row.TechnicianName = appt.Technician.Name
			}
		}
		if job.Invoice != nil {
			row.InvoiceID = job.Invoice.ID
			row.InvoiceTotal = formatter.Format(job.Invoice.Total)
		}
		rows = append(rows, row)
	}
	return rows
}

// jobActions lists the actions the job's current state accepts. viewDetails
// is always offered.
func jobActions(job *jobs.Job, machine *jobs.Machine) []dispatch.Action {
	actions := []dispatch.Action{dispatch.ActionViewDetails}
	if job.Appointment == nil && machine.Check(job.Status, jobs.StatusScheduled, jobs.TriggerAppointment) == nil {
		actions = append(actions, dispatch.ActionCreateAppointment)
	}
	if len(machine.Targets(job.Status, jobs.TriggerManual)) > 0 {
		actions = append(actions, dispatch.ActionUpdateStatus)
	}
	if machine.CanInvoice(job) == nil {
		actions = append(actions, dispatch.ActionGenerateInvoice)
	}
	return actions
}

func invoiceRows(list []invoicing.InvoiceWithBalance, formatter *money.Formatter) []InvoiceRow {
	rows := make([]InvoiceRow, 0, len(list))
	for _, inv := range list {
		row := InvoiceRow{
			ID:        inv.ID,
			JobID:     inv.JobID,
			Subtotal:  inv.Subtotal,
			Tax:       inv.Tax,
			Total:     inv.Total,
			Paid:      inv.Balance.Paid,
			Remaining: inv.Balance.Remaining,
			Settled:   inv.Balance.Settled,
			CreatedAt: inv.CreatedAt,
			Display: InvoiceDisplay{
				Subtotal:  formatter.Format(inv.Subtotal),
				Tax:       formatter.Format(inv.Tax),
				Total:     formatter.Format(inv.Total),
				Paid:      formatter.Format(inv.Balance.Paid),
				Remaining: formatter.Format(inv.Balance.Remaining),
			},
			Actions: []dispatch.Action{},
		}
		if !inv.Balance.Settled {
			row.Actions = append(row.Actions, dispatch.ActionCollectPayment)
		}
		rows = append(rows, row)
	}
	return rows
}
