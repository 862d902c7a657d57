package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/dispatch"
	"github.com/fieldops/fieldops/internal/invoicing"
	"github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/shared"
)

// DefaultTechnicianID is preselected in the appointment form.
const DefaultTechnicianID = "92bc23b9-92e5-4eda-b3eb-3a2e6d2f240a"

// Services groups the domain services the console drives.
type Services struct {
	Customers *customers.Service
	Jobs      *jobs.Service
	Invoices  *invoicing.Service
}

// NewRegistry maps every table action onto its workflow.
func NewRegistry(svc Services, defaultTechnician string) dispatch.Registry {
	if strings.TrimSpace(defaultTechnician) == "" {
		defaultTechnician = DefaultTechnicianID
	}
	reg := dispatch.Registry{}
	reg.Register(shared.TableCustomers, dispatch.ActionCreateJob, createJobWorkflow{svc: svc})
	reg.Register(shared.TableJobs, dispatch.ActionViewDetails, viewDetailsWorkflow{svc: svc})
	reg.Register(shared.TableJobs, dispatch.ActionCreateAppointment, appointmentWorkflow{svc: svc, technician: defaultTechnician})
	reg.Register(shared.TableJobs, dispatch.ActionUpdateStatus, statusWorkflow{svc: svc})
	reg.Register(shared.TableJobs, dispatch.ActionGenerateInvoice, invoiceWorkflow{svc: svc})
	reg.Register(shared.TableInvoices, dispatch.ActionCollectPayment, paymentWorkflow{svc: svc})
	return reg
}

// decodePayload reads a workflow submission. Malformed JSON is a validation
// failure; typed field errors keep their own message.
func decodePayload(raw json.RawMessage, target any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return shared.Validation("request body is required")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		var msgErr *shared.MessageError
		if errors.As(err, &msgErr) {
			return msgErr
		}
		return shared.Validation("request body must be valid JSON")
	}
	return nil
}

type createJobWorkflow struct{ svc Services }

type createJobView struct {
	Customer *customers.Customer `json:"customer"`
	Form     jobs.CreateInput    `json:"form"`
}

func (w createJobWorkflow) Open(ctx context.Context, customerID string) (any, error) {
	customer, err := w.svc.Customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return createJobView{Customer: customer, Form: jobs.CreateInput{CustomerID: customer.ID}}, nil
}

func (w createJobWorkflow) Submit(ctx context.Context, customerID string, payload json.RawMessage) (any, error) {
	var input jobs.CreateInput
	if err := decodePayload(payload, &input); err != nil {
		return nil, err
	}
	input.CustomerID = customerID
	return w.svc.Jobs.Create(ctx, input)
}

type viewDetailsWorkflow struct{ svc Services }

func (w viewDetailsWorkflow) Open(ctx context.Context, jobID string) (any, error) {
	return w.svc.Jobs.Get(ctx, jobID)
}

func (viewDetailsWorkflow) Submit(context.Context, string, json.RawMessage) (any, error) {
	return nil, dispatch.ErrNoSubmit
}

type appointmentWorkflow struct {
	svc        Services
	technician string
}

type appointmentView struct {
	Job  *jobs.Job             `json:"job"`
	Form jobs.AppointmentInput `json:"form"`
}

type appointmentResult struct {
	Appointment *jobs.Appointment `json:"appointment"`
	Job         *jobs.Job         `json:"job"`
}

func (w appointmentWorkflow) Open(ctx context.Context, jobID string) (any, error) {
	job, err := w.svc.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Appointment != nil {
		return nil, shared.Conflict("Job already has an appointment")
	}
	if err := w.svc.Jobs.Machine().Check(job.Status, jobs.StatusScheduled, jobs.TriggerAppointment); err != nil {
		return nil, err
	}
	return appointmentView{Job: job, Form: jobs.AppointmentInput{TechnicianID: w.technician}}, nil
}

func (w appointmentWorkflow) Submit(ctx context.Context, jobID string, payload json.RawMessage) (any, error) {
	var input jobs.AppointmentInput
	if err := decodePayload(payload, &input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.TechnicianID) == "" {
		input.TechnicianID = w.technician
	}
	appt, job, err := w.svc.Jobs.ScheduleAppointment(ctx, jobID, input)
	if err != nil {
		return nil, err
	}
	return appointmentResult{Appointment: appt, Job: job}, nil
}

type statusWorkflow struct{ svc Services }

type statusView struct {
	Job     *jobs.Job     `json:"job"`
	Targets []jobs.Status `json:"targets"`
}

func (w statusWorkflow) Open(ctx context.Context, jobID string) (any, error) {
	job, err := w.svc.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	targets := w.svc.Jobs.Machine().Targets(job.Status, jobs.TriggerManual)
	if len(targets) == 0 {
		return nil, shared.Conflict("Job status cannot be changed from " + string(job.Status))
	}
	return statusView{Job: job, Targets: targets}, nil
}

func (w statusWorkflow) Submit(ctx context.Context, jobID string, payload json.RawMessage) (any, error) {
	var input jobs.StatusInput
	if err := decodePayload(payload, &input); err != nil {
		return nil, err
	}
	return w.svc.Jobs.UpdateStatus(ctx, jobID, input)
}

type invoiceWorkflow struct{ svc Services }

type invoiceView struct {
	Job *jobs.Job `json:"job"`
}

func (w invoiceWorkflow) Open(ctx context.Context, jobID string) (any, error) {
	job, err := w.svc.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := w.svc.Jobs.Machine().CanInvoice(job); err != nil {
		return nil, err
	}
	return invoiceView{Job: job}, nil
}

func (w invoiceWorkflow) Submit(ctx context.Context, jobID string, payload json.RawMessage) (any, error) {
	var input invoicing.GenerateInput
	if err := decodePayload(payload, &input); err != nil {
		return nil, err
	}
	return w.svc.Invoices.Generate(ctx, jobID, input)
}

type paymentWorkflow struct{ svc Services }

type paymentResult struct {
	Payment *invoicing.Payment `json:"payment"`
	Balance invoicing.Balance  `json:"balance"`
}

func (w paymentWorkflow) Open(ctx context.Context, invoiceID string) (any, error) {
	inv, err := w.svc.Invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Balance.Settled {
		return nil, shared.Conflict("Invoice is already paid in full")
	}
	return inv, nil
}

func (w paymentWorkflow) Submit(ctx context.Context, invoiceID string, payload json.RawMessage) (any, error) {
	var input invoicing.PaymentInput
	if err := decodePayload(payload, &input); err != nil {
		return nil, err
	}
	payment, balance, err := w.svc.Invoices.RecordPayment(ctx, invoiceID, input)
	if err != nil {
		return nil, err
	}
	return paymentResult{Payment: payment, Balance: balance}, nil
}
