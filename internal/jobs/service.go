package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/shared"
)

// Gateway is the slice of the remote API used for jobs.
type Gateway interface {
	ListJobs(ctx context.Context) ([]Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	CreateJob(ctx context.Context, input CreateInput) (*Job, error)
	CreateAppointment(ctx context.Context, jobID string, input AppointmentInput) (*Appointment, error)
	UpdateJobStatus(ctx context.Context, jobID string, input StatusInput) (*Job, error)
}

// CustomerLookup resolves the customer a job is created for.
type CustomerLookup interface {
	Get(ctx context.Context, id string) (*customers.Customer, error)
}

// Service runs the job workflows and is the only place that requests a
// status change from the remote API.
type Service struct {
	gateway   Gateway
	machine   *Machine
	customers CustomerLookup
	views     shared.Invalidator
	logger    *slog.Logger
}

// NewService builds a Service.
func NewService(gateway Gateway, machine *Machine, logger *slog.Logger) *Service {
	if machine == nil {
		machine = NewMachine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, machine: machine, views: shared.NopInvalidator{}, logger: logger}
}

// SetCustomers enables the customer existence check on Create.
func (s *Service) SetCustomers(lookup CustomerLookup) {
	s.customers = lookup
}

// SetInvalidator sets the observer notified after mutations.
func (s *Service) SetInvalidator(inv shared.Invalidator) {
	if inv != nil {
		s.views = inv
	}
}

// Machine exposes the lifecycle rules used by the service.
func (s *Service) Machine() *Machine {
	return s.machine
}

// Create creates a job for an existing customer. The job starts in NEW with
// a single history entry.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Job, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}
	if s.customers != nil {
		if _, err := s.customers.Get(ctx, input.CustomerID); err != nil {
			return nil, err
		}
	}

	job, err := s.gateway.CreateJob(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if job.Status != StatusNew || len(job.History) != 1 {
		s.logger.Warn("created job has unexpected lifecycle state",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
			slog.Int("history", len(job.History)))
	}
	s.logger.Info("job created", slog.String("job_id", job.ID), slog.String("customer_id", job.CustomerID))
	s.views.Invalidate(ctx, shared.TableJobs)
	return job, nil
}

// Get fetches a job with its expansions.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.Validation("job id is required")
	}
	job, err := s.gateway.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns every job.
func (s *Service) List(ctx context.Context) ([]Job, error) {
	jobs, err := s.gateway.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Transition is the manual status change entry point.
func (s *Service) Transition(ctx context.Context, jobID string, target Status, note string) (*Job, error) {
	return s.transition(ctx, jobID, target, TriggerManual, note)
}

// UpdateStatus handles the "update status" form.
func (s *Service) UpdateStatus(ctx context.Context, jobID string, input StatusInput) (*Job, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}
	target, err := ParseStatus(string(input.Status))
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, jobID, target, strings.TrimSpace(input.Note))
}

// MarkPaid moves an invoiced job to PAID once its invoice is settled.
func (s *Service) MarkPaid(ctx context.Context, jobID string, note string) (*Job, error) {
	return s.transition(ctx, jobID, StatusPaid, TriggerPayment, note)
}

func (s *Service) transition(ctx context.Context, jobID string, target Status, trigger Trigger, note string) (*Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.machine.Check(job.Status, target, trigger); err != nil {
		return nil, err
	}
	if note == "" {
		note = DefaultNote(trigger, target)
	}

	before := len(job.History)
	if _, err := s.gateway.UpdateJobStatus(ctx, job.ID, StatusInput{Status: target, Note: note}); err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	updated, err := s.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	s.verifyHistory(updated, before, target)

	s.logger.Info("job status changed",
		slog.String("job_id", job.ID),
		slog.String("from", string(job.Status)),
		slog.String("to", string(target)),
		slog.String("trigger", string(trigger)))
	s.views.Invalidate(ctx, shared.TableJobs)
	return updated, nil
}

func (s *Service) verifyHistory(job *Job, before int, target Status) {
	last := job.LastEntry()
	if len(job.History) == before+1 && last != nil && last.Status == target {
		return
	}
	s.logger.Warn("job history not extended by exactly one entry",
		slog.String("job_id", job.ID),
		slog.Int("before", before),
		slog.Int("after", len(job.History)),
		slog.String("target", string(target)))
}

// ScheduleAppointment books the job's only appointment, which moves it to SCHEDULED.
func (s *Service) ScheduleAppointment(ctx context.Context, jobID string, input AppointmentInput) (*Appointment, *Job, error) {
	input.TechnicianID = strings.TrimSpace(input.TechnicianID)
	if err := input.Validate(); err != nil {
		return nil, nil, err
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Appointment != nil {
		return nil, nil, shared.Conflict(fmt.Sprintf("job %s already has an appointment", job.ID))
	}
	if err := s.machine.Check(job.Status, StatusScheduled, TriggerAppointment); err != nil {
		return nil, nil, err
	}

	before := len(job.History)
	appt, err := s.gateway.CreateAppointment(ctx, job.ID, input)
	if err != nil {
		return nil, nil, fmt.Errorf("create appointment: %w", err)
	}
	updated, err := s.Get(ctx, job.ID)
	if err != nil {
		return nil, nil, err
	}
	s.verifyHistory(updated, before, StatusScheduled)

	s.logger.Info("appointment scheduled",
		slog.String("job_id", job.ID),
		slog.String("appointment_id", appt.ID),
		slog.String("technician_id", appt.TechnicianID))
	s.views.Invalidate(ctx, shared.TableJobs)
	return appt, updated, nil
}
