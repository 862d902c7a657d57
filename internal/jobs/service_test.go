package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/shared"
)

type memoryJobGateway struct {
	machine      *Machine
	jobs         map[string]*Job
	nextID       int
	statusCalls  int
	appointCalls int
}

func newMemoryJobGateway() *memoryJobGateway {
	return &memoryJobGateway{machine: sequentialMachine(), jobs: make(map[string]*Job)}
}

func (g *memoryJobGateway) ListJobs(ctx context.Context) ([]Job, error) {
	out := make([]Job, 0, len(g.jobs))
	for _, job := range g.jobs {
		out = append(out, *job)
	}
	return out, nil
}

func (g *memoryJobGateway) GetJob(ctx context.Context, id string) (*Job, error) {
	job, ok := g.jobs[id]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	cp := *job
	cp.History = append([]HistoryEntry(nil), job.History...)
	return &cp, nil
}

func (g *memoryJobGateway) CreateJob(ctx context.Context, input CreateInput) (*Job, error) {
	g.nextID++
	job := &Job{ID: fmt.Sprintf("job-%d", g.nextID), Title: input.Title, Description: input.Description, CustomerID: input.CustomerID}
	g.machine.Start(job, "", time.Now())
	g.jobs[job.ID] = job
	return g.GetJob(ctx, job.ID)
}

func (g *memoryJobGateway) CreateAppointment(ctx context.Context, jobID string, input AppointmentInput) (*Appointment, error) {
	g.appointCalls++
	job, ok := g.jobs[jobID]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	appt := &Appointment{ID: "appt-" + jobID, JobID: jobID, TechnicianID: input.TechnicianID, Start: input.Start, End: input.End}
	job.Appointment = appt
	g.machine.Record(job, StatusScheduled, DefaultNote(TriggerAppointment, StatusScheduled), time.Now())
	return appt, nil
}

func (g *memoryJobGateway) UpdateJobStatus(ctx context.Context, jobID string, input StatusInput) (*Job, error) {
	g.statusCalls++
	job, ok := g.jobs[jobID]
	if !ok {
		return nil, shared.NotFound("Job not found")
	}
	g.machine.Record(job, input.Status, input.Note, time.Now())
	return g.GetJob(ctx, jobID)
}

type stubCustomers map[string]customers.Customer

func (s stubCustomers) Get(ctx context.Context, id string) (*customers.Customer, error) {
	c, ok := s[id]
	if !ok {
		return nil, shared.NotFound(fmt.Sprintf("customer %s not found", id))
	}
	return &c, nil
}

type recordingInvalidator struct {
	tables []shared.Table
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, tables ...shared.Table) {
	r.tables = append(r.tables, tables...)
}

func newTestService(t *testing.T) (*Service, *memoryJobGateway, *recordingInvalidator) {
	t.Helper()
	gw := newMemoryJobGateway()
	svc := NewService(gw, NewMachine(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.SetCustomers(stubCustomers{"cust-1": {ID: "cust-1", Name: "Ada"}})
	inv := &recordingInvalidator{}
	svc.SetInvalidator(inv)
	return svc, gw, inv
}

func TestServiceCreateStartsInNew(t *testing.T) {
	svc, _, inv := newTestService(t)
	job, err := svc.Create(context.Background(), CreateInput{Title: " Fix sink ", Description: "Leaking", CustomerID: "cust-1"})
	require.NoError(t, err)
	assert.Equal(t, "Fix sink", job.Title)
	assert.Equal(t, StatusNew, job.Status)
	require.Len(t, job.History, 1)
	assert.Equal(t, StatusNew, job.History[0].Status)
	assert.Equal(t, []shared.Table{shared.TableJobs}, inv.tables)
}

func TestServiceCreateRequiresExistingCustomer(t *testing.T) {
	svc, gw, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateInput{Title: "Fix", Description: "Leak", CustomerID: "ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, gw.jobs)

	_, err = svc.Create(context.Background(), CreateInput{CustomerID: "cust-1"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.ElementsMatch(t, []string{"title is required", "description is required"}, shared.Messages(err))
}

func TestServiceScheduleAppointment(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newTestService(t)
	job, err := svc.Create(ctx, CreateInput{Title: "Fix", Description: "Leak", CustomerID: "cust-1"})
	require.NoError(t, err)

	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	appt, updated, err := svc.ScheduleAppointment(ctx, job.ID, AppointmentInput{TechnicianID: "tech-1", Start: start, End: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, job.ID, appt.JobID)
	assert.Equal(t, StatusScheduled, updated.Status)
	assert.Len(t, updated.History, 2)

	_, _, err = svc.ScheduleAppointment(ctx, job.ID, AppointmentInput{TechnicianID: "tech-1", Start: start, End: start.Add(time.Hour)})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 1, gw.appointCalls)
}

func TestServiceScheduleAppointmentRejectsInvertedWindowBeforeCallingGateway(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newTestService(t)
	job, err := svc.Create(ctx, CreateInput{Title: "Fix", Description: "Leak", CustomerID: "cust-1"})
	require.NoError(t, err)

	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	_, _, err = svc.ScheduleAppointment(ctx, job.ID, AppointmentInput{TechnicianID: "tech-1", Start: start, End: start.Add(-time.Hour)})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, gw.appointCalls)

	stored, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, stored.Status)
	assert.Len(t, stored.History, 1)
}

func TestServiceUpdateStatus(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newTestService(t)
	job, err := svc.Create(ctx, CreateInput{Title: "Fix", Description: "Leak", CustomerID: "cust-1"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, job.ID, StatusInput{Status: "done"})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, updated.Status)
	require.Len(t, updated.History, 2)
	assert.Equal(t, "Status updated to DONE", updated.History[1].Note)

	_, err = svc.UpdateStatus(ctx, job.ID, StatusInput{Status: StatusNew})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, gw.statusCalls)

	_, err = svc.UpdateStatus(ctx, job.ID, StatusInput{Status: StatusPaid})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 1, gw.statusCalls)
}

func TestServiceTransitionUnknownJob(t *testing.T) {
	svc, gw, _ := newTestService(t)
	_, err := svc.Transition(context.Background(), "missing", StatusDone, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Zero(t, gw.statusCalls)

	_, err = svc.Transition(context.Background(), "  ", StatusDone, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceMarkPaidOnlyFromInvoiced(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newTestService(t)
	job, err := svc.Create(ctx, CreateInput{Title: "Fix", Description: "Leak", CustomerID: "cust-1"})
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, job.ID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	gw.machine.Record(gw.jobs[job.ID], StatusInvoiced, "Invoice generated", time.Now())
	paid, err := svc.MarkPaid(ctx, job.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, "Invoice paid in full", paid.LastEntry().Note)
}
