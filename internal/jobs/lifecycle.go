package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/fieldops/internal/shared"
)

// Trigger names the business event that requests a status change.
type Trigger string

const (
	TriggerCreate      Trigger = "create"
	TriggerAppointment Trigger = "appointment"
	TriggerManual      Trigger = "manual"
	TriggerInvoice     Trigger = "invoice"
	TriggerPayment     Trigger = "payment"
)

// ErrInvalidTransition indicates the transition table has no such edge for the trigger.
var ErrInvalidTransition = errors.New("invalid job status transition")

// TransitionError describes a rejected status change. It matches both
// ErrInvalidTransition and shared.ErrConflict.
type TransitionError struct {
	From    Status
	To      Status
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s (%s)", ErrInvalidTransition, e.From, e.To, e.Trigger)
}

func (e *TransitionError) Unwrap() []error {
	return []error{ErrInvalidTransition, shared.ErrConflict}
}

// UserMessages implements the message contract used by shared.UserSafeMessage.
func (e *TransitionError) UserMessages() []string {
	return []string{fmt.Sprintf("Job cannot move from %s to %s", e.From, e.To)}
}

type edge struct {
	from Status
	to   Status
}

// transitions is the single source of truth for legal status changes.
var transitions = map[edge][]Trigger{
	{StatusNew, StatusScheduled}:      {TriggerAppointment},
	{StatusNew, StatusDone}:           {TriggerManual},
	{StatusNew, StatusInvoiced}:       {TriggerInvoice},
	{StatusScheduled, StatusDone}:     {TriggerManual},
	{StatusScheduled, StatusInvoiced}: {TriggerInvoice},
	{StatusDone, StatusInvoiced}:      {TriggerInvoice},
	{StatusInvoiced, StatusPaid}:      {TriggerPayment},
}

var defaultNotes = map[Trigger]string{
	TriggerCreate:      "Job created",
	TriggerAppointment: "Appointment scheduled",
	TriggerInvoice:     "Invoice generated",
	TriggerPayment:     "Invoice paid in full",
}

// DefaultNote returns the history note used when the caller gives none.
func DefaultNote(trigger Trigger, to Status) string {
	if note, ok := defaultNotes[trigger]; ok {
		return note
	}
	return fmt.Sprintf("Status updated to %s", to)
}

// Machine enforces the job lifecycle and produces history entries.
type Machine struct {
	newID func() string
}

// NewMachine builds a Machine using random UUIDs for history entries.
func NewMachine() *Machine {
	return &Machine{newID: uuid.NewString}
}

// Check reports whether trigger may move a job from one status to another.
func (m *Machine) Check(from, to Status, trigger Trigger) error {
	if !to.IsValid() {
		return shared.Validation(fmt.Sprintf("unknown status %q", to))
	}
	for _, allowed := range transitions[edge{from, to}] {
		if allowed == trigger {
			return nil
		}
	}
	return &TransitionError{From: from, To: to, Trigger: trigger}
}

// Targets lists the statuses reachable from a status with the given trigger,
// in lifecycle order.
func (m *Machine) Targets(from Status, trigger Trigger) []Status {
	var out []Status
	for _, to := range Statuses {
		if m.Check(from, to, trigger) == nil {
			out = append(out, to)
		}
	}
	return out
}

// CanInvoice reports whether an invoice may be generated for job. A job gets
// at most one invoice.
func (m *Machine) CanInvoice(job *Job) error {
	if job.Invoice != nil || job.Status.Rank() >= StatusInvoiced.Rank() {
		return shared.Conflict(fmt.Sprintf("job %s has already been invoiced", job.ID))
	}
	return m.Check(job.Status, StatusInvoiced, TriggerInvoice)
}

// Start puts a freshly created job in NEW and writes its first history entry.
func (m *Machine) Start(job *Job, note string, now time.Time) HistoryEntry {
	if note == "" {
		note = DefaultNote(TriggerCreate, StatusNew)
	}
	return m.Record(job, StatusNew, note, now)
}

// Apply checks the transition and, when legal, moves the job and appends one
// history entry.
func (m *Machine) Apply(job *Job, to Status, trigger Trigger, note string, now time.Time) (HistoryEntry, error) {
	if err := m.Check(job.Status, to, trigger); err != nil {
		return HistoryEntry{}, err
	}
	if note == "" {
		note = DefaultNote(trigger, to)
	}
	return m.Record(job, to, note, now), nil
}

// Record moves the job without consulting the transition table. It mirrors
// the remote backend, which accepts any status; callers in the console use Apply.
func (m *Machine) Record(job *Job, to Status, note string, now time.Time) HistoryEntry {
	entry := HistoryEntry{
		ID:        m.newID(),
		JobID:     job.ID,
		Status:    to,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.Status = to
	job.UpdatedAt = now
	job.History = append(job.History, entry)
	return entry
}
