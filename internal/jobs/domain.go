// Package jobs holds the job entity, its appointment, its audit history and
// the lifecycle state machine that governs status changes.
package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/fieldops/internal/customers"
	"github.com/fieldops/fieldops/internal/money"
	"github.com/fieldops/fieldops/internal/shared"
)

// Status enumerates the job lifecycle states.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusScheduled Status = "SCHEDULED"
	StatusDone      Status = "DONE"
	StatusInvoiced  Status = "INVOICED"
	StatusPaid      Status = "PAID"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNew, StatusScheduled, StatusDone, StatusInvoiced, StatusPaid}

// IsValid checks if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in the linear lifecycle, or -1.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStatus accepts a status in any letter case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.Validation(fmt.Sprintf("status must be one of %s", strings.Join(statusNames(), ", ")))
	}
	return s, nil
}

func statusNames() []string {
	out := make([]string, len(Statuses))
	for i, s := range Statuses {
		out[i] = string(s)
	}
	return out
}

// HistoryEntry is an append-only audit record of one status change.
type HistoryEntry struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Technician is referenced by appointments only.
type Technician struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Appointment is the scheduled window and technician assignment for a job.
type Appointment struct {
	ID           string      `json:"id"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	JobID        string      `json:"jobId"`
	TechnicianID string      `json:"technicianId"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Technician   *Technician `json:"technician,omitempty"`
}

// InvoiceSummary is the invoice as expanded on a job.
type InvoiceSummary struct {
	ID        string       `json:"id"`
	JobID     string       `json:"jobId"`
	Subtotal  money.Amount `json:"subtotal"`
	Tax       money.Amount `json:"tax"`
	Total     money.Amount `json:"total"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Job is a unit of field work tied to exactly one customer.
type Job struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      Status              `json:"status"`
	CustomerID  string              `json:"customerId"`
	History     []HistoryEntry      `json:"history"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Customer    *customers.Customer `json:"customer,omitempty"`
	Appointment *Appointment        `json:"appointment,omitempty"`
	Invoice     *InvoiceSummary     `json:"invoice,omitempty"`
}

// LastEntry returns the most recent history entry, if any.
func (j *Job) LastEntry() *HistoryEntry {
	if j == nil || len(j.History) == 0 {
		return nil
	}
	return &j.History[len(j.History)-1]
}

// CreateInput is the "create job" form, opened from a customer row.
type CreateInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	CustomerID  string `json:"customerId" validate:"required"`
}

// AppointmentInput is the "create appointment" form.
type AppointmentInput struct {
	TechnicianID string    `json:"technicianId" validate:"required"`
	Start        time.Time `json:"start" validate:"required"`
	End          time.Time `json:"end" validate:"required"`
}

// Validate checks required fields and that the window is not empty.
func (in AppointmentInput) Validate() error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if !in.End.After(in.Start) {
		return shared.Validation("end must be later than start")
	}
	return nil
}

// StatusInput is the body of a status update request.
type StatusInput struct {
	Status Status `json:"status" validate:"required"`
	Note   string `json:"note,omitempty" validate:"max=500"`
}
