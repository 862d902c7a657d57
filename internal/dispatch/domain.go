// Package dispatch routes a row level action of a data table to the workflow
// that handles it, keeping at most one pending action per table.
package dispatch

import (
	"fmt"
	"time"

	"github.com/fieldops/fieldops/internal/shared"
)

// Action names a row level action.
type Action string

const (
	ActionCreateJob         Action = "createJob"
	ActionViewDetails       Action = "viewDetails"
	ActionCreateAppointment Action = "createAppointment"
	ActionUpdateStatus      Action = "updateStatus"
	ActionGenerateInvoice   Action = "generateInvoice"
	ActionCollectPayment    Action = "collectPayment"
)

var tableActions = map[shared.Table][]Action{
	shared.TableCustomers: {ActionCreateJob},
	shared.TableJobs:      {ActionViewDetails, ActionCreateAppointment, ActionUpdateStatus, ActionGenerateInvoice},
	shared.TableInvoices:  {ActionCollectPayment},
}

// Actions lists the actions a table offers.
func Actions(table shared.Table) []Action {
	return append([]Action(nil), tableActions[table]...)
}

// Allowed reports whether action belongs to table's closed set.
func Allowed(table shared.Table, action Action) bool {
	for _, a := range tableActions[table] {
		if a == action {
			return true
		}
	}
	return false
}

// Pending is the armed action of one table.
type Pending struct {
	Table    shared.Table `json:"table"`
	EntityID string       `json:"entityId"`
	Action   Action       `json:"action"`
	ArmedAt  time.Time    `json:"armedAt"`
}

// Opened is returned when an action is armed: the pending slot and what the
// workflow shows for the entity.
type Opened struct {
	Pending Pending `json:"pending"`
	View    any     `json:"view"`
}

// Submitted is returned when a pending action completes.
type Submitted struct {
	Pending Pending `json:"pending"`
	Result  any     `json:"result"`
}

var (
	// ErrNoSubmit is returned by view-only workflows.
	ErrNoSubmit error = &shared.MessageError{Class: shared.ErrValidation, Messages: []string{"This action has nothing to submit"}}
)

func errNothingPending(table shared.Table) error {
	return shared.Conflict(fmt.Sprintf("No action is pending on %s", table))
}
