package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldops/fieldops/internal/shared"
)

// Workflow is the form or view opened by an action, bound to one entity.
type Workflow interface {
	Open(ctx context.Context, entityID string) (any, error)
	Submit(ctx context.Context, entityID string, payload json.RawMessage) (any, error)
}

// Registry maps each table action to its workflow.
type Registry map[shared.Table]map[Action]Workflow

// Register binds wf to table/action.
func (r Registry) Register(table shared.Table, action Action, wf Workflow) {
	if r[table] == nil {
		r[table] = make(map[Action]Workflow)
	}
	r[table][action] = wf
}

func (r Registry) lookup(table shared.Table, action Action) (Workflow, bool) {
	wf, ok := r[table][action]
	return wf, ok
}

// Dispatcher arms, submits and clears pending actions.
type Dispatcher struct {
	store     Store
	workflows Registry
	now       func() time.Time
	logger    *slog.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(store Store, workflows Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, workflows: workflows, now: time.Now, logger: logger}
}

func validSlot(session string, table shared.Table) error {
	if strings.TrimSpace(session) == "" {
		return shared.Validation("console session is required")
	}
	if !table.IsValid() {
		return shared.Validation(fmt.Sprintf("unknown table %q", table))
	}
	return nil
}

// Arm makes action on entityID the table's pending action, replacing any
// previous one, and opens its workflow. If opening fails the slot is cleared.
func (d *Dispatcher) Arm(ctx context.Context, session string, table shared.Table, entityID string, action Action) (*Opened, error) {
	if err := validSlot(session, table); err != nil {
		return nil, err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, shared.Validation("entityId is required")
	}
	if !Allowed(table, action) {
		return nil, shared.Validation(fmt.Sprintf("action %q is not available on %s", action, table))
	}
	wf, ok := d.workflows.lookup(table, action)
	if !ok {
		return nil, shared.Validation(fmt.Sprintf("action %q is not available on %s", action, table))
	}

	p := Pending{Table: table, EntityID: entityID, Action: action, ArmedAt: d.now().UTC()}
	if err := d.store.Put(ctx, session, p); err != nil {
		return nil, err
	}
	view, err := wf.Open(ctx, entityID)
	if err != nil {
		if clearErr := d.store.Delete(ctx, session, table); clearErr != nil {
			d.logger.Warn("clear slot after failed open", slog.Any("error", clearErr))
		}
		return nil, err
	}
	d.logger.Debug("action armed",
		slog.String("table", string(table)),
		slog.String("action", string(action)),
		slog.String("entity_id", entityID))
	return &Opened{Pending: p, View: view}, nil
}

// Current returns the pending action of a table, or nil.
func (d *Dispatcher) Current(ctx context.Context, session string, table shared.Table) (*Pending, error) {
	if err := validSlot(session, table); err != nil {
		return nil, err
	}
	return d.store.Get(ctx, session, table)
}

// Clear cancels the pending action of a table.
func (d *Dispatcher) Clear(ctx context.Context, session string, table shared.Table) error {
	if err := validSlot(session, table); err != nil {
		return err
	}
	return d.store.Delete(ctx, session, table)
}

// Submit runs the pending workflow for its entity. On success the slot is
// cleared; on failure it stays armed so the form can be corrected.
func (d *Dispatcher) Submit(ctx context.Context, session string, table shared.Table, payload json.RawMessage) (*Submitted, error) {
	p, err := d.Current(ctx, session, table)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errNothingPending(table)
	}
	wf, ok := d.workflows.lookup(table, p.Action)
	if !ok {
		return nil, shared.Validation(fmt.Sprintf("action %q is not available on %s", p.Action, table))
	}

	result, err := wf.Submit(ctx, p.EntityID, payload)
	if err != nil {
		return nil, err
	}
	if err := d.store.Delete(ctx, session, table); err != nil {
		d.logger.Warn("clear slot after submit", slog.Any("error", err))
	}
	d.logger.Info("action submitted",
		slog.String("table", string(table)),
		slog.String("action", string(p.Action)),
		slog.String("entity_id", p.EntityID))
	return &Submitted{Pending: *p, Result: result}, nil
}
