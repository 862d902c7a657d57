package shared

import "context"

// Invalidator is notified after a mutation so that only the affected table
// views are refreshed.
type Invalidator interface {
	Invalidate(ctx context.Context, tables ...Table)
}

// NopInvalidator ignores notifications.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, ...Table) {}
