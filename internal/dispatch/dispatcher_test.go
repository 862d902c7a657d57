package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/shared"
)

type stubWorkflow struct {
	openErr   error
	submitErr error
	opened    []string
	submitted []string
}

func (w *stubWorkflow) Open(ctx context.Context, entityID string) (any, error) {
	w.opened = append(w.opened, entityID)
	if w.openErr != nil {
		return nil, w.openErr
	}
	return map[string]string{"id": entityID}, nil
}

func (w *stubWorkflow) Submit(ctx context.Context, entityID string, payload json.RawMessage) (any, error) {
	w.submitted = append(w.submitted, entityID)
	if w.submitErr != nil {
		return nil, w.submitErr
	}
	return entityID, nil
}

type dispatcherFixture struct {
	dispatcher  *Dispatcher
	appointment *stubWorkflow
	status      *stubWorkflow
	payment     *stubWorkflow
}

func newDispatcherFixture(t *testing.T, store Store) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{appointment: &stubWorkflow{}, status: &stubWorkflow{}, payment: &stubWorkflow{}}
	reg := Registry{}
	reg.Register(shared.TableJobs, ActionCreateAppointment, f.appointment)
	reg.Register(shared.TableJobs, ActionUpdateStatus, f.status)
	reg.Register(shared.TableInvoices, ActionCollectPayment, f.payment)
	f.dispatcher = NewDispatcher(store, reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Minute)
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore(0)) })
	t.Run("redis", func(t *testing.T) { fn(t, newRedisStore(t)) })
}

func TestArmReplacesPendingActionOnSameTable(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		f := newDispatcherFixture(t, store)

		_, err := f.dispatcher.Arm(ctx, "s1", shared.TableJobs, "J1", ActionUpdateStatus)
		require.NoError(t, err)
		opened, err := f.dispatcher.Arm(ctx, "s1", shared.TableJobs, "J2", ActionCreateAppointment)
		require.NoError(t, err)
		assert.Equal(t, "J2", opened.Pending.EntityID)

		p, err := f.dispatcher.Current(ctx, "s1", shared.TableJobs)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "J2", p.EntityID)
		assert.Equal(t, ActionCreateAppointment, p.Action)

		res, err := f.dispatcher.Submit(ctx, "s1", shared.TableJobs, json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.Equal(t, "J2", res.Result)
		assert.Equal(t, []string{"J2"}, f.appointment.submitted)
		assert.Empty(t, f.status.submitted)
	})
}

func TestSlotsAreIndependentPerTableAndSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		f := newDispatcherFixture(t, store)

		_, err := f.dispatcher.Arm(ctx, "s1", shared.TableJobs, "J1", ActionUpdateStatus)
		require.NoError(t, err)
		_, err = f.dispatcher.Arm(ctx, "s1", shared.TableInvoices, "I1", ActionCollectPayment)
		require.NoError(t, err)

		jobsSlot, err := f.dispatcher.Current(ctx, "s1", shared.TableJobs)
		require.NoError(t, err)
		require.NotNil(t, jobsSlot)
		assert.Equal(t, "J1", jobsSlot.EntityID)

		other, err := f.dispatcher.Current(ctx, "s2", shared.TableJobs)
		require.NoError(t, err)
		assert.Nil(t, other)
	})
}

func TestSubmitFailureKeepsActionArmed(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		f := newDispatcherFixture(t, store)
		f.payment.submitErr = shared.Validation("amount must be greater than 0")

		_, err := f.dispatcher.Arm(ctx, "s1", shared.TableInvoices, "I1", ActionCollectPayment)
		require.NoError(t, err)

		_, err = f.dispatcher.Submit(ctx, "s1", shared.TableInvoices, json.RawMessage(`{"amount":0}`))
		require.ErrorIs(t, err, shared.ErrValidation)

		p, err := f.dispatcher.Current(ctx, "s1", shared.TableInvoices)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "I1", p.EntityID)

		f.payment.submitErr = nil
		_, err = f.dispatcher.Submit(ctx, "s1", shared.TableInvoices, json.RawMessage(`{"amount":10}`))
		require.NoError(t, err)

		p, err = f.dispatcher.Current(ctx, "s1", shared.TableInvoices)
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestClearAndSubmitWithoutPending(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		f := newDispatcherFixture(t, store)

		_, err := f.dispatcher.Arm(ctx, "s1", shared.TableJobs, "J1", ActionUpdateStatus)
		require.NoError(t, err)
		require.NoError(t, f.dispatcher.Clear(ctx, "s1", shared.TableJobs))

		p, err := f.dispatcher.Current(ctx, "s1", shared.TableJobs)
		require.NoError(t, err)
		assert.Nil(t, p)

		_, err = f.dispatcher.Submit(ctx, "s1", shared.TableJobs, nil)
		require.ErrorIs(t, err, shared.ErrConflict)
		assert.Empty(t, f.status.submitted)
	})
}

func TestFailedOpenClearsSlot(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, NewMemoryStore(0))
	f.status.openErr = shared.NotFound("Job not found")

	_, err := f.dispatcher.Arm(ctx, "s1", shared.TableJobs, "J404", ActionUpdateStatus)
	require.ErrorIs(t, err, shared.ErrNotFound)

	p, err := f.dispatcher.Current(ctx, "s1", shared.TableJobs)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestArmValidation(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, NewMemoryStore(0))

	cases := []struct {
		name    string
		session string
		table   shared.Table
		entity  string
		action  Action
	}{
		{"action of another table", "s1", shared.TableCustomers, "C1", ActionCollectPayment},
		{"unknown action", "s1", shared.TableJobs, "J1", Action("deleteJob")},
		{"unknown table", "s1", shared.Table("technicians"), "T1", ActionCreateJob},
		{"empty entity", "s1", shared.TableJobs, " ", ActionUpdateStatus},
		{"no session", "", shared.TableJobs, "J1", ActionUpdateStatus},
		{"allowed but unregistered", "s1", shared.TableJobs, "J1", ActionGenerateInvoice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.dispatcher.Arm(ctx, tc.session, tc.table, tc.entity, tc.action)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestMemoryStoreExpiresSlots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "s1", Pending{Table: shared.TableJobs, EntityID: "J1", Action: ActionUpdateStatus, ArmedAt: now}))
	p, err := store.Get(ctx, "s1", shared.TableJobs)
	require.NoError(t, err)
	require.NotNil(t, p)

	now = now.Add(2 * time.Minute)
	p, err = store.Get(ctx, "s1", shared.TableJobs)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestActionsAreClosedPerTable(t *testing.T) {
	assert.Equal(t, []Action{ActionCreateJob}, Actions(shared.TableCustomers))
	assert.Len(t, Actions(shared.TableJobs), 4)
	assert.True(t, Allowed(shared.TableInvoices, ActionCollectPayment))
	assert.False(t, Allowed(shared.TableInvoices, ActionViewDetails))
	assert.True(t, errors.Is(ErrNoSubmit, shared.ErrValidation))
}
