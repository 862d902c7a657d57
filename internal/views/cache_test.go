package views

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/shared"
)

type row struct {
	ID string `json:"id"`
}

type recordingEnqueuer struct {
	mu     sync.Mutex
	tables []shared.Table
}

func (r *recordingEnqueuer) EnqueueRefresh(ctx context.Context, table shared.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, table)
	return nil
}

func newRedisCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func countingLoader(calls *int32, rows ...row) Loader {
	return func(ctx context.Context) (any, error) {
		atomic.AddInt32(calls, 1)
		return rows, nil
	}
}

func TestRowsAreCachedUntilTableIsInvalidated(t *testing.T) {
	ctx := context.Background()
	cache := newRedisCache(t)
	var jobCalls, invoiceCalls int32
	cache.Register(shared.TableJobs, countingLoader(&jobCalls, row{ID: "J1"}))
	cache.Register(shared.TableInvoices, countingLoader(&invoiceCalls, row{ID: "I1"}))

	var out []row
	require.NoError(t, cache.Rows(ctx, shared.TableJobs, &out))
	require.NoError(t, cache.Rows(ctx, shared.TableJobs, &out))
	require.NoError(t, cache.Rows(ctx, shared.TableInvoices, &out))
	assert.Equal(t, int32(1), jobCalls)
	assert.Equal(t, int32(1), invoiceCalls)
	assert.Equal(t, []row{{ID: "I1"}}, out)

	cache.Invalidate(ctx, shared.TableJobs)

	require.NoError(t, cache.Rows(ctx, shared.TableJobs, &out))
	require.NoError(t, cache.Rows(ctx, shared.TableInvoices, &out))
	assert.Equal(t, int32(2), jobCalls)
	assert.Equal(t, int32(1), invoiceCalls, "untouched tables stay cached")
}

func TestRowsWithoutRedisAlwaysLoad(t *testing.T) {
	ctx := context.Background()
	cache := New(nil, 0, nil)
	var calls int32
	cache.Register(shared.TableCustomers, countingLoader(&calls, row{ID: "C1"}))

	var out []row
	require.NoError(t, cache.Rows(ctx, shared.TableCustomers, &out))
	require.NoError(t, cache.Rows(ctx, shared.TableCustomers, &out))
	assert.Equal(t, int32(2), calls)
	assert.Equal(t, []row{{ID: "C1"}}, out)

	cache.Invalidate(ctx, shared.TableCustomers)
}

func TestRowsUnknownTable(t *testing.T) {
	var out []row
	require.Error(t, New(nil, 0, nil).Rows(context.Background(), shared.TableJobs, &out))
}

func TestInvalidateEnqueuesRefresh(t *testing.T) {
	ctx := context.Background()
	cache := newRedisCache(t)
	enq := &recordingEnqueuer{}
	cache.SetEnqueuer(enq)

	before, err := cache.Version(ctx, shared.TableInvoices)
	require.NoError(t, err)

	cache.Invalidate(ctx, shared.TableInvoices, shared.TableJobs)
	assert.Equal(t, []shared.Table{shared.TableInvoices, shared.TableJobs}, enq.tables)

	after, err := cache.Version(ctx, shared.TableInvoices)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestWarmStoresCurrentVersion(t *testing.T) {
	ctx := context.Background()
	cache := newRedisCache(t)
	var calls int32
	cache.Register(shared.TableJobs, countingLoader(&calls, row{ID: "J1"}))

	require.NoError(t, cache.Warm(ctx, shared.TableJobs))
	var out []row
	require.NoError(t, cache.Rows(ctx, shared.TableJobs, &out))
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, []row{{ID: "J1"}}, out)
}
