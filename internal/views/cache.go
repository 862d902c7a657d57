// Package views caches the rows of each console table and refreshes only
// the tables a mutation touched.
package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/fieldops/fieldops/internal/shared"
)

// Loader fetches the current rows of a table.
type Loader func(ctx context.Context) (any, error)

// Enqueuer schedules a background refresh of a table.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, table shared.Table) error
}

// Cache keeps table rows in Redis under a per-table version. Without a
// Redis client every read goes to the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.RWMutex
	loaders  map[shared.Table]Loader
	enqueuer Enqueuer
}

// New builds a Cache. client may be nil.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl, logger: logger, loaders: make(map[shared.Table]Loader)}
}

// Register sets the loader of a table.
func (c *Cache) Register(table shared.Table, loader Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders[table] = loader
}

// SetEnqueuer makes Invalidate schedule a background refresh.
func (c *Cache) SetEnqueuer(e Enqueuer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueuer = e
}

func (c *Cache) loader(table shared.Table) (Loader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loader, ok := c.loaders[table]
	if !ok {
		return nil, fmt.Errorf("views: no loader for %s", table)
	}
	return loader, nil
}

func versionKey(table shared.Table) string {
	return fmt.Sprintf("views:%s:version", table)
}

func rowsKey(table shared.Table, version int64) string {
	return fmt.Sprintf("views:%s:rows:%d", table, version)
}

// Version returns the table version, initialising it when missing.
func (c *Cache) Version(ctx context.Context, table shared.Table) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(table)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(table), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(table)).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Rows decodes the table rows into dest, loading them once per version.
// Concurrent callers share a single load.
func (c *Cache) Rows(ctx context.Context, table shared.Table, dest any) error {
	loader, err := c.loader(table)
	if err != nil {
		return err
	}
	ver, err := c.Version(ctx, table)
	if err != nil {
		c.logger.Warn("views: read version", slog.String("table", string(table)), slog.Any("error", err))
		return c.direct(ctx, loader, dest)
	}
	key := rowsKey(table, ver)

	raw, err, _ := c.group.Do(key, func() (any, error) {
		if c.client != nil {
			payload, err := c.client.Get(ctx, key).Bytes()
			if err == nil {
				return payload, nil
			}
			if !errors.Is(err, redis.Nil) {
				c.logger.Warn("views: read rows", slog.String("key", key), slog.Any("error", err))
			}
		}
		return c.load(ctx, loader, key)
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

func (c *Cache) direct(ctx context.Context, loader Loader, dest any) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) load(ctx context.Context, loader Loader, key string) ([]byte, error) {
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("views: store rows", slog.String("key", key), slog.Any("error", err))
		}
	}
	return raw, nil
}

// Warm loads the current version of a table into the cache.
func (c *Cache) Warm(ctx context.Context, table shared.Table) error {
	loader, err := c.loader(table)
	if err != nil {
		return err
	}
	ver, err := c.Version(ctx, table)
	if err != nil {
		return err
	}
	_, err = c.load(ctx, loader, rowsKey(table, ver))
	return err
}

// Bump moves a table to a new version so the next read reloads it.
func (c *Cache) Bump(ctx context.Context, table shared.Table) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(table)).Err()
}

// Invalidate implements shared.Invalidator.
func (c *Cache) Invalidate(ctx context.Context, tables ...shared.Table) {
	c.mu.RLock()
	enqueuer := c.enqueuer
	c.mu.RUnlock()

	for _, table := range tables {
		if err := c.Bump(ctx, table); err != nil {
			c.logger.Warn("views: bump", slog.String("table", string(table)), slog.Any("error", err))
			continue
		}
		if enqueuer == nil {
			continue
		}
		if err := enqueuer.EnqueueRefresh(ctx, table); err != nil {
			c.logger.Warn("views: enqueue refresh", slog.String("table", string(table)), slog.Any("error", err))
		}
	}
}
