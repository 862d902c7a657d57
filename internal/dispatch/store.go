package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/fieldops/internal/shared"
)

// Store keeps one pending slot per console session and table.
type Store interface {
	// Get returns nil when the slot is empty.
	Get(ctx context.Context, session string, table shared.Table) (*Pending, error)
	// Put replaces whatever the slot held.
	Put(ctx context.Context, session string, p Pending) error
	Delete(ctx context.Context, session string, table shared.Table) error
}

type slotKey struct {
	session string
	table   shared.Table
}

// MemoryStore is a Store for a single process.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[slotKey]Pending
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore builds a MemoryStore. A zero ttl keeps slots until cleared.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{slots: make(map[slotKey]Pending), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, session string, table shared.Table) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey{session, table}
	p, ok := s.slots[key]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(p.ArmedAt) > s.ttl {
		delete(s.slots, key)
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) Put(ctx context.Context, session string, p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slotKey{session, p.Table}] = p
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, session string, table shared.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slotKey{session, table})
	return nil
}

// RedisStore keeps slots in Redis so several console instances share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(session string, table shared.Table) string {
	return fmt.Sprintf("dispatch:%s:%s", session, table)
}

func (s *RedisStore) Get(ctx context.Context, session string, table shared.Table) (*Pending, error) {
	raw, err := s.client.Get(ctx, redisKey(session, table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: load slot: %w", err)
	}
	var p Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("dispatch: decode slot: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) Put(ctx context.Context, session string, p Pending) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("dispatch: encode slot: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(session, p.Table), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("dispatch: store slot: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, session string, table shared.Table) error {
	if err := s.client.Del(ctx, redisKey(session, table)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("dispatch: clear slot: %w", err)
	}
	return nil
}
