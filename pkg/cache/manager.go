package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidEntry indicates the stored entry could not be decoded.
var ErrInvalidEntry = errors.New("invalid cache entry")

// Manager reads and writes JSON values through a Store.
type Manager struct {
	store  Store
	logger zerolog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewManager creates a manager. A nil store uses a MemoryStore.
func NewManager(store Store, logger zerolog.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}
}

// Get decodes the value under key into dst.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key Key, dst any) error {
	ns := string(key.Namespace)
	data, err := m.store.Get(ctx, key.String())
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			CacheErrors.WithLabelValues("get").Inc()
			m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, treating as miss")
		}
		CacheMisses.WithLabelValues(ns).Inc()
		return ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		_ = m.store.Forget(ctx, key.String())
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.IsExpired(m.now()) {
		_ = m.store.Forget(ctx, key.String())
		CacheMisses.WithLabelValues(ns).Inc()
		return ErrCacheMiss
	}
	if err := json.Unmarshal(entry.Value, dst); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(ns).Inc()
	m.logger.Debug().Str("key", key.String()).Dur("ttl", entry.TTL(m.now())).Msg("Cache hit")
	return nil
}

// Put stores value under key for ttl.
func (m *Manager) Put(ctx context.Context, key Key, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}
	now := m.now()
	data, err := json.Marshal(Entry{Value: raw, ExpiresAt: now.Add(ttl), CachedAt: now})
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.store.Put(ctx, key.String(), data, ttl); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}
	return nil
}

// Forget removes key.
func (m *Manager) Forget(ctx context.Context, key Key) error {
	if err := m.store.Forget(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues("forget").Inc()
		return err
	}
	return nil
}

// Remember returns the cached value for key, or calls produce, caches its
// result for ttl and returns it. Producer errors are returned and not cached.
// Concurrent callers for the same key share one produce call.
func Remember[T any](ctx context.Context, m *Manager, key Key, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if err := m.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	// The fill runs detached so one caller giving up does not fail the others.
	fillCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key.String(), func() (any, error) {
		var again T
		if err := m.Get(fillCtx, key, &again); err == nil {
			return again, nil
		}
		val, err := produce(fillCtx)
		if err != nil {
			return val, err
		}
		if err := m.Put(fillCtx, key, val, ttl); err != nil {
			m.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
		}
		return val, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Shared {
		m.logger.Debug().Str("key", key.String()).Msg("Shared in-flight cache fill")
	}
	if res.Err != nil {
		var zero T
		return zero, res.Err
	}
	v := res.Val
	out, _ := v.(T)
	return out, nil
}
