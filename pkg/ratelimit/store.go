package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore persists host cooldowns. A shared store lets several gateway
// replicas back off together.
type CooldownStore interface {
	Get(ctx context.Context, host string) (*HostState, error)
	Set(ctx context.Context, state *HostState) error
}

// MemoryStore keeps cooldowns in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]HostState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]HostState)}
}

// Get returns the stored state, or nil if the host has none.
func (m *MemoryStore) Get(_ context.Context, host string) (*HostState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[host]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Set stores state, keeping the later of the existing and new cooldowns.
func (m *MemoryStore) Set(_ context.Context, state *HostState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.states[state.Host]; ok && cur.CooldownUntil.After(state.CooldownUntil) {
		return nil
	}
	m.states[state.Host] = *state
	return nil
}

// RedisStore shares cooldowns through Redis. Keys expire with the cooldown.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func redisKey(host string) string {
	return RedisKeyPrefix + host
}

// Get retrieves the host state from Redis. Missing keys yield nil.
func (r *RedisStore) Get(ctx context.Context, host string) (*HostState, error) {
	data, err := r.redis.Get(ctx, redisKey(host)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown for %s: %w", host, err)
	}
	var s HostState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cooldown for %s: %w", host, err)
	}
	return &s, nil
}

// Set writes the host state with a TTL matching the remaining cooldown.
func (r *RedisStore) Set(ctx context.Context, state *HostState) error {
	ttl := time.Until(state.CooldownUntil)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cooldown: %w", err)
	}
	if err := r.redis.Set(ctx, redisKey(state.Host), data, ttl).Err(); err != nil {
		return fmt.Errorf("store cooldown for %s: %w", state.Host, err)
	}
	return nil
}
