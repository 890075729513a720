package ratelimit

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Prometheus metrics for host limiting.
var (
	hostInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realty_host_inflight",
		Help: "Outbound requests currently in flight per upstream host",
	}, []string{"host"})

	hostCooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realty_host_cooldowns_total",
		Help: "Total cooldowns started per upstream host",
	}, []string{"host"})
)

// Limiter gates outbound requests per host.
type Limiter struct {
	maxPerHost int64
	store      CooldownStore
	logger     zerolog.Logger

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter. maxPerHost <= 0 uses DefaultMaxPerHost and a
// nil store uses an in-memory one.
func NewLimiter(maxPerHost int, store CooldownStore, logger zerolog.Logger) *Limiter {
	if maxPerHost <= 0 {
		maxPerHost = DefaultMaxPerHost
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{
		maxPerHost: int64(maxPerHost),
		store:      store,
		logger:     logger,
		sems:       make(map[string]*semaphore.Weighted),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// HostOf extracts the host of a raw URL, or returns raw unchanged.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

func (l *Limiter) semaphore(host string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(l.maxPerHost)
		l.sems[host] = sem
	}
	return sem
}

// Acquire waits out any cooldown for host, then takes a slot. The returned
// release must be called exactly once.
func (l *Limiter) Acquire(ctx context.Context, host string) (func(), error) {
	if err := l.waitCooldown(ctx, host); err != nil {
		return nil, err
	}

	sem := l.semaphore(host)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	hostInflight.WithLabelValues(host).Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			hostInflight.WithLabelValues(host).Dec()
			sem.Release(1)
		})
	}, nil
}

func (l *Limiter) waitCooldown(ctx context.Context, host string) error {
	state, err := l.store.Get(ctx, host)
	if err != nil {
		// A broken store must not block traffic.
		l.logger.Warn().Err(err).Str("host", host).Msg("Failed to read host cooldown")
		return nil
	}
	if state == nil {
		return nil
	}
	wait := state.Remaining(l.now())
	if wait == 0 {
		return nil
	}
	l.logger.Debug().Str("host", host).Dur("wait", wait).Msg("Waiting for host cooldown")
	return l.sleep(ctx, wait)
}

// UpdateFromResponse starts a cooldown when the host answered 429 or 503.
func (l *Limiter) UpdateFromResponse(ctx context.Context, host string, status int, header http.Header) {
	if !triggersCooldown(status) {
		return
	}
	now := l.now()
	wait, ok := ParseRetryAfter(header, now)
	if !ok {
		wait = DefaultCooldown
	}
	if wait <= 0 {
		return
	}

	state := &HostState{
		Host:          host,
		CooldownUntil: now.Add(wait),
		LastStatus:    status,
		LastUpdate:    now,
	}
	if err := l.store.Set(ctx, state); err != nil {
		l.logger.Warn().Err(err).Str("host", host).Msg("Failed to store host cooldown")
		return
	}
	hostCooldownsTotal.WithLabelValues(host).Inc()
	l.logger.Warn().
		Str("host", host).
		Int("status", status).
		Dur("cooldown", wait).
		Msg("Upstream host is throttling, cooling down")
}

// State returns the stored state for host, or nil.
func (l *Limiter) State(ctx context.Context, host string) (*HostState, error) {
	return l.store.Get(ctx, host)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
