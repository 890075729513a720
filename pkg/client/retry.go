package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/realty-gateway/pkg/logging"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realty_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realty_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realty_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of tries (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Jitter spreads each wait by ±Jitter (0.2 = ±20%). Zero disables it.
	Jitter float64

	Logger *zerolog.Logger
}

// DefaultRetryConfig returns the default retry configuration:
// 3 attempts, waits of min(1s × 2^(k-1), 10s).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Operation is one attempt of an upstream call.
type Operation func(ctx context.Context) (*Response, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier re-runs operations that fail with a retriable class.
type Retrier struct {
	config RetryConfig
	sleep  SleepFunc
	logger zerolog.Logger
}

// NewRetrier creates a Retrier. Zero fields fall back to DefaultRetryConfig.
func NewRetrier(cfg RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}

	logger := logging.NewLogger("retry")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "retry").Logger()
	}

	return &Retrier{
		config: cfg,
		sleep:  sleepContext,
		logger: logger,
	}
}

// WithSleep replaces the wait function (for testing).
func (r *Retrier) WithSleep(fn SleepFunc) *Retrier {
	r.sleep = fn
	return r
}

// Backoff returns the wait after the given failed attempt (1-indexed),
// before jitter: min(InitialBackoff × Multiplier^(attempt-1), MaxBackoff).
func (r *Retrier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if d > float64(r.config.MaxBackoff) {
		return r.config.MaxBackoff
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, fails terminally, or the budget is spent.
//
// Terminal responses (2xx, 3xx, and 4xx other than 408/429, including 401) are
// returned immediately with a nil error. When retries are exhausted on a
// retriable status, the last response is returned together with an
// *UpstreamError wrapping ErrRetryExhausted. When they are exhausted on a
// transport error, that error is returned wrapped with ErrRetryExhausted.
func (r *Retrier) Do(ctx context.Context, op Operation) (*Response, error) {
	var (
		lastResp  *Response
		lastErr   error
		lastClass ErrorClass
	)

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		resp, err := op(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
			}
			lastClass = ClassifyError(err)
			if !shouldRetry(lastClass) {
				return nil, err
			}
			lastResp, lastErr = nil, err
		} else {
			lastClass = ClassifyStatus(resp.StatusCode)
			if !shouldRetry(lastClass) {
				if attempt > 1 {
					r.logger.Info().
						Str("url", resp.URL).
						Int("attempt", attempt).
						Int("status", resp.StatusCode).
						Msg("Request settled after retry")
				}
				return resp, nil
			}
			lastResp, lastErr = resp, nil
		}

		// If this was the last attempt, don't wait
		if attempt >= r.config.MaxAttempts {
			break
		}

		wait := r.withJitter(r.Backoff(attempt))
		retriesTotal.WithLabelValues(string(lastClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(wait.Seconds())

		r.logger.Warn().
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := r.sleep(ctx, wait); err != nil {
			r.logger.Warn().
				Str("error_class", string(lastClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return lastResp, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}

	// All retries exhausted
	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	r.logger.Error().
		Str("error_class", string(lastClass)).
		Int("max_attempts", r.config.MaxAttempts).
		Msg("Retry attempts exhausted")

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.config.MaxAttempts, lastErr)
	}

	upErr := StatusError(lastResp)
	upErr.Err = ErrRetryExhausted
	return lastResp, upErr
}

func (r *Retrier) withJitter(d time.Duration) time.Duration {
	if r.config.Jitter <= 0 {
		return d
	}
	factor := 1 - r.config.Jitter + rand.Float64()*2*r.config.Jitter
	return time.Duration(float64(d) * factor)
}

// sleepContext waits with context cancellation support.
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

// IsRetryExhausted reports whether err came from an exhausted retry budget.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}
