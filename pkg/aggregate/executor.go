// Package aggregate runs batches of upstream requests and merges multi-endpoint
// detail views through per-type strategies.
package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/ratelimit"
)

// Doer executes a single upstream request.
type Doer interface {
	Do(ctx context.Context, r client.Request) (*client.Response, error)
}

// Result is the settled outcome of one named request.
type Result struct {
	Response *client.Response
	Err      error
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Executor runs requests through the host limiter and the retry policy.
type Executor struct {
	transport Doer
	retrier   *client.Retrier
	limiter   *ratelimit.Limiter
	logger    zerolog.Logger
}

// NewExecutor creates an executor. limiter may be nil to disable host limiting.
func NewExecutor(transport Doer, retrier *client.Retrier, limiter *ratelimit.Limiter, logger zerolog.Logger) *Executor {
	if retrier == nil {
		retrier = client.NewRetrier(client.DefaultRetryConfig())
	}
	return &Executor{
		transport: transport,
		retrier:   retrier,
		limiter:   limiter,
		logger:    logger.With().Str("component", "executor").Logger(),
	}
}

// Execute runs one request. A non-2xx final response is returned together
// with an *client.UpstreamError describing it.
func (e *Executor) Execute(ctx context.Context, req client.Request) (*client.Response, error) {
	host := ratelimit.HostOf(req.URL)

	resp, err := e.retrier.Do(ctx, func(ctx context.Context) (*client.Response, error) {
		if e.limiter != nil {
			release, err := e.limiter.Acquire(ctx, host)
			if err != nil {
				return nil, err
			}
			defer release()
		}

		resp, err := e.transport.Do(ctx, req)
		if err == nil && e.limiter != nil {
			e.limiter.UpdateFromResponse(ctx, host, resp.StatusCode, resp.Header)
		}
		return resp, err
	})
	if err != nil {
		return resp, err
	}
	if !resp.IsSuccess() {
		return resp, client.StatusError(resp)
	}
	return resp, nil
}

// ExecuteAll runs every request concurrently and fails on the first error.
// The failure cancels the context of requests still in flight.
func (e *Executor) ExecuteAll(ctx context.Context, requests map[string]client.Request) (map[string]*client.Response, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	out := make(map[string]*client.Response, len(requests))
	for name, req := range requests {
		name, req := name, req
		g.Go(func() error {
			resp, err := e.Execute(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			out[name] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn().Err(err).Int("batch_size", len(requests)).Msg("Batch failed")
		return nil, err
	}
	return out, nil
}

// ExecuteAllSettled runs every request concurrently and waits for all of
// them. Every name in requests appears in the result.
func (e *Executor) ExecuteAllSettled(ctx context.Context, requests map[string]client.Request) map[string]Result {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	out := make(map[string]Result, len(requests))
	for name, req := range requests {
		name, req := name, req
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Execute(ctx, req)

			mu.Lock()
			out[name] = Result{Response: resp, Err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
