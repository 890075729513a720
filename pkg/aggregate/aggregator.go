package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/logging"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

var aggregationFailedEndpoints = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "realty_aggregation_failed_endpoints_total",
	Help: "Total detail sub-endpoint failures by object type and endpoint",
}, []string{"object_type", "endpoint"})

// Config holds the aggregator dependencies.
type Config struct {
	Router   *router.Router
	Executor *Executor

	// Strategies defaults to DefaultStrategies(time.Now).
	Strategies map[domain.ObjectType]Strategy

	// Lang is sent with every sub-request.
	Lang string

	Logger *zerolog.Logger
}

// Aggregator assembles detail views.
type Aggregator struct {
	router     *router.Router
	executor   *Executor
	strategies map[domain.ObjectType]Strategy
	lang       string
	logger     zerolog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Router == nil || cfg.Executor == nil {
		return nil, fmt.Errorf("aggregator requires a router and an executor")
	}
	if cfg.Strategies == nil {
		cfg.Strategies = DefaultStrategies(nil)
	}

	logger := logging.NewLogger("aggregator")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "aggregator").Logger()
	}

	return &Aggregator{
		router:     cfg.Router,
		executor:   cfg.Executor,
		strategies: cfg.Strategies,
		lang:       cfg.Lang,
		logger:     logger,
	}, nil
}

// Requests builds the named requests a detail view of (t, id) needs.
func (a *Aggregator) Requests(t domain.ObjectType, id, city, token string) (map[string]client.Request, error) {
	strategy, ok := a.strategies[t]
	if !ok {
		return nil, fmt.Errorf("detail for %s: %w", t, domain.ErrUnsupported)
	}

	requests := make(map[string]client.Request)
	for _, ep := range strategy.EndpointsFor(id) {
		tpl, err := a.router.GetEndpoint(t, ep.Operation)
		if err != nil {
			return nil, err
		}
		u, err := router.BuildURL(tpl, ep.PathParams, nil, city, a.lang, token)
		if err != nil {
			return nil, err
		}
		requests[ep.Name] = client.Request{Method: tpl.Method, URL: u}
	}
	return requests, nil
}

// Aggregate fetches every endpoint of the detail view of (t, id) and merges
// the successes.
//
// When some endpoints fail the merged successes are returned together with a
// *PartialAggregationError. A 404 on the primary endpoint yields a
// *domain.NotFoundError; when every endpoint fails the primary failure is
// returned.
func (a *Aggregator) Aggregate(ctx context.Context, t domain.ObjectType, id, city, token string) (Merged, error) {
	requests, err := a.Requests(t, id, city, token)
	if err != nil {
		return Merged{}, err
	}
	strategy := a.strategies[t]
	logger := logging.ForObject(a.logger, string(t), id)

	results := a.executor.ExecuteAllSettled(ctx, requests)

	decoded := make(map[string]any, len(results))
	causes := make(map[string]error)
	for name, res := range results {
		if !res.OK() {
			causes[name] = res.Err
			continue
		}
		var v any
		if err := json.Unmarshal(res.Response.Body, &v); err != nil {
			causes[name] = fmt.Errorf("decode %s: %w", name, err)
			continue
		}
		decoded[name] = v
	}

	if cause, failed := causes[PrimaryEndpoint]; failed {
		if client.StatusCodeOf(cause) == http.StatusNotFound {
			return Merged{}, fmt.Errorf("%w: %w", &domain.NotFoundError{ObjectType: t, Key: id}, cause)
		}
		if len(decoded) == 0 {
			return Merged{}, fmt.Errorf("detail %s %s: %w", t, id, cause)
		}
	}

	merged := strategy.Merge(id, decoded)
	if len(causes) == 0 {
		logger.Debug().Int("endpoints", len(decoded)).Msg("Detail aggregated")
		return merged, nil
	}

	failed := make([]string, 0, len(causes))
	for name := range causes {
		failed = append(failed, name)
		aggregationFailedEndpoints.WithLabelValues(string(t), name).Inc()
	}
	sort.Strings(failed)

	logger.Warn().
		Strs("failed_endpoints", failed).
		Int("succeeded", len(decoded)).
		Msg("Detail aggregated partially")

	return merged, &PartialAggregationError{
		Partial:         merged,
		FailedEndpoints: failed,
		Causes:          causes,
	}
}
