// Package gateway exposes the unified catalog, detail and dictionary
// operations over all upstream providers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/realty-gateway/pkg/aggregate"
	"github.com/Sternrassler/realty-gateway/pkg/auth"
	"github.com/Sternrassler/realty-gateway/pkg/cache"
	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/filter"
	"github.com/Sternrassler/realty-gateway/pkg/logging"
	"github.com/Sternrassler/realty-gateway/pkg/mapper"
	"github.com/Sternrassler/realty-gateway/pkg/normalize"
	"github.com/Sternrassler/realty-gateway/pkg/ratelimit"
	"github.com/Sternrassler/realty-gateway/pkg/router"
	"github.com/Sternrassler/realty-gateway/pkg/slug"
)

// TokenSource hands out bearer tokens. *auth.Manager implements it.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Config holds the service dependencies. Transport and Hosts are required.
type Config struct {
	Transport aggregate.Doer
	Hosts     router.HostSet

	// Tokens may be nil when no SSO is configured.
	Tokens TokenSource

	Retrier *client.Retrier
	Limiter *ratelimit.Limiter

	// Cache defaults to an in-memory store.
	Cache *cache.Manager

	Lang        string
	DefaultCity string

	// Now drives the yearly progress albums of complex details.
	Now func() time.Time

	Logger *zerolog.Logger
}

// Service implements the gateway-facing operations.
type Service struct {
	router     *router.Router
	executor   *aggregate.Executor
	aggregator *aggregate.Aggregator
	tokens     TokenSource
	cache      *cache.Manager
	factory    *mapper.Factory
	filters    *filter.Builder
	dicts      *normalize.DictionaryAdapter
	slugs      *slug.Resolver

	lang        string
	defaultCity string
	logger      zerolog.Logger
}

// New wires a service.
func New(cfg Config) (*Service, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("gateway requires a transport")
	}
	if cfg.Lang == "" {
		cfg.Lang = "ru"
	}

	logger := logging.NewLogger("gateway")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "gateway").Logger()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewManager(cache.NewMemoryStore(), logger)
	}

	rt := router.NewRouter(cfg.Hosts)
	exec := aggregate.NewExecutor(cfg.Transport, cfg.Retrier, cfg.Limiter, logger)
	agg, err := aggregate.NewAggregator(aggregate.Config{
		Router:     rt,
		Executor:   exec,
		Strategies: aggregate.DefaultStrategies(cfg.Now),
		Lang:       cfg.Lang,
		Logger:     &logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		router:      rt,
		executor:    exec,
		aggregator:  agg,
		tokens:      cfg.Tokens,
		cache:       cfg.Cache,
		factory:     mapper.NewFactory(),
		filters:     filter.NewBuilder(filter.DefaultRegistry()),
		dicts:       normalize.NewDictionaryAdapter(),
		lang:        cfg.Lang,
		defaultCity: cfg.DefaultCity,
		logger:      logger,
	}
	s.slugs = slug.NewResolver(cfg.Cache, slug.PageFetcherFunc(s.FirstPage), logger)
	return s, nil
}

// Filters returns the builder for creating filter sets.
func (s *Service) Filters() *filter.Builder {
	return s.filters
}

// Router returns the endpoint router.
func (s *Service) Router() *router.Router {
	return s.router
}

func (s *Service) city(city string) string {
	if city == "" {
		return s.defaultCity
	}
	return city
}

// token returns a bearer token for t, or "" when t needs none. A failed
// refresh degrades to an unauthenticated call.
func (s *Service) token(ctx context.Context, t domain.ObjectType) (string, error) {
	if s.tokens == nil || !s.router.AuthRequired(t) {
		return "", nil
	}
	tok, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrAuthExpired) {
			s.logger.Warn().Err(err).Str("object_type", string(t)).Msg("No token available, calling upstream unauthenticated")
			return "", nil
		}
		return "", err
	}
	return tok, nil
}

// withToken runs call with a token for t. When the upstream rejects the token
// with 401 it is invalidated and call runs once more with a fresh one.
func withToken[T any](ctx context.Context, s *Service, t domain.ObjectType, call func(token string) (T, error)) (T, error) {
	tok, err := s.token(ctx, t)
	if err != nil {
		var zero T
		return zero, err
	}

	out, err := call(tok)
	if tok == "" || !unauthorized(err) {
		return out, err
	}

	s.logger.Warn().Str("object_type", string(t)).Msg("Upstream rejected token, re-authenticating")
	if err := s.tokens.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate token")
	}
	if tok, err = s.token(ctx, t); err != nil {
		var zero T
		return zero, err
	}
	return call(tok)
}

// unauthorized reports a 401 from the call or from any failed detail section.
func unauthorized(err error) bool {
	if err == nil {
		return false
	}
	if client.StatusCodeOf(err) == http.StatusUnauthorized {
		return true
	}
	var partial *aggregate.PartialAggregationError
	if errors.As(err, &partial) {
		for _, cause := range partial.Causes {
			if client.StatusCodeOf(cause) == http.StatusUnauthorized {
				return true
			}
		}
	}
	return false
}

// request renders a template into a transport request.
func (s *Service) request(t domain.ObjectType, op router.Operation, pathParams map[string]string, query url.Values, city, token string) (client.Request, error) {
	tpl, err := s.router.GetEndpoint(t, op)
	if err != nil {
		return client.Request{}, err
	}
	u, err := router.BuildURL(tpl, pathParams, query, s.city(city), s.lang, token)
	if err != nil {
		return client.Request{}, err
	}
	return client.Request{Method: tpl.Method, URL: u}, nil
}
