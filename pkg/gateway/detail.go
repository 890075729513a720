package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/realty-gateway/pkg/aggregate"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// DetailResult is one typed entity with everything fetched around it.
type DetailResult struct {
	Entity          domain.Entity          `json:"entity"`
	Media           domain.MediaCollection `json:"media"`
	Related         map[string]any         `json:"related"`
	FailedEndpoints []string               `json:"failed_endpoints"`
	Meta            map[string]any         `json:"meta"`
}

// IsComplete reports whether every endpoint of the detail view succeeded.
func (r *DetailResult) IsComplete() bool {
	return len(r.FailedEndpoints) == 0
}

// GetDetail fetches the detail view of (t, id). A view assembled from only
// some of its endpoints is returned marked incomplete rather than failing.
func (s *Service) GetDetail(ctx context.Context, t domain.ObjectType, id, city string) (*DetailResult, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("object type %q: %w", t, domain.ErrUnsupported)
	}

	merged, err := withToken(ctx, s, t, func(token string) (aggregate.Merged, error) {
		return s.aggregator.Aggregate(ctx, t, id, s.city(city), token)
	})

	failed := []string{}
	var partial *aggregate.PartialAggregationError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		merged = partial.Partial
		failed = partial.FailedEndpoints
	default:
		return nil, err
	}

	entity, err := s.factory.Create(t, merged.Entity)
	if err != nil {
		return nil, err
	}

	return &DetailResult{
		Entity:          entity,
		Media:           new(domain.MediaBuilder).Add(merged.Media...).Build(),
		Related:         merged.Related,
		FailedEndpoints: failed,
		Meta: map[string]any{
			"object_type": string(t),
			"city":        s.city(city),
			"complete":    len(failed) == 0,
		},
	}, nil
}

// GetDetailBySlug resolves slug within the first catalog page of t and
// fetches its detail view.
func (s *Service) GetDetailBySlug(ctx context.Context, t domain.ObjectType, slug, city string) (*DetailResult, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("object type %q: %w", t, domain.ErrUnsupported)
	}
	id, err := s.slugs.Resolve(ctx, t, slug, s.city(city))
	if err != nil {
		return nil, err
	}
	result, err := s.GetDetail(ctx, t, id, city)
	if err != nil {
		return nil, err
	}
	result.Meta["slug"] = slug
	return result, nil
}
