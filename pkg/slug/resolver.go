// Package slug resolves human-readable slugs to upstream ids.
//
// Only the first catalog page of a type is scanned, so objects beyond the
// first ScanLimit catalog items cannot be resolved by slug.
package slug

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/realty-gateway/pkg/cache"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// ScanLimit is the size of the catalog window searched for a slug.
const ScanLimit = 100

// slugKeys are the raw fields holding an item's slug, in priority order.
var slugKeys = []string{"slug", "guid"}

// PageFetcher returns the first count raw items of a catalog.
type PageFetcher interface {
	FirstPage(ctx context.Context, t domain.ObjectType, city string, count int) ([]map[string]any, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, t domain.ObjectType, city string, count int) ([]map[string]any, error)

func (f PageFetcherFunc) FirstPage(ctx context.Context, t domain.ObjectType, city string, count int) ([]map[string]any, error) {
	return f(ctx, t, city, count)
}

// Resolver maps slugs to ids through a cached slug→id map per type and city.
type Resolver struct {
	cache   *cache.Manager
	fetcher PageFetcher
	logger  zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(manager *cache.Manager, fetcher PageFetcher, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cache:   manager,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "slug").Logger(),
	}
}

// Resolve returns the id of the object of type t whose slug or guid equals
// slug. A miss returns a *domain.NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, t domain.ObjectType, slug, city string) (string, error) {
	key := cache.Key{Namespace: cache.NamespaceSlugs, ObjectType: string(t), City: city, Key: "index"}

	index, err := cache.Remember(ctx, r.cache, key, key.Namespace.TTL(), func(ctx context.Context) (map[string]string, error) {
		items, err := r.fetcher.FirstPage(ctx, t, city, ScanLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch %s catalog for slugs: %w", t, err)
		}
		return buildIndex(items), nil
	})
	if err != nil {
		return "", err
	}

	id, ok := index[slug]
	if !ok {
		r.logger.Debug().
			Str("object_type", string(t)).
			Str("slug", slug).
			Int("scanned", len(index)).
			Msg("Slug not in scanned window")
		return "", &domain.NotFoundError{ObjectType: t, Key: slug}
	}
	return id, nil
}

// buildIndex maps each slug and guid of items to the item id. The first item
// claiming a slug wins. At most ScanLimit items are read.
func buildIndex(items []map[string]any) map[string]string {
	if len(items) > ScanLimit {
		items = items[:ScanLimit]
	}
	index := make(map[string]string, len(items))
	for _, item := range items {
		id := idOf(item)
		if id == "" {
			continue
		}
		for _, k := range slugKeys {
			s, ok := item[k].(string)
			if !ok || s == "" {
				continue
			}
			if _, taken := index[s]; !taken {
				index[s] = id
			}
		}
	}
	return index
}

func idOf(item map[string]any) string {
	for _, k := range []string{"_id", "id"} {
		switch v := item[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
