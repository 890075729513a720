package slug

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/realty-gateway/pkg/cache"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// catalogOf returns a fetcher over n items and counts its calls.
func catalogOf(n int, calls *atomic.Int32) PageFetcherFunc {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"_id":  fmt.Sprintf("id-%d", i+1),
			"slug": fmt.Sprintf("object-%d", i+1),
		}
	}
	return func(_ context.Context, _ domain.ObjectType, _ string, count int) ([]map[string]any, error) {
		calls.Add(1)
		if count > len(items) {
			count = len(items)
		}
		return items[:count], nil
	}
}

func newResolver(f PageFetcher) *Resolver {
	return NewResolver(cache.NewManager(cache.NewMemoryStore(), zerolog.Nop()), f, zerolog.Nop())
}

func TestResolve_FirstPage(t *testing.T) {
	var calls atomic.Int32
	r := newResolver(catalogOf(500, &calls))

	id, err := r.Resolve(context.Background(), domain.TypeComplex, "object-42", "msk")
	require.NoError(t, err)
	assert.Equal(t, "id-42", id)
}

func TestResolve_BeyondScanWindowIsNotFound(t *testing.T) {
	var calls atomic.Int32
	r := newResolver(catalogOf(500, &calls))

	_, err := r.Resolve(context.Background(), domain.TypeComplex, "object-150", "msk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "object-150", nf.Key)
}

func TestResolve_UsesCache(t *testing.T) {
	var calls atomic.Int32
	r := newResolver(catalogOf(10, &calls))
	ctx := context.Background()

	for _, s := range []string{"object-1", "object-2", "missing"} {
		_, _ = r.Resolve(ctx, domain.TypeSettlement, s, "msk")
	}
	assert.Equal(t, int32(1), calls.Load())

	_, _ = r.Resolve(ctx, domain.TypeSettlement, "object-1", "spb")
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_FetchErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("upstream down")
	r := newResolver(PageFetcherFunc(func(context.Context, domain.ObjectType, string, int) ([]map[string]any, error) {
		calls.Add(1)
		return nil, boom
	}))

	_, err := r.Resolve(context.Background(), domain.TypeComplex, "x", "msk")
	assert.ErrorIs(t, err, boom)
	_, err = r.Resolve(context.Background(), domain.TypeComplex, "x", "msk")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBuildIndex(t *testing.T) {
	index := buildIndex([]map[string]any{
		{"id": float64(7), "slug": "seven", "guid": "g-7"},
		{"_id": "a", "slug": "seven"},
		{"slug": "orphan"},
	})
	assert.Equal(t, map[string]string{"seven": "7", "g-7": "7"}, index)
}
