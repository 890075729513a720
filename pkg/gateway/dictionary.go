package gateway

import (
	"context"
	"fmt"

	"github.com/Sternrassler/realty-gateway/pkg/cache"
	"github.com/Sternrassler/realty-gateway/pkg/domain"
	"github.com/Sternrassler/realty-gateway/pkg/normalize"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

// dictionaryFormats is the envelope each provider uses for dictionaries.
var dictionaryFormats = map[domain.ObjectType]normalize.Format{
	domain.TypeComplex:        normalize.FormatFilters,
	domain.TypeUnit:           normalize.FormatNested,
	domain.TypeHouse:          normalize.FormatNested,
	domain.TypeParkingSpace:   normalize.FormatFlat,
	domain.TypeLandPlot:       normalize.FormatSingle,
	domain.TypeCommercialUnit: normalize.FormatFlat,
}

// flatDictionaryKeys names the dictionary that untagged items of a flat
// provider belong to. It is fixed per type so the cached set never depends on
// which key was requested first.
var flatDictionaryKeys = map[domain.ObjectType]string{
	domain.TypeParkingSpace:   "parking_type",
	domain.TypeCommercialUnit: "purpose",
}

// allDictionaries is the cache key of a provider's complete dictionary set.
const allDictionaries = "all"

// GetDictionary returns dictionary key of t. Results are cached for 24h per
// type and city.
func (s *Service) GetDictionary(ctx context.Context, t domain.ObjectType, key, city string) (normalize.Dictionary, error) {
	if !s.router.HasOperation(t, router.OpDictionaries) {
		return normalize.Dictionary{}, fmt.Errorf("dictionaries for %q: %w", t, domain.ErrUnsupported)
	}
	tpl, err := s.router.GetEndpoint(t, router.OpDictionaries)
	if err != nil {
		return normalize.Dictionary{}, err
	}

	// Providers with a per-key endpoint are fetched and cached per key.
	perKey := len(tpl.PathParams) > 0
	cacheKey := cache.Key{Namespace: cache.NamespaceDictionaries, ObjectType: string(t), City: s.city(city), Key: allDictionaries}
	var pathParams map[string]string
	nameHint := key
	if hint, ok := flatDictionaryKeys[t]; ok {
		nameHint = hint
	}
	if perKey {
		cacheKey.Key = key
		pathParams = map[string]string{"key": key}
	}

	dicts, err := cache.Remember(ctx, s.cache, cacheKey, cacheKey.Namespace.TTL(), func(ctx context.Context) (map[string]normalize.Dictionary, error) {
		return s.fetchDictionaries(ctx, t, city, nameHint, pathParams)
	})
	if err != nil {
		return normalize.Dictionary{}, err
	}

	dict, ok := dicts[key]
	if !ok {
		return normalize.Dictionary{}, &domain.NotFoundError{ObjectType: t, Key: "dictionary " + key}
	}
	return dict, nil
}

func (s *Service) fetchDictionaries(ctx context.Context, t domain.ObjectType, city, nameHint string, pathParams map[string]string) (map[string]normalize.Dictionary, error) {
	body, err := withToken(ctx, s, t, func(token string) ([]byte, error) {
		req, err := s.request(t, router.OpDictionaries, pathParams, nil, city, token)
		if err != nil {
			return nil, err
		}
		resp, err := s.executor.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dictionaries %s: %w", t, err)
	}

	dicts, err := s.dicts.Normalize(body, dictionaryFormats[t], nameHint)
	if err != nil {
		return nil, fmt.Errorf("dictionaries %s: %w", t, err)
	}
	// A per-key endpoint answers for exactly the requested dictionary.
	if pathParams != nil && len(dicts) == 1 {
		for _, d := range dicts {
			d.Key = nameHint
			dicts = map[string]normalize.Dictionary{nameHint: d}
		}
	}
	s.logger.Debug().
		Str("object_type", string(t)).
		Strs("keys", normalize.Keys(dicts)).
		Msg("Dictionaries fetched")
	return dicts, nil
}
