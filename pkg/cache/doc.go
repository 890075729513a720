// Package cache provides the gateway's TTL cache behind a pluggable store.
//
// Two namespaces are used: dictionaries (24h) and slug maps (1h). Values are
// JSON-encoded into an Entry that carries its own expiry, so a store that
// keeps data past its TTL still never serves it.
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redisClient) // or cache.NewMemoryStore()
//	manager := cache.NewManager(store, logger)
//
//	key := cache.Key{
//		Namespace:  cache.NamespaceDictionaries,
//		ObjectType: "complex",
//		City:       "msk",
//		Key:        "class",
//	}
//
//	dict, err := cache.Remember(ctx, manager, key, key.Namespace.TTL(),
//		func(ctx context.Context) (Dictionary, error) {
//			return fetchDictionary(ctx)
//		})
//
// Concurrent Remember calls for one key share a single producer call.
// Store failures are logged and treated as misses.
//
// # Metrics
//
//   - realty_cache_hits_total{namespace}
//   - realty_cache_misses_total{namespace}
//   - realty_cache_errors_total{operation}
package cache
