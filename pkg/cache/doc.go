// Package cache provides the query cache behind the todo client.
//
// Cached responses are keyed by a canonical request fingerprint (endpoint plus
// sorted query parameters) and grouped under resource tags. A successful
// mutation invalidates every entry of a tag at once, so the next read goes back
// to the server.
//
// # Basic Usage
//
//	// One manager per application instance
//	manager := cache.NewManager(cache.NewMemoryStore(), logger)
//
//	key := cache.CacheKey{
//		Endpoint:    "/todos",
//		QueryParams: url.Values{"_page": []string{"1"}, "_limit": []string{"4"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the server, then:
//		entry, _ = cache.ResponseToEntry(resp, time.Minute, "Todos")
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Invalidation
//
//	// After POST/PATCH/DELETE succeeded
//	n, err := manager.Invalidate(ctx, "Todos")
//
// # Subscriptions
//
// Consumers register interest in a key (or a whole tag) and are told when the
// cached value is updated or invalidated:
//
//	unsubscribe := manager.Subscribe(key, func(ev cache.Event) {
//		if ev.Type == cache.EventInvalidated {
//			// refetch
//		}
//	})
//	defer unsubscribe()
//
// # Stores
//
// MemoryStore keeps entries in process. RedisStore shares them between
// processes; tag membership is kept in a Redis set per tag.
//
// # Metrics
//
//   - todo_cache_hits_total{layer} - Cache hits by store
//   - todo_cache_misses_total - Cache misses
//   - todo_cache_invalidations_total{tag} - Entries dropped by tag invalidation
//   - todo_cache_errors_total{operation} - Store operation errors
package cache
