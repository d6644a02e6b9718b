// Package cache provides rendered card storage with TTL expiry and a size ceiling.
//
// The package implements the result store behind the card gateway:
//
// - One artifact per key, namespaced by card kind (img:<id>, img:eq:<id>)
// - Absolute TTL from write time (no sliding expiration)
// - A total size ceiling enforced by the store itself (least recently written goes first)
// - Binary-safe storage of the raw image bytes
// - No pre-warming: opening a store never loads existing artifacts
//
// # Backends
//
//	// Disk (default): files plus an SQLite index holding TTL metadata
//	store, err := cache.OpenDiskStore("diskcache", 1000*1000*1000)
//
//	// Redis: artifacts expire through Redis TTLs
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), maxSize)
//
//	// Memory: development and tests
//	store := cache.NewMemoryStore(maxSize)
//
// # Basic Usage
//
//	key := cache.NewKey(cache.KindEquipment, 12345)
//
//	artifact, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - render and store
//		err = store.Set(ctx, key, png, time.Hour)
//	}
//
// # Metrics
//
// Every backend exports Prometheus metrics labelled by backend:
//
//   - cardgate_cache_hits_total{backend} - Cache hits
//   - cardgate_cache_misses_total{backend} - Cache misses (absent or expired)
//   - cardgate_cache_evictions_total{backend,reason} - Entries removed (expired, ceiling, orphaned)
//   - cardgate_cache_size_bytes{backend} - Stored footprint
//   - cardgate_cache_errors_total{backend,operation} - Cache operation errors
package cache
