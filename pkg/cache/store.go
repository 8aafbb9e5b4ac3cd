package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a cache backend. Keys are CacheKey.String() values.
type Store interface {
	// Name is the layer label used in metrics and logs.
	Name() string

	// Get returns the entry for key or ErrCacheMiss. Expired entries are misses.
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores entry under key and records it as a member of entry.Tags.
	Set(ctx context.Context, key string, entry *CacheEntry) error

	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error

	// InvalidateTag removes every entry tagged with tag and returns their keys.
	InvalidateTag(ctx context.Context, tag string) ([]string, error)
}
