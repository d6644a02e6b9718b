package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache or has expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidKey indicates a key string could not be parsed
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrEntryTooLarge indicates a single artifact exceeds the store's size ceiling
	ErrEntryTooLarge = errors.New("cache entry exceeds size ceiling")

	// ErrInvalidTTL indicates a non-positive TTL was passed to Set
	ErrInvalidTTL = errors.New("ttl must be positive")
)

// Store is a durable key to bytes store with TTL expiry and a size ceiling.
// Implementations evict on their own once the ceiling is exceeded.
type Store interface {
	// Get returns the artifact stored under key, or ErrCacheMiss when it is
	// absent or past its TTL.
	Get(ctx context.Context, key Key) (*Artifact, error)

	// Set stores data under key for ttl, replacing any previous artifact.
	Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error

	// Delete removes the artifact stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Close releases the store's resources.
	Close() error
}

// Option configures a store backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

func defaultOptions() options {
	return options{now: time.Now}
}

// WithClock overrides the clock used for TTL bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateSet(data []byte, ttl time.Duration, maxSize int64) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return ErrEntryTooLarge
	}
	return nil
}
