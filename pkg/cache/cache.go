package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable wraps infrastructure failures, e.g. a lost
	// Redis connection. Only these propagate out of the store layer.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// Service is a bounded key-value cache with per-key TTLs. Values are
// opaque bytes; callers marshal.
type Service interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Delete(ctx context.Context, keys ...string) error
	// Clear removes every key under the given prefix.
	Clear(ctx context.Context, prefix string) error
	Health(ctx context.Context) error
	Close() error
}
