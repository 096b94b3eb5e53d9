package domain

import (
	"context"
	"time"
)

// Cache is a key-value store with TTL and glob-pattern delete. Implementations
// must be safe for concurrent use.
type Cache interface {
	// Get returns the value and true on a hit, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a Redis-style glob and returns
	// how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}
