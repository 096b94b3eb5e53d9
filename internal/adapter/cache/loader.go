package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"contentops/internal/domain"
)

// Loader is a read-through helper over a domain.Cache. Concurrent misses for
// one key share a single load. Cache backend errors are logged and treated
// as misses so a broken cache never blocks a vendor call.
type Loader struct {
	cache  domain.Cache
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewLoader creates a loader whose entries live for ttl.
func NewLoader(c domain.Cache, ttl time.Duration, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cache: c, ttl: ttl, logger: logger}
}

// Cache returns the underlying backend.
func (l *Loader) Cache() domain.Cache { return l.cache }

// TTL returns the entry lifetime.
func (l *Loader) TTL() time.Duration { return l.ttl }

// GetBytes returns the cached bytes for key, calling load on a miss and
// storing its result. hit is true when the value came from the cache.
func (l *Loader) GetBytes(ctx context.Context, key string, load func(context.Context) ([]byte, error)) (value []byte, hit bool, err error) {
	if b, ok := l.lookup(ctx, key); ok {
		return b, true, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		// Another caller may have filled the key while we queued.
		if b, ok := l.lookup(ctx, key); ok {
			return b, nil
		}
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.cache.SetEx(ctx, key, b, l.ttl); err != nil {
			l.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return b, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

func (l *Loader) lookup(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	return b, ok
}

// Fetch is the typed form of GetBytes: values are stored as JSON. A cached
// payload that no longer decodes is reloaded.
func Fetch[T any](ctx context.Context, l *Loader, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	b, hit, err := l.GetBytes(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, false, err
	}

	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		l.logger.Warn("cache entry undecodable, reloading", "key", key, "error", err)
		_ = l.cache.Delete(ctx, key)
		v, err := load(ctx)
		if err != nil {
			return zero, false, err
		}
		if b, err := json.Marshal(v); err == nil {
			_ = l.cache.SetEx(ctx, key, b, l.ttl)
		}
		return v, false, nil
	}
	return out, hit, nil
}
