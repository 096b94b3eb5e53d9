package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"contentops/internal/domain"
)

const cooldownPrefix = "notify:cooldown:"

// Gate debounces per-rule alerts. The last-sent time lives in the cache so
// a Redis backend shares cooldowns across processes; the local mutex only
// orders reservations inside one process.
type Gate struct {
	mu     sync.Mutex
	cache  domain.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewGate creates a gate over c.
func NewGate(c domain.Cache, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{cache: c, logger: logger, now: time.Now}
}

// Reserve reports whether rule may fire now and, if so, records the send.
// A cache failure lets the alert through.
func (g *Gate) Reserve(ctx context.Context, rule string, cooldown time.Duration) bool {
	if g.cache == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := cooldownPrefix + rule
	now := g.now()
	v, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("cooldown lookup failed", "rule", rule, "error", err)
		return true
	}
	if ok {
		if last, perr := time.Parse(time.RFC3339Nano, string(v)); perr == nil && now.Sub(last) < cooldown {
			return false
		}
	}
	if err := g.cache.SetEx(ctx, key, []byte(now.UTC().Format(time.RFC3339Nano)), cooldown); err != nil {
		g.logger.Warn("cooldown write failed", "rule", rule, "error", err)
	}
	return true
}

// Release forgets a reservation whose send failed so the next attempt goes out.
func (g *Gate) Release(ctx context.Context, rule string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Delete(ctx, cooldownPrefix+rule); err != nil {
		g.logger.Warn("cooldown release failed", "rule", rule, "error", err)
	}
}
