package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// QuotaTracker counts per-API calls for the current UTC day. Counters reset
// when the day changes. All methods are safe for concurrent access.
type QuotaTracker struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	day      string           // YYYY-MM-DD of the live counters
	now      func() time.Time // injectable for testing
}

// NewQuotaTracker creates a tracker for today.
func NewQuotaTracker() *QuotaTracker {
	q := &QuotaTracker{counters: make(map[string]*atomic.Int64), now: time.Now}
	q.day = q.today()
	return q
}

func (q *QuotaTracker) today() string {
	return q.now().UTC().Format("2006-01-02")
}

func (q *QuotaTracker) rollover() {
	d := q.today()
	q.mu.RLock()
	same := d == q.day
	q.mu.RUnlock()
	if same {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if d == q.day {
		return
	}
	q.counters = make(map[string]*atomic.Int64)
	q.day = d
}

func (q *QuotaTracker) counter(api string) *atomic.Int64 {
	q.rollover()

	q.mu.RLock()
	c, ok := q.counters[api]
	q.mu.RUnlock()
	if ok {
		return c
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.counters[api]; ok {
		return c
	}
	c = &atomic.Int64{}
	q.counters[api] = c
	return c
}

// Add records n calls against api.
func (q *QuotaTracker) Add(api string, n int64) {
	q.counter(api).Add(n)
}

// Used returns today's call count for api.
func (q *QuotaTracker) Used(api string) int64 {
	return q.counter(api).Load()
}

// UsagePercent returns Used(api)/limit as a percentage, or 0 for limit <= 0.
func (q *QuotaTracker) UsagePercent(api string, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(q.Used(api)) * 100 / float64(limit)
}

// APIUsage is one row of a quota snapshot.
type APIUsage struct {
	API  string
	Used int64
}

// Snapshot lists today's counters sorted by API name.
func (q *QuotaTracker) Snapshot() []APIUsage {
	q.rollover()
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]APIUsage, 0, len(q.counters))
	for api, c := range q.counters {
		out = append(out, APIUsage{API: api, Used: c.Load()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].API < out[j].API })
	return out
}
