package scheduling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"contentops/internal/infra/metrics"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

type work struct {
	name     string
	fn       Job
	queuedAt time.Time
}

// Pool runs submitted jobs on a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	queue   chan work
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewPool builds a pool. Non-positive sizes fall back to 4 workers and a
// 64-slot queue. timeout bounds each job; zero means no bound.
func NewPool(workers, queueSize int, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		workers: workers,
		metrics: m,
		logger:  logger.With("component", "pool"),
		timeout: timeout,
		queue:   make(chan work, queueSize),
	}
}

// Start launches the workers. Jobs run under ctx; once ctx is done queued
// jobs are discarded.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for range p.workers {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit enqueues fn without blocking. It returns false when the queue is
// full or the pool is stopped.
func (p *Pool) Submit(name string, fn Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("pool stopped, job rejected", "job", name)
		return false
	}
	select {
	case p.queue <- work{name: name, fn: fn, queuedAt: time.Now()}:
		p.metrics.QueueDepth(len(p.queue))
		return true
	default:
		p.metrics.QueueDropped()
		p.logger.Warn("queue full, job dropped", "job", name, "capacity", cap(p.queue))
		return false
	}
}

// Depth reports how many jobs are waiting.
func (p *Pool) Depth() int { return len(p.queue) }

// Stop closes the queue and waits for the workers to drain it.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for w := range p.queue {
		p.metrics.QueueDepth(len(p.queue))
		if ctx.Err() != nil {
			p.logger.Debug("pool shutting down, job discarded", "job", w.name)
			continue
		}
		p.run(ctx, w)
	}
}

func (p *Pool) run(ctx context.Context, w work) {
	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	logger := p.logger.With("job", w.name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
		}
	}()
	if err := w.fn(jobCtx); err != nil {
		logger.Warn("job failed", "error", err, "duration", time.Since(start), "waited", start.Sub(w.queuedAt))
		return
	}
	logger.Info("job completed", "duration", time.Since(start), "waited", start.Sub(w.queuedAt))
}
