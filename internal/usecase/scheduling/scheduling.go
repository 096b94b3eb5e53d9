// Package scheduling drives periodic work: a cron façade whose entries fire
// into a bounded worker pool.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the body of one scheduled entry.
type Job func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithClock replaces the time source used for schedule stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type entry struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Scheduler owns named recurring entries. A fire only enqueues; the pool runs it.
type Scheduler struct {
	cron     *cron.Cron
	pool     *Pool
	entries  map[string]entry
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler feeding pool.
func NewScheduler(pool *Pool, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		pool:     pool,
		entries:  make(map[string]entry),
		logger:   logger.With("component", "scheduler"),
		location: time.Local,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.cron = cron.New(cron.WithLocation(s.location))
	return s
}

// Add registers job under name. schedule is a 5-field cron expression, a
// descriptor such as "@daily", or a Go duration like "30m".
func (s *Scheduler) Add(name, schedule string, job Job) error {
	sched, err := parseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("scheduler: task %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("scheduler: task %q already exists", name)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.pool.Submit(name, job)
	}))
	s.entries[name] = entry{id: id, schedule: schedule, job: job}
	s.logger.Info("task added to scheduler", "name", name, "schedule", schedule)
	return nil
}

// Remove drops the named entry. It reports whether the entry existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	s.logger.Info("task removed from scheduler", "name", name)
	return true
}

// Trigger enqueues the named entry now, outside its schedule.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.pool.Submit(name, e.job)
}

// Names lists registered entries in lexical order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NextRun returns the next fire time of the named entry. It is zero until
// the scheduler is started.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

// Start begins firing entries and starts the pool under ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.pool.Start(runCtx)
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "entries", len(s.entries))
}

// Stop halts the cron loop, then cancels and drains the pool.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.cancel()
	s.pool.Stop()
	s.started = false
	s.logger.Info("scheduler stopped")
}

// parseSchedule tries a cron expression first, then a positive duration.
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if sched, err := cron.ParseStandard(schedule); err == nil {
		return sched, nil
	}
	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return constantDelay(dur), nil
}

// constantDelay fires at a fixed interval. Unlike cron.Every it keeps
// sub-second precision.
type constantDelay time.Duration

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}
