// Package alerting evaluates threshold rules over host utilisation, the
// request window and API quotas, and reports crossings through the notifier.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contentops/internal/domain"
	"contentops/internal/infra/config"
	"contentops/internal/infra/metrics"
	"contentops/internal/usecase/notice"
)

// Built-in rule names. Quota rules are named "quota:<api>".
const (
	RuleCPU          = "cpu"
	RuleMemory       = "memory"
	RuleDisk         = "disk"
	RuleErrorRate    = "error_rate"
	RuleResponseTime = "response_time"
)

const (
	defaultCheckInterval = 5 * time.Minute
	// Error rates over fewer requests than this are noise.
	minErrorRateSamples = 5
)

// Status is the outcome of one rule evaluation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFiring Status = "firing"
	StatusNotDue Status = "not_due"
	StatusNoData Status = "no_data"
	StatusFailed Status = "failed"
)

// Result reports one rule evaluation. Level is empty below the warning threshold.
type Result struct {
	Rule   string
	Value  float64
	Level  domain.AlertLevel
	Status Status
	Sent   bool
	Err    error
}

// probe samples a rule's value; ok is false when there is nothing to judge.
type probe func(ctx context.Context) (value float64, ok bool, err error)

type rule struct {
	name     string
	title    string
	unit     string
	warning  float64
	critical float64
	interval time.Duration
	cooldown time.Duration
	probe    probe
	// dispatch overrides the generic system alert.
	dispatch func(ctx context.Context, level domain.AlertLevel, value float64) bool

	lastCheck time.Time
}

func (r *rule) level(v float64) domain.AlertLevel {
	switch {
	case r.critical > 0 && v >= r.critical:
		return domain.LevelCritical
	case r.warning > 0 && v >= r.warning:
		return domain.LevelWarning
	default:
		return ""
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSampler replaces the host sampler.
func WithSampler(s Sampler) Option {
	return func(e *Engine) { e.sampler = s }
}

// Engine owns the rule set. Evaluations are serialized.
type Engine struct {
	mu       sync.Mutex
	rules    []*rule
	notifier domain.Notifier
	metrics  *metrics.Metrics
	sampler  Sampler
	logger   *slog.Logger
	now      func() time.Time
}

// New builds the enabled rules from cfg. m supplies the request window and
// quota counters; a nil m disables those rules.
func New(cfg config.AlertingConfig, n domain.Notifier, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		notifier: n,
		metrics:  m,
		sampler:  HostSampler{},
		logger:   logger.With("component", "alerting"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}

	diskPath := cfg.DiskPath
	if diskPath == "" {
		diskPath = "/"
	}
	e.add(RuleCPU, "High CPU usage", "%", cfg.CPU, func(ctx context.Context) (float64, bool, error) {
		v, err := e.sampler.CPUPercent(ctx)
		return v, err == nil, err
	})
	e.add(RuleMemory, "High memory usage", "%", cfg.Memory, func(ctx context.Context) (float64, bool, error) {
		v, err := e.sampler.MemoryPercent(ctx)
		return v, err == nil, err
	})
	e.add(RuleDisk, "Low disk space on "+diskPath, "%", cfg.Disk, func(ctx context.Context) (float64, bool, error) {
		v, err := e.sampler.DiskPercent(ctx, diskPath)
		return v, err == nil, err
	})
	if m == nil {
		return e
	}
	e.add(RuleErrorRate, "High upstream error rate", "%", cfg.ErrorRate, func(context.Context) (float64, bool, error) {
		s := m.Requests.Stats()
		return s.ErrorRate, s.Count >= minErrorRateSamples, nil
	})
	e.add(RuleResponseTime, "Slow upstream responses", "ms", cfg.ResponseTime, func(context.Context) (float64, bool, error) {
		s := m.Requests.Stats()
		return s.AvgLatencyMS, s.Count > 0, nil
	})
	for _, q := range cfg.Quotas {
		e.addQuota(q)
	}
	return e
}

func (e *Engine) add(name, title, unit string, rc config.RuleConfig, p probe) {
	if !rc.Enabled {
		return
	}
	e.rules = append(e.rules, &rule{
		name:     name,
		title:    title,
		unit:     unit,
		warning:  rc.Warning,
		critical: rc.Critical,
		interval: rc.CheckInterval,
		cooldown: rc.Cooldown,
		probe:    p,
	})
}

func (e *Engine) addQuota(q config.QuotaConfig) {
	if q.API == "" || q.DailyLimit <= 0 {
		return
	}
	api, limit := q.API, q.DailyLimit
	e.rules = append(e.rules, &rule{
		name:     "quota:" + api,
		title:    "API quota: " + api,
		unit:     "%",
		warning:  q.Warning,
		critical: q.Critical,
		interval: defaultCheckInterval,
		probe: func(context.Context) (float64, bool, error) {
			return e.metrics.Quota.UsagePercent(api, limit), true, nil
		},
		dispatch: func(ctx context.Context, level domain.AlertLevel, pct float64) bool {
			return notice.NotifyQuotaWarning(ctx, e.notifier, level, api, e.metrics.Quota.Used(api), limit, pct, 0)
		},
	})
}

// Rules lists the enabled rule names in evaluation order.
func (e *Engine) Rules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.name
	}
	return out
}

// CheckAll evaluates every rule that is due. Each rule dispatches at most
// once per call.
func (e *Engine) CheckAll(ctx context.Context) []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Result, 0, len(e.rules))
	for _, r := range e.rules {
		if ctx.Err() != nil {
			break
		}
		out = append(out, e.evaluate(ctx, r))
	}
	return out
}

// Check evaluates one rule by name, honouring its check interval.
func (e *Engine) Check(ctx context.Context, name string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.name == name {
			return e.evaluate(ctx, r), nil
		}
	}
	return Result{}, &domain.DomainError{Op: "alerting.Check", Err: domain.ErrNotFound, Detail: name, SubSystem: "alerting"}
}

// evaluate runs one rule. Caller holds mu.
func (e *Engine) evaluate(ctx context.Context, r *rule) Result {
	res := Result{Rule: r.name}
	now := e.now()
	interval := r.interval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	if !r.lastCheck.IsZero() && now.Sub(r.lastCheck) < interval {
		res.Status = StatusNotDue
		return res
	}
	r.lastCheck = now

	v, ok, err := r.probe(ctx)
	switch {
	case err != nil:
		e.logger.Warn("alert rule sample failed", "rule", r.name, "error", err)
		res.Status, res.Err = StatusFailed, err
		return res
	case !ok:
		res.Status = StatusNoData
		return res
	}
	res.Value = v
	res.Level = r.level(v)
	if res.Level == "" {
		res.Status = StatusOK
		return res
	}

	res.Status = StatusFiring
	e.metrics.AlertFired(r.name, string(res.Level))
	if r.dispatch != nil {
		res.Sent = r.dispatch(ctx, res.Level, v)
	} else {
		res.Sent = e.dispatch(ctx, r, res.Level, v)
	}
	e.logger.Warn("alert rule firing", "rule", r.name, "value", v, "level", string(res.Level), "sent", res.Sent)
	return res
}

func (e *Engine) dispatch(ctx context.Context, r *rule, level domain.AlertLevel, v float64) bool {
	threshold := r.warning
	if level == domain.LevelCritical {
		threshold = r.critical
	}
	msg := fmt.Sprintf("%s is %.1f%s, at or above the %s threshold of %.0f%s.", r.name, v, r.unit, level, threshold, r.unit)
	fields := []domain.AlertField{
		{Name: "Value", Value: fmt.Sprintf("%.1f%s", v, r.unit), Short: true},
		{Name: "Warning", Value: fmt.Sprintf("%.0f%s", r.warning, r.unit), Short: true},
		{Name: "Critical", Value: fmt.Sprintf("%.0f%s", r.critical, r.unit), Short: true},
	}
	return notice.NotifySystemAlert(ctx, e.notifier, level, "system:"+r.name, r.title, msg, fields, r.cooldown)
}
