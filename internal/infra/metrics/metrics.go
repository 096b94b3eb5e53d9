// Package metrics holds the Prometheus collectors and in-process rolling
// windows used by the orchestrator, the vendor adapters and the alert engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contentops"

// Vendor call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeMock     = "mock"
	OutcomeCacheHit = "cache_hit"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	agentsRunning    prometheus.Gauge
	queueDepth       prometheus.Gauge
	queueDropped     prometheus.Counter
	vendorCalls      *prometheus.CounterVec
	vendorLatency    *prometheus.HistogramVec
	notifications    *prometheus.CounterVec
	alertsFired      *prometheus.CounterVec

	// Requests feeds the error-rate and response-time alert rules.
	Requests *Window
	// Quota counts per-API calls for the quota rules.
	Quota *QuotaTracker
}

// New creates the collectors and registers them with a fresh registry.
// window bounds the rolling request window.
func New(window time.Duration) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Agent dispatches by type and outcome",
		}, []string{"agent_type", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Agent execution wall time",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
		}, []string{"agent_type"}),
		agentsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_running",
			Help:      "Agents currently executing",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Scheduled dispatches waiting for a worker",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "dropped_total",
			Help:      "Scheduled dispatches dropped because the queue was full",
		}),
		vendorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream vendor calls by vendor, operation and outcome",
		}, []string{"vendor", "op", "outcome"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "duration_seconds",
			Help:      "Upstream vendor call latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"vendor", "op"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by level and outcome",
		}, []string{"level", "outcome"}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "fired_total",
			Help:      "Alert rules that crossed a threshold",
		}, []string{"rule", "level"}),
		Requests: NewWindow(window, 4096),
		Quota:    NewQuotaTracker(),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dispatchTotal, m.dispatchDuration, m.agentsRunning,
		m.queueDepth, m.queueDropped,
		m.vendorCalls, m.vendorLatency,
		m.notifications, m.alertsFired,
	)
	return m
}

// Registry exposes the registry for tests and for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DispatchStarted marks an agent as running.
func (m *Metrics) DispatchStarted() {
	if m == nil {
		return
	}
	m.agentsRunning.Inc()
}

// DispatchFinished records one dispatch outcome ("completed", "failed",
// "cancelled", "rejected").
func (m *Metrics) DispatchFinished(agentType, outcome string, d time.Duration, ran bool) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(agentType, outcome).Inc()
	if ran {
		m.agentsRunning.Dec()
		m.dispatchDuration.WithLabelValues(agentType).Observe(d.Seconds())
	}
}

// VendorCall records one upstream call. Only real network attempts feed
// the request window and the quota tracker.
func (m *Metrics) VendorCall(vendor, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.vendorCalls.WithLabelValues(vendor, op, outcome).Inc()
	if outcome == OutcomeCacheHit {
		return
	}
	m.vendorLatency.WithLabelValues(vendor, op).Observe(d.Seconds())
	if outcome == OutcomeOK || outcome == OutcomeError {
		m.Requests.Record(outcome == OutcomeOK, d)
		m.Quota.Add(vendor, 1)
	}
}

// Notification records a notifier outcome ("sent", "suppressed", "failed",
// "unconfigured").
func (m *Metrics) Notification(level, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(level, outcome).Inc()
}

// AlertFired records a rule crossing a threshold.
func (m *Metrics) AlertFired(rule, level string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(rule, level).Inc()
}

// QueueDepth sets the scheduler queue gauge.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// QueueDropped counts a dropped scheduled dispatch.
func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}
