package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"contentops/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateMetrics(cfg, ve)
	validateStore(cfg, ve)
	validateCache(cfg, ve)
	validateNotify(cfg, ve)
	validateOrchestrator(cfg, ve)
	validateScheduler(cfg, ve)
	validateAlerting(cfg, ve)
	validateVendors(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var (
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"text": true, "json": true}
	validDrivers   = map[string]bool{"sqlite": true, "postgres": true}
	validBackends  = map[string]bool{"memory": true, "redis": true}
	validExporters = map[string]bool{"noop": true, "stdout": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q must be one of debug, info, warn, error", cfg.Logger.Level)
	}
	if !validFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
}

func validateMetrics(cfg *Config, ve *ValidationError) {
	if !cfg.Metrics.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
		ve.Add("metrics.listen %q: %v", cfg.Metrics.Listen, err)
	}
	if cfg.Metrics.RequestsPerMin < 0 || cfg.Metrics.Burst < 0 {
		ve.Add("metrics.requests_per_min and metrics.burst must not be negative")
	}
	if cfg.Metrics.RequestsPerMin > 0 && cfg.Metrics.Burst == 0 {
		ve.Add("metrics.burst must be positive when requests_per_min is set")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if !validDrivers[cfg.Store.Driver] {
		ve.Add("store.driver %q must be sqlite or postgres", cfg.Store.Driver)
		return
	}
	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			ve.Add("store.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			ve.Add("store.dsn is required for the postgres driver")
		}
	}
	if cfg.Store.MaxOpenConns < 0 {
		ve.Add("store.max_open_conns must be >= 0")
	}
}

func validateCache(cfg *Config, ve *ValidationError) {
	if !validBackends[cfg.Cache.Backend] {
		ve.Add("cache.backend %q must be memory or redis", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisURL == "" {
		ve.Add("cache.redis_url is required for the redis backend")
	}
	if cfg.Cache.DefaultTTL <= 0 {
		ve.Add("cache.default_ttl must be > 0")
	}
}

func validateNotify(cfg *Config, ve *ValidationError) {
	if cfg.Notify.WebhookURL != "" && !IsPlaceholder(cfg.Notify.WebhookURL) {
		u, err := url.Parse(cfg.Notify.WebhookURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			ve.Add("notify.webhook_url must be an http(s) URL")
		}
	}
	if cfg.Notify.Cooldown < 0 {
		ve.Add("notify.cooldown must be >= 0")
	}
}

func validateOrchestrator(cfg *Config, ve *ValidationError) {
	if cfg.Orchestrator.ExecutionTimeout <= 0 {
		ve.Add("orchestrator.execution_timeout must be > 0")
	}
	if cfg.Orchestrator.Workers <= 0 {
		ve.Add("orchestrator.workers must be > 0")
	}
	if cfg.Orchestrator.QueueSize <= 0 {
		ve.Add("orchestrator.queue_size must be > 0")
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	for _, sched := range []struct{ name, expr string }{
		{"scheduler.alert_check", cfg.Scheduler.AlertCheck},
		{"scheduler.daily_report", cfg.Scheduler.DailyReport},
	} {
		if sched.expr != "" && !validSchedule(sched.expr) {
			ve.Add("%s %q is not a cron expression or duration", sched.name, sched.expr)
		}
	}

	seen := make(map[string]bool)
	for i, task := range cfg.Scheduler.Tasks {
		prefix := fmt.Sprintf("scheduler.tasks[%d]", i)
		if task.Name == "" {
			ve.Add("%s.name must not be empty", prefix)
		} else if seen[task.Name] {
			ve.Add("%s.name %q is duplicated", prefix, task.Name)
		}
		seen[task.Name] = true
		if !validSchedule(task.Schedule) {
			ve.Add("%s.schedule %q is not a cron expression or duration", prefix, task.Schedule)
		}
		if _, err := domain.ParseAgentType(task.AgentType); err != nil {
			ve.Add("%s.agent_type: %v", prefix, err)
		}
		if task.Input != "" && !json.Valid([]byte(task.Input)) {
			ve.Add("%s.input must be a JSON object", prefix)
		}
	}
}

func validSchedule(expr string) bool {
	if _, err := cron.ParseStandard(expr); err == nil {
		return true
	}
	d, err := time.ParseDuration(expr)
	return err == nil && d > 0
}

func validateRule(name string, r RuleConfig, ve *ValidationError) {
	if !r.Enabled {
		return
	}
	if r.Warning <= 0 || r.Critical <= 0 {
		ve.Add("alerting.%s thresholds must be > 0", name)
	}
	if r.Critical < r.Warning {
		ve.Add("alerting.%s.critical_threshold must be >= warning_threshold", name)
	}
	if r.CheckInterval < 0 {
		ve.Add("alerting.%s.check_interval must be >= 0", name)
	}
}

func validateAlerting(cfg *Config, ve *ValidationError) {
	a := cfg.Alerting
	if !a.Enabled {
		return
	}
	validateRule("cpu", a.CPU, ve)
	validateRule("memory", a.Memory, ve)
	validateRule("disk", a.Disk, ve)
	validateRule("error_rate", a.ErrorRate, ve)
	validateRule("response_time", a.ResponseTime, ve)
	if a.Window <= 0 {
		ve.Add("alerting.window must be > 0")
	}
	for i, q := range a.Quotas {
		if q.API == "" {
			ve.Add("alerting.quotas[%d].api must not be empty", i)
		}
		if q.DailyLimit <= 0 {
			ve.Add("alerting.quotas[%d].daily_limit must be > 0", i)
		}
		if q.Critical < q.Warning {
			ve.Add("alerting.quotas[%d].critical_percent must be >= warning_percent", i)
		}
	}
}

func validateVendors(cfg *Config, ve *ValidationError) {
	v := cfg.Vendors
	for name, vc := range map[string]VendorConfig{
		"youtube":     v.YouTube,
		"serpapi":     v.SerpAPI,
		"socialblade": v.SocialBlade,
		"openai":      v.OpenAI,
		"anthropic":   v.Anthropic,
		"heygen":      v.HeyGen,
		"elevenlabs":  v.ElevenLabs,
	} {
		if vc.Timeout <= 0 {
			ve.Add("vendors.%s.timeout must be > 0", name)
		}
		if vc.RateDelay < 0 {
			ve.Add("vendors.%s.rate_delay must be >= 0", name)
		}
		if vc.BaseURL != "" {
			if _, err := url.ParseRequestURI(vc.BaseURL); err != nil {
				ve.Add("vendors.%s.base_url: %v", name, err)
			}
		}
	}
	if v.GCS.Timeout <= 0 {
		ve.Add("vendors.gcs.timeout must be > 0")
	}
	if v.Breaker.MaxFailures == 0 {
		ve.Add("vendors.breaker.max_failures must be > 0")
	}
}
