package config

import (
	"strings"
	"testing"
	"time"
)

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "loud"
	cfg.Orchestrator.Workers = 0
	cfg.Cache.Backend = "memcached"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	ve := err.(*ValidationError)
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
	assertContains(t, err.Error(), "logger.level")
	assertContains(t, err.Error(), "orchestrator.workers must be > 0")
	assertContains(t, err.Error(), "cache.backend")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "store.dsn is required")
}

func TestValidateRedisNeedsURL(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Backend = "redis"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "cache.redis_url is required")
}

func TestValidateWebhookURL(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.WebhookURL = "ftp://hooks.example.com/x"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "notify.webhook_url")

	cfg.Notify.WebhookURL = "your_slack_webhook_here"
	if err := Validate(cfg); err != nil {
		t.Errorf("placeholder webhook should be treated as unset: %v", err)
	}
}

func TestValidateSchedulerTasks(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.Tasks = []ScheduledTaskConfig{
		{Name: "a", Schedule: "0 * * * *", AgentType: "TREND_MONITOR"},
		{Name: "a", Schedule: "sometimes", AgentType: "JANITOR", Input: "{broken"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	assertContains(t, msg, `scheduler.tasks[1].name "a" is duplicated`)
	assertContains(t, msg, "scheduler.tasks[1].schedule")
	assertContains(t, msg, "scheduler.tasks[1].agent_type")
	assertContains(t, msg, "scheduler.tasks[1].input")
}

func TestValidateDurationSchedule(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.Tasks = []ScheduledTaskConfig{
		{Name: "fast", Schedule: "90s", AgentType: "qa-checker"},
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("duration schedule should be accepted: %v", err)
	}
}

func TestValidateAlertThresholds(t *testing.T) {
	cfg := Defaults()
	cfg.Alerting.CPU.Warning = 90
	cfg.Alerting.CPU.Critical = 50
	cfg.Alerting.Quotas = append(cfg.Alerting.Quotas, QuotaConfig{API: "", DailyLimit: 0})
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "alerting.cpu.critical_threshold must be >= warning_threshold")
	assertContains(t, err.Error(), "alerting.quotas[2].api must not be empty")
	assertContains(t, err.Error(), "alerting.quotas[2].daily_limit must be > 0")
}

func TestValidateAlertingDisabledSkipsRules(t *testing.T) {
	cfg := Defaults()
	cfg.Alerting.Enabled = false
	cfg.Alerting.CPU.Critical = -1
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled alerting should not be validated: %v", err)
	}
}

func TestValidateVendorTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Vendors.HeyGen.Timeout = 0
	cfg.Vendors.SerpAPI.RateDelay = -time.Second
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "vendors.heygen.timeout must be > 0")
	assertContains(t, err.Error(), "vendors.serpapi.rate_delay must be >= 0")
}
