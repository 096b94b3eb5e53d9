package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Orchestrator.ExecutionTimeout != 30*time.Minute {
		t.Errorf("ExecutionTimeout = %v, want 30m", cfg.Orchestrator.ExecutionTimeout)
	}
	if cfg.Notify.Cooldown != 30*time.Minute {
		t.Errorf("Notify.Cooldown = %v, want 30m", cfg.Notify.Cooldown)
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Errorf("Cache.DefaultTTL = %v, want 1h", cfg.Cache.DefaultTTL)
	}
	if cfg.Vendors.SerpAPI.RateDelay != time.Second || cfg.Vendors.SocialBlade.RateDelay != 2*time.Second {
		t.Errorf("rate delays = %v/%v", cfg.Vendors.SerpAPI.RateDelay, cfg.Vendors.SocialBlade.RateDelay)
	}
	if cfg.Scheduler.DailyReport != "0 9 * * *" {
		t.Errorf("DailyReport = %q", cfg.Scheduler.DailyReport)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.Workers != 4 {
		t.Errorf("expected defaults, got Workers=%d", cfg.Orchestrator.Workers)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentops.yaml")
	content := `
logger:
  level: "debug"
orchestrator:
  execution_timeout: 10m
  workers: 2
  queue_size: 8
vendors:
  serpapi:
    api_key: "serp-key"
    rate_delay: 500ms
scheduler:
  tasks:
    - name: "trend-hourly"
      schedule: "@every 1h"
      agent_type: "trend-monitor"
      knowledge_id: "k1"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Orchestrator.ExecutionTimeout != 10*time.Minute || cfg.Orchestrator.Workers != 2 {
		t.Errorf("orchestrator = %+v", cfg.Orchestrator)
	}
	if cfg.Vendors.SerpAPI.APIKey != "serp-key" || cfg.Vendors.SerpAPI.RateDelay != 500*time.Millisecond {
		t.Errorf("serpapi = %+v", cfg.Vendors.SerpAPI)
	}
	// Untouched fields keep their defaults.
	if cfg.Vendors.SerpAPI.Timeout != 30*time.Second {
		t.Errorf("serpapi timeout = %v, want default 30s", cfg.Vendors.SerpAPI.Timeout)
	}
	if len(cfg.Scheduler.Tasks) != 1 || cfg.Scheduler.Tasks[0].AgentType != "trend-monitor" {
		t.Errorf("tasks = %+v", cfg.Scheduler.Tasks)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONTENTOPS_LOGGER_LEVEL", "debug")
	t.Setenv("CONTENTOPS_STORE_DRIVER", "postgres")
	t.Setenv("CONTENTOPS_STORE_DSN", "postgres://localhost/contentops")
	t.Setenv("CONTENTOPS_ORCHESTRATOR_WORKERS", "9")
	t.Setenv("CONTENTOPS_NOTIFY_COOLDOWN", "5m")
	t.Setenv("CONTENTOPS_SCHEDULER_ENABLED", "false")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://localhost/contentops" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Orchestrator.Workers != 9 {
		t.Errorf("Workers = %d, want 9", cfg.Orchestrator.Workers)
	}
	if cfg.Notify.Cooldown != 5*time.Minute {
		t.Errorf("Cooldown = %v, want 5m", cfg.Notify.Cooldown)
	}
	if cfg.Scheduler.Enabled {
		t.Error("scheduler should be disabled")
	}
}

func TestEnvOverridesIgnoreBadNumbers(t *testing.T) {
	t.Setenv("CONTENTOPS_ORCHESTRATOR_WORKERS", "lots")
	t.Setenv("CONTENTOPS_ORCHESTRATOR_EXECUTION_TIMEOUT", "-1m")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Orchestrator.Workers != 4 {
		t.Errorf("Workers = %d, want default 4", cfg.Orchestrator.Workers)
	}
	if cfg.Orchestrator.ExecutionTimeout != 30*time.Minute {
		t.Errorf("ExecutionTimeout = %v, want default", cfg.Orchestrator.ExecutionTimeout)
	}
}

func TestDatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/app")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Store.DSN != "postgres://db/app" {
		t.Errorf("DSN = %q", cfg.Store.DSN)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/0" {
		t.Errorf("RedisURL = %q", cfg.Cache.RedisURL)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "https://hooks.slack.com/services/T000/B000/XXXX"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptValue(encrypted, "wrong-pass"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	cases := map[string]string{
		"no separator": "abcdef",
		"bad salt":     "zz:00",
		"bad data":     "00:zz",
		"too short":    "00112233445566778899aabbccddeeff:00",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecryptValue(in, "pass"); err == nil {
				t.Errorf("DecryptValue(%q) should fail", in)
			}
		})
	}
}

func TestDecryptSecrets(t *testing.T) {
	passphrase := "test-config-key"
	encrypted, err := EncryptValue("sk-live-openai", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	cfg := Defaults()
	cfg.Vendors.OpenAI.APIKey = "enc:" + encrypted
	cfg.Vendors.SerpAPI.APIKey = "plain-serp"

	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.Vendors.OpenAI.APIKey != "sk-live-openai" {
		t.Errorf("OpenAI key = %q", cfg.Vendors.OpenAI.APIKey)
	}
	if cfg.Vendors.SerpAPI.APIKey != "plain-serp" {
		t.Errorf("plain value was modified: %q", cfg.Vendors.SerpAPI.APIKey)
	}
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.WebhookURL = "enc:not-valid"
	err := decryptSecrets(cfg, "pass")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "notify.webhook_url") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	passphrase := "load-key"
	encrypted, err := EncryptValue("hg-secret", passphrase)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "contentops.yaml")
	content := "vendors:\n  heygen:\n    api_key: \"enc:" + encrypted + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONTENTOPS_CONFIG_KEY", passphrase)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vendors.HeyGen.APIKey != "hg-secret" {
		t.Errorf("HeyGen key = %q", cfg.Vendors.HeyGen.APIKey)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentops.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected insecure permissions error")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentops.yaml")
	if err := os.WriteFile(path, []byte("logger: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentops.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: mongo\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var ve *ValidationError
	if !asValidation(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func asValidation(err error, target **ValidationError) bool {
	ve, ok := err.(*ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := validatePermissions(path); err != nil {
		t.Errorf("0644 should be accepted: %v", err)
	}
	if err := os.Chmod(path, 0o664); err != nil {
		t.Fatal(err)
	}
	if err := validatePermissions(path); err == nil {
		t.Error("group-writable should be rejected")
	}
	if err := validatePermissions(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}
}
