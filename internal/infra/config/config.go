package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Logger       LoggerConfig       `yaml:"logger"`
	Tracer       TracerConfig       `yaml:"tracer"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Store        StoreConfig        `yaml:"store"`
	Cache        CacheConfig        `yaml:"cache"`
	Notify       NotifyConfig       `yaml:"notify"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Alerting     AlertingConfig     `yaml:"alerting"`
	Vendors      VendorsConfig      `yaml:"vendors"`
	Includes     []string           `yaml:"includes,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// MetricsConfig controls the Prometheus endpoint exposed by serve.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// Per-client request budget on the endpoint; zero disables limiting.
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// StoreConfig selects the durable store engine.
type StoreConfig struct {
	Driver       string        `yaml:"driver"` // "sqlite" or "postgres"
	Path         string        `yaml:"path"`   // sqlite file
	DSN          string        `yaml:"dsn"`    // postgres connection string
	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend"` // "memory" or "redis"
	RedisURL   string        `yaml:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// NotifyConfig configures the webhook sink.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Cooldown   time.Duration `yaml:"cooldown"`
	Timeout    time.Duration `yaml:"timeout"`
	Username   string        `yaml:"username"`
	IconEmoji  string        `yaml:"icon_emoji"`
	Channel    string        `yaml:"channel"`
}

// OrchestratorConfig bounds dispatch execution.
type OrchestratorConfig struct {
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queue_size"`
}

// SchedulerConfig holds the cron façade settings.
type SchedulerConfig struct {
	Enabled         bool                  `yaml:"enabled"`
	AlertCheck      string                `yaml:"alert_check"`
	DailyReport     string                `yaml:"daily_report"`
	LoadDBSchedules bool                  `yaml:"load_db_schedules"`
	Tasks           []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig binds a schedule to an agent dispatch.
type ScheduledTaskConfig struct {
	Name        string `yaml:"name"`
	Schedule    string `yaml:"schedule"` // cron expression or duration
	AgentType   string `yaml:"agent_type"`
	KnowledgeID string `yaml:"knowledge_id"`
	Input       string `yaml:"input"` // JSON object
}

// RuleConfig holds thresholds for one alert rule.
type RuleConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Warning       float64       `yaml:"warning_threshold"`
	Critical      float64       `yaml:"critical_threshold"`
	CheckInterval time.Duration `yaml:"check_interval"`
	Cooldown      time.Duration `yaml:"cooldown"`
}

// QuotaConfig is a per-API daily quota rule.
type QuotaConfig struct {
	API        string  `yaml:"api"`
	DailyLimit int64   `yaml:"daily_limit"`
	Warning    float64 `yaml:"warning_percent"`
	Critical   float64 `yaml:"critical_percent"`
}

// AlertingConfig configures the alert-rule engine.
type AlertingConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DiskPath     string        `yaml:"disk_path"`
	Window       time.Duration `yaml:"window"` // rolling window for error rate and response time
	CPU          RuleConfig    `yaml:"cpu"`
	Memory       RuleConfig    `yaml:"memory"`
	Disk         RuleConfig    `yaml:"disk"`
	ErrorRate    RuleConfig    `yaml:"error_rate"`
	ResponseTime RuleConfig    `yaml:"response_time"`
	Quotas       []QuotaConfig `yaml:"quotas"`
}

// VendorConfig is the common shape of an upstream vendor binding.
type VendorConfig struct {
	APIKey    string        `yaml:"api_key"`
	ClientID  string        `yaml:"client_id,omitempty"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateDelay time.Duration `yaml:"rate_delay"`
	Model     string        `yaml:"model,omitempty"`
	MaxTokens int           `yaml:"max_tokens,omitempty"`
	VoiceID   string        `yaml:"voice_id,omitempty"`
	AvatarID  string        `yaml:"avatar_id,omitempty"`
	Region    string        `yaml:"region,omitempty"`
}

// StorageConfig configures the object-storage bucket.
type StorageConfig struct {
	Bucket          string        `yaml:"bucket"`
	CredentialsFile string        `yaml:"credentials_file"`
	Prefix          string        `yaml:"prefix"`
	PublicBaseURL   string        `yaml:"public_base_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

// BreakerConfig configures the per-vendor circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// VendorsConfig lists every upstream binding.
type VendorsConfig struct {
	YouTube     VendorConfig  `yaml:"youtube"`
	SerpAPI     VendorConfig  `yaml:"serpapi"`
	SocialBlade VendorConfig  `yaml:"socialblade"`
	OpenAI      VendorConfig  `yaml:"openai"`
	Anthropic   VendorConfig  `yaml:"anthropic"`
	HeyGen      VendorConfig  `yaml:"heygen"`
	ElevenLabs  VendorConfig  `yaml:"elevenlabs"`
	GCS         StorageConfig `yaml:"gcs"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// defaultDataDir returns the persistent data directory under $HOME/.contentops.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".contentops")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
		Metrics: MetricsConfig{
			Enabled:        true,
			Listen:         "127.0.0.1:9464",
			RequestsPerMin: 120,
			Burst:          20,
		},
		Store: StoreConfig{
			Driver:       "sqlite",
			Path:         filepath.Join(defaultDataDir(), "contentops.db"),
			MaxOpenConns: 8,
			BusyTimeout:  5 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			KeyPrefix:  "",
			DefaultTTL: time.Hour,
		},
		Notify: NotifyConfig{
			Cooldown:  30 * time.Minute,
			Timeout:   10 * time.Second,
			Username:  "contentops",
			IconEmoji: ":robot_face:",
		},
		Orchestrator: OrchestratorConfig{
			ExecutionTimeout: 30 * time.Minute,
			Workers:          4,
			QueueSize:        64,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			AlertCheck:      "*/5 * * * *",
			DailyReport:     "0 9 * * *",
			LoadDBSchedules: true,
		},
		Alerting: AlertingConfig{
			Enabled:      true,
			DiskPath:     "/",
			Window:       15 * time.Minute,
			CPU:          RuleConfig{Enabled: true, Warning: 80, Critical: 95, CheckInterval: 5 * time.Minute},
			Memory:       RuleConfig{Enabled: true, Warning: 85, Critical: 95, CheckInterval: 5 * time.Minute},
			Disk:         RuleConfig{Enabled: true, Warning: 80, Critical: 90, CheckInterval: 30 * time.Minute},
			ErrorRate:    RuleConfig{Enabled: true, Warning: 5, Critical: 15, CheckInterval: 5 * time.Minute},
			ResponseTime: RuleConfig{Enabled: true, Warning: 2000, Critical: 5000, CheckInterval: 5 * time.Minute},
			Quotas: []QuotaConfig{
				{API: "youtube", DailyLimit: 10000, Warning: 80, Critical: 95},
				{API: "serpapi", DailyLimit: 250, Warning: 80, Critical: 95},
			},
		},
		Vendors: VendorsConfig{
			YouTube:     VendorConfig{Timeout: 30 * time.Second, Region: "JP"},
			SerpAPI:     VendorConfig{BaseURL: "https://serpapi.com", Timeout: 30 * time.Second, RateDelay: time.Second, Region: "JP"},
			SocialBlade: VendorConfig{BaseURL: "https://matrix.sbapi.dev", Timeout: 30 * time.Second, RateDelay: 2 * time.Second},
			OpenAI:      VendorConfig{Model: "gpt-4o-mini", Timeout: 120 * time.Second, MaxTokens: 1024},
			Anthropic:   VendorConfig{BaseURL: "https://api.anthropic.com", Model: "claude-3-5-haiku-latest", Timeout: 120 * time.Second, MaxTokens: 1024},
			HeyGen:      VendorConfig{BaseURL: "https://api.heygen.com", Timeout: 60 * time.Second},
			ElevenLabs:  VendorConfig{BaseURL: "https://api.elevenlabs.io", Timeout: 60 * time.Second, Model: "eleven_multilingual_v2", VoiceID: "21m00Tcm4TlvDq8ikWAM"},
			GCS:         StorageConfig{Prefix: "generated/", PublicBaseURL: "https://storage.googleapis.com", Timeout: 60 * time.Second},
			Breaker:     BreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second, Interval: 60 * time.Second},
		},
	}
}

// Load reads a YAML config file, applies includes, env overrides and
// credentials, decrypts "enc:" secrets, and validates the result. A missing
// file yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return finish(cfg)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}
		// The main file wins over anything it includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)
	if err := ApplyCredentials(cfg); err != nil {
		return nil, err
	}

	if passphrase := os.Getenv("CONTENTOPS_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CONTENTOPS_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONTENTOPS_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CONTENTOPS_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CONTENTOPS_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CONTENTOPS_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("CONTENTOPS_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("CONTENTOPS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CONTENTOPS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Store.DSN == "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("CONTENTOPS_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("CONTENTOPS_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" && cfg.Cache.RedisURL == "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("CONTENTOPS_CACHE_REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("CONTENTOPS_NOTIFY_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Notify.Cooldown = d
		}
	}
	if v := os.Getenv("CONTENTOPS_ORCHESTRATOR_EXECUTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Orchestrator.ExecutionTimeout = d
		}
	}
	if v := os.Getenv("CONTENTOPS_ORCHESTRATOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Orchestrator.Workers = n
		}
	}
	if v := os.Getenv("CONTENTOPS_SCHEDULER_ENABLED"); v == "false" {
		cfg.Scheduler.Enabled = false
	}
	if v := os.Getenv("CONTENTOPS_ALERTING_ENABLED"); v == "false" {
		cfg.Alerting.Enabled = false
	}
}

// decryptSecrets finds "enc:..." values in secret fields and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := map[string]*string{
		"notify.webhook_url":           &cfg.Notify.WebhookURL,
		"store.dsn":                    &cfg.Store.DSN,
		"cache.redis_url":              &cfg.Cache.RedisURL,
		"vendors.youtube.api_key":      &cfg.Vendors.YouTube.APIKey,
		"vendors.serpapi.api_key":      &cfg.Vendors.SerpAPI.APIKey,
		"vendors.socialblade.api_key":  &cfg.Vendors.SocialBlade.APIKey,
		"vendors.openai.api_key":       &cfg.Vendors.OpenAI.APIKey,
		"vendors.anthropic.api_key":    &cfg.Vendors.Anthropic.APIKey,
		"vendors.heygen.api_key":       &cfg.Vendors.HeyGen.APIKey,
		"vendors.elevenlabs.api_key":   &cfg.Vendors.ElevenLabs.APIKey,
		"vendors.socialblade.client_id": &cfg.Vendors.SocialBlade.ClientID,
	}
	for name, fp := range secrets {
		if !strings.HasPrefix(*fp, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*fp = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	// Argon2id, 64 MiB, 4 lanes.
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// validatePermissions checks the config file is not group/world writable.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
