package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Credentials are the vendor secrets read from the process environment.
// Non-empty values override the file config.
type Credentials struct {
	YouTubeAPIKey       string `envconfig:"YOUTUBE_API_KEY"`
	SerpAPIKey          string `envconfig:"SERPAPI_API_KEY"`
	SocialBladeClientID string `envconfig:"SOCIALBLADE_CLIENT_ID"`
	SocialBladeToken    string `envconfig:"SOCIALBLADE_TOKEN"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey     string `envconfig:"ANTHROPIC_API_KEY"`
	HeyGenAPIKey        string `envconfig:"HEYGEN_API_KEY"`
	ElevenLabsAPIKey    string `envconfig:"ELEVENLABS_API_KEY"`
	GCSBucket           string `envconfig:"GCS_BUCKET"`
	GCSCredentials      string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	SlackWebhookURL     string `envconfig:"SLACK_WEBHOOK_URL"`
}

// ReadCredentials loads Credentials from the environment.
func ReadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return c, nil
}

// ApplyCredentials folds environment credentials into cfg.
func ApplyCredentials(cfg *Config) error {
	c, err := ReadCredentials()
	if err != nil {
		return err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Vendors.YouTube.APIKey, c.YouTubeAPIKey)
	set(&cfg.Vendors.SerpAPI.APIKey, c.SerpAPIKey)
	set(&cfg.Vendors.SocialBlade.ClientID, c.SocialBladeClientID)
	set(&cfg.Vendors.SocialBlade.APIKey, c.SocialBladeToken)
	set(&cfg.Vendors.OpenAI.APIKey, c.OpenAIAPIKey)
	set(&cfg.Vendors.Anthropic.APIKey, c.AnthropicAPIKey)
	set(&cfg.Vendors.HeyGen.APIKey, c.HeyGenAPIKey)
	set(&cfg.Vendors.ElevenLabs.APIKey, c.ElevenLabsAPIKey)
	set(&cfg.Vendors.GCS.Bucket, c.GCSBucket)
	set(&cfg.Vendors.GCS.CredentialsFile, c.GCSCredentials)
	set(&cfg.Notify.WebhookURL, c.SlackWebhookURL)
	return nil
}

var placeholderValues = map[string]bool{
	"changeme":    true,
	"change_me":   true,
	"placeholder": true,
	"todo":        true,
	"none":        true,
	"null":        true,
	"dummy":       true,
	"sk-xxx":      true,
}

// IsPlaceholder reports whether a credential value should be treated as
// missing: empty, a well-known dummy, "xxx..." padding, a "your_..." hint,
// or an "<angle-bracket>" template.
func IsPlaceholder(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" || placeholderValues[s] {
		return true
	}
	if strings.HasPrefix(s, "your_") || strings.HasPrefix(s, "your-") {
		return true
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return true
	}
	if strings.Trim(s, "x") == "" || strings.HasPrefix(s, "xxx") || strings.HasPrefix(s, "sk-xxx") {
		return true
	}
	return false
}

// VendorStatus is one row of the credential report printed by the CLI.
type VendorStatus struct {
	Name       string
	Configured bool
}

// VendorReport lists which vendor bindings have usable credentials.
func VendorReport(cfg *Config) []VendorStatus {
	v := cfg.Vendors
	return []VendorStatus{
		{"youtube", !IsPlaceholder(v.YouTube.APIKey)},
		{"serpapi", !IsPlaceholder(v.SerpAPI.APIKey)},
		{"socialblade", !IsPlaceholder(v.SocialBlade.ClientID) && !IsPlaceholder(v.SocialBlade.APIKey)},
		{"openai", !IsPlaceholder(v.OpenAI.APIKey)},
		{"anthropic", !IsPlaceholder(v.Anthropic.APIKey)},
		{"heygen", !IsPlaceholder(v.HeyGen.APIKey)},
		{"elevenlabs", !IsPlaceholder(v.ElevenLabs.APIKey)},
		{"gcs", !IsPlaceholder(v.GCS.Bucket)},
		{"slack", !IsPlaceholder(cfg.Notify.WebhookURL)},
	}
}
