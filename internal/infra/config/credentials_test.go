package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaceholder(t *testing.T) {
	missing := []string{
		"", "   ", "changeme", "CHANGEME", "placeholder", "xxx", "xxxxxxxx",
		"xxx-123", "your_api_key", "your-serpapi-key", "<YOUR_KEY>", "sk-xxx",
		"sk-xxxxxxxxxxxx", "dummy",
	}
	for _, v := range missing {
		assert.True(t, IsPlaceholder(v), "%q should be a placeholder", v)
	}

	real := []string{"sk-live-9f8e7d", "AIzaSyD-abc123", "https://hooks.slack.com/services/T/B/C"}
	for _, v := range real {
		assert.False(t, IsPlaceholder(v), "%q should be a real value", v)
	}
}

func TestApplyCredentials(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "yt-env")
	t.Setenv("OPENAI_API_KEY", "oa-env")
	t.Setenv("SOCIALBLADE_CLIENT_ID", "sb-client")
	t.Setenv("SOCIALBLADE_TOKEN", "sb-token")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/C")

	cfg := Defaults()
	cfg.Vendors.Anthropic.APIKey = "from-file"
	require.NoError(t, ApplyCredentials(cfg))

	assert.Equal(t, "yt-env", cfg.Vendors.YouTube.APIKey)
	assert.Equal(t, "oa-env", cfg.Vendors.OpenAI.APIKey)
	assert.Equal(t, "sb-client", cfg.Vendors.SocialBlade.ClientID)
	assert.Equal(t, "sb-token", cfg.Vendors.SocialBlade.APIKey)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/C", cfg.Notify.WebhookURL)
	// Unset env vars leave file values alone.
	assert.Equal(t, "from-file", cfg.Vendors.Anthropic.APIKey)
}

func TestVendorReport(t *testing.T) {
	cfg := Defaults()
	cfg.Vendors.SerpAPI.APIKey = "real-serp-key"
	cfg.Vendors.SocialBlade.ClientID = "client"
	cfg.Vendors.SocialBlade.APIKey = "your_token"

	got := map[string]bool{}
	for _, s := range VendorReport(cfg) {
		got[s.Name] = s.Configured
	}
	assert.True(t, got["serpapi"])
	assert.False(t, got["socialblade"], "placeholder token leaves the vendor unconfigured")
	assert.False(t, got["youtube"])
	assert.Len(t, got, 9)
}
