// Package notify delivers operator alerts to a Slack incoming webhook.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"contentops/internal/domain"
	"contentops/internal/infra/config"
	"contentops/internal/infra/metrics"
)

var _ domain.Notifier = (*Slack)(nil)

var levelEmoji = map[domain.AlertLevel]string{
	domain.LevelInfo:     "ℹ️",
	domain.LevelWarning:  "⚠️",
	domain.LevelError:    "❌",
	domain.LevelCritical: "🚨",
}

var levelColor = map[domain.AlertLevel]string{
	domain.LevelInfo:     "#36a64f",
	domain.LevelWarning:  "#ff9900",
	domain.LevelError:    "#e01e5a",
	domain.LevelCritical: "#8b0000",
}

// Option configures a Slack sink.
type Option func(*Slack)

// WithHTTPClient replaces the webhook HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Slack) { s.client = c }
}

// WithClock sets the time source for footers and cooldowns.
func WithClock(now func() time.Time) Option {
	return func(s *Slack) {
		s.now = now
		s.gate.now = now
	}
}

// Slack posts alerts to an incoming webhook. A sink without a webhook URL
// is a no-op that reports false.
type Slack struct {
	webhookURL string
	username   string
	iconEmoji  string
	channel    string
	cooldown   time.Duration

	client  *http.Client
	gate    *Gate
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSlack creates the sink. c backs the cooldown gate and may be shared
// with the vendor cache.
func NewSlack(cfg config.NotifyConfig, c domain.Cache, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Slack {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = domain.DefaultCooldown
	}
	s := &Slack{
		webhookURL: cfg.WebhookURL,
		username:   cfg.Username,
		iconEmoji:  cfg.IconEmoji,
		channel:    cfg.Channel,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: timeout},
		gate:       NewGate(c, logger),
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Available reports whether a webhook is configured.
func (s *Slack) Available() bool { return s.webhookURL != "" }

// SendAlert posts one alert. Alerts with a Rule pass through the cooldown
// gate first. Every failure is logged and reported as false.
func (s *Slack) SendAlert(ctx context.Context, alert domain.Alert) bool {
	level := string(alert.Level)
	if !s.Available() {
		s.metrics.Notification(level, "unconfigured")
		return false
	}

	cooldown := alert.Cooldown
	if cooldown <= 0 {
		cooldown = s.cooldown
	}
	if alert.Rule != "" {
		if !s.gate.Reserve(ctx, alert.Rule, cooldown) {
			s.logger.Debug("alert suppressed by cooldown", "rule", alert.Rule, "cooldown", cooldown)
			s.metrics.Notification(level, "suppressed")
			return false
		}
	}

	msg := s.buildMessage(alert)
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		s.logger.Warn("notification send failed", "title", alert.Title, "type", alert.Type, "error", err)
		if alert.Rule != "" {
			s.gate.Release(ctx, alert.Rule)
		}
		s.metrics.Notification(level, "failed")
		return false
	}
	s.metrics.Notification(level, "sent")
	return true
}

func (s *Slack) buildMessage(alert domain.Alert) *slack.WebhookMessage {
	fields := alert.Fields
	if len(fields) > domain.MaxAlertFields {
		fields = fields[:domain.MaxAlertFields]
	}
	af := make([]slack.AttachmentField, 0, len(fields))
	for _, f := range fields {
		af = append(af, slack.AttachmentField{Title: f.Name, Value: f.Value, Short: f.Short})
	}

	emoji := levelEmoji[alert.Level]
	if emoji == "" {
		emoji = levelEmoji[domain.LevelInfo]
	}
	footer := "contentops"
	if alert.Type != "" {
		footer += " | " + alert.Type
	}
	return &slack.WebhookMessage{
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Channel:   s.channel,
		Attachments: []slack.Attachment{{
			Color:    levelColor[alert.Level],
			Fallback: emoji + " " + alert.Title + ": " + alert.Message,
			Title:    emoji + " " + alert.Title,
			Text:     alert.Message,
			Fields:   af,
			Footer:   footer,
			Ts:       json.Number(strconv.FormatInt(s.now().Unix(), 10)),
		}},
	}
}
