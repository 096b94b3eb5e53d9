package domain

import (
	"context"
	"time"
)

// AlertLevel is the severity of an outbound notification.
type AlertLevel string

const (
	LevelInfo     AlertLevel = "info"
	LevelWarning  AlertLevel = "warning"
	LevelError    AlertLevel = "error"
	LevelCritical AlertLevel = "critical"
)

// DefaultCooldown is the minimum interval between dispatches for one rule.
const DefaultCooldown = 30 * time.Minute

// MaxAlertFields caps the key:value fields rendered per dispatch.
const MaxAlertFields = 10

// AlertField is one key:value line in a notification.
type AlertField struct {
	Name  string
	Value string
	Short bool
}

// Alert is one notification. A non-empty Rule subjects the alert to the
// rule's cooldown; Cooldown <= 0 uses DefaultCooldown.
type Alert struct {
	Level    AlertLevel
	Title    string
	Message  string
	Fields   []AlertField
	Type     string // notification type tag, e.g. "trend_alert"
	Rule     string
	Cooldown time.Duration
}

// Notifier delivers alerts. SendAlert reports whether a payload was actually
// delivered; it never returns transport errors to the caller.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) bool
	Available() bool
}
