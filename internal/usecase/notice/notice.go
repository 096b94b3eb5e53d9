// Package notice builds the specialized operator notifications on top of
// domain.Notifier. Each template fixes the level, the fields and the
// notification type, then delegates to SendAlert.
package notice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"contentops/internal/domain"
)

// Notification types carried in the footer.
const (
	TypeTrendAlert      = "trend_alert"
	TypeCompetitorAlert = "competitor_alert"
	TypeCommentsPending = "comments_pending"
	TypeTaskCompleted   = "task_completed"
	TypeQuotaWarning    = "quota_warning"
	TypeDailyReport     = "daily_report"
	TypeDeploy          = "deploy"
	TypeError           = "error"
	TypeSystemAlert     = "system_alert"
	TypePublishReminder = "publish_reminder"
)

func field(name, value string) domain.AlertField {
	return domain.AlertField{Name: name, Value: value, Short: true}
}

// NotifyTrendAlert announces a surfaced keyword.
func NotifyTrendAlert(ctx context.Context, n domain.Notifier, keyword string, score float64, importance domain.Importance, alertType domain.TrendAlertType) bool {
	level := domain.LevelInfo
	if importance == domain.ImportanceHigh {
		level = domain.LevelWarning
	}
	return n.SendAlert(ctx, domain.Alert{
		Level:   level,
		Title:   "Trend detected: " + keyword,
		Message: fmt.Sprintf("Keyword %q is trending with score %.1f.", keyword, score),
		Fields: []domain.AlertField{
			field("Score", strconv.FormatFloat(score, 'f', 1, 64)),
			field("Importance", string(importance)),
			field("Type", string(alertType)),
		},
		Type: TypeTrendAlert,
	})
}

// NotifyCompetitorAlert announces an over-performing competitor upload.
func NotifyCompetitorAlert(ctx context.Context, n domain.Notifier, competitor, videoTitle string, alertType domain.CompetitorAlertType, views int64, growthRate float64) bool {
	level := domain.LevelInfo
	if alertType == domain.CompetitorViral {
		level = domain.LevelWarning
	}
	return n.SendAlert(ctx, domain.Alert{
		Level:   level,
		Title:   "Competitor video: " + competitor,
		Message: videoTitle,
		Fields: []domain.AlertField{
			field("Views", strconv.FormatInt(views, 10)),
			field("Above average", fmt.Sprintf("%+.0f%%", growthRate)),
			field("Type", string(alertType)),
		},
		Type: TypeCompetitorAlert,
	})
}

// NotifyCommentsPending reports replies waiting for approval.
func NotifyCommentsPending(ctx context.Context, n domain.Notifier, count, videos int) bool {
	return n.SendAlert(ctx, domain.Alert{
		Level:   domain.LevelInfo,
		Title:   "Comment replies awaiting approval",
		Message: fmt.Sprintf("%d drafted replies across %d videos need review.", count, videos),
		Fields: []domain.AlertField{
			field("Pending", strconv.Itoa(count)),
			field("Videos", strconv.Itoa(videos)),
		},
		Type: TypeCommentsPending,
	})
}

// NotifyTaskCompleted reports a successful agent run.
func NotifyTaskCompleted(ctx context.Context, n domain.Notifier, agentName, taskID string, d time.Duration) bool {
	return n.SendAlert(ctx, domain.Alert{
		Level:   domain.LevelInfo,
		Title:   "Task completed: " + agentName,
		Message: "Agent run finished successfully.",
		Fields: []domain.AlertField{
			field("Task", taskID),
			field("Duration", d.Round(time.Millisecond).String()),
		},
		Type: TypeTaskCompleted,
	})
}

// NotifyQuotaWarning reports API quota usage. It is rule-keyed per API and
// level so a sticky condition fires once per cooldown.
func NotifyQuotaWarning(ctx context.Context, n domain.Notifier, level domain.AlertLevel, api string, used, limit int64, percent float64, cooldown time.Duration) bool {
	return n.SendAlert(ctx, domain.Alert{
		Level:   level,
		Title:   "API quota " + string(level) + ": " + api,
		Message: fmt.Sprintf("%s has used %.1f%% of its daily quota.", api, percent),
		Fields: []domain.AlertField{
			field("Used", strconv.FormatInt(used, 10)),
			field("Limit", strconv.FormatInt(limit, 10)),
		},
		Type:     TypeQuotaWarning,
		Rule:     "quota:" + api,
		Cooldown: cooldown,
	})
}

// SendDailyReport posts the fleet summary.
func SendDailyReport(ctx context.Context, n domain.Notifier, s domain.Summary) bool {
	rate := 0.0
	if s.TotalTasks > 0 {
		rate = float64(s.Successes) / float64(s.TotalTasks) * 100
	}
	fields := []domain.AlertField{
		field("Agents", fmt.Sprintf("%d (%d enabled)", s.TotalAgents, s.EnabledAgents)),
		field("Running", strconv.Itoa(s.RunningAgents)),
		field("Tasks", strconv.Itoa(s.TotalTasks)),
		field("Success rate", fmt.Sprintf("%.1f%%", rate)),
		field("Failures", strconv.Itoa(s.Failures)),
	}
	for _, a := range s.Agents {
		if len(fields) >= domain.MaxAlertFields {
			break
		}
		fields = append(fields, field(a.Name, fmt.Sprintf("%s, %.0f%%", a.State, a.SuccessRate*100)))
	}
	return n.SendAlert(ctx, domain.Alert{
		Level:   domain.LevelInfo,
		Title:   "Daily report",
		Message: fmt.Sprintf("%d tasks run, %d succeeded, %d failed.", s.TotalTasks, s.Successes, s.Failures),
		Fields:  fields,
		Type:    TypeDailyReport,
	})
}

// SendDeployNotification announces a process start.
func SendDeployNotification(ctx context.Context, n domain.Notifier, version, env string) bool {
	return n.SendAlert(ctx, domain.Alert{
		Level:   domain.LevelInfo,
		Title:   "Deployed " + version,
		Message: "contentops started in " + env + ".",
		Fields: []domain.AlertField{
			field("Version", version),
			field("Environment", env),
		},
		Type: TypeDeploy,
	})
}

// SendErrorAlert reports a failed task or other operator-facing error.
func SendErrorAlert(ctx context.Context, n domain.Notifier, title, message, taskID string) bool {
	var fields []domain.AlertField
	if taskID != "" {
		fields = append(fields, field("Task", taskID))
	}
	return n.SendAlert(ctx, domain.Alert{
		Level:   domain.LevelError,
		Title:   title,
		Message: message,
		Fields:  fields,
		Type:    TypeError,
	})
}

// NotifyPublishReminder reminds operators of an upcoming publication. The
// rule is keyed per publication and bucket so each bucket fires once per
// cooldown.
func NotifyPublishReminder(ctx context.Context, n domain.Notifier, p *domain.Publication, bucket string, hoursUntil float64, cooldown time.Duration) bool {
	level := domain.LevelInfo
	if bucket == "imminent" {
		level = domain.LevelWarning
	}
	return n.SendAlert(ctx, domain.Alert{
		Level:   level,
		Title:   "Upcoming publication: " + p.Title,
		Message: fmt.Sprintf("Scheduled in %.1f hours on %s.", hoursUntil, p.Platform),
		Fields: []domain.AlertField{
			field("Scheduled", p.ScheduledAt.UTC().Format(time.RFC3339)),
			field("Status", p.Status),
			field("Window", bucket),
		},
		Type:     TypePublishReminder,
		Rule:     "schedule:" + p.ID + ":" + bucket,
		Cooldown: cooldown,
	})
}

// NotifySystemAlert reports a host or service rule crossing a threshold.
func NotifySystemAlert(ctx context.Context, n domain.Notifier, level domain.AlertLevel, rule, title, message string, fields []domain.AlertField, cooldown time.Duration) bool {
	return n.SendAlert(ctx, domain.Alert{
		Level:    level,
		Title:    title,
		Message:  message,
		Fields:   fields,
		Type:     TypeSystemAlert,
		Rule:     rule,
		Cooldown: cooldown,
	})
}
