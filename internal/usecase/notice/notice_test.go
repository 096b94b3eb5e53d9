package notice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (r *recorder) SendAlert(_ context.Context, a domain.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return true
}

func (r *recorder) Available() bool { return true }

func TestTemplates(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}

	NotifyTrendAlert(ctx, r, "AI tools", 78, domain.ImportanceHigh, domain.TrendKeywordSpike)
	NotifyCompetitorAlert(ctx, r, "Rival", "Big video", domain.CompetitorViral, 250000, 150)
	NotifyCommentsPending(ctx, r, 4, 2)
	NotifyTaskCompleted(ctx, r, "Trend Monitor", "t1", 1500*time.Millisecond)
	NotifyQuotaWarning(ctx, r, domain.LevelCritical, "youtube", 9600, 10000, 96, time.Hour)
	SendDeployNotification(ctx, r, "v1.2.0", "production")
	SendErrorAlert(ctx, r, "Task failed", "boom", "")

	summary := domain.Summary{TotalAgents: 12, EnabledAgents: 12, TotalTasks: 10, Successes: 9, Failures: 1}
	for i := 0; i < 12; i++ {
		summary.Agents = append(summary.Agents, domain.AgentSummaryRow{Name: "agent"})
	}
	SendDailyReport(ctx, r, summary)

	require.Len(t, r.alerts, 8)
	assert.Equal(t, domain.LevelWarning, r.alerts[0].Level)
	assert.Equal(t, TypeTrendAlert, r.alerts[0].Type)
	assert.Equal(t, domain.LevelWarning, r.alerts[1].Level)
	assert.Equal(t, "+150%", r.alerts[1].Fields[1].Value)
	assert.Equal(t, "1.5s", r.alerts[3].Fields[1].Value)
	assert.Equal(t, "quota:youtube", r.alerts[4].Rule)
	assert.Equal(t, time.Hour, r.alerts[4].Cooldown)
	assert.Empty(t, r.alerts[6].Fields)
	assert.Equal(t, domain.LevelError, r.alerts[6].Level)
	assert.Len(t, r.alerts[7].Fields, domain.MaxAlertFields)
	assert.Equal(t, "90.0%", r.alerts[7].Fields[3].Value)
}

func TestPublishReminderRule(t *testing.T) {
	r := &recorder{}
	p := &domain.Publication{ID: "pub-1", Title: "Launch", Platform: "youtube", Status: "scheduled",
		ScheduledAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}

	NotifyPublishReminder(context.Background(), r, p, "imminent", 5.5, 24*time.Hour)
	NotifyPublishReminder(context.Background(), r, p, "near", 50, 48*time.Hour)

	require.Len(t, r.alerts, 2)
	assert.Equal(t, "schedule:pub-1:imminent", r.alerts[0].Rule)
	assert.Equal(t, domain.LevelWarning, r.alerts[0].Level)
	assert.Equal(t, 24*time.Hour, r.alerts[0].Cooldown)
	assert.Equal(t, "schedule:pub-1:near", r.alerts[1].Rule)
	assert.Equal(t, domain.LevelInfo, r.alerts[1].Level)
	assert.Equal(t, TypePublishReminder, r.alerts[1].Type)
}

func TestSystemAlert(t *testing.T) {
	r := &recorder{}
	NotifySystemAlert(context.Background(), r, domain.LevelCritical, "cpu", "CPU critical", "cpu at 97%", nil, 30*time.Minute)
	require.Len(t, r.alerts, 1)
	assert.Equal(t, "cpu", r.alerts[0].Rule)
	assert.Equal(t, TypeSystemAlert, r.alerts[0].Type)
}
