package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"contentops/internal/domain"
	"contentops/internal/usecase/notice"
)

// Readiness buckets by hours until publish.
const (
	BucketImminent = "imminent"
	BucketNear     = "near"
	BucketFar      = "far"
)

const defaultScheduleHorizon = 7 * 24 * time.Hour

// bucketCooldowns are the reminder cooldowns; far publications get none.
var bucketCooldowns = map[string]time.Duration{
	BucketImminent: 24 * time.Hour,
	BucketNear:     48 * time.Hour,
}

// SchedulerInput widens or narrows the look-ahead window.
type SchedulerInput struct {
	HorizonHours int `json:"horizon_hours,omitempty"`
}

// UpcomingPublication is one publication in the scheduler report.
type UpcomingPublication struct {
	PublicationID     string    `json:"publication_id"`
	Title             string    `json:"title"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	HoursUntilPublish float64   `json:"hours_until_publish"`
	Bucket            string    `json:"bucket"`
	Reminded          bool      `json:"reminded"`
}

// SchedulerOutput is the Content Scheduler result.
type SchedulerOutput struct {
	PublicationsChecked int                   `json:"publications_checked"`
	RemindersSent       int                   `json:"reminders_sent"`
	Buckets             map[string]int        `json:"buckets"`
	Upcoming            []UpcomingPublication `json:"upcoming"`
}

// ContentScheduler reminds operators of upcoming publications.
type ContentScheduler struct {
	deps   Deps
	logger *slog.Logger
}

// NewContentScheduler creates the service.
func NewContentScheduler(d Deps) *ContentScheduler {
	return &ContentScheduler{deps: d, logger: d.logger(domain.AgentContentScheduler)}
}

func (s *ContentScheduler) InputSchema() []byte {
	return []byte(`{"type":"object","properties":{"horizon_hours":{"type":"integer","minimum":1,"maximum":2160}}}`)
}

// Execute buckets every publication inside the horizon and sends a
// reminder for imminent and near ones. The notifier's cooldown keeps a
// bucket from reminding twice.
func (s *ContentScheduler) Execute(ctx context.Context, agent *domain.Agent, _ *domain.AgentTask, input json.RawMessage) (json.RawMessage, error) {
	in, err := decodeInput[SchedulerInput](input)
	if err != nil {
		return nil, err
	}
	horizon := defaultScheduleHorizon
	if in.HorizonHours > 0 {
		horizon = time.Duration(in.HorizonHours) * time.Hour
	}

	now := s.deps.now()
	pubs, err := s.deps.Store.ListUpcomingPublications(ctx, agent.KnowledgeID, now, now.Add(horizon))
	if err != nil {
		return nil, domain.WrapOp("ContentScheduler.Execute", err)
	}

	out := SchedulerOutput{
		Buckets:  map[string]int{BucketImminent: 0, BucketNear: 0, BucketFar: 0},
		Upcoming: []UpcomingPublication{},
	}
	for _, p := range pubs {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		hours := p.ScheduledAt.Sub(now).Hours()
		bucket := ReadinessBucket(hours)
		up := UpcomingPublication{
			PublicationID:     p.ID,
			Title:             p.Title,
			ScheduledAt:       p.ScheduledAt,
			HoursUntilPublish: round2(hours),
			Bucket:            bucket,
		}
		if cooldown, ok := bucketCooldowns[bucket]; ok {
			up.Reminded = notice.NotifyPublishReminder(ctx, s.deps.Notifier, p, bucket, up.HoursUntilPublish, cooldown)
		}
		if up.Reminded {
			out.RemindersSent++
		}
		out.PublicationsChecked++
		out.Buckets[bucket]++
		out.Upcoming = append(out.Upcoming, up)
	}
	s.logger.Info("schedule check finished", "agent_id", agent.ID, "publications", out.PublicationsChecked, "reminders", out.RemindersSent)
	return encodeOutput(out)
}

// ReadinessBucket classifies hours until publish.
func ReadinessBucket(hours float64) string {
	switch {
	case hours < 24:
		return BucketImminent
	case hours < 72:
		return BucketNear
	default:
		return BucketFar
	}
}
