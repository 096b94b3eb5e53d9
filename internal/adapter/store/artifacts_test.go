package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

func TestTrendAlertsExpire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentTrendMonitor, "kb")
	created := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateTrendAlert(ctx, &domain.TrendAlert{
		AgentID: a.ID, KnowledgeID: "kb", Keyword: "AI tools", Score: 78,
		AlertType: domain.TrendKeywordSpike, Importance: domain.ImportanceHigh,
		SuggestedActions: []domain.SuggestedAction{{Action: "Create a video on AI tools", Priority: "high"}},
		CreatedAt:        created,
	}))

	active, err := s.ListTrendAlerts(ctx, "kb", created.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, created.Add(domain.TrendAlertTTL), active[0].ExpiresAt)
	assert.Equal(t, 78.0, active[0].Score)
	assert.Equal(t, "high", active[0].SuggestedActions[0].Priority)

	expired, err := s.ListTrendAlerts(ctx, "kb", created.Add(8*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestCompetitorAlertDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentCompetitorAnalyzer, "kb")
	insight := "Strong hook"

	first := &domain.CompetitorAlert{
		AgentID: a.ID, KnowledgeID: "kb", CompetitorChannel: "UC1", VideoID: "v1", VideoTitle: "Viral",
		AlertType: domain.CompetitorViral, Analysis: domain.CompetitorAnalysis{TitleAnalysis: &insight},
		SuggestedResponses: []string{"Respond fast"},
	}
	created, err := s.CreateCompetitorAlert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &domain.CompetitorAlert{AgentID: a.ID, KnowledgeID: "kb", CompetitorChannel: "UC1", VideoID: "v1",
		VideoTitle: "Other", AlertType: domain.CompetitorHighPerformer}
	created, err = s.CreateCompetitorAlert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID, "existing row loaded on conflict")
	assert.Equal(t, "Viral", dup.VideoTitle)

	list, err := s.ListCompetitorAlerts(ctx, "kb")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Analysis.TitleAnalysis)
	assert.Nil(t, list[0].Analysis.SuggestedResponse)
}

func TestCommentQueueDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentCommentResponder, "kb")

	e := &domain.CommentQueueEntry{
		AgentID: a.ID, KnowledgeID: "kb", VideoID: "v1", SourceCommentID: "c1", Author: "viewer",
		OriginalText: "How do you edit?", Sentiment: domain.SentimentQuestion, IsQuestion: true,
		ReplyText: "Thanks for asking!", GeneratedBy: domain.GeneratorTemplate, RequiresApproval: true,
	}
	ok, err := s.CreateCommentQueueEntry(ctx, e)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CreateCommentQueueEntry(ctx, &domain.CommentQueueEntry{
		AgentID: a.ID, KnowledgeID: "kb", VideoID: "v1", SourceCommentID: "c1",
		OriginalText: "again", Sentiment: domain.SentimentNeutral, ReplyText: "x", GeneratedBy: domain.GeneratorAI,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	queued, err := s.CommentQueued(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, queued)

	pending, err := s.ListCommentQueue(ctx, "kb", domain.CommentPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsQuestion)
	assert.True(t, pending[0].RequiresApproval)
	assert.Equal(t, "How do you edit?", pending[0].OriginalText)
}

func TestCommentTemplatesScopeAndPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, tpl := range []*domain.CommentTemplate{
		{Name: "global", TargetSentiment: domain.SentimentPositive, TemplateText: "Thanks!", IsActive: true, Priority: 1},
		{Name: "scoped", KnowledgeID: "kb", TargetSentiment: domain.SentimentPositive, TemplateText: "Thank you!", IsActive: true, Priority: 5},
		{Name: "inactive", KnowledgeID: "kb", TargetSentiment: domain.SentimentPositive, TemplateText: "x", IsActive: false, Priority: 9},
		{Name: "other", KnowledgeID: "kb2", TargetSentiment: domain.SentimentPositive, TemplateText: "y", IsActive: true, Priority: 9},
		{Name: "negative", KnowledgeID: "kb", TargetSentiment: domain.SentimentNegative, TemplateText: "Sorry", IsActive: true},
	} {
		require.NoError(t, s.CreateCommentTemplate(ctx, tpl))
	}

	got, err := s.ListCommentTemplates(ctx, "kb", domain.SentimentPositive)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "scoped", got[0].Name)
	assert.Equal(t, "global", got[1].Name)
}

func TestMetricSnapshotsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentPerformanceLearner, "kb")
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertMetricSnapshots(ctx, []*domain.MetricSnapshot{
		{AgentID: a.ID, KnowledgeID: "kb", Subject: "all", Metric: "views", Bucket: "day", BucketStart: day, Value: 100},
		{AgentID: a.ID, KnowledgeID: "kb", Subject: "all", Metric: "likes", Bucket: "day", BucketStart: day, Value: 4},
	}))
	require.NoError(t, s.UpsertMetricSnapshots(ctx, []*domain.MetricSnapshot{
		{AgentID: a.ID, KnowledgeID: "kb", Subject: "all", Metric: "views", Bucket: "day", BucketStart: day, Value: 150},
	}))

	views, err := s.ListMetricSnapshots(ctx, a.ID, "views")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 150.0, views[0].Value)

	all, err := s.ListMetricSnapshots(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestContentRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetKnowledge(ctx, "nope")
	assert.Equal(t, domain.CodeKnowledgeNotFound, domain.ErrorCodeOf(err))

	k := &domain.Knowledge{ID: "kb", Name: "Acme", Sections: map[string]json.RawMessage{
		"seo": json.RawMessage(`{"keywords":["ai"]}`),
	}}
	require.NoError(t, s.PutKnowledge(ctx, k))
	got, err := s.GetKnowledge(ctx, "kb")
	require.NoError(t, err)
	assert.JSONEq(t, `{"keywords":["ai"]}`, string(got.Sections["seo"]))

	empty, err := s.GetCompetitorResearch(ctx, "kb")
	require.NoError(t, err)
	assert.Empty(t, empty.Channels)

	require.NoError(t, s.PutCompetitorResearch(ctx, &domain.CompetitorResearch{KnowledgeID: "kb", Channels: []domain.ResearchChannel{
		{ChannelID: "UC1", Name: "Rival", RecentVideos: []domain.ResearchVideo{{VideoID: "a", ViewCount: 100}, {VideoID: "b", ViewCount: 300}}},
	}}))
	research, err := s.GetCompetitorResearch(ctx, "kb")
	require.NoError(t, err)
	require.Len(t, research.Channels, 1)
	assert.Equal(t, 200.0, research.Channels[0].AverageViews())
}

func TestPublicationsWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(14 * 24 * time.Hour)

	for _, at := range []time.Time{from.Add(-time.Hour), from, from.Add(48 * time.Hour), to} {
		require.NoError(t, s.PutPublication(ctx, &domain.Publication{KnowledgeID: "kb", Title: at.String(), ScheduledAt: at}))
	}
	got, err := s.ListUpcomingPublications(ctx, "kb", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2, "window is half-open")
	assert.Equal(t, from, got[0].ScheduledAt)
	assert.Equal(t, "youtube", got[0].Platform)
}

func TestPublishedVideosAndMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.PutPublishedVideo(ctx, &domain.PublishedVideo{
			KnowledgeID: "kb", PlatformVideoID: "v", Title: "t", PublishedAt: base.Add(time.Duration(i) * time.Hour),
		}))
		require.NoError(t, s.PutVideoMetric(ctx, &domain.VideoMetric{
			KnowledgeID: "kb", VideoID: "v", RecordedAt: base.Add(time.Duration(i) * time.Hour), Views: int64(10 * (i + 1)),
		}))
	}
	videos, err := s.ListPublishedVideos(ctx, "kb", base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.True(t, videos[0].PublishedAt.After(videos[1].PublishedAt))

	limited, err := s.ListPublishedVideos(ctx, "kb", base, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	metrics, err := s.ListVideoMetrics(ctx, "kb", base)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, int64(10), metrics[0].Views)
}

func TestSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	on := &domain.AgentSchedule{AgentType: domain.AgentTrendMonitor, Name: "hourly trends", CronExpression: "0 * * * *", Enabled: true,
		Input: json.RawMessage(`{"keywords":["ai"]}`), CreatedAt: base}
	off := &domain.AgentSchedule{AgentType: domain.AgentQAChecker, Name: "qa", CronExpression: "@daily", CreatedAt: base.Add(time.Second)}
	require.NoError(t, s.PutAgentSchedule(ctx, on))
	require.NoError(t, s.PutAgentSchedule(ctx, off))

	enabled, err := s.ListAgentSchedules(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Nil(t, enabled[0].LastRunAt)

	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkScheduleRun(ctx, on.ID, at))
	all, err := s.ListAgentSchedules(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].LastRunAt)
	assert.Equal(t, at, *all[0].LastRunAt)

	assert.Error(t, s.MarkScheduleRun(ctx, "missing", at))
}
