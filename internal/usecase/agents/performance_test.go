package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

func seedMetric(t *testing.T, h *harness, kb, video string, at time.Time, views, likes int64) {
	t.Helper()
	require.NoError(t, h.store.PutVideoMetric(context.Background(), &domain.VideoMetric{
		KnowledgeID:      kb,
		VideoID:          video,
		RecordedAt:       at,
		Views:            views,
		Likes:            likes,
		Comments:         1,
		WatchTimeMinutes: 2.5,
	}))
}

func TestPerformanceLearnerAggregatesDaily(t *testing.T) {
	h := newHarness(t)
	day1 := time.Date(2026, 9, 10, 3, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 9, 11, 22, 0, 0, 0, time.UTC)
	seedMetric(t, h, "kb", "vid-a", day1, 100, 10)
	seedMetric(t, h, "kb", "vid-a", day1.Add(5*time.Hour), 50, 5)
	seedMetric(t, h, "kb", "vid-a", day2, 300, 30)
	seedMetric(t, h, "kb", "vid-b", day2, 1000, 20)
	seedMetric(t, h, "kb", "vid-old", testNow.AddDate(0, 0, -40), 99_999, 0)
	seedMetric(t, h, "other", "vid-x", day1, 5, 0)
	agent, task := h.agent(t, domain.AgentPerformanceLearner, "kb")
	svc := NewPerformanceLearner(h.deps())

	out := run[PerformanceOutput](t, svc, agent, task, "")

	assert.Equal(t, 30, out.Days)
	assert.Equal(t, 2, out.VideosAnalyzed)
	assert.Equal(t, int64(1450), out.Totals.Views)
	assert.Equal(t, int64(65), out.Totals.Likes)
	assert.Equal(t, int64(4), out.Totals.Comments)
	assert.InDelta(t, 10.0, out.Totals.WatchTimeMinutes, 0.001)
	// Three (video, day) buckets with four metrics each.
	assert.Equal(t, 12, out.SnapshotsWritten)

	require.Len(t, out.TopVideos, 2)
	assert.Equal(t, "vid-b", out.TopVideos[0].VideoID)
	assert.Equal(t, int64(450), out.TopVideos[1].Views)

	assert.False(t, out.AIGenerated)
	assert.NotEmpty(t, out.Insights)
	assert.Contains(t, out.Summary, "2 videos")

	views, err := h.store.ListMetricSnapshots(context.Background(), agent.ID, MetricViews)
	require.NoError(t, err)
	require.Len(t, views, 3)
	byBucket := map[string]float64{}
	for _, s := range views {
		assert.Equal(t, "day", s.Bucket)
		byBucket[s.Subject+"@"+s.BucketStart.UTC().Format("2006-01-02")] = s.Value
	}
	assert.Equal(t, map[string]float64{
		"vid-a@2026-09-10": 150,
		"vid-a@2026-09-11": 300,
		"vid-b@2026-09-11": 1000,
	}, byBucket)

	// A rerun replaces the buckets instead of duplicating them.
	run[PerformanceOutput](t, svc, agent, task, "")
	views, err = h.store.ListMetricSnapshots(context.Background(), agent.ID, MetricViews)
	require.NoError(t, err)
	assert.Len(t, views, 3)
}

func TestPerformanceLearnerUsesModelInsights(t *testing.T) {
	h := newHarness(t)
	seedMetric(t, h, "kb", "vid-a", testNow.Add(-time.Hour), 10, 1)
	var report string
	h.text.performance = func(r string) domain.TextResult {
		report = r
		return ok("- Post on weekends\n- Shorter intros")
	}
	agent, task := h.agent(t, domain.AgentPerformanceLearner, "kb")

	out := run[PerformanceOutput](t, NewPerformanceLearner(h.deps()), agent, task, `{"lookback_days":7}`)

	assert.Equal(t, 7, out.Days)
	assert.True(t, out.AIGenerated)
	assert.Equal(t, []string{"Post on weekends", "Shorter intros"}, out.Insights)
	assert.Contains(t, report, "vid-a")
}

func TestPerformanceLearnerEmptyWindow(t *testing.T) {
	h := newHarness(t)
	agent, task := h.agent(t, domain.AgentPerformanceLearner, "kb")

	out := run[PerformanceOutput](t, NewPerformanceLearner(h.deps()), agent, task, "")
	assert.Zero(t, out.VideosAnalyzed)
	assert.Zero(t, out.SnapshotsWritten)
	assert.Empty(t, out.Insights)
	assert.Zero(t, h.text.count("performance"))
}

func TestAggregateDaily(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	// 08:00 JST on the 11th is 23:00 UTC on the 10th.
	rows := []*domain.VideoMetric{
		{VideoID: "v", RecordedAt: time.Date(2026, 9, 11, 8, 0, 0, 0, jst), Views: 1},
		{VideoID: "v", RecordedAt: time.Date(2026, 9, 10, 1, 0, 0, 0, time.UTC), Views: 2},
	}
	got := AggregateDaily(rows)
	require.Len(t, got, 1)
	for k, v := range got {
		assert.Equal(t, time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC), k.day)
		assert.Equal(t, int64(3), v.Views)
	}
}
