package agents

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"contentops/internal/domain"
)

const (
	defaultLookbackDays = 30
	performanceTopN     = 5
	bucketDay           = "day"
)

// Snapshot metric names.
const (
	MetricViews     = "views"
	MetricLikes     = "likes"
	MetricComments  = "comments"
	MetricWatchTime = "watch_time_minutes"
)

// PerformanceInput sets the lookback window.
type PerformanceInput struct {
	LookbackDays int `json:"lookback_days,omitempty"`
}

// PerformanceTotals are summed metrics.
type PerformanceTotals struct {
	Views            int64   `json:"views"`
	Likes            int64   `json:"likes"`
	Comments         int64   `json:"comments"`
	WatchTimeMinutes float64 `json:"watch_time_minutes"`
}

func (t *PerformanceTotals) add(m *domain.VideoMetric) {
	t.Views += m.Views
	t.Likes += m.Likes
	t.Comments += m.Comments
	t.WatchTimeMinutes += m.WatchTimeMinutes
}

// VideoPerformance is one video's totals over the window.
type VideoPerformance struct {
	VideoID string `json:"video_id"`
	PerformanceTotals
}

// PerformanceOutput is the Performance Learner result.
type PerformanceOutput struct {
	VideosAnalyzed   int                `json:"videos_analyzed"`
	Days             int                `json:"days"`
	SnapshotsWritten int                `json:"snapshots_written"`
	Totals           PerformanceTotals  `json:"totals"`
	TopVideos        []VideoPerformance `json:"top_videos"`
	Summary          string             `json:"summary"`
	Insights         []string           `json:"insights"`
	AIGenerated      bool               `json:"ai_generated"`
}

// PerformanceLearner rolls analytics rows into daily snapshots and summarizes them.
type PerformanceLearner struct {
	deps   Deps
	logger *slog.Logger
}

// NewPerformanceLearner creates the service.
func NewPerformanceLearner(d Deps) *PerformanceLearner {
	return &PerformanceLearner{deps: d, logger: d.logger(domain.AgentPerformanceLearner)}
}

func (s *PerformanceLearner) InputSchema() []byte {
	return []byte(`{"type":"object","properties":{"lookback_days":{"type":"integer","minimum":1,"maximum":365}}}`)
}

type dayKey struct {
	video string
	day   time.Time
}

// Execute aggregates the lookback window per (video, UTC day), writes the
// snapshots and asks the text vendor for insights.
func (s *PerformanceLearner) Execute(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, input json.RawMessage) (json.RawMessage, error) {
	in, err := decodeInput[PerformanceInput](input)
	if err != nil {
		return nil, err
	}
	days := cmp.Or(in.LookbackDays, defaultLookbackDays)
	now := s.deps.now()
	rows, err := s.deps.Store.ListVideoMetrics(ctx, agent.KnowledgeID, now.AddDate(0, 0, -days))
	if err != nil {
		return nil, domain.WrapOp("PerformanceLearner.Execute", err)
	}

	buckets := AggregateDaily(rows)
	out := PerformanceOutput{Days: days, TopVideos: []VideoPerformance{}, Insights: []string{}}
	perVideo := map[string]*VideoPerformance{}
	for _, m := range rows {
		vp, ok := perVideo[m.VideoID]
		if !ok {
			vp = &VideoPerformance{VideoID: m.VideoID}
			perVideo[m.VideoID] = vp
		}
		vp.add(m)
		out.Totals.add(m)
	}
	out.VideosAnalyzed = len(perVideo)

	snaps := s.snapshots(agent, task, buckets, now)
	if len(snaps) > 0 {
		if err := s.deps.Store.UpsertMetricSnapshots(ctx, snaps); err != nil {
			return nil, domain.WrapOp("PerformanceLearner.Execute", err)
		}
	}
	out.SnapshotsWritten = len(snaps)

	ranked := make([]VideoPerformance, 0, len(perVideo))
	for _, vp := range perVideo {
		ranked = append(ranked, *vp)
	}
	slices.SortFunc(ranked, func(a, b VideoPerformance) int {
		return cmp.Or(cmp.Compare(b.Views, a.Views), cmp.Compare(a.VideoID, b.VideoID))
	})
	if len(ranked) > performanceTopN {
		ranked = ranked[:performanceTopN]
	}
	out.TopVideos = ranked

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	report := performanceReport(out)
	out.Summary = report
	if out.VideosAnalyzed > 0 {
		if res := s.deps.Text.AnalyzePerformance(ctx, report); res.OK() {
			out.Insights = splitLines(res.Content)
			out.AIGenerated = true
		} else {
			out.Insights = fallbackInsights(out)
		}
	}
	s.logger.Info("performance learned", "agent_id", agent.ID, "videos", out.VideosAnalyzed, "snapshots", out.SnapshotsWritten)
	return encodeOutput(out)
}

// AggregateDaily sums metric rows per (video, UTC day).
func AggregateDaily(rows []*domain.VideoMetric) map[dayKey]*PerformanceTotals {
	out := make(map[dayKey]*PerformanceTotals)
	for _, m := range rows {
		t := m.RecordedAt.UTC()
		k := dayKey{video: m.VideoID, day: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
		agg, ok := out[k]
		if !ok {
			agg = &PerformanceTotals{}
			out[k] = agg
		}
		agg.add(m)
	}
	return out
}

func (s *PerformanceLearner) snapshots(agent *domain.Agent, task *domain.AgentTask, buckets map[dayKey]*PerformanceTotals, now time.Time) []*domain.MetricSnapshot {
	keys := make([]dayKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b dayKey) int {
		return cmp.Or(cmp.Compare(a.video, b.video), a.day.Compare(b.day))
	})

	snaps := make([]*domain.MetricSnapshot, 0, len(keys)*4)
	for _, k := range keys {
		agg := buckets[k]
		for _, mv := range []struct {
			name  string
			value float64
		}{
			{MetricViews, float64(agg.Views)},
			{MetricLikes, float64(agg.Likes)},
			{MetricComments, float64(agg.Comments)},
			{MetricWatchTime, agg.WatchTimeMinutes},
		} {
			snaps = append(snaps, &domain.MetricSnapshot{
				AgentID:     agent.ID,
				TaskID:      task.ID,
				KnowledgeID: agent.KnowledgeID,
				Subject:     k.video,
				Metric:      mv.name,
				Bucket:      bucketDay,
				BucketStart: k.day,
				Value:       mv.value,
				CreatedAt:   now,
			})
		}
	}
	return snaps
}

func performanceReport(o PerformanceOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d days: %d videos, %d views, %d likes, %d comments, %.0f watch minutes.\n",
		o.Days, o.VideosAnalyzed, o.Totals.Views, o.Totals.Likes, o.Totals.Comments, o.Totals.WatchTimeMinutes)
	for i, v := range o.TopVideos {
		fmt.Fprintf(&b, "%d. %s: %d views, %d likes, %d comments\n", i+1, v.VideoID, v.Views, v.Likes, v.Comments)
	}
	return strings.TrimSpace(b.String())
}

func fallbackInsights(o PerformanceOutput) []string {
	out := []string{}
	if len(o.TopVideos) > 0 {
		top := o.TopVideos[0]
		out = append(out, fmt.Sprintf("Top video %s drew %d views.", top.VideoID, top.Views))
	}
	if o.Totals.Views > 0 {
		rate := float64(o.Totals.Likes) / float64(o.Totals.Views) * 100
		out = append(out, fmt.Sprintf("Like rate is %.2f%% of views.", rate))
	}
	if o.Days > 0 {
		out = append(out, fmt.Sprintf("Average %.0f views per day.", float64(o.Totals.Views)/float64(o.Days)))
	}
	return out
}
