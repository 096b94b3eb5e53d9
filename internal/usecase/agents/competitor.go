package agents

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"contentops/internal/domain"
	"contentops/internal/usecase/notice"
)

const (
	competitorMaxChannels  = 20
	competitorVideoSample  = 5
	competitorWindow       = 24 * time.Hour
	competitorFlagRatio    = 1.5
	competitorViralRate    = 100
	competitorHighRate     = 50
	competitorAnalysisSize = 100
)

// AnalyzedChannel summarizes one competitor channel check.
type AnalyzedChannel struct {
	ChannelID        string   `json:"channel_id"`
	Name             string   `json:"name"`
	AverageViews     float64  `json:"average_views"`
	RecentVideos     int      `json:"recent_videos"`
	Flagged          []string `json:"flagged_videos"`
	WeeklyGrowthRate *float64 `json:"weekly_growth_rate,omitempty"`
}

// CompetitorOutput is the Competitor Analyzer result.
type CompetitorOutput struct {
	AlertsCreated    int               `json:"alerts_created"`
	ChannelsChecked  int               `json:"channels_checked"`
	AnalyzedChannels []AnalyzedChannel `json:"analyzed_channels"`
}

// CompetitorAnalyzer flags competitor uploads that beat their channel average.
type CompetitorAnalyzer struct {
	deps   Deps
	logger *slog.Logger
}

// NewCompetitorAnalyzer creates the service.
func NewCompetitorAnalyzer(d Deps) *CompetitorAnalyzer {
	return &CompetitorAnalyzer{deps: d, logger: d.logger(domain.AgentCompetitorAnalyzer)}
}

// Execute checks the competitor channels in the knowledge bundle's research record.
func (s *CompetitorAnalyzer) Execute(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, _ json.RawMessage) (json.RawMessage, error) {
	out := CompetitorOutput{AnalyzedChannels: []AnalyzedChannel{}}
	research, err := s.deps.Store.GetCompetitorResearch(ctx, agent.KnowledgeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("no competitor research recorded", "knowledge_id", agent.KnowledgeID)
			return encodeOutput(out)
		}
		return nil, domain.WrapOp("CompetitorAnalyzer.Execute", err)
	}

	channels := research.Channels
	if len(channels) > competitorMaxChannels {
		channels = channels[:competitorMaxChannels]
	}
	for _, ch := range channels {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		summary, created, err := s.checkChannel(ctx, agent, task, ch)
		if err != nil {
			return nil, err
		}
		out.ChannelsChecked++
		out.AlertsCreated += created
		out.AnalyzedChannels = append(out.AnalyzedChannels, summary)
	}
	s.logger.Info("competitor check finished", "agent_id", agent.ID, "channels", out.ChannelsChecked, "alerts", out.AlertsCreated)
	return encodeOutput(out)
}

func (s *CompetitorAnalyzer) checkChannel(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, ch domain.ResearchChannel) (AnalyzedChannel, int, error) {
	summary := AnalyzedChannel{ChannelID: ch.ChannelID, Name: ch.Name, AverageViews: round2(ch.AverageViews()), Flagged: []string{}}

	cutoff := s.deps.now().Add(-competitorWindow)
	var recent []domain.Video
	for _, v := range s.deps.Video.GetChannelVideos(ctx, ch.ChannelID, competitorVideoSample) {
		if !v.PublishedAt.Before(cutoff) {
			recent = append(recent, v)
		}
	}
	summary.RecentVideos = len(recent)

	avg := ch.AverageViews()
	if len(recent) == 0 || avg <= 0 {
		return summary, 0, nil
	}

	// Best effort: mocks and failures still return a value, never an error.
	growth := s.deps.Analytics.GetChannelGrowth(ctx, ch.ChannelID)
	if !growth.IsMock {
		rate := growth.WeeklyGrowthRate
		summary.WeeklyGrowthRate = &rate
	}

	created := 0
	for _, v := range recent {
		if float64(v.ViewCount) < competitorFlagRatio*avg {
			continue
		}
		if err := checkCancelled(ctx); err != nil {
			return summary, created, err
		}
		summary.Flagged = append(summary.Flagged, v.ID)
		added, err := s.raise(ctx, agent, task, ch, v, avg, summary.WeeklyGrowthRate)
		if err != nil {
			return summary, created, err
		}
		if added {
			created++
		}
	}
	return summary, created, nil
}

func (s *CompetitorAnalyzer) raise(ctx context.Context, agent *domain.Agent, task *domain.AgentTask,
	ch domain.ResearchChannel, v domain.Video, avg float64, weekly *float64) (bool, error) {
	growthRate := round2((float64(v.ViewCount)/avg - 1) * 100)
	alertType := classifyCompetitor(growthRate)
	analysis := s.analyze(ctx, domain.CompetitorBrief{
		ChannelName:  ch.Name,
		VideoTitle:   v.Title,
		ViewCount:    v.ViewCount,
		AverageViews: avg,
		GrowthRate:   growthRate,
	})

	metricsJSON, _ := json.Marshal(map[string]any{
		"view_count":         v.ViewCount,
		"like_count":         v.LikeCount,
		"comment_count":      v.CommentCount,
		"average_views":      round2(avg),
		"growth_rate":        growthRate,
		"weekly_growth_rate": weekly,
		"published_at":       v.PublishedAt,
	})
	responses := []string{}
	if analysis.SuggestedResponse != nil {
		responses = append(responses, *analysis.SuggestedResponse)
	}

	alert := &domain.CompetitorAlert{
		AgentID:            agent.ID,
		TaskID:             task.ID,
		KnowledgeID:        agent.KnowledgeID,
		CompetitorChannel:  ch.ChannelID,
		CompetitorName:     ch.Name,
		VideoID:            v.ID,
		VideoTitle:         v.Title,
		AlertType:          alertType,
		Analysis:           analysis,
		PerformanceMetrics: metricsJSON,
		SuggestedResponses: responses,
		CreatedAt:          s.deps.now(),
	}
	added, err := s.deps.Store.CreateCompetitorAlert(ctx, alert)
	if err != nil {
		return false, domain.WrapOp("CompetitorAnalyzer.raise", err)
	}
	if added {
		notice.NotifyCompetitorAlert(ctx, s.deps.Notifier, ch.Name, v.Title, alertType, v.ViewCount, growthRate)
	}
	return added, nil
}

// classifyCompetitor grades growth over the channel average, in percent.
func classifyCompetitor(growthRate float64) domain.CompetitorAlertType {
	switch {
	case growthRate >= competitorViralRate:
		return domain.CompetitorViral
	case growthRate >= competitorHighRate:
		return domain.CompetitorHighPerformer
	default:
		return domain.CompetitorNewVideo
	}
}

// analyze asks the text vendor to explain the video. Any failure leaves
// all three fields nil.
func (s *CompetitorAnalyzer) analyze(ctx context.Context, brief domain.CompetitorBrief) domain.CompetitorAnalysis {
	res := s.deps.Text.AnalyzeCompetitor(ctx, brief)
	if !res.OK() {
		return domain.CompetitorAnalysis{}
	}
	var parsed struct {
		TitleAnalysis       string `json:"title_analysis"`
		PerformanceInsights string `json:"performance_insights"`
		SuggestedResponse   string `json:"suggested_response"`
	}
	if err := parseModelJSON(res.Content, &parsed); err != nil {
		s.logger.Warn("competitor analysis unreadable", "video_title", brief.VideoTitle, "error", err)
		return domain.CompetitorAnalysis{}
	}
	return domain.CompetitorAnalysis{
		TitleAnalysis:       analysisField(parsed.TitleAnalysis),
		PerformanceInsights: analysisField(parsed.PerformanceInsights),
		SuggestedResponse:   analysisField(parsed.SuggestedResponse),
	}
}

func analysisField(s string) *string {
	if s == "" {
		return nil
	}
	s = truncateRunes(s, competitorAnalysisSize)
	return &s
}
