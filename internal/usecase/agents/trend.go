package agents

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"contentops/internal/domain"
	"contentops/internal/usecase/notice"
)

const (
	trendMaxKeywords   = 20
	trendMinScore      = 50
	trendSpikeScore    = 70
	trendVideoSample   = 10
	trendUpWeight      = 15
	trendSearchWeight  = 0.4
	trendYouTubeWeight = 0.6
)

// trendSeeds are checked when the knowledge bundle names no keywords.
var trendSeeds = []string{"AIアバター", "AI動画生成", "バーチャルYouTuber", "動画編集 AI"}

// TrendInput overrides the keyword list derived from knowledge.
type TrendInput struct {
	Keywords []string `json:"keywords,omitempty"`
}

// TrendFound is one keyword that produced an alert.
type TrendFound struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	AlertID string  `json:"alert_id"`
}

// TrendOutput is the Trend Monitor result.
type TrendOutput struct {
	AlertsCreated   int          `json:"alerts_created"`
	KeywordsChecked int          `json:"keywords_checked"`
	TrendsFound     []TrendFound `json:"trends_found"`
}

// TrendMonitor surfaces rising search terms.
type TrendMonitor struct {
	deps   Deps
	logger *slog.Logger
}

// NewTrendMonitor creates the service.
func NewTrendMonitor(d Deps) *TrendMonitor {
	return &TrendMonitor{deps: d, logger: d.logger(domain.AgentTrendMonitor)}
}

func (s *TrendMonitor) InputSchema() []byte {
	return []byte(`{"type":"object","properties":{"keywords":{"type":"array","items":{"type":"string"}}}}`)
}

type trendSignal struct {
	keyword      string
	trends       domain.TrendResult
	videos       []domain.Video
	trendsScore  float64
	youtubeScore float64
	score        float64
}

// Execute checks each keyword and writes an alert for every one scoring 50
// or more.
func (s *TrendMonitor) Execute(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, input json.RawMessage) (json.RawMessage, error) {
	in, err := decodeInput[TrendInput](input)
	if err != nil {
		return nil, err
	}
	keywords := dedupeKeywords(in.Keywords, trendMaxKeywords)
	if len(keywords) == 0 {
		keywords = s.knowledgeKeywords(ctx, agent.KnowledgeID)
	}
	if len(keywords) == 0 {
		keywords = trendSeeds
	}

	out := TrendOutput{TrendsFound: []TrendFound{}}
	for _, kw := range keywords {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		sig, err := s.measure(ctx, kw)
		if err != nil {
			return nil, err
		}
		out.KeywordsChecked++
		if sig.score < trendMinScore {
			continue
		}

		alert, err := s.raise(ctx, agent, task, sig)
		if err != nil {
			return nil, err
		}
		out.AlertsCreated++
		out.TrendsFound = append(out.TrendsFound, TrendFound{Keyword: kw, Score: sig.score, AlertID: alert.ID})
	}
	s.logger.Info("trend check finished", "agent_id", agent.ID, "keywords", out.KeywordsChecked, "alerts", out.AlertsCreated)
	return encodeOutput(out)
}

// measure queries both vendors concurrently and scores the keyword.
func (s *TrendMonitor) measure(ctx context.Context, keyword string) (trendSignal, error) {
	sig := trendSignal{keyword: keyword}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sig.trends = s.deps.Search.SearchTrends(gctx, keyword)
		return nil
	})
	g.Go(func() error {
		sig.videos = s.deps.Video.SearchPopularVideos(gctx, keyword, trendVideoSample)
		return nil
	})
	_ = g.Wait()
	if err := checkCancelled(ctx); err != nil {
		return sig, err
	}

	sig.trendsScore = math.Min(float64(trendUpWeight*sig.trends.UpCount()), 100)
	if n := len(sig.videos); n > 0 {
		var total int64
		for _, v := range sig.videos {
			total += v.ViewCount
		}
		avg := float64(total) / float64(n)
		sig.youtubeScore = math.Min(avg/1000, 100)
	}
	sig.score = round2(trendSearchWeight*sig.trendsScore + trendYouTubeWeight*sig.youtubeScore)
	return sig, nil
}

func (s *TrendMonitor) raise(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, sig trendSignal) (*domain.TrendAlert, error) {
	importance, analysis := s.grade(ctx, sig)
	alertType := domain.TrendRising
	if sig.score >= trendSpikeScore {
		alertType = domain.TrendKeywordSpike
	}

	related := map[string]any{
		"trends_score":   sig.trendsScore,
		"youtube_score":  round2(sig.youtubeScore),
		"rising_queries": risingQueries(sig.trends, 5),
		"top_videos":     topVideoTitles(sig.videos, 3),
	}
	if analysis != "" {
		related["analysis"] = analysis
	}
	relatedJSON, _ := json.Marshal(related)

	now := s.deps.now()
	alert := &domain.TrendAlert{
		AgentID:          agent.ID,
		TaskID:           task.ID,
		KnowledgeID:      agent.KnowledgeID,
		Keyword:          sig.keyword,
		Score:            sig.score,
		AlertType:        alertType,
		Importance:       importance,
		RelatedData:      relatedJSON,
		SuggestedActions: trendActions(sig.keyword, sig.score),
		ExpiresAt:        now.Add(domain.TrendAlertTTL),
		CreatedAt:        now,
	}
	if err := s.deps.Store.CreateTrendAlert(ctx, alert); err != nil {
		return nil, domain.WrapOp("TrendMonitor.raise", err)
	}
	notice.NotifyTrendAlert(ctx, s.deps.Notifier, sig.keyword, sig.score, importance, alertType)
	return alert, nil
}

// grade asks the text vendor for an importance rating, falling back to the
// score when the vendor is unavailable or its answer is unreadable.
func (s *TrendMonitor) grade(ctx context.Context, sig trendSignal) (domain.Importance, string) {
	fallback := domain.ImportanceMedium
	if sig.score >= trendSpikeScore {
		fallback = domain.ImportanceHigh
	}
	if !s.deps.Text.Available() {
		return fallback, ""
	}
	res := s.deps.Text.AnalyzeTrend(ctx, sig.keyword, sig.score)
	if !res.OK() {
		return fallback, ""
	}
	if imp, ok := parseImportance(res.Content); ok {
		return imp, res.Content
	}
	return fallback, res.Content
}

// parseImportance reads "importance: high|medium|low" from the first line.
func parseImportance(content string) (domain.Importance, bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	line = strings.ToLower(line)
	if _, v, ok := strings.Cut(line, ":"); ok {
		line = v
	}
	switch imp := domain.Importance(strings.Trim(strings.TrimSpace(line), "*.\"' ")); imp {
	case domain.ImportanceHigh, domain.ImportanceMedium, domain.ImportanceLow:
		return imp, true
	}
	return "", false
}

func trendActions(keyword string, score float64) []domain.SuggestedAction {
	lead := "medium"
	if score >= trendSpikeScore {
		lead = "high"
	}
	return []domain.SuggestedAction{
		{Action: "Plan a video about " + keyword, Priority: lead},
		{Action: "Work " + keyword + " into upcoming titles and descriptions", Priority: lead},
		{Action: "Watch " + keyword + " over the next 48 hours", Priority: "low"},
	}
}

func risingQueries(r domain.TrendResult, n int) []string {
	out := []string{}
	for _, e := range r.Entries {
		if len(out) == n {
			break
		}
		if e.Direction == domain.DirectionUp {
			out = append(out, e.Query)
		}
	}
	return out
}

func topVideoTitles(videos []domain.Video, n int) []string {
	out := []string{}
	for _, v := range videos {
		if len(out) == n {
			break
		}
		out = append(out, v.Title)
	}
	return out
}

// knowledgeKeywords collects keywords from the bundle sections. A missing
// bundle yields nothing so the seeds take over.
func (s *TrendMonitor) knowledgeKeywords(ctx context.Context, knowledgeID string) []string {
	if knowledgeID == "" {
		return nil
	}
	k, err := s.deps.Store.GetKnowledge(ctx, knowledgeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("knowledge lookup failed", "knowledge_id", knowledgeID, "error", err)
		}
		return nil
	}
	return KnowledgeKeywords(k, trendMaxKeywords)
}

// KnowledgeKeywords extracts "keywords" and "target_keywords" from each
// known section, in section order, de-duplicated and capped at max.
func KnowledgeKeywords(k *domain.Knowledge, max int) []string {
	var raw []string
	for _, name := range domain.KnowledgeSections {
		sec, ok := k.Sections[name]
		if !ok {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(sec, &fields); err != nil {
			continue
		}
		for _, key := range []string{"keywords", "target_keywords"} {
			switch v := fields[key].(type) {
			case string:
				raw = append(raw, v)
			case []any:
				for _, item := range v {
					if str, ok := item.(string); ok {
						raw = append(raw, str)
					}
				}
			}
		}
	}
	return dedupeKeywords(raw, max)
}

// dedupeKeywords trims, drops blanks and case-insensitive duplicates, and
// keeps the first max entries.
func dedupeKeywords(in []string, max int) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
