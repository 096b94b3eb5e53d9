package domain

import (
	"context"
	"time"
)

// Adapter is the shared contract of every upstream vendor wrapper.
// Available is true only when credentials are present and not placeholders.
type Adapter interface {
	Name() string
	Available() bool
}

// Channel is a video-platform channel.
type Channel struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	SubscriberCount int64  `json:"subscriber_count"`
	VideoCount      int64  `json:"video_count"`
	ViewCount       int64  `json:"view_count"`
	IsMock          bool   `json:"_is_mock,omitempty"`
}

// Video is a video-platform upload with statistics.
type Video struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	IsMock       bool      `json:"_is_mock,omitempty"`
}

// Comment is a top-level audience comment.
type Comment struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"video_id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	PublishedAt time.Time `json:"published_at"`
	IsMock      bool      `json:"_is_mock,omitempty"`
}

// VideoPlatform reads channel, video and comment data. Failures yield empty lists.
type VideoPlatform interface {
	Adapter
	SearchChannels(ctx context.Context, query string, max int) []Channel
	GetChannelVideos(ctx context.Context, channelID string, max int) []Video
	SearchPopularVideos(ctx context.Context, query string, max int) []Video
	GetVideoComments(ctx context.Context, videoID string, max int) []Comment
}

// Trend directions.
const (
	DirectionUp   = "up"
	DirectionFlat = "flat"
	DirectionDown = "down"
)

// TrendEntry is one related query reported by the search-engine adapter.
type TrendEntry struct {
	Query     string `json:"query"`
	Value     int    `json:"value"`
	Direction string `json:"direction"`
}

// TrendResult is the search-engine response for one keyword.
type TrendResult struct {
	Keyword string       `json:"keyword"`
	Entries []TrendEntry `json:"entries"`
	IsMock  bool         `json:"_is_mock,omitempty"`
}

// UpCount returns how many entries trend upward.
func (r TrendResult) UpCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Direction == DirectionUp {
			n++
		}
	}
	return n
}

// SearchEngine reads search-trend data.
type SearchEngine interface {
	Adapter
	SearchTrends(ctx context.Context, keyword string) TrendResult
}

// ChannelStats is the channel-statistics vendor's headline record.
type ChannelStats struct {
	ChannelID   string `json:"channel_id"`
	Username    string `json:"username,omitempty"`
	Subscribers int64  `json:"subscribers"`
	TotalViews  int64  `json:"total_views"`
	VideoCount  int64  `json:"video_count"`
	Grade       string `json:"grade"`
	Rank        int64  `json:"rank"`
	IsMock      bool   `json:"_is_mock,omitempty"`
}

// HistoryPoint is one daily sample.
type HistoryPoint struct {
	Date        string `json:"date"`
	Subscribers int64  `json:"subscribers"`
	Views       int64  `json:"views"`
}

// ChannelHistory is a daily series for a channel.
type ChannelHistory struct {
	ChannelID string         `json:"channel_id"`
	Points    []HistoryPoint `json:"points"`
	IsMock    bool           `json:"_is_mock,omitempty"`
}

// ChannelGrowth holds growth estimates derived from history.
type ChannelGrowth struct {
	ChannelID              string  `json:"channel_id"`
	WeeklySubscriberGrowth int64   `json:"weekly_subscriber_growth"`
	WeeklyViewGrowth       int64   `json:"weekly_view_growth"`
	WeeklyGrowthRate       float64 `json:"weekly_growth_rate"`
	MonthlySubscriberDelta int64   `json:"monthly_subscriber_delta"`
	IsMock                 bool    `json:"_is_mock,omitempty"`
}

// Projection is a forecast at a horizon such as "30d".
type Projection struct {
	Horizon     string `json:"horizon"`
	Subscribers int64  `json:"subscribers"`
	Views       int64  `json:"views"`
}

// Projections lists forecasts for a channel.
type Projections struct {
	ChannelID string       `json:"channel_id"`
	Points    []Projection `json:"points"`
	IsMock    bool         `json:"_is_mock,omitempty"`
}

// ChannelAnalytics reads third-party channel statistics. Failures yield
// deterministic mocks.
type ChannelAnalytics interface {
	Adapter
	GetChannelStats(ctx context.Context, channelID string) ChannelStats
	GetChannelHistory(ctx context.Context, channelID string, days int) ChannelHistory
	GetChannelGrowth(ctx context.Context, channelID string) ChannelGrowth
	GetFutureProjections(ctx context.Context, channelID string) Projections
}

// TextResult is a generative-text response. Error is set and Content is
// empty when generation failed.
type TextResult struct {
	Content  string `json:"content"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// OK reports whether the result carries content.
func (r TextResult) OK() bool { return r.Error == "" && r.Content != "" }

// ScriptRequest describes a video script to draft.
type ScriptRequest struct {
	Topic           string   `json:"topic"`
	Keywords        []string `json:"keywords,omitempty"`
	TargetAudience  string   `json:"target_audience,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Tone            string   `json:"tone,omitempty"`
}

// CompetitorBrief is the input to competitor analysis.
type CompetitorBrief struct {
	ChannelName  string  `json:"channel_name"`
	VideoTitle   string  `json:"video_title"`
	ViewCount    int64   `json:"view_count"`
	AverageViews float64 `json:"average_views"`
	GrowthRate   float64 `json:"growth_rate"`
}

// CommentReplyRequest is the input to reply drafting.
type CommentReplyRequest struct {
	Author     string    `json:"author"`
	Comment    string    `json:"comment"`
	VideoTitle string    `json:"video_title"`
	Sentiment  Sentiment `json:"sentiment"`
	Guideline  string    `json:"guideline"`
}

// TextGenerator is a generative-text vendor.
type TextGenerator interface {
	Adapter
	GenerateScript(ctx context.Context, req ScriptRequest) TextResult
	GenerateTitle(ctx context.Context, topic string, keywords []string) TextResult
	GenerateDescription(ctx context.Context, title, summary string, keywords []string) TextResult
	AnalyzeTrend(ctx context.Context, keyword string, score float64) TextResult
	AnalyzeCompetitor(ctx context.Context, brief CompetitorBrief) TextResult
	AnalyzePerformance(ctx context.Context, report string) TextResult
	EvaluateScriptQuality(ctx context.Context, script, targetAudience string) TextResult
	AnalyzeKeywords(ctx context.Context, keywords []string) TextResult
	GenerateCommentReply(ctx context.Context, req CommentReplyRequest) TextResult
	SuggestImprovements(ctx context.Context, script string, weaknesses []string) TextResult
	GenerateKeywordIdeas(ctx context.Context, seed string, count int) TextResult
	ClassifySentiment(ctx context.Context, text string) TextResult
}

// Media job states.
const (
	MediaProcessing = "PROCESSING"
	MediaCompleted  = "COMPLETED"
	MediaFailed     = "FAILED"
)

// VideoRequest asks the media vendor to render a video.
type VideoRequest struct {
	Title    string `json:"title"`
	Script   string `json:"script"`
	AvatarID string `json:"avatar_id,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
}

// MediaJob is the state of a render job. A transient upstream failure
// leaves Status PROCESSING so callers keep polling.
type MediaJob struct {
	JobID    string `json:"job_id,omitempty"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// MediaGenerator renders avatar videos.
type MediaGenerator interface {
	Adapter
	CreateVideo(ctx context.Context, req VideoRequest) MediaJob
	GetVideoStatus(ctx context.Context, jobID string) MediaJob
}

// SpeechResult is synthesized audio.
type SpeechResult struct {
	AudioBase64 string `json:"audio_base64,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Characters  int    `json:"characters"`
	Error       string `json:"error,omitempty"`
}

// SpeechSynthesizer converts text to audio.
type SpeechSynthesizer interface {
	Adapter
	TextToSpeech(ctx context.Context, text, voiceID string) SpeechResult
}

// Upload is the result of an object-storage write. Fallback is true when URL
// is a data URL because storage was unavailable.
type Upload struct {
	URL      string `json:"url"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

// ObjectStorage stores generated media.
type ObjectStorage interface {
	Adapter
	UploadFromBase64(ctx context.Context, data, filename, contentType string) Upload
}
