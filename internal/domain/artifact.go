package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TrendAlertType is the subtype of a trend alert.
type TrendAlertType string

const (
	TrendKeywordSpike TrendAlertType = "keyword_spike"
	TrendRising       TrendAlertType = "rising_trend"
)

// Importance is the graded urgency of a trend.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// SuggestedAction is one recommended follow-up attached to an alert.
type SuggestedAction struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// TrendAlert is produced by the trend monitor.
type TrendAlert struct {
	ID               string            `json:"id"`
	AgentID          string            `json:"agent_id"`
	TaskID           string            `json:"task_id,omitempty"`
	KnowledgeID      string            `json:"knowledge_id,omitempty"`
	Keyword          string            `json:"keyword"`
	Score            float64           `json:"score"`
	AlertType        TrendAlertType    `json:"alert_type"`
	Importance       Importance        `json:"importance"`
	RelatedData      json.RawMessage   `json:"related_data,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	IsRead           bool              `json:"is_read"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TrendAlertTTL is how long a trend alert stays relevant.
const TrendAlertTTL = 7 * 24 * time.Hour

// CompetitorAlertType is the subtype of a competitor alert.
type CompetitorAlertType string

const (
	CompetitorViral         CompetitorAlertType = "viral_video"
	CompetitorHighPerformer CompetitorAlertType = "high_performer"
	CompetitorNewVideo      CompetitorAlertType = "new_video"
)

// CompetitorAnalysis is the generated explanation for an over-performing video.
// Fields are nil when generation failed.
type CompetitorAnalysis struct {
	TitleAnalysis       *string `json:"title_analysis"`
	PerformanceInsights *string `json:"performance_insights"`
	SuggestedResponse   *string `json:"suggested_response"`
}

// CompetitorAlert is produced by the competitor analyzer. It is unique per
// (agent, competitor video).
type CompetitorAlert struct {
	ID                 string              `json:"id"`
	AgentID            string              `json:"agent_id"`
	TaskID             string              `json:"task_id,omitempty"`
	KnowledgeID        string              `json:"knowledge_id,omitempty"`
	CompetitorChannel  string              `json:"competitor_channel_id"`
	CompetitorName     string              `json:"competitor_name,omitempty"`
	VideoID            string              `json:"video_id"`
	VideoTitle         string              `json:"video_title"`
	AlertType          CompetitorAlertType `json:"alert_type"`
	Analysis           CompetitorAnalysis  `json:"analysis"`
	PerformanceMetrics json.RawMessage     `json:"performance_metrics,omitempty"`
	SuggestedResponses []string            `json:"suggested_responses"`
	IsRead             bool                `json:"is_read"`
	CreatedAt          time.Time           `json:"created_at"`
}

// Sentiment classifies an audience comment.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentQuestion Sentiment = "QUESTION"
)

// ParseSentiment maps free-form labels ("positive", "Question.") to a Sentiment.
func ParseSentiment(s string) (Sentiment, bool) {
	v := Sentiment(strings.ToUpper(strings.Trim(strings.TrimSpace(s), "\"'.")))
	switch v {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentQuestion:
		return v, true
	}
	return "", false
}

// CommentState is the approval state of a queued reply.
type CommentState string

const (
	CommentPending  CommentState = "PENDING"
	CommentApproved CommentState = "APPROVED"
	CommentRejected CommentState = "REJECTED"
	CommentPosted   CommentState = "POSTED"
)

// Reply generator tags.
const (
	GeneratorTemplate = "template"
	GeneratorAI       = "ai"
)

// CommentQueueEntry is a drafted reply awaiting human approval. SourceCommentID
// is unique across the queue.
type CommentQueueEntry struct {
	ID               string       `json:"id"`
	AgentID          string       `json:"agent_id"`
	TaskID           string       `json:"task_id,omitempty"`
	KnowledgeID      string       `json:"knowledge_id,omitempty"`
	VideoID          string       `json:"video_id"`
	VideoTitle       string       `json:"video_title,omitempty"`
	SourceCommentID  string       `json:"source_comment_id"`
	Author           string       `json:"author"`
	OriginalText     string       `json:"original_text"`
	Sentiment        Sentiment    `json:"sentiment"`
	IsQuestion       bool         `json:"is_question"`
	ReplyText        string       `json:"reply_text"`
	GeneratedBy      string       `json:"generated_by"`
	TemplateID       string       `json:"template_id,omitempty"`
	State            CommentState `json:"state"`
	RequiresApproval bool         `json:"requires_approval"`
	CreatedAt        time.Time    `json:"created_at"`
}

// CommentTemplate is an operator-authored reply pattern.
type CommentTemplate struct {
	ID              string    `json:"id"`
	KnowledgeID     string    `json:"knowledge_id,omitempty"`
	Name            string    `json:"name"`
	TargetSentiment Sentiment `json:"target_sentiment"`
	TemplateText    string    `json:"template_text"`
	UseAIGeneration bool      `json:"use_ai_generation"`
	IsActive        bool      `json:"is_active"`
	Priority        int       `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`
}

// AgentSchedule binds a cron expression to an agent type.
type AgentSchedule struct {
	ID             string          `json:"id"`
	AgentType      AgentType       `json:"agent_type"`
	KnowledgeID    string          `json:"knowledge_id,omitempty"`
	Name           string          `json:"name"`
	CronExpression string          `json:"cron_expression"`
	Input          json.RawMessage `json:"input,omitempty"`
	Enabled        bool            `json:"enabled"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MetricSnapshot is a time-bucketed numeric aggregate. (AgentID, Subject,
// Metric, BucketStart) is unique; re-writing a bucket replaces its value.
type MetricSnapshot struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	TaskID      string    `json:"task_id,omitempty"`
	KnowledgeID string    `json:"knowledge_id,omitempty"`
	Subject     string    `json:"subject"`
	Metric      string    `json:"metric"`
	Bucket      string    `json:"bucket"`
	BucketStart time.Time `json:"bucket_start"`
	Value       float64   `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}
