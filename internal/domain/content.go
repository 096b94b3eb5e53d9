package domain

import (
	"encoding/json"
	"time"
)

// KnowledgeSections are the semantic sections consulted for keywords, in order.
var KnowledgeSections = []string{
	"business",
	"target_audience",
	"content_strategy",
	"brand",
	"competitors",
	"products",
	"seo",
	"goals",
}

// Knowledge is a tenant-scoped configuration bundle. Sections hold free-form
// JSON objects keyed by section name.
type Knowledge struct {
	ID        string                     `json:"id"`
	ClientID  string                     `json:"client_id,omitempty"`
	Name      string                     `json:"name"`
	Sections  map[string]json.RawMessage `json:"sections"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// ResearchVideo is a historical upload recorded for a competitor channel.
type ResearchVideo struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	ViewCount int64  `json:"view_count"`
}

// ResearchChannel is one competitor channel in a research record.
type ResearchChannel struct {
	ChannelID    string          `json:"channel_id"`
	Name         string          `json:"name"`
	Subscribers  int64           `json:"subscribers"`
	RecentVideos []ResearchVideo `json:"recent_videos"`
}

// AverageViews returns the mean view count over RecentVideos, or 0.
func (c ResearchChannel) AverageViews() float64 {
	if len(c.RecentVideos) == 0 {
		return 0
	}
	var total int64
	for _, v := range c.RecentVideos {
		total += v.ViewCount
	}
	return float64(total) / float64(len(c.RecentVideos))
}

// CompetitorResearch is the cached competitor record for a knowledge bundle.
type CompetitorResearch struct {
	KnowledgeID string            `json:"knowledge_id"`
	Channels    []ResearchChannel `json:"channels"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// PublishedVideo is one of the tenant's own uploads.
type PublishedVideo struct {
	ID              string    `json:"id"`
	KnowledgeID     string    `json:"knowledge_id"`
	PlatformVideoID string    `json:"platform_video_id"`
	Title           string    `json:"title"`
	PublishedAt     time.Time `json:"published_at"`
}

// Publication is a scheduled future upload.
type Publication struct {
	ID          string    `json:"id"`
	KnowledgeID string    `json:"knowledge_id"`
	Title       string    `json:"title"`
	Platform    string    `json:"platform"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// VideoMetric is one analytics row for a video over a reporting period.
type VideoMetric struct {
	ID               string    `json:"id"`
	KnowledgeID      string    `json:"knowledge_id"`
	VideoID          string    `json:"video_id"`
	RecordedAt       time.Time `json:"recorded_at"`
	Views            int64     `json:"views"`
	Likes            int64     `json:"likes"`
	Comments         int64     `json:"comments"`
	WatchTimeMinutes float64   `json:"watch_time_minutes"`
}
