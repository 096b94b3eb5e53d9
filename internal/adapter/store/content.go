package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contentops/internal/domain"
)

func (s *Store) GetKnowledge(ctx context.Context, id string) (*domain.Knowledge, error) {
	var (
		k                domain.Knowledge
		sections         string
		created, updated string
	)
	err := s.queryRow(ctx, "SELECT id, client_id, name, sections, created_at, updated_at FROM knowledge WHERE id = ?", id).
		Scan(&k.ID, &k.ClientID, &k.Name, &sections, &created, &updated)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("knowledge", "store.GetKnowledge", id)
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(sections), &k.Sections); err != nil {
		return nil, fmt.Errorf("decode knowledge sections for %s: %w", id, err)
	}
	k.CreatedAt = parseTS(created)
	k.UpdatedAt = parseTS(updated)
	return &k, nil
}

// PutKnowledge inserts or replaces a knowledge record.
func (s *Store) PutKnowledge(ctx context.Context, k *domain.Knowledge) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	k.UpdatedAt = now
	if k.Sections == nil {
		k.Sections = map[string]json.RawMessage{}
	}
	sections, err := json.Marshal(k.Sections)
	if err != nil {
		return fmt.Errorf("marshal knowledge sections: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO knowledge (id, client_id, name, sections, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET client_id = excluded.client_id, name = excluded.name,
			sections = excluded.sections, updated_at = excluded.updated_at`,
		k.ID, k.ClientID, k.Name, string(sections), ts(k.CreatedAt), ts(k.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put knowledge: %w", err)
	}
	return nil
}

// GetCompetitorResearch returns the stored research or an empty record.
func (s *Store) GetCompetitorResearch(ctx context.Context, knowledgeID string) (*domain.CompetitorResearch, error) {
	var channels, updated string
	err := s.queryRow(ctx, "SELECT channels, updated_at FROM competitor_research WHERE knowledge_id = ?", knowledgeID).
		Scan(&channels, &updated)
	if err != nil {
		if isNoRows(err) {
			return &domain.CompetitorResearch{KnowledgeID: knowledgeID}, nil
		}
		return nil, err
	}
	r := &domain.CompetitorResearch{KnowledgeID: knowledgeID, UpdatedAt: parseTS(updated)}
	if err := json.Unmarshal([]byte(channels), &r.Channels); err != nil {
		return nil, fmt.Errorf("decode competitor research for %s: %w", knowledgeID, err)
	}
	return r, nil
}

func (s *Store) PutCompetitorResearch(ctx context.Context, r *domain.CompetitorResearch) error {
	r.UpdatedAt = s.now().UTC()
	if r.Channels == nil {
		r.Channels = []domain.ResearchChannel{}
	}
	channels, err := json.Marshal(r.Channels)
	if err != nil {
		return fmt.Errorf("marshal competitor research: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO competitor_research (knowledge_id, channels, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (knowledge_id) DO UPDATE SET channels = excluded.channels, updated_at = excluded.updated_at`,
		r.KnowledgeID, string(channels), ts(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put competitor research: %w", err)
	}
	return nil
}

// ListPublishedVideos returns videos published at or after since, newest
// first. limit <= 0 means no limit.
func (s *Store) ListPublishedVideos(ctx context.Context, knowledgeID string, since time.Time, limit int) ([]*domain.PublishedVideo, error) {
	query := `SELECT id, knowledge_id, platform_video_id, title, published_at FROM published_videos
		WHERE knowledge_id = ? AND published_at >= ? ORDER BY published_at DESC`
	args := []any{knowledgeID, ts(since)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PublishedVideo
	for rows.Next() {
		var (
			v         domain.PublishedVideo
			published string
		)
		if err := rows.Scan(&v.ID, &v.KnowledgeID, &v.PlatformVideoID, &v.Title, &published); err != nil {
			return nil, err
		}
		v.PublishedAt = parseTS(published)
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (s *Store) PutPublishedVideo(ctx context.Context, v *domain.PublishedVideo) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO published_videos (id, knowledge_id, platform_video_id, title, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET platform_video_id = excluded.platform_video_id, title = excluded.title,
			published_at = excluded.published_at`,
		v.ID, v.KnowledgeID, v.PlatformVideoID, v.Title, ts(v.PublishedAt))
	if err != nil {
		return fmt.Errorf("put published video: %w", err)
	}
	return nil
}

// ListUpcomingPublications returns publications scheduled in [from, to),
// ordered by scheduled time.
func (s *Store) ListUpcomingPublications(ctx context.Context, knowledgeID string, from, to time.Time) ([]*domain.Publication, error) {
	rows, err := s.query(ctx, `SELECT id, knowledge_id, title, platform, status, scheduled_at FROM publications
		WHERE knowledge_id = ? AND scheduled_at >= ? AND scheduled_at < ? ORDER BY scheduled_at`,
		knowledgeID, ts(from), ts(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Publication
	for rows.Next() {
		var (
			p         domain.Publication
			scheduled string
		)
		if err := rows.Scan(&p.ID, &p.KnowledgeID, &p.Title, &p.Platform, &p.Status, &scheduled); err != nil {
			return nil, err
		}
		p.ScheduledAt = parseTS(scheduled)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) PutPublication(ctx context.Context, p *domain.Publication) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Platform == "" {
		p.Platform = "youtube"
	}
	if p.Status == "" {
		p.Status = "SCHEDULED"
	}
	_, err := s.exec(ctx, `INSERT INTO publications (id, knowledge_id, title, platform, status, scheduled_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, platform = excluded.platform,
			status = excluded.status, scheduled_at = excluded.scheduled_at`,
		p.ID, p.KnowledgeID, p.Title, p.Platform, p.Status, ts(p.ScheduledAt))
	if err != nil {
		return fmt.Errorf("put publication: %w", err)
	}
	return nil
}

// ListVideoMetrics returns metrics recorded at or after since, oldest first.
func (s *Store) ListVideoMetrics(ctx context.Context, knowledgeID string, since time.Time) ([]*domain.VideoMetric, error) {
	rows, err := s.query(ctx, `SELECT id, knowledge_id, video_id, recorded_at, views, likes, comments, watch_time_minutes
		FROM video_metrics WHERE knowledge_id = ? AND recorded_at >= ? ORDER BY recorded_at, video_id`,
		knowledgeID, ts(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.VideoMetric
	for rows.Next() {
		var (
			m        domain.VideoMetric
			recorded string
		)
		if err := rows.Scan(&m.ID, &m.KnowledgeID, &m.VideoID, &recorded, &m.Views, &m.Likes, &m.Comments,
			&m.WatchTimeMinutes); err != nil {
			return nil, err
		}
		m.RecordedAt = parseTS(recorded)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) PutVideoMetric(ctx context.Context, m *domain.VideoMetric) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO video_metrics (id, knowledge_id, video_id, recorded_at, views, likes, comments,
		watch_time_minutes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.KnowledgeID, m.VideoID, ts(m.RecordedAt), m.Views, m.Likes, m.Comments, m.WatchTimeMinutes)
	if err != nil {
		return fmt.Errorf("put video metric: %w", err)
	}
	return nil
}
