package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contentops/internal/domain"
)

// --- trend alerts ---

func (s *Store) CreateTrendAlert(ctx context.Context, a *domain.TrendAlert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if a.ExpiresAt.IsZero() {
		a.ExpiresAt = a.CreatedAt.Add(domain.TrendAlertTTL)
	}
	if a.SuggestedActions == nil {
		a.SuggestedActions = []domain.SuggestedAction{}
	}
	actions, err := json.Marshal(a.SuggestedActions)
	if err != nil {
		return fmt.Errorf("marshal suggested actions: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO trend_alerts (id, agent_id, task_id, knowledge_id, keyword, score, alert_type,
		importance, related_data, suggested_actions, is_read, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AgentID, a.TaskID, a.KnowledgeID, a.Keyword, a.Score, string(a.AlertType),
		string(a.Importance), nullText(a.RelatedData), string(actions), b2i(a.IsRead), ts(a.ExpiresAt), ts(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert trend alert: %w", err)
	}
	return nil
}

// ListTrendAlerts returns unexpired alerts for a knowledge scope, newest first.
func (s *Store) ListTrendAlerts(ctx context.Context, knowledgeID string, activeAt time.Time) ([]*domain.TrendAlert, error) {
	rows, err := s.query(ctx, `SELECT id, agent_id, task_id, knowledge_id, keyword, score, alert_type, importance,
		related_data, suggested_actions, is_read, expires_at, created_at
		FROM trend_alerts WHERE knowledge_id = ? AND expires_at > ? ORDER BY created_at DESC`,
		knowledgeID, ts(activeAt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TrendAlert
	for rows.Next() {
		var (
			a                  domain.TrendAlert
			alertType, imp     string
			related            sql.NullString
			actions            string
			isRead             int
			expires, createdAt string
		)
		if err := rows.Scan(&a.ID, &a.AgentID, &a.TaskID, &a.KnowledgeID, &a.Keyword, &a.Score, &alertType, &imp,
			&related, &actions, &isRead, &expires, &createdAt); err != nil {
			return nil, err
		}
		a.AlertType = domain.TrendAlertType(alertType)
		a.Importance = domain.Importance(imp)
		a.RelatedData = fromNullText(related)
		if err := json.Unmarshal([]byte(actions), &a.SuggestedActions); err != nil {
			return nil, fmt.Errorf("decode suggested actions for %s: %w", a.ID, err)
		}
		a.IsRead = isRead != 0
		a.ExpiresAt = parseTS(expires)
		a.CreatedAt = parseTS(createdAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- competitor alerts ---

const competitorCols = `id, agent_id, task_id, knowledge_id, competitor_channel, competitor_name, video_id,
	video_title, alert_type, analysis, performance_metrics, suggested_responses, is_read, created_at`

func scanCompetitorAlert(sc scanner) (*domain.CompetitorAlert, error) {
	var (
		a                   domain.CompetitorAlert
		alertType, analysis string
		perf                sql.NullString
		responses           string
		isRead              int
		createdAt           string
	)
	if err := sc.Scan(&a.ID, &a.AgentID, &a.TaskID, &a.KnowledgeID, &a.CompetitorChannel, &a.CompetitorName,
		&a.VideoID, &a.VideoTitle, &alertType, &analysis, &perf, &responses, &isRead, &createdAt); err != nil {
		return nil, err
	}
	a.AlertType = domain.CompetitorAlertType(alertType)
	if err := json.Unmarshal([]byte(analysis), &a.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis for %s: %w", a.ID, err)
	}
	a.PerformanceMetrics = fromNullText(perf)
	if err := json.Unmarshal([]byte(responses), &a.SuggestedResponses); err != nil {
		return nil, fmt.Errorf("decode suggested responses for %s: %w", a.ID, err)
	}
	a.IsRead = isRead != 0
	a.CreatedAt = parseTS(createdAt)
	return &a, nil
}

// CreateCompetitorAlert inserts an alert unless one already exists for the
// (agent, video) pair. On conflict the stored row is loaded into a and
// false is returned.
func (s *Store) CreateCompetitorAlert(ctx context.Context, a *domain.CompetitorAlert) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if a.SuggestedResponses == nil {
		a.SuggestedResponses = []string{}
	}
	analysis, err := json.Marshal(a.Analysis)
	if err != nil {
		return false, fmt.Errorf("marshal analysis: %w", err)
	}
	responses, err := json.Marshal(a.SuggestedResponses)
	if err != nil {
		return false, fmt.Errorf("marshal suggested responses: %w", err)
	}

	res, err := s.exec(ctx, `INSERT INTO competitor_alerts (`+competitorCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (agent_id, video_id) DO NOTHING`,
		a.ID, a.AgentID, a.TaskID, a.KnowledgeID, a.CompetitorChannel, a.CompetitorName, a.VideoID,
		a.VideoTitle, string(a.AlertType), string(analysis), nullText(a.PerformanceMetrics), string(responses),
		b2i(a.IsRead), ts(a.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert competitor alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	existing, err := scanCompetitorAlert(s.queryRow(ctx,
		"SELECT "+competitorCols+" FROM competitor_alerts WHERE agent_id = ? AND video_id = ?", a.AgentID, a.VideoID))
	if err != nil {
		return false, fmt.Errorf("load existing competitor alert: %w", err)
	}
	*a = *existing
	return false, nil
}

func (s *Store) ListCompetitorAlerts(ctx context.Context, knowledgeID string) ([]*domain.CompetitorAlert, error) {
	rows, err := s.query(ctx, "SELECT "+competitorCols+" FROM competitor_alerts WHERE knowledge_id = ? ORDER BY created_at DESC",
		knowledgeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CompetitorAlert
	for rows.Next() {
		a, err := scanCompetitorAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- comment queue ---

const commentCols = `id, agent_id, task_id, knowledge_id, video_id, video_title, source_comment_id, author,
	original_text, sentiment, is_question, reply_text, generated_by, template_id, state, requires_approval, created_at`

func scanCommentEntry(sc scanner) (*domain.CommentQueueEntry, error) {
	var (
		e                       domain.CommentQueueEntry
		sentiment, state        string
		isQuestion, reqApproval int
		createdAt               string
	)
	if err := sc.Scan(&e.ID, &e.AgentID, &e.TaskID, &e.KnowledgeID, &e.VideoID, &e.VideoTitle, &e.SourceCommentID,
		&e.Author, &e.OriginalText, &sentiment, &isQuestion, &e.ReplyText, &e.GeneratedBy, &e.TemplateID, &state,
		&reqApproval, &createdAt); err != nil {
		return nil, err
	}
	e.Sentiment = domain.Sentiment(sentiment)
	e.State = domain.CommentState(state)
	e.IsQuestion = isQuestion != 0
	e.RequiresApproval = reqApproval != 0
	e.CreatedAt = parseTS(createdAt)
	return &e, nil
}

// CreateCommentQueueEntry queues a drafted reply. A source comment already
// queued is left untouched and false is returned.
func (s *Store) CreateCommentQueueEntry(ctx context.Context, e *domain.CommentQueueEntry) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if e.State == "" {
		e.State = domain.CommentPending
	}
	res, err := s.exec(ctx, `INSERT INTO comment_queue (`+commentCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_comment_id) DO NOTHING`,
		e.ID, e.AgentID, e.TaskID, e.KnowledgeID, e.VideoID, e.VideoTitle, e.SourceCommentID, e.Author,
		e.OriginalText, string(e.Sentiment), b2i(e.IsQuestion), e.ReplyText, e.GeneratedBy, e.TemplateID,
		string(e.State), b2i(e.RequiresApproval), ts(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert comment queue entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) CommentQueued(ctx context.Context, sourceCommentID string) (bool, error) {
	var n int64
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM comment_queue WHERE source_comment_id = ?", sourceCommentID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListCommentQueue lists entries oldest first; an empty state lists all.
func (s *Store) ListCommentQueue(ctx context.Context, knowledgeID string, state domain.CommentState) ([]*domain.CommentQueueEntry, error) {
	query := "SELECT " + commentCols + " FROM comment_queue WHERE knowledge_id = ?"
	args := []any{knowledgeID}
	if state != "" {
		query += " AND state = ?"
		args = append(args, string(state))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CommentQueueEntry
	for rows.Next() {
		e, err := scanCommentEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- comment templates ---

func (s *Store) CreateCommentTemplate(ctx context.Context, t *domain.CommentTemplate) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO comment_templates (id, knowledge_id, name, target_sentiment, template_text,
		use_ai_generation, is_active, priority, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.KnowledgeID, t.Name, string(t.TargetSentiment), t.TemplateText,
		b2i(t.UseAIGeneration), b2i(t.IsActive), t.Priority, ts(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert comment template: %w", err)
	}
	return nil
}

// ListCommentTemplates returns active templates for the sentiment that
// belong to the knowledge scope or are global, highest priority first.
func (s *Store) ListCommentTemplates(ctx context.Context, knowledgeID string, sentiment domain.Sentiment) ([]*domain.CommentTemplate, error) {
	rows, err := s.query(ctx, `SELECT id, knowledge_id, name, target_sentiment, template_text, use_ai_generation,
		is_active, priority, created_at FROM comment_templates
		WHERE is_active = 1 AND target_sentiment = ? AND (knowledge_id = ? OR knowledge_id = '')
		ORDER BY priority DESC, created_at`, string(sentiment), knowledgeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CommentTemplate
	for rows.Next() {
		var (
			t               domain.CommentTemplate
			target          string
			useAI, isActive int
			priority        int64
			createdAt       string
		)
		if err := rows.Scan(&t.ID, &t.KnowledgeID, &t.Name, &target, &t.TemplateText, &useAI, &isActive,
			&priority, &createdAt); err != nil {
			return nil, err
		}
		t.TargetSentiment = domain.Sentiment(target)
		t.UseAIGeneration = useAI != 0
		t.IsActive = isActive != 0
		t.Priority = int(priority)
		t.CreatedAt = parseTS(createdAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// --- metric snapshots ---

// UpsertMetricSnapshots writes bucketed values; a repeat of the same
// (agent, subject, metric, bucket_start) replaces the value.
func (s *Store) UpsertMetricSnapshots(ctx context.Context, snaps []*domain.MetricSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return s.withTx(ctx, func(t tx) error {
		for _, m := range snaps {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = s.now().UTC()
			}
			if _, err := t.exec(ctx, `INSERT INTO metric_snapshots (id, agent_id, task_id, knowledge_id, subject, metric,
				bucket, bucket_start, value, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (agent_id, subject, metric, bucket_start)
				DO UPDATE SET value = excluded.value, task_id = excluded.task_id, created_at = excluded.created_at`,
				m.ID, m.AgentID, m.TaskID, m.KnowledgeID, m.Subject, m.Metric, m.Bucket, ts(m.BucketStart),
				m.Value, ts(m.CreatedAt)); err != nil {
				return fmt.Errorf("upsert snapshot %s/%s: %w", m.Subject, m.Metric, err)
			}
		}
		return nil
	})
}

// ListMetricSnapshots returns an agent's snapshots ordered by bucket start;
// an empty metric lists all metrics.
func (s *Store) ListMetricSnapshots(ctx context.Context, agentID, metric string) ([]*domain.MetricSnapshot, error) {
	query := `SELECT id, agent_id, task_id, knowledge_id, subject, metric, bucket, bucket_start, value, created_at
		FROM metric_snapshots WHERE agent_id = ?`
	args := []any{agentID}
	if metric != "" {
		query += " AND metric = ?"
		args = append(args, metric)
	}
	query += " ORDER BY bucket_start, subject"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MetricSnapshot
	for rows.Next() {
		var (
			m                domain.MetricSnapshot
			start, createdAt string
		)
		if err := rows.Scan(&m.ID, &m.AgentID, &m.TaskID, &m.KnowledgeID, &m.Subject, &m.Metric, &m.Bucket,
			&start, &m.Value, &createdAt); err != nil {
			return nil, err
		}
		m.BucketStart = parseTS(start)
		m.CreatedAt = parseTS(createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}
