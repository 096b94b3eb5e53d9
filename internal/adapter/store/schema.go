package store

import (
	"context"
	"fmt"
)

// schema is portable DDL: TEXT timestamps and JSON, BIGINT counters,
// DOUBLE PRECISION scores, 0/1 integer flags.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id              TEXT PRIMARY KEY,
		agent_type      TEXT NOT NULL,
		knowledge_id    TEXT NOT NULL DEFAULT '',
		name            TEXT NOT NULL,
		enabled         INTEGER NOT NULL DEFAULT 1,
		auto_execute    INTEGER NOT NULL DEFAULT 1,
		state           TEXT NOT NULL DEFAULT 'IDLE',
		last_run_at     TEXT,
		last_success_at TEXT,
		last_error      TEXT NOT NULL DEFAULT '',
		total_tasks     BIGINT NOT NULL DEFAULT 0,
		successes       BIGINT NOT NULL DEFAULT 0,
		failures        BIGINT NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE (agent_type, knowledge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS agent_tasks (
		id            TEXT PRIMARY KEY,
		agent_id      TEXT NOT NULL REFERENCES agents(id),
		schedule_id   TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL,
		priority      TEXT NOT NULL DEFAULT 'NORMAL',
		state         TEXT NOT NULL,
		input         TEXT,
		output        TEXT,
		error_message TEXT NOT NULL DEFAULT '',
		started_at    TEXT,
		completed_at  TEXT,
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tasks_agent ON agent_tasks (agent_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tasks_state ON agent_tasks (state)`,
	`CREATE TABLE IF NOT EXISTS agent_logs (
		id         TEXT PRIMARY KEY,
		agent_id   TEXT NOT NULL REFERENCES agents(id),
		task_id    TEXT NOT NULL DEFAULT '',
		level      TEXT NOT NULL,
		message    TEXT NOT NULL,
		details    TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_logs_agent ON agent_logs (agent_id, id)`,
	`CREATE TABLE IF NOT EXISTS trend_alerts (
		id                TEXT PRIMARY KEY,
		agent_id          TEXT NOT NULL REFERENCES agents(id),
		task_id           TEXT NOT NULL DEFAULT '',
		knowledge_id      TEXT NOT NULL DEFAULT '',
		keyword           TEXT NOT NULL,
		score             DOUBLE PRECISION NOT NULL,
		alert_type        TEXT NOT NULL,
		importance        TEXT NOT NULL,
		related_data      TEXT,
		suggested_actions TEXT NOT NULL DEFAULT '[]',
		is_read           INTEGER NOT NULL DEFAULT 0,
		expires_at        TEXT NOT NULL,
		created_at        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trend_alerts_knowledge ON trend_alerts (knowledge_id, expires_at)`,
	`CREATE TABLE IF NOT EXISTS competitor_alerts (
		id                  TEXT PRIMARY KEY,
		agent_id            TEXT NOT NULL REFERENCES agents(id),
		task_id             TEXT NOT NULL DEFAULT '',
		knowledge_id        TEXT NOT NULL DEFAULT '',
		competitor_channel  TEXT NOT NULL,
		competitor_name     TEXT NOT NULL DEFAULT '',
		video_id            TEXT NOT NULL,
		video_title         TEXT NOT NULL,
		alert_type          TEXT NOT NULL,
		analysis            TEXT NOT NULL DEFAULT '{}',
		performance_metrics TEXT,
		suggested_responses TEXT NOT NULL DEFAULT '[]',
		is_read             INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL,
		UNIQUE (agent_id, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comment_queue (
		id                TEXT PRIMARY KEY,
		agent_id          TEXT NOT NULL REFERENCES agents(id),
		task_id           TEXT NOT NULL DEFAULT '',
		knowledge_id      TEXT NOT NULL DEFAULT '',
		video_id          TEXT NOT NULL,
		video_title       TEXT NOT NULL DEFAULT '',
		source_comment_id TEXT NOT NULL UNIQUE,
		author            TEXT NOT NULL DEFAULT '',
		original_text     TEXT NOT NULL,
		sentiment         TEXT NOT NULL,
		is_question       INTEGER NOT NULL DEFAULT 0,
		reply_text        TEXT NOT NULL,
		generated_by      TEXT NOT NULL,
		template_id       TEXT NOT NULL DEFAULT '',
		state             TEXT NOT NULL DEFAULT 'PENDING',
		requires_approval INTEGER NOT NULL DEFAULT 1,
		created_at        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comment_queue_knowledge ON comment_queue (knowledge_id, state)`,
	`CREATE TABLE IF NOT EXISTS comment_templates (
		id                TEXT PRIMARY KEY,
		knowledge_id      TEXT NOT NULL DEFAULT '',
		name              TEXT NOT NULL,
		target_sentiment  TEXT NOT NULL,
		template_text     TEXT NOT NULL,
		use_ai_generation INTEGER NOT NULL DEFAULT 0,
		is_active         INTEGER NOT NULL DEFAULT 1,
		priority          BIGINT NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS agent_schedules (
		id              TEXT PRIMARY KEY,
		agent_type      TEXT NOT NULL,
		knowledge_id    TEXT NOT NULL DEFAULT '',
		name            TEXT NOT NULL,
		cron_expression TEXT NOT NULL,
		input           TEXT,
		enabled         INTEGER NOT NULL DEFAULT 1,
		last_run_at     TEXT,
		created_at      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metric_snapshots (
		id           TEXT PRIMARY KEY,
		agent_id     TEXT NOT NULL REFERENCES agents(id),
		task_id      TEXT NOT NULL DEFAULT '',
		knowledge_id TEXT NOT NULL DEFAULT '',
		subject      TEXT NOT NULL,
		metric       TEXT NOT NULL,
		bucket       TEXT NOT NULL,
		bucket_start TEXT NOT NULL,
		value        DOUBLE PRECISION NOT NULL,
		created_at   TEXT NOT NULL,
		UNIQUE (agent_id, subject, metric, bucket_start)
	)`,
	`CREATE TABLE IF NOT EXISTS knowledge (
		id         TEXT PRIMARY KEY,
		client_id  TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL,
		sections   TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS competitor_research (
		knowledge_id TEXT PRIMARY KEY,
		channels     TEXT NOT NULL DEFAULT '[]',
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS published_videos (
		id                TEXT PRIMARY KEY,
		knowledge_id      TEXT NOT NULL,
		platform_video_id TEXT NOT NULL,
		title             TEXT NOT NULL,
		published_at      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_published_videos_knowledge ON published_videos (knowledge_id, published_at)`,
	`CREATE TABLE IF NOT EXISTS publications (
		id           TEXT PRIMARY KEY,
		knowledge_id TEXT NOT NULL,
		title        TEXT NOT NULL,
		platform     TEXT NOT NULL DEFAULT 'youtube',
		status       TEXT NOT NULL DEFAULT 'SCHEDULED',
		scheduled_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS video_metrics (
		id                 TEXT PRIMARY KEY,
		knowledge_id       TEXT NOT NULL,
		video_id           TEXT NOT NULL,
		recorded_at        TEXT NOT NULL,
		views              BIGINT NOT NULL DEFAULT 0,
		likes              BIGINT NOT NULL DEFAULT 0,
		comments           BIGINT NOT NULL DEFAULT 0,
		watch_time_minutes DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_video_metrics_knowledge ON video_metrics (knowledge_id, recorded_at)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
