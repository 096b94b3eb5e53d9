package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contentops/internal/domain"
)

func (s *Store) ListAgentSchedules(ctx context.Context, enabledOnly bool) ([]*domain.AgentSchedule, error) {
	query := `SELECT id, agent_type, knowledge_id, name, cron_expression, input, enabled, last_run_at, created_at
		FROM agent_schedules`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AgentSchedule
	for rows.Next() {
		var (
			sc        domain.AgentSchedule
			typ       string
			input     sql.NullString
			enabled   int
			lastRun   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&sc.ID, &typ, &sc.KnowledgeID, &sc.Name, &sc.CronExpression, &input, &enabled,
			&lastRun, &createdAt); err != nil {
			return nil, err
		}
		sc.AgentType = domain.AgentType(typ)
		sc.Input = fromNullText(input)
		sc.Enabled = enabled != 0
		sc.LastRunAt = fromNullTS(lastRun)
		sc.CreatedAt = parseTS(createdAt)
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// PutAgentSchedule inserts or replaces a schedule row.
func (s *Store) PutAgentSchedule(ctx context.Context, sc *domain.AgentSchedule) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO agent_schedules (id, agent_type, knowledge_id, name, cron_expression, input,
		enabled, last_run_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET agent_type = excluded.agent_type, knowledge_id = excluded.knowledge_id,
			name = excluded.name, cron_expression = excluded.cron_expression, input = excluded.input,
			enabled = excluded.enabled`,
		sc.ID, string(sc.AgentType), sc.KnowledgeID, sc.Name, sc.CronExpression, nullText(sc.Input),
		b2i(sc.Enabled), nullTS(sc.LastRunAt), ts(sc.CreatedAt))
	if err != nil {
		return fmt.Errorf("put agent schedule: %w", err)
	}
	return nil
}

func (s *Store) MarkScheduleRun(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx, "UPDATE agent_schedules SET last_run_at = ? WHERE id = ?", ts(at), id)
	if err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("schedule", "store.MarkScheduleRun", id)
	}
	return nil
}
