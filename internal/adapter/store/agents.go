package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"contentops/internal/domain"
)

const agentCols = `id, agent_type, knowledge_id, name, enabled, auto_execute, state,
	last_run_at, last_success_at, last_error, total_tasks, successes, failures,
	created_at, updated_at`

func scanAgent(sc scanner) (*domain.Agent, error) {
	var (
		a                          domain.Agent
		typ, state                 string
		enabled, autoExec          int
		lastRun, lastSuccess       sql.NullString
		total, successes, failures int64
		created, updated           string
	)
	if err := sc.Scan(&a.ID, &typ, &a.KnowledgeID, &a.Name, &enabled, &autoExec, &state,
		&lastRun, &lastSuccess, &a.LastError, &total, &successes, &failures,
		&created, &updated); err != nil {
		return nil, err
	}
	a.Type = domain.AgentType(typ)
	a.State = domain.AgentState(state)
	a.Enabled = enabled != 0
	a.AutoExecute = autoExec != 0
	a.LastRunAt = fromNullTS(lastRun)
	a.LastSuccessAt = fromNullTS(lastSuccess)
	a.TotalTasks = int(total)
	a.Successes = int(successes)
	a.Failures = int(failures)
	a.CreatedAt = parseTS(created)
	a.UpdatedAt = parseTS(updated)
	return &a, nil
}

// GetOrCreateAgent inserts the (type, knowledge) agent if absent and returns
// the stored row. Concurrent callers converge on one row through the
// UNIQUE constraint.
func (s *Store) GetOrCreateAgent(ctx context.Context, t domain.AgentType, knowledgeID, name string) (*domain.Agent, error) {
	now := ts(s.now())
	_, err := s.exec(ctx, `INSERT INTO agents (id, agent_type, knowledge_id, name, enabled, auto_execute, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, 1, ?, ?, ?)
		ON CONFLICT (agent_type, knowledge_id) DO NOTHING`,
		uuid.NewString(), string(t), knowledgeID, name, string(domain.AgentIdle), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert agent: %w", err)
	}
	a, err := scanAgent(s.queryRow(ctx,
		"SELECT "+agentCols+" FROM agents WHERE agent_type = ? AND knowledge_id = ?", string(t), knowledgeID))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("agent", "store.GetOrCreateAgent", string(t)+"/"+knowledgeID)
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	a, err := scanAgent(s.queryRow(ctx, "SELECT "+agentCols+" FROM agents WHERE id = ?", id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("agent", "store.GetAgent", id)
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAgents(ctx context.Context, knowledgeID string) ([]*domain.Agent, error) {
	query := "SELECT " + agentCols + " FROM agents"
	var args []any
	if knowledgeID != "" {
		query += " WHERE knowledge_id = ?"
		args = append(args, knowledgeID)
	}
	query += " ORDER BY agent_type, created_at"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func lockAgent(ctx context.Context, t tx, id, op string) (*domain.Agent, error) {
	a, err := scanAgent(t.queryRow(ctx, "SELECT "+agentCols+" FROM agents WHERE id = ?"+t.d.ForUpdate(), id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("agent", op, id)
		}
		return nil, err
	}
	return a, nil
}

// SetAgentEnabled toggles dispatch eligibility. Disabling a running agent
// fails with ErrAgentBusy.
func (s *Store) SetAgentEnabled(ctx context.Context, id string, enabled bool) (*domain.Agent, error) {
	var out *domain.Agent
	err := s.withTx(ctx, func(t tx) error {
		a, err := lockAgent(ctx, t, id, "store.SetAgentEnabled")
		if err != nil {
			return err
		}
		state := a.State
		switch {
		case !enabled && a.State == domain.AgentRunning:
			return domain.ErrAgentBusy
		case !enabled:
			state = domain.AgentDisabled
		case a.State == domain.AgentDisabled || a.State == domain.AgentError:
			state = domain.AgentIdle
		}
		now := s.now()
		if _, err := t.exec(ctx, "UPDATE agents SET enabled = ?, state = ?, updated_at = ? WHERE id = ?",
			b2i(enabled), string(state), ts(now), id); err != nil {
			return err
		}
		a.Enabled, a.State, a.UpdatedAt = enabled, state, now.UTC()
		out = a
		return nil
	})
	return out, err
}

// ClaimAgent is the dispatch check-and-set. See domain.AgentStore.
func (s *Store) ClaimAgent(ctx context.Context, agentID string, task *domain.AgentTask, now time.Time) (*domain.Agent, error) {
	var out *domain.Agent
	err := s.withTx(ctx, func(t tx) error {
		a, err := lockAgent(ctx, t, agentID, "store.ClaimAgent")
		if err != nil {
			return err
		}
		switch {
		case a.State == domain.AgentRunning:
			return domain.ErrAgentBusy
		case a.State == domain.AgentDisabled || !a.Enabled:
			return domain.ErrAgentDisabled
		}

		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		if task.Priority == "" {
			task.Priority = domain.PriorityNormal
		}
		task.AgentID = agentID
		task.State = domain.TaskPending
		task.CreatedAt = now.UTC()
		if _, err := t.exec(ctx, `INSERT INTO agent_tasks (id, agent_id, schedule_id, name, priority, state, input, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, agentID, task.ScheduleID, task.Name, string(task.Priority), string(domain.TaskPending),
			nullText(task.Input), ts(now)); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if _, err := t.exec(ctx, "UPDATE agent_tasks SET state = ?, started_at = ? WHERE id = ? AND state = ?",
			string(domain.TaskRunning), ts(now), task.ID, string(domain.TaskPending)); err != nil {
			return fmt.Errorf("start task: %w", err)
		}
		started := now.UTC()
		task.State = domain.TaskRunning
		task.StartedAt = &started

		if _, err := t.exec(ctx, "UPDATE agents SET state = ?, last_run_at = ?, updated_at = ? WHERE id = ?",
			string(domain.AgentRunning), ts(now), ts(now), agentID); err != nil {
			return fmt.Errorf("mark agent running: %w", err)
		}
		a.State = domain.AgentRunning
		a.LastRunAt = &started
		a.UpdatedAt = started
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SealTask applies the terminal transition and the matching counter bump.
func (s *Store) SealTask(ctx context.Context, seal domain.TaskSeal) (*domain.AgentTask, error) {
	if !seal.State.Terminal() {
		return nil, domain.NewSubSystemError("task", "store.SealTask", domain.ErrInvalidInput, "state "+string(seal.State)+" is not terminal")
	}
	var out *domain.AgentTask
	err := s.withTx(ctx, func(t tx) error {
		task, err := scanTask(t.queryRow(ctx, "SELECT "+taskCols+" FROM agent_tasks WHERE id = ?"+t.d.ForUpdate(), seal.TaskID))
		if err != nil {
			if isNoRows(err) {
				return notFound("task", "store.SealTask", seal.TaskID)
			}
			return err
		}
		if !task.State.CanTransition(seal.State) || task.State != domain.TaskRunning {
			return domain.NewSubSystemError("task", "store.SealTask", domain.ErrTaskNotRunning, string(task.State))
		}

		completed := seal.CompletedAt.UTC()
		if task.StartedAt != nil && completed.Before(*task.StartedAt) {
			completed = *task.StartedAt
		}
		var dur time.Duration
		if task.StartedAt != nil {
			dur = completed.Sub(*task.StartedAt)
		}

		res, err := t.exec(ctx, `UPDATE agent_tasks SET state = ?, output = ?, error_message = ?, completed_at = ?, duration_ms = ?
			WHERE id = ? AND state = ?`,
			string(seal.State), nullText(seal.Output), seal.Error, ts(completed), dur.Milliseconds(),
			seal.TaskID, string(domain.TaskRunning))
		if err != nil {
			return fmt.Errorf("seal task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NewSubSystemError("task", "store.SealTask", domain.ErrTaskNotRunning, seal.TaskID)
		}

		var q string
		var args []any
		switch seal.State {
		case domain.TaskCompleted:
			q = `UPDATE agents SET total_tasks = total_tasks + 1, successes = successes + 1,
				last_success_at = ?, last_error = '', state = ?, updated_at = ? WHERE id = ?`
			args = []any{ts(completed), string(domain.AgentIdle), ts(completed), task.AgentID}
		case domain.TaskFailed:
			q = `UPDATE agents SET total_tasks = total_tasks + 1, failures = failures + 1,
				last_error = ?, state = ?, updated_at = ? WHERE id = ?`
			args = []any{seal.Error, string(domain.AgentIdle), ts(completed), task.AgentID}
		case domain.TaskCancelled:
			q = `UPDATE agents SET total_tasks = total_tasks + 1,
				last_error = ?, state = ?, updated_at = ? WHERE id = ?`
			args = []any{seal.Error, string(domain.AgentIdle), ts(completed), task.AgentID}
		}
		if _, err := t.exec(ctx, q, args...); err != nil {
			return fmt.Errorf("update agent counters: %w", err)
		}

		task.State = seal.State
		task.Output = seal.Output
		task.ErrorMessage = seal.Error
		task.CompletedAt = &completed
		task.Duration = dur
		out = task
		return nil
	})
	return out, err
}

// RecoverRunning seals tasks orphaned by a crash and frees their agents.
func (s *Store) RecoverRunning(ctx context.Context, reason string, now time.Time) (int, error) {
	rows, err := s.query(ctx, "SELECT id, agent_id FROM agent_tasks WHERE state = ?", string(domain.TaskRunning))
	if err != nil {
		return 0, err
	}
	type orphan struct{ task, agent string }
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.task, &o.agent); err != nil {
			rows.Close()
			return 0, err
		}
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	n := 0
	for _, o := range orphans {
		if _, err := s.SealTask(ctx, domain.TaskSeal{
			TaskID: o.task, AgentID: o.agent, State: domain.TaskFailed, Error: reason, CompletedAt: now,
		}); err != nil {
			return n, fmt.Errorf("recover task %s: %w", o.task, err)
		}
		n++
	}

	// Agents left RUNNING without a running task.
	if _, err := s.exec(ctx, `UPDATE agents SET state = ?, updated_at = ?
		WHERE state = ? AND id NOT IN (SELECT agent_id FROM agent_tasks WHERE state = ?)`,
		string(domain.AgentIdle), ts(now), string(domain.AgentRunning), string(domain.TaskRunning)); err != nil {
		return n, fmt.Errorf("reset agents: %w", err)
	}
	return n, nil
}

const taskCols = `id, agent_id, schedule_id, name, priority, state, input, output,
	error_message, started_at, completed_at, duration_ms, created_at`

func scanTask(sc scanner) (*domain.AgentTask, error) {
	var (
		t                  domain.AgentTask
		priority, state    string
		input, output      sql.NullString
		started, completed sql.NullString
		durMS              int64
		created            string
	)
	if err := sc.Scan(&t.ID, &t.AgentID, &t.ScheduleID, &t.Name, &priority, &state, &input, &output,
		&t.ErrorMessage, &started, &completed, &durMS, &created); err != nil {
		return nil, err
	}
	t.Priority = domain.TaskPriority(priority)
	t.State = domain.TaskState(state)
	t.Input = fromNullText(input)
	t.Output = fromNullText(output)
	t.StartedAt = fromNullTS(started)
	t.CompletedAt = fromNullTS(completed)
	t.Duration = time.Duration(durMS) * time.Millisecond
	t.CreatedAt = parseTS(created)
	return &t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*domain.AgentTask, error) {
	t, err := scanTask(s.queryRow(ctx, "SELECT "+taskCols+" FROM agent_tasks WHERE id = ?", id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("task", "store.GetTask", id)
		}
		return nil, err
	}
	return t, nil
}

// ListTasks returns an agent's tasks newest first. limit <= 0 means 50.
func (s *Store) ListTasks(ctx context.Context, agentID string, limit int) ([]*domain.AgentTask, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx, "SELECT "+taskCols+" FROM agent_tasks WHERE agent_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.AgentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountTasks counts an agent's tasks; an empty agentID counts across agents
// and an empty state counts every state.
func (s *Store) CountTasks(ctx context.Context, agentID string, state domain.TaskState) (int, error) {
	query := "SELECT COUNT(*) FROM agent_tasks WHERE 1 = 1"
	var args []any
	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}
	if state != "" {
		query += " AND state = ?"
		args = append(args, string(state))
	}
	var n int64
	if err := s.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// AppendLog writes a durable log row. Ids are ULIDs so id order is time order.
func (s *Store) AppendLog(ctx context.Context, e *domain.AgentLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.CreatedAt), ulid.DefaultEntropy()).String()
	}
	_, err := s.exec(ctx, `INSERT INTO agent_logs (id, agent_id, task_id, level, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AgentID, e.TaskID, string(e.Level), e.Message, nullText(e.Details), ts(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLogs returns an agent's log rows newest first. limit <= 0 means 100.
func (s *Store) ListLogs(ctx context.Context, agentID string, limit int) ([]*domain.AgentLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `SELECT id, agent_id, task_id, level, message, details, created_at
		FROM agent_logs WHERE agent_id = ? ORDER BY id DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AgentLog
	for rows.Next() {
		var (
			l       domain.AgentLog
			level   string
			details sql.NullString
			created string
		)
		if err := rows.Scan(&l.ID, &l.AgentID, &l.TaskID, &level, &l.Message, &details, &created); err != nil {
			return nil, err
		}
		l.Level = domain.LogLevel(level)
		l.Details = fromNullText(details)
		l.CreatedAt = parseTS(created)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
