package orchestrator

import (
	"context"

	"contentops/internal/domain"
)

// CancelTask cancels an in-flight execution. The task is sealed CANCELLED
// once its service returns. A task that is not running in this process is
// rejected with ErrTaskNotRunning.
func (o *Orchestrator) CancelTask(ctx context.Context, taskID string) error {
	o.runMu.Lock()
	r, ok := o.running[taskID]
	if ok {
		r.operator = true
	}
	o.runMu.Unlock()
	if ok {
		o.logger.Info("task cancellation requested", "task_id", taskID)
		r.cancel()
		return nil
	}

	// Distinguish an unknown task from a finished one.
	if _, err := o.store.GetTask(ctx, taskID); err != nil {
		return domain.WrapOp("Orchestrator.CancelTask", err)
	}
	return domain.NewSubSystemError("task", "Orchestrator.CancelTask", domain.ErrTaskNotRunning, taskID)
}

// RunningTasks returns the ids of executions in flight in this process.
func (o *Orchestrator) RunningTasks() []string {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	ids := make([]string, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	return ids
}

// DisableAgent stops an agent from being dispatched. A running agent is
// refused with ErrAgentBusy.
func (o *Orchestrator) DisableAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	a, err := o.store.SetAgentEnabled(ctx, agentID, false)
	if err != nil {
		return nil, domain.WrapOp("Orchestrator.DisableAgent", err)
	}
	o.logger.Info("agent disabled", "agent_id", agentID)
	o.publish(ctx, domain.EventAgentDisabled, a, "", "", 0)
	return a, nil
}

// EnableAgent returns a disabled agent to IDLE.
func (o *Orchestrator) EnableAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	a, err := o.store.SetAgentEnabled(ctx, agentID, true)
	if err != nil {
		return nil, domain.WrapOp("Orchestrator.EnableAgent", err)
	}
	o.logger.Info("agent enabled", "agent_id", agentID)
	o.publish(ctx, domain.EventAgentEnabled, a, "", "", 0)
	return a, nil
}

// RecoverStale seals tasks left RUNNING by a previous process. Call it at
// startup before any dispatch.
func (o *Orchestrator) RecoverStale(ctx context.Context) (int, error) {
	n, err := o.store.RecoverRunning(ctx, reasonRestart, o.now())
	if err != nil {
		return 0, domain.WrapOp("Orchestrator.RecoverStale", err)
	}
	if n > 0 {
		o.logger.Warn("recovered interrupted tasks", "count", n)
	}
	return n, nil
}

// GetAgentSummary aggregates counters across agents, optionally scoped to
// one knowledge bundle.
func (o *Orchestrator) GetAgentSummary(ctx context.Context, knowledgeID string) (domain.Summary, error) {
	agents, err := o.store.ListAgents(ctx, knowledgeID)
	if err != nil {
		return domain.Summary{}, domain.WrapOp("Orchestrator.GetAgentSummary", err)
	}
	s := domain.Summary{Agents: make([]domain.AgentSummaryRow, 0, len(agents))}
	for _, a := range agents {
		s.TotalAgents++
		if a.Enabled {
			s.EnabledAgents++
		}
		if a.State == domain.AgentRunning {
			s.RunningAgents++
		}
		s.TotalTasks += a.TotalTasks
		s.Successes += a.Successes
		s.Failures += a.Failures
		s.Agents = append(s.Agents, domain.AgentSummaryRow{
			ID:          a.ID,
			Name:        a.Name,
			Type:        a.Type,
			State:       a.State,
			Enabled:     a.Enabled,
			LastRunAt:   a.LastRunAt,
			SuccessRate: a.SuccessRate(),
		})
	}
	return s, nil
}

// ListTasks returns an agent's most recent tasks, newest first.
func (o *Orchestrator) ListTasks(ctx context.Context, agentID string, limit int) ([]*domain.AgentTask, error) {
	return o.store.ListTasks(ctx, agentID, limit)
}

// ListLogs returns an agent's most recent durable log rows, newest first.
func (o *Orchestrator) ListLogs(ctx context.Context, agentID string, limit int) ([]*domain.AgentLog, error) {
	return o.store.ListLogs(ctx, agentID, limit)
}

