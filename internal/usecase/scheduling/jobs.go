package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contentops/internal/domain"
	"contentops/internal/infra/config"
	"contentops/internal/usecase/alerting"
	"contentops/internal/usecase/notice"
	"contentops/internal/usecase/orchestrator"
)

// Dispatcher runs one agent dispatch to completion.
type Dispatcher interface {
	Execute(ctx context.Context, d orchestrator.Dispatch) domain.ExecutionResult
}

// AlertChecker evaluates the alert rules that are due.
type AlertChecker interface {
	CheckAll(ctx context.Context) []alerting.Result
}

// SummaryReader reads the fleet summary for one knowledge scope.
type SummaryReader interface {
	GetAgentSummary(ctx context.Context, knowledgeID string) (domain.Summary, error)
}

// AgentJob dispatches d and reports an unsuccessful result as an error.
func AgentJob(disp Dispatcher, d orchestrator.Dispatch) Job {
	return func(ctx context.Context) error {
		res := disp.Execute(ctx, d)
		if res.Success {
			return nil
		}
		return fmt.Errorf("%s dispatch failed (%s): %s", d.Type, res.Code, res.Error)
	}
}

// AddAgentTask registers a configured agent dispatch.
func (s *Scheduler) AddAgentTask(disp Dispatcher, t config.ScheduledTaskConfig) error {
	agentType, err := domain.ParseAgentType(t.AgentType)
	if err != nil {
		return fmt.Errorf("scheduler: task %q: %w", t.Name, err)
	}
	var input json.RawMessage
	if t.Input != "" {
		input = json.RawMessage(t.Input)
	}
	return s.Add(t.Name, t.Schedule, AgentJob(disp, orchestrator.Dispatch{
		Type:        agentType,
		KnowledgeID: t.KnowledgeID,
		Input:       input,
		Priority:    domain.PriorityNormal,
	}))
}

// ScheduleEntryName is the entry name used for a stored schedule.
func ScheduleEntryName(id string) string { return "schedule:" + id }

// LoadSchedules registers every enabled stored schedule. Rows with an
// unusable expression or agent type are skipped with a warning. Each fire
// stamps last_run_at and carries the schedule id onto the task.
func (s *Scheduler) LoadSchedules(ctx context.Context, st domain.ScheduleStore, disp Dispatcher) (int, error) {
	rows, err := st.ListAgentSchedules(ctx, true)
	if err != nil {
		return 0, domain.WrapOp("Scheduler.LoadSchedules", err)
	}
	loaded := 0
	for _, row := range rows {
		if _, err := domain.ParseAgentType(string(row.AgentType)); err != nil {
			s.logger.Warn("stored schedule skipped", "schedule_id", row.ID, "error", err)
			continue
		}
		if err := s.Add(ScheduleEntryName(row.ID), row.CronExpression, s.scheduleJob(st, disp, row)); err != nil {
			s.logger.Warn("stored schedule skipped", "schedule_id", row.ID, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

func (s *Scheduler) scheduleJob(st domain.ScheduleStore, disp Dispatcher, row *domain.AgentSchedule) Job {
	run := AgentJob(disp, orchestrator.Dispatch{
		Type:        row.AgentType,
		KnowledgeID: row.KnowledgeID,
		Input:       row.Input,
		ScheduleID:  row.ID,
		Priority:    domain.PriorityNormal,
	})
	return func(ctx context.Context) error {
		if err := st.MarkScheduleRun(ctx, row.ID, s.now()); err != nil {
			s.logger.Warn("schedule stamp failed", "schedule_id", row.ID, "error", err)
		}
		return run(ctx)
	}
}

// AlertCheckJob evaluates the rule set. Sampling failures are joined into
// the returned error; firing rules are not errors.
func AlertCheckJob(c AlertChecker) Job {
	return func(ctx context.Context) error {
		var errs []error
		for _, r := range c.CheckAll(ctx) {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Rule, r.Err))
			}
		}
		return errors.Join(errs...)
	}
}

// DailyReportJob posts the fleet summary across all knowledge scopes.
func DailyReportJob(r SummaryReader, n domain.Notifier) Job {
	return func(ctx context.Context) error {
		summary, err := r.GetAgentSummary(ctx, "")
		if err != nil {
			return err
		}
		if !notice.SendDailyReport(ctx, n, summary) {
			return errors.New("daily report not delivered")
		}
		return nil
	}
}
