package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"contentops/internal/domain"
	"contentops/internal/infra/tracer"
)

func newID() string { return uuid.NewString() }

// run executes a claimed task and seals it. The seal and the terminal logs
// use a context detached from ctx so a cancelled caller still leaves the
// agent IDLE with counters updated.
func (o *Orchestrator) run(ctx context.Context, reg registration, agent *domain.Agent, task *domain.AgentTask) domain.ExecutionResult {
	agentType := string(agent.Type)
	logger := o.logger.With("agent_id", agent.ID, "agent_type", agentType, "task_id", task.ID)
	o.metrics.DispatchStarted()

	ctx, span := tracer.StartDispatchSpan(ctx, agentType, agent.ID, task.ID)
	defer span.End()

	execCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	o.track(task.ID, cancel)
	defer o.untrack(task.ID)

	logger.Info("task started")
	o.appendLog(ctx, agent.ID, task.ID, domain.LogInfo, msgTaskStarted, nil)
	o.publish(ctx, domain.EventTaskStarted, agent, task.ID, "", 0)

	start := time.Now()
	output, err := o.invoke(execCtx, reg, agent, task)
	elapsed := time.Since(start)

	sealCtx := context.WithoutCancel(ctx)
	seal := domain.TaskSeal{TaskID: task.ID, AgentID: agent.ID, CompletedAt: o.now()}
	outcome := "completed"
	switch {
	case err == nil:
		seal.State = domain.TaskCompleted
		seal.Output = output
	case o.cancelledByOperator(task.ID):
		seal.State = domain.TaskCancelled
		seal.Error = reasonOperatorCancel
		outcome = "cancelled"
	default:
		seal.State = domain.TaskFailed
		seal.Error = err.Error()
		outcome = "failed"
	}

	sealed, serr := o.store.SealTask(sealCtx, seal)
	if serr != nil {
		// The task stays RUNNING until RecoverStale repairs it.
		logger.Error("task seal failed", "state", string(seal.State), "error", serr)
		tracer.RecordError(span, serr)
		o.metrics.DispatchFinished(agentType, "failed", elapsed, true)
		return domain.ExecutionResult{AgentID: agent.ID, TaskID: task.ID, Error: serr.Error(), Code: domain.ErrorCodeOf(serr)}
	}
	duration := sealed.Duration
	o.metrics.DispatchFinished(agentType, outcome, elapsed, true)

	res := domain.ExecutionResult{AgentID: agent.ID, TaskID: task.ID, Duration: duration}
	switch seal.State {
	case domain.TaskCompleted:
		tracer.SetOK(span)
		logger.Info("task completed", "duration", duration)
		o.appendLog(sealCtx, agent.ID, task.ID, domain.LogInfo, msgTaskCompleted, map[string]any{"duration_ms": duration.Milliseconds()})
		o.publish(sealCtx, domain.EventTaskCompleted, agent, task.ID, "", duration)
		res.Success = true
		res.Output = output
	case domain.TaskCancelled:
		tracer.RecordError(span, domain.ErrCancelled)
		logger.Warn("task cancelled by operator", "duration", duration)
		o.appendLog(sealCtx, agent.ID, task.ID, domain.LogWarn, msgTaskCancelled, nil)
		o.publish(sealCtx, domain.EventTaskCancelled, agent, task.ID, seal.Error, duration)
		res.Error = seal.Error
		res.Code = domain.CodeCancelled
	default:
		tracer.RecordError(span, err)
		logger.Error("task failed", "code", domain.ErrorCodeOf(err), "error", err)
		o.appendLog(sealCtx, agent.ID, task.ID, domain.LogError, msgTaskFailed+seal.Error, map[string]any{"code": domain.ErrorCodeOf(err)})
		o.publish(sealCtx, domain.EventTaskFailed, agent, task.ID, seal.Error, duration)
		res.Error = seal.Error
		res.Code = domain.ErrorCodeOf(err)
	}
	return res
}

// invoke validates the input and calls the service. Panics become
// AgentBodyFailure and context errors become Cancelled.
func (o *Orchestrator) invoke(ctx context.Context, reg registration, agent *domain.Agent, task *domain.AgentTask) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("agent service panicked", "task_id", task.ID, "panic", r, "stack", string(debug.Stack()))
			out, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrAgentBodyFailure, r)
		}
	}()

	if reg.schema != nil {
		if err := validateInput(reg, task.Input); err != nil {
			return nil, err
		}
	}

	out, err = reg.service.Execute(ctx, agent, task, task.Input)
	if err == nil {
		return out, nil
	}
	switch {
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, domain.ErrInvalidInput):
		return nil, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	case domain.ErrorCodeOf(err) == domain.CodeUnknown:
		return nil, bodyError{err}
	default:
		return nil, err
	}
}

// bodyError tags a service error as AgentBodyFailure without changing its text.
type bodyError struct{ err error }

func (e bodyError) Error() string        { return e.err.Error() }
func (e bodyError) Unwrap() error        { return e.err }
func (e bodyError) Is(target error) bool { return target == domain.ErrAgentBodyFailure }

func validateInput(reg registration, input json.RawMessage) error {
	var data any = map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	result := reg.schema.Validate(data)
	if !result.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, result.Error())
	}
	return nil
}

func (o *Orchestrator) track(taskID string, cancel context.CancelFunc) {
	o.runMu.Lock()
	o.running[taskID] = &run{cancel: cancel}
	o.runMu.Unlock()
}

func (o *Orchestrator) untrack(taskID string) {
	o.runMu.Lock()
	delete(o.running, taskID)
	o.runMu.Unlock()
}

func (o *Orchestrator) cancelledByOperator(taskID string) bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	r, ok := o.running[taskID]
	return ok && r.operator
}

func (o *Orchestrator) appendLog(ctx context.Context, agentID, taskID string, level domain.LogLevel, msg string, details map[string]any) {
	entry := &domain.AgentLog{AgentID: agentID, TaskID: taskID, Level: level, Message: msg, CreatedAt: o.now()}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = b
		}
	}
	if err := o.store.AppendLog(ctx, entry); err != nil {
		o.logger.Warn("agent log write failed", "task_id", taskID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, typ domain.EventType, agent *domain.Agent, taskID, errMsg string, d time.Duration) {
	if o.bus == nil {
		return
	}
	payload, _ := json.Marshal(domain.TaskEventPayload{
		AgentType:   agent.Type,
		AgentName:   agent.Name,
		KnowledgeID: agent.KnowledgeID,
		Error:       errMsg,
		Duration:    d,
	})
	o.bus.Publish(ctx, domain.Event{Type: typ, Timestamp: o.now(), AgentID: agent.ID, TaskID: taskID, Payload: payload})
}
