// Package orchestrator owns the agent registry and the dispatch protocol.
// It is the only writer of agent and task rows: a dispatch claims the agent
// under a row lock, runs the registered service, and seals the task together
// with the agent's counters.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"contentops/internal/domain"
	"contentops/internal/infra/metrics"
)

// Durable log messages.
const (
	msgTaskStarted   = "Task started"
	msgTaskCompleted = "Task completed"
	msgTaskFailed    = "Task failed: "
	msgTaskCancelled = "Task cancelled"

	reasonOperatorCancel = "cancelled by operator"
	reasonRestart        = "interrupted by restart"
)

// DefaultExecutionTimeout bounds one dispatch when no timeout is configured.
const DefaultExecutionTimeout = 30 * time.Minute

type registration struct {
	service domain.AgentService
	schema  *jsonschema.Schema
}

// Orchestrator dispatches agent executions.
type Orchestrator struct {
	store   domain.AgentStore
	bus     domain.EventBus
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	registry map[domain.AgentType]registration

	runMu   sync.Mutex
	running map[string]*run
}

// run tracks one in-flight execution so an operator can cancel it.
type run struct {
	cancel   context.CancelFunc
	operator bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventBus publishes lifecycle events on bus.
func WithEventBus(bus domain.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithExecutionTimeout bounds each dispatch.
func WithExecutionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock sets the time source for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over store.
func New(store domain.AgentStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:    store,
		logger:   logger.With("component", "orchestrator"),
		timeout:  DefaultExecutionTimeout,
		now:      time.Now,
		registry: make(map[domain.AgentType]registration),
		running:  make(map[string]*run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register binds svc to t, replacing any earlier binding. A service that
// declares an input schema has it compiled here.
func (o *Orchestrator) Register(t domain.AgentType, svc domain.AgentService) error {
	if !t.Valid() {
		return domain.NewDomainError("Orchestrator.Register", domain.ErrUnknownAgentType, string(t))
	}
	reg := registration{service: svc}
	if p, ok := svc.(domain.InputSchemaProvider); ok {
		if raw := p.InputSchema(); len(raw) > 0 {
			schema, err := jsonschema.NewCompiler().Compile(raw)
			if err != nil {
				return domain.NewDomainError("Orchestrator.Register", domain.ErrInvalidInput, fmt.Sprintf("schema for %s: %v", t, err))
			}
			reg.schema = schema
		}
	}
	o.mu.Lock()
	o.registry[t] = reg
	o.mu.Unlock()
	o.logger.Debug("agent service registered", "agent_type", string(t))
	return nil
}

// Registered reports whether t has a service.
func (o *Orchestrator) Registered(t domain.AgentType) bool {
	_, ok := o.lookup(t)
	return ok
}

func (o *Orchestrator) lookup(t domain.AgentType) (registration, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	reg, ok := o.registry[t]
	return reg, ok
}

// GetOrCreateDefaultAgent returns the unique agent for (t, knowledgeID).
func (o *Orchestrator) GetOrCreateDefaultAgent(ctx context.Context, t domain.AgentType, knowledgeID string) (*domain.Agent, error) {
	if !t.Valid() {
		return nil, domain.NewDomainError("Orchestrator.GetOrCreateDefaultAgent", domain.ErrUnknownAgentType, string(t))
	}
	a, err := o.store.GetOrCreateAgent(ctx, t, knowledgeID, domain.DefaultAgentName(t, knowledgeID))
	if err != nil {
		return nil, domain.WrapOp("Orchestrator.GetOrCreateDefaultAgent", err)
	}
	return a, nil
}

// Dispatch describes one execution request.
type Dispatch struct {
	Type        domain.AgentType
	KnowledgeID string
	Input       json.RawMessage
	ScheduleID  string
	Priority    domain.TaskPriority
}

// ExecuteAgent runs the agent for (t, knowledgeID) and waits for it.
func (o *Orchestrator) ExecuteAgent(ctx context.Context, t domain.AgentType, knowledgeID string, input json.RawMessage) domain.ExecutionResult {
	return o.Execute(ctx, Dispatch{Type: t, KnowledgeID: knowledgeID, Input: input})
}

// Execute runs one dispatch to completion. Failures are reported in the
// result and never returned as errors.
func (o *Orchestrator) Execute(ctx context.Context, d Dispatch) domain.ExecutionResult {
	agentType := string(d.Type)
	reg, ok := o.lookup(d.Type)
	if !ok {
		o.metrics.DispatchFinished(agentType, "rejected", 0, false)
		return domain.ExecutionResult{
			Error: "No service registered for agent type " + agentType,
			Code:  domain.CodeNoServiceRegistered,
		}
	}

	agent, err := o.GetOrCreateDefaultAgent(ctx, d.Type, d.KnowledgeID)
	if err != nil {
		o.logger.Error("agent resolve failed", "agent_type", agentType, "error", err)
		o.metrics.DispatchFinished(agentType, "rejected", 0, false)
		return domain.ExecutionResult{Error: err.Error(), Code: domain.ErrorCodeOf(err)}
	}

	task := &domain.AgentTask{
		ID:         newID(),
		AgentID:    agent.ID,
		ScheduleID: d.ScheduleID,
		Name:       domain.TaskName(d.Type),
		Priority:   d.Priority,
		Input:      d.Input,
		CreatedAt:  o.now(),
	}
	claimed, err := o.store.ClaimAgent(ctx, agent.ID, task, o.now())
	if err != nil {
		o.metrics.DispatchFinished(agentType, "rejected", 0, false)
		return o.rejected(agent, err)
	}

	return o.run(ctx, reg, claimed, task)
}

func (o *Orchestrator) rejected(agent *domain.Agent, err error) domain.ExecutionResult {
	res := domain.ExecutionResult{Code: domain.ErrorCodeOf(err)}
	if agent != nil {
		res.AgentID = agent.ID
	}
	switch {
	case errors.Is(err, domain.ErrAgentBusy):
		res.Error = domain.ErrAgentBusy.Error()
	case errors.Is(err, domain.ErrAgentDisabled):
		res.Error = domain.ErrAgentDisabled.Error()
	default:
		o.logger.Error("agent claim failed", "agent_id", res.AgentID, "error", err)
		res.Error = err.Error()
	}
	return res
}
