package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AgentType identifies one member of the closed agent catalog.
type AgentType string

const (
	AgentTrendMonitor       AgentType = "TREND_MONITOR"
	AgentCompetitorAnalyzer AgentType = "COMPETITOR_ANALYZER"
	AgentCommentResponder   AgentType = "COMMENT_RESPONDER"
	AgentContentScheduler   AgentType = "CONTENT_SCHEDULER"
	AgentQAChecker          AgentType = "QA_CHECKER"
	AgentKeywordResearcher  AgentType = "KEYWORD_RESEARCHER"
	AgentPerformanceLearner AgentType = "PERFORMANCE_LEARNER"
)

// AllAgentTypes lists the catalog in display order.
var AllAgentTypes = []AgentType{
	AgentTrendMonitor,
	AgentCompetitorAnalyzer,
	AgentCommentResponder,
	AgentContentScheduler,
	AgentQAChecker,
	AgentKeywordResearcher,
	AgentPerformanceLearner,
}

var agentDisplayNames = map[AgentType]string{
	AgentTrendMonitor:       "Trend Monitor",
	AgentCompetitorAnalyzer: "Competitor Analyzer",
	AgentCommentResponder:   "Comment Responder",
	AgentContentScheduler:   "Content Scheduler",
	AgentQAChecker:          "QA Checker",
	AgentKeywordResearcher:  "Keyword Researcher",
	AgentPerformanceLearner: "Performance Learner",
}

// ParseAgentType accepts the canonical upper-case name or a lower/kebab variant.
func ParseAgentType(s string) (AgentType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	t := AgentType(norm)
	if _, ok := agentDisplayNames[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgentType, s)
	}
	return t, nil
}

// Valid reports whether t is in the catalog.
func (t AgentType) Valid() bool {
	_, ok := agentDisplayNames[t]
	return ok
}

// DisplayName returns the human label, e.g. "Trend Monitor".
func (t AgentType) DisplayName() string {
	if n, ok := agentDisplayNames[t]; ok {
		return n
	}
	return string(t)
}

// AgentState is the lifecycle state of an agent record. RUNNING doubles as
// the per-agent execution mutex.
type AgentState string

const (
	AgentIdle     AgentState = "IDLE"
	AgentRunning  AgentState = "RUNNING"
	AgentDisabled AgentState = "DISABLED"
	AgentError    AgentState = "ERROR"
)

// Agent is a materialized configuration of one agent type, optionally scoped
// to a knowledge bundle. An empty KnowledgeID is the global scope.
type Agent struct {
	ID            string     `json:"id"`
	Type          AgentType  `json:"agent_type"`
	KnowledgeID   string     `json:"knowledge_id,omitempty"`
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	AutoExecute   bool       `json:"auto_execute"`
	State         AgentState `json:"state"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	TotalTasks    int        `json:"total_tasks"`
	Successes     int        `json:"successes"`
	Failures      int        `json:"failures"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SuccessRate is successes/total_tasks, or 0 when no task has run.
func (a *Agent) SuccessRate() float64 {
	if a.TotalTasks <= 0 {
		return 0
	}
	return float64(a.Successes) / float64(a.TotalTasks)
}

// DefaultAgentName is the auto-generated name for lazily created agents.
func DefaultAgentName(t AgentType, knowledgeID string) string {
	if knowledgeID == "" {
		return t.DisplayName()
	}
	short := knowledgeID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s (%s)", t.DisplayName(), short)
}

// TaskPriority orders tasks for display; the orchestrator does not reorder work by it.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "LOW"
	PriorityNormal   TaskPriority = "NORMAL"
	PriorityHigh     TaskPriority = "HIGH"
	PriorityCritical TaskPriority = "CRITICAL"
)

// TaskState is the state of one execution attempt.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskCancelled TaskState = "CANCELLED"
)

// Terminal reports whether s is a sealed state.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// CanTransition reports whether s -> next is a forward edge of
// PENDING -> RUNNING -> {COMPLETED, FAILED, CANCELLED}.
func (s TaskState) CanTransition(next TaskState) bool {
	switch s {
	case TaskPending:
		return next == TaskRunning || next == TaskCancelled
	case TaskRunning:
		return next.Terminal()
	default:
		return false
	}
}

// AgentTask is one execution attempt of an agent.
type AgentTask struct {
	ID           string          `json:"id"`
	AgentID      string          `json:"agent_id"`
	ScheduleID   string          `json:"schedule_id,omitempty"`
	Name         string          `json:"name"`
	Priority     TaskPriority    `json:"priority"`
	State        TaskState       `json:"state"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Duration     time.Duration   `json:"duration,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TaskName is the auto-generated name for a dispatch.
func TaskName(t AgentType) string {
	return string(t) + " execution"
}

// LogLevel is the severity of a durable agent log row.
type LogLevel string

const (
	LogDebug LogLevel = "DEBUG"
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// AgentLog is an append-only structured event.
type AgentLog struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	TaskID    string          `json:"task_id,omitempty"`
	Level     LogLevel        `json:"level"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AgentService is one per-type execution body. Implementations must return an
// error wrapping ErrCancelled when ctx is cancelled between suspension points.
type AgentService interface {
	Execute(ctx context.Context, agent *Agent, task *AgentTask, input json.RawMessage) (json.RawMessage, error)
}

// InputSchemaProvider is implemented by services that declare a JSON Schema
// for their input blob.
type InputSchemaProvider interface {
	InputSchema() []byte
}

// ExecutionResult is what executeAgent returns. Errors never escape dispatch
// as Go errors; they are reported here.
type ExecutionResult struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Code     ErrorCode       `json:"code,omitempty"`
	AgentID  string          `json:"agent_id,omitempty"`
	TaskID   string          `json:"task_id,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
	Duration time.Duration   `json:"duration,omitempty"`
}

// AgentSummaryRow is the per-agent line in a fleet summary.
type AgentSummaryRow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        AgentType  `json:"agent_type"`
	State       AgentState `json:"state"`
	Enabled     bool       `json:"enabled"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	SuccessRate float64    `json:"success_rate"`
}

// Summary aggregates agent counters across the fleet.
type Summary struct {
	TotalAgents   int               `json:"total_agents"`
	EnabledAgents int               `json:"enabled_agents"`
	RunningAgents int               `json:"running_agents"`
	TotalTasks    int               `json:"total_tasks"`
	Successes     int               `json:"successes"`
	Failures      int               `json:"failures"`
	Agents        []AgentSummaryRow `json:"agents"`
}
