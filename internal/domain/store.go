package domain

import (
	"context"
	"time"
)

// TaskSeal carries the terminal transition for a running task. The store
// applies it atomically together with the agent counter update.
type TaskSeal struct {
	TaskID      string
	AgentID     string
	State       TaskState // COMPLETED, FAILED or CANCELLED
	Output      []byte
	Error       string
	CompletedAt time.Time
}

// AgentStore persists agents, tasks and logs. Only the orchestrator writes
// agent and task rows.
type AgentStore interface {
	// GetOrCreateAgent returns the unique agent for (type, knowledgeID),
	// creating it IDLE/enabled/auto-execute when absent.
	GetOrCreateAgent(ctx context.Context, t AgentType, knowledgeID, name string) (*Agent, error)
	GetAgent(ctx context.Context, id string) (*Agent, error)
	// ListAgents lists all agents; a non-empty knowledgeID filters by scope.
	ListAgents(ctx context.Context, knowledgeID string) ([]*Agent, error)
	SetAgentEnabled(ctx context.Context, id string, enabled bool) (*Agent, error)

	// ClaimAgent locks the agent row, rejects with ErrAgentBusy or
	// ErrAgentDisabled, and otherwise inserts task (PENDING), advances it to
	// RUNNING and marks the agent RUNNING in one transaction. No task row is
	// written when the claim is rejected.
	ClaimAgent(ctx context.Context, agentID string, task *AgentTask, now time.Time) (*Agent, error)
	// SealTask moves a RUNNING task to its terminal state, updates counters
	// with column-level increments and returns the agent to IDLE.
	SealTask(ctx context.Context, seal TaskSeal) (*AgentTask, error)
	// RecoverRunning seals every RUNNING task as FAILED with reason and
	// resets the owning agents. Returns the number of tasks sealed.
	RecoverRunning(ctx context.Context, reason string, now time.Time) (int, error)

	GetTask(ctx context.Context, id string) (*AgentTask, error)
	ListTasks(ctx context.Context, agentID string, limit int) ([]*AgentTask, error)
	CountTasks(ctx context.Context, agentID string, state TaskState) (int, error)

	AppendLog(ctx context.Context, entry *AgentLog) error
	ListLogs(ctx context.Context, agentID string, limit int) ([]*AgentLog, error)
}

// ArtifactStore persists agent outputs. Creation of artifacts carrying an
// external id is idempotent: the bool result reports whether a row was added.
type ArtifactStore interface {
	CreateTrendAlert(ctx context.Context, a *TrendAlert) error
	ListTrendAlerts(ctx context.Context, knowledgeID string, activeAt time.Time) ([]*TrendAlert, error)

	CreateCompetitorAlert(ctx context.Context, a *CompetitorAlert) (bool, error)
	ListCompetitorAlerts(ctx context.Context, knowledgeID string) ([]*CompetitorAlert, error)

	CreateCommentQueueEntry(ctx context.Context, e *CommentQueueEntry) (bool, error)
	CommentQueued(ctx context.Context, sourceCommentID string) (bool, error)
	ListCommentQueue(ctx context.Context, knowledgeID string, state CommentState) ([]*CommentQueueEntry, error)

	CreateCommentTemplate(ctx context.Context, t *CommentTemplate) error
	// ListCommentTemplates returns active templates for the sentiment,
	// highest priority first. Global templates (empty knowledge) are included.
	ListCommentTemplates(ctx context.Context, knowledgeID string, s Sentiment) ([]*CommentTemplate, error)

	UpsertMetricSnapshots(ctx context.Context, snaps []*MetricSnapshot) error
	ListMetricSnapshots(ctx context.Context, agentID, metric string) ([]*MetricSnapshot, error)
}

// ContentStore reads the tenant records agents consume. The write methods
// exist for seeding and for the HTTP front-end's CRUD paths.
type ContentStore interface {
	GetKnowledge(ctx context.Context, id string) (*Knowledge, error)
	PutKnowledge(ctx context.Context, k *Knowledge) error

	GetCompetitorResearch(ctx context.Context, knowledgeID string) (*CompetitorResearch, error)
	PutCompetitorResearch(ctx context.Context, r *CompetitorResearch) error

	// ListPublishedVideos returns uploads published at or after since, newest first.
	ListPublishedVideos(ctx context.Context, knowledgeID string, since time.Time, limit int) ([]*PublishedVideo, error)
	PutPublishedVideo(ctx context.Context, v *PublishedVideo) error

	// ListUpcomingPublications returns publications scheduled in [from, to).
	ListUpcomingPublications(ctx context.Context, knowledgeID string, from, to time.Time) ([]*Publication, error)
	PutPublication(ctx context.Context, p *Publication) error

	ListVideoMetrics(ctx context.Context, knowledgeID string, since time.Time) ([]*VideoMetric, error)
	PutVideoMetric(ctx context.Context, m *VideoMetric) error
}

// ScheduleStore persists cron bindings for agents.
type ScheduleStore interface {
	ListAgentSchedules(ctx context.Context, enabledOnly bool) ([]*AgentSchedule, error)
	PutAgentSchedule(ctx context.Context, s *AgentSchedule) error
	MarkScheduleRun(ctx context.Context, id string, at time.Time) error
}

// Store is the full durable store.
type Store interface {
	AgentStore
	ArtifactStore
	ContentStore
	ScheduleStore
	Close() error
}
