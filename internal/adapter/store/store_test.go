package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), time.Second*5)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAgent(t *testing.T, s *Store, typ domain.AgentType, knowledgeID string) *domain.Agent {
	t.Helper()
	a, err := s.GetOrCreateAgent(context.Background(), typ, knowledgeID, domain.DefaultAgentName(typ, knowledgeID))
	require.NoError(t, err)
	return a
}

func TestDialectRebind(t *testing.T) {
	q := "SELECT * FROM agents WHERE id = ? AND state = ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "SELECT * FROM agents WHERE id = $1 AND state = $2", Postgres.Rebind(q))
	assert.Equal(t, "", SQLite.ForUpdate())
	assert.Equal(t, " FOR UPDATE", Postgres.ForUpdate())
	assert.Equal(t, "postgres", Postgres.String())
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/tmp/x.db", 2*time.Second)
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "busy_timeout%282000%29")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestTimestampOrdering(t *testing.T) {
	a := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	b := a.Add(1500 * time.Microsecond)
	assert.Less(t, ts(a), ts(b))
	assert.Equal(t, b, parseTS(ts(b)))
}

func TestGetOrCreateAgentIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a1 := mustAgent(t, s, domain.AgentTrendMonitor, "kb-1")
	a2 := mustAgent(t, s, domain.AgentTrendMonitor, "kb-1")
	assert.Equal(t, a1.ID, a2.ID)
	assert.Equal(t, domain.AgentIdle, a1.State)
	assert.True(t, a1.Enabled)

	global := mustAgent(t, s, domain.AgentTrendMonitor, "")
	assert.NotEqual(t, a1.ID, global.ID)

	all, err := s.ListAgents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := s.ListAgents(ctx, "kb-1")
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
}

func TestGetOrCreateAgentConcurrent(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.GetOrCreateAgent(context.Background(), domain.AgentQAChecker, "kb", "QA")
			if assert.NoError(t, err) {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAgent(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.CodeAgentNotFound, domain.ErrorCodeOf(err))
}

func TestClaimAndSealCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentKeywordResearcher, "kb")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	task := &domain.AgentTask{Name: domain.TaskName(a.Type), Input: json.RawMessage(`{"seed_keyword":"AI"}`)}
	claimed, err := s.ClaimAgent(ctx, a.ID, task, start)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRunning, claimed.State)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, domain.TaskRunning, task.State)

	stored, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRunning, stored.State)
	assert.JSONEq(t, `{"seed_keyword":"AI"}`, string(stored.Input))

	done, err := s.SealTask(ctx, domain.TaskSeal{
		TaskID: task.ID, AgentID: a.ID, State: domain.TaskCompleted,
		Output: []byte(`{"ok":true}`), CompletedAt: start.Add(1500 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, done.State)
	assert.Equal(t, 1500*time.Millisecond, done.Duration)

	after, err := s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentIdle, after.State)
	assert.Equal(t, 1, after.TotalTasks)
	assert.Equal(t, 1, after.Successes)
	assert.Equal(t, 0, after.Failures)
	require.NotNil(t, after.LastSuccessAt)
	assert.Empty(t, after.LastError)

	// Sealing twice is rejected.
	_, err = s.SealTask(ctx, domain.TaskSeal{TaskID: task.ID, State: domain.TaskFailed, CompletedAt: start})
	assert.True(t, errors.Is(err, domain.ErrTaskNotRunning))
}

func TestClaimRejectsBusyAndDisabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentTrendMonitor, "kb")
	now := time.Now()

	_, err := s.ClaimAgent(ctx, a.ID, &domain.AgentTask{Name: "first"}, now)
	require.NoError(t, err)

	_, err = s.ClaimAgent(ctx, a.ID, &domain.AgentTask{Name: "second"}, now)
	assert.True(t, errors.Is(err, domain.ErrAgentBusy))

	n, err := s.CountTasks(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rejected claim writes no task row")

	_, err = s.SetAgentEnabled(ctx, a.ID, false)
	assert.True(t, errors.Is(err, domain.ErrAgentBusy))

	other := mustAgent(t, s, domain.AgentQAChecker, "kb")
	disabled, err := s.SetAgentEnabled(ctx, other.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentDisabled, disabled.State)

	_, err = s.ClaimAgent(ctx, other.ID, &domain.AgentTask{Name: "x"}, now)
	assert.True(t, errors.Is(err, domain.ErrAgentDisabled))

	enabled, err := s.SetAgentEnabled(ctx, other.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentIdle, enabled.State)
}

func TestConcurrentClaimsOneWinner(t *testing.T) {
	s := newTestStore(t)
	a := mustAgent(t, s, domain.AgentCompetitorAnalyzer, "kb")

	const n = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		busy int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimAgent(context.Background(), a.ID, &domain.AgentTask{Name: "race"}, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAgentBusy):
				busy++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, busy)
}

func TestSealFailedAndCancelledCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentQAChecker, "kb")
	now := time.Now()

	t1 := &domain.AgentTask{Name: "one"}
	_, err := s.ClaimAgent(ctx, a.ID, t1, now)
	require.NoError(t, err)
	_, err = s.SealTask(ctx, domain.TaskSeal{TaskID: t1.ID, State: domain.TaskFailed, Error: "boom", CompletedAt: now})
	require.NoError(t, err)

	t2 := &domain.AgentTask{Name: "two"}
	_, err = s.ClaimAgent(ctx, a.ID, t2, now.Add(time.Second))
	require.NoError(t, err)
	_, err = s.SealTask(ctx, domain.TaskSeal{TaskID: t2.ID, State: domain.TaskCancelled, Error: "Cancelled by user", CompletedAt: now.Add(2 * time.Second)})
	require.NoError(t, err)

	got, err := s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalTasks)
	assert.Equal(t, 0, got.Successes)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, "Cancelled by user", got.LastError)
	assert.Equal(t, domain.AgentIdle, got.State)

	failed, err := s.CountTasks(ctx, a.ID, domain.TaskFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	tasks, err := s.ListTasks(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, t2.ID, tasks[0].ID, "newest first")
}

func TestSealRejectsNonTerminalState(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SealTask(context.Background(), domain.TaskSeal{TaskID: "x", State: domain.TaskRunning})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRecoverRunning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentContentScheduler, "kb")
	now := time.Now()

	task := &domain.AgentTask{Name: "orphan"}
	_, err := s.ClaimAgent(ctx, a.ID, task, now)
	require.NoError(t, err)

	n, err := s.RecoverRunning(ctx, "Interrupted by restart", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, got.State)
	assert.Equal(t, "Interrupted by restart", got.ErrorMessage)

	agent, err := s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentIdle, agent.State)
	assert.Equal(t, 1, agent.Failures)
}

func TestLogsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustAgent(t, s, domain.AgentTrendMonitor, "")
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, msg := range []string{"Task started", "Task completed"} {
		require.NoError(t, s.AppendLog(ctx, &domain.AgentLog{
			AgentID: a.ID, Level: domain.LogInfo, Message: msg, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	logs, err := s.ListLogs(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Task completed", logs[0].Message)
	assert.Equal(t, domain.LogInfo, logs[1].Level)
}
