package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/ledger"
	"github.com/goflow/orchestrator/run"
	"github.com/goflow/orchestrator/scheduler"
	"github.com/goflow/orchestrator/xerrors"
)

func newScheduler(t *testing.T) (*scheduler.Scheduler, *ledger.Ledger) {
	t.Helper()
	led := ledger.New()
	led.Credit("alice", "USDC", 1000)
	return scheduler.New(led, scheduler.Config{Clock: func() time.Time { return time.Unix(0, 0) }}), led
}

func TestScheduleCreatesQueuedRunAndReservesBudget(t *testing.T) {
	s, led := newScheduler(t)

	r, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", OwnerID: "u1", Chain: "base", Token: "USDC", MaxBudget: 200}, "alice")
	require.NoError(t, err)
	assert.Equal(t, run.StatusQueued, r.Status)
	assert.Equal(t, int64(200), r.ReservedBudget)
	assert.Equal(t, int64(800), led.Balance("alice", "USDC"))

	got, ok := s.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, run.StatusQueued, got.Status)
}

func TestScheduleFailsWithInsufficientBudget(t *testing.T) {
	s, _ := newScheduler(t)

	_, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", OwnerID: "u1", Chain: "base", Token: "USDC", MaxBudget: 5000}, "alice")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindInsufficientBudget))
}

func TestNextDequeuesFIFO(t *testing.T) {
	s, _ := newScheduler(t)

	r1, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", MaxBudget: 10, Token: "USDC"}, "alice")
	require.NoError(t, err)
	r2, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-2", MaxBudget: 10, Token: "USDC"}, "alice")
	require.NoError(t, err)

	id1, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, r1.ID, id1)

	id2, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, r2.ID, id2)

	_, ok = s.Next()
	assert.False(t, ok)
}

func TestCancelQueuedRunRemovesFromQueueAndReleasesFull(t *testing.T) {
	s, led := newScheduler(t)

	r, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", MaxBudget: 300, Token: "USDC"}, "alice")
	require.NoError(t, err)

	require.NoError(t, s.Cancel(r.ID))

	got, ok := s.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, run.StatusCancelled, got.Status)
	assert.Equal(t, int64(1000), led.Balance("alice", "USDC"))

	_, ok = s.Next()
	assert.False(t, ok, "cancelled run must not be handed to a worker")
}

func TestCancelRunningRunReleasesUnspentRemainder(t *testing.T) {
	s, led := newScheduler(t)

	r, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", MaxBudget: 300, Token: "USDC"}, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Transition(r.ID, run.StatusRunning, time.Unix(1, 0)))
	s.RecordSpend(r.ID, 50)

	require.NoError(t, s.Cancel(r.ID))

	assert.Equal(t, int64(950), led.Balance("alice", "USDC"), "700 held back plus 250 unspent remainder refunded")
}

func TestCancelAfterTerminalIsRejected(t *testing.T) {
	s, _ := newScheduler(t)

	r, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", MaxBudget: 300, Token: "USDC"}, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Cancel(r.ID))

	err = s.Cancel(r.ID)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindState))
}

func TestCancelUnknownRunIsRejected(t *testing.T) {
	s, _ := newScheduler(t)

	err := s.Cancel("does-not-exist")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindState))
}

func TestRecordSpendClampsToReservedBudget(t *testing.T) {
	s, _ := newScheduler(t)

	r, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", MaxBudget: 100, Token: "USDC"}, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Transition(r.ID, run.StatusRunning, time.Unix(1, 0)))

	spent := s.RecordSpend(r.ID, 60)
	assert.Equal(t, int64(60), spent)
	spent = s.RecordSpend(r.ID, 80)
	assert.Equal(t, int64(100), spent, "spend must clamp at the reserved budget")
	assert.Equal(t, int64(100), s.Spent(r.ID))
}

func TestNodeRunsRecordsAppendedHistoryInOrder(t *testing.T) {
	s, _ := newScheduler(t)

	r, err := s.Schedule(scheduler.WorkflowMeta{WorkflowID: "wf-1", MaxBudget: 100, Token: "USDC"}, "alice")
	require.NoError(t, err)

	s.AppendNodeRun(r.ID, &run.NodeRun{ID: "nr-1", NodeID: "a", Status: run.NodeRunCompleted})
	s.AppendNodeRun(r.ID, &run.NodeRun{ID: "nr-2", NodeID: "b", Status: run.NodeRunCompleted})

	nrs := s.NodeRuns(r.ID)
	require.Len(t, nrs, 2)
	assert.Equal(t, "a", nrs[0].NodeID)
	assert.Equal(t, "b", nrs[1].NodeID)
}
