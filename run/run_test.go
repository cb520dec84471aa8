package run_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/run"
	"github.com/goflow/orchestrator/xerrors"
)

func TestTransitionQueuedToRunningSetsStartedAt(t *testing.T) {
	r := &run.Run{ID: "run-1", Status: run.StatusQueued}
	now := time.Now()

	require.NoError(t, r.Transition(run.StatusRunning, now))
	assert.Equal(t, run.StatusRunning, r.Status)
	assert.Equal(t, now, r.StartedAt)
	assert.True(t, r.EndedAt.IsZero())
}

func TestTransitionIntoTerminalSetsEndedAt(t *testing.T) {
	r := &run.Run{ID: "run-1", Status: run.StatusRunning}
	now := time.Now()

	require.NoError(t, r.Transition(run.StatusCompleted, now))
	assert.Equal(t, run.StatusCompleted, r.Status)
	assert.Equal(t, now, r.EndedAt)
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	r := &run.Run{ID: "run-1", Status: run.StatusQueued}

	err := r.Transition(run.StatusCompleted, time.Now())
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindState))
	assert.Equal(t, run.StatusQueued, r.Status)
}

func TestTransitionNeverLeavesTerminalTwice(t *testing.T) {
	r := &run.Run{ID: "run-1", Status: run.StatusRunning}
	require.NoError(t, r.Transition(run.StatusFailed, time.Now()))

	err := r.Transition(run.StatusCancelled, time.Now())
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindState))
}

func TestTerminalStatesAreSinks(t *testing.T) {
	for _, s := range []run.Status{run.StatusCompleted, run.StatusFailed, run.StatusCancelled} {
		assert.True(t, s.Terminal())
		assert.Empty(t, transitionsFrom(s))
	}
	assert.False(t, run.StatusQueued.Terminal())
	assert.False(t, run.StatusRunning.Terminal())
}

func transitionsFrom(s run.Status) []run.Status {
	var out []run.Status
	for _, to := range []run.Status{run.StatusQueued, run.StatusRunning, run.StatusCompleted, run.StatusFailed, run.StatusCancelled} {
		if run.CanTransition(s, to) {
			out = append(out, to)
		}
	}
	return out
}
