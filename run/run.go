// Package run defines the Run and NodeRun records of spec §3 and the run
// status state machine of spec §4.7/§8.1: queued -> {running, cancelled},
// running -> {completed, failed, cancelled}, with terminal states as sinks.
package run

import (
	"time"

	"github.com/goflow/orchestrator/xerrors"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a sink state of the run state machine.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions enumerates the directed edges of the run status graph (spec
// §4.7). An empty destination set means s is terminal.
var transitions = map[Status]map[Status]bool{
	StatusQueued:    {StatusRunning: true, StatusCancelled: true},
	StatusRunning:   {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// CanTransition reports whether the run status graph permits from -> to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Run is the server-generated record of one workflow execution (spec §3).
type Run struct {
	ID             string
	WorkflowID     string
	OwnerUserID    string
	Wallet         string
	Status         Status
	CreatedAt      time.Time
	StartedAt      time.Time // zero until the first queued->running transition
	EndedAt        time.Time // zero until the first transition into a terminal state
	Chain          string
	Token          string
	ReservedBudget int64
	SpentBudget    int64
	OutputNodeID   string
	Output         any
	Error          string
}

// Transition moves the run to to, enforcing the state machine and the
// spec §8.1 invariants: startedAt is set exactly on the first
// queued->running transition, endedAt exactly on the first transition into
// a terminal state, and a run never reaches a terminal state twice.
func (r *Run) Transition(to Status, now time.Time) error {
	if r.Status.Terminal() {
		return xerrors.State("run %q is already terminal (%s), cannot transition to %s", r.ID, r.Status, to)
	}
	if !CanTransition(r.Status, to) {
		return xerrors.State("run %q cannot transition from %s to %s", r.ID, r.Status, to)
	}
	if r.Status == StatusQueued && to == StatusRunning {
		r.StartedAt = now
	}
	r.Status = to
	if to.Terminal() {
		r.EndedAt = now
	}
	return nil
}

// NodeRunStatus is the lifecycle state of a single node's execution within
// a run.
type NodeRunStatus string

const (
	NodeRunPending   NodeRunStatus = "pending"
	NodeRunRunning   NodeRunStatus = "running"
	NodeRunCompleted NodeRunStatus = "completed"
	NodeRunSkipped   NodeRunStatus = "skipped"
	NodeRunFailed    NodeRunStatus = "failed"
)

// NodeRun is the record of one node's execution within a Run (spec §3).
type NodeRun struct {
	ID              string
	RunID           string
	NodeID          string
	AgentRef        string
	Status          NodeRunStatus
	StartedAt       time.Time
	EndedAt         time.Time
	ResolvedInputs  map[string]any
	Output          any
	Cost            int64
	RetryCount      int
	Error           string
	TransactionHash string // set once a payment settles, even if the node later fails
	Logs            []string
}
