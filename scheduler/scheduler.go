// Package scheduler implements the WorkflowScheduler of spec §4.8: it
// accepts validated workflow runs, reserves budget via the BudgetLedger,
// maintains the run-status state machine, and hands runs to worker
// goroutines that drive the ExecutionEngine. It also implements
// engine.RunStore, serializing concurrent access to each run's state
// behind a per-run lock so an in-flight execution and a concurrent
// Cancel never race.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goflow/orchestrator/engine"
	"github.com/goflow/orchestrator/ledger"
	"github.com/goflow/orchestrator/run"
	"github.com/goflow/orchestrator/telemetry"
	"github.com/goflow/orchestrator/xerrors"
)

// Ledger is the narrow budget capability the scheduler needs from the
// BudgetLedger (spec §4.2); ledger.Ledger satisfies it directly.
type Ledger interface {
	Reserve(runID, wallet string, amount int64, token, chain string) (*ledger.Reservation, error)
	Release(runID string, spent int64) error
}

// entry holds one run's mutable state plus its NodeRun history, guarded
// by its own mutex so a worker executing the run and an operator calling
// Cancel never race on the same Run.
type entry struct {
	mu       sync.Mutex
	run      *run.Run
	nodeRuns []*run.NodeRun
	spent    int64
}

// Scheduler is the concrete WorkflowScheduler of spec §4.8.
type Scheduler struct {
	ledger Ledger
	clock  func() time.Time
	logger telemetry.Logger

	mu      sync.Mutex
	entries map[string]*entry
	queue   []string
}

// Config bounds the Scheduler's collaborators not passed per-call.
type Config struct {
	Clock  func() time.Time
	Logger telemetry.Logger
}

// New constructs a Scheduler backed by ledger.
func New(ledger Ledger, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NoopLogger{}
	}
	return &Scheduler{
		ledger:  ledger,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		entries: make(map[string]*entry),
	}
}

// WorkflowMeta is the subset of a workflow.Spec the scheduler needs to
// create a Run without importing the workflow package's full validation
// surface — the caller is expected to have already run
// workflow.Validate(spec, registry) before calling Schedule.
type WorkflowMeta struct {
	WorkflowID string
	OwnerID    string
	Chain      string
	Token      string
	MaxBudget  int64
}

// Schedule implements spec §4.8: creates a Run in StatusQueued, reserves
// the workflow's MaxBudget from wallet, and enqueues the run id for
// worker pickup via Next.
func (s *Scheduler) Schedule(meta WorkflowMeta, wallet string) (*run.Run, error) {
	id := uuid.NewString()

	if _, err := s.ledger.Reserve(id, wallet, meta.MaxBudget, meta.Token, meta.Chain); err != nil {
		return nil, err
	}

	r := &run.Run{
		ID:             id,
		WorkflowID:     meta.WorkflowID,
		OwnerUserID:    meta.OwnerID,
		Wallet:         wallet,
		Status:         run.StatusQueued,
		CreatedAt:      s.clock(),
		Chain:          meta.Chain,
		Token:          meta.Token,
		ReservedBudget: meta.MaxBudget,
	}

	s.mu.Lock()
	s.entries[id] = &entry{run: r}
	s.queue = append(s.queue, id)
	s.mu.Unlock()

	return r, nil
}

// Next dequeues the oldest queued run id, or returns ok == false if the
// queue is empty. It does not itself transition the run to running; the
// worker loop does that via Transition once it has actually picked the
// run up, so a run observed queued by Next but not yet started is still
// cancellable.
func (s *Scheduler) Next() (runID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	runID = s.queue[0]
	s.queue = s.queue[1:]
	return runID, true
}

// Get returns a copy of the run's current state.
func (s *Scheduler) Get(runID string) (*run.Run, bool) {
	e, ok := s.lookup(runID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.run
	return &cp, true
}

// NodeRuns returns the recorded NodeRun history for runID, in execution
// order.
func (s *Scheduler) NodeRuns(runID string) []*run.NodeRun {
	e, ok := s.lookup(runID)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*run.NodeRun, len(e.nodeRuns))
	copy(out, e.nodeRuns)
	return out
}

// Cancel implements spec §4.8: valid while queued or running. A queued
// run is dropped from the queue; a running run is marked cancelled and
// relies on the engine's node-boundary check (spec §5) to stop further
// dispatch. Either way the full reservation (less anything already spent)
// is released exactly once.
func (s *Scheduler) Cancel(runID string) error {
	e, ok := s.lookup(runID)
	if !ok {
		return xerrors.State("no run %q known to the scheduler", runID)
	}

	e.mu.Lock()
	if e.run.Status.Terminal() {
		e.mu.Unlock()
		return xerrors.State("run %q is already terminal (%s)", runID, e.run.Status)
	}
	wasQueued := e.run.Status == run.StatusQueued
	if err := e.run.Transition(run.StatusCancelled, s.clock()); err != nil {
		e.mu.Unlock()
		return err
	}
	spent := e.spent
	e.mu.Unlock()

	if wasQueued {
		s.removeFromQueue(runID)
	}

	return s.ledger.Release(runID, spent)
}

func (s *Scheduler) removeFromQueue(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.queue {
		if id == runID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) lookup(runID string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[runID]
	return e, ok
}

// --- engine.RunStore ---

// Status returns the run's current status.
func (s *Scheduler) Status(runID string) (run.Status, bool) {
	e, ok := s.lookup(runID)
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Status, true
}

// Transition advances the run's status, enforcing the state machine.
func (s *Scheduler) Transition(runID string, to run.Status, now time.Time) error {
	e, ok := s.lookup(runID)
	if !ok {
		return xerrors.State("no run %q known to the scheduler", runID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Transition(to, now)
}

// RecordSpend adds amount to the run's running spent total, enforcing
// the spec §3 invariant spent <= reserved, and returns the new total.
func (s *Scheduler) RecordSpend(runID string, amount int64) int64 {
	e, ok := s.lookup(runID)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spent += amount
	if e.spent > e.run.ReservedBudget {
		e.spent = e.run.ReservedBudget
	}
	e.run.SpentBudget = e.spent
	return e.spent
}

// Spent returns the run's current spent total without mutating it.
func (s *Scheduler) Spent(runID string) int64 {
	e, ok := s.lookup(runID)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spent
}

// SetOutput records the run's final output.
func (s *Scheduler) SetOutput(runID string, outputNodeID string, output any) {
	e, ok := s.lookup(runID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.OutputNodeID = outputNodeID
	e.run.Output = output
}

// SetError records the run's terminal error message.
func (s *Scheduler) SetError(runID string, message string) {
	e, ok := s.lookup(runID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Error = message
}

// AppendNodeRun records one node's execution record.
func (s *Scheduler) AppendNodeRun(runID string, nr *run.NodeRun) {
	e, ok := s.lookup(runID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodeRuns = append(e.nodeRuns, nr)
}

var _ engine.RunStore = (*Scheduler)(nil)

// Worker is the function signature the caller's pool invokes to execute
// one dequeued run; normally (*engine.Engine).Execute bound to the run's
// resolved workflow.Spec and inputs.
type Worker func(ctx context.Context, store *Scheduler, runID string)

// Run implements spec §5's "one worker per run (or a worker pool)" model:
// it blocks, repeatedly pulling the next queued run id and invoking
// work on it synchronously, until ctx is cancelled. Callers that want
// concurrent runs start several goroutines each calling Run with the
// same Scheduler.
func (s *Scheduler) Run(ctx context.Context, poll time.Duration, work Worker) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runID, ok := s.Next()
			if !ok {
				continue
			}
			if err := s.Transition(runID, run.StatusRunning, s.clock()); err != nil {
				s.logger.Error(ctx, "starting run", "run_id", runID, "error", err)
				continue
			}
			work(ctx, s, runID)
		}
	}
}
