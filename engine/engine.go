// Package engine implements the ExecutionEngine of spec §4.7: topological
// scheduling of a validated workflow's nodes, template-driven dataflow
// between them, per-node retry with backoff, payment dispatch, and
// terminal run/NodeRun bookkeeping.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/retry"
	"github.com/goflow/orchestrator/a2a/types"
	"github.com/goflow/orchestrator/payment"
	"github.com/goflow/orchestrator/registry"
	"github.com/goflow/orchestrator/run"
	"github.com/goflow/orchestrator/telemetry"
	"github.com/goflow/orchestrator/template"
	"github.com/goflow/orchestrator/workflow"
	"github.com/goflow/orchestrator/xerrors"
)

// Caller is the narrow unpaid-dispatch capability the engine needs from
// the AgentCaller (spec §4.5); httpclient.Client satisfies it directly.
type Caller interface {
	Call(ctx context.Context, endpointBase string, inputs map[string]any, contextID string) (types.Result, error)
}

// PaymentCaller is the narrow paid-dispatch capability the engine needs
// from the PaymentCoordinator (spec §4.6); payment.Coordinator satisfies
// it directly. It is optional: a nil PaymentCaller means no payment
// coordinator was configured (the CLI leaves it nil unless AUTO_PAYMENT,
// SIGNER_KEY and RPC_URL are all set), and paywalled agents fail with a
// PaymentError rather than panicking.
type PaymentCaller interface {
	CallPaid(ctx context.Context, endpointBase string, inputs map[string]any, contextID string) (types.Result, *payment.Settlement, error)
}

// AgentLookup is the narrow descriptor-read capability the engine needs
// from the AgentRegistry.
type AgentLookup interface {
	Get(ctx context.Context, ref string) (*registry.Descriptor, error)
}

// Ledger is the narrow budget capability the engine needs: release
// unspent reservation funds once a run reaches a terminal state (spec
// §4.7 step 4 / §4.2).
type Ledger interface {
	Release(runID string, spent int64) error
}

// RunStore is the narrow run/NodeRun bookkeeping capability the engine
// needs from whatever owns canonical run state (the WorkflowScheduler).
// Splitting this out, rather than mutating *run.Run directly, lets the
// scheduler serialize concurrent access (a worker executing the run and
// an operator cancelling it) behind one lock per run.
type RunStore interface {
	// Status returns the run's current status, used at every node
	// boundary to honor best-effort cancellation (spec §4.8/§5).
	Status(runID string) (run.Status, bool)
	// Transition advances the run's status, enforcing the state machine.
	Transition(runID string, to run.Status, now time.Time) error
	// RecordSpend adds amount to the run's running spent total and
	// returns the new total.
	RecordSpend(runID string, amount int64) (spent int64)
	// Spent returns the run's current spent total without mutating it.
	Spent(runID string) int64
	// SetOutput records the run's final output once the last node (or the
	// declared Outputs mapping) resolves.
	SetOutput(runID string, outputNodeID string, output any)
	// SetError records the run's terminal error message.
	SetError(runID string, message string)
	// AppendNodeRun records one node's execution record.
	AppendNodeRun(runID string, nr *run.NodeRun)
}

// Config bounds the engine's collaborators that are not per-call
// arguments: telemetry, and the two seams tests override for
// determinism (Clock, Sleep).
type Config struct {
	Logger  telemetry.Logger
	Tracer  telemetry.Tracer
	Metrics telemetry.Metrics
	// Clock returns the current time; overridable in tests.
	Clock func() time.Time
	// Sleep pauses for d between retry attempts; overridable in tests so
	// retry-policy tests don't block on real backoff delays.
	Sleep func(d time.Duration)
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = telemetry.NoopLogger{}
	}
	if c.Tracer == nil {
		c.Tracer = telemetry.NoopTracer{}
	}
	if c.Metrics == nil {
		c.Metrics = telemetry.NoopMetrics{}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
}

// Engine is the concrete ExecutionEngine of spec §4.7.
type Engine struct {
	caller Caller
	paid   PaymentCaller // nil disables paid dispatch (spec §6)
	agents AgentLookup
	ledger Ledger
	cfg    Config
}

// New constructs an Engine. paid may be nil if the deployment has no
// signer configured; paywalled agents will then fail with PaymentError.
func New(caller Caller, paid PaymentCaller, agents AgentLookup, ledger Ledger, cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{caller: caller, paid: paid, agents: agents, ledger: ledger, cfg: cfg}
}

// Execute implements spec §4.7's deterministic steps against a run whose
// status is already StatusRunning in store (the caller — normally the
// scheduler's worker loop — performs the queued->running transition
// before calling Execute, since that transition is a scheduling concern).
func (e *Engine) Execute(ctx context.Context, spec *workflow.Spec, store RunStore, runID string, inputs map[string]any) {
	ctx, span := e.cfg.Tracer.Start(ctx, "engine.Execute")
	span.SetAttribute("workflow.id", spec.ID)
	span.SetAttribute("run.id", runID)
	defer span.End()

	order, err := workflow.TopologicalOrder(spec)
	if err != nil {
		e.fail(ctx, store, runID, xerrors.Execution("cycle"))
		return
	}

	dataflow := template.Context{"input": inputs}

	var lastNodeID string
	for _, nodeID := range order {
		if status, ok := store.Status(runID); !ok || status.Terminal() {
			// Cancellation observed at a node boundary (spec §4.8/§5):
			// refuse to start further nodes. The run's own terminal
			// transition already happened (e.g. via Cancel); nothing
			// further to record here.
			e.cfg.Logger.Info(ctx, "run terminal at node boundary, aborting", "run_id", runID, "node_id", nodeID)
			return
		}

		node, ok := spec.NodeByID(nodeID)
		if !ok {
			e.fail(ctx, store, runID, xerrors.Execution("topological order referenced unknown node %q", nodeID))
			return
		}

		output, execErr := e.runNode(ctx, store, runID, node, dataflow)
		if execErr != nil {
			e.failRemaining(store, runID, spec, order, nodeID)
			e.fail(ctx, store, runID, execErr)
			return
		}

		dataflow[nodeID] = output
		lastNodeID = nodeID
	}

	output, outputNodeID := resolveRunOutput(spec, dataflow, lastNodeID)
	store.SetOutput(runID, outputNodeID, output)

	if err := store.Transition(runID, run.StatusCompleted, e.cfg.Clock()); err != nil {
		e.cfg.Logger.Error(ctx, "completing run", "run_id", runID, "error", err)
	}
	if e.ledger != nil {
		if err := e.ledger.Release(runID, store.Spent(runID)); err != nil {
			e.cfg.Logger.Error(ctx, "releasing budget on completion", "run_id", runID, "error", err)
		}
	}
}

// resolveRunOutput implements the resolved Open Question of spec §9 /
// SPEC_FULL.md: the run's output is the declared Outputs template mapping
// when the spec provides one, otherwise the last node's output in
// topological order.
func resolveRunOutput(spec *workflow.Spec, dataflow template.Context, lastNodeID string) (any, string) {
	if len(spec.Outputs) > 0 {
		resolved := make(map[string]any, len(spec.Outputs))
		for key, tmpl := range spec.Outputs {
			resolved[key] = template.Resolve(tmpl, dataflow)
		}
		return resolved, ""
	}
	return dataflow[lastNodeID], lastNodeID
}

// runNode resolves inputs, dispatches to the agent (with retry on
// transient failure), records the NodeRun, and charges the ledger on
// success. It returns the extracted output, or a non-nil error if every
// attempt was exhausted.
func (e *Engine) runNode(ctx context.Context, store RunStore, runID string, node workflow.Node, dataflow template.Context) (any, error) {
	ctx, span := e.cfg.Tracer.Start(ctx, "engine.runNode")
	span.SetAttribute("node.id", node.ID)
	defer span.End()

	nr := &run.NodeRun{
		ID:        uuid.NewString(),
		RunID:     runID,
		NodeID:    node.ID,
		AgentRef:  node.AgentRef,
		Status:    run.NodeRunRunning,
		StartedAt: e.cfg.Clock(),
	}

	descriptor, err := e.agents.Get(ctx, node.AgentRef)
	if err != nil {
		nr.Status = run.NodeRunFailed
		nr.Error = err.Error()
		nr.EndedAt = e.cfg.Clock()
		store.AppendNodeRun(runID, nr)
		return nil, err
	}

	resolvedAny := template.Resolve(node.Inputs, dataflow)
	resolvedInputs, _ := resolvedAny.(map[string]any)
	nr.ResolvedInputs = resolvedInputs

	if err := registry.ValidateInput(descriptor.InputSchema, resolvedInputs); err != nil {
		nr.Status = run.NodeRunFailed
		nr.Error = err.Error()
		nr.EndedAt = e.cfg.Clock()
		store.AppendNodeRun(runID, nr)
		return nil, err
	}

	output, err := e.dispatchWithRetry(ctx, store, runID, node, descriptor, resolvedInputs, nr)
	nr.EndedAt = e.cfg.Clock()
	if err != nil {
		nr.Status = run.NodeRunFailed
		nr.Error = err.Error()
		store.AppendNodeRun(runID, nr)
		e.cfg.Metrics.IncCounter("engine_node_failed_total", map[string]string{"node_id": node.ID})
		return nil, err
	}

	nr.Status = run.NodeRunCompleted
	nr.Cost = descriptor.Pricing.Amount
	store.AppendNodeRun(runID, nr)
	store.RecordSpend(runID, nr.Cost)
	e.cfg.Metrics.IncCounter("engine_node_completed_total", map[string]string{"node_id": node.ID})
	return output, nil
}

// dispatchWithRetry implements spec §4.7's per-node retry policy: linear
// backoff (backoffMs * attempt, SPEC_FULL.md's resolved Open Question),
// only for errors retry.IsRetryable classifies as transient. A payment
// settlement that succeeds but whose proof-retry delivery fails is never
// retried at this layer regardless of classification — spec §4.6's
// "never pay twice" security property — it is recorded on nr and
// returned as a terminal failure for this node.
func (e *Engine) dispatchWithRetry(ctx context.Context, store RunStore, runID string, node workflow.Node, descriptor *registry.Descriptor, inputs map[string]any, nr *run.NodeRun) (any, error) {
	maxAttempts := 1
	var backoffMS int64
	if node.Retry != nil {
		maxAttempts = node.Retry.MaxAttempts
		backoffMS = node.Retry.BackoffMS
	}

	contextID := runID + ":" + node.ID

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if status, ok := store.Status(runID); !ok || status.Terminal() {
			return nil, xerrors.Execution("run %q became terminal mid-node", runID)
		}

		result, settlement, err := e.dispatch(ctx, descriptor, inputs, contextID)
		if settlement != nil {
			nr.TransactionHash = settlement.TransactionHash
		}
		if err == nil {
			output, extractErr := a2a.ExtractOutput(result)
			if extractErr == nil {
				nr.RetryCount = attempt - 1
				return output, nil
			}
			err = extractErr
		}
		lastErr = err

		if settlement != nil {
			// Already paid this node; a second attempt would transfer
			// twice. Fail now instead of retrying.
			break
		}
		if attempt == maxAttempts || !retry.IsRetryable(err) {
			break
		}
		nr.RetryCount = attempt
		e.cfg.Logger.Warn(ctx, "retrying node after transient failure", "run_id", runID, "node_id", node.ID, "attempt", attempt, "error", err)
		if backoffMS > 0 {
			e.cfg.Sleep(time.Duration(retry.Backoff(backoffMS, attempt)) * time.Millisecond)
		}
	}
	return nil, lastErr
}

// dispatch routes to the paid or unpaid caller depending on the
// descriptor's pricing policy (spec §4.7 step 3b).
func (e *Engine) dispatch(ctx context.Context, descriptor *registry.Descriptor, inputs map[string]any, contextID string) (types.Result, *payment.Settlement, error) {
	if !descriptor.Pricing.RequiresPayment {
		result, err := e.caller.Call(ctx, descriptor.EndpointURL, inputs, contextID)
		return result, nil, err
	}
	if e.paid == nil {
		return types.Result{}, nil, xerrors.Payment("agent %q requires payment but no payment coordinator is configured", descriptor.Reference)
	}
	result, settlement, err := e.paid.CallPaid(ctx, descriptor.EndpointURL, inputs, contextID)
	return result, settlement, err
}

// failRemaining marks every node after failedNodeID in order as skipped
// (spec §4.7: "no downstream nodes execute").
func (e *Engine) failRemaining(store RunStore, runID string, spec *workflow.Spec, order []string, failedNodeID string) {
	skipping := false
	for _, id := range order {
		if id == failedNodeID {
			skipping = true
			continue
		}
		if !skipping {
			continue
		}
		node, ok := spec.NodeByID(id)
		if !ok {
			continue
		}
		store.AppendNodeRun(runID, &run.NodeRun{
			ID:       uuid.NewString(),
			RunID:    runID,
			NodeID:   node.ID,
			AgentRef: node.AgentRef,
			Status:   run.NodeRunSkipped,
		})
	}
}

// fail transitions the run to failed, records the error, and releases
// unspent budget.
func (e *Engine) fail(ctx context.Context, store RunStore, runID string, cause error) {
	e.cfg.Logger.Error(ctx, "run failed", "run_id", runID, "error", cause)
	store.SetError(runID, cause.Error())
	if err := store.Transition(runID, run.StatusFailed, e.cfg.Clock()); err != nil {
		e.cfg.Logger.Error(ctx, "transitioning run to failed", "run_id", runID, "error", err)
	}
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Release(runID, store.Spent(runID)); err != nil {
		e.cfg.Logger.Error(ctx, "releasing budget on failure", "run_id", runID, "error", err)
	}
}
