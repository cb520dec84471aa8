package main

import (
	"context"
	"fmt"

	gethclient "github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/httpclient"
	"github.com/goflow/orchestrator/chain"
	"github.com/goflow/orchestrator/engine"
	"github.com/goflow/orchestrator/ledger"
	"github.com/goflow/orchestrator/payment"
	"github.com/goflow/orchestrator/registry"
	"github.com/goflow/orchestrator/registry/store/memory"
	"github.com/goflow/orchestrator/scheduler"
	"github.com/goflow/orchestrator/telemetry"
	"github.com/goflow/orchestrator/workflow"
)

// app bundles the wired-up core components the CLI commands operate
// against: a registry seeded from AGENTS_FILE, a ledger, and a scheduler
// driving the execution engine.
type app struct {
	cfg       config
	logger    telemetry.Logger
	registry  *registry.Registry
	ledger    *ledger.Ledger
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
}

// newApp constructs the orchestrator's collaborators per the dependency-
// injection pattern of SPEC_FULL.md's ambient stack: no package-level
// singletons, everything wired explicitly at startup.
func newApp(cfg config) (*app, error) {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("constructing logger: %w", err)
	}
	logger := telemetry.NewZapLogger(zapLogger)
	tracer := telemetry.NewOtelTracer(otel.Tracer("github.com/goflow/orchestrator"))
	metrics := telemetry.NewOtelMetrics(otel.Meter("github.com/goflow/orchestrator"))

	reg := registry.New(memory.New())
	led := ledger.New()

	caller := httpclient.New()

	// paid is left as a nil interface (not a typed-nil *payment.Coordinator)
	// when construction fails, so the engine's own `e.paid == nil` check
	// behaves correctly (spec §6: "Absent SIGNER_KEY disables
	// PaymentCoordinator").
	var paid engine.PaymentCaller
	if coordinator, err := buildPaymentCoordinator(cfg, caller); err != nil {
		logger.Warn(context.Background(), "payment coordinator disabled", "error", err)
	} else {
		paid = coordinator
	}

	eng := engine.New(caller, paid, reg, led, engine.Config{Logger: logger, Tracer: tracer, Metrics: metrics})
	sched := scheduler.New(led, scheduler.Config{Logger: logger})

	a := &app{cfg: cfg, logger: logger, registry: reg, ledger: led, engine: eng, scheduler: sched}

	if cfg.AgentsFile != "" {
		if err := a.seedAgents(cfg.AgentsFile); err != nil {
			return nil, fmt.Errorf("seeding agents from %q: %w", cfg.AgentsFile, err)
		}
	}

	return a, nil
}

// buildPaymentCoordinator wires a payment.Coordinator from the signer/RPC
// chain implementations when SIGNER_KEY and RPC_URL are both configured and
// AUTO_PAYMENT is enabled, per spec §6.
func buildPaymentCoordinator(cfg config, caller a2a.Caller) (*payment.Coordinator, error) {
	if !cfg.AutoPayment || cfg.SignerKey == "" || cfg.RPCURL == "" {
		return nil, fmt.Errorf("payment coordinator requires AUTO_PAYMENT, SIGNER_KEY, and RPC_URL")
	}

	signer, err := chain.NewPrivateKeySigner(cfg.SignerKey)
	if err != nil {
		return nil, err
	}

	ethClient, err := gethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing RPC_URL: %w", err)
	}
	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("fetching chain id: %w", err)
	}

	rpc := chain.NewEthRPC(ethClient, chainID, signer)

	// A nil cap (MAX_PAYMENT_ATOMIC unset) is passed through unchanged:
	// payment.Coordinator treats it as "no cap".
	return payment.New(caller, signer, rpc, payment.Config{MaxPaymentAtomic: cfg.MaxPaymentAtomic}), nil
}

// seedAgents publishes every descriptor in path's AGENTS_FILE so the
// registry is immediately usable for validate/schedule without a separate
// create/publish round trip.
func (a *app) seedAgents(path string) error {
	descriptors, err := loadAgentsFile(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, d := range descriptors {
		created, err := a.registry.Create(ctx, d)
		if err != nil {
			return fmt.Errorf("registering agent %q: %w", d.Reference, err)
		}
		if _, err := a.registry.Publish(ctx, created.Reference); err != nil {
			return fmt.Errorf("publishing agent %q: %w", d.Reference, err)
		}
	}
	return nil
}

// schedulerMeta adapts a validated workflow.Spec to scheduler.WorkflowMeta.
func schedulerMeta(spec *workflow.Spec) scheduler.WorkflowMeta {
	return scheduler.WorkflowMeta{
		WorkflowID: spec.ID,
		OwnerID:    spec.OwnerUserID,
		Chain:      spec.Chain,
		Token:      spec.Token,
		MaxBudget:  spec.MaxBudget,
	}
}
