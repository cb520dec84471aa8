package telemetry_test

import (
	"context"
	"testing"

	"github.com/goflow/orchestrator/telemetry"
)

func TestNoopsNeverPanic(t *testing.T) {
	ctx := context.Background()
	var log telemetry.Logger = telemetry.NoopLogger{}
	log.Info(ctx, "hello", "k", "v")

	var tr telemetry.Tracer = telemetry.NoopTracer{}
	ctx, span := tr.Start(ctx, "op")
	span.SetAttribute("k", "v")
	span.RecordError(nil)
	span.End()

	var m telemetry.Metrics = telemetry.NoopMetrics{}
	m.IncCounter("calls", map[string]string{"agent": "echo"})
	m.ObserveHistogram("latency_ms", 12.5, nil)
	_ = ctx
}
