package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/kernel"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInstrumentedEngineRecordsCallsAndSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	pool, err := kernel.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if err := pool.Furnish("../../kernel/testdata/planets.toml"); err != nil {
		t.Fatalf("Furnish: %v", err)
	}
	collector, _ := newTestCollector(t)

	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")
	eng := Instrument(pool, collector).WithContext(ctx)

	if _, err := eng.State(naif.Earth, 0, ephem.FrameJ2000, naif.SSB); err != nil {
		t.Fatalf("State: %v", err)
	}
	if _, err := eng.State(naif.Earth, 1e6, ephem.FrameJ2000, naif.SSB); !ephem.HasCode(err, ephem.CodeInsufficientData) {
		t.Fatalf("State outside coverage error = %v", err)
	}
	if ok, _ := naif.ValidateID(eng, naif.Moon); !ok {
		t.Fatalf("301 should validate through the decorator")
	}
	parent.End()

	if got := testutil.ToFloat64(collector.EngineCalls.WithLabelValues("state", "ok")); got != 1 {
		t.Fatalf("state ok calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.EngineCalls.WithLabelValues("state", ephem.CodeInsufficientData)); got != 1 {
		t.Fatalf("state failure calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.EngineCalls.WithLabelValues("valid_id", "ok")); got < 1 {
		t.Fatalf("valid_id calls = %v, want at least 1", got)
	}

	var stateSpans int
	for _, s := range recorder.Ended() {
		if s.Name() == "ephem.valid_id" {
			t.Fatalf("ValidID should not create spans")
		}
		if s.Name() != "ephem.state" {
			continue
		}
		stateSpans++
		if s.Parent().SpanID() != parent.SpanContext().SpanID() {
			t.Fatalf("state span parent = %v, want request span", s.Parent().SpanID())
		}
	}
	if stateSpans != 2 {
		t.Fatalf("state spans = %d, want 2", stateSpans)
	}
	if eng.Unwrap() != ephem.Engine(pool) {
		t.Fatalf("Unwrap did not return the pool")
	}
}

func TestResultLabel(t *testing.T) {
	if got := resultLabel(nil); got != "ok" {
		t.Fatalf("resultLabel(nil) = %q", got)
	}
	diag := ephem.Diagnose("state", ephem.CodeUnknownFrame, "frame %q", "NOPE")
	if got := resultLabel(diag); got != ephem.CodeUnknownFrame {
		t.Fatalf("resultLabel(diag) = %q", got)
	}
	if got := resultLabel(context.Canceled); got != "error" {
		t.Fatalf("resultLabel(other) = %q", got)
	}
}
