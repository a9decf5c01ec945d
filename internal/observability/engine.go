package observability

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/celestial-catalog/internal/observability"

// InstrumentedEngine decorates an ephem.Engine with call metrics and, for
// every operation except ValidID, a child span of the bound context.
// ValidID runs once per classification and is only counted.
type InstrumentedEngine struct {
	next    ephem.Engine
	metrics *Collector
	tracer  trace.Tracer
	ctx     context.Context
}

var _ ephem.Engine = (*InstrumentedEngine)(nil)

// Instrument wraps next. A nil collector records no metrics.
func Instrument(next ephem.Engine, metrics *Collector) *InstrumentedEngine {
	return &InstrumentedEngine{
		next:    next,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
		ctx:     context.Background(),
	}
}

// WithContext returns a copy whose spans are children of the span in ctx.
func (e *InstrumentedEngine) WithContext(ctx context.Context) *InstrumentedEngine {
	if ctx == nil {
		ctx = context.Background()
	}
	cp := *e
	cp.ctx = ctx
	return &cp
}

// Unwrap returns the decorated engine.
func (e *InstrumentedEngine) Unwrap() ephem.Engine { return e.next }

func (e *InstrumentedEngine) start(op string, attrs ...attribute.KeyValue) (trace.Span, time.Time) {
	_, span := e.tracer.Start(e.ctx, "ephem."+op, trace.WithAttributes(attrs...))
	return span, time.Now()
}

func (e *InstrumentedEngine) finish(op string, span trace.Span, start time.Time, err error) {
	result := resultLabel(err)
	e.metrics.ObserveEngineCall(op, result, time.Since(start))
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	span.End()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var diag *ephem.Diagnostic
	if errors.As(err, &diag) && diag.Short != "" {
		return diag.Short
	}
	return "error"
}

func idAttr(key string, id naif.ID) attribute.KeyValue {
	return attribute.Int(key, int(id))
}

func (e *InstrumentedEngine) ValidID(id naif.ID) (bool, error) {
	start := time.Now()
	ok, err := e.next.ValidID(id)
	e.finish("valid_id", nil, start, err)
	return ok, err
}

func (e *InstrumentedEngine) NameToID(name string) (naif.ID, bool, error) {
	span, start := e.start("name_to_id", attribute.String("name", name))
	id, ok, err := e.next.NameToID(name)
	span.SetAttributes(attribute.Bool("found", ok))
	e.finish("name_to_id", span, start, err)
	return id, ok, err
}

func (e *InstrumentedEngine) IDToName(id naif.ID) (string, bool, error) {
	span, start := e.start("id_to_name", idAttr("id", id))
	name, ok, err := e.next.IDToName(id)
	e.finish("id_to_name", span, start, err)
	return name, ok, err
}

func (e *InstrumentedEngine) State(target naif.ID, et timectrl.Epoch, frame string, observer naif.ID) (ephem.State, error) {
	span, start := e.start("state",
		idAttr("target", target),
		idAttr("observer", observer),
		attribute.String("frame", frame),
		attribute.Float64("et", float64(et)),
	)
	st, err := e.next.State(target, et, frame, observer)
	e.finish("state", span, start, err)
	return st, err
}

func (e *InstrumentedEngine) BodyParameter(id naif.ID, key string) ([]float64, bool, error) {
	span, start := e.start("body_parameter", idAttr("id", id), attribute.String("key", key))
	vals, ok, err := e.next.BodyParameter(id, key)
	e.finish("body_parameter", span, start, err)
	return vals, ok, err
}

func (e *InstrumentedEngine) FrameByName(name string) (ephem.FrameInfo, bool, error) {
	span, start := e.start("frame_by_name", attribute.String("frame", name))
	fi, ok, err := e.next.FrameByName(name)
	e.finish("frame_by_name", span, start, err)
	return fi, ok, err
}

func (e *InstrumentedEngine) FrameByID(id int) (ephem.FrameInfo, bool, error) {
	span, start := e.start("frame_by_id", attribute.Int("frame_id", id))
	fi, ok, err := e.next.FrameByID(id)
	e.finish("frame_by_id", span, start, err)
	return fi, ok, err
}

func (e *InstrumentedEngine) BodyFrame(id naif.ID) (ephem.FrameInfo, bool, error) {
	span, start := e.start("body_frame", idAttr("id", id))
	fi, ok, err := e.next.BodyFrame(id)
	e.finish("body_frame", span, start, err)
	return fi, ok, err
}

func (e *InstrumentedEngine) Rotation(from, to string, et timectrl.Epoch) (ephem.Matrix3, error) {
	span, start := e.start("rotation",
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.Float64("et", float64(et)),
	)
	m, err := e.next.Rotation(from, to, et)
	e.finish("rotation", span, start, err)
	return m, err
}

func (e *InstrumentedEngine) Sources(kind ephem.SourceKind) []string {
	span, start := e.start("sources", attribute.String("kind", string(kind)))
	out := e.next.Sources(kind)
	e.finish("sources", span, start, nil)
	return out
}

func (e *InstrumentedEngine) Coverage(source string, id naif.ID) (coverage.Window, error) {
	span, start := e.start("coverage", attribute.String("source", source), idAttr("id", id))
	w, err := e.next.Coverage(source, id)
	e.finish("coverage", span, start, err)
	return w, err
}
