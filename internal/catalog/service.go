// Package catalog serves a session over gRPC. Messages are
// google.protobuf.Struct documents so clients need no generated stubs.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/internal/logging"
	"github.com/signalsfoundry/celestial-catalog/internal/observability"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service implements CatalogServer on top of a session.
type Service struct {
	sess *session.Session
	log  logging.Logger

	// Now supplies the default epoch for requests without one.
	Now func() time.Time
}

var _ CatalogServer = (*Service)(nil)

// NewService constructs a Service bound to sess.
func NewService(sess *session.Session, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{sess: sess, log: log, Now: time.Now}
}

// NewServer builds a gRPC server with the catalog registered behind the
// request-ID, tracing and metrics interceptors.
func NewServer(svc *Service, metrics *observability.Collector, log logging.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			metrics.UnaryServerInterceptor(),
		),
	)
	srv := grpc.NewServer(opts...)
	RegisterCatalogServer(srv, svc)
	return srv
}

// ObjectDoc is the wire form of a tracked object.
type ObjectDoc struct {
	ID    naif.ID `json:"id"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Class string  `json:"class"`
}

// IntervalDoc is the wire form of a coverage interval.
type IntervalDoc struct {
	Begin    timectrl.Epoch `json:"begin"`
	End      timectrl.Epoch `json:"end"`
	BeginUTC string         `json:"begin_utc"`
	EndUTC   string         `json:"end_utc"`
}

// Objects converts objects to their wire form.
func Objects(v naif.Validator, objs []celestial.Object) []ObjectDoc {
	out := make([]ObjectDoc, 0, len(objs))
	for _, o := range objs {
		out = append(out, ObjectDoc{
			ID:    o.ID(),
			Name:  o.Name(),
			Kind:  o.Kind().String(),
			Class: naif.Classify(v, o.ID()).String(),
		})
	}
	return out
}

// Intervals converts a window to its wire form.
func Intervals(w coverage.Window) []IntervalDoc {
	out := make([]IntervalDoc, 0, w.Len())
	for iv := range w.Intervals() {
		out = append(out, IntervalDoc{
			Begin:    iv.Begin,
			End:      iv.End,
			BeginUTC: iv.Begin.String(),
			EndUTC:   iv.End.String(),
		})
	}
	return out
}

// ListObjects returns the tracked objects. Request fields: filter
// (all|barycenters|planets|moons) and moons_of (object reference).
func (s *Service) ListObjects(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	moonsOf, err := optString(req, "moons_of")
	if err != nil {
		return nil, ToStatusError(err)
	}
	raw, err := optString(req, "filter")
	if err != nil {
		return nil, ToStatusError(err)
	}
	var objs []celestial.Object
	if moonsOf != "" {
		objs, err = s.sess.MoonsOf(ctx, moonsOf)
	} else {
		var f session.Filter
		if f, err = session.ParseFilter(raw); err == nil {
			objs, err = s.sess.Objects(ctx, f)
		}
	}
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{
		"objects": Objects(s.sess.Validator(), objs),
		"frame":   s.sess.ReferenceFrame().Name,
	})
}

// Describe returns the session report for ref at epoch (default now).
func (s *Service) Describe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := reqString(req, "ref")
	if err != nil {
		return nil, ToStatusError(err)
	}
	et, err := s.epoch(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	rep, err := s.sess.Describe(ctx, ref, et)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(rep)
}

// GetCoverage returns the state coverage intervals of ref.
func (s *Service) GetCoverage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := reqString(req, "ref")
	if err != nil {
		return nil, ToStatusError(err)
	}
	w, err := s.sess.Coverage(ctx, ref)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{
		"ref":       ref,
		"intervals": Intervals(w),
		"total":     w.Total(),
	})
}

// GetState returns the SI state of ref at epoch relative to relative_to
// (default: the frame center) in the session frame.
func (s *Service) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := reqString(req, "ref")
	if err != nil {
		return nil, ToStatusError(err)
	}
	relativeTo, err := optString(req, "relative_to")
	if err != nil {
		return nil, ToStatusError(err)
	}
	et, err := s.epoch(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	st, err := s.sess.State(ctx, ref, et, relativeTo)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{
		"ref":       ref,
		"epoch":     et,
		"epoch_utc": et.String(),
		"frame":     s.sess.ReferenceFrame().Name,
		"state":     st,
	})
}

// LoadChildren tracks the children of ref. Request fields: ref,
// include_self and recursive (both default false).
func (s *Service) LoadChildren(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := reqString(req, "ref")
	if err != nil {
		return nil, ToStatusError(err)
	}
	includeSelf, err := optBool(req, "include_self")
	if err != nil {
		return nil, ToStatusError(err)
	}
	recursive, err := optBool(req, "recursive")
	if err != nil {
		return nil, ToStatusError(err)
	}
	added, err := s.sess.LoadChildren(ctx, ref, includeSelf, recursive)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{"added": added, "total": s.sess.Len()})
}

// LoadSolarSystem tracks the solar system, or with only_planets the
// planets alone.
func (s *Service) LoadSolarSystem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	onlyPlanets, err := optBool(req, "only_planets")
	if err != nil {
		return nil, ToStatusError(err)
	}
	before := s.sess.Len()
	if err := s.sess.LoadSolarSystem(ctx, onlyPlanets); err != nil {
		return nil, ToStatusError(err)
	}
	total := s.sess.Len()
	return toStruct(map[string]any{"added": total - before, "total": total})
}

// SetReferenceFrame selects the session frame by name.
func (s *Service) SetReferenceFrame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := reqString(req, "frame")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.sess.SetReferenceFrame(ctx, name); err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(s.sess.ReferenceFrame())
}

// Reload re-reads every furnished kernel.
func (s *Service) Reload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.sess.Reload(ctx); err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{"files": s.sess.KernelFiles()})
}

func (s *Service) epoch(req *structpb.Struct) (timectrl.Epoch, error) {
	raw, err := optString(req, "epoch")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return timectrl.EpochFromTime(s.Now()), nil
	}
	et, err := timectrl.ParseEpoch(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return et, nil
}

func optString(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return "", nil
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("%w: field %q must be a string", ErrInvalidRequest, key)
	}
	return sv.StringValue, nil
}

func reqString(req *structpb.Struct, key string) (string, error) {
	s, err := optString(req, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: field %q is required", ErrInvalidRequest, key)
	}
	return s, nil
}

func optBool(req *structpb.Struct, key string) (bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return false, nil
	}
	bv, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, fmt.Errorf("%w: field %q must be a bool", ErrInvalidRequest, key)
	}
	return bv.BoolValue, nil
}

// toStruct round-trips v through JSON so json tags define the wire names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}
