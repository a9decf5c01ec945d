package session

import (
	"context"
	"errors"

	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// Report is everything the session knows about one object at an epoch.
type Report struct {
	ID    naif.ID `json:"id"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Class string  `json:"class"`

	// Parameters is nil for plain objects.
	Parameters []ParameterValue `json:"parameters,omitempty"`

	Coverage []coverage.Interval `json:"coverage"`

	Epoch    timectrl.Epoch `json:"epoch"`
	EpochUTC string         `json:"epoch_utc"`
	Frame    string         `json:"frame"`
	Observer naif.ID        `json:"observer"`
	// State is nil when the epoch lies outside the coverage.
	State *ephem.State `json:"state,omitempty"`

	// Orientation is nil for plain objects.
	Orientation *OrientationReport `json:"orientation,omitempty"`
}

// ParameterValue is one available bulk parameter in SI units, or in
// degrees for the rotation model coefficients.
type ParameterValue struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Unit   string    `json:"unit"`
}

// OrientationReport describes the body-fixed frame of a body.
type OrientationReport struct {
	// Frame is empty when the body has no default frame.
	Frame string `json:"frame,omitempty"`
	// HasData is false when the rotation constants are missing.
	HasData bool `json:"has_data"`
	// Limited is false for frames valid at every epoch; Coverage is only
	// set for limited frames.
	Limited  bool                `json:"limited"`
	Coverage []coverage.Interval `json:"coverage,omitempty"`
	// Attitude is nil when no orientation is available at the epoch.
	Attitude *celestial.Orientation `json:"attitude,omitempty"`
}

var parameterUnits = map[celestial.Parameter]string{
	celestial.ParamRadius:         "m",
	celestial.ParamGM:             "m^3/s^2",
	celestial.ParamMass:           "kg",
	celestial.ParamSurfaceGravity: "m/s^2",
	celestial.ParamPoleRA:         "deg",
	celestial.ParamPoleDec:        "deg",
	celestial.ParamPrimeMeridian:  "deg",
}

// Describe reports bulk parameters, coverage, state and orientation of a
// tracked object at et in the session frame, observed from the frame
// center. Missing data is reported as absent, not as an error.
func (s *Session) Describe(ctx context.Context, ref string, et timectrl.Epoch) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng := s.engine(ctx)
	obj, err := s.lookupLocked(ref)
	if err != nil {
		return Report{}, err
	}
	observer, err := s.observerLocked(eng, "")
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		ID:       obj.ID(),
		Name:     obj.Name(),
		Kind:     obj.Kind().String(),
		Class:    naif.Classify(eng, obj.ID()).String(),
		Epoch:    et,
		EpochUTC: et.String(),
		Frame:    s.frame.Name,
		Observer: observer.ID(),
	}

	if body, ok := obj.Body(); ok {
		if rep.Parameters, err = bodyParameters(eng, body); err != nil {
			return Report{}, err
		}
	}

	w, err := obj.Coverage(eng)
	if err != nil {
		return Report{}, err
	}
	rep.Coverage = w.Slice()
	if w.Contains(et) {
		st, err := obj.State(eng, et, observer, s.frame.Name)
		switch {
		case err == nil:
			rep.State = &st
		case !errors.Is(err, ephem.ErrNoDataAtEpoch):
			return Report{}, err
		}
	}

	if body, ok := obj.Body(); ok {
		if rep.Orientation, err = s.orientationLocked(eng, body, et); err != nil {
			return Report{}, err
		}
	}
	return rep, nil
}

func bodyParameters(eng ephem.Engine, body celestial.Body) ([]ParameterValue, error) {
	out := []ParameterValue{}
	for _, p := range celestial.Parameters() {
		ok, err := body.HasParameter(eng, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var vals []float64
		switch p {
		case celestial.ParamRadius:
			r, err := body.Radius(eng)
			if err != nil {
				return nil, err
			}
			radii, err := body.Radii(eng)
			if err != nil {
				return nil, err
			}
			vals = []float64{r, radii[0], radii[1], radii[2]}
		case celestial.ParamGM:
			vals, err = one(body.GM(eng))
		case celestial.ParamMass:
			vals, err = one(body.Mass(eng))
		case celestial.ParamSurfaceGravity:
			vals, err = one(body.SurfaceGravity(eng))
		case celestial.ParamPoleRA:
			vals, err = three(body.PoleRA(eng))
		case celestial.ParamPoleDec:
			vals, err = three(body.PoleDec(eng))
		case celestial.ParamPrimeMeridian:
			vals, err = three(body.PrimeMeridian(eng))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ParameterValue{Name: p.String(), Values: vals, Unit: parameterUnits[p]})
	}
	return out, nil
}

func one(v float64, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func three(v [3]float64, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	return v[:], nil
}

func (s *Session) orientationLocked(eng ephem.Engine, body celestial.Body, et timectrl.Epoch) (*OrientationReport, error) {
	out := &OrientationReport{}
	has, err := body.HasDefaultFrame(eng)
	if err != nil || !has {
		return out, err
	}
	frame, err := body.DefaultFrame(eng)
	if err != nil {
		return nil, err
	}
	out.Frame = frame.Name

	w, limited, err := body.OrientationCoverage(eng)
	if err != nil {
		return nil, err
	}
	out.Limited = limited
	out.HasData = !limited || !w.IsEmpty()
	if limited {
		out.Coverage = w.Slice()
	}
	if !out.HasData || !w.Contains(et) {
		return out, nil
	}

	att, err := body.Orientation(eng, et, s.frame.Name)
	switch {
	case err == nil:
		out.Attitude = &att
	case !errors.Is(err, ephem.ErrNoDataAtEpoch):
		return nil, err
	}
	return out, nil
}
