package celestial

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// G is the Newtonian constant of gravitation in m³/(kg·s²), the value
// used to derive masses from GM.
const G = 6.67384e-11

// Parameter names a bulk physical parameter of a body.
type Parameter int

const (
	ParamRadius Parameter = iota
	ParamGM
	ParamMass
	ParamSurfaceGravity
	ParamPoleRA
	ParamPoleDec
	ParamPrimeMeridian
)

var parameterNames = [...]string{
	ParamRadius:         "radius",
	ParamGM:             "gm",
	ParamMass:           "mass",
	ParamSurfaceGravity: "surface_gravity",
	ParamPoleRA:         "pole_ra",
	ParamPoleDec:        "pole_dec",
	ParamPrimeMeridian:  "prime_meridian",
}

func (p Parameter) String() string {
	if p >= 0 && int(p) < len(parameterNames) {
		return parameterNames[p]
	}
	return fmt.Sprintf("parameter(%d)", int(p))
}

// Parameters lists every parameter in declaration order.
func Parameters() []Parameter {
	return []Parameter{ParamRadius, ParamGM, ParamMass, ParamSurfaceGravity, ParamPoleRA, ParamPoleDec, ParamPrimeMeridian}
}

// Body is the capability view of a body object.
type Body struct {
	obj Object
}

// Object returns the underlying object.
func (b Body) Object() Object { return b.obj }

func (b Body) String() string { return b.obj.String() }

// HasParameter reports whether p can be computed from loaded constants.
// Mass needs GM; surface gravity needs GM and radii.
func (b Body) HasParameter(eng ephem.Engine, p Parameter) (bool, error) {
	switch p {
	case ParamMass:
		return b.HasParameter(eng, ParamGM)
	case ParamSurfaceGravity:
		ok, err := b.HasParameter(eng, ParamGM)
		if err != nil || !ok {
			return false, err
		}
		return b.HasParameter(eng, ParamRadius)
	}
	key, ok := constantKey(p)
	if !ok {
		return false, fmt.Errorf("%w: unknown parameter %s", ephem.ErrParameterUnavailable, p)
	}
	_, found, err := eng.BodyParameter(b.obj.id, key)
	if err != nil {
		return false, fmt.Errorf("%s of %s: %w", p, b.obj, err)
	}
	return found, nil
}

func constantKey(p Parameter) (string, bool) {
	switch p {
	case ParamRadius:
		return ephem.KeyRadii, true
	case ParamGM:
		return ephem.KeyGM, true
	case ParamPoleRA:
		return ephem.KeyPoleRA, true
	case ParamPoleDec:
		return ephem.KeyPoleDec, true
	case ParamPrimeMeridian:
		return ephem.KeyPrimeMeridian, true
	}
	return "", false
}

func (b Body) constant(eng ephem.Engine, key string, want int) ([]float64, error) {
	vals, found, err := eng.BodyParameter(b.obj.id, key)
	if err != nil {
		return nil, fmt.Errorf("%s of %s: %w", key, b.obj, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s of %s", ephem.ErrParameterUnavailable, key, b.obj)
	}
	if len(vals) < want {
		return nil, fmt.Errorf("%w: %s of %s has %d values, need %d", ephem.ErrDataIntegrity, key, b.obj, len(vals), want)
	}
	return vals, nil
}

// Radii returns the triaxial radii in metres.
func (b Body) Radii(eng ephem.Engine) ([3]float64, error) {
	vals, err := b.constant(eng, ephem.KeyRadii, 3)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{vals[0] * kmToM, vals[1] * kmToM, vals[2] * kmToM}, nil
}

// Radius returns the volumetric mean radius in metres.
func (b Body) Radius(eng ephem.Engine) (float64, error) {
	r, err := b.Radii(eng)
	if err != nil {
		return 0, err
	}
	return math.Cbrt(r[0] * r[1] * r[2]), nil
}

// GM returns the gravitational parameter in m³/s².
func (b Body) GM(eng ephem.Engine) (float64, error) {
	vals, err := b.constant(eng, ephem.KeyGM, 1)
	if err != nil {
		return 0, err
	}
	return vals[0] * kmToM * kmToM * kmToM, nil
}

// Mass returns GM/G in kilograms.
func (b Body) Mass(eng ephem.Engine) (float64, error) {
	gm, err := b.GM(eng)
	if err != nil {
		return 0, err
	}
	return gm / G, nil
}

// SurfaceGravity returns GM/r² at the mean radius in m/s².
func (b Body) SurfaceGravity(eng ephem.Engine) (float64, error) {
	gm, err := b.GM(eng)
	if err != nil {
		return 0, err
	}
	r, err := b.Radius(eng)
	if err != nil {
		return 0, err
	}
	return gm / (r * r), nil
}

// PoleRA returns the pole right ascension coefficients: degrees, degrees
// per century and degrees per century squared.
func (b Body) PoleRA(eng ephem.Engine) ([3]float64, error) { return b.triple(eng, ephem.KeyPoleRA) }

// PoleDec returns the pole declination coefficients.
func (b Body) PoleDec(eng ephem.Engine) ([3]float64, error) { return b.triple(eng, ephem.KeyPoleDec) }

// PrimeMeridian returns the prime meridian coefficients: degrees, degrees
// per day and degrees per day squared.
func (b Body) PrimeMeridian(eng ephem.Engine) ([3]float64, error) {
	return b.triple(eng, ephem.KeyPrimeMeridian)
}

func (b Body) triple(eng ephem.Engine, key string) ([3]float64, error) {
	vals, err := b.constant(eng, key, 1)
	if err != nil {
		return [3]float64{}, err
	}
	var out [3]float64
	copy(out[:], vals)
	return out, nil
}

// HasDefaultFrame reports whether the engine maps the body to a body-fixed
// frame.
func (b Body) HasDefaultFrame(eng ephem.Engine) (bool, error) {
	_, ok, err := eng.BodyFrame(b.obj.id)
	if err != nil {
		return false, fmt.Errorf("frame of %s: %w", b.obj, err)
	}
	return ok, nil
}

// DefaultFrame returns the body-fixed frame of the body.
func (b Body) DefaultFrame(eng ephem.Engine) (ephem.FrameInfo, error) {
	info, ok, err := eng.BodyFrame(b.obj.id)
	if err != nil {
		return ephem.FrameInfo{}, fmt.Errorf("frame of %s: %w", b.obj, err)
	}
	if !ok {
		return ephem.FrameInfo{}, fmt.Errorf("%w: %s", ephem.ErrNoFrameAvailable, b.obj)
	}
	return info, nil
}

// Orientation is the attitude of a frame relative to a reference frame at
// an epoch.
type Orientation struct {
	Frame     string         `json:"frame"`
	Reference string         `json:"reference"`
	Epoch     timectrl.Epoch `json:"epoch"`
	// Matrix takes vectors from Frame to Reference.
	Matrix ephem.Matrix3 `json:"matrix"`
	X      ephem.Vec3    `json:"x"`
	Y      ephem.Vec3    `json:"y"`
	Z      ephem.Vec3    `json:"z"`
}

// Orientation returns the axes of the body's default frame expressed in ref.
func (b Body) Orientation(eng ephem.Engine, et timectrl.Epoch, ref string) (Orientation, error) {
	frame, err := b.DefaultFrame(eng)
	if err != nil {
		return Orientation{}, err
	}
	m, err := eng.Rotation(frame.Name, ref, et)
	if err != nil {
		if ephem.HasCode(err, ephem.CodeNoOrientationData) {
			return Orientation{}, fmt.Errorf("%w: orientation of %s at %s: %w", ephem.ErrNoDataAtEpoch, b.obj, et, err)
		}
		return Orientation{}, fmt.Errorf("orientation of %s in %s: %w", b.obj, ref, err)
	}
	return Orientation{
		Frame:     frame.Name,
		Reference: ref,
		Epoch:     et,
		Matrix:    m,
		X:         m.Column(0),
		Y:         m.Column(1),
		Z:         m.Column(2),
	}, nil
}

// OrientationCoverage returns the span over which Orientation succeeds.
// Frames driven by pole constants are valid at every epoch and report
// limited=false; without the constants the window is empty.
func (b Body) OrientationCoverage(eng ephem.Engine) (w coverage.Window, limited bool, err error) {
	if _, err := b.DefaultFrame(eng); err != nil {
		return coverage.Window{}, true, err
	}
	for _, p := range []Parameter{ParamPoleRA, ParamPoleDec, ParamPrimeMeridian} {
		ok, err := b.HasParameter(eng, p)
		if err != nil {
			return coverage.Window{}, true, err
		}
		if !ok {
			return coverage.Window{}, true, nil
		}
	}
	return coverage.Unlimited(), false, nil
}
