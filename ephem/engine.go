// Package ephem defines the boundary to the numerical ephemeris engine:
// the narrow interface the catalog consumes, the value types that cross
// it, and the diagnostic error every failed call returns.
package ephem

import (
	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// SourceKind selects a family of loaded data sources.
type SourceKind string

const (
	// SourceState are sources contributing position/velocity segments.
	SourceState SourceKind = "state"
	// SourceConstants are sources contributing body constants.
	SourceConstants SourceKind = "constants"
	// SourceAny matches every loaded source.
	SourceAny SourceKind = "any"
)

// Body constant keys understood by engines.
const (
	KeyGM            = "GM"
	KeyRadii         = "RADII"
	KeyPoleRA        = "POLE_RA"
	KeyPoleDec       = "POLE_DEC"
	KeyPrimeMeridian = "PM"
)

// Engine is the external ephemeris collaborator. Every method reports
// failure through an error value, normally a *Diagnostic; there is no
// ambient "last error" state to inspect.
//
// Distances are kilometres and times are ephemeris seconds past J2000.
type Engine interface {
	naif.Validator

	// NameToID resolves a body name (case and spacing insensitive) or a
	// decimal identifier string.
	NameToID(name string) (naif.ID, bool, error)
	// IDToName returns the canonical name of id.
	IDToName(id naif.ID) (string, bool, error)

	// State returns the geometric state of target relative to observer in
	// the named frame at et.
	State(target naif.ID, et timectrl.Epoch, frame string, observer naif.ID) (State, error)

	// BodyParameter returns the values of a body constant.
	BodyParameter(id naif.ID, key string) ([]float64, bool, error)

	FrameByName(name string) (FrameInfo, bool, error)
	FrameByID(id int) (FrameInfo, bool, error)
	// BodyFrame returns the body-fixed frame associated with id.
	BodyFrame(id naif.ID) (FrameInfo, bool, error)
	// Rotation returns the matrix taking vectors from frame from to
	// frame to at et.
	Rotation(from, to string, et timectrl.Epoch) (Matrix3, error)

	// Sources lists loaded source paths of the given kind in load order.
	Sources(kind SourceKind) []string
	// Coverage returns the span over which source holds state data for id.
	Coverage(source string, id naif.ID) (coverage.Window, error)
}

// State is a position/velocity pair.
type State struct {
	Position Vec3 `json:"position"`
	Velocity Vec3 `json:"velocity"`
	// LightTime is the one-way light time between observer and target in
	// seconds.
	LightTime float64 `json:"light_time"`
}

// FrameClass classifies reference frames.
type FrameClass string

const (
	// FrameInertial frames do not rotate.
	FrameInertial FrameClass = "inertial"
	// FrameBodyFixed frames rotate with a body according to its pole and
	// prime-meridian constants.
	FrameBodyFixed FrameClass = "body-fixed"
)

// FrameInfo describes a reference frame.
type FrameInfo struct {
	Name   string     `json:"name"`
	ID     int        `json:"id"`
	Class  FrameClass `json:"class"`
	Center naif.ID    `json:"center"`
}

// Standard inertial frames every engine must know.
const (
	FrameJ2000      = "J2000"
	FrameEclipJ2000 = "ECLIPJ2000"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458
