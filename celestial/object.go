// Package celestial models the objects of a catalog: plain reference points
// such as barycenters, and bodies with physical parameters and a body-fixed
// frame. Objects are immutable values; every query takes the engine that
// holds the underlying data.
package celestial

import (
	"fmt"
	"strconv"

	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// Kind discriminates the object variants.
type Kind int

const (
	// KindPlain objects carry only identity and state.
	KindPlain Kind = iota
	// KindBody objects add physical parameters and a default frame.
	KindBody
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "object"
	case KindBody:
		return "body"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

const kmToM = 1000.0

// Object is a catalog entry identified by its NAIF id. Two objects denote
// the same entity when their ids match, whatever their names or kinds.
type Object struct {
	id   naif.ID
	name string
	kind Kind
}

// Option customises construction.
type Option func(*Object)

// WithName sets the display name instead of the engine's canonical name.
func WithName(name string) Option {
	return func(o *Object) {
		if name != "" {
			o.name = name
		}
	}
}

// SSB returns the solar system barycenter. Like every other object it
// fails with ErrUnknownIdentifier when eng does not recognise the id.
func SSB(eng ephem.Engine) (Object, error) {
	return New(eng, naif.SSB, WithName("Solar System Barycenter"))
}

// Sun returns the Sun as a body.
func Sun(eng ephem.Engine) (Object, error) {
	return NewBody(eng, naif.Sun, WithName("Sun"))
}

// New builds a plain object for id, failing with ErrUnknownIdentifier when
// the engine does not recognise it.
func New(eng ephem.Engine, id naif.ID, opts ...Option) (Object, error) {
	return construct(eng, id, KindPlain, opts)
}

// NewBody builds a body for id.
func NewBody(eng ephem.Engine, id naif.ID, opts ...Option) (Object, error) {
	return construct(eng, id, KindBody, opts)
}

// NewByName resolves name through the engine and builds a plain object.
func NewByName(eng ephem.Engine, name string, opts ...Option) (Object, error) {
	id, err := resolve(eng, name)
	if err != nil {
		return Object{}, err
	}
	return construct(eng, id, KindPlain, opts)
}

// NewBodyByName resolves name through the engine and builds a body.
func NewBodyByName(eng ephem.Engine, name string, opts ...Option) (Object, error) {
	id, err := resolve(eng, name)
	if err != nil {
		return Object{}, err
	}
	return construct(eng, id, KindBody, opts)
}

// AsBody returns o re-tagged as a body, keeping its id and name.
func AsBody(o Object) Object {
	o.kind = KindBody
	return o
}

func resolve(eng ephem.Engine, name string) (naif.ID, error) {
	id, ok, err := eng.NameToID(name)
	if err != nil {
		return 0, fmt.Errorf("%w: name %q: %w", ephem.ErrUnknownIdentifier, name, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: name %q", ephem.ErrUnknownIdentifier, name)
	}
	return id, nil
}

func construct(eng ephem.Engine, id naif.ID, kind Kind, opts []Option) (Object, error) {
	ok, err := naif.ValidateID(eng, id)
	if err != nil {
		return Object{}, fmt.Errorf("%w: id %d: %w", ephem.ErrUnknownIdentifier, id, err)
	}
	if !ok {
		return Object{}, fmt.Errorf("%w: id %d", ephem.ErrUnknownIdentifier, id)
	}
	o := Object{id: id, kind: kind}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		name, found, err := eng.IDToName(id)
		switch {
		case err != nil:
			return Object{}, fmt.Errorf("%w: id %d: %w", ephem.ErrUnknownIdentifier, id, err)
		case found:
			o.name = name
		default:
			o.name = strconv.Itoa(int(id))
		}
	}
	return o, nil
}

func (o Object) ID() naif.ID  { return o.id }
func (o Object) Name() string { return o.name }
func (o Object) Kind() Kind   { return o.kind }

// Same reports whether o and other denote the same entity.
func (o Object) Same(other Object) bool { return o.id == other.id }

func (o Object) String() string {
	return fmt.Sprintf("%s (%d)", o.name, o.id)
}

// CanonicalName returns the engine's name for o, which may differ from its
// display name.
func (o Object) CanonicalName(eng ephem.Engine) (string, error) {
	name, ok, err := eng.IDToName(o.id)
	if err != nil {
		return "", fmt.Errorf("name of %d: %w", o.id, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: id %d has no name", ephem.ErrUnknownIdentifier, o.id)
	}
	return name, nil
}

// Body reports whether o has the body capability set.
func (o Object) Body() (Body, bool) {
	if o.kind != KindBody {
		return Body{}, false
	}
	return Body{obj: o}, true
}

// Coverage unions the state coverage of o across every loaded source. An
// object without data has an empty window.
func (o Object) Coverage(eng ephem.Engine) (coverage.Window, error) {
	var w coverage.Window
	for _, src := range eng.Sources(ephem.SourceState) {
		part, err := eng.Coverage(src, o.id)
		if err != nil {
			return coverage.Window{}, fmt.Errorf("coverage of %s in %s: %w", o, src, err)
		}
		w = coverage.Union(w, part)
	}
	return w, nil
}

// State returns the state of o relative to relativeTo in frame, in metres
// and metres per second. Epochs outside loaded coverage fail with
// ErrNoDataAtEpoch; there is no extrapolation.
func (o Object) State(eng ephem.Engine, et timectrl.Epoch, relativeTo Object, frame string) (ephem.State, error) {
	st, err := eng.State(o.id, et, frame, relativeTo.id)
	if err != nil {
		if ephem.HasCode(err, ephem.CodeInsufficientData) {
			return ephem.State{}, fmt.Errorf("%w: %s relative to %s at %s: %w", ephem.ErrNoDataAtEpoch, o, relativeTo, et, err)
		}
		return ephem.State{}, fmt.Errorf("state of %s relative to %s in %s: %w", o, relativeTo, frame, err)
	}
	st.Position = st.Position.Scale(kmToM)
	st.Velocity = st.Velocity.Scale(kmToM)
	return st, nil
}

// Position returns the position of o relative to relativeTo in metres.
func (o Object) Position(eng ephem.Engine, et timectrl.Epoch, relativeTo Object, frame string) (ephem.Vec3, error) {
	st, err := o.State(eng, et, relativeTo, frame)
	return st.Position, err
}

// Velocity returns the velocity of o relative to relativeTo in m/s.
func (o Object) Velocity(eng ephem.Engine, et timectrl.Epoch, relativeTo Object, frame string) (ephem.Vec3, error) {
	st, err := o.State(eng, et, relativeTo, frame)
	return st.Velocity, err
}
