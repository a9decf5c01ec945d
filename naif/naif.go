// Package naif classifies integer object identifiers under the NAIF
// numbering convention and derives the barycenter/body hierarchy from the
// numbers alone.
//
// Every classifier first confirms the identifier against loaded reference
// data through a Validator. Numeric range alone never makes an identifier
// valid, since the convention leaves sparse gaps.
package naif

import (
	"iter"
	"slices"
	"strconv"
)

// ID is a signed integer object identifier.
type ID int

// Well-known identifiers.
const (
	SSB ID = 0  // Solar System Barycenter
	Sun ID = 10 // treated as a body, not a barycenter

	// Earth-system identifiers, handy in tests and examples.
	EarthBarycenter ID = 3
	Moon            ID = 301
	Earth           ID = 399
)

const (
	planetSuffix    = 99
	bodiesPerSystem = 100
)

func (id ID) String() string { return strconv.Itoa(int(id)) }

// Validator confirms an identifier against currently loaded reference data.
type Validator interface {
	ValidID(id ID) (bool, error)
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(ID) (bool, error)

// ValidID calls f(id).
func (f ValidatorFunc) ValidID(id ID) (bool, error) { return f(id) }

// ValidateID reports whether v confirms id, surfacing the validator error.
func ValidateID(v Validator, id ID) (bool, error) {
	if v == nil {
		return false, nil
	}
	return v.ValidID(id)
}

// valid is the gate used by every classifier: a validator failure counts as
// "not confirmed".
func valid(v Validator, id ID) bool {
	ok, err := ValidateID(v, id)
	return err == nil && ok
}

func isPlanetaryBarycenterRange(id ID) bool { return id > 0 && id < 10 }

func isBodyRange(id ID) bool { return id > 100 && id < 1000 }

// IsPlanetaryBarycenter reports whether id is a confirmed planetary-system
// barycenter (1..9).
func IsPlanetaryBarycenter(v Validator, id ID) bool {
	return valid(v, id) && isPlanetaryBarycenterRange(id)
}

// IsBarycenter reports whether id is a confirmed planetary barycenter or
// the SSB.
func IsBarycenter(v Validator, id ID) bool {
	return valid(v, id) && (isPlanetaryBarycenterRange(id) || id == SSB)
}

// IsBody reports whether id is a confirmed planet or moon (100 < id < 1000).
func IsBody(v Validator, id ID) bool {
	return valid(v, id) && isBodyRange(id)
}

// IsPlanet reports whether id is a confirmed body ending in 99.
func IsPlanet(v Validator, id ID) bool {
	return valid(v, id) && isBodyRange(id) && id%bodiesPerSystem == planetSuffix
}

// IsMoon reports whether id is a confirmed body that is not a planet.
func IsMoon(v Validator, id ID) bool {
	return IsBody(v, id) && !IsPlanet(v, id)
}

// Children yields the confirmed child identifiers of id in ascending order.
// The SSB's candidates are 1..10 (nine barycenters and the Sun); a
// planetary barycenter's are id*100+1 .. id*100+99, which covers its moons
// and the planet itself at +99. Bodies, the Sun and identifiers outside the
// convention have no children; that is not an error.
//
// The sequence is lazy and may be ranged over any number of times; each
// pass re-validates against v.
func Children(v Validator, id ID) iter.Seq[ID] {
	return func(yield func(ID) bool) {
		var lo, hi ID
		switch {
		case id == SSB:
			// SSB and Sun are fixed by the convention and need no
			// validation; every candidate child is still validated.
			lo, hi = 1, Sun
		case IsPlanetaryBarycenter(v, id):
			lo, hi = id*bodiesPerSystem+1, id*bodiesPerSystem+planetSuffix
		default:
			return
		}
		for c := lo; c <= hi; c++ {
			if !valid(v, c) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// ChildIDs collects Children into a slice.
func ChildIDs(v Validator, id ID) []ID {
	return slices.Collect(Children(v, id))
}

// Parent returns the parent of id: the SSB for the Sun and every planetary
// barycenter, id/100 for a body, and id itself for anything else. The
// self-loop tells callers there is no parent. The Sun is matched by value,
// without consulting v.
func Parent(v Validator, id ID) ID {
	switch {
	case id == Sun || IsPlanetaryBarycenter(v, id):
		return SSB
	case IsBody(v, id):
		return id / bodiesPerSystem
	default:
		return id
	}
}

// HasParent reports whether Parent(v, id) names a different object.
func HasParent(v Validator, id ID) bool {
	return Parent(v, id) != id
}

// Ancestors yields the chain of parents from id (exclusive) up to the root.
func Ancestors(v Validator, id ID) iter.Seq[ID] {
	return func(yield func(ID) bool) {
		cur := id
		for {
			p := Parent(v, cur)
			if p == cur || !yield(p) {
				return
			}
			cur = p
		}
	}
}

// Class is a coarse classification of an identifier.
type Class int

const (
	ClassInvalid Class = iota
	ClassSSB
	ClassPlanetaryBarycenter
	ClassSun
	ClassPlanet
	ClassMoon
	ClassOther // valid, but outside the barycenter/body convention
)

var classNames = [...]string{
	ClassInvalid:             "invalid",
	ClassSSB:                 "solar-system-barycenter",
	ClassPlanetaryBarycenter: "planetary-barycenter",
	ClassSun:                 "sun",
	ClassPlanet:              "planet",
	ClassMoon:                "moon",
	ClassOther:               "other",
}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return "Class(" + strconv.Itoa(int(c)) + ")"
	}
	return classNames[c]
}

// Classify returns the class of id.
func Classify(v Validator, id ID) Class {
	if !valid(v, id) {
		return ClassInvalid
	}
	switch {
	case id == SSB:
		return ClassSSB
	case isPlanetaryBarycenterRange(id):
		return ClassPlanetaryBarycenter
	case id == Sun:
		return ClassSun
	case isBodyRange(id) && id%bodiesPerSystem == planetSuffix:
		return ClassPlanet
	case isBodyRange(id):
		return ClassMoon
	default:
		return ClassOther
	}
}
