package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/internal/logging"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// Filter selects a subset of the tracked objects.
type Filter string

const (
	FilterAll         Filter = ""
	FilterBarycenters Filter = "barycenters"
	FilterPlanets     Filter = "planets"
	FilterMoons       Filter = "moons"
)

// ParseFilter accepts the filter names used by the CLI and the APIs.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, "all":
		return FilterAll, nil
	case FilterBarycenters, FilterPlanets, FilterMoons:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", ErrInvalidArgument, s)
	}
}

// parseRef splits an object reference into a numeric id or a name.
func parseRef(ref string) (id naif.ID, name string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, "", fmt.Errorf("%w: empty object reference", ErrInvalidArgument)
	}
	if n, convErr := strconv.Atoi(ref); convErr == nil {
		return naif.ID(n), "", nil
	}
	return 0, ref, nil
}

// lookupLocked finds a tracked object by id or name.
func (s *Session) lookupLocked(ref string) (celestial.Object, error) {
	id, name, err := parseRef(ref)
	if err != nil {
		return celestial.Object{}, err
	}
	if name == "" {
		return s.reg.Lookup(id)
	}
	return s.reg.LookupName(name)
}

// probeLocked returns the tracked object for ref, or constructs one
// without storing it. Bodies by the identifier convention get the body
// capability.
func (s *Session) probeLocked(eng ephem.Engine, ref string) (celestial.Object, error) {
	if obj, err := s.lookupLocked(ref); err == nil {
		return obj, nil
	}
	id, name, err := parseRef(ref)
	if err != nil {
		return celestial.Object{}, err
	}
	if name != "" {
		if id, err = resolveName(eng, name); err != nil {
			return celestial.Object{}, err
		}
	}
	switch id {
	case naif.SSB:
		return celestial.SSB(eng)
	case naif.Sun:
		return celestial.Sun(eng)
	}
	if naif.IsBody(eng, id) {
		return celestial.NewBody(eng, id)
	}
	return celestial.New(eng, id)
}

func resolveName(eng ephem.Engine, name string) (naif.ID, error) {
	probe, err := celestial.NewByName(eng, name)
	if err != nil {
		return 0, err
	}
	return probe.ID(), nil
}

// Add constructs the object named by ref and tracks it. asBody forces the
// body capability; otherwise it follows the identifier convention, except
// that the Sun added directly is a body while LoadChildren tracks it as a
// plain object. The
// returned object is the stored entry, which is the earlier one when ref
// was already tracked.
func (s *Session) Add(ctx context.Context, ref string, asBody bool) (celestial.Object, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng := s.engine(ctx)
	obj, err := s.probeLocked(eng, ref)
	if err != nil {
		return celestial.Object{}, false, err
	}
	if asBody {
		obj = celestial.AsBody(obj)
	}
	added := s.reg.Add(obj)
	stored, err := s.reg.LookupObject(obj)
	if err != nil {
		return celestial.Object{}, false, err
	}
	return stored, added, nil
}

// LoadSolarSystem tracks the solar system tree, or just the planets.
func (s *Session) LoadSolarSystem(ctx context.Context, onlyPlanets bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine(ctx)
	before := s.reg.Len()
	if err := s.reg.LoadSolarSystem(onlyPlanets); err != nil {
		return err
	}
	s.log.Info(ctx, "solar system loaded",
		logging.Bool("only_planets", onlyPlanets),
		logging.Int("added", s.reg.Len()-before),
	)
	return nil
}

// LoadChildren tracks the children of the object named by ref, which need
// not be tracked itself.
func (s *Session) LoadChildren(ctx context.Context, ref string, includeSelf, recursive bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng := s.engine(ctx)
	parent, err := s.probeLocked(eng, ref)
	if err != nil {
		return 0, err
	}
	before := s.reg.Len()
	err = s.reg.LoadChildren(parent, includeSelf, recursive)
	added := s.reg.Len() - before
	if err != nil {
		return added, err
	}
	s.log.Info(ctx, "children loaded",
		logging.String("parent", parent.String()),
		logging.Bool("recursive", recursive),
		logging.Int("added", added),
	)
	return added, nil
}

// Lookup returns a tracked object by id or name.
func (s *Session) Lookup(ref string) (celestial.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(ref)
}

// Objects returns the tracked objects matching f in insertion order.
func (s *Session) Objects(ctx context.Context, f Filter) ([]celestial.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine(ctx)
	switch f {
	case FilterAll:
		out := make([]celestial.Object, 0, s.reg.Len())
		for _, obj := range s.reg.All() {
			out = append(out, obj)
		}
		return out, nil
	case FilterBarycenters:
		return s.reg.Barycenters(), nil
	case FilterPlanets:
		return s.reg.Planets(), nil
	case FilterMoons:
		return s.reg.Moons(), nil
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", ErrInvalidArgument, string(f))
	}
}

// MoonsOf returns the tracked moons of the planet or barycenter named by
// ref.
func (s *Session) MoonsOf(ctx context.Context, ref string) ([]celestial.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.probeLocked(s.engine(ctx), ref)
	if err != nil {
		return nil, err
	}
	return s.reg.MoonsOf(obj), nil
}

// Len returns the number of tracked objects.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Len()
}

// Clear stops tracking every object.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Clear()
}

// Coverage returns the state coverage of a tracked object.
func (s *Session) Coverage(ctx context.Context, ref string) (coverage.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng := s.engine(ctx)
	obj, err := s.lookupLocked(ref)
	if err != nil {
		return coverage.Window{}, err
	}
	return obj.Coverage(eng)
}

// State returns the SI state of a tracked object at et in the session
// frame. With relativeTo empty the observer is the frame center.
func (s *Session) State(ctx context.Context, ref string, et timectrl.Epoch, relativeTo string) (ephem.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eng := s.engine(ctx)
	obj, err := s.lookupLocked(ref)
	if err != nil {
		return ephem.State{}, err
	}
	observer, err := s.observerLocked(eng, relativeTo)
	if err != nil {
		return ephem.State{}, err
	}
	return obj.State(eng, et, observer, s.frame.Name)
}

func (s *Session) observerLocked(eng ephem.Engine, ref string) (celestial.Object, error) {
	if strings.TrimSpace(ref) == "" {
		return s.probeLocked(eng, strconv.Itoa(int(s.frame.Center)))
	}
	return s.probeLocked(eng, ref)
}
