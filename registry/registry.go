// Package registry holds the ordered, deduplicated set of objects a session
// tracks. A Registry is not safe for concurrent use; callers sharing one
// across goroutines guard it with a single lock.
package registry

import (
	"fmt"
	"iter"

	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
)

// EventType indicates what changed in the registry.
type EventType int

const (
	EventObjectAdded EventType = iota
	EventCleared
)

func (t EventType) String() string {
	switch t {
	case EventObjectAdded:
		return "object_added"
	case EventCleared:
		return "cleared"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is delivered to subscribers after a change.
type Event struct {
	Type EventType
	// Object is the added object; zero for EventCleared.
	Object celestial.Object
	// Len is the registry size after the change.
	Len int
}

// Registry owns copies of the objects added to it, in insertion order, with
// at most one entry per id.
type Registry struct {
	eng     ephem.Engine
	objects []celestial.Object
	index   map[naif.ID]int

	subs    map[int]func(Event)
	nextSub int
}

// New returns an empty registry resolving names and children through eng.
func New(eng ephem.Engine) *Registry {
	return &Registry{
		eng:   eng,
		index: make(map[naif.ID]int),
		subs:  make(map[int]func(Event)),
	}
}

// Engine returns the engine used for construction and lookups.
func (r *Registry) Engine() ephem.Engine { return r.eng }

// SetEngine swaps the engine, for example after kernels are reloaded.
// Stored objects are kept.
func (r *Registry) SetEngine(eng ephem.Engine) { r.eng = eng }

// Add stores obj unless an entry with the same id exists, and reports
// whether it was inserted. An existing entry keeps its kind and name even
// when obj is a richer variant.
func (r *Registry) Add(obj celestial.Object) bool {
	if _, exists := r.index[obj.ID()]; exists {
		return false
	}
	r.index[obj.ID()] = len(r.objects)
	r.objects = append(r.objects, obj)
	r.emit(Event{Type: EventObjectAdded, Object: obj, Len: len(r.objects)})
	return true
}

// LoadChildren adds the children of parent by the identifier convention,
// optionally preceded by parent itself. With recursive set each child's
// subtree is added before its next sibling (depth-first pre-order). Bodies
// are added as KindBody, everything else as KindPlain.
func (r *Registry) LoadChildren(parent celestial.Object, includeSelf, recursive bool) error {
	if includeSelf {
		r.Add(parent)
	}
	return r.loadChildren(parent.ID(), recursive)
}

func (r *Registry) loadChildren(id naif.ID, recursive bool) error {
	for child := range naif.Children(r.eng, id) {
		obj, err := r.construct(child)
		if err != nil {
			return fmt.Errorf("load children of %d: %w", id, err)
		}
		r.Add(obj)
		if recursive {
			if err := r.loadChildren(child, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) construct(id naif.ID) (celestial.Object, error) {
	if naif.IsBody(r.eng, id) {
		return celestial.NewBody(r.eng, id)
	}
	return celestial.New(r.eng, id)
}

// LoadSolarSystem adds the whole solar system tree from the SSB, or with
// onlyPlanets just the planet of each planetary barycenter.
func (r *Registry) LoadSolarSystem(onlyPlanets bool) error {
	if !onlyPlanets {
		ssb, err := celestial.SSB(r.eng)
		if err != nil {
			return fmt.Errorf("load solar system: %w", err)
		}
		return r.LoadChildren(ssb, true, true)
	}
	for bary := range naif.Children(r.eng, naif.SSB) {
		planet := bary*100 + 99
		if !naif.IsPlanet(r.eng, planet) {
			continue
		}
		obj, err := celestial.NewBody(r.eng, planet)
		if err != nil {
			return fmt.Errorf("load planet %d: %w", planet, err)
		}
		r.Add(obj)
	}
	return nil
}

// Lookup returns the entry with id.
func (r *Registry) Lookup(id naif.ID) (celestial.Object, error) {
	i, ok := r.index[id]
	if !ok {
		return celestial.Object{}, fmt.Errorf("%w: id %d", ephem.ErrNotFound, id)
	}
	return r.objects[i], nil
}

// LookupName matches display names first, then resolves name through the
// engine and looks the id up.
func (r *Registry) LookupName(name string) (celestial.Object, error) {
	for _, obj := range r.objects {
		if obj.Name() == name {
			return obj, nil
		}
	}
	probe, err := celestial.NewByName(r.eng, name)
	if err != nil {
		return celestial.Object{}, fmt.Errorf("%w: name %q: %w", ephem.ErrNotFound, name, err)
	}
	obj, err := r.Lookup(probe.ID())
	if err != nil {
		return celestial.Object{}, fmt.Errorf("%w: name %q", ephem.ErrNotFound, name)
	}
	return obj, nil
}

// LookupObject returns the stored entry for the same entity as sample.
func (r *Registry) LookupObject(sample celestial.Object) (celestial.Object, error) {
	return r.Lookup(sample.ID())
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.objects) }

// At returns the entry at position i in insertion order.
func (r *Registry) At(i int) (celestial.Object, error) {
	if i < 0 || i >= len(r.objects) {
		return celestial.Object{}, fmt.Errorf("%w: %d not in [0, %d)", ephem.ErrIndexOutOfRange, i, len(r.objects))
	}
	return r.objects[i], nil
}

// All yields entries with their positions in insertion order.
func (r *Registry) All() iter.Seq2[int, celestial.Object] {
	return func(yield func(int, celestial.Object) bool) {
		for i, obj := range r.objects {
			if !yield(i, obj) {
				return
			}
		}
	}
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.objects = nil
	r.index = make(map[naif.ID]int)
	r.emit(Event{Type: EventCleared})
}

// Subscribe registers fn for registry events and returns a function that
// removes it.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() { delete(r.subs, id) }
}

func (r *Registry) emit(ev Event) {
	for _, fn := range r.subs {
		fn(ev)
	}
}
