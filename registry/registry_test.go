package registry

import (
	"errors"
	"slices"
	"testing"

	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/kernel"
	"github.com/signalsfoundry/celestial-catalog/naif"
)

func newEngine(t *testing.T) *kernel.Pool {
	t.Helper()
	p, err := kernel.NewPool()
	if err != nil {
		t.Fatalf("NewPool error: %v", err)
	}
	return p
}

func ids(objs []celestial.Object) []naif.ID {
	out := make([]naif.ID, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.ID())
	}
	return out
}

func allIDs(r *Registry) []naif.ID {
	var out []naif.ID
	for _, o := range r.All() {
		out = append(out, o.ID())
	}
	return out
}

func mustSSB(t *testing.T, eng ephem.Engine) celestial.Object {
	t.Helper()
	o, err := celestial.SSB(eng)
	if err != nil {
		t.Fatalf("SSB error: %v", err)
	}
	return o
}

func mustSun(t *testing.T, eng ephem.Engine) celestial.Object {
	t.Helper()
	o, err := celestial.Sun(eng)
	if err != nil {
		t.Fatalf("Sun error: %v", err)
	}
	return o
}

func TestLoadSolarSystemValidatesSSB(t *testing.T) {
	bare, err := kernel.NewPool(kernel.WithoutBuiltinNames())
	if err != nil {
		t.Fatalf("NewPool error: %v", err)
	}
	r := New(bare)
	if err := r.LoadSolarSystem(false); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("LoadSolarSystem error = %v, want ErrUnknownIdentifier", err)
	}
	if r.Len() != 0 {
		t.Fatalf("registry holds %v after failed load", allIDs(r))
	}
}

func TestLoadChildrenFromSSB(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)
	if err := r.LoadChildren(mustSSB(t, eng), true, true); err != nil {
		t.Fatalf("LoadChildren error: %v", err)
	}

	want := []naif.ID{
		0,
		1, 199,
		2, 299,
		3, 301, 399,
		4, 401, 402, 499,
		5, 501, 502, 503, 504, 505, 599,
		6, 601, 602, 603, 604, 605, 606, 607, 608, 609, 699,
		7, 701, 702, 703, 704, 705, 799,
		8, 801, 802, 899,
		9, 901, 999,
		10,
	}
	if got := allIDs(r); !slices.Equal(got, want) {
		t.Fatalf("registry order =\n%v\nwant\n%v", got, want)
	}

	first, _ := r.At(0)
	if first.ID() != naif.SSB || first.Name() != "Solar System Barycenter" {
		t.Fatalf("first entry = %v", first)
	}
	earth, err := r.Lookup(naif.Earth)
	if err != nil {
		t.Fatalf("Lookup(399) error: %v", err)
	}
	if _, ok := earth.Body(); !ok || !naif.IsPlanet(eng, earth.ID()) {
		t.Fatalf("399 should be a planet body: %v", earth)
	}
	moon, _ := r.Lookup(naif.Moon)
	if _, ok := moon.Body(); !ok || !naif.IsMoon(eng, moon.ID()) {
		t.Fatalf("301 should be a moon body: %v", moon)
	}
	bary, _ := r.Lookup(naif.EarthBarycenter)
	if _, ok := bary.Body(); ok {
		t.Fatalf("barycenter stored as body")
	}
}

func TestLoadChildrenNonRecursive(t *testing.T) {
	r := New(newEngine(t))
	jupiter, err := celestial.New(r.Engine(), 5)
	if err != nil {
		t.Fatalf("New(5) error: %v", err)
	}
	if err := r.LoadChildren(jupiter, false, false); err != nil {
		t.Fatalf("LoadChildren error: %v", err)
	}
	if got, want := allIDs(r), []naif.ID{501, 502, 503, 504, 505, 599}; !slices.Equal(got, want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
}

func TestLoadChildrenOfNonStandardIDIsEmpty(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)
	probe := celestial.AsBody(mustSun(t, eng))
	if err := r.LoadChildren(probe, false, true); err != nil {
		t.Fatalf("LoadChildren(Sun) error: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Sun has no children, got %v", allIDs(r))
	}
}

func TestAddIsIdempotent(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)

	plain, _ := celestial.New(eng, naif.Earth)
	if !r.Add(plain) {
		t.Fatalf("first Add reported duplicate")
	}
	body, _ := celestial.NewBody(eng, naif.Earth, celestial.WithName("Terra"))
	if r.Add(body) {
		t.Fatalf("second Add reported insert")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	got, _ := r.Lookup(naif.Earth)
	if got.Kind() != celestial.KindPlain || got.Name() != "EARTH" {
		t.Fatalf("duplicate Add changed stored entry to %v (%s)", got, got.Kind())
	}
}

func TestNameAndIDAreDuplicates(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)

	io, err := celestial.NewByName(eng, "Io")
	if err != nil {
		t.Fatalf("NewByName(Io) error: %v", err)
	}
	byID, _ := celestial.New(eng, 501)
	if io.ID() != byID.ID() {
		t.Fatalf("Io by name = %d, by id = %d", io.ID(), byID.ID())
	}
	r.Add(io)
	if r.Add(byID) || r.Len() != 1 {
		t.Fatalf("501 was not treated as a duplicate of Io")
	}

	got, err := r.LookupName("Io")
	if err != nil || got.ID() != 501 {
		t.Fatalf("LookupName(Io) = %v, %v", got, err)
	}
	got, err = r.LookupName("IO")
	if err != nil || got.ID() != 501 {
		t.Fatalf("LookupName(IO) = %v, %v", got, err)
	}
	if got, err := r.LookupObject(byID); err != nil || !got.Same(io) {
		t.Fatalf("LookupObject = %v, %v", got, err)
	}
}

func TestLookupMisses(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)
	io, _ := celestial.New(eng, 501)
	r.Add(io)

	if _, err := r.Lookup(502); !errors.Is(err, ephem.ErrNotFound) {
		t.Fatalf("Lookup(502) error = %v, want ErrNotFound", err)
	}
	if _, err := r.LookupName("Europa"); !errors.Is(err, ephem.ErrNotFound) {
		t.Fatalf("LookupName(Europa) error = %v, want ErrNotFound", err)
	}
	_, err := r.LookupName("Vulcan")
	if !errors.Is(err, ephem.ErrNotFound) || !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("LookupName(Vulcan) error = %v", err)
	}
	for _, i := range []int{-1, 1} {
		if _, err := r.At(i); !errors.Is(err, ephem.ErrIndexOutOfRange) {
			t.Fatalf("At(%d) error = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestLoadSolarSystemPlanetsOnly(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)
	if err := r.LoadSolarSystem(true); err != nil {
		t.Fatalf("LoadSolarSystem error: %v", err)
	}
	want := []naif.ID{199, 299, 399, 499, 599, 699, 799, 899, 999}
	if got := allIDs(r); !slices.Equal(got, want) {
		t.Fatalf("planets = %v, want %v", got, want)
	}
	for _, o := range r.All() {
		if o.Kind() != celestial.KindBody {
			t.Fatalf("%v stored as %s", o, o.Kind())
		}
	}
}

func TestFilters(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)
	if err := r.LoadSolarSystem(false); err != nil {
		t.Fatalf("LoadSolarSystem error: %v", err)
	}

	if got, want := ids(r.Barycenters()), []naif.ID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}; !slices.Equal(got, want) {
		t.Fatalf("Barycenters = %v", got)
	}
	if got := len(r.Planets()); got != 9 {
		t.Fatalf("Planets = %d, want 9", got)
	}
	if got := len(r.Moons()); got != r.Len()-11-9 {
		t.Fatalf("Moons = %d of %d entries", got, r.Len())
	}

	earth, _ := r.Lookup(naif.Earth)
	if got := ids(r.MoonsOf(earth)); !slices.Equal(got, []naif.ID{301}) {
		t.Fatalf("MoonsOf(Earth) = %v", got)
	}
	jupiterBary, _ := r.Lookup(5)
	if got := ids(r.MoonsOf(jupiterBary)); !slices.Equal(got, []naif.ID{501, 502, 503, 504, 505}) {
		t.Fatalf("MoonsOf(5) = %v", got)
	}
	if got := r.MoonsOf(mustSSB(t, eng)); got != nil {
		t.Fatalf("MoonsOf(SSB) = %v, want none", got)
	}
}

func TestAllStopsEarly(t *testing.T) {
	r := New(newEngine(t))
	if err := r.LoadSolarSystem(true); err != nil {
		t.Fatalf("LoadSolarSystem error: %v", err)
	}
	n := 0
	for i := range r.All() {
		if i == 2 {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("iterated %d entries before break, want 2", n)
	}
}

func TestSubscribeAndClear(t *testing.T) {
	eng := newEngine(t)
	r := New(eng)

	var events []Event
	unsubscribe := r.Subscribe(func(ev Event) { events = append(events, ev) })

	earth, _ := celestial.New(eng, naif.Earth)
	r.Add(earth)
	r.Add(earth)
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("Len after Clear = %d", r.Len())
	}
	if _, err := r.Lookup(naif.Earth); !errors.Is(err, ephem.ErrNotFound) {
		t.Fatalf("Lookup after Clear error = %v", err)
	}
	if len(events) != 2 || events[0].Type != EventObjectAdded || events[0].Len != 1 || events[1].Type != EventCleared {
		t.Fatalf("events = %+v", events)
	}

	unsubscribe()
	r.Add(earth)
	if len(events) != 2 {
		t.Fatalf("event delivered after unsubscribe")
	}
	if !r.Add(mustSSB(t, eng)) || r.Len() != 2 {
		t.Fatalf("registry unusable after Clear")
	}
}

// namelessEngine fails name lookups for one id.
type namelessEngine struct {
	*kernel.Pool
	broken naif.ID
}

func (e namelessEngine) IDToName(id naif.ID) (string, bool, error) {
	if id == e.broken {
		return "", false, ephem.Diagnose("id-to-name", ephem.CodeIDNotFound, "lookup of %d failed", id)
	}
	return e.Pool.IDToName(id)
}

func TestLoadChildrenPropagatesEngineErrors(t *testing.T) {
	eng := namelessEngine{Pool: newEngine(t), broken: 301}
	r := New(eng)
	err := r.LoadChildren(mustSSB(t, eng), true, true)
	if !errors.Is(err, ephem.ErrUnknownIdentifier) || !ephem.HasCode(err, ephem.CodeIDNotFound) {
		t.Fatalf("LoadChildren error = %v", err)
	}
	if _, lookupErr := r.Lookup(3); lookupErr != nil {
		t.Fatalf("entries added before the failure should remain: %v", lookupErr)
	}
}
