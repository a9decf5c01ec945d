package celestial

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/kernel"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

func newEngine(t *testing.T) *kernel.Pool {
	t.Helper()
	p, err := kernel.NewPool()
	if err != nil {
		t.Fatalf("NewPool error: %v", err)
	}
	for _, f := range []string{"testdata/system.toml", "testdata/moon_late.toml"} {
		if err := p.Furnish(f); err != nil {
			t.Fatalf("Furnish(%s) error: %v", f, err)
		}
	}
	return p
}

func mustNew(t *testing.T, eng ephem.Engine, id naif.ID) Object {
	t.Helper()
	o, err := New(eng, id)
	if err != nil {
		t.Fatalf("New(%d) error: %v", id, err)
	}
	return o
}

func mustSSB(t *testing.T, eng ephem.Engine) Object {
	t.Helper()
	o, err := SSB(eng)
	if err != nil {
		t.Fatalf("SSB error: %v", err)
	}
	return o
}

func mustSun(t *testing.T, eng ephem.Engine) Object {
	t.Helper()
	o, err := Sun(eng)
	if err != nil {
		t.Fatalf("Sun error: %v", err)
	}
	return o
}

func TestSSBAndSunValidateIdentifier(t *testing.T) {
	bare, err := kernel.NewPool(kernel.WithoutBuiltinNames())
	if err != nil {
		t.Fatalf("NewPool error: %v", err)
	}
	if _, err := SSB(bare); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("SSB without names error = %v, want ErrUnknownIdentifier", err)
	}
	if _, err := Sun(bare); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("Sun without names error = %v, want ErrUnknownIdentifier", err)
	}

	sun := mustSun(t, newEngine(t))
	if sun.Name() != "Sun" || sun.ID() != naif.Sun {
		t.Fatalf("Sun = %v", sun)
	}
}

func TestNewValidatesIdentifier(t *testing.T) {
	eng := newEngine(t)

	earth := mustNew(t, eng, naif.Earth)
	if earth.Name() != "EARTH" || earth.Kind() != KindPlain {
		t.Fatalf("New(399) = %+v", earth)
	}
	if _, err := New(eng, -77); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("New(-77) error = %v, want ErrUnknownIdentifier", err)
	}
	if _, err := NewByName(eng, "Vulcan"); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("NewByName(Vulcan) error = %v, want ErrUnknownIdentifier", err)
	}
	terra, err := NewByName(eng, "earth", WithName("Terra"))
	if err != nil {
		t.Fatalf("NewByName error: %v", err)
	}
	if terra.Name() != "Terra" || !terra.Same(earth) {
		t.Fatalf("WithName object = %+v", terra)
	}
	if name, err := terra.CanonicalName(eng); err != nil || name != "EARTH" {
		t.Fatalf("CanonicalName = %q, %v", name, err)
	}
}

func TestNameAndIdentifierDenoteSameObject(t *testing.T) {
	eng := newEngine(t)
	byName, err := NewByName(eng, "Io")
	if err != nil {
		t.Fatalf("NewByName(Io) error: %v", err)
	}
	byID := mustNew(t, eng, 501)
	if byName.ID() != 501 || !byName.Same(byID) {
		t.Fatalf("Io by name = %v, by id = %v", byName, byID)
	}
}

func TestBodyCapability(t *testing.T) {
	eng := newEngine(t)

	bary := mustNew(t, eng, naif.EarthBarycenter)
	if _, ok := bary.Body(); ok {
		t.Fatalf("plain object reported body capability")
	}
	earth, err := NewBody(eng, naif.Earth)
	if err != nil {
		t.Fatalf("NewBody error: %v", err)
	}
	b, ok := earth.Body()
	if !ok || b.Object().ID() != naif.Earth {
		t.Fatalf("body capability missing for %v", earth)
	}
	if _, ok := AsBody(bary).Body(); !ok {
		t.Fatalf("AsBody did not add body capability")
	}
	ssb, sun := mustSSB(t, eng), mustSun(t, eng)
	if ssb.ID() != naif.SSB || ssb.Kind() != KindPlain || sun.Kind() != KindBody {
		t.Fatalf("named objects: SSB=%v Sun=%v", ssb, sun)
	}
}

func TestCoverageUnionsSources(t *testing.T) {
	eng := newEngine(t)
	moon := mustNew(t, eng, naif.Moon)

	w, err := moon.Coverage(eng)
	if err != nil {
		t.Fatalf("Coverage error: %v", err)
	}
	if w.Len() != 2 {
		t.Fatalf("Coverage = %v, want two intervals", w.Slice())
	}
	for _, tc := range []struct {
		at   timectrl.Epoch
		want bool
	}{{-100, true}, {150, false}, {250, true}, {301, false}} {
		if got := w.Contains(tc.at); got != tc.want {
			t.Fatalf("Contains(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

func TestEmptyCoverage(t *testing.T) {
	eng := newEngine(t)
	deimos := mustNew(t, eng, 402)

	w, err := deimos.Coverage(eng)
	if err != nil {
		t.Fatalf("Coverage error: %v", err)
	}
	for iv := range w.Intervals() {
		t.Fatalf("unexpected interval %v", iv)
	}
	for _, at := range []timectrl.Epoch{-1e6, 0, 1e6} {
		if w.Contains(at) {
			t.Fatalf("empty coverage contains %v", at)
		}
	}
}

func TestStateInSIUnits(t *testing.T) {
	eng := newEngine(t)
	earth := mustNew(t, eng, naif.Earth)

	st, err := earth.State(eng, 50, mustSSB(t, eng), ephem.FrameJ2000)
	if err != nil {
		t.Fatalf("State error: %v", err)
	}
	if d := st.Position.Sub(ephem.Vec3{500e3, 4000e3, 0}).Norm(); d > 1e-3 {
		t.Fatalf("position = %v m", st.Position)
	}
	vel, err := earth.Velocity(eng, 50, mustSSB(t, eng), ephem.FrameJ2000)
	if err != nil || vel.Sub(ephem.Vec3{10e3, 0, 0}).Norm() > 1e-6 {
		t.Fatalf("velocity = %v, %v", vel, err)
	}
}

func TestStateOutsideCoverage(t *testing.T) {
	eng := newEngine(t)
	earth := mustNew(t, eng, naif.Earth)

	_, err := earth.Position(eng, 500, mustSSB(t, eng), ephem.FrameJ2000)
	if !errors.Is(err, ephem.ErrNoDataAtEpoch) {
		t.Fatalf("Position outside coverage error = %v, want ErrNoDataAtEpoch", err)
	}
	var diag *ephem.Diagnostic
	if !errors.As(err, &diag) || diag.Short != ephem.CodeInsufficientData {
		t.Fatalf("engine diagnostic lost: %v", err)
	}
	if _, err := earth.Position(eng, 0, mustSSB(t, eng), "BOGUS"); errors.Is(err, ephem.ErrNoDataAtEpoch) || !ephem.HasCode(err, ephem.CodeUnknownFrame) {
		t.Fatalf("unknown frame error = %v", err)
	}
}

func TestBodyParameters(t *testing.T) {
	eng := newEngine(t)
	earth, _ := NewBody(eng, naif.Earth)
	b, _ := earth.Body()

	for _, p := range Parameters() {
		ok, err := b.HasParameter(eng, p)
		if err != nil || !ok {
			t.Fatalf("Earth HasParameter(%s) = %v, %v", p, ok, err)
		}
	}

	radius, err := b.Radius(eng)
	if err != nil {
		t.Fatalf("Radius error: %v", err)
	}
	want := math.Cbrt(6378136.6 * 6378136.6 * 6356751.9)
	if math.Abs(radius-want) > 1e-6 {
		t.Fatalf("Radius = %v, want %v", radius, want)
	}
	gm, _ := b.GM(eng)
	if math.Abs(gm-398600.435436e9) > 1 {
		t.Fatalf("GM = %v", gm)
	}
	mass, _ := b.Mass(eng)
	if math.Abs(mass-gm/G)/mass > 1e-12 || mass < 5.9e24 || mass > 6.1e24 {
		t.Fatalf("Mass = %v", mass)
	}
	g, _ := b.SurfaceGravity(eng)
	if g < 9.7 || g > 9.9 {
		t.Fatalf("SurfaceGravity = %v", g)
	}
	pm, _ := b.PrimeMeridian(eng)
	if pm != [3]float64{190.147, 360.9856235, 0} {
		t.Fatalf("PrimeMeridian = %v", pm)
	}
}

func TestDerivedParametersNeedPrerequisites(t *testing.T) {
	eng := newEngine(t)
	phobos, _ := NewBody(eng, 401)
	b, _ := phobos.Body()

	for p, want := range map[Parameter]bool{
		ParamRadius:         true,
		ParamGM:             false,
		ParamMass:           false,
		ParamSurfaceGravity: false,
		ParamPoleRA:         false,
	} {
		if got, err := b.HasParameter(eng, p); err != nil || got != want {
			t.Fatalf("Phobos HasParameter(%s) = %v, %v; want %v", p, got, err, want)
		}
	}
	if _, err := b.Mass(eng); !errors.Is(err, ephem.ErrParameterUnavailable) {
		t.Fatalf("Mass error = %v, want ErrParameterUnavailable", err)
	}
	if _, err := b.SurfaceGravity(eng); !errors.Is(err, ephem.ErrParameterUnavailable) {
		t.Fatalf("SurfaceGravity error = %v, want ErrParameterUnavailable", err)
	}
}

func TestDefaultFrameAndOrientation(t *testing.T) {
	eng := newEngine(t)

	earth, _ := NewBody(eng, naif.Earth)
	eb, _ := earth.Body()
	frame, err := eb.DefaultFrame(eng)
	if err != nil || frame.Name != "IAU_EARTH" {
		t.Fatalf("DefaultFrame = %+v, %v", frame, err)
	}
	o, err := eb.Orientation(eng, 0, ephem.FrameJ2000)
	if err != nil {
		t.Fatalf("Orientation error: %v", err)
	}
	if o.Z.Sub(ephem.UnitZ).Norm() > 1e-12 || math.Abs(o.X.Norm()-1) > 1e-12 {
		t.Fatalf("Orientation axes X=%v Z=%v", o.X, o.Z)
	}
	w, limited, err := eb.OrientationCoverage(eng)
	if err != nil || limited || !w.Contains(1e12) {
		t.Fatalf("Earth OrientationCoverage = %v, %v, %v", w.Slice(), limited, err)
	}

	moon, _ := NewBody(eng, naif.Moon)
	mb, _ := moon.Body()
	if _, err := mb.Orientation(eng, 0, ephem.FrameJ2000); !errors.Is(err, ephem.ErrNoDataAtEpoch) {
		t.Fatalf("Moon orientation without pole constants error = %v", err)
	}
	w, limited, err = mb.OrientationCoverage(eng)
	if err != nil || !limited || !w.IsEmpty() {
		t.Fatalf("Moon OrientationCoverage = %v, %v, %v", w.Slice(), limited, err)
	}

	io, _ := NewBody(eng, 501)
	ib, _ := io.Body()
	if ok, err := ib.HasDefaultFrame(eng); ok || err != nil {
		t.Fatalf("Io HasDefaultFrame = %v, %v", ok, err)
	}
	if _, err := ib.DefaultFrame(eng); !errors.Is(err, ephem.ErrNoFrameAvailable) {
		t.Fatalf("Io DefaultFrame error = %v, want ErrNoFrameAvailable", err)
	}
}
