package session

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/internal/observability"
	"github.com/signalsfoundry/celestial-catalog/naif"
)

const systemKernel = "../../celestial/testdata/system.toml"

func newSession(t *testing.T) (*Session, *observability.Collector) {
	t.Helper()
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	s, err := New(Options{Metrics: collector})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, collector
}

func loadedSession(t *testing.T) (*Session, *observability.Collector) {
	t.Helper()
	s, c := newSession(t)
	ctx := context.Background()
	if err := s.LoadKernel(ctx, systemKernel); err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	if err := s.LoadSolarSystem(ctx, false); err != nil {
		t.Fatalf("LoadSolarSystem: %v", err)
	}
	return s, c
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestNewDefaultsToJ2000(t *testing.T) {
	s, _ := newSession(t)
	if f := s.ReferenceFrame(); f.Name != ephem.FrameJ2000 || f.Center != naif.SSB {
		t.Fatalf("ReferenceFrame = %+v", f)
	}
	if len(s.ID()) != 36 {
		t.Fatalf("session id %q is not a UUID", s.ID())
	}
}

func TestSetReferenceFrame(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	if err := s.SetReferenceFrame(ctx, "eclipj2000"); err != nil {
		t.Fatalf("SetReferenceFrame: %v", err)
	}
	if got := s.ReferenceFrame().Name; got != ephem.FrameEclipJ2000 {
		t.Fatalf("frame = %q", got)
	}
	if err := s.SetReferenceFrame(ctx, "NOT_A_FRAME"); !errors.Is(err, ephem.ErrNoFrameAvailable) {
		t.Fatalf("unknown frame error = %v", err)
	}
	if err := s.SetReferenceFrame(ctx, " "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("blank frame error = %v", err)
	}
	if got := s.ReferenceFrame().Name; got != ephem.FrameEclipJ2000 {
		t.Fatalf("failed set changed frame to %q", got)
	}
	if _, err := New(Options{Frame: "NOT_A_FRAME"}); !errors.Is(err, ephem.ErrNoFrameAvailable) {
		t.Fatalf("New with unknown frame error = %v", err)
	}
}

func TestLoadSolarSystemUpdatesRegistryGauges(t *testing.T) {
	s, c := loadedSession(t)
	if s.Len() != 45 {
		t.Fatalf("Len = %d, want 45", s.Len())
	}
	if got := testutil.ToFloat64(c.RegistryObjects.WithLabelValues("body")); got != 34 {
		t.Fatalf("registry_objects{kind=body} = %v, want 34", got)
	}
	if got := testutil.ToFloat64(c.RegistryObjects.WithLabelValues("object")); got != 11 {
		t.Fatalf("registry_objects{kind=object} = %v, want 11", got)
	}
	if got := testutil.ToFloat64(c.KernelFiles); got != 1 {
		t.Fatalf("kernel_files_loaded = %v, want 1", got)
	}

	s.Clear()
	if got := testutil.ToFloat64(c.RegistryObjects.WithLabelValues("body")); got != 0 {
		t.Fatalf("registry_objects{kind=body} after Clear = %v", got)
	}
}

func TestDescribeEarth(t *testing.T) {
	s, _ := loadedSession(t)
	rep, err := s.Describe(context.Background(), "Earth", 0)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if rep.ID != naif.Earth || rep.Kind != "body" || rep.Class != "planet" || rep.Observer != naif.SSB {
		t.Fatalf("header = %+v", rep)
	}

	params := make(map[string]ParameterValue)
	for _, p := range rep.Parameters {
		params[p.Name] = p
	}
	for _, name := range []string{"radius", "gm", "mass", "surface_gravity", "pole_ra", "pole_dec", "prime_meridian"} {
		if _, ok := params[name]; !ok {
			t.Fatalf("missing parameter %s in %+v", name, rep.Parameters)
		}
	}
	if g := params["surface_gravity"].Values[0]; g < 9.7 || g > 9.9 {
		t.Fatalf("surface gravity = %v m/s^2", g)
	}
	if r := params["radius"]; len(r.Values) != 4 || r.Unit != "m" || !near(r.Values[1], 6378136.6, 1e-3) {
		t.Fatalf("radius = %+v", r)
	}

	if len(rep.Coverage) != 1 || rep.Coverage[0].Begin != -100 || rep.Coverage[0].End != 100 {
		t.Fatalf("coverage = %v", rep.Coverage)
	}
	if rep.State == nil {
		t.Fatalf("state missing inside coverage")
	}
	if p := rep.State.Position; !near(p[0], 0, 1e-6) || !near(p[1], 4e6, 1e-3) || !near(p[2], 0, 1e-6) {
		t.Fatalf("position = %v", p)
	}

	o := rep.Orientation
	if o == nil || o.Frame != "IAU_EARTH" || !o.HasData || o.Limited || o.Attitude == nil {
		t.Fatalf("orientation = %+v", o)
	}
	if z := o.Attitude.Z; !near(z.Norm(), 1, 1e-9) {
		t.Fatalf("pole axis %v is not a unit vector", z)
	}
}

func TestDescribeWithoutData(t *testing.T) {
	s, _ := loadedSession(t)
	ctx := context.Background()

	mars, err := s.Describe(ctx, "499", 0)
	if err != nil {
		t.Fatalf("Describe(499): %v", err)
	}
	if len(mars.Coverage) != 0 || mars.State != nil {
		t.Fatalf("Mars should have no state data: %+v", mars)
	}
	if len(mars.Parameters) != 0 {
		t.Fatalf("Mars parameters = %+v", mars.Parameters)
	}
	if o := mars.Orientation; o == nil || o.Frame != "IAU_MARS" || o.HasData || o.Attitude != nil {
		t.Fatalf("Mars orientation = %+v", o)
	}

	late, err := s.Describe(ctx, "Moon", 500)
	if err != nil {
		t.Fatalf("Describe(Moon, 500): %v", err)
	}
	if late.State != nil || len(late.Coverage) != 1 {
		t.Fatalf("Moon outside coverage: %+v", late)
	}

	bary, err := s.Describe(ctx, "3", 0)
	if err != nil {
		t.Fatalf("Describe(3): %v", err)
	}
	if bary.Parameters != nil || bary.Orientation != nil || bary.State == nil {
		t.Fatalf("barycenter report = %+v", bary)
	}
}

func TestDescribeErrors(t *testing.T) {
	s, _ := loadedSession(t)
	ctx := context.Background()
	if _, err := s.Describe(ctx, "Vulcan", 0); !errors.Is(err, ephem.ErrNotFound) {
		t.Fatalf("Describe(Vulcan) error = %v", err)
	}
	if _, err := s.Describe(ctx, "  ", 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Describe(blank) error = %v", err)
	}
	if _, err := s.Describe(ctx, "-77", 0); !errors.Is(err, ephem.ErrNotFound) {
		t.Fatalf("Describe(-77) error = %v", err)
	}
}

func TestStateRelativeToOtherObject(t *testing.T) {
	s, _ := loadedSession(t)
	ctx := context.Background()
	st, err := s.State(ctx, "Earth", 0, "Moon")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if p := st.Position; !near(p[1], 8e6, 1e-3) {
		t.Fatalf("Earth relative to Moon = %v", p)
	}
	if _, err := s.State(ctx, "Earth", 1000, ""); !errors.Is(err, ephem.ErrNoDataAtEpoch) {
		t.Fatalf("State outside coverage error = %v", err)
	}
	if _, err := s.State(ctx, "Earth", 0, "Vulcan"); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("State relative to unknown error = %v", err)
	}
}

func TestAddAndLoadChildren(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	io, added, err := s.Add(ctx, "Io", false)
	if err != nil || !added {
		t.Fatalf("Add(Io) = %v, %v, %v", io, added, err)
	}
	if io.ID() != 501 || io.Kind() != celestial.KindBody {
		t.Fatalf("Io = %v (%s)", io, io.Kind())
	}
	again, added, err := s.Add(ctx, "501", true)
	if err != nil || added || !again.Same(io) {
		t.Fatalf("second Add = %v, %v, %v", again, added, err)
	}

	n, err := s.LoadChildren(ctx, "5", false, false)
	if err != nil {
		t.Fatalf("LoadChildren: %v", err)
	}
	if n != 5 {
		t.Fatalf("LoadChildren added %d, want 5 (Io already tracked)", n)
	}
	moons, err := s.MoonsOf(ctx, "Jupiter")
	if err != nil || len(moons) != 5 {
		t.Fatalf("MoonsOf(Jupiter) = %v, %v", moons, err)
	}
	if _, _, err := s.Add(ctx, "Vulcan", false); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("Add(Vulcan) error = %v", err)
	}
}

func TestAddValidatesSSBAndSun(t *testing.T) {
	s, err := New(Options{WithoutBuiltinNames: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	ctx := context.Background()
	for _, ref := range []string{"0", "10", "11"} {
		if obj, _, err := s.Add(ctx, ref, false); !errors.Is(err, ephem.ErrUnknownIdentifier) {
			t.Fatalf("Add(%s) = %v, %v; want ErrUnknownIdentifier", ref, obj, err)
		}
	}
	if _, err := s.LoadChildren(ctx, "0", true, true); !errors.Is(err, ephem.ErrUnknownIdentifier) {
		t.Fatalf("LoadChildren(0) error = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("tracked %d objects without kernel data", s.Len())
	}
}

func TestSunKindDependsOnHowItIsTracked(t *testing.T) {
	ctx := context.Background()
	direct, _ := newSession(t)
	sun, _, err := direct.Add(ctx, "10", false)
	if err != nil || sun.Kind() != celestial.KindBody {
		t.Fatalf("Add(10) = %v (%s), %v; want a body", sun, sun.Kind(), err)
	}

	tree, _ := newSession(t)
	if _, err := tree.LoadChildren(ctx, "0", true, false); err != nil {
		t.Fatalf("LoadChildren(0): %v", err)
	}
	sun, err = tree.Lookup("10")
	if err != nil || sun.Kind() != celestial.KindPlain {
		t.Fatalf("Sun under SSB = %v (%s), %v; want a plain object", sun, sun.Kind(), err)
	}
}

func TestObjectsFilters(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	if err := s.LoadSolarSystem(ctx, true); err != nil {
		t.Fatalf("LoadSolarSystem: %v", err)
	}
	for _, tc := range []struct {
		filter string
		want   int
	}{
		{"", 9}, {"all", 9}, {"planets", 9}, {"Moons", 0}, {"barycenters", 0},
	} {
		f, err := ParseFilter(tc.filter)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", tc.filter, err)
		}
		objs, err := s.Objects(ctx, f)
		if err != nil || len(objs) != tc.want {
			t.Fatalf("Objects(%q) = %d, %v; want %d", tc.filter, len(objs), err, tc.want)
		}
	}
	if _, err := ParseFilter("comets"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("ParseFilter(comets) error = %v", err)
	}
}

func TestReloadKeepsDataOnFailure(t *testing.T) {
	s, c := newSession(t)
	ctx := context.Background()

	src, err := os.ReadFile(systemKernel)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "system.toml")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatalf("write kernel: %v", err)
	}
	if err := s.LoadKernel(ctx, path); err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	if _, _, err := s.Add(ctx, "Earth", false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.SetReferenceFrame(ctx, "IAU_EARTH"); err != nil {
		t.Fatalf("SetReferenceFrame: %v", err)
	}

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := os.WriteFile(path, []byte("[[segment]\nbroken"), 0o644); err != nil {
		t.Fatalf("corrupt kernel: %v", err)
	}
	if err := s.Reload(ctx); !ephem.HasCode(err, ephem.CodeBadKernel) {
		t.Fatalf("Reload of corrupt kernel error = %v", err)
	}
	if got := testutil.ToFloat64(c.KernelReloads.WithLabelValues("ok")); got != 1 {
		t.Fatalf("kernel_reloads_total{ok} = %v", got)
	}
	if got := testutil.ToFloat64(c.KernelReloads.WithLabelValues("error")); got != 1 {
		t.Fatalf("kernel_reloads_total{error} = %v", got)
	}
	if w, err := s.Coverage(ctx, "Earth"); err != nil || w.IsEmpty() {
		t.Fatalf("coverage after failed reload = %v, %v", w, err)
	}
	if got := s.ReferenceFrame().Name; got != "IAU_EARTH" {
		t.Fatalf("frame after reload = %q", got)
	}
}

func TestUnloadKernel(t *testing.T) {
	s, _ := loadedSession(t)
	ctx := context.Background()
	if len(s.Kernels()) != 1 || len(s.KernelFiles()) != 1 {
		t.Fatalf("kernels = %v", s.Kernels())
	}
	if err := s.UnloadKernel(ctx, systemKernel); err != nil {
		t.Fatalf("UnloadKernel: %v", err)
	}
	if err := s.UnloadKernel(ctx, systemKernel); !ephem.HasCode(err, ephem.CodeFileNotLoaded) {
		t.Fatalf("second UnloadKernel error = %v", err)
	}
	if w, err := s.Coverage(ctx, "Earth"); err != nil || !w.IsEmpty() {
		t.Fatalf("coverage after unload = %v, %v", w, err)
	}
	if _, err := s.Lookup("Earth"); err != nil {
		t.Fatalf("Earth should stay tracked after unload: %v", err)
	}
}

func TestCloseStopsRegistryEvents(t *testing.T) {
	s, c := newSession(t)
	s.Close()
	if _, _, err := s.Add(context.Background(), "Earth", false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := testutil.CollectAndCount(c.RegistryObjects); got != 0 {
		t.Fatalf("registry gauges updated after Close: %d series", got)
	}
}
