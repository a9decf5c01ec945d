package kernel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// segment is a span of state data for one target relative to one center,
// expressed in J2000.
type segment interface {
	target() naif.ID
	center() naif.ID
	span() coverage.Interval
	state(et timectrl.Epoch) (ephem.State, error)
}

// hermiteSegment interpolates tabulated position/velocity records with
// cubic Hermite polynomials between adjacent records.
type hermiteSegment struct {
	tgt, ctr naif.ID
	epochs   []timectrl.Epoch
	pos, vel []ephem.Vec3
}

const recordWidth = 7

func newHermiteSegment(s segmentSpec) (*hermiteSegment, error) {
	if s.Target == s.Center {
		return nil, errors.New("target and center are the same body")
	}
	var rot *ephem.Matrix3
	switch normalizeName(s.Frame) {
	case "", ephem.FrameJ2000:
	case ephem.FrameEclipJ2000:
		m := eclipticRotation().Transpose()
		rot = &m
	default:
		return nil, fmt.Errorf("frame %q is not a built-in inertial frame", s.Frame)
	}
	if len(s.Records) < 2 {
		return nil, fmt.Errorf("need at least 2 records, got %d", len(s.Records))
	}

	seg := &hermiteSegment{
		tgt:    naif.ID(s.Target),
		ctr:    naif.ID(s.Center),
		epochs: make([]timectrl.Epoch, len(s.Records)),
		pos:    make([]ephem.Vec3, len(s.Records)),
		vel:    make([]ephem.Vec3, len(s.Records)),
	}
	for i, rec := range s.Records {
		if len(rec) != recordWidth {
			return nil, fmt.Errorf("record %d has %d values, want %d", i, len(rec), recordWidth)
		}
		for _, v := range rec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("record %d is not finite", i)
			}
		}
		et := timectrl.Epoch(rec[0])
		if i > 0 && et <= seg.epochs[i-1] {
			return nil, fmt.Errorf("record %d epoch %v does not follow %v", i, rec[0], float64(seg.epochs[i-1]))
		}
		p := ephem.Vec3{rec[1], rec[2], rec[3]}
		v := ephem.Vec3{rec[4], rec[5], rec[6]}
		if rot != nil {
			p, v = rot.MulVec(p), rot.MulVec(v)
		}
		seg.epochs[i], seg.pos[i], seg.vel[i] = et, p, v
	}
	return seg, nil
}

func (s *hermiteSegment) target() naif.ID { return s.tgt }
func (s *hermiteSegment) center() naif.ID { return s.ctr }

func (s *hermiteSegment) span() coverage.Interval {
	return coverage.Interval{Begin: s.epochs[0], End: s.epochs[len(s.epochs)-1]}
}

func (s *hermiteSegment) state(et timectrl.Epoch) (ephem.State, error) {
	if !s.span().Contains(et) {
		return ephem.State{}, errOutsideSegment
	}
	// First record at or after et; the bracketing pair is (k-1, k).
	k := sort.Search(len(s.epochs), func(i int) bool { return s.epochs[i] >= et })
	if s.epochs[k] == et {
		return ephem.State{Position: s.pos[k], Velocity: s.vel[k]}, nil
	}
	i0, i1 := k-1, k
	h := s.epochs[i1].Sub(s.epochs[i0])
	u := et.Sub(s.epochs[i0]) / h
	u2, u3 := u*u, u*u*u

	h00, h10 := 2*u3-3*u2+1, u3-2*u2+u
	h01, h11 := -2*u3+3*u2, u3-u2
	pos := s.pos[i0].Scale(h00).
		Add(s.vel[i0].Scale(h10 * h)).
		Add(s.pos[i1].Scale(h01)).
		Add(s.vel[i1].Scale(h11 * h))

	d00, d10 := (6*u2-6*u)/h, 3*u2-4*u+1
	d01, d11 := (-6*u2+6*u)/h, 3*u2-2*u
	vel := s.pos[i0].Scale(d00).
		Add(s.vel[i0].Scale(d10)).
		Add(s.pos[i1].Scale(d01)).
		Add(s.vel[i1].Scale(d11))
	return ephem.State{Position: pos, Velocity: vel}, nil
}

var errOutsideSegment = errors.New("epoch outside segment")

// tleSegment propagates a two-line element set with SGP4. The TEME output
// is used as J2000 directly; the difference is below the accuracy of the
// element set itself.
type tleSegment struct {
	tgt, ctr naif.ID
	sat      satellite.Satellite
	window   coverage.Interval
}

func newTLESegment(t tleSpec) (*tleSegment, error) {
	if t.Target >= 0 {
		return nil, fmt.Errorf("target %d: TLE objects use negative identifiers", t.Target)
	}
	line1, line2 := strings.TrimRight(t.Line1, " \r\n"), strings.TrimRight(t.Line2, " \r\n")
	if err := checkTLELine(line1, '1'); err != nil {
		return nil, err
	}
	if err := checkTLELine(line2, '2'); err != nil {
		return nil, err
	}
	begin, err := parseEpochField("begin", t.Begin)
	if err != nil {
		return nil, err
	}
	end, err := parseEpochField("end", t.End)
	if err != nil {
		return nil, err
	}
	if end < begin {
		return nil, fmt.Errorf("end %s before begin %s", end, begin)
	}
	ctr := naif.Earth
	if t.Center != nil {
		ctr = naif.ID(*t.Center)
	}
	return &tleSegment{
		tgt:    naif.ID(t.Target),
		ctr:    ctr,
		sat:    satellite.TLEToSat(line1, line2, satellite.GravityWGS72),
		window: coverage.Interval{Begin: begin, End: end},
	}, nil
}

// checkTLELine validates the fixed-column layout and modulo-10 checksum
// before the line reaches the propagator, which does not report parse
// failures.
func checkTLELine(line string, num byte) error {
	if len(line) != 69 {
		return fmt.Errorf("line %c: length %d, want 69", num, len(line))
	}
	if line[0] != num || line[1] != ' ' {
		return fmt.Errorf("line %c: bad line number", num)
	}
	sum := 0
	for i := 0; i < 68; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	if want := int(line[68] - '0'); sum%10 != want {
		return fmt.Errorf("line %c: checksum %d, want %d", num, sum%10, want)
	}
	return nil
}

func (s *tleSegment) target() naif.ID         { return s.tgt }
func (s *tleSegment) center() naif.ID         { return s.ctr }
func (s *tleSegment) span() coverage.Interval { return s.window }

func (s *tleSegment) state(et timectrl.Epoch) (ephem.State, error) {
	if !s.window.Contains(et) {
		return ephem.State{}, errOutsideSegment
	}
	// The propagator takes whole seconds; blend the bracketing pair.
	t := et.Time()
	base := t.Truncate(time.Second)
	frac := t.Sub(base).Seconds()
	p0, v0 := propagate(s.sat, base)
	p1, v1 := propagate(s.sat, base.Add(time.Second))
	pos := p0.Add(p1.Sub(p0).Scale(frac))
	vel := v0.Add(v1.Sub(v0).Scale(frac))
	for _, c := range append(pos[:], vel[:]...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return ephem.State{}, fmt.Errorf("propagation of %d diverged at %s", s.tgt, et)
		}
	}
	return ephem.State{Position: pos, Velocity: vel}, nil
}

func propagate(sat satellite.Satellite, t time.Time) (ephem.Vec3, ephem.Vec3) {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	p, v := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)
	return ephem.Vec3{p.X, p.Y, p.Z}, ephem.Vec3{v.X, v.Y, v.Z}
}
