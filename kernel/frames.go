package kernel

import (
	"math"

	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

const (
	// obliquityJ2000 is the IAU 1976 mean obliquity of the ecliptic at J2000.
	obliquityJ2000 = 84381.448 / 3600 * math.Pi / 180
	deg            = math.Pi / 180
	// rotationStep is the half-width of the central difference used for
	// rotation rates.
	rotationStep = 1.0
)

func eclipticRotation() ephem.Matrix3 { return ephem.RotX(obliquityJ2000) }

// poleModel holds the IAU rotation elements of a body: right ascension and
// declination of the pole in degrees (a + bT + cT², T in Julian centuries)
// and prime meridian in degrees (a + bd + cd², d in days).
type poleModel struct {
	ra, dec, pm [3]float64
}

func (p poleModel) rotation(et timectrl.Epoch) ephem.Matrix3 {
	T, d := et.Centuries(), et.Days()
	ra := p.ra[0] + p.ra[1]*T + p.ra[2]*T*T
	dec := p.dec[0] + p.dec[1]*T + p.dec[2]*T*T
	w := p.pm[0] + p.pm[1]*d + p.pm[2]*d*d
	w = math.Mod(w, 360)
	return ephem.RotZ(w * deg).
		Mul(ephem.RotX((90 - dec) * deg)).
		Mul(ephem.RotZ((90 + ra) * deg))
}

// poleFromConstants builds a pole model from the POLE_RA, POLE_DEC and PM
// constants; missing trailing coefficients are zero.
func poleFromConstants(consts map[string][]float64) (poleModel, bool) {
	ra, ok1 := consts[ephem.KeyPoleRA]
	dec, ok2 := consts[ephem.KeyPoleDec]
	pm, ok3 := consts[ephem.KeyPrimeMeridian]
	if !ok1 || !ok2 || !ok3 {
		return poleModel{}, false
	}
	var p poleModel
	copy(p.ra[:], ra)
	copy(p.dec[:], dec)
	copy(p.pm[:], pm)
	return p, true
}

// toFrame returns the rotation from J2000 to frame at et.
func (p *Pool) toFrame(op string, frame frameDef, et timectrl.Epoch) (ephem.Matrix3, error) {
	if frame.info.Class == ephem.FrameInertial {
		if frame.fixed == nil {
			return ephem.Identity3, nil
		}
		return *frame.fixed, nil
	}
	pole, ok := poleFromConstants(p.constants[frame.info.Center])
	if !ok {
		return ephem.Matrix3{}, ephem.Diagnose(op, ephem.CodeNoOrientationData,
			"orientation of frame %s (center %d) requires %s, %s and %s constants",
			frame.info.Name, frame.info.Center, ephem.KeyPoleRA, ephem.KeyPoleDec, ephem.KeyPrimeMeridian)
	}
	return pole.rotation(et), nil
}

// rotateState re-expresses a J2000 state in frame, including the transport
// term of a rotating frame.
func (p *Pool) rotateState(op string, st ephem.State, frame frameDef, et timectrl.Epoch) (ephem.State, error) {
	r, err := p.toFrame(op, frame, et)
	if err != nil {
		return ephem.State{}, err
	}
	out := ephem.State{Position: r.MulVec(st.Position), Velocity: r.MulVec(st.Velocity), LightTime: st.LightTime}
	if frame.info.Class == ephem.FrameInertial {
		return out, nil
	}
	rPlus, _ := p.toFrame(op, frame, et.Add(rotationStep))
	rMinus, _ := p.toFrame(op, frame, et.Add(-rotationStep))
	dr := rPlus.Sub(rMinus).Scale(1 / (2 * rotationStep))
	out.Velocity = out.Velocity.Add(dr.MulVec(st.Position))
	return out, nil
}

func (p *Pool) lookupFrame(op, name string) (frameDef, error) {
	def, ok := p.framesByName[normalizeName(name)]
	if !ok {
		return frameDef{}, ephem.Diagnose(op, ephem.CodeUnknownFrame, "the frame %q is not recognised", name)
	}
	return def, nil
}

// bodyFrameOf returns the body-fixed frame centred on id, preferring the
// most recently loaded definition.
func (p *Pool) bodyFrameOf(id naif.ID) (frameDef, bool) {
	def, ok := p.bodyFrames[id]
	return def, ok
}
