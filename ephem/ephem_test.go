package ephem

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestDiagnosticFormatting(t *testing.T) {
	d := Diagnose("spkez", CodeInsufficientData, "no segment for %d at %v", 399, 1e9)
	if d.Explain == "" {
		t.Fatalf("missing explanation for %s", d.Short)
	}
	want := "spkez: ENGINE(SPKINSUFFDATA) -- no segment for 399 at 1e+09"
	if got := d.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	bare := &Diagnostic{Short: CodeBadKernel}
	if got := bare.Error(); got != "ENGINE(BADKERNEL)" {
		t.Fatalf("bare Error() = %q", got)
	}
}

func TestHasCodeThroughWrapping(t *testing.T) {
	d := Diagnose("frame", CodeUnknownFrame, "frame %q", "NOPE")
	wrapped := fmt.Errorf("%w: set frame: %w", ErrNoFrameAvailable, d)
	if !HasCode(wrapped, CodeUnknownFrame) {
		t.Fatalf("HasCode lost the diagnostic through wrapping")
	}
	if HasCode(wrapped, CodeBadKernel) {
		t.Fatalf("HasCode matched the wrong code")
	}
	if !errors.Is(wrapped, ErrNoFrameAvailable) {
		t.Fatalf("sentinel lost through wrapping")
	}
	if HasCode(errors.New("plain"), CodeUnknownFrame) || HasCode(nil, CodeUnknownFrame) {
		t.Fatalf("HasCode matched a non-diagnostic error")
	}
	if !strings.Contains(wrapped.Error(), "UNKNOWNFRAME") {
		t.Fatalf("wrapped message = %q", wrapped.Error())
	}
}

func TestVectorArithmetic(t *testing.T) {
	v := Vec3{3, 4, 0}
	if v.Norm() != 5 {
		t.Fatalf("Norm = %v", v.Norm())
	}
	if got := v.Add(UnitZ).Sub(UnitX).Scale(2); got != (Vec3{4, 8, 2}) {
		t.Fatalf("Add/Sub/Scale = %v", got)
	}
	if UnitX.Dot(UnitY) != 0 {
		t.Fatalf("unit vectors are not orthogonal")
	}
	if got := v.String(); got != "(3, 4, 0)" {
		t.Fatalf("String = %q", got)
	}
}

func TestRotations(t *testing.T) {
	const eps = 1e-12
	r := RotZ(math.Pi / 2)
	// A frame turned +90 degrees about Z sees the fixed X axis along -Y.
	if got := r.MulVec(UnitX); !near(got, Vec3{0, -1, 0}, eps) {
		t.Fatalf("RotZ(90)·X = %v", got)
	}
	if got := r.Mul(r.Transpose()); !nearMatrix(got, Identity3, eps) {
		t.Fatalf("R·Rᵀ = %v, want identity", got)
	}
	x := RotX(0.3)
	if got := x.Column(0); got != UnitX {
		t.Fatalf("RotX column 0 = %v", got)
	}
	if got := x.Sub(x).Scale(3); got != (Matrix3{}) {
		t.Fatalf("Sub/Scale = %v", got)
	}
}

func near(a, b Vec3, eps float64) bool {
	return a.Sub(b).Norm() <= eps
}

func nearMatrix(a, b Matrix3, eps float64) bool {
	for i := range 3 {
		for j := range 3 {
			if math.Abs(a[i][j]-b[i][j]) > eps {
				return false
			}
		}
	}
	return true
}
