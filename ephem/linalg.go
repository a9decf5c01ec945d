package ephem

import (
	"fmt"
	"math"
)

// Vec3 is a Cartesian 3-vector.
type Vec3 [3]float64

// Unit vectors.
var (
	UnitX = Vec3{1, 0, 0}
	UnitY = Vec3{0, 1, 0}
	UnitZ = Vec3{0, 0, 1}
)

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{v[0] * k, v[1] * k, v[2] * k} }

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) String() string { return fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2]) }

// Matrix3 is a row-major 3x3 matrix.
type Matrix3 [3][3]float64

// Identity3 is the identity rotation.
var Identity3 = Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// MulVec returns m·v.
func (m Matrix3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Mul returns m·o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for i := range 3 {
		for j := range 3 {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// Transpose returns mᵀ, the inverse of a rotation.
func (m Matrix3) Transpose() Matrix3 {
	var r Matrix3
	for i := range 3 {
		for j := range 3 {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Sub returns m-o element-wise.
func (m Matrix3) Sub(o Matrix3) Matrix3 {
	var r Matrix3
	for i := range 3 {
		for j := range 3 {
			r[i][j] = m[i][j] - o[i][j]
		}
	}
	return r
}

// Scale returns k·m.
func (m Matrix3) Scale(k float64) Matrix3 {
	var r Matrix3
	for i := range 3 {
		for j := range 3 {
			r[i][j] = m[i][j] * k
		}
	}
	return r
}

// Column returns column j, which for a rotation from A to B is the j-th
// axis of A expressed in B.
func (m Matrix3) Column(j int) Vec3 { return Vec3{m[0][j], m[1][j], m[2][j]} }

// RotX returns the frame rotation by angle radians about the X axis, the
// matrix that re-expresses a fixed vector in the rotated frame.
func RotX(angle float64) Matrix3 {
	s, c := math.Sincos(angle)
	return Matrix3{{1, 0, 0}, {0, c, s}, {0, -s, c}}
}

// RotZ returns the frame rotation by angle radians about the Z axis.
func RotZ(angle float64) Matrix3 {
	s, c := math.Sincos(angle)
	return Matrix3{{c, s, 0}, {-s, c, 0}, {0, 0, 1}}
}
