// Package geom provides the rotation and transform primitives shared by every
// frame in the scene: unit quaternions, 3D vectors and rigid poses.
//
// Quaternions are gonum quat.Number values with Real as the scalar (w) part and
// Imag, Jmag, Kmag as x, y, z. Composition is the Hamilton product and is not
// commutative: Compose(outer, inner) applies inner first, then outer.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnitTolerance is the allowed deviation of |q| from 1 for IsUnit.
const UnitTolerance = 1e-9

var (
	UnitX = r3.Vec{X: 1}
	UnitY = r3.Vec{Y: 1}
	UnitZ = r3.Vec{Z: 1}
)

// Identity returns the quaternion for no rotation.
func Identity() quat.Number {
	return quat.Number{Real: 1}
}

// FromXYZW builds a quaternion from message-order components.
func FromXYZW(x, y, z, w float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// AxisAngle returns the unit quaternion rotating by angle radians about axis.
// The axis does not need to be normalized; a zero axis yields Identity.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	n := r3.Norm(axis)
	if n == 0 {
		return Identity()
	}
	s := math.Sin(angle/2) / n
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// Compose returns outer*inner. The result rotates by inner first and outer
// second when applied to a vector.
func Compose(outer, inner quat.Number) quat.Number {
	return quat.Mul(outer, inner)
}

// Normalize scales q to unit norm. The zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// IsUnit reports whether q has unit norm within UnitTolerance.
func IsUnit(q quat.Number) bool {
	return scalar.EqualWithinAbs(quat.Abs(q), 1, UnitTolerance)
}

// Rotate applies the rotation q to v as q v q*.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// QuatEqualWithin compares a and b component-wise within tol. It does not
// treat q and -q as equal.
func QuatEqualWithin(a, b quat.Number, tol float64) bool {
	return scalar.EqualWithinAbs(a.Real, b.Real, tol) &&
		scalar.EqualWithinAbs(a.Imag, b.Imag, tol) &&
		scalar.EqualWithinAbs(a.Jmag, b.Jmag, tol) &&
		scalar.EqualWithinAbs(a.Kmag, b.Kmag, tol)
}

// VecEqualWithin compares a and b component-wise within tol.
func VecEqualWithin(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

// Pose is a position and orientation of one frame relative to another.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// IdentityPose returns the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: Identity()}
}

// Compose returns the pose of child expressed in p's parent frame, where
// child is given relative to p.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Position:    r3.Add(p.Position, Rotate(p.Orientation, child.Position)),
		Orientation: Compose(p.Orientation, child.Orientation),
	}
}

func (p Pose) String() string {
	q := p.Orientation
	return fmt.Sprintf("pos=(%.4f, %.4f, %.4f) quat=(x=%.4f y=%.4f z=%.4f w=%.4f)",
		p.Position.X, p.Position.Y, p.Position.Z, q.Imag, q.Jmag, q.Kmag, q.Real)
}
