package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Identity is the zero-rotation quaternion.
var Identity = quat.Number{Real: 1}

type Pose struct {
	Pos Vec3
	Rot quat.Number
}

func NewPose(pos Vec3, rot quat.Number) Pose {
	return Pose{Pos: pos, Rot: Normalize(rot)}
}

// IdentityPose is located at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rot: Identity}
}

// FromTransQuat builds a pose from raw arrays, rotation scalar-first (w, x, y, z).
func FromTransQuat(t [3]float64, q [4]float64) Pose {
	return NewPose(Vec3(t), Quat(q))
}

// Quat converts a scalar-first array to a quaternion without normalizing it.
func Quat(q [4]float64) quat.Number {
	return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
}

// QuatArray is the inverse of Quat.
func QuatArray(q quat.Number) [4]float64 {
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// Normalize scales q to unit length. A zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the rotation q to v (q v q*).
func Rotate(q quat.Number, v Vec3) Vec3 {
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return Vec3{r.Imag, r.Jmag, r.Kmag}
}

// Compose returns p * child: child expressed in p's frame, mapped to p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Pos: p.Pos.Add(Rotate(p.Rot, child.Pos)),
		Rot: Normalize(quat.Mul(p.Rot, child.Rot)),
	}
}

func (p Pose) Inverse() Pose {
	inv := quat.Conj(Normalize(p.Rot))
	return Pose{
		Pos: Rotate(inv, p.Pos).Scale(-1),
		Rot: inv,
	}
}

// Apply maps a point from p's local frame to its parent frame.
func (p Pose) Apply(v Vec3) Vec3 {
	return p.Pos.Add(Rotate(p.Rot, v))
}

// RotX is a rotation of angle radians about the first axis.
func RotX(angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: s}
}

// RotY is a rotation of angle radians about the second axis.
func RotY(angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Jmag: s}
}

// RotZ is a rotation of angle radians about the third axis.
func RotZ(angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Kmag: s}
}
