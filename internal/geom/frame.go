package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// xQuarterTurn is +90 degrees about the first axis.
var xQuarterTurn = quat.Number{Real: math.Sqrt2 / 2, Imag: math.Sqrt2 / 2}

// YUpToZUp converts a pose authored with the second axis up into the
// simulator's convention where the third axis is up. The translation is
// remapped (x, y, z) -> (x, -z, y) and the rotation is left-composed with a
// quarter turn about the first axis, then renormalized.
//
// The function has no state and no fallible branch.
func YUpToZUp(p Pose) Pose {
	return Pose{
		Pos: Vec3{p.Pos[0], -p.Pos[2], p.Pos[1]},
		Rot: Normalize(quat.Mul(xQuarterTurn, p.Rot)),
	}
}

// FromYUp is YUpToZUp over raw authoring arrays (rotation scalar-first).
// The input quaternion is not normalized before composition.
func FromYUp(t [3]float64, q [4]float64) Pose {
	return YUpToZUp(Pose{Pos: Vec3(t), Rot: Quat(q)})
}
