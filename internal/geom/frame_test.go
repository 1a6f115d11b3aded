package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
)

const eps = 1e-12

func quatClose(a, b quat.Number, tol float64) bool {
	// q and -q are the same rotation
	same := math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
	flipped := math.Abs(a.Real+b.Real) < tol && math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol && math.Abs(a.Kmag+b.Kmag) < tol
	return same || flipped
}

func vecClose(a, b Vec3, tol float64) bool {
	return a.Sub(b).Norm() < tol
}

func TestYUpToZUp_Translation(t *testing.T) {
	tests := []struct {
		in, want Vec3
	}{
		{Vec3{1, 2, 3}, Vec3{1, -3, 2}},
		{Vec3{0, 1, 0}, Vec3{0, 0, 1}},
		{Vec3{0, 0, 1}, Vec3{0, -1, 0}},
		{Vec3{-2.5, 0, 0}, Vec3{-2.5, 0, 0}},
	}

	for _, tt := range tests {
		got := YUpToZUp(Pose{Pos: tt.in, Rot: Identity}).Pos
		if got != tt.want {
			t.Errorf("YUpToZUp(%v).Pos = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestYUpToZUp_UnitRotation(t *testing.T) {
	rots := []quat.Number{
		Identity,
		{Real: 0.7071, Imag: 0.7071},
		{Real: 1 / math.Sqrt2, Jmag: 1 / math.Sqrt2},
		Normalize(quat.Number{Real: 0.3, Imag: -0.2, Jmag: 0.9, Kmag: 0.1}),
		Normalize(quat.Number{Real: -0.393, Imag: -0.195, Jmag: 0.399, Kmag: 0.805}),
	}

	for _, q := range rots {
		got := YUpToZUp(Pose{Pos: Vec3{0.5, 1, -2}, Rot: q}).Rot
		if n := quat.Abs(got); math.Abs(n-1) > eps {
			t.Errorf("|rot| = %.15f for input %v, want 1", n, q)
		}
	}
}

func TestYUpToZUp_AppliedTwice(t *testing.T) {
	in := Pose{Pos: Vec3{0.6, -2.3, 1.0}, Rot: Normalize(quat.Number{Real: 0.9, Imag: 0.1, Jmag: -0.3, Kmag: 0.2})}
	twice := YUpToZUp(YUpToZUp(in))

	// two quarter turns about x are a half turn: (x, y, z) -> (x, -y, -z)
	wantPos := Vec3{0.6, 2.3, -1.0}
	if !vecClose(twice.Pos, wantPos, eps) {
		t.Errorf("pos = %v, want %v", twice.Pos, wantPos)
	}

	halfTurn := quat.Number{Imag: 1}
	wantRot := quat.Mul(halfTurn, in.Rot)
	if !quatClose(twice.Rot, wantRot, 1e-9) {
		t.Errorf("rot = %v, want %v", twice.Rot, wantRot)
	}
}

func TestYUpToZUp_Deterministic(t *testing.T) {
	in := [4]float64{0.7071, 0.7071, 0, 0}
	a := FromYUp([3]float64{0.1, 0.2, 0.3}, in)
	b := FromYUp([3]float64{0.1, 0.2, 0.3}, in)
	if a != b {
		t.Errorf("repeated conversion differs: %v vs %v", a, b)
	}
}

func TestYUpToZUp_UpAxis(t *testing.T) {
	// the authored up vector must become the simulator's up vector
	p := YUpToZUp(Pose{Rot: Identity})
	up := Rotate(p.Rot, Vec3{0, 1, 0})
	if !vecClose(up, Vec3{0, 0, 1}, 1e-12) {
		t.Errorf("rotated up = %v, want +z", up)
	}
}

func TestPoseCompose(t *testing.T) {
	parent := NewPose(Vec3{1, 0, 0}, RotZ(math.Pi/2))
	child := NewPose(Vec3{1, 0, 0}, Identity)

	world := parent.Compose(child)
	if !vecClose(world.Pos, Vec3{1, 1, 0}, 1e-12) {
		t.Errorf("composed pos = %v, want [1 1 0]", world.Pos)
	}

	back := world.Compose(world.Inverse())
	if !vecClose(back.Pos, Vec3{}, 1e-12) || !quatClose(back.Rot, Identity, 1e-12) {
		t.Errorf("p * p^-1 = %v, want identity", back)
	}
}

func TestComposeStaysNormalized(t *testing.T) {
	p := NewPose(Vec3{0.03, 0.07, 0.02}, quat.Number{Real: -0.000662797508, Imag: 0.000376455792, Jmag: 0.988124130, Kmag: 0.153655398})
	acc := IdentityPose()
	for i := 0; i < 10000; i++ {
		acc = acc.Compose(p)
	}
	if n := quat.Abs(acc.Rot); math.Abs(n-1) > 1e-12 {
		t.Errorf("|rot| after 10000 compositions = %.15f", n)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := Normalize(quat.Number{}); got != Identity {
		t.Errorf("Normalize(0) = %v, want identity", got)
	}
}
