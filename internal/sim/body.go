package sim

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/vlasim/internal/geom"
)

type body struct {
	spec EntitySpec
	pos  geom.Vec3
	rot  quat.Number
	vel  geom.Vec3

	initPos geom.Vec3
	initRot quat.Number
}

func newBody(spec EntitySpec) *body {
	if spec.Scale == 0 {
		spec.Scale = 1
	}
	rot := spec.Pose.Rot
	if rot == (quat.Number{}) {
		rot = geom.Identity
	}
	return &body{spec: spec, pos: spec.Pose.Pos, rot: geom.Normalize(rot)}
}

func (b *body) Name() string      { return b.spec.Name }
func (b *body) Pos() geom.Vec3    { return b.pos }
func (b *body) Quat() quat.Number { return b.rot }

func (b *body) SetPos(p geom.Vec3) {
	b.pos = p
	b.vel = geom.Vec3{}
}

func (b *body) SetQuat(q quat.Number) {
	b.rot = geom.Normalize(q)
	b.vel = geom.Vec3{}
}

func (b *body) radius() float64 {
	if b.spec.Shape == ShapeBox {
		return b.spec.Size[2] / 2
	}
	if b.spec.Radius > 0 {
		return b.spec.Radius * b.spec.Scale
	}
	return 0.05 * b.spec.Scale
}

// advance applies gravity until the body rests on its support.
func (b *body) advance(h, gravity, support float64) {
	if b.spec.Fixed {
		return
	}
	b.vel[2] += gravity * h
	b.pos = b.pos.Add(b.vel.Scale(h))
	if rest := support + b.radius(); b.pos[2] < rest {
		b.pos[2] = rest
		b.vel = geom.Vec3{}
	}
}

func (b *body) snapshot() {
	b.initPos = b.pos
	b.initRot = b.rot
}

func (b *body) restore() {
	b.pos = b.initPos
	b.rot = b.initRot
	b.vel = geom.Vec3{}
}
