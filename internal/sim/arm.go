package sim

import (
	"fmt"

	"github.com/san-kum/vlasim/internal/controllers"
	"github.com/san-kum/vlasim/internal/geom"
)

type arm struct {
	spec ManipulatorSpec
	n    int

	q       []float64
	qd      []float64
	damping []float64
	inertia []float64
	ctrl    *controllers.JointPD

	initQ  []float64
	initQd []float64
}

func newArm(spec ManipulatorSpec) (*arm, error) {
	n := len(spec.Joints)
	if n == 0 {
		return nil, fmt.Errorf("manipulator %q has no joints", spec.Name)
	}
	for _, l := range spec.Links {
		if l.Joint >= n {
			return nil, fmt.Errorf("manipulator %q: link %q references joint %d of %d", spec.Name, l.Name, l.Joint, n)
		}
	}
	if spec.BaseName == "" {
		spec.BaseName = "base_link"
	}
	spec.Base.Rot = geom.Normalize(spec.Base.Rot)
	a := &arm{
		spec:    spec,
		n:       n,
		q:       make([]float64, n),
		qd:      make([]float64, n),
		damping: make([]float64, n),
		inertia: make([]float64, n),
		ctrl:    controllers.NewJointPD(n),
	}
	for i, j := range spec.Joints {
		a.inertia[i] = j.Inertia
		if a.inertia[i] <= 0 {
			a.inertia[i] = 1
		}
	}
	return a, nil
}

func (a *arm) Name() string { return a.spec.Name }

func (a *arm) DOFIndex(joint string) (int, error) {
	for i, j := range a.spec.Joints {
		if j.Name == joint {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q on %q", ErrUnknownJoint, joint, a.spec.Name)
}

func (a *arm) BaseLink() Link {
	return &armLink{arm: a, index: -1}
}

func (a *arm) Link(name string) (Link, error) {
	if name == a.spec.BaseName {
		return a.BaseLink(), nil
	}
	for i, l := range a.spec.Links {
		if l.Name == name {
			return &armLink{arm: a, index: i}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q on %q", ErrUnknownLink, name, a.spec.Name)
}

func (a *arm) checkDOFs(values []float64, dofs []int) error {
	if values != nil && len(values) != len(dofs) {
		return fmt.Errorf("%w: %d values for %d dofs", ErrDimensionMismatch, len(values), len(dofs))
	}
	for _, d := range dofs {
		if d < 0 || d >= a.n {
			return fmt.Errorf("dof index %d out of range [0, %d)", d, a.n)
		}
	}
	return nil
}

func (a *arm) SetGains(g Gains, dofs []int) error {
	for _, s := range [][]float64{g.Kp, g.Kv, g.Damping, g.ForceLower, g.ForceUpper} {
		if err := a.checkDOFs(s, dofs); err != nil {
			return err
		}
	}
	for i, d := range dofs {
		a.ctrl.SetGains(d, g.Kp[i], g.Kv[i], g.ForceLower[i], g.ForceUpper[i])
		a.damping[d] = g.Damping[i]
	}
	return nil
}

func (a *arm) SetDOFPositions(q []float64, dofs []int) error {
	if err := a.checkDOFs(q, dofs); err != nil {
		return err
	}
	for i, d := range dofs {
		a.q[d] = q[i]
		a.qd[d] = 0
	}
	return nil
}

func (a *arm) ControlDOFPositions(q []float64, dofs []int) error {
	if err := a.checkDOFs(q, dofs); err != nil {
		return err
	}
	for i, d := range dofs {
		a.ctrl.SetTarget(d, q[i])
	}
	return nil
}

func (a *arm) DOFPositions(dofs []int) ([]float64, error) {
	if err := a.checkDOFs(nil, dofs); err != nil {
		return nil, err
	}
	out := make([]float64, len(dofs))
	for i, d := range dofs {
		out[i] = a.q[d]
	}
	return out, nil
}

func (a *arm) state() State {
	x := make(State, 2*a.n)
	copy(x, a.q)
	copy(x[a.n:], a.qd)
	return x
}

func (a *arm) advance(integ Integrator, t, h float64) {
	u := Control(a.ctrl.Compute(a.q, a.qd))
	x := integ.Step(a, a.state(), u, t, h)
	copy(a.q, x[:a.n])
	copy(a.qd, x[a.n:])

	for i, j := range a.spec.Joints {
		if j.Upper <= j.Lower {
			continue
		}
		if a.q[i] < j.Lower {
			a.q[i], a.qd[i] = j.Lower, 0
		} else if a.q[i] > j.Upper {
			a.q[i], a.qd[i] = j.Upper, 0
		}
	}
}

// Derivative implements Dynamics for x = [q, qd], u = generalized force.
func (a *arm) Derivative(x State, u Control, t float64) State {
	dx := make(State, len(x))
	for i := 0; i < a.n; i++ {
		qd := x[a.n+i]
		dx[i] = qd
		dx[a.n+i] = (u[i] - a.damping[i]*qd) / a.inertia[i]
	}
	return dx
}

func (a *arm) StateDim() int   { return 2 * a.n }
func (a *arm) ControlDim() int { return a.n }

func (a *arm) snapshot() {
	a.initQ = append([]float64(nil), a.q...)
	a.initQd = append([]float64(nil), a.qd...)
}

func (a *arm) restore() {
	copy(a.q, a.initQ)
	copy(a.qd, a.initQd)
	a.ctrl.Reset()
}

// linkPose walks the chain up to and including link index.
func (a *arm) linkPose(index int) geom.Pose {
	pose := a.spec.Base
	for i := 0; i <= index && i < len(a.spec.Links); i++ {
		l := a.spec.Links[i]
		theta := l.Theta
		if l.Joint >= 0 {
			theta += a.q[l.Joint]
		}
		pose = pose.
			Compose(geom.Pose{Pos: geom.Vec3{l.A, 0, 0}, Rot: geom.RotX(l.Alpha)}).
			Compose(geom.Pose{Pos: geom.Vec3{0, 0, l.D}, Rot: geom.RotZ(theta)})
	}
	return pose
}

type armLink struct {
	arm   *arm
	index int
}

func (l *armLink) Name() string {
	if l.index < 0 {
		return l.arm.spec.BaseName
	}
	return l.arm.spec.Links[l.index].Name
}

// WorldPose is recomputed from the current joint state on every call.
func (l *armLink) WorldPose() geom.Pose {
	return l.arm.linkPose(l.index)
}
