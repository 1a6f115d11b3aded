package sim

import (
	"errors"
	"fmt"
)

// World is the in-process Session implementation.
type World struct {
	cfg   Config
	integ Integrator

	arms    []*arm
	bodies  []*body
	cameras []*camera

	built bool
	steps int
	t     float64
}

var _ Session = (*World)(nil)

func NewWorld(cfg Config, integ Integrator) (*World, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Substeps < 1 {
		return nil, fmt.Errorf("substeps must be at least 1, got %d", cfg.Substeps)
	}
	if integ == nil {
		return nil, errors.New("integrator is required")
	}
	return &World{cfg: cfg, integ: integ}, nil
}

func (w *World) Dt() float64    { return w.cfg.Dt }
func (w *World) Time() float64  { return w.t }
func (w *World) Built() bool    { return w.built }
func (w *World) StepCount() int { return w.steps }

func (w *World) AddManipulator(spec ManipulatorSpec) (Manipulator, error) {
	if w.built {
		return nil, ErrBuilt
	}
	a, err := newArm(spec)
	if err != nil {
		return nil, err
	}
	w.arms = append(w.arms, a)
	return a, nil
}

func (w *World) AddEntity(spec EntitySpec) (Entity, error) {
	if w.built {
		return nil, ErrBuilt
	}
	b := newBody(spec)
	w.bodies = append(w.bodies, b)
	return b, nil
}

func (w *World) AddCamera(spec CameraSpec) (Camera, error) {
	if w.built {
		return nil, ErrBuilt
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("camera %q: resolution must be positive, got %dx%d", spec.Name, spec.Width, spec.Height)
	}
	if spec.FOV <= 0 || spec.FOV >= 180 {
		return nil, fmt.Errorf("camera %q: fov must be in (0, 180), got %f", spec.Name, spec.FOV)
	}
	c := newCamera(w, spec)
	w.cameras = append(w.cameras, c)
	return c, nil
}

// Build freezes the topology and snapshots the state Reset returns to.
func (w *World) Build() error {
	if w.built {
		return ErrBuilt
	}
	for _, a := range w.arms {
		a.snapshot()
	}
	for _, b := range w.bodies {
		b.snapshot()
	}
	w.built = true
	return nil
}

func (w *World) Step() error {
	if !w.built {
		return ErrNotBuilt
	}

	h := w.cfg.Dt / float64(w.cfg.Substeps)
	t := w.t
	for i := 0; i < w.cfg.Substeps; i++ {
		for _, a := range w.arms {
			a.advance(w.integ, t, h)
		}
		for _, b := range w.bodies {
			b.advance(h, w.cfg.Gravity, w.supportHeight(b))
		}
		t += h
	}

	w.steps++
	w.t = float64(w.steps) * w.cfg.Dt

	for _, a := range w.arms {
		if !a.state().IsValid() {
			return &StepError{Step: w.steps, Time: w.t, Wrapped: ErrUnstable}
		}
	}
	return nil
}

// Reset restores every entity and manipulator to its state at Build and
// rewinds the clock. Camera attachments are kept.
func (w *World) Reset() error {
	if !w.built {
		return ErrNotBuilt
	}
	for _, a := range w.arms {
		a.restore()
	}
	for _, b := range w.bodies {
		b.restore()
	}
	w.steps = 0
	w.t = 0
	return nil
}

// supportHeight is the highest surface under b: the floor or the top of a
// fixed colliding box whose footprint contains b and that b reaches above.
func (w *World) supportHeight(b *body) float64 {
	h := w.cfg.Floor
	for _, o := range w.bodies {
		if o == b || !o.spec.Fixed || !o.spec.Collision || o.spec.Shape != ShapeBox {
			continue
		}
		half := o.spec.Size.Scale(0.5)
		if b.pos[0] < o.pos[0]-half[0] || b.pos[0] > o.pos[0]+half[0] ||
			b.pos[1] < o.pos[1]-half[1] || b.pos[1] > o.pos[1]+half[1] {
			continue
		}
		top := o.pos[2] + half[2]
		if top > h && b.pos[2]+b.radius() >= top {
			h = top
		}
	}
	return h
}
