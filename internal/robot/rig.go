package robot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/record"
	"github.com/san-kum/vlasim/internal/sim"
)

type phase int

const (
	phasePlaced phase = iota + 1
	phaseAttached
	phaseReady
)

func (p phase) String() string {
	switch p {
	case phasePlaced:
		return "placed"
	case phaseAttached:
		return "attached"
	case phaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

type Option func(*Rig)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Rig) { r.log = log }
}

// WithRenderEveryStep renders both cameras after every simulation step
// instead of only at observation capture.
func WithRenderEveryStep(on bool) Option {
	return func(r *Rig) { r.renderAll = on }
}

func WithEncoder(enc record.Encoder) Option {
	return func(r *Rig) { r.encoder = enc }
}

// WithSpoolDir sets where raw frames are buffered while recording.
func WithSpoolDir(dir string) Option {
	return func(r *Rig) { r.spoolDir = dir }
}

func WithClock(c clock.Clock) Option {
	return func(r *Rig) { r.clock = c }
}

type Rig struct {
	session sim.Session
	cfg     Config
	log     *zap.SugaredLogger
	clock   clock.Clock

	arm      sim.Manipulator
	ee       sim.Link
	dofs     []int
	wrist    sim.Camera
	exterior sim.Camera

	phase     phase
	renderAll bool
	target    []float64
	observers []sim.Observer

	encoder  record.Encoder
	spoolDir string
	spools   []*record.Spool
}

// New places the manipulator at base and creates its cameras. The session
// must not be built yet.
func New(session sim.Session, cfg Config, base geom.Pose, opts ...Option) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if session.Built() {
		return nil, fmt.Errorf("%w: manipulator must be added before the scene is built", ErrSetupOrder)
	}

	r := &Rig{
		session: session,
		cfg:     cfg,
		log:     zap.NewNop().Sugar(),
		clock:   clock.New(),
		encoder: record.NewFFmpeg(),
	}
	for _, opt := range opts {
		opt(r)
	}

	spec := cfg.Model
	spec.Base = base
	arm, err := session.AddManipulator(spec)
	if err != nil {
		return nil, fmt.Errorf("add manipulator: %w", err)
	}
	r.arm = arm

	if r.ee, err = arm.Link(cfg.EndEffector); err != nil {
		return nil, fmt.Errorf("resolve end effector: %w", err)
	}
	r.dofs = make([]int, len(cfg.JointNames))
	for i, name := range cfg.JointNames {
		if r.dofs[i], err = arm.DOFIndex(name); err != nil {
			return nil, fmt.Errorf("resolve dof: %w", err)
		}
	}

	camSpec := sim.CameraSpec{Width: cfg.CameraWidth, Height: cfg.CameraHeight, FOV: cfg.CameraFOV}
	camSpec.Name = "wrist"
	if r.wrist, err = session.AddCamera(camSpec); err != nil {
		return nil, fmt.Errorf("add wrist camera: %w", err)
	}
	camSpec.Name = "scene"
	if r.exterior, err = session.AddCamera(camSpec); err != nil {
		return nil, fmt.Errorf("add scene camera: %w", err)
	}

	r.phase = phasePlaced
	r.log.Debugw("rig placed", "model", spec.Name, "dofs", r.dofs, "end_effector", cfg.EndEffector)
	return r, nil
}

func (r *Rig) require(p phase, op string) error {
	if r.phase < p {
		return fmt.Errorf("%w: %s needs %s, rig is %s", ErrSetupOrder, op, p, r.phase)
	}
	return nil
}

// Setup attaches the cameras and applies the joint gains. It must run after
// the session is built.
func (r *Rig) Setup() error {
	if r.phase != phasePlaced {
		return fmt.Errorf("%w: setup called twice or before New", ErrSetupOrder)
	}
	if !r.session.Built() {
		return fmt.Errorf("%w: %w", ErrSetupOrder, sim.ErrNotBuilt)
	}

	if err := r.wrist.Attach(r.ee, r.cfg.WristOffset); err != nil {
		return fmt.Errorf("attach wrist camera: %w", err)
	}
	if err := r.exterior.Attach(r.arm.BaseLink(), r.cfg.ExteriorOffset); err != nil {
		return fmt.Errorf("attach scene camera: %w", err)
	}
	if err := multierr.Combine(r.wrist.MoveToAttach(), r.exterior.MoveToAttach()); err != nil {
		return err
	}

	if err := r.arm.SetGains(r.cfg.Gains, r.dofs); err != nil {
		return fmt.Errorf("set gains: %w", err)
	}

	r.phase = phaseAttached
	return nil
}

// Home teleports to the rest pose, commands the same pose so the controller
// holds it, then steps until the rig settles. Settling frames are only
// rendered while a recording is open.
func (r *Rig) Home() error {
	if err := r.require(phaseAttached, "home"); err != nil {
		return err
	}
	rest := r.cfg.RestPose
	if err := r.arm.SetDOFPositions(rest, r.dofs); err != nil {
		return fmt.Errorf("write rest pose: %w", err)
	}
	if err := r.arm.ControlDOFPositions(rest, r.dofs); err != nil {
		return fmt.Errorf("command rest pose: %w", err)
	}
	r.target = append(r.target[:0], rest...)

	for i := 0; i < r.cfg.StabilitySteps; i++ {
		if err := r.session.Step(); err != nil {
			return fmt.Errorf("stabilize: %w", err)
		}
		if r.spools == nil {
			continue
		}
		if err := r.renderStep(); err != nil {
			return fmt.Errorf("stabilize: %w", err)
		}
	}
	r.phase = phaseReady
	r.log.Debugw("rig homed", "steps", r.cfg.StabilitySteps, "t", r.session.Time())
	return nil
}

func (r *Rig) Ready() bool { return r.phase == phaseReady }

// AddObserver registers o to receive the controlled joint positions and the
// active targets after every step taken by ApplyActionChunk.
func (r *Rig) AddObserver(o sim.Observer) {
	r.observers = append(r.observers, o)
}

func (r *Rig) JointPositions() ([]float64, error) {
	return r.arm.DOFPositions(r.dofs)
}

// Target returns the last commanded 9-vector.
func (r *Rig) Target() []float64 {
	return append([]float64(nil), r.target...)
}

// CaptureObservation reads joints and renders both cameras. It never steps
// the simulation.
func (r *Rig) CaptureObservation() (Observation, error) {
	if err := r.require(phaseReady, "capture observation"); err != nil {
		return Observation{}, err
	}
	if err := r.wrist.MoveToAttach(); err != nil {
		return Observation{}, fmt.Errorf("wrist camera: %w", err)
	}
	q, err := r.arm.DOFPositions(r.dofs)
	if err != nil {
		return Observation{}, err
	}

	wrist, werr := r.wrist.Render()
	scene, serr := r.exterior.Render()
	if err := multierr.Combine(werr, serr); err != nil {
		return Observation{}, fmt.Errorf("render: %w", err)
	}

	return Observation{
		Arm:      append([]float64(nil), q[:ArmDOFs]...),
		Gripper:  append([]float64(nil), q[ArmDOFs:]...),
		Wrist:    wrist.Color,
		Exterior: scene.Color,
		Time:     r.session.Time(),
	}, nil
}

// ApplyActionChunk executes each action in order, holding each target for
// stepsPerAction steps. A failure leaves the earlier actions applied.
func (r *Rig) ApplyActionChunk(chunk ActionChunk, stepsPerAction int) error {
	if err := r.require(phaseReady, "apply action chunk"); err != nil {
		return err
	}
	if len(chunk) == 0 {
		return ErrEmptyChunk
	}
	if stepsPerAction < 1 {
		return fmt.Errorf("steps per action must be positive, got %d", stepsPerAction)
	}

	for i, a := range chunk {
		cmd := r.cfg.CommandVector(a)
		if err := r.arm.ControlDOFPositions(cmd, r.dofs); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		r.target = cmd
		for s := 0; s < stepsPerAction; s++ {
			if err := r.step(); err != nil {
				return fmt.Errorf("action %d step %d: %w", i, s, err)
			}
		}
	}
	return nil
}

func (r *Rig) step() error {
	if err := r.session.Step(); err != nil {
		return err
	}

	if len(r.observers) > 0 {
		q, err := r.arm.DOFPositions(r.dofs)
		if err != nil {
			return err
		}
		t := r.session.Time()
		for _, o := range r.observers {
			o.OnStep(q, r.target, t)
		}
	}

	if !r.renderAll && r.spools == nil {
		return nil
	}
	return r.renderStep()
}

func (r *Rig) renderStep() error {
	var err error
	for i, cam := range []sim.Camera{r.wrist, r.exterior} {
		if e := cam.MoveToAttach(); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		f, e := cam.Render()
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("render %s: %w", cam.Name(), e))
			continue
		}
		if r.spools != nil {
			err = multierr.Append(err, r.spools[i].Write(f.Color))
		}
	}
	return err
}

func (r *Rig) Recording() bool { return r.spools != nil }

// StartRecording begins spooling a frame from each camera on every step.
func (r *Rig) StartRecording() error {
	if r.spools != nil {
		return fmt.Errorf("%w: already recording", ErrRecording)
	}
	dir := r.spoolDir
	if dir == "" {
		dir = os.TempDir()
	}
	wrist, err := record.NewSpool(dir, "wrist")
	if err != nil {
		return err
	}
	scene, err := record.NewSpool(dir, "scene")
	if err != nil {
		return multierr.Append(err, wrist.Discard())
	}
	r.spools = []*record.Spool{wrist, scene}
	r.log.Infow("recording started", "spool_dir", dir)
	return nil
}

// StopRecording encodes one video per camera into dir and returns their
// paths. Both cameras are attempted even if one fails.
func (r *Rig) StopRecording(dir string) ([]string, error) {
	if r.spools == nil {
		return nil, fmt.Errorf("%w: not recording", ErrRecording)
	}
	spools := r.spools
	r.spools = nil

	if err := os.MkdirAll(dir, 0o755); err != nil {
		for _, s := range spools {
			err = multierr.Append(err, s.Discard())
		}
		return nil, err
	}

	ts := r.clock.Now().Format("01-02-06_15-04")
	fps := int(1/r.session.Dt() + 0.5)

	var (
		paths []string
		err   error
	)
	for _, s := range spools {
		out := filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", s.Name, ts))
		if e := s.Finish(r.encoder, out, fps); e != nil {
			err = multierr.Append(err, fmt.Errorf("encode %s: %w", s.Name, e))
			continue
		}
		paths = append(paths, out)
		r.log.Infow("video written", "camera", s.Name, "path", out, "frames", s.Frames())
	}
	return paths, err
}
