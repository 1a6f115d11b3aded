package loop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/san-kum/vlasim/internal/policy"
	"github.com/san-kum/vlasim/internal/robot"
)

var ErrPolicyTimeouts = errors.New("loop: too many consecutive policy timeouts")

// Rig is the part of robot.Rig the driver uses.
type Rig interface {
	CaptureObservation() (robot.Observation, error)
	ApplyActionChunk(chunk robot.ActionChunk, stepsPerAction int) error
	Home() error
}

type Resetter interface {
	Reset() error
}

type ObjectResetter interface {
	ResetObjects()
}

type Config struct {
	Actions        int
	StepsPerAction int
	// RestartLoopMod is the period, in iterations, of reset checks.
	RestartLoopMod int
	// MaxIterations of 0 runs until cancelled.
	MaxIterations int
	// ResetAfter bounds the wall time of one episode; 0 disables it.
	ResetAfter time.Duration
	// PolicyTimeout bounds each inference call; 0 waits forever.
	PolicyTimeout     time.Duration
	MaxPolicyTimeouts int
}

func DefaultConfig() Config {
	return Config{
		Actions:           policy.DefaultActions,
		StepsPerAction:    7,
		RestartLoopMod:    40,
		MaxPolicyTimeouts: 3,
	}
}

func (c Config) Validate() error {
	if c.Actions < 1 {
		return fmt.Errorf("actions must be positive, got %d", c.Actions)
	}
	if c.StepsPerAction < 1 {
		return fmt.Errorf("steps per action must be positive, got %d", c.StepsPerAction)
	}
	if c.RestartLoopMod < 1 {
		return fmt.Errorf("restart loop mod must be positive, got %d", c.RestartLoopMod)
	}
	if c.MaxIterations < 0 || c.ResetAfter < 0 || c.PolicyTimeout < 0 || c.MaxPolicyTimeouts < 0 {
		return fmt.Errorf("loop limits must not be negative")
	}
	return nil
}

type Option func(*Driver)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(d *Driver) { d.log = log }
}

func WithClock(c clock.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

func WithResetDecider(r ResetDecider) Option {
	return func(d *Driver) { d.decider = r }
}

func WithPromptProvider(p PromptProvider) Option {
	return func(d *Driver) { d.prompts = p }
}

func WithPrompt(prompt string) Option {
	return func(d *Driver) { d.prompt = prompt }
}

// Stats summarise a run.
type Stats struct {
	Iterations     int
	Resets         int
	PolicyTimeouts int
	Elapsed        time.Duration
}

// Driver owns iteration counters and the prompt. It owns no simulation state.
type Driver struct {
	rig     Rig
	scene   Resetter
	objects ObjectResetter
	client  policy.Client
	cfg     Config

	log     *zap.SugaredLogger
	clock   clock.Clock
	decider ResetDecider
	prompts PromptProvider

	state     atomic.Int32
	requested atomic.Bool
	prompt    string
	iteration int
	resets    int
	timeouts  int
	streak    int
	pending   string
	episode   time.Time
}

func New(rig Rig, scene Resetter, objects ObjectResetter, client policy.Client, cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		rig:     rig,
		scene:   scene,
		objects: objects,
		client:  client,
		cfg:     cfg,
		log:     zap.NewNop().Sugar(),
		clock:   clock.New(),
		decider: Never{},
		prompts: StaticPrompt(""),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Driver) State() State { return State(d.state.Load()) }

func (d *Driver) setState(s State) { d.state.Store(int32(s)) }

func (d *Driver) Prompt() string { return d.prompt }

// RequestReset schedules a reset before the next iteration. It is safe to
// call from any goroutine.
func (d *Driver) RequestReset() { d.requested.Store(true) }

func (d *Driver) Stats() Stats {
	return Stats{
		Iterations:     d.iteration,
		Resets:         d.resets,
		PolicyTimeouts: d.timeouts,
	}
}

// Run drives the loop until the iteration budget is spent or ctx is
// cancelled. Cancellation is checked between iterations only. The rig must
// already be set up and homed.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	start := d.clock.Now()
	d.episode = start
	d.setState(Running)
	defer d.setState(Terminated)

	d.log.Infow("control loop started", "prompt", d.prompt, "actions", d.cfg.Actions,
		"steps_per_action", d.cfg.StepsPerAction, "max_iterations", d.cfg.MaxIterations)

	for {
		if err := ctx.Err(); err != nil {
			return d.finish(start), err
		}
		if d.cfg.MaxIterations > 0 && d.iteration >= d.cfg.MaxIterations {
			d.log.Infow("iteration budget reached", "iterations", d.iteration)
			return d.finish(start), nil
		}

		reason, err := d.resetReason(ctx)
		if err != nil {
			return d.finish(start), err
		}
		if reason != "" {
			if err := d.reset(ctx, reason); err != nil {
				return d.finish(start), err
			}
		}

		if err := d.iterate(ctx); err != nil {
			return d.finish(start), err
		}
	}
}

func (d *Driver) finish(start time.Time) Stats {
	s := d.Stats()
	s.Elapsed = d.clock.Since(start)
	return s
}

func (d *Driver) resetReason(ctx context.Context) (string, error) {
	if d.pending != "" {
		return d.pending, nil
	}
	if d.requested.Load() {
		return "requested", nil
	}
	if d.cfg.ResetAfter > 0 && d.clock.Since(d.episode) >= d.cfg.ResetAfter {
		return "episode time budget", nil
	}
	if d.iteration > 0 && d.iteration%d.cfg.RestartLoopMod == 0 {
		ok, err := d.decider.ShouldReset(ctx, d.iteration)
		if err != nil {
			return "", fmt.Errorf("reset decision: %w", err)
		}
		if ok {
			return "periodic", nil
		}
	}
	return "", nil
}

// reset runs the ResetPending state. Any failure here is fatal.
func (d *Driver) reset(ctx context.Context, reason string) error {
	d.setState(ResetPending)
	d.log.Infow("resetting scene", "reason", reason, "iteration", d.iteration)

	prompt, err := d.prompts.NextPrompt(ctx, d.prompt)
	if err != nil {
		return fmt.Errorf("next prompt: %w", err)
	}
	if prompt != d.prompt {
		d.log.Infow("task prompt updated", "prompt", prompt)
	}
	d.prompt = prompt

	if err := d.scene.Reset(); err != nil {
		return fmt.Errorf("reset scene: %w", err)
	}
	if d.objects != nil {
		d.objects.ResetObjects()
	}
	if err := d.rig.Home(); err != nil {
		return fmt.Errorf("re-home rig: %w", err)
	}

	d.pending = ""
	d.requested.Store(false)
	d.episode = d.clock.Now()
	d.resets++
	d.setState(Running)
	return nil
}

func (d *Driver) iterate(ctx context.Context) error {
	obs, err := d.rig.CaptureObservation()
	if err != nil {
		return fmt.Errorf("capture observation: %w", err)
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.cfg.PolicyTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.PolicyTimeout)
	}
	chunk, err := d.client.Infer(callCtx, policy.Request{Obs: obs, Prompt: d.prompt, Actions: d.cfg.Actions})
	cancel()

	if err != nil {
		if d.cfg.PolicyTimeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return d.policyTimeout(err)
		}
		d.log.Errorw("policy inference failed", "iteration", d.iteration, "error", err)
		return fmt.Errorf("policy inference: %w", err)
	}
	d.streak = 0

	chunk = chunk.Truncate(d.cfg.Actions)
	if len(chunk) < d.cfg.Actions {
		d.log.Warnw("policy returned a short chunk", "got", len(chunk), "want", d.cfg.Actions)
	}
	if err := d.rig.ApplyActionChunk(chunk, d.cfg.StepsPerAction); err != nil {
		return fmt.Errorf("apply actions at iteration %d: %w", d.iteration, err)
	}
	d.iteration++
	return nil
}

func (d *Driver) policyTimeout(err error) error {
	d.timeouts++
	d.streak++
	if d.streak > d.cfg.MaxPolicyTimeouts {
		return fmt.Errorf("%w (%d): %w", ErrPolicyTimeouts, d.streak, err)
	}
	d.log.Warnw("policy call timed out, resetting", "timeout", d.cfg.PolicyTimeout, "consecutive", d.streak)
	d.pending = "policy timeout"
	return nil
}
