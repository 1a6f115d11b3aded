package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/vlasim/internal/config"
	"github.com/san-kum/vlasim/internal/integrators"
	"github.com/san-kum/vlasim/internal/loop"
	"github.com/san-kum/vlasim/internal/metrics"
	"github.com/san-kum/vlasim/internal/policy"
	"github.com/san-kum/vlasim/internal/record"
	"github.com/san-kum/vlasim/internal/robot"
	"github.com/san-kum/vlasim/internal/scene"
	"github.com/san-kum/vlasim/internal/sim"
	"github.com/san-kum/vlasim/internal/storage"
	"github.com/san-kum/vlasim/internal/tui"
)

type mode int

const (
	modeInteractive mode = iota
	modeRecord
)

// recordLoops is how many reset periods a recording spans.
const recordLoops = 5

type rolloutParams struct {
	scene  string
	prompt string
	name   string
	mode   mode
	// live receives the joint status panel when set.
	live io.Writer

	decider loop.ResetDecider
	prompts loop.PromptProvider
	encoder record.Encoder
}

type rollout struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	mode mode

	preset  scene.Preset
	world   *sim.World
	scene   *scene.Scene
	rig     *robot.Rig
	client  policy.Client
	policy  string
	driver  *loop.Driver
	run     *storage.Run
	metrics metrics.Set
	status  *tui.Status
}

// newRollout builds the scene, sets up and homes the rig, connects the
// policy and opens a run record. Setup errors are configuration errors.
func newRollout(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, p rolloutParams) (r *rollout, err error) {
	r = &rollout{cfg: cfg, log: log, mode: p.mode}

	if r.preset, err = scene.Lookup(scene.Name(p.scene)); err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(cfg.Sim.Integrator)
	if err != nil {
		return nil, err
	}
	if r.world, err = sim.NewWorld(cfg.SimConfig(r.preset.Dt), integ); err != nil {
		return nil, err
	}
	r.scene, err = scene.Populate(r.world, r.preset, scene.Options{
		DataDir:  cfg.Data.ReplicaCAD,
		AssetDir: cfg.Data.Assets,
		Log:      log.Named("scene"),
	})
	if err != nil {
		return nil, err
	}

	rcfg := robot.DroidConfig()
	rcfg.RestPose = r.preset.RestPose
	rcfg.CameraWidth = cfg.Camera.Width
	rcfg.CameraHeight = cfg.Camera.Height
	rcfg.CameraFOV = cfg.Camera.FOV

	rigOpts := []robot.Option{
		robot.WithLogger(log.Named("robot")),
		robot.WithRenderEveryStep(r.preset.RenderAllSteps || p.mode == modeRecord),
	}
	if p.encoder != nil {
		rigOpts = append(rigOpts, robot.WithEncoder(p.encoder))
	}
	if r.rig, err = robot.New(r.world, rcfg, r.preset.Base, rigOpts...); err != nil {
		return nil, err
	}
	if err := r.world.Build(); err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}
	if err := r.rig.Setup(); err != nil {
		return nil, err
	}
	if err := r.rig.Home(); err != nil {
		return nil, err
	}

	if cfg.Policy.Offline {
		r.client = policy.Hold{GripperClosed: rcfg.GripperClosed}
		r.policy = "hold"
	} else {
		url := cfg.PolicyURL()
		log.Infow("connecting to policy server", "url", url)
		r.client, err = policy.Dial(ctx, url,
			policy.WithLogger(log.Named("policy")),
			policy.WithRetryInterval(cfg.Policy.RetryInterval),
			policy.WithImageSize(cfg.Policy.ImageSize),
			policy.WithGripperClosed(rcfg.GripperClosed),
		)
		if err != nil {
			return nil, err
		}
		r.policy = url
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, r.client.Close())
		}
	}()

	store := storage.New(cfg.Data.Runs)
	if err := store.Init(); err != nil {
		return nil, err
	}
	name := p.name
	if name == "" {
		name = p.scene
	}
	if r.run, err = store.Create(name); err != nil {
		return nil, err
	}

	r.metrics = metrics.Default(robot.ArmDOFs)
	r.rig.AddObserver(r.metrics)
	r.rig.AddObserver(r.run)
	if p.live != nil {
		labels := make([]string, len(rcfg.JointNames))
		limits := make([][2]float64, len(rcfg.JointNames))
		for i, j := range rcfg.Model.Joints {
			if i < len(labels) {
				labels[i] = j.Name
				limits[i] = [2]float64{j.Lower, j.Upper}
			}
		}
		r.status = tui.NewStatus(p.live, labels, limits, 10)
		r.status.Start()
		r.rig.AddObserver(r.status)
	}

	lcfg := loop.DefaultConfig()
	lcfg.Actions = cfg.Policy.Actions
	lcfg.StepsPerAction = r.preset.StepsPerAction
	lcfg.RestartLoopMod = cfg.Loop.RestartLoopMod
	lcfg.MaxIterations = cfg.Loop.MaxIterations
	lcfg.ResetAfter = cfg.Loop.ResetAfter
	lcfg.PolicyTimeout = cfg.Policy.Timeout
	lcfg.MaxPolicyTimeouts = cfg.Loop.MaxPolicyTimeouts

	decider, prompts := p.decider, p.prompts
	switch p.mode {
	case modeRecord:
		if lcfg.MaxIterations == 0 {
			lcfg.MaxIterations = lcfg.RestartLoopMod*recordLoops + 1
		}
		if decider == nil {
			decider = loop.AutoReset{}
		}
		if prompts == nil {
			prompts = loop.StaticPrompt("")
		}
	default:
		if decider == nil || prompts == nil {
			prompter := tui.NewPrompter(os.Stdin, os.Stdout)
			if decider == nil {
				decider = prompter
			}
			if prompts == nil {
				prompts = prompter
			}
		}
	}

	r.driver, err = loop.New(r.rig, r.world, r.scene, r.client, lcfg,
		loop.WithLogger(log.Named("loop")),
		loop.WithResetDecider(decider),
		loop.WithPromptProvider(prompts),
		loop.WithPrompt(p.prompt),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// execute runs the driver to completion and saves the run. Videos and run
// metadata are written even when the loop ends with an error.
func (r *rollout) execute(ctx context.Context) (storage.RunMetadata, error) {
	if r.mode == modeRecord {
		if err := r.rig.StartRecording(); err != nil {
			return storage.RunMetadata{}, err
		}
	}

	stats, err := r.driver.Run(ctx)

	var videos []string
	if r.rig.Recording() {
		var recErr error
		videos, recErr = r.rig.StopRecording(r.cfg.Data.Videos)
		err = multierr.Append(err, recErr)
	}

	values := r.metrics.Values()
	values["policy_timeouts"] = float64(stats.PolicyTimeouts)

	meta := storage.RunMetadata{
		Scene:          string(r.preset.Name),
		Prompt:         r.driver.Prompt(),
		Policy:         r.policy,
		Dt:             r.preset.Dt,
		StepsPerAction: r.preset.StepsPerAction,
		Actions:        r.cfg.Policy.Actions,
		Integrator:     r.cfg.Sim.Integrator,
		Iterations:     stats.Iterations,
		Resets:         stats.Resets,
		Elapsed:        stats.Elapsed.Seconds(),
		Metrics:        values,
		Videos:         videos,
	}
	if finishErr := r.run.Finish(meta); finishErr != nil {
		err = multierr.Append(err, fmt.Errorf("save run: %w", finishErr))
	}
	meta.ID = r.run.ID
	meta.Timestamp = r.run.Started
	meta.Steps = r.run.Rows()
	return meta, err
}

func (r *rollout) Close() error {
	if r.status != nil {
		r.status.Stop()
	}
	return r.client.Close()
}

func runRollout(ctx context.Context, m mode) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	p := rolloutParams{
		scene:  simRun,
		prompt: prompt,
		name:   runName,
		mode:   m,
	}
	if live {
		p.live = os.Stderr
	}

	r, err := newRollout(ctx, cfg, log, p)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	meta, err := r.execute(ctx)
	if errors.Is(err, context.Canceled) {
		log.Infow("rollout interrupted", "iterations", meta.Iterations)
	}
	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("iterations: %d  resets: %d  steps: %d\n", meta.Iterations, meta.Resets, meta.Steps)
	for _, v := range meta.Videos {
		fmt.Printf("video: %s\n", v)
	}
	return err
}
