package loop_test

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/integrators"
	"github.com/san-kum/vlasim/internal/loop"
	"github.com/san-kum/vlasim/internal/policy"
	"github.com/san-kum/vlasim/internal/robot"
	"github.com/san-kum/vlasim/internal/scene"
	"github.com/san-kum/vlasim/internal/sim"
)

// events records the order of calls across fakes.
type events []string

func (e *events) add(s string) { *e = append(*e, s) }

type fakeRig struct {
	log      *events
	executed []robot.ActionChunk
	homes    int
	failOn   int
}

func (r *fakeRig) CaptureObservation() (robot.Observation, error) {
	r.log.add("capture")
	return robot.Observation{Arm: make([]float64, 7), Gripper: make([]float64, 2)}, nil
}

func (r *fakeRig) ApplyActionChunk(chunk robot.ActionChunk, steps int) error {
	r.log.add("apply")
	r.executed = append(r.executed, chunk)
	if r.failOn > 0 && len(r.executed) == r.failOn {
		return sim.ErrUnstable
	}
	return nil
}

func (r *fakeRig) Home() error {
	r.log.add("home")
	r.homes++
	return nil
}

type fakeScene struct {
	log    *events
	resets int
	err    error
}

func (s *fakeScene) Reset() error {
	s.log.add("scene_reset")
	s.resets++
	return s.err
}

func (s *fakeScene) ResetObjects() { s.log.add("objects_reset") }

// fakeClient returns rows numbered from zero so truncation order is visible.
type fakeClient struct {
	rows    int
	prompts []string
	asked   []int
	err     error
	timeout int
	clock   *clock.Mock
	advance time.Duration
}

func (c *fakeClient) Infer(ctx context.Context, req policy.Request) (robot.ActionChunk, error) {
	c.prompts = append(c.prompts, req.Prompt)
	c.asked = append(c.asked, req.Actions)
	if c.clock != nil {
		c.clock.Add(c.advance)
	}
	if c.timeout > 0 {
		c.timeout--
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	chunk := make(robot.ActionChunk, c.rows)
	for i := range chunk {
		chunk[i].Gripper = float64(i)
	}
	return chunk, nil
}

func (c *fakeClient) Close() error { return nil }

var _ = Describe("Driver", func() {
	var (
		log    *events
		rig    *fakeRig
		scn    *fakeScene
		client *fakeClient
		cfg    loop.Config
	)

	BeforeEach(func() {
		log = &events{}
		rig = &fakeRig{log: log}
		scn = &fakeScene{log: log}
		client = &fakeClient{rows: 10}
		cfg = loop.DefaultConfig()
		cfg.RestartLoopMod = 3
	})

	newDriver := func(opts ...loop.Option) *loop.Driver {
		d, err := loop.New(rig, scn, scn, client, cfg, opts...)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	It("rejects an invalid config", func() {
		cfg.Actions = 0
		_, err := loop.New(rig, scn, scn, client, cfg)
		Expect(err).To(HaveOccurred())
	})

	It("stops at the iteration budget", func() {
		cfg.MaxIterations = 5
		d := newDriver()
		stats, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Iterations).To(Equal(5))
		Expect(d.State()).To(Equal(loop.Terminated))
	})

	It("executes exactly the first requested actions in order", func() {
		cfg.MaxIterations = 1
		_, err := newDriver().Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(client.asked).To(Equal([]int{8}))
		Expect(rig.executed).To(HaveLen(1))
		chunk := rig.executed[0]
		Expect(chunk).To(HaveLen(8))
		for i, a := range chunk {
			Expect(a.Gripper).To(Equal(float64(i)))
		}
	})

	It("executes a short chunk as is", func() {
		cfg.MaxIterations = 1
		client.rows = 3
		_, err := newDriver().Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(rig.executed[0]).To(HaveLen(3))
	})

	It("never resets when the decider declines", func() {
		cfg.MaxIterations = 10
		_, err := newDriver(loop.WithResetDecider(loop.Never{})).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(scn.resets).To(BeZero())
	})

	It("resets every RestartLoopMod iterations in the right order", func() {
		cfg.MaxIterations = 7
		d := newDriver(
			loop.WithResetDecider(loop.AutoReset{}),
			loop.WithPromptProvider(loop.PromptFunc(func(_ context.Context, cur string) (string, error) {
				log.add("prompt")
				return cur + "!", nil
			})),
			loop.WithPrompt("pick up the cup"),
		)
		stats, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Resets).To(Equal(2))
		Expect(*log).To(Equal(events{
			"capture", "apply", "capture", "apply", "capture", "apply",
			"prompt", "scene_reset", "objects_reset", "home",
			"capture", "apply", "capture", "apply", "capture", "apply",
			"prompt", "scene_reset", "objects_reset", "home",
			"capture", "apply",
		}))
		Expect(client.prompts[0]).To(Equal("pick up the cup"))
		Expect(client.prompts[6]).To(Equal("pick up the cup!!"))
	})

	It("asks the decider with the iteration number", func() {
		cfg.MaxIterations = 7
		var asked []int
		_, err := newDriver(loop.WithResetDecider(loop.DeciderFunc(func(_ context.Context, it int) (bool, error) {
			asked = append(asked, it)
			return false, nil
		}))).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(asked).To(Equal([]int{3, 6}))
	})

	It("honours an external reset request before the next iteration", func() {
		cfg.MaxIterations = 2
		d := newDriver()
		d.RequestReset()
		stats, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Resets).To(Equal(1))
		Expect((*log)[:4]).To(Equal(events{"scene_reset", "objects_reset", "home", "capture"}))
	})

	It("resets when the episode time budget runs out", func() {
		mock := clock.NewMock()
		client.clock, client.advance = mock, 10*time.Second
		cfg.MaxIterations = 4
		cfg.ResetAfter = 25 * time.Second
		stats, err := newDriver(loop.WithClock(mock)).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		// 10s per call: the budget expires after the third call
		Expect(stats.Resets).To(Equal(1))
		Expect(stats.Elapsed).To(Equal(40 * time.Second))
	})

	It("fails fast on a policy error without retrying", func() {
		client.err = errors.New("connection refused")
		_, err := newDriver().Run(context.Background())
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
		Expect(client.asked).To(HaveLen(1))
		Expect(rig.executed).To(BeEmpty())
	})

	It("propagates a simulation fault", func() {
		rig.failOn = 2
		_, err := newDriver().Run(context.Background())
		Expect(err).To(MatchError(sim.ErrUnstable))
	})

	It("treats a reset failure as fatal", func() {
		scn.err = errors.New("boom")
		d := newDriver()
		d.RequestReset()
		_, err := d.Run(context.Background())
		Expect(err).To(MatchError(ContainSubstring("reset scene")))
		Expect(rig.executed).To(BeEmpty())
	})

	It("stops between iterations when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		d, err := loop.New(rig, scn, scn, policy.Client(cancelAfter{client, cancel, 2}), cfg)
		Expect(err).NotTo(HaveOccurred())
		stats, err := d.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		// the chunk in flight when cancel fired still ran
		Expect(stats.Iterations).To(Equal(2))
		Expect(rig.executed).To(HaveLen(2))
	})

	Describe("policy timeouts", func() {
		BeforeEach(func() {
			cfg.PolicyTimeout = 5 * time.Millisecond
			cfg.MaxPolicyTimeouts = 2
		})

		It("resets and carries on after a timeout", func() {
			client.timeout = 1
			cfg.MaxIterations = 2
			stats, err := newDriver().Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.PolicyTimeouts).To(Equal(1))
			Expect(stats.Resets).To(Equal(1))
			Expect(stats.Iterations).To(Equal(2))
		})

		It("gives up after too many consecutive timeouts", func() {
			client.timeout = 10
			_, err := newDriver().Run(context.Background())
			Expect(err).To(MatchError(loop.ErrPolicyTimeouts))
			Expect(scn.resets).To(Equal(2))
		})
	})
})

// cancelAfter cancels the run context during the nth inference call.
type cancelAfter struct {
	*fakeClient
	cancel context.CancelFunc
	n      int
}

func (c cancelAfter) Infer(ctx context.Context, req policy.Request) (robot.ActionChunk, error) {
	if len(c.fakeClient.asked)+1 == c.n {
		c.cancel()
	}
	return c.fakeClient.Infer(context.Background(), req)
}

var _ = Describe("Driver with the stand-in world", func() {
	It("runs a bounded rollout and restores objects on reset", func() {
		preset, err := scene.Lookup(scene.Apt0PlusObjs)
		Expect(err).NotTo(HaveOccurred())

		integ, _ := integrators.ByName("rk4")
		world, err := sim.NewWorld(sim.Config{Dt: preset.Dt, Substeps: 10, Gravity: -9.81}, integ)
		Expect(err).NotTo(HaveOccurred())
		sc, err := scene.Populate(world, preset, scene.Options{})
		Expect(err).NotTo(HaveOccurred())

		rcfg := robot.DroidConfig()
		rcfg.CameraWidth, rcfg.CameraHeight = 32, 24
		rcfg.RestPose = preset.RestPose
		rig, err := robot.New(world, rcfg, preset.Base)
		Expect(err).NotTo(HaveOccurred())
		Expect(world.Build()).To(Succeed())
		Expect(rig.Setup()).To(Succeed())
		Expect(rig.Home()).To(Succeed())

		cfg := loop.DefaultConfig()
		cfg.RestartLoopMod = 2
		cfg.MaxIterations = 3
		cfg.StepsPerAction = preset.StepsPerAction
		d, err := loop.New(rig, world, sc, policy.Hold{}, cfg, loop.WithResetDecider(loop.AutoReset{}))
		Expect(err).NotTo(HaveOccurred())

		stats, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Iterations).To(Equal(3))
		Expect(stats.Resets).To(Equal(1))

		// one iteration since the reset: 150 homing steps plus 8 actions x 7
		Expect(world.StepCount()).To(Equal(150 + 56))
		q, _ := rig.JointPositions()
		for i := range preset.RestPose {
			Expect(q[i]).To(BeNumerically("~", preset.RestPose[i], 1e-6))
		}
		for _, e := range sc.Objects() {
			if e.Name() == "frl_apartment_bowl_07" {
				Expect(e.Pos()).NotTo(Equal(geom.Vec3{0.6, -2.3, 1.0}), "bowl falls after reset")
			}
		}
	})
})
