package robot_test

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/integrators"
	"github.com/san-kum/vlasim/internal/record"
	"github.com/san-kum/vlasim/internal/robot"
	"github.com/san-kum/vlasim/internal/sim"
)

type fakeEncoder struct {
	clips map[string]record.Clip
}

func (f *fakeEncoder) Encode(clip record.Clip, out string) error {
	if f.clips == nil {
		f.clips = map[string]record.Clip{}
	}
	f.clips[filepath.Base(out)] = clip
	return os.WriteFile(out, []byte("mp4"), 0o644)
}

type sampleCounter struct {
	n     int
	lastX []float64
	lastU []float64
	lastT float64
}

func (s *sampleCounter) OnStep(x sim.State, u sim.Control, t float64) {
	s.n++
	s.lastX, s.lastU, s.lastT = x, u, t
}

var scanRest = []float64{0, -0.4, 0, -1.8, 0, 1.4, 0, 0, 0}

func smallConfig() robot.Config {
	cfg := robot.DroidConfig()
	cfg.CameraWidth, cfg.CameraHeight = 64, 48
	cfg.RestPose = append([]float64(nil), scanRest...)
	return cfg
}

func newWorld() *sim.World {
	integ, err := integrators.ByName("rk4")
	Expect(err).NotTo(HaveOccurred())
	w, err := sim.NewWorld(sim.DefaultConfig(), integ)
	Expect(err).NotTo(HaveOccurred())
	return w
}

var _ = Describe("Config", func() {
	cfg := robot.DroidConfig()

	It("validates the DROID defaults", func() {
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.JointNames).To(HaveLen(robot.DOFs))
		Expect(cfg.StabilitySteps).To(Equal(150))
		Expect(cfg.Gains.Kp[0]).To(Equal(4000.0))
		Expect(cfg.Gains.ForceUpper[4]).To(Equal(11.5))
	})

	It("returns an independent rest pose", func() {
		p := robot.DroidRestPose()
		p[0] = 42
		Expect(robot.DroidRestPose()[0]).NotTo(Equal(42.0))
	})

	DescribeTable("maps gripper commands to a binary target",
		func(cmd, want float64) {
			Expect(cfg.GripperTarget(cmd)).To(Equal(want))
		},
		Entry("fully open", 0.0, 0.0),
		Entry("at threshold", 0.2, 0.0),
		Entry("just above threshold", 0.2000001, math.Pi/4),
		Entry("closed", 0.9, math.Pi/4),
		Entry("negative", -1.0, 0.0),
		Entry("NaN stays open", math.NaN(), 0.0),
	)

	It("builds a 9-element command with the gripper broadcast", func() {
		a, err := robot.ActionFromVector([]float64{0, -0.4, 0, -1.8, 0, 1.4, 0, 0.9})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.CommandVector(a)).To(Equal([]float64{0, -0.4, 0, -1.8, 0, 1.4, 0, math.Pi / 4, math.Pi / 4}))
	})

	It("rejects malformed action vectors", func() {
		_, err := robot.ActionFromVector([]float64{1, 2, 3})
		Expect(err).To(MatchError(robot.ErrBadAction))
	})

	It("truncates chunks preserving order", func() {
		chunk := robot.ActionChunk{{Gripper: 1}, {Gripper: 2}, {Gripper: 3}}
		Expect(chunk.Truncate(2)).To(Equal(robot.ActionChunk{{Gripper: 1}, {Gripper: 2}}))
		Expect(chunk.Truncate(10)).To(HaveLen(3))
	})

	It("rejects a short joint list", func() {
		bad := robot.DroidConfig()
		bad.JointNames = bad.JointNames[:7]
		Expect(bad.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("Rig", func() {
	var (
		world *sim.World
		rig   *robot.Rig
		enc   *fakeEncoder
		mock  *clock.Mock
		base  = geom.FromTransQuat([3]float64{2.75, -5.1, 0.4}, [4]float64{0, 0, 0, 1})
	)

	BeforeEach(func() {
		world = newWorld()
		enc = &fakeEncoder{}
		mock = clock.NewMock()
		var err error
		rig, err = robot.New(world, smallConfig(), base,
			robot.WithEncoder(enc),
			robot.WithClock(mock),
			robot.WithSpoolDir(GinkgoT().TempDir()),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("setup order", func() {
		It("refuses to set up before the scene is built", func() {
			Expect(rig.Setup()).To(MatchError(robot.ErrSetupOrder))
		})

		It("refuses to home before setup", func() {
			Expect(world.Build()).To(Succeed())
			Expect(rig.Home()).To(MatchError(robot.ErrSetupOrder))
		})

		It("refuses observations and actions before homing", func() {
			Expect(world.Build()).To(Succeed())
			Expect(rig.Setup()).To(Succeed())
			_, err := rig.CaptureObservation()
			Expect(err).To(MatchError(robot.ErrSetupOrder))
			Expect(rig.ApplyActionChunk(robot.ActionChunk{{}}, 1)).To(MatchError(robot.ErrSetupOrder))
		})

		It("refuses to place a rig in a built scene", func() {
			Expect(world.Build()).To(Succeed())
			_, err := robot.New(world, smallConfig(), base)
			Expect(err).To(MatchError(robot.ErrSetupOrder))
		})

		It("fails on an unknown end effector", func() {
			cfg := smallConfig()
			cfg.EndEffector = "hand"
			_, err := robot.New(newWorld(), cfg, base)
			Expect(err).To(MatchError(sim.ErrUnknownLink))
		})
	})

	Context("when homed", func() {
		BeforeEach(func() {
			Expect(world.Build()).To(Succeed())
			Expect(rig.Setup()).To(Succeed())
			Expect(rig.Home()).To(Succeed())
		})

		It("settles at the rest pose", func() {
			Expect(rig.Ready()).To(BeTrue())
			q, err := rig.JointPositions()
			Expect(err).NotTo(HaveOccurred())
			for i := range scanRest {
				Expect(q[i]).To(BeNumerically("~", scanRest[i], 1e-9))
			}
			Expect(world.StepCount()).To(Equal(150))
		})

		It("captures a 7/2 split observation without stepping", func() {
			obs, err := rig.CaptureObservation()
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.Arm).To(HaveLen(robot.ArmDOFs))
			Expect(obs.Gripper).To(HaveLen(robot.GripperDOFs))
			Expect(obs.Wrist.Bounds().Dx()).To(Equal(64))
			Expect(obs.Exterior.Bounds().Dy()).To(Equal(48))
			Expect(world.StepCount()).To(Equal(150))
		})

		It("returns copies in the observation", func() {
			obs, _ := rig.CaptureObservation()
			obs.Arm[0] = 99
			again, _ := rig.CaptureObservation()
			Expect(again.Arm[0]).NotTo(Equal(99.0))
		})

		It("runs the end-to-end scenario", func() {
			obs, err := rig.CaptureObservation()
			Expect(err).NotTo(HaveOccurred())
			for i, want := range []float64{0, -0.4, 0, -1.8, 0, 1.4, 0} {
				Expect(obs.Arm[i]).To(BeNumerically("~", want, 1e-9))
			}
			Expect(obs.Gripper).To(Equal([]float64{0, 0}))

			a, _ := robot.ActionFromVector([]float64{0, -0.4, 0, -1.8, 0, 1.4, 0, 0.9})
			Expect(rig.ApplyActionChunk(robot.ActionChunk{a}, 7)).To(Succeed())
			Expect(rig.Target()).To(Equal([]float64{0, -0.4, 0, -1.8, 0, 1.4, 0, math.Pi / 4, math.Pi / 4}))
			Expect(world.StepCount()).To(Equal(157))

			// hold the command until the fingers settle
			hold := make(robot.ActionChunk, 30)
			for i := range hold {
				hold[i] = a
			}
			Expect(rig.ApplyActionChunk(hold, 7)).To(Succeed())
			q, _ := rig.JointPositions()
			Expect(q[7]).To(BeNumerically("~", math.Pi/4, 1e-2))
			Expect(q[8]).To(Equal(q[7]))
		})

		It("rejects an empty chunk", func() {
			Expect(rig.ApplyActionChunk(nil, 7)).To(MatchError(robot.ErrEmptyChunk))
		})

		It("feeds observers one sample per step", func() {
			obs := &sampleCounter{}
			rig.AddObserver(obs)
			Expect(rig.ApplyActionChunk(make(robot.ActionChunk, 3), 5)).To(Succeed())
			Expect(obs.n).To(Equal(15))
			Expect(obs.lastX).To(HaveLen(robot.DOFs))
			Expect(obs.lastU).To(HaveLen(robot.DOFs))
			Expect(obs.lastT).To(BeNumerically("~", world.Time(), 1e-12))
		})

		It("can be re-homed after a scene reset", func() {
			a, _ := robot.ActionFromVector([]float64{0.3, -0.4, 0, -1.8, 0, 1.4, 0, 0})
			Expect(rig.ApplyActionChunk(robot.ActionChunk{a, a, a}, 7)).To(Succeed())
			Expect(world.Reset()).To(Succeed())
			Expect(rig.Home()).To(Succeed())
			q, _ := rig.JointPositions()
			Expect(q[0]).To(BeNumerically("~", 0, 1e-9))
		})

		Describe("recording", func() {
			It("writes one video per camera named by timestamp", func() {
				mock.Set(time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC))
				Expect(rig.StartRecording()).To(Succeed())
				Expect(rig.Recording()).To(BeTrue())
				Expect(rig.ApplyActionChunk(make(robot.ActionChunk, 2), 4)).To(Succeed())

				dir := GinkgoT().TempDir()
				paths, err := rig.StopRecording(dir)
				Expect(err).NotTo(HaveOccurred())
				Expect(paths).To(ConsistOf(
					filepath.Join(dir, "wrist_03-07-24_14-05.mp4"),
					filepath.Join(dir, "scene_03-07-24_14-05.mp4"),
				))
				Expect(enc.clips["wrist_03-07-24_14-05.mp4"].Frames).To(Equal(8))
				Expect(enc.clips["scene_03-07-24_14-05.mp4"].FPS).To(Equal(100))
				Expect(rig.Recording()).To(BeFalse())
			})

			It("keeps capturing frames while re-homing", func() {
				mock.Set(time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC))
				Expect(rig.StartRecording()).To(Succeed())
				Expect(rig.ApplyActionChunk(make(robot.ActionChunk, 1), 4)).To(Succeed())
				Expect(world.Reset()).To(Succeed())
				Expect(rig.Home()).To(Succeed())

				_, err := rig.StopRecording(GinkgoT().TempDir())
				Expect(err).NotTo(HaveOccurred())
				Expect(enc.clips["wrist_03-07-24_14-05.mp4"].Frames).To(Equal(4 + 150))
				Expect(enc.clips["scene_03-07-24_14-05.mp4"].Frames).To(Equal(4 + 150))
			})

			It("does not change control timing", func() {
				Expect(rig.StartRecording()).To(Succeed())
				Expect(rig.ApplyActionChunk(make(robot.ActionChunk, 2), 7)).To(Succeed())
				Expect(world.StepCount()).To(Equal(150 + 14))
				_, err := rig.StopRecording(GinkgoT().TempDir())
				Expect(err).NotTo(HaveOccurred())
			})

			It("rejects mismatched start and stop", func() {
				_, err := rig.StopRecording(GinkgoT().TempDir())
				Expect(err).To(MatchError(robot.ErrRecording))
				Expect(rig.StartRecording()).To(Succeed())
				Expect(rig.StartRecording()).To(MatchError(robot.ErrRecording))
				_, _ = rig.StopRecording(GinkgoT().TempDir())
			})
		})
	})
})
