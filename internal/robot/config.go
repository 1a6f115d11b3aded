package robot

import (
	"fmt"
	"math"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/sim"
)

type Config struct {
	Model       sim.ManipulatorSpec
	JointNames  []string
	EndEffector string
	RestPose    []float64

	StabilitySteps int
	Gains          sim.Gains

	WristOffset    geom.Pose
	ExteriorOffset geom.Pose
	CameraWidth    int
	CameraHeight   int
	CameraFOV      float64

	// GripperThreshold is a policy calibration constant, not a geometric one.
	GripperThreshold float64
	GripperClosed    float64
}

var droidRestPose = []float64{
	-0.13935425877571106,
	-0.020481698215007782,
	-0.05201413854956627,
	-2.0691256523132324,
	0.05058913677930832,
	2.0028650760650635,
	-0.9167874455451965,
	0, 0,
}

// DroidRestPose returns a copy of the DROID rest configuration.
func DroidRestPose() []float64 {
	return append([]float64(nil), droidRestPose...)
}

// DroidConfig is a Franka Panda with a Robotiq 2F-85 gripper, cameras placed
// as on the DROID platform.
func DroidConfig() Config {
	scale := func(k float64, v ...float64) []float64 {
		out := make([]float64, len(v))
		for i := range v {
			out[i] = k * v[i]
		}
		return out
	}
	lower := []float64{-86, -86, -86, -86, -11.5, -11.5, -11.5, -100, -100}
	upper := scale(-1, lower...)

	return Config{
		Model: PandaRobotiq(),
		JointNames: []string{
			"joint1", "joint2", "joint3", "joint4", "joint5", "joint6", "joint7",
			"left_driver_joint", "right_driver_joint",
		},
		EndEffector:    "base",
		RestPose:       DroidRestPose(),
		StabilitySteps: 150,
		Gains: sim.Gains{
			Kp:         scale(100, 40, 30, 50, 25, 35, 25, 10, 1, 1),
			Kv:         scale(100, 4, 6, 5, 5, 3, 2, 1, 0.1, 0.1),
			Damping:    []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 1, 1},
			ForceLower: lower,
			ForceUpper: upper,
		},
		WristOffset: geom.FromTransQuat(
			[3]float64{0.03026469, 0.07047331, 0.02246456},
			[4]float64{-0.000662797508, 0.000376455792, 0.988124130, 0.153655398},
		),
		ExteriorOffset: geom.FromTransQuat(
			[3]float64{0.05, 0.57, 0.66},
			[4]float64{-0.393, -0.195, 0.399, 0.805},
		),
		CameraWidth:      1280,
		CameraHeight:     720,
		CameraFOV:        57,
		GripperThreshold: 0.2,
		GripperClosed:    math.Pi / 4,
	}
}

func (c Config) Validate() error {
	if len(c.JointNames) != DOFs {
		return fmt.Errorf("robot config: %d joint names, want %d", len(c.JointNames), DOFs)
	}
	if len(c.RestPose) != DOFs {
		return fmt.Errorf("robot config: rest pose has %d values, want %d", len(c.RestPose), DOFs)
	}
	for name, g := range map[string][]float64{
		"kp": c.Gains.Kp, "kv": c.Gains.Kv, "damping": c.Gains.Damping,
		"force_lower": c.Gains.ForceLower, "force_upper": c.Gains.ForceUpper,
	} {
		if len(g) != DOFs {
			return fmt.Errorf("robot config: %s has %d values, want %d", name, len(g), DOFs)
		}
	}
	if c.EndEffector == "" {
		return fmt.Errorf("robot config: end effector link is required")
	}
	if c.StabilitySteps < 0 {
		return fmt.Errorf("robot config: negative stability steps")
	}
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		return fmt.Errorf("robot config: camera resolution must be positive")
	}
	return nil
}
