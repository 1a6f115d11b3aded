package robot

import (
	"math"

	"github.com/san-kum/vlasim/internal/sim"
)

// PandaRobotiq is the kinematic description of a Franka Panda arm (modified
// DH) carrying a Robotiq 2F-85. The finger links hang off the gripper base
// for drawing only.
func PandaRobotiq() sim.ManipulatorSpec {
	const (
		limit = 2.8973
		half  = math.Pi / 2
	)
	return sim.ManipulatorSpec{
		Name:     "franka",
		Asset:    "robotiq_2f85/panda_robotiq.xml",
		BaseName: "link0",
		Joints: []sim.JointSpec{
			{Name: "joint1", Lower: -limit, Upper: limit},
			{Name: "joint2", Lower: -1.7628, Upper: 1.7628},
			{Name: "joint3", Lower: -limit, Upper: limit},
			{Name: "joint4", Lower: -3.0718, Upper: -0.0698},
			{Name: "joint5", Lower: -limit, Upper: limit},
			{Name: "joint6", Lower: -0.0175, Upper: 3.7525},
			{Name: "joint7", Lower: -limit, Upper: limit},
			{Name: "left_driver_joint", Inertia: 0.1, Lower: 0, Upper: 0.8},
			{Name: "right_driver_joint", Inertia: 0.1, Lower: 0, Upper: 0.8},
		},
		Links: []sim.LinkSpec{
			{Name: "link1", D: 0.333, Joint: 0},
			{Name: "link2", Alpha: -half, Joint: 1},
			{Name: "link3", D: 0.316, Alpha: half, Joint: 2},
			{Name: "link4", A: 0.0825, Alpha: half, Joint: 3},
			{Name: "link5", A: -0.0825, D: 0.384, Alpha: -half, Joint: 4},
			{Name: "link6", Alpha: half, Joint: 5},
			{Name: "link7", A: 0.088, Alpha: half, Joint: 6},
			{Name: "link8", D: 0.107, Joint: -1},
			{Name: "base", Theta: -math.Pi / 4, Joint: -1},
			{Name: "left_driver", D: 0.06, Joint: 7},
			{Name: "right_driver", D: 0.02, Joint: 8},
		},
	}
}
