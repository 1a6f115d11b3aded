package robot

import (
	"fmt"
	"image"
)

const (
	ArmDOFs     = 7
	GripperDOFs = 2
	DOFs        = ArmDOFs + GripperDOFs

	// ActionDim is 7 joint targets plus one gripper command.
	ActionDim = ArmDOFs + 1
)

// Observation is a snapshot of the rig at one instant. Slices are copies.
type Observation struct {
	Arm      []float64
	Gripper  []float64
	Wrist    image.Image
	Exterior image.Image
	Time     float64
}

type Action struct {
	Arm     [ArmDOFs]float64
	Gripper float64
}

// ActionChunk is executed oldest first.
type ActionChunk []Action

func ActionFromVector(v []float64) (Action, error) {
	if len(v) != ActionDim {
		return Action{}, fmt.Errorf("%w: got %d values, want %d", ErrBadAction, len(v), ActionDim)
	}
	var a Action
	copy(a.Arm[:], v[:ArmDOFs])
	a.Gripper = v[ArmDOFs]
	return a, nil
}

func (a Action) Vector() []float64 {
	v := make([]float64, 0, ActionDim)
	v = append(v, a.Arm[:]...)
	return append(v, a.Gripper)
}

// Truncate returns at most the first n actions, in order.
func (c ActionChunk) Truncate(n int) ActionChunk {
	if n < 0 || n >= len(c) {
		return c
	}
	return c[:n]
}

// GripperTarget maps a continuous gripper command to the binary finger
// target. Commands at or below the threshold open the gripper.
func (c Config) GripperTarget(cmd float64) float64 {
	if cmd > c.GripperThreshold {
		return c.GripperClosed
	}
	return 0
}

// CommandVector is the 9 position targets in DOF order, with the resolved
// gripper target broadcast to both fingers.
func (c Config) CommandVector(a Action) []float64 {
	g := c.GripperTarget(a.Gripper)
	v := make([]float64, 0, DOFs)
	v = append(v, a.Arm[:]...)
	return append(v, g, g)
}
