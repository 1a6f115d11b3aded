package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrBuilt is returned when topology changes after Build.
	ErrBuilt = errors.New("sim: scene already built")

	// ErrNotBuilt is returned when an operation requires a built scene.
	ErrNotBuilt = errors.New("sim: scene not built")

	// ErrUnstable indicates the joint state became NaN or Inf.
	ErrUnstable = errors.New("sim: simulation unstable (state diverged)")

	// ErrNotAttached is returned by MoveToAttach on a free camera.
	ErrNotAttached = errors.New("sim: camera has no attachment")

	// ErrUnknownLink indicates a link name absent from the manipulator.
	ErrUnknownLink = errors.New("sim: unknown link")

	// ErrUnknownJoint indicates a joint name absent from the manipulator.
	ErrUnknownJoint = errors.New("sim: unknown joint")

	// ErrDimensionMismatch indicates value and index slices of different length.
	ErrDimensionMismatch = errors.New("sim: dimension mismatch")
)

// StepError wraps a failure with the step it happened on.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
