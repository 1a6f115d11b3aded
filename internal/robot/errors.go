package robot

import "errors"

var (
	// ErrSetupOrder is returned when a rig operation is called before the
	// setup step it depends on.
	ErrSetupOrder = errors.New("robot: setup steps called out of order")

	// ErrEmptyChunk is returned when asked to execute zero actions.
	ErrEmptyChunk = errors.New("robot: empty action chunk")

	// ErrBadAction indicates an action vector of the wrong length.
	ErrBadAction = errors.New("robot: malformed action")

	ErrRecording = errors.New("robot: recording state mismatch")
)
