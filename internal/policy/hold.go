package policy

import (
	"context"
	"math"

	"github.com/san-kum/vlasim/internal/robot"
)

// Hold answers every request with the observed pose, so the robot stays put.
// It needs no server.
type Hold struct {
	GripperClosed float64
}

var _ Client = Hold{}

func (h Hold) Infer(ctx context.Context, req Request) (robot.ActionChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := req.Actions
	if n <= 0 {
		n = DefaultActions
	}
	closed := h.GripperClosed
	if closed == 0 {
		closed = math.Pi / 4
	}

	var a robot.Action
	copy(a.Arm[:], req.Obs.Arm)
	if len(req.Obs.Gripper) > 0 {
		a.Gripper = float64(NormalizeGripper(req.Obs.Gripper[0], closed))
	}
	chunk := make(robot.ActionChunk, n)
	for i := range chunk {
		chunk[i] = a
	}
	return chunk, nil
}

func (Hold) Close() error { return nil }
