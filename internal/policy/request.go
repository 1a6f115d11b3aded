package policy

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/san-kum/vlasim/internal/robot"
)

const (
	DefaultImageSize = 224
	DefaultActions   = 8
)

// Request keys understood by DROID policies.
const (
	KeyExteriorImage = "observation/exterior_image_1_left"
	KeyWristImage    = "observation/wrist_image_left"
	KeyJointPosition = "observation/joint_position"
	KeyGripper       = "observation/gripper_position"
	KeyPrompt        = "prompt"
	KeyActions       = "actions"
)

type Request struct {
	Obs    robot.Observation
	Prompt string
	// Actions caps how many actions of the returned chunk are kept.
	Actions int
}

type Client interface {
	Infer(ctx context.Context, req Request) (robot.ActionChunk, error)
	Close() error
}

// ResizeWithPad scales img to fit a size x size square keeping its aspect
// ratio and centres it on black.
func ResizeWithPad(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == size && h == size {
		return imaging.Clone(img)
	}
	ratio := math.Max(float64(w)/float64(size), float64(h)/float64(size))
	rw := max(int(float64(w)/ratio), 1)
	rh := max(int(float64(h)/ratio), 1)

	resized := imaging.Resize(img, rw, rh, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{A: 255})
	return imaging.Paste(canvas, resized, image.Pt((size-rw)/2, (size-rh)/2))
}

// rgbBytes flattens to H x W x 3 row-major.
func rgbBytes(img *image.NRGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, 3*b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			out = append(out, row[4*x], row[4*x+1], row[4*x+2])
		}
	}
	return out
}

// NormalizeGripper maps a finger angle to [0, 1] where 1 is closed.
func NormalizeGripper(q, closed float64) float32 {
	g := q / closed
	return float32(math.Min(math.Max(g, 0), 1))
}

// Payload builds the msgpack-ready request map.
func Payload(req Request, size int, gripperClosed float64) (map[string]interface{}, error) {
	obs := req.Obs
	if len(obs.Arm) != robot.ArmDOFs {
		return nil, fmt.Errorf("observation has %d arm joints, want %d", len(obs.Arm), robot.ArmDOFs)
	}
	if len(obs.Gripper) == 0 {
		return nil, fmt.Errorf("observation has no gripper position")
	}
	if obs.Wrist == nil || obs.Exterior == nil {
		return nil, fmt.Errorf("observation is missing a camera image")
	}

	ext := ResizeWithPad(obs.Exterior, size)
	wrist := ResizeWithPad(obs.Wrist, size)
	return map[string]interface{}{
		KeyExteriorImage: uint8Array(rgbBytes(ext), size, size, 3),
		KeyWristImage:    uint8Array(rgbBytes(wrist), size, size, 3),
		KeyJointPosition: float64Array(obs.Arm),
		KeyGripper:       float32Array([]float32{NormalizeGripper(obs.Gripper[0], gripperClosed)}),
		KeyPrompt:        req.Prompt,
	}, nil
}

// chunkFromArray converts an N x 8 array, keeping at most limit rows.
func chunkFromArray(a *ndarray, limit int) (robot.ActionChunk, error) {
	if len(a.Shape) != 2 || a.Shape[1] != robot.ActionDim {
		return nil, fmt.Errorf("%w: actions shape %v, want [N %d]", ErrBadResponse, a.Shape, robot.ActionDim)
	}
	vals, err := a.Float64s()
	if err != nil {
		return nil, err
	}
	rows := a.Shape[0]
	if len(vals) < rows*robot.ActionDim {
		return nil, fmt.Errorf("%w: %d values for %d actions", ErrBadResponse, len(vals), rows)
	}
	if limit > 0 && limit < rows {
		rows = limit
	}
	chunk := make(robot.ActionChunk, rows)
	for i := range chunk {
		if chunk[i], err = robot.ActionFromVector(vals[i*robot.ActionDim : (i+1)*robot.ActionDim]); err != nil {
			return nil, err
		}
	}
	return chunk, nil
}
