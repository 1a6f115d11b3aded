package record

import (
	"bytes"
	"fmt"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Clip describes a raw rgb24 frame file.
type Clip struct {
	Raw    string
	Width  int
	Height int
	FPS    int
	Frames int
}

type Encoder interface {
	Encode(clip Clip, out string) error
}

// FFmpeg encodes with the ffmpeg binary found on PATH.
type FFmpeg struct {
	Codec  string
	PixFmt string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Codec: "libx264", PixFmt: "yuv420p"}
}

func (f *FFmpeg) Encode(clip Clip, out string) error {
	var stderr bytes.Buffer
	err := ffmpeg.Input(clip.Raw, ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "rgb24",
		"s":         fmt.Sprintf("%dx%d", clip.Width, clip.Height),
		"framerate": clip.FPS,
	}).
		Output(out, ffmpeg.KwArgs{"vcodec": f.Codec, "pix_fmt": f.PixFmt}).
		OverWriteOutput().
		WithErrorOutput(&stderr).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", out, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
