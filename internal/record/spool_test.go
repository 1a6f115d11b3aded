package record

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

type captureEncoder struct {
	clip Clip
	out  string
	raw  []byte
}

func (c *captureEncoder) Encode(clip Clip, out string) error {
	c.clip, c.out = clip, out
	data, err := os.ReadFile(clip.Raw)
	c.raw = data
	return err
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestSpoolWritesRGB24(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSpool(dir, "wrist")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Write(solid(4, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})); err != nil {
			t.Fatal(err)
		}
	}
	if s.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", s.Frames())
	}

	enc := &captureEncoder{}
	out := filepath.Join(dir, "wrist.mp4")
	if err := s.Finish(enc, out, 15); err != nil {
		t.Fatal(err)
	}
	if enc.out != out || enc.clip.Width != 4 || enc.clip.Height != 2 || enc.clip.FPS != 15 || enc.clip.Frames != 3 {
		t.Errorf("unexpected clip %+v -> %s", enc.clip, enc.out)
	}
	if len(enc.raw) != 3*4*2*3 {
		t.Fatalf("raw size %d, want %d", len(enc.raw), 72)
	}
	if enc.raw[0] != 10 || enc.raw[1] != 20 || enc.raw[2] != 30 {
		t.Errorf("first pixel %v", enc.raw[:3])
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("temp spool not removed")
	}
}

func TestSpoolRejectsResize(t *testing.T) {
	s, _ := NewSpool(t.TempDir(), "scene")
	defer s.Discard()
	_ = s.Write(solid(4, 4, color.RGBA{}))
	if err := s.Write(solid(8, 4, color.RGBA{})); !errors.Is(err, ErrFrameSize) {
		t.Errorf("got %v, want ErrFrameSize", err)
	}
}

func TestSpoolGenericImage(t *testing.T) {
	s, _ := NewSpool(t.TempDir(), "gray")
	g := image.NewGray(image.Rect(0, 0, 2, 1))
	g.SetGray(1, 0, color.Gray{Y: 200})
	if err := s.Write(g); err != nil {
		t.Fatal(err)
	}
	enc := &captureEncoder{}
	if err := s.Finish(enc, "x.mp4", 10); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 200, 200, 200}
	for i := range want {
		if enc.raw[i] != want[i] {
			t.Fatalf("raw = %v, want %v", enc.raw, want)
		}
	}
}

func TestSpoolEmptyFinish(t *testing.T) {
	s, _ := NewSpool(t.TempDir(), "empty")
	if err := s.Finish(&captureEncoder{}, "x.mp4", 10); err == nil {
		t.Error("expected error for empty spool")
	}
}
