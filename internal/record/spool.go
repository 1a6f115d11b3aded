package record

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
)

var ErrFrameSize = errors.New("record: frame size changed mid-recording")

// Spool accumulates frames of one camera as raw rgb24 in a temp file.
type Spool struct {
	Name string

	f      *os.File
	w      *bufio.Writer
	width  int
	height int
	frames int
	row    []byte
}

func NewSpool(dir, name string) (*Spool, error) {
	f, err := os.CreateTemp(dir, name+"-*.rgb")
	if err != nil {
		return nil, fmt.Errorf("create spool for %s: %w", name, err)
	}
	return &Spool{Name: name, f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (s *Spool) Path() string { return s.f.Name() }
func (s *Spool) Frames() int  { return s.frames }

func (s *Spool) Size() (int, int) { return s.width, s.height }

func (s *Spool) Write(img image.Image) error {
	b := img.Bounds()
	if s.frames == 0 {
		s.width, s.height = b.Dx(), b.Dy()
		s.row = make([]byte, 3*s.width)
	} else if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("%w: %s got %dx%d, want %dx%d", ErrFrameSize, s.Name, b.Dx(), b.Dy(), s.width, s.height)
	}

	rgba, _ := img.(*image.RGBA)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := 3 * (x - b.Min.X)
			if rgba != nil {
				o := rgba.PixOffset(x, y)
				copy(s.row[i:i+3], rgba.Pix[o:o+3])
				continue
			}
			r, g, bl, _ := img.At(x, y).RGBA()
			s.row[i], s.row[i+1], s.row[i+2] = byte(r>>8), byte(g>>8), byte(bl>>8)
		}
		if _, err := s.w.Write(s.row); err != nil {
			return fmt.Errorf("spool %s: %w", s.Name, err)
		}
	}
	s.frames++
	return nil
}

// Finish encodes the spool to out and removes the temp file.
func (s *Spool) Finish(enc Encoder, out string, fps int) error {
	if err := s.close(); err != nil {
		return err
	}
	defer os.Remove(s.f.Name())

	if s.frames == 0 {
		return fmt.Errorf("spool %s: no frames recorded", s.Name)
	}
	return enc.Encode(Clip{
		Raw:    s.f.Name(),
		Width:  s.width,
		Height: s.height,
		FPS:    fps,
		Frames: s.frames,
	}, out)
}

func (s *Spool) Discard() error {
	err := s.close()
	if rmErr := os.Remove(s.f.Name()); err == nil {
		err = rmErr
	}
	return err
}

func (s *Spool) close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush spool %s: %w", s.Name, err)
	}
	return s.f.Close()
}
