package sim_test

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/san-kum/vlasim/internal/geom"
	"github.com/san-kum/vlasim/internal/sim"
)

func TestAddCameraValidation(t *testing.T) {
	w := newWorld(t)
	if _, err := w.AddCamera(sim.CameraSpec{Name: "c", Width: 0, Height: 10, FOV: 60}); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := w.AddCamera(sim.CameraSpec{Name: "c", Width: 10, Height: 10, FOV: 180}); err == nil {
		t.Error("expected error for 180 degree fov")
	}
}

func TestCameraAttachment(t *testing.T) {
	w := newWorld(t)
	m, _ := w.AddManipulator(twoLink())
	cam, _ := w.AddCamera(sim.CameraSpec{Name: "wrist", Width: 32, Height: 24, FOV: 57})
	tip, _ := m.Link("tip")

	if err := cam.Attach(tip, geom.IdentityPose()); !errors.Is(err, sim.ErrNotBuilt) {
		t.Errorf("Attach before Build: got %v", err)
	}
	_ = w.Build()
	if err := cam.MoveToAttach(); !errors.Is(err, sim.ErrNotAttached) {
		t.Errorf("MoveToAttach on free camera: got %v", err)
	}

	offset := geom.NewPose(geom.Vec3{0, 0, 0.1}, geom.Identity)
	if err := cam.Attach(tip, offset); err != nil {
		t.Fatal(err)
	}
	if err := cam.MoveToAttach(); err != nil {
		t.Fatal(err)
	}
	if p := cam.Pose().Pos; math.Abs(p[0]-1) > 1e-9 || math.Abs(p[2]-0.1) > 1e-9 {
		t.Errorf("attached camera at %v, want (1, 0, 0.1)", p)
	}

	// moving the link does not move the camera until MoveToAttach
	_ = m.SetDOFPositions([]float64{math.Pi / 2, 0}, []int{0, 1})
	if p := cam.Pose().Pos; math.Abs(p[0]-1) > 1e-9 {
		t.Errorf("camera followed link implicitly: %v", p)
	}
	_ = cam.MoveToAttach()
	if p := cam.Pose().Pos; math.Abs(p[1]-1) > 1e-9 {
		t.Errorf("camera at %v after MoveToAttach, want y=1", p)
	}
}

func TestRenderDimensions(t *testing.T) {
	w := newWorld(t)
	rgb, _ := w.AddCamera(sim.CameraSpec{Name: "rgb", Width: 64, Height: 48, FOV: 60})
	rgbd, _ := w.AddCamera(sim.CameraSpec{Name: "rgbd", Width: 40, Height: 30, FOV: 60, Depth: true})

	if _, err := rgb.Render(); !errors.Is(err, sim.ErrNotBuilt) {
		t.Errorf("Render before Build: got %v", err)
	}
	_ = w.Build()

	f, err := rgb.Render()
	if err != nil {
		t.Fatal(err)
	}
	if b := f.Color.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("color frame %v, want 64x48", b)
	}
	if f.Depth != nil {
		t.Error("depth returned for a color-only camera")
	}

	f, _ = rgbd.Render()
	if f.Depth == nil {
		t.Fatal("depth missing")
	}
	if b := f.Depth.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("depth frame %v, want 40x30", b)
	}
}

func TestRenderSeesEntityInFront(t *testing.T) {
	w := newWorld(t)
	red := color.RGBA{R: 255, A: 255}
	_, _ = w.AddEntity(sim.EntitySpec{
		Name:   "ball",
		Radius: 0.2,
		Fixed:  true,
		Pose:   geom.NewPose(geom.Vec3{0, 0, -2}, geom.Identity),
		Color:  red,
	})
	_, _ = w.AddEntity(sim.EntitySpec{
		Name:   "behind",
		Radius: 0.2,
		Fixed:  true,
		Pose:   geom.NewPose(geom.Vec3{0, 0, 2}, geom.Identity),
		Color:  color.RGBA{G: 255, A: 255},
	})
	cam, _ := w.AddCamera(sim.CameraSpec{Name: "c", Width: 41, Height: 41, FOV: 60, Depth: true})
	_ = w.Build()

	// identity pose looks down -z
	f, err := cam.Render()
	if err != nil {
		t.Fatal(err)
	}
	if c := f.Color.RGBAAt(20, 20); c.R < 200 || c.G > 50 {
		t.Errorf("centre pixel %v, want red", c)
	}
	if c := f.Color.RGBAAt(0, 0); c.R == 255 && c.G == 0 {
		t.Errorf("corner pixel %v should be background", c)
	}
	if d := f.Depth.Gray16At(20, 20).Y; d != 2000 {
		t.Errorf("centre depth %d mm, want 2000", d)
	}
	if d := f.Depth.Gray16At(0, 0).Y; d != math.MaxUint16 {
		t.Errorf("corner depth %d, want max", d)
	}
}

func TestRenderSkipsHiddenEntities(t *testing.T) {
	w := newWorld(t)
	_, _ = w.AddEntity(sim.EntitySpec{
		Name:   "ghost",
		Radius: 0.5,
		Fixed:  true,
		Hidden: true,
		Pose:   geom.NewPose(geom.Vec3{0, 0, -2}, geom.Identity),
		Color:  color.RGBA{R: 255, A: 255},
	})
	cam, _ := w.AddCamera(sim.CameraSpec{Name: "c", Width: 16, Height: 16, FOV: 60})
	_ = w.Build()
	f, _ := cam.Render()
	if c := f.Color.RGBAAt(8, 8); c.R == 255 && c.G == 0 {
		t.Error("hidden entity was drawn")
	}
}
