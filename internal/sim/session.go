package sim

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/vlasim/internal/geom"
)

type Link interface {
	Name() string
	WorldPose() geom.Pose
}

type Entity interface {
	Name() string
	Pos() geom.Vec3
	Quat() quat.Number
	SetPos(p geom.Vec3)
	SetQuat(q quat.Number)
}

// Gains are per-DOF control parameters, indexed like the dofs slice they are
// applied with.
type Gains struct {
	Kp         []float64
	Kv         []float64
	Damping    []float64
	ForceLower []float64
	ForceUpper []float64
}

type Manipulator interface {
	Name() string
	Link(name string) (Link, error)
	BaseLink() Link
	DOFIndex(joint string) (int, error)
	SetGains(g Gains, dofs []int) error
	// SetDOFPositions teleports the DOFs, bypassing the controller.
	SetDOFPositions(q []float64, dofs []int) error
	// ControlDOFPositions latches position targets for the controller.
	ControlDOFPositions(q []float64, dofs []int) error
	DOFPositions(dofs []int) ([]float64, error)
}

// Frame is the output of one render call. Depth is nil unless the camera was
// created with depth enabled.
type Frame struct {
	Color *image.RGBA
	Depth *image.Gray16
}

type Camera interface {
	Name() string
	Attach(link Link, offset geom.Pose) error
	// MoveToAttach recomputes the camera pose from its parent link. Nothing
	// calls it implicitly.
	MoveToAttach() error
	SetPose(p geom.Pose)
	Pose() geom.Pose
	Render() (Frame, error)
}

type Session interface {
	AddManipulator(spec ManipulatorSpec) (Manipulator, error)
	AddEntity(spec EntitySpec) (Entity, error)
	AddCamera(spec CameraSpec) (Camera, error)
	Build() error
	Built() bool
	Step() error
	Reset() error
	Time() float64
	Dt() float64
}

type JointSpec struct {
	Name    string
	Inertia float64
	// Lower and Upper bound the position; equal values leave it unbounded.
	Lower float64
	Upper float64
}

// LinkSpec is one modified-DH link: RotX(Alpha) TransX(A) RotZ(Theta+q) TransZ(D).
// Joint indexes Joints, or is -1 for a fixed link.
type LinkSpec struct {
	Name  string
	A     float64
	D     float64
	Alpha float64
	Theta float64
	Joint int
}

type ManipulatorSpec struct {
	Name     string
	Asset    string
	Base     geom.Pose
	BaseName string
	Joints   []JointSpec
	Links    []LinkSpec
}

type Shape int

const (
	ShapeSphere Shape = iota
	ShapeBox
)

type EntitySpec struct {
	Name      string
	Asset     string
	Shape     Shape
	Pose      geom.Pose
	Scale     float64
	Radius    float64
	Size      geom.Vec3
	Fixed     bool
	Collision bool
	Hidden    bool
	Color     color.Color
}

type CameraSpec struct {
	Name   string
	Width  int
	Height int
	// FOV is the vertical field of view in degrees.
	FOV   float64
	Depth bool
}

// Attachment binds a camera to a link with a fixed local offset.
type Attachment struct {
	Parent Link
	Offset geom.Pose
}

// Resolve computes the attached pose from the parent's current world pose.
func (a Attachment) Resolve() geom.Pose {
	return a.Parent.WorldPose().Compose(a.Offset)
}
