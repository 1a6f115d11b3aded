package sim

import (
	"github.com/san-kum/vlasim/internal/geom"
)

type camera struct {
	world  *World
	spec   CameraSpec
	pose   geom.Pose
	attach *Attachment
}

func newCamera(w *World, spec CameraSpec) *camera {
	return &camera{world: w, spec: spec, pose: geom.IdentityPose()}
}

func (c *camera) Name() string { return c.spec.Name }

// Attach binds the camera to link. The pose is not updated until MoveToAttach.
func (c *camera) Attach(link Link, offset geom.Pose) error {
	if !c.world.built {
		return ErrNotBuilt
	}
	c.attach = &Attachment{Parent: link, Offset: offset}
	return nil
}

func (c *camera) MoveToAttach() error {
	if c.attach == nil {
		return ErrNotAttached
	}
	c.pose = c.attach.Resolve()
	return nil
}

func (c *camera) SetPose(p geom.Pose) {
	c.pose = geom.NewPose(p.Pos, p.Rot)
}

func (c *camera) Pose() geom.Pose { return c.pose }

// Render draws the scene from the camera's last computed pose.
func (c *camera) Render() (Frame, error) {
	if !c.world.built {
		return Frame{}, ErrNotBuilt
	}
	r := renderer{
		width:  c.spec.Width,
		height: c.spec.Height,
		fov:    c.spec.FOV,
		pose:   c.pose,
		depth:  c.spec.Depth,
	}
	return r.draw(c.world.drawables()), nil
}
