// Package geom provides the pose algebra shared by the scene, the rig and the
// asset loaders.
//
// Rotations are unit quaternions stored scalar-first as [quat.Number]
// (Real=w, Imag=x, Jmag=y, Kmag=z). Every composition renormalizes its
// result so repeated attachment updates cannot drift off the unit sphere.
//
//   - [Pose]: translation + rotation
//   - [Pose.Compose]: parent * child, used for camera attachments and kinematic chains
//   - [YUpToZUp]: converts poses authored in a Y-up convention to the simulator's Z-up
//
// # Example
//
//	parent := geom.NewPose(geom.Vec3{0, 0, 1}, geom.RotZ(math.Pi/2))
//	world := parent.Compose(offset)
package geom
