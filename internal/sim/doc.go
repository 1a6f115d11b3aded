// Package sim defines the Scene Session boundary the rig and the control loop
// consume, and ships a small deterministic implementation of it.
//
// The boundary is a set of interfaces:
//
//   - [Session]: scene lifecycle (build, step, reset) and entity creation
//   - [Manipulator]: articulated body with named links and position-controlled DOFs
//   - [Entity]: free or fixed body with a settable pose
//   - [Camera]: pinhole camera with an explicit, pull-based [Attachment]
//
// [World] implements the boundary without a physics engine: joint dynamics
// are integrated under a PD position controller, free bodies fall onto the
// floor or onto fixed boxes, and cameras render a flat-shaded projection.
// It exists so the control loop can run and be tested end to end; it makes no
// attempt at contact solving.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. The goroutine that owns
// the Session must also own every camera render.
package sim
