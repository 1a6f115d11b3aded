// Package robot binds a manipulator description to a scene session and
// exposes the two operations the control loop needs: capturing an
// observation and executing an action chunk.
//
// A Rig is set up in a fixed order. New places the manipulator and its
// cameras, Setup attaches the cameras and applies gains once the scene is
// built, and Home teleports the joints to the rest pose and lets the
// controller settle. Observation capture and action execution are only
// available after homing.
package robot
