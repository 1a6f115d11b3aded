// Package scene holds the named rollout scenes: where the robot stands, the
// pose it rests in, the ReplicaCAD apartment it is placed in and the loose
// objects it manipulates.
package scene
