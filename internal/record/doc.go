// Package record spools rendered camera frames to disk while a rollout is
// being recorded and encodes each spool into a video file when recording
// stops.
package record
