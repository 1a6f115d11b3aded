// Package policy talks to a remote action-generation policy.
//
// Observations go out as msgpack maps over a websocket in the openpi wire
// format: images are resized with padding to a square, numeric arrays are
// encoded as {__ndarray__, data, dtype, shape} maps with byte-string keys,
// and the server answers with an "actions" array of shape N x 8. The package
// also provides Hold, an offline policy that keeps the robot where it is.
package policy
