// Package loop runs the closed control loop: capture an observation, ask the
// policy for an action chunk, execute it, repeat. Between iterations the
// driver may reset the scene, either periodically when a ResetDecider
// agrees, on request, when an episode runs out of time, or after a policy
// call times out.
package loop
