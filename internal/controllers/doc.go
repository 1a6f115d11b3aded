// Package controllers provides the low-level joint-space position controller
// driven by the simulated manipulator on every sub-step.
//
// A [JointPD] holds one proportional gain, one velocity gain and a force
// range per degree of freedom. Targets are latched: a commanded position stays
// active until replaced or cleared, so callers issue one command per action
// and then step the simulation.
//
// # Usage
//
//	pd := controllers.NewJointPD(9)
//	pd.SetGains(0, 4000, 400, -86, 86)
//	pd.SetTarget(0, -0.14)
//	tau := pd.Compute(q, qd)
package controllers
