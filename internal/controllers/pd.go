package controllers

import "math"

// Gains used for a DOF that was never configured.
const (
	DefaultKp    = 100.0
	DefaultKv    = 10.0
	DefaultForce = 100.0
)

type JointPD struct {
	Kp    []float64
	Kv    []float64
	Lower []float64
	Upper []float64

	target []float64
	active []bool
}

func NewJointPD(dofs int) *JointPD {
	c := &JointPD{
		Kp:     make([]float64, dofs),
		Kv:     make([]float64, dofs),
		Lower:  make([]float64, dofs),
		Upper:  make([]float64, dofs),
		target: make([]float64, dofs),
		active: make([]bool, dofs),
	}
	for i := 0; i < dofs; i++ {
		c.Kp[i] = DefaultKp
		c.Kv[i] = DefaultKv
		c.Lower[i] = -DefaultForce
		c.Upper[i] = DefaultForce
	}
	return c
}

func (c *JointPD) DOFs() int { return len(c.Kp) }

func (c *JointPD) SetGains(dof int, kp, kv, lower, upper float64) {
	c.Kp[dof] = kp
	c.Kv[dof] = kv
	c.Lower[dof] = lower
	c.Upper[dof] = upper
}

func (c *JointPD) SetTarget(dof int, q float64) {
	c.target[dof] = q
	c.active[dof] = true
}

// Target reports the latched target for dof, if any.
func (c *JointPD) Target(dof int) (float64, bool) {
	return c.target[dof], c.active[dof]
}

// Reset clears every latched target; uncommanded DOFs produce zero force.
func (c *JointPD) Reset() {
	for i := range c.active {
		c.active[i] = false
		c.target[i] = 0
	}
}

// Compute returns the clipped generalized force for each DOF.
func (c *JointPD) Compute(q, qd []float64) []float64 {
	tau := make([]float64, len(c.Kp))
	for i := range tau {
		if !c.active[i] {
			continue
		}
		u := c.Kp[i]*(c.target[i]-q[i]) - c.Kv[i]*qd[i]
		tau[i] = math.Max(c.Lower[i], math.Min(c.Upper[i], u))
	}
	return tau
}

// GetParams returns the gains of one DOF for inspection.
func (c *JointPD) GetParams(dof int) map[string]float64 {
	return map[string]float64{
		"Kp":    c.Kp[dof],
		"Kv":    c.Kv[dof],
		"Lower": c.Lower[dof],
		"Upper": c.Upper[dof],
	}
}
