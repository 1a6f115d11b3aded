package sim

import (
	"math"
)

type State []float64

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

// Observer receives the controlled DOF positions x and the active targets u
// after every simulation step.
type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Config struct {
	Dt       float64 `yaml:"dt"`
	Substeps int     `yaml:"substeps"`
	Gravity  float64 `yaml:"gravity"`
	Floor    float64 `yaml:"floor"`
}

func DefaultConfig() Config {
	return Config{
		Dt:       0.01,
		Substeps: 10,
		Gravity:  -9.81,
		Floor:    0,
	}
}
