package metrics

import (
	"github.com/san-kum/vlasim/internal/sim"
)

// Metric accumulates over per-step samples of joint positions x and
// position targets u.
type Metric interface {
	Name() string
	Observe(x sim.State, u sim.Control, t float64)
	Value() float64
	Reset()
}

// Set fans samples out to several metrics. It is a sim.Observer.
type Set []Metric

var _ sim.Observer = Set(nil)

func (s Set) OnStep(x sim.State, u sim.Control, t float64) {
	for _, m := range s {
		m.Observe(x, u, t)
	}
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Default is the metric set recorded for every rollout.
func Default(dofs int) Set {
	return Set{
		NewTrackingError(dofs),
		NewPeakError(dofs),
		NewSettled(dofs, 0.01),
	}
}

func trackingErrors(x sim.State, u sim.Control, dofs int, fn func(e float64)) bool {
	if len(u) == 0 {
		return false
	}
	n := min(len(x), len(u))
	if dofs > 0 {
		n = min(n, dofs)
	}
	for i := 0; i < n; i++ {
		fn(u[i] - x[i])
	}
	return true
}
