package metrics

import (
	"math"

	"github.com/san-kum/vlasim/internal/sim"
)

// Settled is the fraction of steps on which every watched joint was within
// threshold of its target.
type Settled struct {
	name      string
	dofs      int
	threshold float64
	settled   int
	samples   int
}

func NewSettled(dofs int, threshold float64) *Settled {
	return &Settled{
		name:      "settled_fraction",
		dofs:      dofs,
		threshold: threshold,
	}
}

func (s *Settled) Name() string {
	return s.name
}

func (s *Settled) Observe(x sim.State, u sim.Control, t float64) {
	worst := 0.0
	if !trackingErrors(x, u, s.dofs, func(e float64) { worst = math.Max(worst, math.Abs(e)) }) {
		return
	}
	s.samples++
	if worst <= s.threshold {
		s.settled++
	}
}

func (s *Settled) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return float64(s.settled) / float64(s.samples)
}

func (s *Settled) Reset() {
	s.settled = 0
	s.samples = 0
}
