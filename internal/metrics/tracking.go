package metrics

import (
	"math"

	"github.com/san-kum/vlasim/internal/sim"
)

// TrackingError is the RMS joint tracking error over all samples.
type TrackingError struct {
	name    string
	dofs    int
	sumSq   float64
	samples int
}

// NewTrackingError watches the first dofs joints; 0 watches all.
func NewTrackingError(dofs int) *TrackingError {
	return &TrackingError{
		name: "tracking_rms",
		dofs: dofs,
	}
}

func (m *TrackingError) Name() string {
	return m.name
}

func (m *TrackingError) Observe(x sim.State, u sim.Control, t float64) {
	trackingErrors(x, u, m.dofs, func(e float64) {
		m.sumSq += e * e
		m.samples++
	})
}

func (m *TrackingError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingError) Reset() {
	m.sumSq = 0
	m.samples = 0
}

// PeakError is the largest absolute joint tracking error seen.
type PeakError struct {
	name string
	dofs int
	peak float64
}

func NewPeakError(dofs int) *PeakError {
	return &PeakError{
		name: "tracking_peak",
		dofs: dofs,
	}
}

func (m *PeakError) Name() string { return m.name }

func (m *PeakError) Observe(x sim.State, u sim.Control, t float64) {
	trackingErrors(x, u, m.dofs, func(e float64) {
		m.peak = math.Max(m.peak, math.Abs(e))
	})
}

func (m *PeakError) Value() float64 { return m.peak }

func (m *PeakError) Reset() { m.peak = 0 }
