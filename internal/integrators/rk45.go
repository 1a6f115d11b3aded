package integrators

import (
	"math"

	"github.com/san-kum/vlasim/internal/sim"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is a Dormand-Prince stepper. Step covers the requested interval with
// as many embedded sub-steps as the error tolerance requires.
type RK45 struct {
	tol      float64
	safety   float64
	minScale float64
	maxScale float64
	// minFrac bounds the smallest sub-step as a fraction of the interval.
	minFrac float64
}

func NewRK45() *RK45 {
	return &RK45{
		tol:      1e-6,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		minFrac:  1e-6,
	}
}

func (r *RK45) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	if dt <= 0 {
		return x
	}
	h := dt
	minH := dt * r.minFrac
	for done := 0.0; done < dt; {
		last := h >= dt-done
		if last {
			h = dt - done
		}
		next, hNext, ok := r.attempt(dyn, x, u, t+done, h)
		if ok || h <= minH {
			x = next
			if last {
				break
			}
			done += h
		}
		h = math.Max(hNext, minH)
	}
	return x
}

// attempt takes one embedded step of size h. It reports whether the error
// estimate is within tolerance and the step size to try next.
func (r *RK45) attempt(dyn sim.Dynamics, x sim.State, u sim.Control, t, h float64) (sim.State, float64, bool) {
	n := len(x)

	k1 := dyn.Derivative(x, u, t)

	x2 := make(sim.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + h*b21*k1[i]
	}
	k2 := dyn.Derivative(x2, u, t+a2*h)

	x3 := make(sim.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + h*(b31*k1[i]+b32*k2[i])
	}
	k3 := dyn.Derivative(x3, u, t+a3*h)

	x4 := make(sim.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + h*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := dyn.Derivative(x4, u, t+a4*h)

	x5 := make(sim.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + h*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := dyn.Derivative(x5, u, t+a5*h)

	x6 := make(sim.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + h*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := dyn.Derivative(x6, u, t+h)

	xNew := make(sim.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + h*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7 := dyn.Derivative(xNew, u, t+h)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := math.Abs(x[i]) + math.Abs(h*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	errRatio := errMax / r.tol
	switch {
	case math.IsNaN(errRatio) || math.IsInf(errRatio, 0):
		return xNew, h * r.minScale, false
	case errRatio > 1:
		return xNew, h * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25)), false
	case errRatio > 0:
		return xNew, h * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2)), true
	default:
		return xNew, h * r.maxScale, true
	}
}
