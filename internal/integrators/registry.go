package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/vlasim/internal/sim"
)

var registry = map[string]func() sim.Integrator{
	"euler":    func() sim.Integrator { return NewEuler() },
	"rk4":      func() sim.Integrator { return NewRK4() },
	"rk45":     func() sim.Integrator { return NewRK45() },
	"verlet":   func() sim.Integrator { return NewVerlet() },
	"leapfrog": func() sim.Integrator { return NewLeapfrog() },
}

// ByName returns a fresh integrator. Integrators keep scratch buffers, so each
// World needs its own.
func ByName(name string) (sim.Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator %q (available: %v)", name, Names())
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
