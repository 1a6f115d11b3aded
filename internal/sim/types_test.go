package sim

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Dt != 0.01 {
		t.Errorf("dt = %f, want 0.01", cfg.Dt)
	}
	if cfg.Substeps < 1 {
		t.Errorf("substeps = %d", cfg.Substeps)
	}
	if cfg.Gravity >= 0 {
		t.Errorf("gravity should point down, got %f", cfg.Gravity)
	}
}

func TestStepError(t *testing.T) {
	err := &StepError{Step: 12, Time: 0.12, Wrapped: ErrUnstable}
	if !errors.Is(err, ErrUnstable) {
		t.Error("step error should unwrap to ErrUnstable")
	}
	if got := err.Error(); got != "step 12 (t=0.1200): sim: simulation unstable (state diverged)" {
		t.Errorf("Error() = %q", got)
	}
}
