package loop

import (
	"context"
	"strings"
)

type State int

const (
	Running State = iota
	ResetPending
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ResetPending:
		return "reset_pending"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ResetDecider is asked at every periodic reset point whether to reset.
type ResetDecider interface {
	ShouldReset(ctx context.Context, iteration int) (bool, error)
}

// PromptProvider supplies the task prompt for the next episode. Returning
// current keeps it.
type PromptProvider interface {
	NextPrompt(ctx context.Context, current string) (string, error)
}

// AutoReset always resets.
type AutoReset struct{}

func (AutoReset) ShouldReset(context.Context, int) (bool, error) { return true, nil }

// Never declines every periodic reset.
type Never struct{}

func (Never) ShouldReset(context.Context, int) (bool, error) { return false, nil }

// StaticPrompt keeps the current prompt, or replaces it when non-empty.
type StaticPrompt string

func (p StaticPrompt) NextPrompt(_ context.Context, current string) (string, error) {
	if s := strings.TrimSpace(string(p)); s != "" {
		return s, nil
	}
	return current, nil
}

type DeciderFunc func(ctx context.Context, iteration int) (bool, error)

func (f DeciderFunc) ShouldReset(ctx context.Context, iteration int) (bool, error) {
	return f(ctx, iteration)
}

type PromptFunc func(ctx context.Context, current string) (string, error)

func (f PromptFunc) NextPrompt(ctx context.Context, current string) (string, error) {
	return f(ctx, current)
}
