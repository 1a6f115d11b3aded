package tui

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/san-kum/vlasim/internal/sim"
)

const (
	barWidth    = 24
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// Status redraws a joint-position panel at a bounded frame rate. It is a
// sim.Observer.
type Status struct {
	out       io.Writer
	labels    []string
	limits    [][2]float64
	frameRate int
	clock     clock.Clock
	lastFrame time.Time
	frames    int
}

var _ sim.Observer = (*Status)(nil)

// NewStatus draws one bar per joint, scaled to the given limits.
func NewStatus(out io.Writer, labels []string, limits [][2]float64, frameRate int) *Status {
	if frameRate <= 0 {
		frameRate = 10
	}
	return &Status{
		out:       out,
		labels:    labels,
		limits:    limits,
		frameRate: frameRate,
		clock:     clock.New(),
	}
}

func (s *Status) WithClock(c clock.Clock) *Status {
	s.clock = c
	return s
}

func (s *Status) Frames() int { return s.frames }

func (s *Status) OnStep(x sim.State, u sim.Control, t float64) {
	now := s.clock.Now()
	if s.frames > 0 && now.Sub(s.lastFrame) < time.Second/time.Duration(s.frameRate) {
		return
	}
	s.lastFrame = now
	s.frames++
	fmt.Fprint(s.out, clearScreen+s.render(x, u, t))
}

func (s *Status) render(x sim.State, u sim.Control, t float64) string {
	var b strings.Builder
	b.WriteString(cyan.Render("  vlasim") + dim.Render(fmt.Sprintf("  t=%.2fs", t)) + "\n")
	b.WriteString(dim.Render("  "+strings.Repeat("-", barWidth+28)) + "\n")

	for i, q := range x {
		label := fmt.Sprintf("q%d", i)
		if i < len(s.labels) {
			label = s.labels[i]
		}
		lo, hi := -math.Pi, math.Pi
		if i < len(s.limits) && s.limits[i][1] > s.limits[i][0] {
			lo, hi = s.limits[i][0], s.limits[i][1]
		}

		target := math.NaN()
		if i < len(u) {
			target = u[i]
		}
		b.WriteString(fmt.Sprintf("  %-10s %s %s", label, bar(q, target, lo, hi), white.Render(fmt.Sprintf("%+.3f", q))))
		if !math.IsNaN(target) {
			b.WriteString(dim.Render(fmt.Sprintf(" -> %+.3f", target)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// bar marks the position with # and the target with |.
func bar(q, target, lo, hi float64) string {
	cells := []rune(strings.Repeat(".", barWidth))
	cell := func(v float64) int {
		f := (v - lo) / (hi - lo)
		return int(math.Max(0, math.Min(barWidth-1, math.Round(f*(barWidth-1)))))
	}
	if !math.IsNaN(target) {
		cells[cell(target)] = '|'
	}
	cells[cell(q)] = '#'
	return "[" + string(cells) + "]"
}

func (s *Status) Start() { fmt.Fprint(s.out, hideCursor) }
func (s *Status) Stop()  { fmt.Fprint(s.out, showCursor) }
