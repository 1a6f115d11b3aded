package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/vlasim/internal/loop"
)

var ErrAborted = errors.New("prompt aborted")

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const (
	resetQuestion  = "Reset and restart sim? (Y/N)"
	promptQuestion = "Type new prompt (or just press RETURN to not update prompt)"
)

// confirmModel waits for a y or n keypress. Anything else is ignored.
type confirmModel struct {
	question string
	answer   bool
	done     bool
	aborted  bool
}

func newConfirm(question string) confirmModel {
	return confirmModel{question: question}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyRunes:
		switch strings.ToLower(string(key.Runes)) {
		case "y":
			m.answer, m.done = true, true
			return m, tea.Quit
		case "n":
			m.answer, m.done = false, true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		answer := "N"
		if m.answer {
			answer = "Y"
		}
		return cyan.Render(m.question) + " " + green.Render(answer) + "\n"
	}
	return cyan.Render(m.question) + " " + dim.Render("[y/n]") + "\n"
}

// inputModel collects one line of text.
type inputModel struct {
	question string
	current  string
	buf      []rune
	done     bool
	aborted  bool
}

func newInput(question, current string) inputModel {
	return inputModel{question: question, current: current}
}

func (m inputModel) Init() tea.Cmd { return nil }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.done = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if len(m.buf) > 0 {
			m.buf = m.buf[:len(m.buf)-1]
		}
	case tea.KeySpace:
		m.buf = append(m.buf, ' ')
	case tea.KeyRunes:
		m.buf = append(m.buf, key.Runes...)
	}
	return m, nil
}

// Value is the entered prompt, or the current one when nothing was typed.
func (m inputModel) Value() string {
	if s := strings.TrimSpace(string(m.buf)); s != "" {
		return s
	}
	return m.current
}

func (m inputModel) View() string {
	var b strings.Builder
	b.WriteString(dim.Render("current: ") + white.Render(m.current) + "\n")
	b.WriteString(cyan.Render(m.question) + "\n")
	b.WriteString(yellow.Render("> ") + string(m.buf))
	if !m.done {
		b.WriteString(dim.Render("_"))
	}
	b.WriteString("\n")
	return b.String()
}

// Prompter asks the operator on a terminal whether to reset and which task
// prompt to use next.
type Prompter struct {
	in   io.Reader
	out  io.Writer
	opts []tea.ProgramOption
}

var (
	_ loop.ResetDecider   = (*Prompter)(nil)
	_ loop.PromptProvider = (*Prompter)(nil)
)

// NewPrompter reads keys from in and draws to out. Nil values use the
// process terminal.
func NewPrompter(in io.Reader, out io.Writer, opts ...tea.ProgramOption) *Prompter {
	return &Prompter{in: in, out: out, opts: opts}
}

func (p *Prompter) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, p.opts...)
	if p.in != nil {
		opts = append(opts, tea.WithInput(p.in))
	}
	if p.out != nil {
		opts = append(opts, tea.WithOutput(p.out))
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return final, nil
}

func (p *Prompter) ShouldReset(ctx context.Context, iteration int) (bool, error) {
	final, err := p.run(ctx, newConfirm(resetQuestion))
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.aborted || !m.done {
		return false, ErrAborted
	}
	return m.answer, nil
}

func (p *Prompter) NextPrompt(ctx context.Context, current string) (string, error) {
	final, err := p.run(ctx, newInput(promptQuestion, current))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.aborted || !m.done {
		return "", ErrAborted
	}
	return m.Value(), nil
}
