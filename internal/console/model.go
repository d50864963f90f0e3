package console

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/viant/kernsim/service/kernel"
)

// Stepper advances a kernel one tick at a time.
type Stepper interface {
	Tick(ctx context.Context) error
	Kernel() *kernel.Kernel
}

// DefaultInterval paces continuous runs.
const DefaultInterval = 150 * time.Millisecond

type stepMsg struct{}

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1)
)

// Model is the interactive view. Ticks run inside Update so the kernel is
// never touched from two goroutines.
type Model struct {
	ctx      context.Context
	stepper  Stepper
	maxTicks int
	interval time.Duration
	running  bool
	done     bool
	status   string
	err      error
}

// NewModel creates a model; maxTicks of 0 means unbounded.
func NewModel(ctx context.Context, stepper Stepper, maxTicks int) *Model {
	return &Model{ctx: ctx, stepper: stepper, maxTicks: maxTicks, interval: DefaultInterval}
}

// Err returns the error that stopped the run, if any.
func (m *Model) Err() error { return m.err }

// Done reports whether the run can no longer advance.
func (m *Model) Done() bool { return m.done }

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ", "n":
			m.running = false
			m.step()
		case "r":
			if !m.done {
				m.running = true
				return m, m.schedule()
			}
		case "p":
			m.running = false
		}
	case stepMsg:
		if !m.running {
			return m, nil
		}
		m.step()
		if m.running {
			return m, m.schedule()
		}
	}
	return m, nil
}

func (m *Model) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return stepMsg{} })
}

func (m *Model) step() {
	if m.done {
		return
	}
	k := m.stepper.Kernel()
	if k.Idle() {
		m.finish(nil, "no runnable process left")
		return
	}
	if err := m.stepper.Tick(m.ctx); err != nil {
		m.finish(err, "")
		return
	}
	if m.maxTicks > 0 && k.Ticks() >= m.maxTicks {
		m.finish(nil, "tick limit reached")
		return
	}
	if k.Idle() {
		m.finish(nil, "no runnable process left")
	}
}

func (m *Model) finish(err error, status string) {
	m.done = true
	m.running = false
	m.err = err
	m.status = status
}

func (m *Model) View() string {
	k := m.stepper.Kernel()
	sections := []string{Summary(k.Snapshot(), k.Progress().Snapshot())}
	switch {
	case m.err != nil:
		label := "error"
		if errors.Is(m.err, kernel.ErrProtocolViolation) {
			label = "protocol violation"
		}
		sections = append(sections, errorStyle.Render(label+": "+m.err.Error()))
	case m.status != "":
		sections = append(sections, m.status)
	}
	sections = append(sections, hintStyle.Render("space/n: tick · r: run · p: pause · q: quit"))
	return strings.Join(sections, "\n")
}
