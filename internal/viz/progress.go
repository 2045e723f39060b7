package viz

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const barWidth = 40

type progressMsg struct {
	step, total uint64
}

type tickMsg time.Time

type doneMsg struct{}

type progressModel struct {
	title       string
	step, total uint64
	start       time.Time
	frame       int
	done        bool
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Init() tea.Cmd { return tick() }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.step, m.total = msg.step, msg.total
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.step) / float64(m.total)
	}

	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	eta := "--"
	if m.step > 0 && m.step < m.total {
		remaining := time.Duration(float64(time.Since(m.start)) * (1/pct - 1))
		eta = remaining.Round(time.Second).String()
	}

	status := StatusRunning.Render(Spinner(m.frame))
	if m.done {
		status = StatusRunning.Render("✓")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s\n",
		status,
		Title.Render(m.title),
		Bar(pct, barWidth),
		MetricValue.Render(fmt.Sprintf("%5.1f%%", 100*pct)))
	fmt.Fprintf(&b, "  %s %s  %s %s  %s %s\n",
		MetricLabel.Render("step"), fmt.Sprintf("%d/%d", m.step, m.total),
		MetricLabel.Render("elapsed"), elapsed,
		MetricLabel.Render("eta"), eta)
	return b.String()
}

// ProgressBar shows scheduler progress in a Bubble Tea program. It
// implements sim.Progress. Updates are throttled to one per permille.
type ProgressBar struct {
	program *tea.Program
	done    chan struct{}
	last    uint64
	started bool
}

// NewProgressBar renders to out. Keyboard input is not captured, so an
// interrupt still reaches the process.
func NewProgressBar(title string, out io.Writer) *ProgressBar {
	m := progressModel{title: title, start: time.Now()}
	return &ProgressBar{
		program: tea.NewProgram(m, tea.WithOutput(out), tea.WithInput(nil)),
		done:    make(chan struct{}),
		last:    ^uint64(0),
	}
}

func (p *ProgressBar) Start() {
	p.started = true
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

func (p *ProgressBar) Update(step, total uint64) {
	if total == 0 {
		return
	}
	permille := step * 1000 / total
	if permille == p.last && step != total {
		return
	}
	p.last = permille
	p.program.Send(progressMsg{step: step, total: total})
}

// Stop renders the final frame and waits for the program to exit.
func (p *ProgressBar) Stop() {
	if !p.started {
		return
	}
	p.program.Send(doneMsg{})
	<-p.done
}

// LogProgress reports progress through slog every Every percent.
type LogProgress struct {
	Logger *slog.Logger
	Every  uint64
	next   uint64
}

func NewLogProgress(logger *slog.Logger, every uint64) *LogProgress {
	if every == 0 {
		every = 10
	}
	return &LogProgress{Logger: logger, Every: every, next: every}
}

func (p *LogProgress) Update(step, total uint64) {
	if total == 0 {
		return
	}
	pct := step * 100 / total
	if pct < p.next {
		return
	}
	p.Logger.Info("progress", "step", step, "total", total, "percent", pct)
	for p.next <= pct {
		p.next += p.Every
	}
}
