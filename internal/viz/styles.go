package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent = lipgloss.Color("#00ffff")
	colorAgent  = lipgloss.Color("#00ff88")
	colorValue  = lipgloss.Color("#00ccff")
	colorLabel  = lipgloss.Color("#888899")
	colorBorder = lipgloss.Color("#444466")
	colorDim    = lipgloss.Color("#666688")
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2)

	Title         = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	Subtle        = lipgloss.NewStyle().Foreground(colorDim)
	StatusRunning = lipgloss.NewStyle().Bold(true).Foreground(colorAgent)
	MetricValue   = lipgloss.NewStyle().Bold(true).Foreground(colorValue)
	MetricLabel   = lipgloss.NewStyle().Foreground(colorLabel)
	AgentDots     = lipgloss.NewStyle().Foreground(colorAgent)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func Spinner(frame int) string {
	return spinnerFrames[frame%len(spinnerFrames)]
}

// Bar renders fraction in [0, 1] as a bar of width cells.
func Bar(fraction float64, width int) string {
	filled := int(math.Round(math.Max(0, math.Min(1, fraction)) * float64(width)))
	return AgentDots.Render(strings.Repeat("█", filled)) +
		Subtle.Render(strings.Repeat("░", width-filled))
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws values in width cells. Longer series are averaged per
// cell; a constant series sits on the lowest level.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return Subtle.Render(strings.Repeat("─", max(width, 0)))
	}

	cells := resample(values, width)
	lo, hi := cells[0], cells[0]
	for _, v := range cells {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range cells {
		level := 0
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkLevels)-1)))
		}
		b.WriteRune(sparkLevels[level])
	}
	return AgentDots.Render(b.String())
}

// resample averages values into at most width buckets.
func resample(values []float64, width int) []float64 {
	if len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func Rule(width int) string {
	return Subtle.Render(strings.Repeat("─", width))
}
