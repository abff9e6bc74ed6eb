// Package ui is the terminal live view of a measurement session.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gogpu/overdraw/report"
)

const maxHistorySize = 120

const (
	colorTitle = "#BB9AF7"
	colorDim   = "#565F89"
	colorErr   = "#F7768E"
	colorChart = "#9ECE6A"
)

// Stepper advances the measured scene by one frame.
type Stepper interface {
	Step(dt time.Duration) (report.View, error)
	// Reset clears monitor statistics and tracked peaks.
	Reset()
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// WatchModel is the bubbletea model of `overdraw watch`.
type WatchModel struct {
	step     Stepper
	interval time.Duration
	last     time.Time
	now      func() time.Time

	view     report.View
	lastErr  error
	frames   int
	history  []float64
	paused   bool
	width    int
	height   int
	quitting bool
}

// NewWatch returns a model stepping s every interval.
func NewWatch(s Stepper, interval time.Duration) *WatchModel {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &WatchModel{
		step:     s,
		interval: interval,
		now:      time.Now,
		history:  make([]float64, 0, maxHistorySize),
	}
}

func (m *WatchModel) Init() tea.Cmd {
	m.last = m.now()
	return tick(m.interval)
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		dt := now.Sub(m.last)
		m.last = now
		if !m.paused {
			m.advance(dt)
		}
		return m, tick(m.interval)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *WatchModel) advance(dt time.Duration) {
	v, err := m.step.Step(dt)
	m.lastErr = err
	if err != nil {
		return
	}
	m.view = v
	m.frames++
	m.history = append(m.history, v.TotalGlobal)
	if len(m.history) > maxHistorySize {
		m.history = m.history[1:]
	}
}

func (m *WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case " ", "p":
		m.paused = !m.paused
	case "r":
		m.step.Reset()
		m.history = m.history[:0]
	}
	return m, nil
}

func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorTitle)).Render("overdraw")
	status := fmt.Sprintf("frame %d", m.frames)
	if m.paused {
		status += " (paused)"
	}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))

	var b strings.Builder
	b.WriteString(title + "  " + dim.Render(status) + "\n\n")
	b.WriteString(report.Table(m.view))
	if len(m.history) > 1 {
		chart := lipgloss.NewStyle().Foreground(lipgloss.Color(colorChart)).Render(sparkline(m.history, m.chartWidth()))
		b.WriteString("\n" + dim.Render("global ") + chart + "\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color(colorErr)).Render("error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n" + dim.Render("space pause · r reset · q quit"))
	return b.String()
}

func (m *WatchModel) chartWidth() int {
	if m.width <= 10 {
		return 60
	}
	return m.width - 10
}

var bars = []rune("▁▂▃▄▅▆▇█")

// sparkline draws the last width values scaled to their maximum.
func sparkline(values []float64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := int(v / maxVal * float64(len(bars)-1))
		out[i] = bars[min(max(idx, 0), len(bars)-1)]
	}
	return string(out)
}
