package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gogpu/overdraw/report"
)

type fakeStepper struct {
	steps  int
	resets int
	dts    []time.Duration
	err    error
}

func (s *fakeStepper) Step(dt time.Duration) (report.View, error) {
	s.steps++
	s.dts = append(s.dts, dt)
	if s.err != nil {
		return report.View{}, s.err
	}
	return report.View{
		Screen:      report.Screen{Width: 64, Height: 64},
		Rows:        []report.Row{{Camera: "main", Name: "main", Active: true, Local: float64(s.steps)}},
		TotalGlobal: float64(s.steps),
	}, nil
}

func (s *fakeStepper) Reset() { s.resets++ }

var _ Stepper = (*fakeStepper)(nil)

func TestWatchTicks(t *testing.T) {
	s := &fakeStepper{}
	m := NewWatch(s, 50*time.Millisecond)
	start := time.Unix(100, 0)
	m.now = func() time.Time { return start }
	if m.Init() == nil {
		t.Fatal("Init() should schedule a tick")
	}

	_, cmd := m.Update(tickMsg(start.Add(50 * time.Millisecond)))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	m.Update(tickMsg(start.Add(120 * time.Millisecond)))

	if s.steps != 2 || m.frames != 2 {
		t.Fatalf("steps = %d frames = %d, want 2 2", s.steps, m.frames)
	}
	if s.dts[0] != 50*time.Millisecond || s.dts[1] != 70*time.Millisecond {
		t.Errorf("dts = %v, want [50ms 70ms]", s.dts)
	}
	if len(m.history) != 2 {
		t.Errorf("len(history) = %d, want 2", len(m.history))
	}
	if out := m.View(); !strings.Contains(out, "frame 2") || !strings.Contains(out, "main") {
		t.Errorf("View() missing frame counter or camera:\n%s", out)
	}
}

func TestWatchKeys(t *testing.T) {
	s := &fakeStepper{}
	m := NewWatch(s, time.Millisecond)
	m.Init()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if !m.paused {
		t.Fatal("p should pause")
	}
	m.Update(tickMsg(time.Now()))
	if s.steps != 0 {
		t.Errorf("paused model stepped %d times", s.steps)
	}
	if !strings.Contains(m.View(), "paused") {
		t.Error("View() should show paused")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if s.resets != 1 {
		t.Errorf("resets = %d, want 1", s.resets)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || !m.quitting {
		t.Error("q should quit")
	}
	if m.View() != "" {
		t.Error("View() after quit should be empty")
	}
}

func TestWatchError(t *testing.T) {
	s := &fakeStepper{err: errors.New("device lost")}
	m := NewWatch(s, time.Millisecond)
	m.Init()
	m.Update(tickMsg(time.Now()))
	if m.frames != 0 {
		t.Errorf("frames = %d, want 0 after failed step", m.frames)
	}
	if !strings.Contains(m.View(), "device lost") {
		t.Error("View() should show the step error")
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		values []float64
		width  int
		want   string
	}{
		{nil, 10, ""},
		{[]float64{0, 0}, 10, "▁▁"},
		{[]float64{0, 1}, 10, "▁█"},
		{[]float64{1, 2, 3, 4}, 2, "▆█"},
	}
	for _, tt := range tests {
		if got := sparkline(tt.values, tt.width); got != tt.want {
			t.Errorf("sparkline(%v, %d) = %q, want %q", tt.values, tt.width, got, tt.want)
		}
	}
}
