// Package report turns monitor snapshots into the views the tool prints:
// per-camera local and global fill rates with their peaks, and totals
// across cameras.
package report

import (
	"fmt"
	"sync"

	"github.com/gogpu/overdraw"
)

// Format renders a ratio with three decimals.
func Format(v float64) string { return fmt.Sprintf("%.3f", v) }

// Screen is the host output size the global fill rate is measured against.
type Screen struct {
	Width, Height int
}

// Area returns the screen pixel count.
func (s Screen) Area() int { return s.Width * s.Height }

// String returns WxH.
func (s Screen) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// GlobalRatio is the camera's last-frame fragments spread over the whole
// screen, so that cameras of different sizes add up. It is 0 for an empty
// screen or an inactive monitor.
func GlobalRatio(s overdraw.Stats, screen Screen) float64 {
	if !s.Active || screen.Area() <= 0 {
		return 0
	}
	return float64(s.LastFragments) / float64(screen.Area())
}

// Row is one camera's line of a View.
type Row struct {
	Camera        overdraw.CameraID
	Name          string
	Width, Height int
	Active        bool

	Local     float64
	MaxLocal  float64
	Global    float64
	MaxGlobal float64

	Average float64 // lifetime average ratio
	Max     float64 // monitor maximum ratio
}

// View is a rendered-ready picture of all cameras at one frame.
type View struct {
	Screen Screen
	Rows   []Row

	// TotalGlobal sums the global rates of this frame; MaxTotalGlobal sums
	// the per-camera global peaks.
	TotalGlobal    float64
	MaxTotalGlobal float64

	Totals Totals
}

// Totals sums monitor statistics across cameras. Inactive monitors add
// nothing to Average but keep their maximum.
type Totals struct {
	Average float64
	Max     float64
}

// Sum computes the totals of snapshot.
func Sum(snapshot []overdraw.Stats) Totals {
	var t Totals
	for _, s := range snapshot {
		if s.Active {
			t.Average += s.LifetimeAverageRatio
		}
		t.Max += s.MaxRatio
	}
	return t
}

type peak struct {
	local, global float64
}

// Tracker keeps per-camera peaks of the local and global fill rates,
// independent of the monitors' own statistics. It is safe for concurrent
// use.
type Tracker struct {
	mu    sync.Mutex
	peaks map[overdraw.CameraID]*peak
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{peaks: make(map[overdraw.CameraID]*peak)}
}

// Update folds snapshot into the peaks and returns the resulting view.
// Cameras missing from snapshot lose their peaks.
func (t *Tracker) Update(snapshot []overdraw.Stats, screen Screen) View {
	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[overdraw.CameraID]bool, len(snapshot))
	v := View{Screen: screen, Rows: make([]Row, 0, len(snapshot)), Totals: Sum(snapshot)}
	for _, s := range snapshot {
		present[s.Camera] = true
		p, ok := t.peaks[s.Camera]
		if !ok {
			p = &peak{}
			t.peaks[s.Camera] = p
		}
		local := 0.0
		if s.Active {
			local = s.LastRatio
		}
		global := GlobalRatio(s, screen)
		p.local = max(p.local, local)
		p.global = max(p.global, global)

		v.Rows = append(v.Rows, Row{
			Camera:    s.Camera,
			Name:      s.Name,
			Width:     s.Width,
			Height:    s.Height,
			Active:    s.Active,
			Local:     local,
			MaxLocal:  p.local,
			Global:    global,
			MaxGlobal: p.global,
			Average:   s.LifetimeAverageRatio,
			Max:       s.MaxRatio,
		})
		v.TotalGlobal += global
	}
	for id := range t.peaks {
		if !present[id] {
			delete(t.peaks, id)
		}
	}
	for _, p := range t.peaks {
		v.MaxTotalGlobal += p.global
	}
	return v
}

// Reset forgets every peak.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.peaks)
}

// Len returns the number of tracked cameras.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peaks)
}
