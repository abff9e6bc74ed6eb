package overdraw

import "time"

// DefaultSamplePeriod is the length of the statistics sample window.
const DefaultSamplePeriod = time.Second

// Aggregator turns per-frame measurements into instant, windowed, lifetime
// and peak statistics. The zero value is not usable; use NewAggregator.
// Aggregator is not safe for concurrent use.
type Aggregator struct {
	period time.Duration

	lastFragments uint64
	lastRatio     float64

	// Current window.
	windowFragments uint64
	windowRatio     float64
	windowFrames    int
	elapsed         time.Duration

	// Published at the last flush.
	intervalFragments    uint64
	intervalAvgFragments float64
	intervalAvgRatio     float64
	flushes              int

	// Lifetime, never cleared by a flush.
	lifetimeRatio  float64
	lifetimeFrames int

	maxRatio float64
}

// NewAggregator returns an aggregator flushing every period. A period <= 0
// selects DefaultSamplePeriod.
func NewAggregator(period time.Duration) *Aggregator {
	if period <= 0 {
		period = DefaultSamplePeriod
	}
	return &Aggregator{period: period}
}

// Period returns the sample window length.
func (a *Aggregator) Period() time.Duration { return a.period }

// Record adds one measured frame.
func (a *Aggregator) Record(fragments uint64, ratio float64) {
	a.lastFragments = fragments
	a.lastRatio = ratio

	a.windowFragments += fragments
	a.windowRatio += ratio
	a.windowFrames++

	a.lifetimeRatio += ratio
	a.lifetimeFrames++

	if ratio > a.maxRatio {
		a.maxRatio = ratio
	}
}

// Sample advances the window clock by dt and flushes once elapsed time
// exceeds the period. The excess carries into the next window, so a long
// stall flushes again on the following calls.
// It reports whether a flush happened.
func (a *Aggregator) Sample(dt time.Duration) bool {
	if dt < 0 {
		dt = 0
	}
	a.elapsed += dt
	if a.elapsed <= a.period {
		return false
	}

	a.intervalFragments = a.windowFragments
	a.intervalAvgFragments = 0
	a.intervalAvgRatio = 0
	if a.windowFrames > 0 {
		a.intervalAvgFragments = float64(a.windowFragments) / float64(a.windowFrames)
		a.intervalAvgRatio = a.windowRatio / float64(a.windowFrames)
	}
	a.flushes++

	a.elapsed -= a.period
	a.windowFragments = 0
	a.windowRatio = 0
	a.windowFrames = 0
	return true
}

// ResetWindow clears the current window and the published interval values.
// Lifetime and peak statistics are kept.
func (a *Aggregator) ResetWindow() {
	a.windowFragments = 0
	a.windowRatio = 0
	a.windowFrames = 0
	a.elapsed = 0
	a.intervalFragments = 0
	a.intervalAvgFragments = 0
	a.intervalAvgRatio = 0
}

// Reset clears the window, the lifetime average and the maximum together.
// The last-frame values describe the most recent frame and are kept.
func (a *Aggregator) Reset() {
	a.ResetWindow()
	a.lifetimeRatio = 0
	a.lifetimeFrames = 0
	a.maxRatio = 0
	a.flushes = 0
}

// LifetimeAverageRatio returns the mean ratio over all frames since the
// last Reset, or 0 when none were recorded.
func (a *Aggregator) LifetimeAverageRatio() float64 {
	if a.lifetimeFrames == 0 {
		return 0
	}
	return a.lifetimeRatio / float64(a.lifetimeFrames)
}

// Stats returns a snapshot of the aggregator.
func (a *Aggregator) Stats() Stats {
	return Stats{
		LastFragments:            a.lastFragments,
		LastRatio:                a.lastRatio,
		IntervalFragments:        a.intervalFragments,
		IntervalAverageFragments: a.intervalAvgFragments,
		IntervalAverageRatio:     a.intervalAvgRatio,
		LifetimeAverageRatio:     a.LifetimeAverageRatio(),
		MaxRatio:                 a.maxRatio,
		Frames:                   a.lifetimeFrames,
		WindowFrames:             a.windowFrames,
		Flushes:                  a.flushes,
	}
}

// Stats is a point-in-time view of one monitor.
type Stats struct {
	Camera CameraID `json:"camera"`
	Name   string   `json:"name"`
	// Active is false while the monitor is detached or closed; every
	// value below then reads as zero.
	Active bool `json:"active"`

	LastFragments uint64  `json:"last_fragments"`
	LastRatio     float64 `json:"last_ratio"`

	IntervalFragments        uint64  `json:"interval_fragments"`
	IntervalAverageFragments float64 `json:"interval_average_fragments"`
	IntervalAverageRatio     float64 `json:"interval_average_ratio"`

	LifetimeAverageRatio float64 `json:"lifetime_average_ratio"`
	MaxRatio             float64 `json:"max_ratio"`

	Frames       int `json:"frames"`
	WindowFrames int `json:"window_frames"`
	Flushes      int `json:"flushes"`
	// Rejected counts frames refused because the tile grid was too large.
	Rejected int `json:"rejected"`

	Width           int `json:"width"`
	Height          int `json:"height"`
	ProcessedWidth  int `json:"processed_width"`
	ProcessedHeight int `json:"processed_height"`
}

// Area returns the camera pixel area of the last measured frame.
func (s Stats) Area() int { return s.Width * s.Height }

// ProcessedArea returns the pixel area counted by the reduction.
func (s Stats) ProcessedArea() int { return s.ProcessedWidth * s.ProcessedHeight }
