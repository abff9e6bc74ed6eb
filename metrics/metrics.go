// Package metrics exports overdraw statistics as Prometheus gauges.
//
// A Collector is fed from the frame loop: Update with a registry snapshot
// after each frame, Observe with the frame reports to count failures.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/overdraw"
)

const namespace = "overdraw"

// Collector holds the per-camera overdraw metrics.
type Collector struct {
	lastRatio       *prometheus.GaugeVec
	lastFragments   *prometheus.GaugeVec
	intervalRatio   *prometheus.GaugeVec
	intervalFrags   *prometheus.GaugeVec
	lifetimeRatio   *prometheus.GaugeVec
	maxRatio        *prometheus.GaugeVec
	frames          *prometheus.GaugeVec
	rejected        *prometheus.GaugeVec
	processedPixels *prometheus.GaugeVec
	monitors        prometheus.Gauge
	frameErrors     *prometheus.CounterVec
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		[]string{"camera"},
	)
}

// NewCollector creates the metrics. They are not registered until Register.
func NewCollector() *Collector {
	return &Collector{
		lastRatio:       gauge("last_ratio", "Overdraw ratio of the last measured frame."),
		lastFragments:   gauge("last_fragments", "Fragments shaded in the last measured frame."),
		intervalRatio:   gauge("interval_average_ratio", "Mean overdraw ratio over the last sample window."),
		intervalFrags:   gauge("interval_fragments", "Fragments shaded during the last sample window."),
		lifetimeRatio:   gauge("lifetime_average_ratio", "Mean overdraw ratio since the last reset."),
		maxRatio:        gauge("max_ratio", "Highest overdraw ratio since the last reset."),
		frames:          gauge("frames", "Frames measured since the last reset."),
		rejected:        gauge("rejected_frames", "Frames refused because the camera exceeds the result buffer."),
		processedPixels: gauge("processed_pixels", "Pixels covered by whole tiles in the last frame."),
		monitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitors",
			Help:      "Cameras currently measured.",
		}),
		frameErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_errors_total",
				Help:      "Failed measurements, by camera and reason.",
			},
			[]string{"camera", "reason"},
		),
	}
}

func (c *Collector) vecs() []*prometheus.GaugeVec {
	return []*prometheus.GaugeVec{
		c.lastRatio, c.lastFragments, c.intervalRatio, c.intervalFrags,
		c.lifetimeRatio, c.maxRatio, c.frames, c.rejected, c.processedPixels,
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, v := range c.vecs() {
		if err := reg.Register(v); err != nil {
			return err
		}
	}
	if err := reg.Register(c.monitors); err != nil {
		return err
	}
	return reg.Register(c.frameErrors)
}

// MustRegister is like Register but panics on error.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	if err := c.Register(reg); err != nil {
		panic(err)
	}
}

// Update replaces the gauges with snapshot. Cameras missing from it, and
// detached monitors, disappear from the output.
func (c *Collector) Update(snapshot []overdraw.Stats) {
	for _, v := range c.vecs() {
		v.Reset()
	}
	active := 0
	for _, s := range snapshot {
		if !s.Active {
			continue
		}
		active++
		l := prometheus.Labels{"camera": string(s.Camera)}
		c.lastRatio.With(l).Set(s.LastRatio)
		c.lastFragments.With(l).Set(float64(s.LastFragments))
		c.intervalRatio.With(l).Set(s.IntervalAverageRatio)
		c.intervalFrags.With(l).Set(float64(s.IntervalFragments))
		c.lifetimeRatio.With(l).Set(s.LifetimeAverageRatio)
		c.maxRatio.With(l).Set(s.MaxRatio)
		c.frames.With(l).Set(float64(s.Frames))
		c.rejected.With(l).Set(float64(s.Rejected))
		c.processedPixels.With(l).Set(float64(s.ProcessedArea()))
	}
	c.monitors.Set(float64(active))
}

// Observe counts the failed reports of one frame.
func (c *Collector) Observe(reports []overdraw.FrameReport) {
	for _, r := range reports {
		if r.Err == nil {
			continue
		}
		c.frameErrors.With(prometheus.Labels{
			"camera": string(r.Camera),
			"reason": Reason(r.Err),
		}).Inc()
	}
}

// Reason maps a measurement error to a short label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, overdraw.ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, overdraw.ErrEmptyTileGrid):
		return "empty_grid"
	case errors.Is(err, overdraw.ErrMissingTarget):
		return "missing_target"
	case errors.Is(err, overdraw.ErrShaderUnavailable):
		return "shader_unavailable"
	case errors.Is(err, overdraw.ErrDetached), errors.Is(err, overdraw.ErrMonitorClosed):
		return "inactive"
	default:
		return "other"
	}
}
