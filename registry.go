package overdraw

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Registry tracks one Monitor per active camera and measures all of them
// once per host frame. Create one per backend; there is no global instance.
type Registry struct {
	mu       sync.RWMutex
	backend  Backend
	opts     registryOptions
	log      *slog.Logger
	monitors map[CameraID]*Monitor
	order    []CameraID
	closed   bool

	// unavailable holds cameras whose monitor could not start because the
	// backend has no usable shaders. Sync skips them until they go away.
	unavailable map[CameraID]bool
}

// NewRegistry creates an empty registry measuring on b.
func NewRegistry(b Backend, opts ...RegistryOption) *Registry {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	propagateLogger(b, log)
	return &Registry{
		backend:  b,
		opts:     o,
		log:      log,
		monitors: make(map[CameraID]*Monitor),

		unavailable: make(map[CameraID]bool),
	}
}

// Sync reconciles the tracked set with cameras. Monitors whose camera was
// destroyed, deactivated, or is no longer listed are closed; new active
// cameras get a monitor. It returns the first allocation error, if any,
// after processing every camera. A camera whose monitor failed with
// ErrShaderUnavailable is reported once and skipped until it leaves the
// list.
func (r *Registry) Sync(cameras []Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	listed := make(map[CameraID]bool, len(cameras))
	for _, c := range cameras {
		if alive(c) && c.Active() {
			listed[c.ID()] = true
		}
	}
	for id := range r.unavailable {
		if !listed[id] {
			delete(r.unavailable, id)
		}
	}
	for _, id := range append([]CameraID(nil), r.order...) {
		m := r.monitors[id]
		if !listed[id] || !alive(m.source) || !m.source.Active() {
			r.untrackLocked(id)
		}
	}

	var firstErr error
	for _, c := range cameras {
		if !alive(c) || !c.Active() {
			continue
		}
		if _, ok := r.monitors[c.ID()]; ok || r.unavailable[c.ID()] {
			continue
		}
		if _, err := r.trackLocked(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Track starts monitoring cam with the registry's monitor options plus
// opts. Tracking an already tracked camera returns its monitor.
func (r *Registry) Track(cam Camera, opts ...MonitorOption) (*Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrMonitorClosed
	}
	return r.trackLocked(cam, opts...)
}

func (r *Registry) trackLocked(cam Camera, extra ...MonitorOption) (*Monitor, error) {
	if !alive(cam) {
		return nil, ErrMissingTarget
	}
	if m, ok := r.monitors[cam.ID()]; ok {
		return m, nil
	}
	opts := append([]MonitorOption{WithLogger(r.log)}, r.opts.monitor...)
	if r.opts.computeFactory != nil {
		opts = append(opts, WithComputeCamera(r.opts.computeFactory(cam)))
	}
	opts = append(opts, extra...)
	m, err := NewMonitor(r.backend, cam, opts...)
	if err != nil {
		if errors.Is(err, ErrShaderUnavailable) {
			if !r.unavailable[cam.ID()] {
				r.unavailable[cam.ID()] = true
				r.log.Warn("overdraw: measurement disabled, shaders unavailable", "camera", string(cam.ID()), "err", err)
			}
			return nil, err
		}
		r.log.Warn("overdraw: track camera", "camera", string(cam.ID()), "err", err)
		return nil, err
	}
	delete(r.unavailable, cam.ID())
	r.monitors[cam.ID()] = m
	r.order = append(r.order, cam.ID())
	return m, nil
}

// Untrack closes and forgets the monitor for id.
// A camera skipped for unavailable shaders becomes eligible again.
func (r *Registry) Untrack(id CameraID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unavailable, id)
	r.untrackLocked(id)
}

func (r *Registry) untrackLocked(id CameraID) {
	m, ok := r.monitors[id]
	if !ok {
		return
	}
	_ = m.Close() // logged by Close
	delete(r.monitors, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// FrameReport carries the outcome of one monitor in a registry frame.
type FrameReport struct {
	Camera CameraID
	Result FrameResult
	Err    error
}

// Frame samples and measures every tracked monitor, in tracking order.
// A failing monitor affects only its own report.
func (r *Registry) Frame(ctx context.Context, dt time.Duration) []FrameReport {
	monitors := r.Monitors()
	reports := make([]FrameReport, 0, len(monitors))
	for _, m := range monitors {
		res, err := m.Frame(ctx, dt)
		if err != nil && !errors.Is(err, ErrDetached) && !errors.Is(err, ErrEmptyTileGrid) {
			r.log.Debug("overdraw: frame skipped", "camera", string(m.ID()), "err", err)
		}
		reports = append(reports, FrameReport{Camera: m.ID(), Result: res, Err: err})
	}
	return reports
}

// Monitors returns the tracked monitors in tracking order.
func (r *Registry) Monitors() []*Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Monitor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.monitors[id])
	}
	return out
}

// Monitor returns the monitor for id.
func (r *Registry) Monitor(id CameraID) (*Monitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[id]
	return m, ok
}

// Len returns the number of tracked cameras.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns the statistics of every tracked monitor.
func (r *Registry) Snapshot() []Stats {
	monitors := r.Monitors()
	out := make([]Stats, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, m.Stats())
	}
	return out
}

// ResetStats resets every monitor (window, lifetime and maximum).
func (r *Registry) ResetStats() {
	for _, m := range r.Monitors() {
		m.ResetStats()
	}
}

// ResetWindows resets the sample window of every monitor.
func (r *Registry) ResetWindows() {
	for _, m := range r.Monitors() {
		m.ResetWindow()
	}
}

// Close closes every monitor. The backend is not closed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var firstErr error
	for _, id := range r.order {
		if err := r.monitors[id].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.monitors = make(map[CameraID]*Monitor)
	r.order = nil
	return firstErr
}
