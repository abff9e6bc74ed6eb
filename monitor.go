package overdraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FrameResult is the outcome of one measured frame.
type FrameResult struct {
	Fragments uint64
	Ratio     float64
	Grid      TileGrid
	Width     int
	Height    int
}

// Monitor measures overdraw for one camera. It owns a capture buffer,
// recreated whenever the camera changes size, and a result buffer
// allocated once. Both are released by Close.
//
// Measure, Sample and Frame must be called from the host's render goroutine.
// Stats and the reset methods may be called from any goroutine.
type Monitor struct {
	mu sync.Mutex

	backend Backend
	source  Camera
	compute Camera // nil when the source camera is measured directly
	opts    monitorOptions
	log     *slog.Logger

	capture  CaptureBuffer
	result   ResultBuffer
	zeros    []uint32
	readback []uint32

	agg      *Aggregator
	width    int
	height   int
	grid     TileGrid
	rejected int

	attached bool
	closed   bool
}

// NewMonitor creates an attached monitor for cam and allocates its result
// buffer on b.
func NewMonitor(b Backend, cam Camera, opts ...MonitorOption) (*Monitor, error) {
	if b == nil {
		return nil, errors.New("overdraw: nil backend")
	}
	if !alive(cam) {
		return nil, ErrMissingTarget
	}
	o := defaultMonitorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.computeCamera != nil {
		if _, ok := o.computeCamera.(CameraCopier); !ok {
			return nil, ErrNoComputeCopy
		}
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	propagateLogger(b, log)

	ensureFragmentWeight()

	result, err := b.NewResultBuffer(ResultSlots)
	if err != nil {
		return nil, fmt.Errorf("overdraw: allocate result buffer: %w", err)
	}

	m := &Monitor{
		backend:  b,
		source:   cam,
		compute:  o.computeCamera,
		opts:     o,
		log:      log.With("camera", string(cam.ID())),
		result:   result,
		zeros:    make([]uint32, ResultSlots),
		readback: make([]uint32, ResultSlots),
		agg:      NewAggregator(o.samplePeriod),
		attached: true,
	}
	m.log.Info("overdraw: monitor created", "backend", b.Name(), "compute_camera", m.compute != nil)
	return m, nil
}

// Camera returns the monitored camera.
func (m *Monitor) Camera() Camera { return m.source }

// ID returns the monitored camera's ID.
func (m *Monitor) ID() CameraID { return m.source.ID() }

// Attach resumes measurement after Detach.
func (m *Monitor) Attach() {
	m.mu.Lock()
	m.attached = true
	m.mu.Unlock()
}

// Detach suspends measurement. Buffers and statistics are kept, but Stats
// reads as inactive until Attach.
func (m *Monitor) Detach() {
	m.mu.Lock()
	m.attached = false
	m.mu.Unlock()
}

// Attached reports whether the monitor is measuring.
func (m *Monitor) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached && !m.closed
}

// Frame advances the statistics clock by dt and then measures the frame.
func (m *Monitor) Frame(ctx context.Context, dt time.Duration) (FrameResult, error) {
	m.Sample(dt)
	return m.Measure(ctx)
}

// Sample advances the statistics window by dt. It reports whether the
// window was flushed.
func (m *Monitor) Sample(dt time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	return m.agg.Sample(dt)
}

// Measure runs the capture pass and the reduction for the current frame
// and records the result. On any error no statistics change and the
// camera is left as it was found.
func (m *Monitor) Measure(ctx context.Context) (FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return FrameResult{}, ErrMonitorClosed
	}
	if !m.attached {
		return FrameResult{}, ErrDetached
	}
	if err := ctx.Err(); err != nil {
		return FrameResult{}, err
	}
	if !alive(m.source) {
		return FrameResult{}, ErrMissingTarget
	}

	cam := m.source
	if m.compute != nil {
		if !alive(m.compute) {
			return FrameResult{}, ErrMissingTarget
		}
		m.compute.(CameraCopier).CopyFrom(m.source)
		cam = m.compute
	}

	w, h := m.source.PixelSize()
	grid, err := GridFor(w, h)
	if err != nil {
		if errors.Is(err, ErrResourceExhausted) {
			m.rejected++
			m.log.Warn("overdraw: frame rejected", "width", w, "height", h, "err", err)
		}
		return FrameResult{}, err
	}

	saved := saveCamera(cam)
	defer saved.restore(cam)

	if err := m.ensureCaptureBuffer(w, h); err != nil {
		return FrameResult{}, err
	}

	cam.SetClearMode(ClearSolidColor)
	cam.SetClearColor(Transparent)
	cam.SetTarget(m.capture)
	if m.compute != nil || (m.opts.disablePrimary && cam.Primary()) {
		cam.SetEnabled(false)
	}

	if err := cam.RenderWithShader(ctx, m.backend.ReplacementShader()); err != nil {
		if !alive(cam) {
			return FrameResult{}, ErrMissingTarget
		}
		return FrameResult{}, fmt.Errorf("overdraw: capture pass: %w", err)
	}
	if !alive(cam) || !alive(m.source) {
		return FrameResult{}, ErrMissingTarget
	}

	total, err := m.reduce(ctx, grid)
	if err != nil {
		return FrameResult{}, err
	}
	ratio := grid.Ratio(total)

	m.agg.Record(total, ratio)
	m.width, m.height, m.grid = w, h, grid

	return FrameResult{Fragments: total, Ratio: ratio, Grid: grid, Width: w, Height: h}, nil
}

// reduce clears the result buffer, sums the capture buffer in tiles and
// adds the tile sums on the host.
func (m *Monitor) reduce(ctx context.Context, grid TileGrid) (uint64, error) {
	if err := m.result.Upload(ctx, m.zeros); err != nil {
		return 0, fmt.Errorf("overdraw: clear result buffer: %w", err)
	}
	if err := m.backend.Reduce(ctx, m.capture, m.result, grid); err != nil {
		return 0, fmt.Errorf("overdraw: reduce: %w", err)
	}
	if err := m.result.Read(ctx, m.readback); err != nil {
		return 0, fmt.Errorf("overdraw: read result buffer: %w", err)
	}
	return SumSlots(m.readback), nil
}

// ensureCaptureBuffer makes the capture buffer exactly w x h, releasing
// the previous one first. It does nothing when the size already matches.
func (m *Monitor) ensureCaptureBuffer(w, h int) error {
	if m.capture != nil {
		cw, ch := m.capture.Size()
		if cw == w && ch == h {
			return nil
		}
		m.releaseCapture()
	}
	c, err := m.backend.NewCaptureBuffer(w, h)
	if err != nil {
		return fmt.Errorf("overdraw: allocate capture buffer %dx%d: %w", w, h, err)
	}
	m.capture = c
	m.log.Debug("overdraw: capture buffer allocated", "width", w, "height", h)
	return nil
}

func (m *Monitor) releaseCapture() error {
	if m.capture == nil {
		return nil
	}
	err := m.capture.Release()
	if err != nil {
		m.log.Warn("overdraw: release capture buffer", "err", err)
	}
	m.capture = nil
	return err
}

// Stats returns a snapshot of the monitor's statistics. A detached or
// closed monitor reports Active false and zero values.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.source.ID()
	name := ""
	if alive(m.source) {
		name = m.source.Name()
	}
	if m.closed || !m.attached {
		return Stats{Camera: id, Name: name}
	}
	s := m.agg.Stats()
	s.Camera = id
	s.Name = name
	s.Active = true
	s.Rejected = m.rejected
	s.Width, s.Height = m.width, m.height
	s.ProcessedWidth, s.ProcessedHeight = m.grid.ProcessedWidth(), m.grid.ProcessedHeight()
	return s
}

// ResetWindow clears the current sample window and published interval
// averages.
func (m *Monitor) ResetWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agg.ResetWindow()
}

// ResetStats clears the window, the lifetime average and the maximum.
func (m *Monitor) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agg.Reset()
	m.rejected = 0
}

// Close releases both device buffers. It is safe to call more than once.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	if err := m.releaseCapture(); err != nil {
		firstErr = err
	}
	if m.result != nil {
		if err := m.result.Release(); err != nil {
			m.log.Warn("overdraw: release result buffer", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		m.result = nil
	}
	m.log.Info("overdraw: monitor closed")
	return firstErr
}
