// Package app wires a configured measurement session: backend, scene,
// registry, peak tracking, metrics and recording.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/backend"
	"github.com/gogpu/overdraw/config"
	"github.com/gogpu/overdraw/metrics"
	"github.com/gogpu/overdraw/recording"
	"github.com/gogpu/overdraw/report"
	"github.com/gogpu/overdraw/scene"
)

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	backend    overdraw.Backend
	registerer prometheus.Registerer
	logger     *slog.Logger
	clock      func() time.Time
}

// WithBackend measures on b instead of the configured backend. The session
// takes ownership of b.
func WithBackend(b overdraw.Backend) Option {
	return func(o *sessionOptions) { o.backend = b }
}

// WithRegisterer registers metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *sessionOptions) { o.registerer = reg }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithClock sets the clock stamped into recordings.
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) { o.clock = now }
}

// Session measures a configured scene frame by frame.
type Session struct {
	cfg      *config.Config
	log      *slog.Logger
	backend  overdraw.Backend
	scene    *scene.Scene
	registry *overdraw.Registry
	tracker  *report.Tracker
	metrics  *metrics.Collector
	recorder *recording.Writer
	screen   report.Screen
	frame    uint64
}

// New builds a session from cfg.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	o := sessionOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = overdraw.Logger()
	}

	sc, err := scene.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	b := o.backend
	if b == nil {
		if b, err = backend.Init(cfg.Monitor.Backend); err != nil {
			return nil, fmt.Errorf("init backend: %w", err)
		}
	} else if err := b.Init(); err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}

	regOpts := []overdraw.RegistryOption{
		overdraw.WithRegistryLogger(log),
		overdraw.WithMonitorOptions(overdraw.WithSamplePeriod(cfg.Monitor.SamplePeriod)),
	}
	if cfg.Monitor.Compute {
		regOpts = append(regOpts, overdraw.WithComputeCameras(func(src overdraw.Camera) overdraw.Camera {
			return scene.NewComputeCamera(src.Name() + "/compute")
		}))
	}

	s := &Session{
		cfg:      cfg,
		log:      log,
		backend:  b,
		scene:    sc,
		registry: overdraw.NewRegistry(b, regOpts...),
		tracker:  report.NewTracker(),
		screen:   report.Screen{Width: cfg.Screen.Width, Height: cfg.Screen.Height},
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewCollector()
		if err := s.metrics.Register(o.registerer); err != nil {
			s.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	if cfg.Recording.Enabled {
		w, _, err := recording.NewWriter(cfg.Recording.Dir, recording.Session{
			Name:         "overdraw",
			Backend:      b.Name(),
			ScreenWidth:  cfg.Screen.Width,
			ScreenHeight: cfg.Screen.Height,
			SamplePeriod: cfg.Monitor.SamplePeriod,
		}, o.clock)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open recording: %w", err)
		}
		s.recorder = w
		log.Info("overdraw: recording session", "dir", w.Dir())
	}
	return s, nil
}

// Scene returns the measured scene, for the host to mutate between frames.
func (s *Session) Scene() *scene.Scene { return s.scene }

// Registry returns the monitor registry.
func (s *Session) Registry() *overdraw.Registry { return s.registry }

// Backend returns the backend in use.
func (s *Session) Backend() overdraw.Backend { return s.backend }

// Frames returns the number of frames stepped.
func (s *Session) Frames() uint64 { return s.frame }

// Recording returns the session directory, or "" when not recording.
func (s *Session) Recording() string { return s.recorder.Dir() }

// Frame syncs the tracked cameras with the scene, measures every camera
// and feeds the results to metrics, recording and the peak tracker.
// Per-camera failures are reported in the returned reports; the error is
// only set for failures of the session itself.
func (s *Session) Frame(ctx context.Context, dt time.Duration) ([]overdraw.FrameReport, report.View, error) {
	if err := s.registry.Sync(s.scene.Cameras()); err != nil {
		s.log.Warn("overdraw: sync cameras", "err", err)
	}
	s.frame++
	reports := s.registry.Frame(ctx, dt)
	snapshot := s.registry.Snapshot()
	if s.metrics != nil {
		s.metrics.Observe(reports)
		s.metrics.Update(snapshot)
	}
	if s.recorder != nil {
		if err := s.recorder.AppendFrame(s.frame, reports); err != nil {
			return reports, report.View{}, fmt.Errorf("record frame: %w", err)
		}
		if err := s.recorder.AppendSnapshot(s.frame, snapshot); err != nil {
			return reports, report.View{}, fmt.Errorf("record snapshot: %w", err)
		}
	}
	return reports, s.tracker.Update(snapshot, s.screen), nil
}

// Step implements ui.Stepper.
func (s *Session) Step(dt time.Duration) (report.View, error) {
	_, v, err := s.Frame(context.Background(), dt)
	return v, err
}

// Reset clears monitor statistics and the tracked peaks.
func (s *Session) Reset() {
	s.registry.ResetStats()
	s.tracker.Reset()
}

// Run steps n frames of dt each and returns the final view.
func (s *Session) Run(ctx context.Context, n int, dt time.Duration) (report.View, error) {
	var v report.View
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return v, err
		}
		var err error
		if _, v, err = s.Frame(ctx, dt); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Close releases monitors, the recording and the backend, reporting the
// first failure.
func (s *Session) Close() error {
	var firstErr error
	if err := s.registry.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.recorder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.backend.Close()
	return firstErr
}
