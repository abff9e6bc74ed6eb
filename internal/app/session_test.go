package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/config"
	"github.com/gogpu/overdraw/internal/cpu"
	"github.com/gogpu/overdraw/recording"
	"github.com/gogpu/overdraw/scene"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Monitor.Backend = "software"
	cfg.Monitor.SamplePeriod = 100 * time.Millisecond
	cfg.Screen = config.ScreenConfig{Width: 128, Height: 64}
	cfg.Scene.Cameras = []config.CameraConfig{
		{Name: "main", Primary: true, Layers: 2},
		{Name: "mini", Width: 64, Height: 32, Layers: 1},
	}
	return cfg
}

func newSession(t *testing.T, cfg *config.Config, opts ...Option) *Session {
	t.Helper()
	s, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionFrame(t *testing.T) {
	s := newSession(t, testConfig())

	reports, v, err := s.Frame(context.Background(), 16*time.Millisecond)
	if err != nil {
		t.Fatalf("Frame() = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	for _, r := range reports {
		if r.Err != nil {
			t.Errorf("camera %s: %v", r.Camera, r.Err)
		}
	}
	if s.Backend().Name() != "software" {
		t.Errorf("Backend() = %s, want software", s.Backend().Name())
	}

	// main covers the screen twice; mini a quarter of it once.
	if len(v.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(v.Rows))
	}
	if got := v.Rows[0].Global; math.Abs(got-2) > 1e-9 {
		t.Errorf("main global = %v, want 2", got)
	}
	if got := v.Rows[1].Global; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("mini global = %v, want 0.25", got)
	}
	if math.Abs(v.TotalGlobal-2.25) > 1e-9 {
		t.Errorf("TotalGlobal = %v, want 2.25", v.TotalGlobal)
	}
	if s.Frames() != 1 {
		t.Errorf("Frames() = %d, want 1", s.Frames())
	}
}

func TestSessionFollowsScene(t *testing.T) {
	s := newSession(t, testConfig())
	ctx := context.Background()

	if _, _, err := s.Frame(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	s.Scene().Remove("mini")
	huge := scene.NewCamera("huge", 8192, 64, scene.WithLayers(1))
	if err := s.Scene().Add(huge); err != nil {
		t.Fatal(err)
	}

	reports, v, err := s.Frame(ctx, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if s.Registry().Len() != 2 || len(v.Rows) != 2 {
		t.Fatalf("Len() = %d rows = %d, want 2 2", s.Registry().Len(), len(v.Rows))
	}
	for _, r := range reports {
		if r.Camera == "huge" && !errors.Is(r.Err, overdraw.ErrResourceExhausted) {
			t.Errorf("huge err = %v, want ErrResourceExhausted", r.Err)
		}
	}
}

func TestSessionComputeMode(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.Compute = true
	s := newSession(t, cfg)

	v, err := s.Run(context.Background(), 3, 16*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v.Rows[0].Local-2) > 1e-9 {
		t.Errorf("main local = %v, want 2", v.Rows[0].Local)
	}
	main, _ := s.Scene().Camera("main")
	if !main.Enabled() {
		t.Error("source camera should stay enabled in compute mode")
	}
}

func TestSessionResetAndRun(t *testing.T) {
	s := newSession(t, testConfig())
	if _, err := s.Run(context.Background(), 5, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	m, _ := s.Registry().Monitor("main")
	if m.Stats().Frames != 5 {
		t.Errorf("Frames = %d, want 5", m.Stats().Frames)
	}
	s.Reset()
	if st := m.Stats(); st.Frames != 0 || st.MaxRatio != 0 {
		t.Errorf("Stats after Reset = %+v, want cleared", st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx, 1, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("Run(canceled) = %v, want context.Canceled", err)
	}
}

func TestSessionMetricsAndRecording(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Recording.Enabled = true
	cfg.Recording.Dir = t.TempDir()
	reg := prometheus.NewRegistry()

	s, err := New(cfg, WithRegisterer(reg))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if _, err := s.Run(context.Background(), 4, 16*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	dir := s.Recording()
	if dir == "" {
		t.Fatal("Recording() is empty with recording enabled")
	}

	if n, err := testutil.GatherAndCount(reg, "overdraw_last_ratio"); err != nil || n != 2 {
		t.Errorf("GatherAndCount(last_ratio) = %d, %v, want 2", n, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	rec, err := recording.Load(dir)
	if err != nil {
		t.Fatalf("recording.Load() = %v", err)
	}
	if len(rec.Frames) != 8 || len(rec.Snapshots) != 4 {
		t.Errorf("recorded %d frames %d snapshots, want 8 4", len(rec.Frames), len(rec.Snapshots))
	}
	sum := rec.Summary()
	if len(sum) != 2 || sum[0].Camera != "main" || math.Abs(sum[0].AverageRatio-2) > 1e-9 {
		t.Errorf("Summary() = %+v", sum)
	}
}

func TestSessionWithBackend(t *testing.T) {
	b := cpu.New()
	s := newSession(t, testConfig(), WithBackend(b))
	if s.Backend() != b {
		t.Error("WithBackend backend not used")
	}
	if _, _, err := s.Frame(context.Background(), time.Millisecond); err != nil {
		t.Fatal(err)
	}
}

func TestSessionErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.Backend = "nope"
	if _, err := New(cfg); err == nil {
		t.Error("New() with unknown backend should fail")
	}

	cfg = testConfig()
	cfg.Metrics.Enabled = true
	reg := prometheus.NewRegistry()
	newSession(t, cfg, WithRegisterer(reg))
	if _, err := New(cfg, WithRegisterer(reg)); err == nil {
		t.Error("New() registering metrics twice should fail")
	}
}
