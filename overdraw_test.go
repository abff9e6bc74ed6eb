package overdraw_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/backend"
	"github.com/gogpu/overdraw/scene"
)

func softwareBackend(t *testing.T) overdraw.Backend {
	t.Helper()
	b, err := backend.Init(backend.Software)
	if err != nil {
		t.Fatalf("backend.Init(software) = %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestEndToEndRegistry(t *testing.T) {
	b := softwareBackend(t)
	main := scene.NewCamera("main", 1024, 768, scene.WithPrimary(), scene.WithLayers(2),
		scene.WithQuads(scene.Quad{Name: "hud", X0: -1, Y0: 0, X1: 1, Y1: 1, Depth: 0.1}))
	mini := scene.NewCamera("mini", 256, 256, scene.WithQuads(scene.FullScreen("map", 0.5, true)))
	sc := scene.New(main, mini)

	r := overdraw.NewRegistry(b, overdraw.WithMonitorOptions(overdraw.WithSamplePeriod(100*time.Millisecond)))
	defer r.Close()

	ctx := context.Background()
	for range 10 {
		if err := r.Sync(sc.Cameras()); err != nil {
			t.Fatal(err)
		}
		for _, rep := range r.Frame(ctx, 16*time.Millisecond) {
			if rep.Err != nil {
				t.Fatalf("camera %s: %v", rep.Camera, rep.Err)
			}
		}
	}

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot()) = %d, want 2", len(snap))
	}
	// Two full layers plus a half-screen HUD.
	if got := snap[0].LastRatio; math.Abs(got-2.5) > 1e-9 {
		t.Errorf("main ratio = %v, want 2.5", got)
	}
	if got := snap[1].LastRatio; math.Abs(got-1) > 1e-9 {
		t.Errorf("mini ratio = %v, want 1", got)
	}
	if snap[0].Flushes != 1 {
		t.Errorf("main flushes = %d, want 1 after 160ms at 100ms period", snap[0].Flushes)
	}
	if !main.Enabled() || main.Target() != nil {
		t.Error("main camera state not restored after measurement")
	}

	// Resize, then destroy: the registry follows the scene.
	main.Resize(1920, 1080)
	if err := r.Sync(sc.Cameras()); err != nil {
		t.Fatal(err)
	}
	reps := r.Frame(ctx, 16*time.Millisecond)
	if reps[0].Err != nil || reps[0].Result.Grid != (overdraw.TileGrid{X: 60, Y: 33}) {
		t.Errorf("after resize report = %+v", reps[0])
	}
	sc.Remove("mini")
	if err := r.Sync(sc.Cameras()); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after removal", r.Len())
	}
}

func TestEndToEndOversize(t *testing.T) {
	b := softwareBackend(t)
	cam := scene.NewCamera("wall", overdraw.MaxCaptureSize+overdraw.TileSize, 64, scene.WithLayers(1))
	m, err := overdraw.NewMonitor(b, cam)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Measure(context.Background()); !errors.Is(err, overdraw.ErrResourceExhausted) {
		t.Errorf("Measure() = %v, want ErrResourceExhausted", err)
	}
	if st := m.Stats(); st.Rejected != 1 || st.Frames != 0 {
		t.Errorf("Stats() = %+v, want one rejected frame", st)
	}
}
