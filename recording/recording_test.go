package recording

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/overdraw"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(16 * time.Millisecond)
		return t
	}
}

func newWriter(t *testing.T) (*Writer, Manifest) {
	t.Helper()
	w, m, err := NewWriter(t.TempDir(), Session{
		Name:         "bench run!",
		Backend:      "software",
		ScreenWidth:  1024,
		ScreenHeight: 768,
		SamplePeriod: time.Second,
	}, fixedClock())
	if err != nil {
		t.Fatalf("NewWriter() = %v", err)
	}
	return w, m
}

func TestNewWriterLayout(t *testing.T) {
	w, m := newWriter(t)
	defer w.Close()

	if base := filepath.Base(w.Dir()); !strings.HasPrefix(base, "benchrun-20260301T") {
		t.Errorf("Dir() = %q, want cleaned name and timestamp", base)
	}
	for _, name := range []string{manifestFile, samplesFile, framesFile} {
		if _, err := os.Stat(filepath.Join(w.Dir(), name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	if m.Version != Version || m.SamplePeriodMs != 1000 || m.Backend != "software" {
		t.Errorf("Manifest = %+v", m)
	}
}

func TestNewWriterRequiresRoot(t *testing.T) {
	if _, _, err := NewWriter("", Session{}, nil); err == nil {
		t.Error("NewWriter(\"\") should fail")
	}
}

func TestRoundTrip(t *testing.T) {
	w, _ := newWriter(t)

	for frame := uint64(1); frame <= 3; frame++ {
		reports := []overdraw.FrameReport{
			{Camera: "main", Result: overdraw.FrameResult{Fragments: frame * 1000, Ratio: float64(frame), Width: 64, Height: 64}},
			{Camera: "mini", Err: overdraw.ErrEmptyTileGrid},
		}
		if err := w.AppendFrame(frame, reports); err != nil {
			t.Fatalf("AppendFrame(%d) = %v", frame, err)
		}
		stats := []overdraw.Stats{{Camera: "main", Active: true, LastRatio: float64(frame), Frames: int(frame)}}
		if err := w.AppendSnapshot(frame, stats); err != nil {
			t.Fatalf("AppendSnapshot(%d) = %v", frame, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := w.AppendFrame(4, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("AppendFrame after Close = %v, want ErrClosed", err)
	}

	rec, err := Load(w.Dir())
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if rec.Manifest.ScreenWidth != 1024 {
		t.Errorf("ScreenWidth = %d, want 1024", rec.Manifest.ScreenWidth)
	}
	if len(rec.Frames) != 6 {
		t.Fatalf("len(Frames) = %d, want 6", len(rec.Frames))
	}
	f := rec.Frames[4]
	if f.Frame != 3 || f.Camera != "main" || f.Fragments != 3000 || f.Ratio != 3 || f.Width != 64 || f.Failed {
		t.Errorf("Frames[4] = %+v", f)
	}
	if !rec.Frames[5].Failed || rec.Frames[5].Camera != "mini" {
		t.Errorf("Frames[5] = %+v, want failed mini", rec.Frames[5])
	}
	if len(rec.Snapshots) != 3 || rec.Snapshots[2].Frame != 3 {
		t.Fatalf("Snapshots = %+v", rec.Snapshots)
	}
	if last := rec.Last(); len(last) != 1 || last[0].Frames != 3 {
		t.Errorf("Last() = %+v", last)
	}

	// Loading through the manifest path works too.
	if _, err := Load(filepath.Join(w.Dir(), manifestFile)); err != nil {
		t.Errorf("Load(manifest) = %v", err)
	}
}

func TestSummary(t *testing.T) {
	rec := &Recording{Frames: []Frame{
		{Camera: "b", Ratio: 1, Fragments: 10},
		{Camera: "a", Ratio: 2, Fragments: 20},
		{Camera: "a", Ratio: 4, Fragments: 40},
		{Camera: "a", Failed: true},
	}}
	got := rec.Summary()
	if len(got) != 2 || got[0].Camera != "a" {
		t.Fatalf("Summary() = %+v", got)
	}
	a := got[0]
	if a.Frames != 2 || a.Failed != 1 || a.AverageRatio != 3 || a.MaxRatio != 4 || a.Fragments != 60 {
		t.Errorf("a = %+v", a)
	}
	if (&Recording{}).Last() != nil {
		t.Error("Last() of empty recording should be nil")
	}
}

func TestFrameCodec(t *testing.T) {
	in := Frame{
		Frame:      7,
		CapturedAt: time.Unix(0, 123456789).UTC(),
		Camera:     "main",
		Fragments:  1 << 40,
		Ratio:      2.5,
		Width:      1920,
		Height:     1080,
		Failed:     true,
	}
	buf := encodeFrame(nil, in)
	out, err := decodeFrame(buf[4:])
	if err != nil {
		t.Fatalf("decodeFrame() = %v", err)
	}
	if out != in {
		t.Errorf("decodeFrame() = %+v, want %+v", out, in)
	}
	if _, err := decodeFrame(buf[4:10]); err == nil {
		t.Error("decodeFrame() of short record should fail")
	}
	if _, err := decodeFrame(buf[4 : len(buf)-1]); err == nil {
		t.Error("decodeFrame() with truncated id should fail")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("Load(\"\") should fail")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifestFile), []byte(`{"version": 9}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "unsupported manifest version") {
		t.Errorf("Load() = %v, want version error", err)
	}
}
