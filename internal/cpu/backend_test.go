// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cpu

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/overdraw"
)

// quad returns two triangles covering the clip-space rectangle at depth z.
func quad(x0, y0, x1, y1, z float32, depthWrite bool) overdraw.DrawCall {
	return overdraw.DrawCall{
		Triangles: []overdraw.Vertex{
			{X: x0, Y: y0, Z: z}, {X: x1, Y: y0, Z: z}, {X: x1, Y: y1, Z: z},
			{X: x0, Y: y0, Z: z}, {X: x1, Y: y1, Z: z}, {X: x0, Y: y1, Z: z},
		},
		DepthWrite: depthWrite,
	}
}

func fullscreen(z float32, depthWrite bool) overdraw.DrawCall {
	return quad(-1, -1, 1, 1, z, depthWrite)
}

func newReadyBackend(t *testing.T) *Backend {
	t.Helper()
	b := New()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

// measure renders draws into a w x h capture and returns the host sum.
func measure(t *testing.T, b *Backend, w, h int, draws ...overdraw.DrawCall) (uint64, overdraw.TileGrid) {
	t.Helper()
	ctx := context.Background()
	capture, err := b.NewCaptureBuffer(w, h)
	if err != nil {
		t.Fatalf("NewCaptureBuffer(%d, %d) failed: %v", w, h, err)
	}
	defer capture.Release()
	result, err := b.NewResultBuffer(overdraw.ResultSlots)
	if err != nil {
		t.Fatalf("NewResultBuffer failed: %v", err)
	}
	defer result.Release()

	if err := b.ReplacementShader().Render(ctx, capture, overdraw.Transparent, draws); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	grid, err := overdraw.GridFor(w, h)
	if err != nil {
		t.Fatalf("GridFor(%d, %d) failed: %v", w, h, err)
	}
	if err := result.Upload(ctx, make([]uint32, overdraw.ResultSlots)); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := b.Reduce(ctx, capture, result, grid); err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	out := make([]uint32, overdraw.ResultSlots)
	if err := result.Read(ctx, out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return overdraw.SumSlots(out), grid
}

func TestFullscreenQuadShadesEachPixelOnce(t *testing.T) {
	b := newReadyBackend(t)
	capture, err := b.NewCaptureBuffer(64, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer capture.Release()

	err = b.ReplacementShader().Render(context.Background(), capture, overdraw.Transparent,
		[]overdraw.DrawCall{fullscreen(0.5, true)})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	c := capture.(*Capture)
	for y := range 64 {
		for x := range 64 {
			if got := c.count(y*64+x, overdraw.FragmentWeight); got != 1 {
				t.Fatalf("count(%d, %d) = %d, want 1", x, y, got)
			}
		}
	}
}

func TestMeasureDepthOrdering(t *testing.T) {
	tests := []struct {
		name      string
		draws     []overdraw.DrawCall
		wantRatio float64
	}{
		{"single layer", []overdraw.DrawCall{fullscreen(0.5, true)}, 1},
		{"back to front", []overdraw.DrawCall{fullscreen(0.8, true), fullscreen(0.2, true)}, 2},
		{"front to back", []overdraw.DrawCall{fullscreen(0.2, true), fullscreen(0.8, true)}, 1},
		{"transparent over opaque", []overdraw.DrawCall{fullscreen(0.8, true), fullscreen(0.2, false), fullscreen(0.1, false)}, 3},
		{"transparent behind opaque", []overdraw.DrawCall{fullscreen(0.2, true), fullscreen(0.8, false)}, 1},
		{"nothing drawn", nil, 0},
		{"at far plane", []overdraw.DrawCall{fullscreen(1, true)}, 0},
	}
	b := newReadyBackend(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, grid := measure(t, b, 128, 96, tt.draws...)
			if got := grid.Ratio(total); got != tt.wantRatio {
				t.Errorf("ratio = %v, want %v (total %d)", got, tt.wantRatio, total)
			}
		})
	}
}

func TestMeasureHalfCoverage(t *testing.T) {
	b := newReadyBackend(t)
	// Left half of a 64x64 target.
	total, grid := measure(t, b, 64, 64, quad(-1, -1, 0, 1, 0.5, true))
	if total != 32*64 {
		t.Errorf("total = %d, want %d", total, 32*64)
	}
	if got := grid.Ratio(total); got != 0.5 {
		t.Errorf("ratio = %v, want 0.5", got)
	}
}

func TestMeasureSkipsPartialTiles(t *testing.T) {
	b := newReadyBackend(t)
	total, grid := measure(t, b, 70, 40, fullscreen(0.5, true))
	if grid != (overdraw.TileGrid{X: 2, Y: 1}) {
		t.Fatalf("grid = %+v, want {2 1}", grid)
	}
	if total != 2*1024 {
		t.Errorf("total = %d, want 2048", total)
	}
	if got := grid.Ratio(total); got != 1 {
		t.Errorf("ratio = %v, want 1", got)
	}
}

func TestReduceWritesTileSlots(t *testing.T) {
	b := newReadyBackend(t)
	ctx := context.Background()
	capture, _ := b.NewCaptureBuffer(96, 64)
	defer capture.Release()
	result, _ := b.NewResultBuffer(overdraw.ResultSlots)
	defer result.Release()

	c := capture.(*Capture)
	c.Fill(overdraw.FragmentWeight)
	// Tile (2, 1) gets one extra fragment per pixel.
	for y := 32; y < 64; y++ {
		for x := 64; x < 96; x++ {
			c.color[y*96+x] += overdraw.FragmentWeight
		}
	}

	grid := overdraw.TileGrid{X: 3, Y: 2}
	if err := b.Reduce(ctx, capture, result, grid); err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	out := make([]uint32, overdraw.ResultSlots)
	if err := result.Read(ctx, out); err != nil {
		t.Fatal(err)
	}
	for ty := range 2 {
		for tx := range 3 {
			want := uint32(1024)
			if tx == 2 && ty == 1 {
				want = 2048
			}
			if got := out[overdraw.Slot(tx, ty)]; got != want {
				t.Errorf("slot(%d, %d) = %d, want %d", tx, ty, got, want)
			}
		}
	}
	if got := out[overdraw.Slot(3, 0)]; got != 0 {
		t.Errorf("slot outside grid = %d, want 0", got)
	}
}

func TestForeignBuffersRejected(t *testing.T) {
	a := newReadyBackend(t)
	b := newReadyBackend(t)
	capture, _ := a.NewCaptureBuffer(32, 32)
	defer capture.Release()
	result, _ := b.NewResultBuffer(overdraw.ResultSlots)
	defer result.Release()

	err := b.Reduce(context.Background(), capture, result, overdraw.TileGrid{X: 1, Y: 1})
	if !errors.Is(err, overdraw.ErrForeignBuffer) {
		t.Errorf("Reduce(foreign capture) = %v, want ErrForeignBuffer", err)
	}
	err = b.ReplacementShader().Render(context.Background(), capture, overdraw.Transparent, nil)
	if !errors.Is(err, overdraw.ErrForeignBuffer) {
		t.Errorf("Render(foreign capture) = %v, want ErrForeignBuffer", err)
	}
}

func TestBufferLifecycle(t *testing.T) {
	b := newReadyBackend(t)
	capture, err := b.NewCaptureBuffer(32, 32)
	if err != nil {
		t.Fatal(err)
	}
	result, err := b.NewResultBuffer(16)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.LiveBuffers(); got != 2 {
		t.Errorf("LiveBuffers() = %d, want 2", got)
	}
	if err := capture.Release(); err != nil {
		t.Errorf("first Release failed: %v", err)
	}
	if err := capture.Release(); err == nil {
		t.Error("second Release should fail")
	}
	if err := result.Release(); err != nil {
		t.Errorf("result Release failed: %v", err)
	}
	if got := b.LiveBuffers(); got != 0 {
		t.Errorf("LiveBuffers() = %d, want 0", got)
	}
}

func TestUninitializedBackend(t *testing.T) {
	b := New()
	if _, err := b.NewCaptureBuffer(32, 32); err == nil {
		t.Error("NewCaptureBuffer before Init should fail")
	}
	if _, err := b.NewResultBuffer(16); err == nil {
		t.Error("NewResultBuffer before Init should fail")
	}
}

func TestResultUploadSizeMismatch(t *testing.T) {
	b := newReadyBackend(t)
	result, _ := b.NewResultBuffer(16)
	defer result.Release()
	if err := result.Upload(context.Background(), make([]uint32, 8)); err == nil {
		t.Error("Upload with wrong length should fail")
	}
	if err := result.Read(context.Background(), make([]uint32, 32)); err == nil {
		t.Error("Read with wrong length should fail")
	}
}

func TestReduceEmptyGrid(t *testing.T) {
	b := newReadyBackend(t)
	capture, _ := b.NewCaptureBuffer(32, 32)
	defer capture.Release()
	result, _ := b.NewResultBuffer(overdraw.ResultSlots)
	defer result.Release()

	err := b.Reduce(context.Background(), capture, result, overdraw.TileGrid{})
	if !errors.Is(err, overdraw.ErrEmptyTileGrid) {
		t.Errorf("Reduce(empty grid) = %v, want ErrEmptyTileGrid", err)
	}
}
