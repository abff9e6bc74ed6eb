// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cpu implements the overdraw device side in host memory: a
// triangle rasterizer standing in for the replacement shader and a tiled
// reduction standing in for the compute pass. Results match the GPU
// backend bit for bit on whole tiles.
package cpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/internal/parallel"
)

// Name is the registry name of this backend.
const Name = "software"

var errNotInitialized = errors.New("cpu: backend not initialized")

// Backend implements overdraw.Backend on the CPU.
type Backend struct {
	mu     sync.Mutex
	ready  bool
	log    atomic.Pointer[slog.Logger]
	live   atomic.Int64 // buffers not yet released
	shader *Shader
	pool   *parallel.Pool // tile-row workers, started by Init
}

var _ overdraw.Backend = (*Backend)(nil)

// New returns an uninitialized software backend.
func New() *Backend {
	b := &Backend{}
	b.shader = &Shader{owner: b}
	b.log.Store(overdraw.Logger())
	return b
}

// Name implements overdraw.Backend.
func (b *Backend) Name() string { return Name }

// SetLogger sets the backend logger.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = overdraw.Logger()
	}
	b.log.Store(l)
}

func (b *Backend) logger() *slog.Logger { return b.log.Load() }

// Init implements overdraw.Backend.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = true
	if b.pool == nil {
		b.pool = parallel.NewPool(0)
	}
	b.logger().Info("overdraw: software backend initialized")
	return nil
}

// Close implements overdraw.Backend.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.live.Load(); n > 0 {
		b.logger().Warn("overdraw: software backend closed with live buffers", "count", n)
	}
	b.ready = false
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
}

// LiveBuffers returns the number of allocated, unreleased buffers.
func (b *Backend) LiveBuffers() int { return int(b.live.Load()) }

func (b *Backend) checkReady() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return errNotInitialized
	}
	return nil
}

// ReplacementShader implements overdraw.Backend.
func (b *Backend) ReplacementShader() overdraw.ReplacementShader { return b.shader }

// NewCaptureBuffer implements overdraw.Backend.
func (b *Backend) NewCaptureBuffer(width, height int) (overdraw.CaptureBuffer, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("cpu: invalid capture size %dx%d", width, height)
	}
	n := width * height
	c := &Capture{
		owner:  b,
		width:  width,
		height: height,
		color:  make([]float32, n),
		depth:  make([]float32, n),
	}
	c.clear(0)
	b.live.Add(1)
	return c, nil
}

// NewResultBuffer implements overdraw.Backend.
func (b *Backend) NewResultBuffer(slots int) (overdraw.ResultBuffer, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	if slots <= 0 {
		return nil, fmt.Errorf("cpu: invalid result size %d", slots)
	}
	b.live.Add(1)
	return &Result{owner: b, slots: make([]uint32, slots)}, nil
}

// Reduce implements overdraw.Backend. Tile rows are summed on the
// backend's worker pool, one row per task.
func (b *Backend) Reduce(ctx context.Context, capture overdraw.CaptureBuffer, result overdraw.ResultBuffer, grid overdraw.TileGrid) error {
	c, ok := capture.(*Capture)
	if !ok || c.owner != b {
		return overdraw.ErrForeignBuffer
	}
	r, ok := result.(*Result)
	if !ok || r.owner != b {
		return overdraw.ErrForeignBuffer
	}
	if c.released || r.released {
		return errReleased
	}
	if grid.X <= 0 || grid.Y <= 0 {
		return overdraw.ErrEmptyTileGrid
	}
	if grid.X > overdraw.ResultDim || grid.Y > overdraw.ResultDim {
		return overdraw.ErrResourceExhausted
	}
	if grid.ProcessedWidth() > c.width || grid.ProcessedHeight() > c.height {
		return fmt.Errorf("cpu: grid %dx%d exceeds capture %dx%d", grid.X, grid.Y, c.width, c.height)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	weight := overdraw.FragmentWeightValue()
	b.logger().Debug("overdraw: software reduce", "tiles_x", grid.X, "tiles_y", grid.Y)

	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()
	if pool == nil {
		return errNotInitialized
	}
	return pool.Run(ctx, grid.Y, func(ty int) {
		for tx := range grid.X {
			r.slots[overdraw.Slot(tx, ty)] = sumTile(c, tx, ty, weight)
		}
	})
}

// sumTile adds the per-pixel counts of one tile. Counts wrap at 2^32 as
// the GPU's uint32 atomics do.
func sumTile(c *Capture, tx, ty int, weight float32) uint32 {
	var sum uint32
	x0, y0 := tx*overdraw.TileSize, ty*overdraw.TileSize
	for y := y0; y < y0+overdraw.TileSize; y++ {
		row := y * c.width
		for x := x0; x < x0+overdraw.TileSize; x++ {
			sum += c.count(row+x, weight)
		}
	}
	return sum
}
