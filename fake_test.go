package overdraw

import (
	"context"
	"errors"
	"fmt"
)

// fakeCapture records how many layers were drawn into it.
type fakeCapture struct {
	w, h     int
	layers   int
	released bool
}

func (c *fakeCapture) Size() (int, int) { return c.w, c.h }

func (c *fakeCapture) Release() error {
	if c.released {
		return errors.New("double release")
	}
	c.released = true
	return nil
}

type fakeResult struct {
	slots    []uint32
	uploads  int
	dirty    bool // Upload saw a non-zero slot
	released bool
}

func (r *fakeResult) Slots() int { return len(r.slots) }

func (r *fakeResult) Upload(_ context.Context, data []uint32) error {
	r.uploads++
	for _, v := range data {
		if v != 0 {
			r.dirty = true
		}
	}
	copy(r.slots, data)
	return nil
}

func (r *fakeResult) Read(_ context.Context, dst []uint32) error {
	copy(dst, r.slots)
	return nil
}

func (r *fakeResult) Release() error {
	r.released = true
	return nil
}

type fakeShader struct{}

func (fakeShader) Render(_ context.Context, target RenderTarget, _ Color, draws []DrawCall) error {
	c, ok := target.(*fakeCapture)
	if !ok {
		return fmt.Errorf("fake shader: target %T", target)
	}
	c.layers = len(draws)
	return nil
}

// fakeBackend treats every drawn layer as one fragment per pixel.
type fakeBackend struct {
	captures  []*fakeCapture
	results   []*fakeResult
	reduces   int
	reduceErr error
	resultErr error // returned by NewResultBuffer
	resultTry int
}

func (b *fakeBackend) Name() string                        { return "fake" }
func (b *fakeBackend) Init() error                         { return nil }
func (b *fakeBackend) Close()                              {}
func (b *fakeBackend) ReplacementShader() ReplacementShader { return fakeShader{} }

func (b *fakeBackend) NewCaptureBuffer(w, h int) (CaptureBuffer, error) {
	c := &fakeCapture{w: w, h: h}
	b.captures = append(b.captures, c)
	return c, nil
}

func (b *fakeBackend) NewResultBuffer(slots int) (ResultBuffer, error) {
	b.resultTry++
	if b.resultErr != nil {
		return nil, b.resultErr
	}
	r := &fakeResult{slots: make([]uint32, slots)}
	b.results = append(b.results, r)
	return r, nil
}

func (b *fakeBackend) Reduce(_ context.Context, capture CaptureBuffer, result ResultBuffer, grid TileGrid) error {
	b.reduces++
	if b.reduceErr != nil {
		return b.reduceErr
	}
	c := capture.(*fakeCapture)
	r := result.(*fakeResult)
	for ty := range grid.Y {
		for tx := range grid.X {
			r.slots[Slot(tx, ty)] = uint32(c.layers * TileSize * TileSize)
		}
	}
	return nil
}

func (b *fakeBackend) live() int {
	n := 0
	for _, c := range b.captures {
		if !c.released {
			n++
		}
	}
	return n
}

// fakeCamera is a host camera whose scene is a stack of full-screen layers.
type fakeCamera struct {
	id      CameraID
	w, h    int
	layers  int
	primary bool
	dead    bool
	active  bool

	clearMode  ClearMode
	clearColor Color
	target     RenderTarget
	enabled    bool

	renders int
	// State observed inside RenderWithShader.
	seenMode    ClearMode
	seenColor   Color
	seenTarget  RenderTarget
	seenEnabled bool
	onRender    func()
	renderErr   error
}

func newFakeCamera(id string, w, h, layers int) *fakeCamera {
	return &fakeCamera{
		id:         CameraID(id),
		w:          w,
		h:          h,
		layers:     layers,
		active:     true,
		clearMode:  ClearSkybox,
		clearColor: Color{R: 0.2, G: 0.3, B: 0.4, A: 1},
		enabled:    true,
	}
}

func (c *fakeCamera) ID() CameraID               { return c.id }
func (c *fakeCamera) Name() string               { return string(c.id) }
func (c *fakeCamera) Alive() bool                { return !c.dead }
func (c *fakeCamera) Active() bool               { return c.active }
func (c *fakeCamera) Primary() bool              { return c.primary }
func (c *fakeCamera) PixelSize() (int, int)      { return c.w, c.h }
func (c *fakeCamera) ClearMode() ClearMode       { return c.clearMode }
func (c *fakeCamera) SetClearMode(m ClearMode)   { c.clearMode = m }
func (c *fakeCamera) ClearColor() Color          { return c.clearColor }
func (c *fakeCamera) SetClearColor(col Color)    { c.clearColor = col }
func (c *fakeCamera) Target() RenderTarget       { return c.target }
func (c *fakeCamera) SetTarget(t RenderTarget)   { c.target = t }
func (c *fakeCamera) Enabled() bool              { return c.enabled }
func (c *fakeCamera) SetEnabled(enabled bool)    { c.enabled = enabled }

func (c *fakeCamera) RenderWithShader(ctx context.Context, shader ReplacementShader) error {
	c.renders++
	c.seenMode, c.seenColor, c.seenTarget, c.seenEnabled = c.clearMode, c.clearColor, c.target, c.enabled
	if c.onRender != nil {
		c.onRender()
	}
	if c.renderErr != nil {
		return c.renderErr
	}
	return shader.Render(ctx, c.target, c.clearColor, make([]DrawCall, c.layers))
}

func (c *fakeCamera) CopyFrom(src Camera) {
	c.w, c.h = src.PixelSize()
	if s, ok := src.(*fakeCamera); ok {
		c.layers = s.layers
	}
}

// screenTarget stands in for a camera's normal output.
type screenTarget struct{ w, h int }

func (s screenTarget) Size() (int, int) { return s.w, s.h }
