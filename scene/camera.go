package scene

import (
	"context"
	"errors"
	"slices"

	"github.com/gogpu/overdraw"
)

// ErrNoTarget is returned by RenderWithShader when the camera still
// renders to the screen: the scene has no screen to draw into.
var ErrNoTarget = errors.New("scene: camera has no render target")

// Camera is a host camera looking at a list of quads. It implements
// overdraw.Camera and overdraw.CameraCopier. A Camera is not safe for
// concurrent use.
type Camera struct {
	id      overdraw.CameraID
	name    string
	width   int
	height  int
	primary bool
	active  bool
	dead    bool

	clearMode  overdraw.ClearMode
	clearColor overdraw.Color
	target     overdraw.RenderTarget
	enabled    bool

	quads []Quad
}

var (
	_ overdraw.Camera       = (*Camera)(nil)
	_ overdraw.CameraCopier = (*Camera)(nil)
)

// CameraOption configures a Camera.
type CameraOption func(*Camera)

// WithPrimary marks the camera as the host's main camera.
func WithPrimary() CameraOption {
	return func(c *Camera) { c.primary = true }
}

// WithQuads adds quads to the camera's view.
func WithQuads(quads ...Quad) CameraOption {
	return func(c *Camera) { c.quads = append(c.quads, quads...) }
}

// WithLayers adds n full-screen transparent layers, so that the camera
// shades every pixel n times.
func WithLayers(n int) CameraOption {
	return func(c *Camera) {
		for range n {
			c.quads = append(c.quads, FullScreen("layer", 0.5, false))
		}
	}
}

// NewCamera returns an active, enabled camera of the given pixel size
// rendering to the screen with a skybox clear.
func NewCamera(name string, width, height int, opts ...CameraOption) *Camera {
	c := &Camera{
		id:        overdraw.CameraID(name),
		name:      name,
		width:     width,
		height:    height,
		active:    true,
		enabled:   true,
		clearMode: overdraw.ClearSkybox,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewComputeCamera returns a camera meant to be passed to
// overdraw.WithComputeCamera. It sees nothing until CopyFrom.
func NewComputeCamera(name string) *Camera {
	c := NewCamera(name, 0, 0)
	c.enabled = false
	return c
}

// ID returns the camera's identity, which is its name.
func (c *Camera) ID() overdraw.CameraID { return c.id }

// Name returns the configured camera name.
func (c *Camera) Name() string { return c.name }

// Alive reports whether the camera has not been destroyed.
func (c *Camera) Alive() bool { return !c.dead }

// Active reports whether the camera is live and takes part in the frame.
func (c *Camera) Active() bool { return c.active && !c.dead }

// Primary reports whether the camera renders the main view.
func (c *Camera) Primary() bool { return c.primary }

// PixelSize returns the output size in pixels.
func (c *Camera) PixelSize() (int, int) { return c.width, c.height }

// ClearMode returns how the camera clears its target before drawing.
func (c *Camera) ClearMode() overdraw.ClearMode { return c.clearMode }

// SetClearMode sets the clear mode.
func (c *Camera) SetClearMode(m overdraw.ClearMode) { c.clearMode = m }

// ClearColor returns the color used with overdraw.ClearSolidColor.
func (c *Camera) ClearColor() overdraw.Color { return c.clearColor }

// SetClearColor sets the solid clear color.
func (c *Camera) SetClearColor(col overdraw.Color) { c.clearColor = col }

// Target returns the bound render target. Nil means the screen.
func (c *Camera) Target() overdraw.RenderTarget { return c.target }

// SetTarget binds t as the render target.
func (c *Camera) SetTarget(t overdraw.RenderTarget) { c.target = t }

// Enabled reports whether the camera renders on its own this frame.
func (c *Camera) Enabled() bool { return c.enabled }

// SetEnabled turns the camera's own rendering on or off.
func (c *Camera) SetEnabled(enabled bool) { c.enabled = enabled }

// SetActive activates or deactivates the camera in the scene. Inactive
// cameras are dropped by overdraw.Registry.Sync.
func (c *Camera) SetActive(active bool) { c.active = active }

// Resize changes the output size, as a window resize would.
func (c *Camera) Resize(width, height int) {
	c.width, c.height = width, height
}

// Destroy ends the camera's life. It cannot be revived.
func (c *Camera) Destroy() { c.dead = true }

// Add appends quads to the view.
func (c *Camera) Add(quads ...Quad) { c.quads = append(c.quads, quads...) }

// Quads returns a copy of the view.
func (c *Camera) Quads() []Quad { return slices.Clone(c.quads) }

// CopyFrom mirrors src's output size and, for scene cameras, its view.
func (c *Camera) CopyFrom(src overdraw.Camera) {
	c.width, c.height = src.PixelSize()
	if s, ok := src.(*Camera); ok {
		c.quads = slices.Clone(s.quads)
	}
}

// RenderWithShader draws the view into the current target with shader.
// Opaque quads go first, front to back; transparent quads follow, back
// to front.
func (c *Camera) RenderWithShader(ctx context.Context, shader overdraw.ReplacementShader) error {
	if c.dead {
		return overdraw.ErrMissingTarget
	}
	if c.target == nil {
		return ErrNoTarget
	}
	clear := overdraw.Transparent
	if c.clearMode == overdraw.ClearSolidColor {
		clear = c.clearColor
	}
	return shader.Render(ctx, c.target, clear, c.DrawCalls())
}

// DrawCalls returns the view in submission order.
func (c *Camera) DrawCalls() []overdraw.DrawCall {
	ordered := slices.Clone(c.quads)
	slices.SortStableFunc(ordered, func(a, b Quad) int {
		switch {
		case a.Opaque != b.Opaque:
			if a.Opaque {
				return -1
			}
			return 1
		case a.Opaque:
			return cmpDepth(a.Depth, b.Depth)
		default:
			return cmpDepth(b.Depth, a.Depth)
		}
	})
	draws := make([]overdraw.DrawCall, len(ordered))
	for i, q := range ordered {
		draws[i] = q.DrawCall()
	}
	return draws
}

func cmpDepth(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
