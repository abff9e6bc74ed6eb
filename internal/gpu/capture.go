//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overdraw"
)

// Capture is an R32Float color texture sized to a camera plus its
// depth/stencil companion.
type Capture struct {
	owner  *Backend
	width  int
	height int

	colorTex  hal.Texture
	colorView hal.TextureView
	depthTex  hal.Texture
	depthView hal.TextureView

	released bool
}

var _ overdraw.CaptureBuffer = (*Capture)(nil)

// NewCaptureBuffer implements overdraw.Backend.
func (b *Backend) NewCaptureBuffer(width, height int) (overdraw.CaptureBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gpu: invalid capture size %dx%d", width, height)
	}

	c := &Capture{owner: b, width: width, height: height}
	if err := c.create(b.device); err != nil {
		c.destroy(b.device)
		return nil, err
	}
	b.live.Add(1)
	slogger().Debug("gpu: capture textures created", "width", width, "height", height)
	return c, nil
}

func (c *Capture) create(device hal.Device) error {
	w, h := uint32(c.width), uint32(c.height) //nolint:gosec // validated positive
	var err error
	c.colorTex, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         "overdraw_capture_color",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        captureFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create capture texture: %w", err)
	}
	c.colorView, err = device.CreateTextureView(c.colorTex, &hal.TextureViewDescriptor{
		Label: "overdraw_capture_color_view",
	})
	if err != nil {
		return fmt.Errorf("create capture view: %w", err)
	}

	c.depthTex, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         "overdraw_capture_depth",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create capture depth texture: %w", err)
	}
	c.depthView, err = device.CreateTextureView(c.depthTex, &hal.TextureViewDescriptor{
		Label: "overdraw_capture_depth_view",
	})
	if err != nil {
		return fmt.Errorf("create capture depth view: %w", err)
	}
	return nil
}

func (c *Capture) destroy(device hal.Device) {
	if c.depthView != nil {
		device.DestroyTextureView(c.depthView)
		c.depthView = nil
	}
	if c.depthTex != nil {
		device.DestroyTexture(c.depthTex)
		c.depthTex = nil
	}
	if c.colorView != nil {
		device.DestroyTextureView(c.colorView)
		c.colorView = nil
	}
	if c.colorTex != nil {
		device.DestroyTexture(c.colorTex)
		c.colorTex = nil
	}
}

// Size implements overdraw.RenderTarget.
func (c *Capture) Size() (int, int) { return c.width, c.height }

// Release destroys both textures.
func (c *Capture) Release() error {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	if c.released {
		return errReleased
	}
	c.released = true
	if c.owner.device != nil {
		c.destroy(c.owner.device)
	}
	c.owner.live.Add(-1)
	return nil
}

// Released reports whether Release was called.
func (c *Capture) Released() bool {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	return c.released
}

// captureOf checks that target is a live capture of b. Callers hold b.mu.
func (b *Backend) captureOf(target any) (*Capture, error) {
	c, ok := target.(*Capture)
	if !ok || c.owner != b {
		return nil, overdraw.ErrForeignBuffer
	}
	if c.released {
		return nil, errReleased
	}
	return c, nil
}
