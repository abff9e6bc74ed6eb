//go:build !nogpu

package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overdraw"
)

// Reduce implements overdraw.Backend. It copies the capture color texture
// into a pixel storage buffer and dispatches one work-group per tile of
// grid, each writing its fragment count into result. The result buffer
// must have been cleared by the caller.
func (b *Backend) Reduce(ctx context.Context, capture overdraw.CaptureBuffer, result overdraw.ResultBuffer, grid overdraw.TileGrid) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReady(); err != nil {
		return err
	}
	c, err := b.captureOf(capture)
	if err != nil {
		return err
	}
	r, err := b.resultOf(result)
	if err != nil {
		return err
	}
	if grid.X <= 0 || grid.Y <= 0 {
		return overdraw.ErrEmptyTileGrid
	}
	if grid.X > overdraw.ResultDim || grid.Y > overdraw.ResultDim ||
		grid.ProcessedWidth() > c.width || grid.ProcessedHeight() > c.height {
		return fmt.Errorf("%w: grid %dx%d on %dx%d capture", overdraw.ErrResourceExhausted, grid.X, grid.Y, c.width, c.height)
	}
	if r.slots < overdraw.ResultSlots {
		return fmt.Errorf("gpu: result buffer has %d slots, need %d", r.slots, overdraw.ResultSlots)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w, h := uint32(c.width), uint32(c.height) //nolint:gosec // validated positive
	// WebGPU (and DX12) requires BytesPerRow aligned to 256 bytes.
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	pixelBufSize := uint64(alignedBytesPerRow) * uint64(h)

	pixelBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overdraw_reduce_pixels", Size: pixelBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create pixel buffer: %w", err)
	}
	defer b.device.DestroyBuffer(pixelBuf)

	params := makeReduceParams(alignedBytesPerRow/4, overdraw.ResultDim, overdraw.FragmentWeightValue())
	paramsBuf, err := b.createAndUploadBuffer("overdraw_reduce_params", params,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer b.device.DestroyBuffer(paramsBuf)

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "overdraw_reduce_bind", Layout: b.pipes.reduceBindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: pixelBuf.NativeHandle(), Offset: 0, Size: pixelBufSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: r.buf.NativeHandle(), Offset: 0, Size: r.size()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create reduce bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bg)

	encoder, err := b.newEncoder("overdraw_reduce")
	if err != nil {
		return err
	}

	// The capture pass left the color texture as a render attachment.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(c.colorTex, pixelBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: c.colorTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "overdraw_reduce_pass"})
	pass.SetPipeline(b.pipes.reduce)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32(grid.X), uint32(grid.Y), 1) //nolint:gosec // bounded by ResultDim
	pass.End()

	if err := b.submitAndWait(ctx, encoder); err != nil {
		return err
	}
	slogger().Debug("gpu: reduction dispatched", "tiles_x", grid.X, "tiles_y", grid.Y)
	return nil
}
