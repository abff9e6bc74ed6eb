//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overdraw"
)

// errClearColor is returned when the capture pass is asked to clear to
// anything but transparent black. The R32Float target only accumulates
// from zero.
var errClearColor = errors.New("gpu: capture target must clear to transparent")

// Shader is the replacement shader: it records every draw call of the
// capture pass into one render pass on the capture textures.
type Shader struct {
	owner *Backend
}

var _ overdraw.ReplacementShader = (*Shader)(nil)

// Render implements overdraw.ReplacementShader. Draws with DepthWrite use
// the depth-writing variant of the pipeline; the rest only test depth.
// Trailing vertices that do not form a triangle are ignored.
func (s *Shader) Render(ctx context.Context, target overdraw.RenderTarget, clear overdraw.Color, draws []overdraw.DrawCall) error {
	b := s.owner
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReady(); err != nil {
		return err
	}
	c, err := b.captureOf(target)
	if err != nil {
		return err
	}
	if clear != overdraw.Transparent {
		return errClearColor
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.pipes.syncWeight(b.queue, overdraw.FragmentWeightValue())

	vertexData, ranges := buildVertices(draws)
	var vertBuf hal.Buffer
	if len(vertexData) > 0 {
		vertBuf, err = b.createAndUploadBuffer("overdraw_capture_verts", vertexData,
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		defer b.device.DestroyBuffer(vertBuf)
	}

	encoder, err := b.newEncoder("overdraw_capture")
	if err != nil {
		return err
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "overdraw_capture_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       c.colorView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              c.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})
	if vertBuf != nil {
		rp.SetBindGroup(0, b.pipes.replaceBind, nil)
		rp.SetVertexBuffer(0, vertBuf, 0)
		for _, r := range ranges {
			if r.depthWrite {
				rp.SetPipeline(b.pipes.depthWrite)
			} else {
				rp.SetPipeline(b.pipes.depthTest)
			}
			rp.Draw(r.count, 1, r.first, 0)
		}
	}
	rp.End()

	return b.submitAndWait(ctx, encoder)
}

// drawRange is one draw call's slice of the shared vertex buffer.
type drawRange struct {
	first      uint32
	count      uint32
	depthWrite bool
}

// buildVertices packs every whole triangle of draws into one vertex
// buffer, in draw order.
func buildVertices(draws []overdraw.DrawCall) ([]byte, []drawRange) {
	total := 0
	for _, d := range draws {
		total += len(d.Triangles) / 3 * 3
	}
	if total == 0 {
		return nil, nil
	}
	data := make([]byte, total*vertexStride)
	ranges := make([]drawRange, 0, len(draws))
	off := 0
	for _, d := range draws {
		n := len(d.Triangles) / 3 * 3
		if n == 0 {
			continue
		}
		ranges = append(ranges, drawRange{
			first:      uint32(off), //nolint:gosec // vertex count fits uint32
			count:      uint32(n),   //nolint:gosec // vertex count fits uint32
			depthWrite: d.DepthWrite,
		})
		for _, v := range d.Triangles[:n] {
			writeVertex(data[off*vertexStride:], v)
			off++
		}
	}
	return data, ranges
}

func writeVertex(buf []byte, v overdraw.Vertex) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z))
}
