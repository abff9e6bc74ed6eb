//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overdraw"
)

// Result is the uint32 tile-sum buffer written by the reduction, with a
// MapRead staging buffer for readback.
type Result struct {
	owner   *Backend
	slots   int
	buf     hal.Buffer
	staging hal.Buffer

	released bool
}

var _ overdraw.ResultBuffer = (*Result)(nil)

// NewResultBuffer implements overdraw.Backend.
func (b *Backend) NewResultBuffer(slots int) (overdraw.ResultBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	if slots <= 0 {
		return nil, fmt.Errorf("gpu: invalid result size %d", slots)
	}
	size := uint64(slots) * 4

	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overdraw_result", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create result buffer: %w", err)
	}
	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overdraw_result_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		b.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("create result staging buffer: %w", err)
	}
	b.live.Add(1)
	return &Result{owner: b, slots: slots, buf: buf, staging: staging}, nil
}

// Slots implements overdraw.ResultBuffer.
func (r *Result) Slots() int { return r.slots }

func (r *Result) size() uint64 { return uint64(r.slots) * 4 }

// Upload writes data to the result buffer through the queue.
func (r *Result) Upload(ctx context.Context, data []uint32) error {
	if len(data) != r.slots {
		return fmt.Errorf("gpu: upload %d slots into %d-slot buffer", len(data), r.slots)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b := r.owner
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.released {
		return errReleased
	}
	b.queue.WriteBuffer(r.buf, 0, packSlots(data))
	return nil
}

// Read copies the result buffer to staging, waits for the GPU and decodes
// the slots into dst.
func (r *Result) Read(ctx context.Context, dst []uint32) error {
	if len(dst) != r.slots {
		return fmt.Errorf("gpu: read %d-slot buffer into %d slots", r.slots, len(dst))
	}
	b := r.owner
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.released {
		return errReleased
	}

	encoder, err := b.newEncoder("overdraw_readback")
	if err != nil {
		return err
	}
	encoder.CopyBufferToBuffer(r.buf, r.staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: r.size()},
	})
	if err := b.submitAndWait(ctx, encoder); err != nil {
		return err
	}

	raw := make([]byte, r.size())
	if err := b.queue.ReadBuffer(r.staging, 0, raw); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackSlots(raw, dst)
	return nil
}

// Release destroys both buffers.
func (r *Result) Release() error {
	b := r.owner
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.released {
		return errReleased
	}
	r.released = true
	if b.device != nil {
		b.device.DestroyBuffer(r.staging)
		b.device.DestroyBuffer(r.buf)
	}
	b.live.Add(-1)
	return nil
}

func (b *Backend) resultOf(result any) (*Result, error) {
	r, ok := result.(*Result)
	if !ok || r.owner != b {
		return nil, overdraw.ErrForeignBuffer
	}
	if r.released {
		return nil, errReleased
	}
	return r, nil
}

func packSlots(data []uint32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func unpackSlots(raw []byte, dst []uint32) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
}
