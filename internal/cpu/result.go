package cpu

import (
	"context"
	"fmt"
)

// Result is a host-memory tile sum buffer.
type Result struct {
	owner    *Backend
	slots    []uint32
	released bool
}

// Slots returns the buffer length.
func (r *Result) Slots() int { return len(r.slots) }

// Upload copies data into the buffer.
func (r *Result) Upload(_ context.Context, data []uint32) error {
	if r.released {
		return errReleased
	}
	if len(data) != len(r.slots) {
		return fmt.Errorf("cpu: upload %d slots into %d", len(data), len(r.slots))
	}
	copy(r.slots, data)
	return nil
}

// Read copies the buffer into dst.
func (r *Result) Read(_ context.Context, dst []uint32) error {
	if r.released {
		return errReleased
	}
	if len(dst) != len(r.slots) {
		return fmt.Errorf("cpu: read %d slots into %d", len(r.slots), len(dst))
	}
	copy(dst, r.slots)
	return nil
}

// Release drops the buffer.
func (r *Result) Release() error {
	if r.released {
		return errReleased
	}
	r.released = true
	r.slots = nil
	r.owner.live.Add(-1)
	return nil
}
