// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cpu

import (
	"errors"
	"math"
)

var errReleased = errors.New("cpu: buffer already released")

// Capture is a host-memory R32Float color plane with a float depth plane.
type Capture struct {
	owner    *Backend
	width    int
	height   int
	color    []float32
	depth    []float32
	released bool
}

// Size implements overdraw.RenderTarget.
func (c *Capture) Size() (int, int) { return c.width, c.height }

// Release drops the planes. A second Release returns an error.
func (c *Capture) Release() error {
	if c.released {
		return errReleased
	}
	c.released = true
	c.color = nil
	c.depth = nil
	c.owner.live.Add(-1)
	return nil
}

// Released reports whether Release was called.
func (c *Capture) Released() bool { return c.released }

// At returns the accumulated weight at pixel (x, y).
func (c *Capture) At(x, y int) float32 { return c.color[y*c.width+x] }

// Fill sets every pixel to v. Used to stage known buffers.
func (c *Capture) Fill(v float32) {
	for i := range c.color {
		c.color[i] = v
	}
}

func (c *Capture) clear(v float32) {
	c.Fill(v)
	for i := range c.depth {
		c.depth[i] = 1
	}
}

// count recovers the fragment count at index i from the stored weight.
func (c *Capture) count(i int, weight float32) uint32 {
	return uint32(math.Round(float64(c.color[i]) / float64(weight)))
}
