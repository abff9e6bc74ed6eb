package cpu

import (
	"context"
	"math"

	"github.com/gogpu/overdraw"
)

// Shader is the software replacement shader. It rasterizes with pixel
// centers at half-integers and the top-left fill rule, so triangles
// sharing an edge never shade the same pixel twice.
type Shader struct {
	owner *Backend
}

var _ overdraw.ReplacementShader = (*Shader)(nil)

// Render implements overdraw.ReplacementShader.
func (s *Shader) Render(ctx context.Context, target overdraw.RenderTarget, clear overdraw.Color, draws []overdraw.DrawCall) error {
	c, ok := target.(*Capture)
	if !ok || c.owner != s.owner {
		return overdraw.ErrForeignBuffer
	}
	if c.released {
		return errReleased
	}
	weight := overdraw.FragmentWeightValue()
	c.clear(clear.R)

	for _, d := range draws {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := 0; i+2 < len(d.Triangles); i += 3 {
			c.rasterize(d.Triangles[i], d.Triangles[i+1], d.Triangles[i+2], d.DepthWrite, weight)
		}
	}
	return nil
}

type point struct{ x, y, z float64 }

// toPixel maps clip space (+Y up) to pixel space (+Y down).
func (c *Capture) toPixel(v overdraw.Vertex) point {
	return point{
		x: (float64(v.X) + 1) * 0.5 * float64(c.width),
		y: (1 - float64(v.Y)) * 0.5 * float64(c.height),
		z: float64(v.Z),
	}
}

func edge(a, b point, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft reports whether a->b is a top or left edge of a triangle with
// positive edge-function area in pixel space.
func topLeft(a, b point) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return (dy == 0 && dx > 0) || dy < 0
}

func inside(w float64, tl bool) bool {
	return w > 0 || (w == 0 && tl)
}

func (c *Capture) rasterize(va, vb, vc overdraw.Vertex, depthWrite bool, weight float32) {
	p0, p1, p2 := c.toPixel(va), c.toPixel(vb), c.toPixel(vc)
	area := edge(p0, p1, p2.x, p2.y)
	if area == 0 {
		return
	}
	if area < 0 {
		p1, p2 = p2, p1
		area = -area
	}

	minX := max(0, int(math.Floor(min(p0.x, p1.x, p2.x))))
	maxX := min(c.width-1, int(math.Ceil(max(p0.x, p1.x, p2.x))))
	minY := max(0, int(math.Floor(min(p0.y, p1.y, p2.y))))
	maxY := min(c.height-1, int(math.Ceil(max(p0.y, p1.y, p2.y))))

	tl0, tl1, tl2 := topLeft(p1, p2), topLeft(p2, p0), topLeft(p0, p1)

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(p1, p2, px, py)
			w1 := edge(p2, p0, px, py)
			w2 := edge(p0, p1, px, py)
			if !inside(w0, tl0) || !inside(w1, tl1) || !inside(w2, tl2) {
				continue
			}
			z := float32((w0*p0.z + w1*p1.z + w2*p2.z) / area)
			i := y*c.width + x
			if z >= c.depth[i] {
				continue
			}
			if depthWrite {
				c.depth[i] = z
			}
			c.color[i] += weight
		}
	}
}
