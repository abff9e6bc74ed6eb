package scene

import "github.com/gogpu/overdraw"

// Quad is an axis-aligned rectangle in clip space at a constant depth.
// Opaque quads write depth; the rest are blended and only depth tested.
type Quad struct {
	Name           string
	X0, Y0, X1, Y1 float32
	Depth          float32
	Opaque         bool
}

// FullScreen returns a quad covering the whole view at depth.
func FullScreen(name string, depth float32, opaque bool) Quad {
	return Quad{Name: name, X0: -1, Y0: -1, X1: 1, Y1: 1, Depth: depth, Opaque: opaque}
}

// DrawCall returns the quad as two triangles.
func (q Quad) DrawCall() overdraw.DrawCall {
	z := q.Depth
	return overdraw.DrawCall{
		Triangles: []overdraw.Vertex{
			{X: q.X0, Y: q.Y0, Z: z}, {X: q.X1, Y: q.Y0, Z: z}, {X: q.X1, Y: q.Y1, Z: z},
			{X: q.X0, Y: q.Y0, Z: z}, {X: q.X1, Y: q.Y1, Z: z}, {X: q.X0, Y: q.Y1, Z: z},
		},
		DepthWrite: q.Opaque,
	}
}

// Area returns the fraction of the view the quad covers after clipping,
// in [0, 1].
func (q Quad) Area() float64 {
	w := clip(max(q.X0, q.X1)) - clip(min(q.X0, q.X1))
	h := clip(max(q.Y0, q.Y1)) - clip(min(q.Y0, q.Y1))
	return float64(w) * float64(h) / 4
}

func clip(v float32) float32 {
	return min(max(v, -1), 1)
}
