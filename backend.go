package overdraw

import "context"

// Vertex is a clip-space position. X and Y are in [-1, 1] with +Y up;
// Z is depth in [0, 1] with 0 nearest.
type Vertex struct {
	X, Y, Z float32
}

// DrawCall is a batch of triangles drawn with one material state.
type DrawCall struct {
	// Triangles holds three vertices per triangle.
	Triangles []Vertex
	// DepthWrite is false for transparent materials: their fragments are
	// depth tested and counted but do not occlude later draws.
	DepthWrite bool
}

// ReplacementShader counts fragments. Render clears the color of target
// to clear and its depth to the far plane, then rasterizes every draw in
// order. Each fragment passing the depth test (less) adds FragmentWeight
// to its pixel.
type ReplacementShader interface {
	Render(ctx context.Context, target RenderTarget, clear Color, draws []DrawCall) error
}

// CaptureBuffer is a single-channel float render target with a depth
// companion, sized to a camera. It must be released explicitly.
type CaptureBuffer interface {
	RenderTarget
	Release() error
}

// ResultBuffer holds ResultSlots uint32 tile sums on the device.
type ResultBuffer interface {
	Slots() int
	// Upload overwrites the buffer with data, typically all zeros.
	Upload(ctx context.Context, data []uint32) error
	// Read copies the buffer into dst, blocking until device work is done.
	Read(ctx context.Context, dst []uint32) error
	Release() error
}

// Backend performs the device side of a measurement.
type Backend interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// Init acquires the device and loads both programs. It returns an
	// error wrapping ErrShaderUnavailable when either program is missing
	// or invalid.
	Init() error

	// Close releases all backend resources.
	Close()

	// ReplacementShader returns the fragment-counting shader.
	ReplacementShader() ReplacementShader

	NewCaptureBuffer(width, height int) (CaptureBuffer, error)
	NewResultBuffer(slots int) (ResultBuffer, error)

	// Reduce sums capture over grid, writing tile (tx, ty) into
	// Slot(tx, ty) of result. Slots outside the grid are untouched.
	Reduce(ctx context.Context, capture CaptureBuffer, result ResultBuffer, grid TileGrid) error
}
