package overdraw

import "fmt"

const (
	// TileSize is the side of a reduction tile in pixels. One GPU
	// work-group sums one tile.
	TileSize = 32

	// ResultDim is the side of the square result buffer in tiles.
	ResultDim = 128

	// ResultSlots is the number of uint32 slots in the result buffer.
	ResultSlots = ResultDim * ResultDim

	// MaxCaptureSize is the largest capture width or height whose tile
	// grid still fits the result buffer.
	MaxCaptureSize = TileSize * ResultDim

	// FragmentWeight is the value the replacement shader adds to the
	// capture buffer for every shaded fragment.
	FragmentWeight = 1.0 / (TileSize * TileSize)
)

// TileGrid is the number of whole tiles covering a capture buffer.
type TileGrid struct {
	X, Y int
}

// GridFor returns the tile grid for a capture buffer of w x h pixels.
// Partial edge tiles are dropped. A grid wider or taller than ResultDim
// returns ErrResourceExhausted; one with no tiles returns ErrEmptyTileGrid.
func GridFor(w, h int) (TileGrid, error) {
	g := TileGrid{X: max(w, 0) / TileSize, Y: max(h, 0) / TileSize}
	if g.X > ResultDim || g.Y > ResultDim {
		return g, fmt.Errorf("%w: %dx%d px needs %dx%d tiles, limit %d",
			ErrResourceExhausted, w, h, g.X, g.Y, ResultDim)
	}
	if g.X == 0 || g.Y == 0 {
		return g, ErrEmptyTileGrid
	}
	return g, nil
}

// Tiles returns the number of tiles in the grid.
func (g TileGrid) Tiles() int { return g.X * g.Y }

// ProcessedWidth returns the pixel width covered by whole tiles.
func (g TileGrid) ProcessedWidth() int { return g.X * TileSize }

// ProcessedHeight returns the pixel height covered by whole tiles.
func (g TileGrid) ProcessedHeight() int { return g.Y * TileSize }

// ProcessedArea returns the number of pixels covered by whole tiles.
func (g TileGrid) ProcessedArea() int { return g.ProcessedWidth() * g.ProcessedHeight() }

// Slot returns the result buffer index of tile (tx, ty).
func Slot(tx, ty int) int { return ty*ResultDim + tx }

// Ratio returns total fragments per processed pixel. An empty grid yields 0.
func (g TileGrid) Ratio(total uint64) float64 {
	area := g.ProcessedArea()
	if area == 0 {
		return 0
	}
	return float64(total) / float64(area)
}

// SumSlots adds every slot as uint64 so large per-tile counts never wrap.
func SumSlots(slots []uint32) uint64 {
	var total uint64
	for _, v := range slots {
		total += uint64(v)
	}
	return total
}
