package overdraw

import (
	"errors"
	"math"
	"testing"
)

func TestGridFor(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		want    TileGrid
		wantErr error
	}{
		{"exact", 64, 64, TileGrid{2, 2}, nil},
		{"partial edge tiles", 100, 70, TileGrid{3, 2}, nil},
		{"hd", 1024, 768, TileGrid{32, 24}, nil},
		{"full hd", 1920, 1080, TileGrid{60, 33}, nil},
		{"largest", 4096, 4096, TileGrid{128, 128}, nil},
		{"too wide", 4128, 32, TileGrid{129, 1}, ErrResourceExhausted},
		{"too tall", 32, 8192, TileGrid{1, 256}, ErrResourceExhausted},
		{"smaller than tile", 31, 600, TileGrid{0, 18}, ErrEmptyTileGrid},
		{"zero", 0, 0, TileGrid{0, 0}, ErrEmptyTileGrid},
		{"negative", -5, 64, TileGrid{0, 2}, ErrEmptyTileGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GridFor(tt.w, tt.h)
			if got != tt.want {
				t.Errorf("GridFor(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GridFor(%d, %d) err = %v, want %v", tt.w, tt.h, err, tt.wantErr)
			}
		})
	}
}

func TestGridHD(t *testing.T) {
	g, err := GridFor(1024, 768)
	if err != nil {
		t.Fatal(err)
	}
	if g.Tiles() != 768 {
		t.Errorf("Tiles() = %d, want 768", g.Tiles())
	}
	if g.ProcessedArea() != 1024*768 {
		t.Errorf("ProcessedArea() = %d, want %d", g.ProcessedArea(), 1024*768)
	}
}

func TestRatioUnitCount(t *testing.T) {
	// Every pixel shaded exactly once.
	g := TileGrid{X: 4, Y: 3}
	slots := make([]uint32, ResultSlots)
	for ty := range g.Y {
		for tx := range g.X {
			slots[Slot(tx, ty)] = TileSize * TileSize
		}
	}
	if got := g.Ratio(SumSlots(slots)); got != 1.0 {
		t.Errorf("Ratio() = %v, want 1.0", got)
	}
}

func TestRatioEmptyGrid(t *testing.T) {
	if got := (TileGrid{}).Ratio(1000); got != 0 {
		t.Errorf("Ratio() on empty grid = %v, want 0", got)
	}
}

func TestSlotLayout(t *testing.T) {
	if Slot(0, 0) != 0 || Slot(5, 0) != 5 || Slot(0, 1) != ResultDim || Slot(127, 127) != ResultSlots-1 {
		t.Error("Slot must be row-major with stride ResultDim")
	}
}

func TestSumSlotsDoesNotWrap(t *testing.T) {
	slots := make([]uint32, ResultSlots)
	for i := range slots {
		slots[i] = math.MaxUint32
	}
	want := uint64(math.MaxUint32) * ResultSlots
	if got := SumSlots(slots); got != want {
		t.Errorf("SumSlots() = %d, want %d", got, want)
	}
}

func TestFragmentWeight(t *testing.T) {
	if FragmentWeight != 1.0/1024 {
		t.Errorf("FragmentWeight = %v, want 1/1024", FragmentWeight)
	}
	if MaxCaptureSize != 4096 {
		t.Errorf("MaxCaptureSize = %d, want 4096", MaxCaptureSize)
	}
}
