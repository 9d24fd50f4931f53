package world

import (
	"math"

	"github.com/udisondev/coopsim/internal/model"
)

// Grid constants for the per-instance blocker index.
const (
	// CellSize is the edge of one grid cell in world units.
	// Larger than any entity box so a box touches at most 2×2 cells.
	CellSize = 64.0
)

type cellKey struct {
	cx, cy int32
}

// CoordToCell converts a world coordinate to a cell key.
func CoordToCell(p model.Vec2) cellKey {
	return cellKey{
		cx: int32(math.Floor(p.X / CellSize)),
		cy: int32(math.Floor(p.Y / CellSize)),
	}
}

// cellsOverlapping calls fn for every cell that r touches.
func cellsOverlapping(r model.Rect, fn func(cellKey)) {
	lo := CoordToCell(r.Min)
	hi := CoordToCell(r.Max)
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cy := lo.cy; cy <= hi.cy; cy++ {
			fn(cellKey{cx: cx, cy: cy})
		}
	}
}
