// Package geo holds the static geometry of an instance: bounds, solid
// obstacles, line of sight and grid pathfinding around obstacles.
// A Geometry is built once per template and is read-only afterwards,
// so it is safe for concurrent use.
package geo

import (
	"math"

	"github.com/udisondev/coopsim/internal/model"
)

// DefaultCellSize is the edge of one LOS/pathfinding cell in world units.
const DefaultCellSize = 8.0

// Geometry is the static collision geometry of one instance.
type Geometry struct {
	bounds    model.Rect
	obstacles []model.Rect
	cellSize  float64
	cols      int32
	rows      int32
	// solid[y*cols+x] — ячейка пересекается с препятствием.
	solid []bool
}

// New rasterizes obstacles into a cell grid covering bounds.
func New(bounds model.Rect, obstacles []model.Rect, cellSize float64) *Geometry {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	g := &Geometry{
		bounds:    bounds,
		obstacles: obstacles,
		cellSize:  cellSize,
		cols:      int32(math.Ceil(bounds.Width() / cellSize)),
		rows:      int32(math.Ceil(bounds.Height() / cellSize)),
	}
	if g.cols < 1 {
		g.cols = 1
	}
	if g.rows < 1 {
		g.rows = 1
	}
	g.solid = make([]bool, int(g.cols)*int(g.rows))

	for _, o := range obstacles {
		lo := g.cellOf(o.Min)
		hi := g.cellOf(o.Max)
		for cy := lo.y; cy <= hi.y; cy++ {
			for cx := lo.x; cx <= hi.x; cx++ {
				if g.cellRect(cx, cy).Overlaps(o) {
					g.solid[cy*g.cols+cx] = true
				}
			}
		}
	}
	return g
}

// Bounds returns the instance bounds.
func (g *Geometry) Bounds() model.Rect { return g.bounds }

// Obstacles returns the solid rectangles.
func (g *Geometry) Obstacles() []model.Rect { return g.obstacles }

// Inside reports whether the whole box r lies within bounds.
func (g *Geometry) Inside(r model.Rect) bool {
	return g.bounds.Contains(r.Min) && g.bounds.Contains(r.Max)
}

// Blocks reports whether box r overlaps any obstacle interior.
func (g *Geometry) Blocks(r model.Rect) bool {
	for _, o := range g.obstacles {
		if o.Overlaps(r) {
			return true
		}
	}
	return false
}

// SegmentBlocked reports whether the segment a→b passes through an obstacle.
func (g *Geometry) SegmentBlocked(a, b model.Vec2) bool {
	for _, o := range g.obstacles {
		if o.SegmentIntersects(a, b) {
			return true
		}
	}
	return false
}

// CanSeeTarget checks line of sight between two world positions by tracing
// the grid cells between them. No obstacles means clear LOS.
func (g *Geometry) CanSeeTarget(from, to model.Vec2) bool {
	if len(g.obstacles) == 0 {
		return true
	}
	s := g.cellOf(from)
	e := g.cellOf(to)

	it := NewLineIterator(s.x, s.y, e.x, e.y)
	for it.Next() {
		if g.solidAt(it.X(), it.Y()) {
			return false
		}
	}
	return true
}

type cell struct {
	x, y int32
}

// cellOf returns the grid cell containing p, clamped to the grid.
func (g *Geometry) cellOf(p model.Vec2) cell {
	cx := int32(math.Floor((p.X - g.bounds.Min.X) / g.cellSize))
	cy := int32(math.Floor((p.Y - g.bounds.Min.Y) / g.cellSize))
	return cell{x: clamp32(cx, 0, g.cols-1), y: clamp32(cy, 0, g.rows-1)}
}

func (g *Geometry) cellRect(cx, cy int32) model.Rect {
	minX := g.bounds.Min.X + float64(cx)*g.cellSize
	minY := g.bounds.Min.Y + float64(cy)*g.cellSize
	return model.R(minX, minY, minX+g.cellSize, minY+g.cellSize)
}

func (g *Geometry) cellCenter(cx, cy int32) model.Vec2 {
	return g.cellRect(cx, cy).Center()
}

func (g *Geometry) solidAt(cx, cy int32) bool {
	if cx < 0 || cy < 0 || cx >= g.cols || cy >= g.rows {
		return true
	}
	return g.solid[cy*g.cols+cx]
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
