package model

import "math"

// Vec2 is a position or direction in world units.
// Value type, passed by value.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V builds a Vec2.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// LenSq returns the squared length (no sqrt for hot paths).
func (v Vec2) LenSq() float64 { return v.X*v.X + v.Y*v.Y }

func (v Vec2) Len() float64 { return math.Sqrt(v.LenSq()) }

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Normalize returns the unit vector in the direction of v, or zero for a zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// DistanceSquared returns the squared distance to another point.
func (v Vec2) DistanceSquared(o Vec2) float64 {
	return v.Sub(o).LenSq()
}

// Distance returns the euclidean distance to another point.
func (v Vec2) Distance(o Vec2) float64 {
	return math.Sqrt(v.DistanceSquared(o))
}

// Rect is an axis-aligned rectangle. Min is inclusive, Max is inclusive.
type Rect struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// R builds a Rect from corner coordinates.
func R(minX, minY, maxX, maxY float64) Rect {
	return Rect{Min: Vec2{X: minX, Y: minY}, Max: Vec2{X: maxX, Y: maxY}}
}

// Box returns the axis-aligned box of half-size half centered at c.
func Box(c Vec2, half float64) Rect {
	return Rect{Min: Vec2{X: c.X - half, Y: c.Y - half}, Max: Vec2{X: c.X + half, Y: c.Y + half}}
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Overlaps reports whether the interiors of r and o intersect.
// Rectangles that only touch along an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X < o.Max.X && o.Min.X < r.Max.X && r.Min.Y < o.Max.Y && o.Min.Y < r.Max.Y
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center returns the middle point of r.
func (r Rect) Center() Vec2 {
	return Vec2{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// SegmentIntersects reports whether the segment a→b crosses r (slab test).
func (r Rect) SegmentIntersects(a, b Vec2) bool {
	if r.Contains(a) || r.Contains(b) {
		return true
	}
	d := b.Sub(a)
	tMin, tMax := 0.0, 1.0
	for _, axis := range [2]struct{ p, d, lo, hi float64 }{
		{a.X, d.X, r.Min.X, r.Max.X},
		{a.Y, d.Y, r.Min.Y, r.Max.Y},
	} {
		if axis.d == 0 {
			if axis.p < axis.lo || axis.p > axis.hi {
				return false
			}
			continue
		}
		t1 := (axis.lo - axis.p) / axis.d
		t2 := (axis.hi - axis.p) / axis.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return true
}

// SegmentPointDistanceSquared returns the squared distance from p to the segment a→b.
func SegmentPointDistanceSquared(a, b, p Vec2) float64 {
	ab := b.Sub(a)
	l := ab.LenSq()
	if l == 0 {
		return p.DistanceSquared(a)
	}
	t := p.Sub(a).Dot(ab) / l
	t = math.Max(0, math.Min(1, t))
	return p.DistanceSquared(a.Add(ab.Scale(t)))
}
