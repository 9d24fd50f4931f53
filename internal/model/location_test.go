package model

import (
	"math"
	"testing"
)

func TestVec2_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Vec2
		want Vec2
	}{
		{name: "zero stays zero", in: V(0, 0), want: V(0, 0)},
		{name: "axis", in: V(5, 0), want: V(1, 0)},
		{name: "negative axis", in: V(0, -3), want: V(0, -1)},
		{name: "diagonal", in: V(3, 4), want: V(0.6, 0.8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestVec2_DistanceSquared(t *testing.T) {
	a := V(900, 500)
	b := V(975, 500)
	if got := a.DistanceSquared(b); got != 75*75 {
		t.Errorf("DistanceSquared() = %v, want %v", got, 75*75)
	}
	if got := a.Distance(b); got != 75 {
		t.Errorf("Distance() = %v, want 75", got)
	}
}

func TestRect_Contains(t *testing.T) {
	r := R(0, 0, 1000, 1000)

	tests := []struct {
		name string
		p    Vec2
		want bool
	}{
		{name: "inside", p: V(500, 500), want: true},
		{name: "on max edge", p: V(1000, 500), want: true},
		{name: "on min corner", p: V(0, 0), want: true},
		{name: "right of bounds", p: V(1000.01, 500), want: false},
		{name: "below bounds", p: V(10, -1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestRect_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{name: "disjoint", a: R(0, 0, 10, 10), b: R(20, 20, 30, 30), want: false},
		{name: "touching edge", a: R(0, 0, 10, 10), b: R(10, 0, 20, 10), want: false},
		{name: "intersecting", a: R(0, 0, 10, 10), b: R(5, 5, 15, 15), want: true},
		{name: "nested", a: R(0, 0, 10, 10), b: R(2, 2, 3, 3), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() not symmetric: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRect_SegmentIntersects(t *testing.T) {
	wall := R(100, 0, 110, 200)

	tests := []struct {
		name string
		a, b Vec2
		want bool
	}{
		{name: "crosses wall", a: V(50, 100), b: V(150, 100), want: true},
		{name: "stops short", a: V(50, 100), b: V(99, 100), want: false},
		{name: "passes above", a: V(50, 250), b: V(150, 250), want: false},
		{name: "vertical inside slab", a: V(105, -50), b: V(105, 50), want: true},
		{name: "vertical outside slab", a: V(95, -50), b: V(95, 50), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wall.SegmentIntersects(tt.a, tt.b); got != tt.want {
				t.Errorf("SegmentIntersects(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSegmentPointDistanceSquared(t *testing.T) {
	got := SegmentPointDistanceSquared(V(0, 0), V(10, 0), V(5, 3))
	if got != 9 {
		t.Errorf("SegmentPointDistanceSquared() = %v, want 9", got)
	}
	got = SegmentPointDistanceSquared(V(0, 0), V(10, 0), V(13, 4))
	if got != 25 {
		t.Errorf("SegmentPointDistanceSquared() past end = %v, want 25", got)
	}
}
