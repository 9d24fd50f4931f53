package world

import (
	"testing"

	"github.com/udisondev/coopsim/internal/model"
)

func TestCoordToCell(t *testing.T) {
	tests := []struct {
		name string
		p    model.Vec2
		want cellKey
	}{
		{name: "origin", p: model.V(0, 0), want: cellKey{0, 0}},
		{name: "inside first cell", p: model.V(63.9, 10), want: cellKey{0, 0}},
		{name: "second cell", p: model.V(64, 128), want: cellKey{1, 2}},
		{name: "negative", p: model.V(-1, -65), want: cellKey{-1, -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoordToCell(tt.p); got != tt.want {
				t.Errorf("CoordToCell(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestObjectIDGenerator_Ranges(t *testing.T) {
	g := NewObjectIDGenerator()

	kinds := []model.Kind{model.KindPlayer, model.KindNPC, model.KindProjectile, model.KindInteractable}
	for _, k := range kinds {
		id := g.Next(k)
		if got := KindOf(id); got != k {
			t.Errorf("KindOf(Next(%s)) = %s", k, got)
		}
	}

	if KindOf(0) != 0 {
		t.Error("KindOf(0) should be unknown")
	}
}
