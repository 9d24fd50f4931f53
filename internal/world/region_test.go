package world

import (
	"testing"

	"github.com/udisondev/coopsim/internal/model"
)

func TestPartition_ForEachOrder(t *testing.T) {
	s := NewStore()
	for range 5 {
		if err := s.Insert(newPlayer(s, "a", "", model.V(1, 1))); err != nil {
			t.Fatal(err)
		}
	}

	var prev model.EntityID
	s.Partition("a").ForEach(model.KindPlayer, func(e *model.Entity) {
		if e.ID <= prev {
			t.Errorf("ForEach visited %d after %d", e.ID, prev)
		}
		prev = e.ID
	})
}

func TestPartition_NearbyTracksMoves(t *testing.T) {
	s := NewStore()
	p := newPlayer(s, "a", "", model.V(10, 10))
	if err := s.Insert(p); err != nil {
		t.Fatal(err)
	}
	part := s.Partition("a")

	count := func(area model.Rect) int {
		n := 0
		part.Nearby(area, func(*model.Entity) bool { n++; return true })
		return n
	}

	if got := count(model.R(0, 0, 20, 20)); got != 1 {
		t.Fatalf("Nearby(start) = %d, want 1", got)
	}

	part.Move(p, model.V(500, 500))

	if got := count(model.R(0, 0, 20, 20)); got != 0 {
		t.Errorf("Nearby(old cell) = %d after move, want 0", got)
	}
	if got := count(model.R(490, 490, 510, 510)); got != 1 {
		t.Errorf("Nearby(new cell) = %d after move, want 1", got)
	}
}

func TestPartition_ProjectilesAreNotBlockers(t *testing.T) {
	s := NewStore()
	arrow := &model.Entity{
		ID:         s.IDs().Next(model.KindProjectile),
		Kind:       model.KindProjectile,
		Instance:   "a",
		Position:   model.V(10, 10),
		Projectile: &model.ProjectileState{},
	}
	if err := s.Insert(arrow); err != nil {
		t.Fatal(err)
	}

	n := 0
	s.Partition("a").Nearby(model.R(0, 0, 20, 20), func(*model.Entity) bool { n++; return true })
	if n != 0 {
		t.Errorf("Nearby() found %d projectiles, want 0", n)
	}
}
