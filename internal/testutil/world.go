package testutil

import (
	"testing"

	"github.com/udisondev/coopsim/internal/game/geo"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// DefaultBounds is the instance used by most simulation tests.
var DefaultBounds = model.R(0, 0, 1000, 1000)

// NewSpace creates a store with one instance "a" of the given bounds and obstacles.
func NewSpace(t testing.TB, bounds model.Rect, obstacles ...model.Rect) *world.Space {
	t.Helper()
	store := world.NewStore()
	return world.NewSpace(store, "a", geo.New(bounds, obstacles, geo.DefaultCellSize))
}

// SpawnPlayer inserts a healthy player owned by identity at pos.
func SpawnPlayer(t testing.TB, sp *world.Space, identity string, pos model.Vec2) *model.Entity {
	t.Helper()
	e := &model.Entity{
		ID:       sp.IDs().Next(model.KindPlayer),
		Kind:     model.KindPlayer,
		Position: pos,
		HalfSize: 8,
		Owner:    identity,
		Player: &model.PlayerState{
			Username:  identity,
			Health:    100,
			MaxHealth: 100,
			Items:     map[string]int{},
		},
	}
	mustSpawn(t, sp, e)
	return e
}

// SpawnNPC inserts an idle NPC with the given health at pos.
func SpawnNPC(t testing.TB, sp *world.Space, template string, health float64, pos model.Vec2) *model.Entity {
	t.Helper()
	e := &model.Entity{
		ID:       sp.IDs().Next(model.KindNPC),
		Kind:     model.KindNPC,
		Position: pos,
		HalfSize: 8,
		NPC: &model.NPCState{
			Template:  template,
			Health:    health,
			MaxHealth: health,
			Spawn:     pos,
			Threat:    model.ThreatRecord{LeashOrigin: pos},
		},
	}
	mustSpawn(t, sp, e)
	return e
}

// SpawnObject inserts an interactable object at pos.
func SpawnObject(t testing.TB, sp *world.Space, kind model.ObjectKind, health float64, resources int, pos model.Vec2) *model.Entity {
	t.Helper()
	e := &model.Entity{
		ID:       sp.IDs().Next(model.KindInteractable),
		Kind:     model.KindInteractable,
		Position: pos,
		HalfSize: 8,
		Object: &model.ObjectState{
			Kind:      kind,
			Health:    health,
			MaxHealth: health,
			Resources: resources,
		},
	}
	mustSpawn(t, sp, e)
	return e
}

func mustSpawn(t testing.TB, sp *world.Space, e *model.Entity) {
	t.Helper()
	if err := sp.Spawn(e); err != nil {
		t.Fatalf("spawning %s: %v", e, err)
	}
}

// Equip gives the player one unit of item and puts it into slot.
func Equip(t testing.TB, p *model.Entity, slot model.EquipSlot, item string) {
	t.Helper()
	p.Player.GiveItem(item, 1)
	if _, ok := p.Player.Equip(slot, item); !ok {
		t.Fatalf("equipping %s on %s", item, p)
	}
}

// Arm gives the player one unit of each weapon item.
func Arm(p *model.Entity, weapons ...string) {
	if len(weapons) == 0 {
		weapons = []string{"sword", "axe", "bow"}
	}
	for _, w := range weapons {
		p.Player.GiveItem(w, 1)
	}
}
