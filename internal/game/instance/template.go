package instance

import (
	"fmt"

	"github.com/udisondev/coopsim/internal/game/zone"
	"github.com/udisondev/coopsim/internal/model"
)

// NPCSpawn places one NPC of an enemy template when the instance is populated.
type NPCSpawn struct {
	Template   string
	Position   model.Vec2
	Persistent bool
}

// ObjectSpawn places one interactable object when the instance is populated.
type ObjectSpawn struct {
	Kind     model.ObjectKind
	Position model.Vec2
}

// Template is the static description of a world instance: bounds, geometry,
// transitions and spawns. Immutable after registration.
type Template struct {
	Key       string
	Bounds    model.Rect
	Spawn     model.Vec2
	Obstacles []model.Rect
	Zones     *zone.Manager
	NPCs      []NPCSpawn
	Objects   []ObjectSpawn
}

// Validate checks that template fields are sensible.
func (t *Template) Validate() error {
	if t.Key == "" {
		return ErrEmptyTemplateKey
	}
	if t.Bounds.Empty() {
		return ErrEmptyBounds
	}
	if !t.Bounds.Contains(t.Spawn) {
		return ErrSpawnOutOfBounds
	}
	for _, o := range t.Obstacles {
		if o.Contains(t.Spawn) {
			return ErrObstacleAtSpawn
		}
	}
	for i, n := range t.NPCs {
		if !t.Bounds.Contains(n.Position) {
			return fmt.Errorf("npc spawn %d (%s): %w", i, n.Template, ErrSpawnOutOfBounds)
		}
	}
	for i, o := range t.Objects {
		if !t.Bounds.Contains(o.Position) {
			return fmt.Errorf("object spawn %d (%s): %w", i, o.Kind, ErrSpawnOutOfBounds)
		}
	}
	return nil
}

// ZoneAt returns the transition zone containing p, or nil.
func (t *Template) ZoneAt(p model.Vec2) *zone.TransitionZone {
	if t.Zones == nil {
		return nil
	}
	return t.Zones.ZoneAt(p)
}
