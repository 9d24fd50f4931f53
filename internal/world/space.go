package world

import (
	"github.com/udisondev/coopsim/internal/game/geo"
	"github.com/udisondev/coopsim/internal/model"
)

// Space is what one instance tick works on: the instance partition, its
// static geometry and the store for spawns and removals. A Space is used by
// a single goroutine at a time.
type Space struct {
	store *Store
	part  *Partition
	geo   *geo.Geometry
}

// NewSpace binds the partition of key to its geometry.
func NewSpace(store *Store, key string, g *geo.Geometry) *Space {
	return &Space{store: store, part: store.Partition(key), geo: g}
}

// Key returns the instance key.
func (s *Space) Key() string { return s.part.key }

// Partition returns the entity set of the instance.
func (s *Space) Partition() *Partition { return s.part }

// Geometry returns the static geometry of the instance.
func (s *Space) Geometry() *geo.Geometry { return s.geo }

// Bounds returns the instance bounds.
func (s *Space) Bounds() model.Rect { return s.geo.Bounds() }

// IDs returns the store's id generator.
func (s *Space) IDs() *ObjectIDGenerator { return s.store.ids }

// Get returns an entity of this instance.
func (s *Space) Get(id model.EntityID) (*model.Entity, bool) {
	return s.part.Get(id)
}

// Spawn inserts a new entity into this instance.
func (s *Space) Spawn(e *model.Entity) error {
	e.Instance = s.part.key
	return s.store.Insert(e)
}

// Despawn removes an entity of this instance.
func (s *Space) Despawn(id model.EntityID) (*model.Entity, bool) {
	if _, ok := s.part.Get(id); !ok {
		return nil, false
	}
	return s.store.Remove(id)
}

// OutOfBounds returns entities whose position lies outside the instance bounds,
// in ascending ID order.
func (s *Space) OutOfBounds() []model.EntityID {
	var bad []model.EntityID
	b := s.geo.Bounds()
	s.part.ForEach(0, func(e *model.Entity) {
		if !b.Contains(e.Position) {
			bad = append(bad, e.ID)
		}
	})
	return bad
}
