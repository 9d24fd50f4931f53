package world

import (
	"slices"

	"github.com/udisondev/coopsim/internal/model"
)

// Partition is the entity set of one world instance.
//
// A Partition is mutated only by the tick that owns its instance, so its
// methods are not synchronized. Cross-instance moves go through Store.Handoff.
type Partition struct {
	key      string
	entities map[model.EntityID]*model.Entity

	// blockers indexes the collision boxes of players, NPCs and objects by cell.
	blockers map[cellKey]map[model.EntityID]struct{}
}

func newPartition(key string) *Partition {
	return &Partition{
		key:      key,
		entities: make(map[model.EntityID]*model.Entity, 64),
		blockers: make(map[cellKey]map[model.EntityID]struct{}, 64),
	}
}

// Key returns the instance key.
func (p *Partition) Key() string { return p.key }

// Len returns the number of entities.
func (p *Partition) Len() int { return len(p.entities) }

// Get returns an entity of this instance.
func (p *Partition) Get(id model.EntityID) (*model.Entity, bool) {
	e, ok := p.entities[id]
	return e, ok
}

// IDs returns entity IDs of the given kind in ascending order.
// Kind 0 returns every entity.
func (p *Partition) IDs(kind model.Kind) []model.EntityID {
	ids := make([]model.EntityID, 0, len(p.entities))
	for id, e := range p.entities {
		if kind == 0 || e.Kind == kind {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// ForEach calls fn for every entity of kind in ascending ID order (kind 0 = all).
// fn may remove the visited entity.
func (p *Partition) ForEach(kind model.Kind, fn func(*model.Entity)) {
	for _, id := range p.IDs(kind) {
		if e, ok := p.entities[id]; ok {
			fn(e)
		}
	}
}

// Move sets the position of e and keeps the blocker index current.
func (p *Partition) Move(e *model.Entity, pos model.Vec2) {
	if indexed(e) {
		p.unindex(e)
		e.Position = pos
		p.index(e)
		return
	}
	e.Position = pos
}

// Nearby calls fn for every blocker whose cell overlaps area. fn returning false stops the scan.
// Each entity is visited at most once.
func (p *Partition) Nearby(area model.Rect, fn func(*model.Entity) bool) {
	seen := make(map[model.EntityID]struct{}, 8)
	stop := false
	cellsOverlapping(area, func(k cellKey) {
		if stop {
			return
		}
		for id := range p.blockers[k] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			e, ok := p.entities[id]
			if !ok {
				continue
			}
			if !fn(e) {
				stop = true
				return
			}
		}
	})
}

func (p *Partition) insert(e *model.Entity) {
	p.entities[e.ID] = e
	if indexed(e) {
		p.index(e)
	}
}

func (p *Partition) remove(id model.EntityID) (*model.Entity, bool) {
	e, ok := p.entities[id]
	if !ok {
		return nil, false
	}
	if indexed(e) {
		p.unindex(e)
	}
	delete(p.entities, id)
	return e, true
}

func (p *Partition) index(e *model.Entity) {
	cellsOverlapping(e.Bounds(), func(k cellKey) {
		set, ok := p.blockers[k]
		if !ok {
			set = make(map[model.EntityID]struct{}, 4)
			p.blockers[k] = set
		}
		set[e.ID] = struct{}{}
	})
}

func (p *Partition) unindex(e *model.Entity) {
	cellsOverlapping(e.Bounds(), func(k cellKey) {
		set := p.blockers[k]
		delete(set, e.ID)
		if len(set) == 0 {
			delete(p.blockers, k)
		}
	})
}

func indexed(e *model.Entity) bool {
	return e.Kind != model.KindProjectile
}
