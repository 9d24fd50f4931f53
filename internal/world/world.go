package world

import (
	"fmt"
	"slices"
	"sync"

	"github.com/udisondev/coopsim/internal/model"
)

// Store is the canonical in-memory entity set, partitioned by world instance.
//
// The id and owner indexes are shared across instances and guarded by mu.
// Partition contents belong to the tick of their instance.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*Partition
	index      map[model.EntityID]string              // entityID → instance key
	owned      map[string]map[model.EntityID]struct{} // owner identity → entityIDs

	ids *ObjectIDGenerator
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		partitions: make(map[string]*Partition, 8),
		index:      make(map[model.EntityID]string, 256),
		owned:      make(map[string]map[model.EntityID]struct{}, 32),
		ids:        NewObjectIDGenerator(),
	}
}

// IDs returns the store's ID generator.
func (s *Store) IDs() *ObjectIDGenerator { return s.ids }

// Partition returns the partition for an instance, creating it on first reference.
func (s *Store) Partition(key string) *Partition {
	s.mu.RLock()
	p, ok := s.partitions[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[key]; ok {
		return p
	}
	p = newPartition(key)
	s.partitions[key] = p
	return p
}

// Keys returns the instance keys that have a partition, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.partitions))
	for k := range s.partitions {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Insert adds a new entity to the partition of its instance.
func (s *Store) Insert(e *model.Entity) error {
	if e.Instance == "" {
		return fmt.Errorf("insert %s: %w", e, ErrNoInstance)
	}
	if !payloadMatches(e) {
		return fmt.Errorf("insert %s: %w", e, ErrKindMismatch)
	}

	p := s.Partition(e.Instance)

	s.mu.Lock()
	if _, exists := s.index[e.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("insert %s: %w", e, ErrDuplicateEntity)
	}
	s.index[e.ID] = e.Instance
	if e.Owner != "" {
		set, ok := s.owned[e.Owner]
		if !ok {
			set = make(map[model.EntityID]struct{}, 4)
			s.owned[e.Owner] = set
		}
		set[e.ID] = struct{}{}
	}
	s.mu.Unlock()

	p.insert(e)
	return nil
}

// Remove deletes an entity. Returns the removed entity, or false if unknown.
func (s *Store) Remove(id model.EntityID) (*model.Entity, bool) {
	s.mu.Lock()
	key, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	delete(s.index, id)
	p := s.partitions[key]
	s.mu.Unlock()

	e, ok := p.remove(id)
	if !ok {
		return nil, false
	}
	if e.Owner != "" {
		s.mu.Lock()
		if set := s.owned[e.Owner]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(s.owned, e.Owner)
			}
		}
		s.mu.Unlock()
	}
	return e, true
}

// Get looks an entity up by ID across all instances.
// Only safe while no tick is mutating the entity's partition.
func (s *Store) Get(id model.EntityID) (*model.Entity, bool) {
	s.mu.RLock()
	key, ok := s.index[id]
	var p *Partition
	if ok {
		p = s.partitions[key]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.Get(id)
}

// InstanceOf returns the instance key an entity belongs to.
func (s *Store) InstanceOf(id model.EntityID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.index[id]
	return key, ok
}

// Handoff moves an entity to another instance: remove from source, insert into destination.
// Velocity is reset; the position becomes pos.
func (s *Store) Handoff(id model.EntityID, dest string, pos model.Vec2) (*model.Entity, error) {
	s.mu.RLock()
	src, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("handoff %d: %w", id, ErrEntityNotFound)
	}
	if src == dest {
		return nil, fmt.Errorf("handoff %d to %s: %w", id, dest, ErrSameInstance)
	}

	e, ok := s.Remove(id)
	if !ok {
		return nil, fmt.Errorf("handoff %d: %w", id, ErrEntityNotFound)
	}
	e.Instance = dest
	e.Position = pos
	e.Velocity = model.Vec2{}
	if err := s.Insert(e); err != nil {
		return nil, fmt.Errorf("handoff %d into %s: %w", id, dest, err)
	}
	return e, nil
}

// Owned returns the IDs owned by identity, sorted.
func (s *Store) Owned(identity string) []model.EntityID {
	s.mu.RLock()
	set := s.owned[identity]
	ids := make([]model.EntityID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Count returns the total number of entities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func payloadMatches(e *model.Entity) bool {
	switch e.Kind {
	case model.KindPlayer:
		return e.Player != nil
	case model.KindNPC:
		return e.NPC != nil
	case model.KindProjectile:
		return e.Projectile != nil
	case model.KindInteractable:
		return e.Object != nil
	default:
		return false
	}
}

// ForEachInInstance calls fn for every entity of the instance in ascending ID order.
// Only safe while no tick is mutating the partition.
func (s *Store) ForEachInInstance(key string, fn func(*model.Entity)) {
	s.Partition(key).ForEach(0, fn)
}

// ForEachOwned calls fn for every entity owned by identity, wherever it lives,
// in ascending ID order.
func (s *Store) ForEachOwned(identity string, fn func(*model.Entity)) {
	for _, id := range s.Owned(identity) {
		if e, ok := s.Get(id); ok {
			fn(e)
		}
	}
}

// CountByKind returns the number of entities of each kind across all instances.
func (s *Store) CountByKind() map[model.Kind]int {
	counts := make(map[model.Kind]int, 4)
	for _, key := range s.Keys() {
		s.Partition(key).ForEach(0, func(e *model.Entity) {
			counts[e.Kind]++
		})
	}
	return counts
}
