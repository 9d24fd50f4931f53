package zone

import (
	"fmt"
	"math"

	"github.com/udisondev/coopsim/internal/model"
)

const gridSize = 256.0 // мировые единицы на ячейку сетки

type gridKey struct {
	gx, gy int32
}

// Manager holds the transition zones of one instance template with a spatial
// grid for point lookups. Read-only after construction, safe for concurrent use.
type Manager struct {
	bounds model.Rect
	zones  []*TransitionZone
	byName map[string]*TransitionZone
	grid   map[gridKey][]*TransitionZone
}

// NewManager creates an empty zone manager for an instance with the given bounds.
func NewManager(bounds model.Rect) *Manager {
	return &Manager{
		bounds: bounds,
		byName: make(map[string]*TransitionZone),
		grid:   make(map[gridKey][]*TransitionZone),
	}
}

// Add registers a zone. Zones within one instance must not overlap.
func (m *Manager) Add(z *TransitionZone) error {
	if err := z.Validate(); err != nil {
		return fmt.Errorf("zone %q: %w", z.Name, err)
	}
	if !m.bounds.Contains(z.Area.Min) || !m.bounds.Contains(z.Area.Max) {
		return fmt.Errorf("zone %q: %w", z.Name, ErrOutsideInstance)
	}
	if z.Name != "" {
		if _, dup := m.byName[z.Name]; dup {
			return fmt.Errorf("zone %q: %w", z.Name, ErrDuplicateZoneName)
		}
	}
	for _, other := range m.zones {
		if other.Area.Overlaps(z.Area) {
			return fmt.Errorf("zone %q and %q: %w", z.Name, other.Name, ErrOverlappingZones)
		}
	}

	m.zones = append(m.zones, z)
	if z.Name != "" {
		m.byName[z.Name] = z
	}
	m.index(z)
	return nil
}

// ZoneAt returns the zone containing p, or nil.
func (m *Manager) ZoneAt(p model.Vec2) *TransitionZone {
	for _, z := range m.grid[keyOf(p)] {
		if z.Contains(p) {
			return z
		}
	}
	return nil
}

// Zones returns all registered zones in registration order.
func (m *Manager) Zones() []*TransitionZone {
	return m.zones
}

// Len returns the number of registered zones.
func (m *Manager) Len() int { return len(m.zones) }

// index регистрирует зону во всех ячейках сетки, которые пересекает её area.
func (m *Manager) index(z *TransitionZone) {
	lo := keyOf(z.Area.Min)
	hi := keyOf(z.Area.Max)
	for gx := lo.gx; gx <= hi.gx; gx++ {
		for gy := lo.gy; gy <= hi.gy; gy++ {
			key := gridKey{gx: gx, gy: gy}
			m.grid[key] = append(m.grid[key], z)
		}
	}
}

func keyOf(p model.Vec2) gridKey {
	return gridKey{
		gx: int32(math.Floor(p.X / gridSize)),
		gy: int32(math.Floor(p.Y / gridSize)),
	}
}
