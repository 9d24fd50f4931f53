package instance

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// DefaultWarmTTL is the default time a Warm instance waits for occupants
// before it is demoted to Inactive.
const DefaultWarmTTL = 60 * time.Second

// Manager tracks all instances and drives their lifecycle.
// Thread-safe for concurrent access.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]*Template
	instances map[string]*Instance
	warmTTL   time.Duration
}

// NewManager creates a lifecycle manager. warmTTL <= 0 selects DefaultWarmTTL.
func NewManager(warmTTL time.Duration) *Manager {
	if warmTTL <= 0 {
		warmTTL = DefaultWarmTTL
	}
	return &Manager{
		templates: make(map[string]*Template, 16),
		instances: make(map[string]*Instance, 16),
		warmTTL:   warmTTL,
	}
}

// WarmTTL returns the configured Warm time-to-live.
func (m *Manager) WarmTTL() time.Duration { return m.warmTTL }

// RegisterTemplate registers an instance template.
func (m *Manager) RegisterTemplate(tmpl *Template) error {
	if err := tmpl.Validate(); err != nil {
		return fmt.Errorf("validate template %q: %w", tmpl.Key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tmpl.Key]; ok {
		return fmt.Errorf("template %q: %w", tmpl.Key, ErrDuplicateTemplate)
	}
	m.templates[tmpl.Key] = tmpl
	return nil
}

// Template returns a registered template by key.
func (m *Manager) Template(key string) *Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.templates[key]
}

// GetOrCreate returns the instance for key, creating it on first reference.
func (m *Manager) GetOrCreate(key string) (*Instance, error) {
	m.mu.RLock()
	inst, ok := m.instances[key]
	m.mu.RUnlock()
	if ok {
		return inst, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[key]; ok {
		return inst, nil
	}
	tmpl, ok := m.templates[key]
	if !ok {
		return nil, fmt.Errorf("instance %q: %w", key, ErrTemplateNotFound)
	}
	inst = newInstance(tmpl)
	m.instances[key] = inst
	slog.Debug("instance created", "instance", key)
	return inst, nil
}

// Get returns an existing instance or nil.
func (m *Manager) Get(key string) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[key]
}

// Enter counts id as an occupant of key and promotes the instance to Hot.
// The returned record is valid when changed is true.
func (m *Manager) Enter(key string, id model.EntityID, now time.Time) (rec model.LifecycleRecord, changed bool, err error) {
	inst, err := m.GetOrCreate(key)
	if err != nil {
		return rec, false, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.inconsistent != "" {
		return rec, false, fmt.Errorf("enter %q: %w", key, ErrInconsistent)
	}
	inst.occupants[id] = struct{}{}
	inst.lastActivity = now

	if from := inst.State(); from != StateHot {
		inst.state.Store(int32(StateHot))
		return record(key, from, StateHot, "occupant entered", now), true, nil
	}
	return rec, false, nil
}

// Leave removes id from the occupants of key. At zero occupants a Hot
// instance is demoted to Warm and its TTL starts.
func (m *Manager) Leave(key string, id model.EntityID, now time.Time) (rec model.LifecycleRecord, changed bool, err error) {
	inst := m.Get(key)
	if inst == nil {
		return rec, false, fmt.Errorf("leave %q: %w", key, ErrInstanceNotFound)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	if _, ok := inst.occupants[id]; !ok {
		return rec, false, fmt.Errorf("leave %q entity %d: %w", key, id, ErrNotOccupant)
	}
	delete(inst.occupants, id)
	inst.lastActivity = now

	if len(inst.occupants) == 0 && inst.State() == StateHot {
		inst.state.Store(int32(StateWarm))
		inst.warmSince = now
		return record(key, StateHot, StateWarm, "last occupant left", now), true, nil
	}
	return rec, false, nil
}

// Maintain demotes Warm instances whose TTL has elapsed to Inactive.
// It is meant to run on a fixed interval, not every tick.
// Returned records are sorted by instance key.
func (m *Manager) Maintain(now time.Time) []model.LifecycleRecord {
	var out []model.LifecycleRecord
	for _, inst := range m.All() {
		inst.mu.Lock()
		if inst.State() == StateWarm && len(inst.occupants) == 0 && now.Sub(inst.warmSince) >= m.warmTTL {
			inst.state.Store(int32(StateInactive))
			out = append(out, record(inst.tmpl.Key, StateWarm, StateInactive, "warm ttl elapsed", now))
		}
		inst.mu.Unlock()
	}
	return out
}

// MarkInconsistent excludes key from further processing until Reset.
func (m *Manager) MarkInconsistent(key, reason string, now time.Time) (model.LifecycleRecord, error) {
	inst := m.Get(key)
	if inst == nil {
		return model.LifecycleRecord{}, fmt.Errorf("mark %q: %w", key, ErrInstanceNotFound)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.inconsistent = reason
	slog.Error("instance marked inconsistent", "instance", key, "reason", reason)
	return model.LifecycleRecord{
		Instance: key,
		From:     inst.State().String(),
		To:       "INCONSISTENT",
		Reason:   reason,
		At:       now,
	}, nil
}

// Reset clears the inconsistent mark. The lifecycle state is recomputed
// from the occupant count.
func (m *Manager) Reset(key string, now time.Time) (model.LifecycleRecord, error) {
	inst := m.Get(key)
	if inst == nil {
		return model.LifecycleRecord{}, fmt.Errorf("reset %q: %w", key, ErrInstanceNotFound)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	from := inst.State()
	inst.inconsistent = ""
	inst.populated = false
	to := StateWarm
	if len(inst.occupants) > 0 {
		to = StateHot
	}
	inst.state.Store(int32(to))
	inst.warmSince = now
	inst.lastActivity = now
	return record(key, from, to, "operator reset", now), nil
}

// All returns every instance ever created, sorted by key.
func (m *Manager) All() []*Instance {
	m.mu.RLock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Instance) int {
		return cmp.Compare(a.Key(), b.Key())
	})
	return out
}

// Simulated returns Hot, consistent instances sorted by key.
func (m *Manager) Simulated() []*Instance {
	all := m.All()
	out := all[:0]
	for _, inst := range all {
		if inst.Simulated() {
			out = append(out, inst)
		}
	}
	return out
}

// Snapshots returns the operator view of every instance.
func (m *Manager) Snapshots() []Snapshot {
	all := m.All()
	out := make([]Snapshot, 0, len(all))
	for _, inst := range all {
		out = append(out, inst.Snapshot())
	}
	return out
}

func record(key string, from, to State, reason string, now time.Time) model.LifecycleRecord {
	return model.LifecycleRecord{
		Instance: key,
		From:     from.String(),
		To:       to.String(),
		Reason:   reason,
		At:       now,
	}
}
