package ai

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// TickManager holds the AI controllers of one instance and ticks them in
// ascending entity ID order. TickAll and NotifyDamage are called from the
// instance tick only; registration may come from other goroutines.
type TickManager struct {
	instance        string
	controllers     sync.Map     // map[model.EntityID]Controller
	controllerCount atomic.Int32 // cached count of controllers (O(1) access)
}

// NewTickManager creates an AI tick manager for an instance.
func NewTickManager(instance string) *TickManager {
	return &TickManager{instance: instance}
}

// Instance returns the instance key.
func (m *TickManager) Instance() string { return m.instance }

// Register registers and starts the controller of an NPC.
// A controller already registered for id is stopped and replaced.
func (m *TickManager) Register(id model.EntityID, controller Controller) {
	if prev, loaded := m.controllers.Swap(id, controller); loaded {
		prev.(Controller).Stop()
	} else {
		m.controllerCount.Add(1)
	}
	controller.Start()

	slog.Debug("AI controller registered",
		"instance", m.instance,
		"npc", id,
		"state", controller.CurrentState())
}

// Unregister stops and removes the controller of an NPC.
func (m *TickManager) Unregister(id model.EntityID) {
	value, ok := m.controllers.LoadAndDelete(id)
	if !ok {
		return
	}
	m.controllerCount.Add(-1)
	value.(Controller).Stop()

	slog.Debug("AI controller unregistered", "instance", m.instance, "npc", id)
}

// TickAll ticks every controller once, in ascending ID order.
func (m *TickManager) TickAll(now time.Time, dt float64) {
	ids := m.ids()
	for _, id := range ids {
		if c, ok := m.controllers.Load(id); ok {
			c.(Controller).Tick(now, dt)
		}
	}

	if len(ids) > 0 && IsDebugEnabled() {
		slog.Debug("AI tick completed", "instance", m.instance, "controllers", len(ids))
	}
}

// NotifyDamage forwards damage to the NPC's controller, if any.
func (m *TickManager) NotifyDamage(npc, attacker model.EntityID, damage float64, now time.Time) {
	if c, ok := m.controllers.Load(npc); ok {
		c.(Controller).NotifyDamage(attacker, damage, now)
	}
}

// Count returns number of registered controllers (O(1) cached count).
func (m *TickManager) Count() int {
	return int(m.controllerCount.Load())
}

// GetController returns controller for NPC.
func (m *TickManager) GetController(id model.EntityID) (Controller, error) {
	value, ok := m.controllers.Load(id)
	if !ok {
		return nil, fmt.Errorf("controller not found for npc %d", id)
	}
	return value.(Controller), nil
}

// Clear stops and removes all controllers.
func (m *TickManager) Clear() {
	for _, id := range m.ids() {
		m.Unregister(id)
	}
}

func (m *TickManager) ids() []model.EntityID {
	ids := make([]model.EntityID, 0, m.Count())
	m.controllers.Range(func(key, _ any) bool {
		ids = append(ids, key.(model.EntityID))
		return true
	})
	slices.Sort(ids)
	return ids
}
