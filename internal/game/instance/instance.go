// Package instance implements the world-instance lifecycle: lazily created
// spatial partitions moving between Inactive, Warm and Hot as players come and go.
// Instances are never destroyed, only demoted.
package instance

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// State represents the lifecycle state of an instance.
type State int32

const (
	StateInactive State = iota // no occupants, transient state cleared
	StateWarm                  // no occupants, state kept, AI suspended until TTL
	StateHot                   // occupied, fully simulated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateWarm:
		return "WARM"
	case StateHot:
		return "HOT"
	default:
		return "UNKNOWN"
	}
}

// Instance is one world partition created from a Template.
// Thread-safe for concurrent access.
type Instance struct {
	mu sync.RWMutex

	tmpl  *Template
	state atomic.Int32 // State

	occupants    map[model.EntityID]struct{}
	lastActivity time.Time
	warmSince    time.Time

	// Non-empty reason means the instance is excluded from ticking until Reset.
	inconsistent string
	populated    bool
}

func newInstance(tmpl *Template) *Instance {
	inst := &Instance{
		tmpl:      tmpl,
		occupants: make(map[model.EntityID]struct{}, 8),
	}
	inst.state.Store(int32(StateInactive))
	return inst
}

// Key returns the instance key (same as its template key).
func (i *Instance) Key() string { return i.tmpl.Key }

// Template returns the static template of the instance.
func (i *Instance) Template() *Template { return i.tmpl }

// Bounds returns the instance bounds.
func (i *Instance) Bounds() model.Rect { return i.tmpl.Bounds }

// State returns the current lifecycle state.
func (i *Instance) State() State { return State(i.state.Load()) }

// Occupants returns the number of players inside.
func (i *Instance) Occupants() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.occupants)
}

// HasOccupant reports whether id is counted as an occupant.
func (i *Instance) HasOccupant(id model.EntityID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.occupants[id]
	return ok
}

// LastActivity returns the time of the last enter or leave.
func (i *Instance) LastActivity() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastActivity
}

// WarmSince returns when the instance was last demoted to Warm.
func (i *Instance) WarmSince() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.warmSince
}

// Inconsistent returns the reason the instance was excluded from processing.
func (i *Instance) Inconsistent() (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.inconsistent, i.inconsistent != ""
}

// Populated reports whether template spawns are currently placed in the store.
func (i *Instance) Populated() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.populated
}

// SetPopulated records whether template spawns are placed in the store.
func (i *Instance) SetPopulated(v bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.populated = v
}

// Simulated reports whether AI and physics run for this instance.
func (i *Instance) Simulated() bool {
	if i.State() != StateHot {
		return false
	}
	_, bad := i.Inconsistent()
	return !bad
}

// Snapshot is a point-in-time view of an instance for operators.
type Snapshot struct {
	Key          string    `json:"key"`
	State        string    `json:"state"`
	Occupants    int       `json:"occupants"`
	LastActivity time.Time `json:"last_activity"`
	Inconsistent string    `json:"inconsistent,omitempty"`
}

// Snapshot returns the operator view of the instance.
func (i *Instance) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Snapshot{
		Key:          i.tmpl.Key,
		State:        i.State().String(),
		Occupants:    len(i.occupants),
		LastActivity: i.lastActivity,
		Inconsistent: i.inconsistent,
	}
}
