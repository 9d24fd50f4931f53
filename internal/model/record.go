package model

import "time"

// TransitionRecord describes one completed instance handoff.
type TransitionRecord struct {
	Entity EntityID
	From   string
	To     string
	At     time.Time
}

// LifecycleRecord describes an instance state change.
type LifecycleRecord struct {
	Instance string
	From     string
	To       string
	Reason   string
	At       time.Time
}

// DespawnRecord describes a player removed after its grace period.
type DespawnRecord struct {
	Entity   EntityID
	Identity string
	Instance string
	At       time.Time
}

// TickRecord is everything a tick hands to event sinks.
type TickRecord struct {
	Tick        uint64
	At          time.Time
	Events      []CombatEvent
	Transitions []TransitionRecord
	Lifecycle   []LifecycleRecord
	Despawns    []DespawnRecord
}

// Empty reports whether the record carries nothing worth persisting.
func (r TickRecord) Empty() bool {
	return len(r.Events) == 0 && len(r.Transitions) == 0 && len(r.Lifecycle) == 0 && len(r.Despawns) == 0
}
