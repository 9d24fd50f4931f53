package model

import "time"

// AIState represents the behaviour state of an NPC.
type AIState int32

const (
	// AIIdle - patrolling around spawn, no target
	AIIdle AIState = iota
	// AIAlert - a player was noticed, NPC faces the last-known position and pauses
	AIAlert
	// AIChasing - pursuing the threat target and attacking when in range
	AIChasing
)

// String returns human-readable state name
func (s AIState) String() string {
	switch s {
	case AIIdle:
		return "IDLE"
	case AIAlert:
		return "ALERT"
	case AIChasing:
		return "CHASING"
	default:
		return "UNKNOWN"
	}
}

// ThreatRecord is the per-NPC targeting memory.
// Leash expiry (distance or time) resets the record via Clear.
type ThreatRecord struct {
	Target      EntityID // 0 = none
	Threat      float64
	LastSeen    Vec2
	LastSeenAt  time.Time
	LeashOrigin Vec2
}

// HasTarget reports whether a threat target is set.
func (t ThreatRecord) HasTarget() bool { return t.Target != 0 }

// Clear drops the target and the accumulated threat. The leash origin is kept.
func (t *ThreatRecord) Clear() {
	t.Target = 0
	t.Threat = 0
	t.LastSeenAt = time.Time{}
}
