package model

import "time"

// EventKind classifies a combat event.
type EventKind uint8

const (
	EventHit EventKind = iota + 1
	EventHeal
	EventDowned
	EventDeath
	EventRevive
)

func (k EventKind) String() string {
	switch k {
	case EventHit:
		return "hit"
	case EventHeal:
		return "heal"
	case EventDowned:
		return "downed"
	case EventDeath:
		return "death"
	case EventRevive:
		return "revive"
	default:
		return "unknown"
	}
}

// CombatEvent is a write-once notification. It is never read back for truth.
type CombatEvent struct {
	Instance     string
	Attacker     EntityID
	Target       EntityID
	AttackerKind Kind
	TargetKind   Kind
	Amount       float64
	Kind         EventKind
	Health       float64 // target health after the event
	At           time.Time
}
