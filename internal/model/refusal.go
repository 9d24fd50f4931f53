package model

// Refusal is the typed reason a command was not applied.
// Refusals are expected outcomes, not errors.
type Refusal uint8

const (
	RefusalNone Refusal = iota
	RefusalDuplicate
	RefusalDeltaTimeTooLarge
	RefusalInvalidDirection
	RefusalDisplacementTooLarge
	RefusalOutOfBounds
	RefusalCollision
	RefusalMovementLocked
	RefusalDowned
	RefusalInsufficientAmmo
	RefusalInsufficientItems
	RefusalTargetNotEligible
	RefusalOutOfRange
	RefusalNotInTransitionZone
	RefusalUnknownDestination
	RefusalOnCooldown
	RefusalUnknownEntity
	RefusalNotOwner
	RefusalInstanceUnavailable
	RefusalQueueFull
	RefusalFullHealth
	RefusalDepleted
)

var refusalNames = [...]string{
	RefusalNone:                 "none",
	RefusalDuplicate:            "duplicate",
	RefusalDeltaTimeTooLarge:    "delta_time_too_large",
	RefusalInvalidDirection:     "invalid_direction",
	RefusalDisplacementTooLarge: "displacement_too_large",
	RefusalOutOfBounds:          "out_of_bounds",
	RefusalCollision:            "collision",
	RefusalMovementLocked:       "movement_locked",
	RefusalDowned:               "downed",
	RefusalInsufficientAmmo:     "insufficient_ammo",
	RefusalInsufficientItems:    "insufficient_items",
	RefusalTargetNotEligible:    "target_not_eligible",
	RefusalOutOfRange:           "out_of_range",
	RefusalNotInTransitionZone:  "not_in_transition_zone",
	RefusalUnknownDestination:   "unknown_destination",
	RefusalOnCooldown:           "on_cooldown",
	RefusalUnknownEntity:        "unknown_entity",
	RefusalNotOwner:             "not_owner",
	RefusalInstanceUnavailable:  "instance_unavailable",
	RefusalQueueFull:            "queue_full",
	RefusalFullHealth:           "full_health",
	RefusalDepleted:             "depleted",
}

func (r Refusal) String() string {
	if int(r) < len(refusalNames) {
		return refusalNames[r]
	}
	return "unknown"
}

// Outcome is how a command ended.
type Outcome uint8

const (
	OutcomeAccepted Outcome = iota + 1
	OutcomeRejected
	// OutcomeDuplicate acknowledges an already-seen sequence without applying it.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
