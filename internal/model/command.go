package model

import (
	"fmt"
	"time"
)

// IntentKind is the kind of a client-submitted command.
type IntentKind uint8

const (
	IntentMove IntentKind = iota + 1
	IntentAttack
	IntentInteract
	IntentTransition
)

func (k IntentKind) String() string {
	switch k {
	case IntentMove:
		return "move"
	case IntentAttack:
		return "attack"
	case IntentInteract:
		return "interact"
	case IntentTransition:
		return "transition"
	default:
		return "unknown"
	}
}

// ParseIntentKind maps a wire name to an IntentKind.
func ParseIntentKind(s string) (IntentKind, error) {
	switch s {
	case "move":
		return IntentMove, nil
	case "attack":
		return IntentAttack, nil
	case "interact":
		return IntentInteract, nil
	case "transition":
		return IntentTransition, nil
	default:
		return 0, fmt.Errorf("unknown intent kind %q", s)
	}
}

// Command is a single input command. It is consumed exactly once;
// only its sequence number survives on the entity.
type Command struct {
	EntityID EntityID
	Sequence uint32
	Kind     IntentKind

	// Move and Attack.
	Direction Vec2
	DeltaTime float64 // seconds, Move only
	Weapon    WeaponShape

	// Interact: either a target entity or an inventory item. Action names
	// what to do with it; ActionAuto picks the natural action.
	Target EntityID
	Item   string
	Action Action

	SubmittedAt time.Time
}

// WeaponShape is the closed set of attack hit-tests.
type WeaponShape uint8

const (
	WeaponWideArc WeaponShape = iota + 1
	WeaponFrontalCone
	WeaponRanged
)

func (w WeaponShape) String() string {
	switch w {
	case WeaponWideArc:
		return "wide_arc"
	case WeaponFrontalCone:
		return "frontal_cone"
	case WeaponRanged:
		return "ranged"
	default:
		return "unknown"
	}
}

// ParseWeaponShape accepts shape names and the weapon names they stand for.
func ParseWeaponShape(s string) (WeaponShape, error) {
	switch s {
	case "wide_arc", "sword":
		return WeaponWideArc, nil
	case "frontal_cone", "axe":
		return WeaponFrontalCone, nil
	case "ranged", "bow":
		return WeaponRanged, nil
	default:
		return 0, fmt.Errorf("unknown weapon shape %q", s)
	}
}

// Action is the contextual verb of an Interact command.
type Action uint8

const (
	ActionAuto Action = iota
	ActionShake
	ActionCut
	ActionPickUp
	ActionBreak
	ActionUse
	ActionRevive
	ActionEquip
	ActionUnequip
)

var actionNames = [...]string{
	ActionAuto:    "",
	ActionShake:   "shake",
	ActionCut:     "cut",
	ActionPickUp:  "pick_up",
	ActionBreak:   "break",
	ActionUse:     "use",
	ActionRevive:  "revive",
	ActionEquip:   "equip",
	ActionUnequip: "unequip",
}

func (a Action) String() string {
	if a == ActionAuto {
		return "auto"
	}
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction maps a wire or registry name to an Action. The empty string
// and "auto" mean ActionAuto.
func ParseAction(s string) (Action, error) {
	if s == "" || s == "auto" {
		return ActionAuto, nil
	}
	for a, name := range actionNames {
		if name == s {
			return Action(a), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
