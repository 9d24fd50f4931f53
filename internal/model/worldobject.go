package model

import (
	"fmt"
	"time"
)

// EntityID is the stable numeric identity of every entity.
type EntityID uint32

// Kind is the closed set of entity variants.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindNPC
	KindProjectile
	KindInteractable
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	case KindProjectile:
		return "projectile"
	case KindInteractable:
		return "interactable"
	default:
		return "unknown"
	}
}

// Entity — a single row of the entity store.
// Exactly one payload pointer matching Kind is non-nil.
// An entity is mutated only by the tick of the instance it belongs to.
type Entity struct {
	ID       EntityID
	Kind     Kind
	Instance string
	Position Vec2
	Velocity Vec2
	HalfSize float64
	// Owner is the session identity for players and for projectiles fired by players.
	Owner string

	Player     *PlayerState
	NPC        *NPCState
	Projectile *ProjectileState
	Object     *ObjectState
}

// Bounds returns the collision box of the entity at its current position.
func (e *Entity) Bounds() Rect {
	return Box(e.Position, e.HalfSize)
}

// BoundsAt returns the collision box the entity would have at p.
func (e *Entity) BoundsAt(p Vec2) Rect {
	return Box(p, e.HalfSize)
}

// Alive reports whether the entity can act and be targeted.
// Downed players and dead NPCs are not alive.
func (e *Entity) Alive() bool {
	switch e.Kind {
	case KindPlayer:
		return e.Player != nil && !e.Player.Downed
	case KindNPC:
		return e.NPC != nil && e.NPC.Health > 0
	default:
		return false
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s#%d@%s(%.1f,%.1f)", e.Kind, e.ID, e.Instance, e.Position.X, e.Position.Y)
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Player != nil {
		p := *e.Player
		p.Items = make(map[string]int, len(e.Player.Items))
		for k, v := range e.Player.Items {
			p.Items[k] = v
		}
		if e.Player.Equipment != nil {
			p.Equipment = make(map[EquipSlot]string, len(e.Player.Equipment))
			for k, v := range e.Player.Equipment {
				p.Equipment[k] = v
			}
		}
		c.Player = &p
	}
	if e.NPC != nil {
		n := *e.NPC
		c.NPC = &n
	}
	if e.Projectile != nil {
		p := *e.Projectile
		c.Projectile = &p
	}
	if e.Object != nil {
		o := *e.Object
		c.Object = &o
	}
	return &c
}

// PlayerState is the player payload.
type PlayerState struct {
	Username     string
	Health       float64
	MaxHealth    float64
	Downed       bool
	LastSequence uint32
	// Items holds stackable inventory: ammunition, consumables, gathered resources.
	Items map[string]int
	// Equipment maps a slot to an item held in Items.
	Equipment map[EquipSlot]string

	MovementLockedUntil time.Time
	LastTransitionAt    time.Time
}

// Ammo is the inventory key consumed by ranged attacks.
const Ammo = "arrow"

// ItemCount returns the number of units of item held.
func (p *PlayerState) ItemCount(item string) int {
	if p.Items == nil {
		return 0
	}
	return p.Items[item]
}

// TakeItem removes one unit of item. Returns false if none is held.
func (p *PlayerState) TakeItem(item string) bool {
	if p.ItemCount(item) <= 0 {
		return false
	}
	p.Items[item]--
	if p.Items[item] == 0 {
		delete(p.Items, item)
		p.Unequip(item)
	}
	return true
}

// GiveItem adds n units of item.
func (p *PlayerState) GiveItem(item string, n int) {
	if p.Items == nil {
		p.Items = make(map[string]int, 4)
	}
	p.Items[item] += n
}

// NPCState is the non-player character payload.
type NPCState struct {
	Template  string
	Health    float64
	MaxHealth float64
	State     AIState
	Threat    ThreatRecord
	Spawn     Vec2
	Facing    Vec2
	// StateTimer counts down the Alert pause in seconds.
	StateTimer    float64
	AttackReadyAt time.Time
	PatrolTarget  Vec2
	// Returning is set after a leash break: the NPC walks back to spawn and
	// ignores players until it is inside its patrol radius again.
	Returning bool
	// Persistent NPCs survive an instance going Inactive.
	Persistent bool
}

// ProjectileState is the projectile payload.
type ProjectileState struct {
	Shooter   EntityID
	Origin    Vec2
	Direction Vec2
	Damage    float64
	Remaining float64 // lifetime left, seconds
	Traveled  float64
	MaxRange  float64
	Radius    float64
}

// ObjectKind is the closed enumeration of interactable objects.
type ObjectKind uint8

const (
	ObjectTree ObjectKind = iota + 1
	ObjectRock
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectTree:
		return "tree"
	case ObjectRock:
		return "rock"
	default:
		return "unknown"
	}
}

// ParseObjectKind maps a registry name to an ObjectKind.
func ParseObjectKind(s string) (ObjectKind, error) {
	switch s {
	case "tree":
		return ObjectTree, nil
	case "rock":
		return ObjectRock, nil
	default:
		return 0, fmt.Errorf("unknown object kind %q", s)
	}
}

// ObjectState is the interactable object payload.
type ObjectState struct {
	Kind      ObjectKind
	Health    float64
	MaxHealth float64
	Resources int
	// RespawnIn counts down while Depleted, seconds.
	RespawnIn float64
	Depleted  bool
}
