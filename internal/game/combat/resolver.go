// Package combat resolves attacks: melee shape hit tests, projectile flight
// and damage application with downed and death handling.
package combat

import (
	"log/slog"
	"math"
	"time"

	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// WeaponSource looks up weapon tuning by shape. *data.Registry implements it.
type WeaponSource interface {
	Weapon(shape model.WeaponShape) (*data.Weapon, bool)
}

// DamageFunc is called for every hit that lands on an NPC, before a possible
// death. Used by the AI to accumulate threat.
type DamageFunc func(instance string, npc, attacker model.EntityID, amount float64)

// DeathFunc is called once when an NPC is removed after reaching zero health.
type DeathFunc func(instance string, npc *model.Entity)

// HitResult describes one landed hit, for observation in tests.
type HitResult struct {
	Attacker model.EntityID
	Target   model.EntityID
	Damage   float64
	Killed   bool
}

// Resolver applies attacks to the entities of an instance space.
// It keeps no per-instance state and is shared by all instance ticks.
type Resolver struct {
	weapons WeaponSource

	onDamage DamageFunc
	onDeath  DeathFunc

	// hitObserver — callback для наблюдения за попаданиями (nil в production).
	hitObserver func(HitResult)
}

// NewResolver creates a resolver over the given weapon table.
func NewResolver(weapons WeaponSource) *Resolver {
	return &Resolver{weapons: weapons}
}

// SetDamageFunc sets the NPC damage notification.
func (r *Resolver) SetDamageFunc(fn DamageFunc) { r.onDamage = fn }

// SetDeathFunc sets the NPC death notification.
func (r *Resolver) SetDeathFunc(fn DeathFunc) { r.onDeath = fn }

// SetHitObserver sets callback for observing landed hits (for tests).
func (r *Resolver) SetHitObserver(fn func(HitResult)) { r.hitObserver = fn }

// ResolveAttack performs a player attack with the given weapon shape toward dir.
//
// Refusals: Downed (attacker downed), OnCooldown (movement lock from the
// previous attack still running), InvalidDirection (zero or non-finite dir),
// InsufficientItems (the weapon item is not in the inventory),
// InsufficientAmmo (ranged with no arrows). A refused attack mutates nothing.
// An accepted attack locks the attacker's movement for the weapon duration;
// it may hit nothing.
func (r *Resolver) ResolveAttack(sp *world.Space, attacker *model.Entity, shape model.WeaponShape, dir model.Vec2, now time.Time) ([]model.CombatEvent, model.Refusal) {
	p := attacker.Player
	if p == nil {
		return nil, model.RefusalTargetNotEligible
	}
	if p.Downed {
		return nil, model.RefusalDowned
	}
	if now.Before(p.MovementLockedUntil) {
		return nil, model.RefusalOnCooldown
	}
	if !finite(dir) || dir.IsZero() {
		return nil, model.RefusalInvalidDirection
	}
	dir = dir.Normalize()

	w, ok := r.weapons.Weapon(shape)
	if !ok {
		return nil, model.RefusalTargetNotEligible
	}
	if w.Item != "" && p.ItemCount(w.Item) == 0 {
		return nil, model.RefusalInsufficientItems
	}

	if shape == model.WeaponRanged {
		if !p.TakeItem(w.Ammo) {
			return nil, model.RefusalInsufficientAmmo
		}
		if err := r.fire(sp, attacker, w, w.Damage, dir); err != nil {
			// Стрела уже списана: возвращаем, чтобы отказ ничего не менял.
			p.GiveItem(w.Ammo, 1)
			slog.Error("spawning projectile", "instance", sp.Key(), "attacker", attacker.ID, "error", err)
			return nil, model.RefusalInstanceUnavailable
		}
		p.MovementLockedUntil = now.Add(w.Lock)
		return nil, model.RefusalNone
	}

	p.MovementLockedUntil = now.Add(w.Lock)
	return r.swing(sp, attacker, w.Damage, w.Range, w.HalfAngle(), dir, now), model.RefusalNone
}

// Strike performs an NPC attack using the enemy template's damage and range
// with the angular window of its weapon shape. Ranged enemies fire a projectile.
// Cooldowns are the caller's concern.
func (r *Resolver) Strike(sp *world.Space, npc *model.Entity, enemy *data.Enemy, dir model.Vec2, now time.Time) []model.CombatEvent {
	if !npc.Alive() || !finite(dir) || dir.IsZero() {
		return nil
	}
	dir = dir.Normalize()
	npc.NPC.Facing = dir

	w, ok := r.weapons.Weapon(enemy.WeaponShape())
	if !ok {
		return nil
	}
	if enemy.WeaponShape() == model.WeaponRanged {
		if err := r.fire(sp, npc, w, enemy.Damage, dir); err != nil {
			slog.Error("spawning projectile", "instance", sp.Key(), "attacker", npc.ID, "error", err)
		}
		return nil
	}
	return r.swing(sp, npc, enemy.Damage, enemy.AttackRange, w.HalfAngle(), dir, now)
}

// swing hits every eligible target inside the shape, in ascending ID order.
func (r *Resolver) swing(sp *world.Space, attacker *model.Entity, damage, reach, halfAngle float64, dir model.Vec2, now time.Time) []model.CombatEvent {
	var events []model.CombatEvent
	for _, target := range inShape(sp, attacker, reach, halfAngle, dir) {
		events = r.applyDamage(sp, attacker.ID, attacker.Kind, target, damage, now, events)
	}
	return events
}

// applyDamage subtracts amount from target and appends the resulting events.
// An NPC reaching zero health is removed with a single Death event; a player
// becomes downed.
func (r *Resolver) applyDamage(sp *world.Space, attackerID model.EntityID, attackerKind model.Kind, target *model.Entity, amount float64, now time.Time, events []model.CombatEvent) []model.CombatEvent {
	ev := model.CombatEvent{
		Instance:     sp.Key(),
		Attacker:     attackerID,
		Target:       target.ID,
		AttackerKind: attackerKind,
		TargetKind:   target.Kind,
		Amount:       amount,
		At:           now,
	}

	switch target.Kind {
	case model.KindNPC:
		n := target.NPC
		n.Health = math.Max(0, n.Health-amount)
		ev.Kind, ev.Health = model.EventHit, n.Health
		events = append(events, ev)

		if r.onDamage != nil {
			r.onDamage(sp.Key(), target.ID, attackerID, amount)
		}
		killed := n.Health <= 0
		r.observe(attackerID, target.ID, amount, killed)
		if !killed {
			return events
		}

		ev.Kind = model.EventDeath
		events = append(events, ev)
		sp.Despawn(target.ID)
		if r.onDeath != nil {
			r.onDeath(sp.Key(), target)
		}
		slog.Debug("npc killed", "instance", sp.Key(), "npc", target.ID, "killer", attackerID)

	case model.KindPlayer:
		p := target.Player
		p.Health = math.Max(0, p.Health-amount)
		ev.Kind, ev.Health = model.EventHit, p.Health
		events = append(events, ev)

		downed := p.Health <= 0
		r.observe(attackerID, target.ID, amount, downed)
		if !downed {
			return events
		}
		p.Downed = true
		target.Velocity = model.Vec2{}
		ev.Kind = model.EventDowned
		events = append(events, ev)
		slog.Debug("player downed", "instance", sp.Key(), "player", target.ID, "attacker", attackerID)
	}
	return events
}

func (r *Resolver) observe(attacker, target model.EntityID, amount float64, killed bool) {
	if r.hitObserver != nil {
		r.hitObserver(HitResult{Attacker: attacker, Target: target, Damage: amount, Killed: killed})
	}
}

// Eligible reports whether an attacker of kind may damage target.
// Players only hit living NPCs, NPCs only hit players that are not downed.
func Eligible(attacker model.Kind, target *model.Entity) bool {
	switch attacker {
	case model.KindPlayer:
		return target.Kind == model.KindNPC && target.Alive()
	case model.KindNPC:
		return target.Kind == model.KindPlayer && target.Alive()
	default:
		return false
	}
}

func finite(v model.Vec2) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
