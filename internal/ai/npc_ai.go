package ai

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/model"
)

// AttackFunc executes an NPC attack toward dir.
// Injected by the simulation engine to avoid import cycle with combat.
type AttackFunc func(npc *model.Entity, dir model.Vec2)

// ScanFunc calls fn for entities whose box is near center within radius.
// fn returning false stops the scan.
type ScanFunc func(center model.Vec2, radius float64, fn func(*model.Entity) bool)

// GetObjectFunc looks up an entity of the NPC's instance by ID.
type GetObjectFunc func(id model.EntityID) (*model.Entity, bool)

// MoveNpcFunc moves npc along dir at speed for dt seconds.
// Returns false if the move was refused (bounds or collision).
// If nil, NPC movement (patrol/chase) is disabled.
type MoveNpcFunc func(npc *model.Entity, dir model.Vec2, speed, dt float64) bool

// SightFunc reports whether from has line of sight to to.
// If nil, every target in range is considered visible.
type SightFunc func(from, to model.Vec2) bool

// PathFunc returns waypoints from → to around static obstacles, or nil.
type PathFunc func(from, to model.Vec2, half float64) []model.Vec2

const (
	// patrolSpeedFactor scales template speed while patrolling.
	patrolSpeedFactor = 0.5
	// arriveDistance is how close a patrol target must be to count as reached.
	arriveDistance = 2.0
)

// NpcAI implements the Idle → Alert → Chasing state machine for one enemy.
// All state lives on the entity's NPC payload; the controller only holds
// template tuning and callbacks.
type NpcAI struct {
	npc       *model.Entity
	enemy     *data.Enemy
	rng       *rand.Rand
	isRunning atomic.Bool

	// Callbacks (injected to avoid import cycles)
	attackFunc    AttackFunc
	scanFunc      ScanFunc
	getObjectFunc GetObjectFunc
	moveFunc      MoveNpcFunc
	sightFunc     SightFunc
	pathFunc      PathFunc
}

// NewNpcAI creates a controller for npc using enemy tuning.
// rng drives patrol choices and must not be shared across goroutines.
func NewNpcAI(
	npc *model.Entity,
	enemy *data.Enemy,
	rng *rand.Rand,
	attackFunc AttackFunc,
	scanFunc ScanFunc,
	getObjectFunc GetObjectFunc,
) *NpcAI {
	return &NpcAI{
		npc:           npc,
		enemy:         enemy,
		rng:           rng,
		attackFunc:    attackFunc,
		scanFunc:      scanFunc,
		getObjectFunc: getObjectFunc,
	}
}

// SetMoveFunc sets the NPC movement callback.
func (ai *NpcAI) SetMoveFunc(fn MoveNpcFunc) { ai.moveFunc = fn }

// SetSightFunc sets the line of sight callback.
func (ai *NpcAI) SetSightFunc(fn SightFunc) { ai.sightFunc = fn }

// SetPathFunc sets the pathfinding callback used when a direct chase is blocked.
func (ai *NpcAI) SetPathFunc(fn PathFunc) { ai.pathFunc = fn }

// Npc returns the controlled entity.
func (ai *NpcAI) Npc() *model.Entity { return ai.npc }

// Start starts the AI controller in Idle.
func (ai *NpcAI) Start() {
	ai.isRunning.Store(true)
	ai.npc.NPC.Threat.LeashOrigin = ai.npc.NPC.Spawn
	ai.SetState(model.AIIdle)

	if IsDebugEnabled() {
		slog.Debug("npc AI started",
			"npc", ai.npc.ID,
			"template", ai.enemy.Name,
			"detection", ai.enemy.Detection)
	}
}

// Stop stops the AI controller.
func (ai *NpcAI) Stop() {
	ai.isRunning.Store(false)
	ai.npc.NPC.Threat.Clear()
	ai.npc.Velocity = model.Vec2{}
}

// SetState sets the AI state on the underlying NPC.
func (ai *NpcAI) SetState(state model.AIState) {
	n := ai.npc.NPC
	old := n.State
	n.State = state

	if old != state && IsDebugEnabled() {
		slog.Debug("npc AI state changed",
			"npc", ai.npc.ID,
			"from", old,
			"to", state,
			"target", n.Threat.Target)
	}
}

// CurrentState returns current AI state.
func (ai *NpcAI) CurrentState() model.AIState {
	return ai.npc.NPC.State
}

// NotifyDamage adds threat and pulls an Idle or Alert NPC into Chasing the attacker.
func (ai *NpcAI) NotifyDamage(attackerID model.EntityID, damage float64, now time.Time) {
	if !ai.isRunning.Load() || !ai.npc.Alive() {
		return
	}
	t := &ai.npc.NPC.Threat
	t.Threat += damage

	if ai.CurrentState() == model.AIChasing && t.HasTarget() {
		return
	}
	t.Target = attackerID
	t.LastSeenAt = now
	if ai.getObjectFunc != nil {
		if attacker, ok := ai.getObjectFunc(attackerID); ok {
			t.LastSeen = attacker.Position
		}
	}
	ai.SetState(model.AIChasing)
}

// Tick performs one AI step.
func (ai *NpcAI) Tick(now time.Time, dt float64) {
	if !ai.isRunning.Load() || !ai.npc.Alive() {
		return
	}

	switch ai.CurrentState() {
	case model.AIIdle:
		ai.thinkIdle(now, dt)
	case model.AIAlert:
		ai.thinkAlert(now, dt)
	case model.AIChasing:
		ai.thinkChasing(now, dt)
	}
}

// thinkIdle looks for the nearest eligible player and otherwise patrols around spawn.
func (ai *NpcAI) thinkIdle(now time.Time, dt float64) {
	if ai.npc.NPC.Returning {
		if ai.npc.Position.Distance(ai.npc.NPC.Spawn) > ai.enemy.PatrolRadius {
			ai.returnHome(dt)
			return
		}
		ai.npc.NPC.Returning = false
	}
	if target := ai.nearestPlayer(); target != nil {
		n := ai.npc.NPC
		n.Threat.Target = target.ID
		n.Threat.LastSeen = target.Position
		n.Threat.LastSeenAt = now
		n.StateTimer = ai.enemy.AlertPause.Seconds()
		ai.face(target.Position)
		ai.npc.Velocity = model.Vec2{}
		ai.SetState(model.AIAlert)
		return
	}
	ai.patrol(dt)
}

// thinkAlert holds position facing the last known target position until the
// pause runs out, then chases a visible target.
func (ai *NpcAI) thinkAlert(now time.Time, dt float64) {
	n := ai.npc.NPC
	ai.npc.Velocity = model.Vec2{}

	target, ok := ai.validTarget()
	if !ok {
		ai.returnIdle("target lost")
		return
	}

	visible := ai.npc.Position.Distance(target.Position) <= ai.enemy.Leash && ai.canSee(target.Position)
	if visible {
		n.Threat.LastSeen = target.Position
		n.Threat.LastSeenAt = now
	}
	ai.face(n.Threat.LastSeen)

	if now.Sub(n.Threat.LastSeenAt) >= ai.enemy.LeashTime {
		ai.returnIdle("leash time")
		return
	}

	n.StateTimer -= dt
	if n.StateTimer <= 0 && visible {
		n.StateTimer = 0
		ai.SetState(model.AIChasing)
	}
}

// thinkChasing validates the target and leash, then attacks in range or pursues.
func (ai *NpcAI) thinkChasing(now time.Time, dt float64) {
	n := ai.npc.NPC

	target, ok := ai.validTarget()
	if !ok {
		ai.returnIdle("target lost")
		return
	}
	if ai.npc.Position.Distance(target.Position) > ai.enemy.Leash {
		ai.returnIdle("target beyond leash")
		return
	}
	if ai.npc.Position.Distance(n.Threat.LeashOrigin) > ai.enemy.Leash {
		ai.returnIdle("too far from leash origin")
		return
	}
	if now.Sub(n.Threat.LastSeenAt) > ai.enemy.LeashTime {
		ai.returnIdle("leash time")
		return
	}
	if !ai.canSee(target.Position) {
		n.StateTimer = ai.enemy.AlertPause.Seconds()
		ai.npc.Velocity = model.Vec2{}
		ai.SetState(model.AIAlert)
		return
	}

	n.Threat.LastSeen = target.Position
	n.Threat.LastSeenAt = now
	ai.face(target.Position)

	if ai.npc.Position.Distance(target.Position) <= ai.enemy.AttackRange {
		ai.npc.Velocity = model.Vec2{}
		if !now.Before(n.AttackReadyAt) && ai.attackFunc != nil {
			dir := n.Facing
			if dir.IsZero() {
				dir = model.V(1, 0)
			}
			ai.attackFunc(ai.npc, dir)
			n.AttackReadyAt = now.Add(ai.enemy.AttackCooldown)
		}
		return
	}

	ai.chase(target, dt)
}

// chase moves toward target, falling back to the first path waypoint when
// the straight line is blocked.
func (ai *NpcAI) chase(target *model.Entity, dt float64) {
	if ai.moveFunc == nil {
		return
	}
	to := target.Position
	if ai.step(to, ai.enemy.Speed, dt) {
		return
	}
	if ai.pathFunc == nil {
		return
	}
	path := ai.pathFunc(ai.npc.Position, to, ai.npc.HalfSize)
	if len(path) > 0 {
		ai.step(path[0], ai.enemy.Speed, dt)
	}
}

// returnHome walks back to spawn at full speed.
func (ai *NpcAI) returnHome(dt float64) {
	if ai.moveFunc == nil {
		return
	}
	home := ai.npc.NPC.Spawn
	if ai.step(home, ai.enemy.Speed, dt) || ai.pathFunc == nil {
		return
	}
	if path := ai.pathFunc(ai.npc.Position, home, ai.npc.HalfSize); len(path) > 0 {
		ai.step(path[0], ai.enemy.Speed, dt)
	}
}

// patrol walks toward a random point within the patrol radius of spawn.
func (ai *NpcAI) patrol(dt float64) {
	if ai.moveFunc == nil {
		return
	}
	n := ai.npc.NPC
	if n.PatrolTarget.IsZero() || ai.npc.Position.Distance(n.PatrolTarget) <= arriveDistance {
		n.PatrolTarget = ai.pickPatrolTarget()
	}
	if !ai.step(n.PatrolTarget, ai.enemy.Speed*patrolSpeedFactor, dt) {
		n.PatrolTarget = model.Vec2{}
	}
}

func (ai *NpcAI) pickPatrolTarget() model.Vec2 {
	angle := ai.rng.Float64() * 2 * math.Pi
	r := ai.rng.Float64() * ai.enemy.PatrolRadius
	return ai.npc.NPC.Spawn.Add(model.V(math.Cos(angle), math.Sin(angle)).Scale(r))
}

// step moves toward to without overshooting it.
func (ai *NpcAI) step(to model.Vec2, speed, dt float64) bool {
	delta := to.Sub(ai.npc.Position)
	dist := delta.Len()
	if dist == 0 || dt <= 0 {
		return true
	}
	speed = math.Min(speed, dist/dt)
	dir := delta.Scale(1 / dist)
	if !ai.moveFunc(ai.npc, dir, speed, dt) {
		return false
	}
	ai.npc.NPC.Facing = dir
	return true
}

// nearestPlayer returns the closest eligible, visible player within
// detection range. Ties go to the lower ID.
func (ai *NpcAI) nearestPlayer() *model.Entity {
	if ai.scanFunc == nil {
		return nil
	}
	pos := ai.npc.Position
	rangeSq := ai.enemy.Detection * ai.enemy.Detection

	var best *model.Entity
	bestSq := math.Inf(1)
	ai.scanFunc(pos, ai.enemy.Detection, func(e *model.Entity) bool {
		if e.Kind != model.KindPlayer || !e.Alive() {
			return true
		}
		d := pos.DistanceSquared(e.Position)
		if d > rangeSq || !ai.canSee(e.Position) {
			return true
		}
		if d < bestSq || (d == bestSq && best != nil && e.ID < best.ID) {
			best, bestSq = e, d
		}
		return true
	})
	return best
}

// validTarget resolves the threat target; it must still be a player that is not downed.
func (ai *NpcAI) validTarget() (*model.Entity, bool) {
	t := ai.npc.NPC.Threat
	if !t.HasTarget() || ai.getObjectFunc == nil {
		return nil, false
	}
	e, ok := ai.getObjectFunc(t.Target)
	if !ok || e.Kind != model.KindPlayer || !e.Alive() {
		return nil, false
	}
	return e, true
}

func (ai *NpcAI) canSee(to model.Vec2) bool {
	if ai.sightFunc == nil {
		return true
	}
	return ai.sightFunc(ai.npc.Position, to)
}

func (ai *NpcAI) face(to model.Vec2) {
	if d := to.Sub(ai.npc.Position); !d.IsZero() {
		ai.npc.NPC.Facing = d.Normalize()
	}
}

// returnIdle drops the target and threat and resumes patrol.
func (ai *NpcAI) returnIdle(reason string) {
	n := ai.npc.NPC
	if IsDebugEnabled() {
		slog.Debug("npc disengaged", "npc", ai.npc.ID, "target", n.Threat.Target, "reason", reason)
	}
	if ai.npc.Position.Distance(n.Threat.LeashOrigin) > ai.enemy.Leash {
		n.Returning = true
	}
	n.Threat.Clear()
	n.StateTimer = 0
	n.PatrolTarget = model.Vec2{}
	ai.npc.Velocity = model.Vec2{}
	ai.SetState(model.AIIdle)
}
