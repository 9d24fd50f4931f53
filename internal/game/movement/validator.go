// Package movement validates and commits entity movement: per-command speed
// and displacement limits, instance bounds and axis-aligned collision.
package movement

import (
	"math"
	"time"

	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// directionTolerance is how far a non-zero direction may deviate from unit length.
const directionTolerance = 1e-3

// Result is the outcome of one movement command. Position is the
// authoritative position after the command, whether it was applied or not.
type Result struct {
	Outcome  model.Outcome
	Refusal  model.Refusal
	Position model.Vec2
}

// Accepted reports whether the command was committed.
func (r Result) Accepted() bool { return r.Outcome == model.OutcomeAccepted }

// Validator applies movement commands against one instance space.
// Stateless apart from its policy, safe for concurrent use.
type Validator struct {
	policy config.Movement
}

// NewValidator creates a validator with the given policy.
func NewValidator(policy config.Movement) *Validator {
	return &Validator{policy: policy}
}

// Policy returns the movement policy.
func (v *Validator) Policy() config.Movement { return v.policy }

// ApplyMovement validates a sequenced player move and commits it on success.
//
// Order of checks: duplicate sequence, delta time, direction, downed,
// movement lock, displacement, bounds, collision. Rejections leave the
// entity untouched, its last sequence included, so a corrected resend of
// the same sequence is evaluated again. Only an accepted move commits seq.
func (v *Validator) ApplyMovement(sp *world.Space, e *model.Entity, dir model.Vec2, dt float64, seq uint32, now time.Time) Result {
	p := e.Player
	if p != nil && seq <= p.LastSequence {
		return Result{Outcome: model.OutcomeDuplicate, Refusal: model.RefusalDuplicate, Position: e.Position}
	}
	accept := func(pos model.Vec2) Result {
		if p != nil {
			p.LastSequence = seq
		}
		return Result{Outcome: model.OutcomeAccepted, Position: pos}
	}

	reject := func(r model.Refusal) Result {
		return Result{Outcome: model.OutcomeRejected, Refusal: r, Position: e.Position}
	}

	if !(dt > 0) || dt > v.policy.MaxDeltaTime {
		return reject(model.RefusalDeltaTimeTooLarge)
	}
	if !validDirection(dir) {
		return reject(model.RefusalInvalidDirection)
	}
	dir = dir.Normalize()
	if p != nil {
		if p.Downed {
			return reject(model.RefusalDowned)
		}
		if now.Before(p.MovementLockedUntil) {
			return reject(model.RefusalMovementLocked)
		}
	}

	displacement := dir.Scale(v.policy.MaxSpeed * dt)
	if displacement.Len() > v.policy.MaxPositionDelta+v.policy.Epsilon {
		return reject(model.RefusalDisplacementTooLarge)
	}

	if dir.IsZero() {
		e.Velocity = model.Vec2{}
		return accept(e.Position)
	}

	candidate := e.Position.Add(displacement)
	if r := v.Check(sp, e, candidate); r != model.RefusalNone {
		return reject(r)
	}

	sp.Partition().Move(e, candidate)
	e.Velocity = dir.Scale(v.policy.MaxSpeed)
	return accept(candidate)
}

// Step moves e along dir at speed for dt seconds without sequence checks.
// Used for AI-driven movement. dir is normalized; a zero dir stops e.
func (v *Validator) Step(sp *world.Space, e *model.Entity, dir model.Vec2, speed, dt float64) model.Refusal {
	dir = dir.Normalize()
	if dir.IsZero() || dt <= 0 || speed <= 0 {
		e.Velocity = model.Vec2{}
		return model.RefusalNone
	}
	candidate := e.Position.Add(dir.Scale(speed * dt))
	if r := v.Check(sp, e, candidate); r != model.RefusalNone {
		e.Velocity = model.Vec2{}
		return r
	}
	sp.Partition().Move(e, candidate)
	e.Velocity = dir.Scale(speed)
	return model.RefusalNone
}

// Check tests whether e may occupy candidate: inside the instance bounds and
// free of obstacles and blocking entities. Overlaps that already exist at the
// current position are ignored so stuck entities can separate.
func (v *Validator) Check(sp *world.Space, e *model.Entity, candidate model.Vec2) model.Refusal {
	if !sp.Bounds().Contains(candidate) {
		return model.RefusalOutOfBounds
	}

	box := e.BoundsAt(candidate)
	current := e.Bounds()

	g := sp.Geometry()
	for _, o := range g.Obstacles() {
		if o.Overlaps(box) && !o.Overlaps(current) {
			return model.RefusalCollision
		}
	}

	blocked := false
	sp.Partition().Nearby(box, func(other *model.Entity) bool {
		if other.ID == e.ID || !Blocks(e, other) {
			return true
		}
		if other.Bounds().Overlaps(box) && !other.Bounds().Overlaps(current) {
			blocked = true
			return false
		}
		return true
	})
	if blocked {
		return model.RefusalCollision
	}
	return model.RefusalNone
}

// Blocks reports whether other stops mover. Players never block players,
// projectiles never block, downed players, dead NPCs and depleted objects
// do not block.
func Blocks(mover, other *model.Entity) bool {
	switch other.Kind {
	case model.KindPlayer:
		return mover.Kind != model.KindPlayer && other.Alive()
	case model.KindNPC:
		return other.Alive()
	case model.KindInteractable:
		return other.Object != nil && !other.Object.Depleted
	default:
		return false
	}
}

func validDirection(dir model.Vec2) bool {
	if math.IsNaN(dir.X) || math.IsNaN(dir.Y) || math.IsInf(dir.X, 0) || math.IsInf(dir.Y, 0) {
		return false
	}
	if dir.IsZero() {
		return true
	}
	return math.Abs(dir.Len()-1) <= directionTolerance
}
