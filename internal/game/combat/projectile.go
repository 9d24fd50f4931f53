package combat

import (
	"math"
	"time"

	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// fire spawns a projectile at the shooter's position flying along dir.
func (r *Resolver) fire(sp *world.Space, shooter *model.Entity, w *data.Weapon, damage float64, dir model.Vec2) error {
	e := &model.Entity{
		ID:       sp.IDs().Next(model.KindProjectile),
		Kind:     model.KindProjectile,
		Position: shooter.Position,
		Velocity: dir.Scale(w.ProjectileSpeed),
		HalfSize: w.ProjectileRadius,
		Owner:    shooter.Owner,
		Projectile: &model.ProjectileState{
			Shooter:   shooter.ID,
			Origin:    shooter.Position,
			Direction: dir,
			Damage:    damage,
			Remaining: w.ProjectileTTL,
			MaxRange:  w.Range,
			Radius:    w.ProjectileRadius,
		},
	}
	return sp.Spawn(e)
}

// AdvanceProjectiles moves every projectile of the instance by dt seconds
// using a swept segment test. A projectile hits the first eligible target
// along its path, or stops at the first static obstacle. It expires when its
// lifetime or range runs out or when it would leave the instance bounds.
func (r *Resolver) AdvanceProjectiles(sp *world.Space, dt float64, now time.Time) []model.CombatEvent {
	var events []model.CombatEvent
	sp.Partition().ForEach(model.KindProjectile, func(e *model.Entity) {
		events = r.advance(sp, e, dt, now, events)
	})
	return events
}

func (r *Resolver) advance(sp *world.Space, e *model.Entity, dt float64, now time.Time, events []model.CombatEvent) []model.CombatEvent {
	pr := e.Projectile
	speed := e.Velocity.Len()
	travel := math.Min(speed*dt, pr.MaxRange-pr.Traveled)
	if travel < 0 {
		travel = 0
	}
	from := e.Position
	to := from.Add(pr.Direction.Scale(travel))

	shooterKind := world.KindOf(pr.Shooter)
	target, tHit := firstTarget(sp, shooterKind, from, to, pr.Radius)
	tWall, wall := firstObstacle(sp, from, to)

	switch {
	case target != nil && (!wall || tHit <= tWall):
		sp.Despawn(e.ID)
		return r.applyDamage(sp, pr.Shooter, shooterKind, target, pr.Damage, now, events)
	case wall:
		sp.Despawn(e.ID)
		return events
	}

	if !sp.Bounds().Contains(to) {
		sp.Despawn(e.ID)
		return events
	}
	sp.Partition().Move(e, to)
	pr.Traveled += travel
	pr.Remaining -= dt
	if pr.Remaining <= 0 || pr.Traveled >= pr.MaxRange {
		sp.Despawn(e.ID)
	}
	return events
}

// firstTarget returns the eligible entity whose box the swept circle reaches
// first, with the segment parameter of the closest approach.
func firstTarget(sp *world.Space, shooter model.Kind, from, to model.Vec2, radius float64) (*model.Entity, float64) {
	area := model.Rect{
		Min: model.V(math.Min(from.X, to.X)-radius, math.Min(from.Y, to.Y)-radius),
		Max: model.V(math.Max(from.X, to.X)+radius, math.Max(from.Y, to.Y)+radius),
	}

	var best *model.Entity
	bestT := math.Inf(1)
	sp.Partition().Nearby(area, func(e *model.Entity) bool {
		if !Eligible(shooter, e) {
			return true
		}
		reach := radius + e.HalfSize
		if model.SegmentPointDistanceSquared(from, to, e.Position) > reach*reach {
			return true
		}
		t := projection(from, to, e.Position)
		if t < bestT || (t == bestT && best != nil && e.ID < best.ID) {
			best, bestT = e, t
		}
		return true
	})
	return best, bestT
}

// firstObstacle returns the segment parameter where from→to enters the
// nearest static obstacle.
func firstObstacle(sp *world.Space, from, to model.Vec2) (float64, bool) {
	best, hit := math.Inf(1), false
	for _, o := range sp.Geometry().Obstacles() {
		if t, ok := entry(o, from, to); ok && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}

// projection returns the clamped parameter of p projected on a→b.
func projection(a, b, p model.Vec2) float64 {
	ab := b.Sub(a)
	l := ab.LenSq()
	if l == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l))
}

// entry is the slab test returning the parameter at which a→b enters r.
func entry(r model.Rect, a, b model.Vec2) (float64, bool) {
	d := b.Sub(a)
	tMin, tMax := 0.0, 1.0
	for _, axis := range [2]struct{ p, d, lo, hi float64 }{
		{a.X, d.X, r.Min.X, r.Max.X},
		{a.Y, d.Y, r.Min.Y, r.Max.Y},
	} {
		if axis.d == 0 {
			if axis.p <= axis.lo || axis.p >= axis.hi {
				return 0, false
			}
			continue
		}
		t1 := (axis.lo - axis.p) / axis.d
		t2 := (axis.hi - axis.p) / axis.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin >= tMax {
			return 0, false
		}
	}
	return tMin, true
}
