package combat

import (
	"cmp"
	"math"
	"slices"

	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// angleEpsilon absorbs float error on the edge of the angular window.
const angleEpsilon = 1e-9

// InArc reports whether target lies within reach of origin and within
// halfAngle radians of the unit direction dir. A target at distance zero is
// always inside.
func InArc(origin, dir, target model.Vec2, reach, halfAngle float64) bool {
	to := target.Sub(origin)
	distSq := to.LenSq()
	if distSq > reach*reach {
		return false
	}
	if distSq == 0 {
		return true
	}
	cos := to.Dot(dir) / math.Sqrt(distSq)
	return cos >= math.Cos(halfAngle)-angleEpsilon
}

// inShape returns eligible targets of attacker inside the arc, sorted by ID.
func inShape(sp *world.Space, attacker *model.Entity, reach, halfAngle float64, dir model.Vec2) []*model.Entity {
	area := model.Box(attacker.Position, reach)

	var hits []*model.Entity
	sp.Partition().Nearby(area, func(e *model.Entity) bool {
		if e.ID == attacker.ID || !Eligible(attacker.Kind, e) {
			return true
		}
		if InArc(attacker.Position, dir, e.Position, reach, halfAngle) {
			hits = append(hits, e)
		}
		return true
	})
	slices.SortFunc(hits, func(a, b *model.Entity) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return hits
}
