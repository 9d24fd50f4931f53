package world

import (
	"sync/atomic"

	"github.com/udisondev/coopsim/internal/model"
)

// ObjectIDGenerator generates unique entity IDs.
//
// ID ranges (convention):
//
//	0x00000000 - 0x0FFFFFFF: Reserved (0 = no entity)
//	0x10000000 - 0x1FFFFFFF: Players
//	0x20000000 - 0x2FFFFFFF: NPCs
//	0x30000000 - 0x3FFFFFFF: Projectiles
//	0x40000000 - 0x4FFFFFFF: Interactable objects
//
// The range alone tells the kind of an ID, which the friendly-fire check relies on.
type ObjectIDGenerator struct {
	nextPlayerID     atomic.Uint32
	nextNpcID        atomic.Uint32
	nextProjectileID atomic.Uint32
	nextObjectID     atomic.Uint32
}

const (
	playerIDBase     = 0x10000000
	npcIDBase        = 0x20000000
	projectileIDBase = 0x30000000
	objectIDBase     = 0x40000000
	idRangeEnd       = 0x50000000
)

// NewObjectIDGenerator creates a new ID generator.
func NewObjectIDGenerator() *ObjectIDGenerator {
	gen := &ObjectIDGenerator{}
	gen.nextPlayerID.Store(playerIDBase)
	gen.nextNpcID.Store(npcIDBase)
	gen.nextProjectileID.Store(projectileIDBase)
	gen.nextObjectID.Store(objectIDBase)
	return gen
}

// Next returns the next ID in the range of kind.
// Thread-safe via atomic increment.
func (g *ObjectIDGenerator) Next(kind model.Kind) model.EntityID {
	switch kind {
	case model.KindPlayer:
		return model.EntityID(g.nextPlayerID.Add(1))
	case model.KindNPC:
		return model.EntityID(g.nextNpcID.Add(1))
	case model.KindProjectile:
		return model.EntityID(g.nextProjectileID.Add(1))
	case model.KindInteractable:
		return model.EntityID(g.nextObjectID.Add(1))
	default:
		return 0
	}
}

// KindOf returns the entity kind encoded in id's range.
func KindOf(id model.EntityID) model.Kind {
	switch {
	case id > playerIDBase && id < npcIDBase:
		return model.KindPlayer
	case id > npcIDBase && id < projectileIDBase:
		return model.KindNPC
	case id > projectileIDBase && id < objectIDBase:
		return model.KindProjectile
	case id > objectIDBase && id < idRangeEnd:
		return model.KindInteractable
	default:
		return 0
	}
}
