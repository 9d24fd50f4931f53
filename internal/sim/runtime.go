package sim

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/udisondev/coopsim/internal/ai"
	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/game/instance"
	"github.com/udisondev/coopsim/internal/game/zone"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// runtime is the per-instance simulation state. During phase 1 it is
// touched only by the goroutine ticking its instance.
type runtime struct {
	inst  *instance.Instance
	space *world.Space
	ai    *ai.TickManager
	rng   *rand.Rand
	// seeded is set once persistent NPCs and objects were placed.
	seeded bool

	// Per-tick outputs, reset by begin.
	now       time.Time
	acks      []pendingAck
	events    []model.CombatEvent
	handoffs  []handoff
	violation string
	// claimed holds the sequences seen this tick. The committed
	// LastSequence only moves on acceptance, so a resend inside one batch
	// is caught here.
	claimed map[claimKey]struct{}
}

type claimKey struct {
	entity model.EntityID
	seq    uint32
}

type pendingAck struct {
	identity string
	ack      Ack
}

// handoff is an accepted transition waiting for the serial phase.
type handoff struct {
	identity string
	entity   model.EntityID
	zone     *zone.TransitionZone
	ack      int // index into runtime.acks
}

func (rt *runtime) key() string { return rt.inst.Key() }

func (rt *runtime) begin(now time.Time) {
	rt.now = now
	rt.acks = rt.acks[:0]
	rt.events = rt.events[:0]
	rt.handoffs = rt.handoffs[:0]
	rt.violation = ""
	clear(rt.claimed)
}

// markClaimed reports false when the sequence was already seen this tick.
func (rt *runtime) markClaimed(id model.EntityID, seq uint32) bool {
	if rt.claimed == nil {
		rt.claimed = make(map[claimKey]struct{})
	}
	k := claimKey{entity: id, seq: seq}
	if _, ok := rt.claimed[k]; ok {
		return false
	}
	rt.claimed[k] = struct{}{}
	return true
}

func (rt *runtime) ack(identity string, a Ack) int {
	rt.acks = append(rt.acks, pendingAck{identity: identity, ack: a})
	return len(rt.acks) - 1
}

func (e *Engine) ensureRuntime(key string) (*runtime, error) {
	if rt, ok := e.runtimes[key]; ok {
		return rt, nil
	}
	inst, err := e.lifecycle.GetOrCreate(key)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		inst:  inst,
		space: world.NewSpace(e.store, key, e.geometry[key]),
		ai:    ai.NewTickManager(key),
		rng:   rand.New(rand.NewPCG(e.cfg.Seed, uint64(data.ResourceID("map", key)))),
	}
	e.runtimes[key] = rt
	return rt, nil
}

// populate places the template spawns of a Hot instance. Transient NPCs are
// placed every time the instance becomes populated, persistent NPCs and
// objects only once.
func (e *Engine) populate(rt *runtime) {
	if rt.inst.Populated() || rt.inst.State() != instance.StateHot {
		return
	}
	tmpl := rt.inst.Template()
	npcs := 0
	for _, n := range tmpl.NPCs {
		if n.Persistent && rt.seeded {
			continue
		}
		if e.spawnNPC(rt, n) {
			npcs++
		}
	}
	objects := 0
	if !rt.seeded {
		for _, o := range tmpl.Objects {
			if e.spawnObject(rt, o) {
				objects++
			}
		}
	}
	rt.seeded = true
	rt.inst.SetPopulated(true)
	slog.Debug("instance populated", "instance", rt.key(), "npcs", npcs, "objects", objects)
}

func (e *Engine) spawnNPC(rt *runtime, n instance.NPCSpawn) bool {
	enemy, ok := e.registry.Enemy(n.Template)
	if !ok {
		slog.Warn("unknown enemy template in spawn", "instance", rt.key(), "template", n.Template)
		return false
	}
	npc := &model.Entity{
		ID:       e.store.IDs().Next(model.KindNPC),
		Kind:     model.KindNPC,
		Position: n.Position,
		HalfSize: enemy.HalfSize,
		NPC: &model.NPCState{
			Template:   enemy.Name,
			Health:     enemy.MaxHealth,
			MaxHealth:  enemy.MaxHealth,
			Spawn:      n.Position,
			Facing:     model.V(1, 0),
			Persistent: n.Persistent,
		},
	}
	if err := rt.space.Spawn(npc); err != nil {
		slog.Error("spawning npc", "instance", rt.key(), "template", n.Template, "error", err)
		return false
	}
	rt.ai.Register(npc.ID, e.newController(rt, npc, enemy))
	return true
}

func (e *Engine) newController(rt *runtime, npc *model.Entity, enemy *data.Enemy) *ai.NpcAI {
	sp := rt.space
	attack := func(npc *model.Entity, dir model.Vec2) {
		rt.events = append(rt.events, e.resolver.Strike(sp, npc, enemy, dir, rt.now)...)
	}
	scan := func(center model.Vec2, radius float64, fn func(*model.Entity) bool) {
		sp.Partition().Nearby(model.Box(center, radius), fn)
	}
	c := ai.NewNpcAI(npc, enemy, rt.rng, attack, scan, sp.Get)
	c.SetMoveFunc(func(npc *model.Entity, dir model.Vec2, speed, dt float64) bool {
		return e.validator.Step(sp, npc, dir, speed, dt) == model.RefusalNone
	})
	c.SetSightFunc(sp.Geometry().CanSeeTarget)
	c.SetPathFunc(sp.Geometry().FindPath)
	return c
}

func (e *Engine) spawnObject(rt *runtime, o instance.ObjectSpawn) bool {
	kind, ok := e.registry.Object(o.Kind)
	if !ok {
		slog.Warn("unknown object kind in spawn", "instance", rt.key(), "kind", o.Kind)
		return false
	}
	obj := &model.Entity{
		ID:       e.store.IDs().Next(model.KindInteractable),
		Kind:     model.KindInteractable,
		Position: o.Position,
		HalfSize: kind.HalfSize,
		Object: &model.ObjectState{
			Kind:      o.Kind,
			Health:    kind.MaxHealth,
			MaxHealth: kind.MaxHealth,
			Resources: kind.Resources,
		},
	}
	if err := rt.space.Spawn(obj); err != nil {
		slog.Error("spawning object", "instance", rt.key(), "kind", o.Kind, "error", err)
		return false
	}
	return true
}

// clearTransient drops the state an Inactive instance does not keep:
// projectiles and non-persistent NPCs. They come back on the next populate.
func (e *Engine) clearTransient(rt *runtime) int {
	var drop []model.EntityID
	rt.space.Partition().ForEach(model.KindProjectile, func(p *model.Entity) {
		drop = append(drop, p.ID)
	})
	rt.space.Partition().ForEach(model.KindNPC, func(n *model.Entity) {
		if !n.NPC.Persistent {
			drop = append(drop, n.ID)
		}
	})
	for _, id := range drop {
		rt.ai.Unregister(id)
		rt.space.Despawn(id)
	}
	rt.inst.SetPopulated(false)
	return len(drop)
}
