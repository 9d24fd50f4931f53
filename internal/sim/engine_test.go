package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/game/instance"
	"github.com/udisondev/coopsim/internal/game/interest"
	"github.com/udisondev/coopsim/internal/model"
)

const (
	outside = "tavern_outside"
	inside  = "tavern_inside"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordSink struct {
	mu      sync.Mutex
	records []model.TickRecord
}

func (s *recordSink) Record(rec model.TickRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

func (s *recordSink) lifecycle() []model.LifecycleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LifecycleRecord
	for _, r := range s.records {
		out = append(out, r.Lifecycle...)
	}
	return out
}

type harness struct {
	t      *testing.T
	engine *Engine
	clock  *fakeClock
	sink   *recordSink
}

func newHarness(t *testing.T, mutate ...func(*config.Simulation)) *harness {
	t.Helper()
	cfg := config.DefaultSimulation()
	for _, m := range mutate {
		m(&cfg)
	}
	reg, err := data.Load("")
	require.NoError(t, err)

	e, err := New(cfg, reg)
	require.NoError(t, err)

	h := &harness{
		t:      t,
		engine: e,
		clock:  &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		sink:   &recordSink{},
	}
	e.SetClock(h.clock.Now)
	e.SetSink(h.sink)
	return h
}

func (h *harness) join(identity string, instanceKey string, pos model.Vec2) *Session {
	h.t.Helper()
	s, err := h.engine.Join(identity, &model.Profile{Username: identity, Instance: instanceKey, Position: pos}, 64)
	require.NoError(h.t, err)
	return s
}

func (h *harness) tick() {
	h.t.Helper()
	h.clock.Advance(h.engine.Config().TickInterval())
	require.NoError(h.t, h.engine.Tick(context.Background()))
}

func (h *harness) submit(identity string, c model.Command) {
	h.t.Helper()
	require.NoError(h.t, h.engine.Submit(identity, c))
}

func (h *harness) player(s *Session) *model.Entity {
	h.t.Helper()
	e, ok := h.engine.Store().Get(s.EntityID())
	require.True(h.t, ok, "player %d not in store", s.EntityID())
	return e
}

// teleport places the player between ticks, keeping the blocker index current.
func (h *harness) teleport(s *Session, pos model.Vec2) {
	h.t.Helper()
	p := h.player(s)
	h.engine.Store().Partition(p.Instance).Move(p, pos)
}

func move(seq uint32, dir model.Vec2, dt float64) model.Command {
	return model.Command{Sequence: seq, Kind: model.IntentMove, Direction: dir, DeltaTime: dt}
}

func drainFrames(s *Session) []Frame {
	var out []Frame
	for {
		select {
		case f := <-s.Outbox().Frames():
			out = append(out, f)
		default:
			return out
		}
	}
}

func allAcks(frames []Frame) []Ack {
	var out []Ack
	for _, f := range frames {
		out = append(out, f.Acks...)
	}
	return out
}

func findNPC(t *testing.T, e *Engine, key, template string) *model.Entity {
	t.Helper()
	var found *model.Entity
	e.Store().ForEachInInstance(key, func(ent *model.Entity) {
		if found == nil && ent.NPC != nil && ent.NPC.Template == template {
			found = ent
		}
	})
	require.NotNil(t, found, "npc %s in %s", template, key)
	return found
}

func TestEngine_MoveAndTransition(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(900, 500))

	h.submit("alice", move(1, model.V(1, 0), 0.3))
	h.tick()

	frames := drainFrames(alice)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Snapshot, "first frame is a snapshot")
	require.Len(t, frames[0].Acks, 1)
	ack := frames[0].Acks[0]
	assert.Equal(t, model.OutcomeAccepted, ack.Outcome)
	assert.Equal(t, model.V(975, 500), ack.Position)
	assert.Equal(t, uint32(1), ack.LastSequence)

	h.submit("alice", model.Command{Sequence: 2, Kind: model.IntentTransition})
	h.tick()

	frames = drainFrames(alice)
	require.Len(t, frames, 1)
	f := frames[0]
	require.Len(t, f.Acks, 1)
	assert.Equal(t, model.OutcomeAccepted, f.Acks[0].Outcome)
	assert.Equal(t, model.V(50, 500), f.Acks[0].Position)
	assert.Equal(t, inside, f.Instance)

	key, ok := h.engine.Store().InstanceOf(alice.EntityID())
	require.True(t, ok)
	assert.Equal(t, inside, key)
	assert.Equal(t, instance.StateHot, h.engine.Lifecycle().Get(inside).State())
	assert.Equal(t, instance.StateWarm, h.engine.Lifecycle().Get(outside).State())

	// Старые строки удаляются, новые вставляются в том же кадре.
	var deletes, inserts int
	for _, c := range f.Changes {
		switch c.Kind {
		case interest.ChangeDelete:
			deletes++
			assert.Equal(t, outside, c.Row.Instance)
		case interest.ChangeInsert:
			inserts++
			assert.Equal(t, inside, c.Row.Instance)
		}
	}
	assert.Positive(t, deletes)
	assert.Positive(t, inserts)
}

func TestEngine_TransitionSeenByObservers(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(960, 500))
	bob := h.join("bob", outside, model.V(500, 500))
	carol := h.join("carol", inside, model.V(300, 300))
	h.tick()
	for _, s := range []*Session{alice, bob, carol} {
		frames := drainFrames(s)
		require.Len(t, frames, 1)
		require.NotNil(t, frames[0].Snapshot)
	}

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentTransition})
	h.tick()
	require.Equal(t, model.OutcomeAccepted, allAcks(drainFrames(alice))[0].Outcome)

	find := func(s *Session, kind interest.ChangeKind) *interest.Change {
		for _, f := range drainFrames(s) {
			for i, c := range f.Changes {
				if c.Row.ID == alice.EntityID() && c.Kind == kind {
					return &f.Changes[i]
				}
			}
		}
		return nil
	}

	del := find(bob, interest.ChangeDelete)
	require.NotNil(t, del, "bob sees alice leave")
	assert.Equal(t, outside, del.Row.Instance)

	ins := find(carol, interest.ChangeInsert)
	require.NotNil(t, ins, "carol sees alice arrive")
	assert.Equal(t, inside, ins.Row.Instance)
	assert.Equal(t, 50.0, ins.Row.X)
	assert.Equal(t, 500.0, ins.Row.Y)
}

func TestEngine_TransitionRefusals(t *testing.T) {
	h := newHarness(t)
	h.join("alice", outside, model.V(500, 500))

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentTransition})
	h.tick()
	alice, _ := h.engine.Session("alice")
	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	assert.Equal(t, model.RefusalNotInTransitionZone, acks[0].Refusal)

	// В зоне, но сразу после перехода действует cooldown.
	h.teleport(alice, model.V(960, 500))
	h.submit("alice", model.Command{Sequence: 2, Kind: model.IntentTransition})
	h.tick()
	require.Equal(t, model.OutcomeAccepted, allAcks(drainFrames(alice))[0].Outcome)

	h.teleport(alice, model.V(10, 500))
	h.submit("alice", model.Command{Sequence: 3, Kind: model.IntentTransition})
	h.tick()
	acks = allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	assert.Equal(t, model.RefusalOnCooldown, acks[0].Refusal)
}

func TestEngine_DuplicateCommandsAreIdempotent(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(500, 500))

	h.submit("alice", move(1, model.V(1, 0), 0.1))
	h.submit("alice", move(1, model.V(1, 0), 0.1))
	h.tick()

	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 2)
	assert.Equal(t, model.OutcomeAccepted, acks[0].Outcome)
	assert.Equal(t, model.OutcomeDuplicate, acks[1].Outcome)
	assert.Equal(t, model.RefusalNone, acks[1].Refusal, "duplicates carry no refusal")
	assert.Equal(t, acks[0].Position, acks[1].Position)
	assert.Equal(t, acks[0].LastSequence, acks[1].LastSequence)

	// Повтор в следующем тике тоже ничего не меняет.
	h.submit("alice", move(1, model.V(1, 0), 0.1))
	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentAttack, Weapon: model.WeaponWideArc, Direction: model.V(1, 0)})
	h.tick()
	acks = allAcks(drainFrames(alice))
	require.Len(t, acks, 2)
	for _, a := range acks {
		assert.Equal(t, model.OutcomeDuplicate, a.Outcome)
		assert.Equal(t, model.V(525, 500), a.Position)
		assert.Equal(t, uint32(1), a.LastSequence)
	}
	assert.Equal(t, model.V(525, 500), h.player(alice).Position)
}

func TestEngine_RejectedMoveHoldsPosition(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(990, 300))

	h.submit("alice", move(1, model.V(1, 0), 0.2))
	h.submit("alice", move(2, model.V(2, 0), 0.1))
	h.tick()

	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 2)
	assert.Equal(t, model.RefusalOutOfBounds, acks[0].Refusal)
	assert.Equal(t, model.RefusalInvalidDirection, acks[1].Refusal)
	assert.Equal(t, model.V(990, 300), acks[1].Position)
	assert.Zero(t, acks[1].LastSequence, "rejected moves commit nothing")

	// Исправленный повтор того же номера принимается.
	h.submit("alice", move(1, model.V(-1, 0), 0.1))
	h.tick()
	acks = allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	assert.Equal(t, model.OutcomeAccepted, acks[0].Outcome)
	assert.Equal(t, model.V(965, 300), acks[0].Position)
	assert.Equal(t, uint32(1), acks[0].LastSequence)
}

func TestEngine_RejectedActionCanBeRetried(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(500, 500))

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentTransition})
	h.tick()
	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	require.Equal(t, model.RefusalNotInTransitionZone, acks[0].Refusal)
	assert.Zero(t, acks[0].LastSequence)

	h.teleport(alice, model.V(960, 500))
	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentTransition})
	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentTransition})
	h.tick()
	acks = allAcks(drainFrames(alice))
	require.Len(t, acks, 2)
	assert.Equal(t, model.OutcomeAccepted, acks[0].Outcome)
	assert.Equal(t, uint32(1), acks[0].LastSequence)
	assert.Equal(t, model.OutcomeDuplicate, acks[1].Outcome, "same sequence twice in one batch")
	assert.Equal(t, uint32(1), h.player(alice).Player.LastSequence)
}

func TestEngine_RangedWithoutAmmo(t *testing.T) {
	h := newHarness(t, func(c *config.Simulation) { c.StartingItems = map[string]int{"bow": 1} })
	alice := h.join("alice", outside, model.V(500, 500))
	h.tick()
	drainFrames(alice)
	before := interest.RowOf(h.player(alice))

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentAttack, Weapon: model.WeaponRanged, Direction: model.V(0, 1)})
	h.tick()

	frames := drainFrames(alice)
	acks := allAcks(frames)
	require.Len(t, acks, 1)
	assert.Equal(t, model.RefusalInsufficientAmmo, acks[0].Refusal)
	assert.Zero(t, acks[0].LastSequence)
	assert.Zero(t, h.engine.Store().CountByKind()[model.KindProjectile])

	assert.Equal(t, before, interest.RowOf(h.player(alice)), "refused attack leaves the player row as it was")
	for _, f := range frames {
		for _, c := range f.Changes {
			assert.NotEqual(t, alice.EntityID(), c.Row.ID, "no %s change for the attacker", c.Kind)
		}
	}
}

func TestEngine_EquipmentAndContextualActions(t *testing.T) {
	h := newHarness(t)
	profile := &model.Profile{
		Username:  "alice",
		Instance:  outside,
		Position:  model.V(300, 675),
		Items:     map[string]int{"axe": 1, "sword": 1},
		Equipment: map[string]string{"main_hand": "axe", "armor": "sword"},
	}
	alice, err := h.engine.Join("alice", profile, 64)
	require.NoError(t, err)

	p := h.player(alice)
	assert.Equal(t, map[model.EquipSlot]string{model.SlotMainHand: "axe"}, p.Player.Equipment,
		"profile equipment replaces the starting kit, misfits are dropped")

	var tree *model.Entity
	h.engine.Store().ForEachInInstance(outside, func(e *model.Entity) {
		if e.Object != nil && e.Object.Kind == model.ObjectTree {
			tree = e
		}
	})
	require.NotNil(t, tree)

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentInteract, Action: model.ActionCut, Target: tree.ID})
	h.tick()
	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	require.Equal(t, model.OutcomeAccepted, acks[0].Outcome, acks[0].Refusal.String())
	assert.Equal(t, 1, p.Player.ItemCount("wood"))

	h.submit("alice", model.Command{Sequence: 2, Kind: model.IntentInteract, Action: model.ActionEquip, Item: "sword"})
	h.submit("alice", model.Command{Sequence: 3, Kind: model.IntentInteract, Action: model.ActionCut, Target: tree.ID})
	h.tick()
	acks = allAcks(drainFrames(alice))
	require.Len(t, acks, 2)
	assert.Equal(t, model.OutcomeAccepted, acks[0].Outcome)
	assert.Equal(t, model.RefusalInsufficientItems, acks[1].Refusal, "the axe is no longer in hand")
	assert.Equal(t, 2.0, tree.Object.Health)
	assert.Equal(t, uint32(2), p.Player.LastSequence)

	got := model.ProfileOf(p, h.clock.Now())
	assert.Equal(t, map[string]string{"main_hand": "sword"}, got.Equipment)
}

func TestEngine_StartingKit(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(500, 500))
	p := h.player(alice).Player
	assert.Equal(t, "sword", p.InSlot(model.SlotMainHand))
	assert.Equal(t, 1, p.ItemCount("bow"))

	_, err := New(func() config.Simulation {
		c := config.DefaultSimulation()
		c.StartingEquipment = map[string]string{"armor": "sword"}
		return c
	}(), h.engine.Registry())
	require.ErrorIs(t, err, ErrNotGear)
}

func TestEngine_AttackEventsAreDelivered(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(230, 200))
	goblin := findNPC(t, h.engine, outside, "goblin")

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentAttack, Weapon: model.WeaponWideArc, Direction: model.V(-1, 0)})
	h.tick()

	frames := drainFrames(alice)
	require.Len(t, frames, 1)
	require.NotEmpty(t, frames[0].Events)
	ev := frames[0].Events[0]
	assert.Equal(t, model.EventHit, ev.Kind)
	assert.Equal(t, goblin.ID, ev.Target)
	assert.Equal(t, 5.0, ev.Health)
	assert.Equal(t, model.AIChasing, goblin.NPC.State, "damage pulls the npc into chasing")
}

func TestEngine_CommandQueueFull(t *testing.T) {
	h := newHarness(t, func(c *config.Simulation) { c.CommandQueueSize = 2 })
	h.join("alice", outside, model.V(500, 500))

	require.NoError(t, h.engine.Submit("alice", move(1, model.V(1, 0), 0.1)))
	require.NoError(t, h.engine.Submit("alice", move(2, model.V(1, 0), 0.1)))
	err := h.engine.Submit("alice", move(3, model.V(1, 0), 0.1))
	require.ErrorIs(t, err, ErrCommandQueueFull)

	require.ErrorIs(t, h.engine.Submit("bob", move(1, model.V(1, 0), 0.1)), ErrUnknownSession)
}

func TestEngine_NotOwner(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(500, 500))
	bob := h.join("bob", outside, model.V(600, 500))

	c := move(1, model.V(1, 0), 0.1)
	c.EntityID = bob.EntityID()
	h.submit("alice", c)
	h.tick()

	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	assert.Equal(t, model.RefusalNotOwner, acks[0].Refusal)
	assert.Equal(t, model.V(600, 500), h.player(bob).Position)
}

func TestEngine_GraceResumeAndExpiry(t *testing.T) {
	var profiles []model.Profile
	h := newHarness(t)
	h.engine.SetDespawnFunc(func(p model.Profile) { profiles = append(profiles, p) })

	alice := h.join("alice", outside, model.V(500, 500))
	h.tick()
	drainFrames(alice)
	id := alice.EntityID()

	require.NoError(t, h.engine.Disconnect("alice"))
	assert.True(t, alice.Outbox().Closed())
	require.ErrorIs(t, h.engine.Submit("alice", move(1, model.V(1, 0), 0.1)), ErrSessionClosed)

	h.clock.Advance(10 * time.Second)
	h.tick()
	_, ok := h.engine.Store().Get(id)
	require.True(t, ok, "player stays during grace")

	resumed, err := h.engine.Join("alice", nil, 64)
	require.NoError(t, err)
	assert.Same(t, alice, resumed)
	assert.True(t, resumed.Resumed())
	assert.Equal(t, id, resumed.EntityID())
	h.tick()
	frames := drainFrames(resumed)
	require.Len(t, frames, 1)
	assert.NotEmpty(t, frames[0].Snapshot, "resume starts with a snapshot")

	require.NoError(t, h.engine.Disconnect("alice"))
	h.clock.Advance(h.engine.Config().DisconnectGrace)
	h.tick()

	_, ok = h.engine.Store().Get(id)
	assert.False(t, ok, "player despawned after grace")
	_, ok = h.engine.Session("alice")
	assert.False(t, ok)
	assert.Equal(t, instance.StateWarm, h.engine.Lifecycle().Get(outside).State())
	require.Len(t, profiles, 1)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, outside, profiles[0].Instance)
}

func TestEngine_InconsistentInstanceAndReset(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(500, 500))
	h.tick()
	drainFrames(alice)

	// Нарушение инварианта: сущность вне границ.
	h.teleport(alice, model.V(-50, 500))
	h.tick()

	inst := h.engine.Lifecycle().Get(outside)
	reason, bad := inst.Inconsistent()
	require.True(t, bad)
	assert.Contains(t, reason, "out of bounds")
	assert.False(t, inst.Simulated())

	h.submit("alice", move(1, model.V(1, 0), 0.1))
	h.tick()
	acks := allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	assert.Equal(t, model.RefusalInstanceUnavailable, acks[0].Refusal)

	require.NoError(t, h.engine.ResetInstance(outside))
	assert.Equal(t, model.V(500, 500), h.player(alice).Position, "reset returns stray players to spawn")

	h.submit("alice", move(2, model.V(1, 0), 0.1))
	h.tick()
	acks = allAcks(drainFrames(alice))
	require.Len(t, acks, 1)
	assert.Equal(t, model.OutcomeAccepted, acks[0].Outcome)
	findNPC(t, h.engine, outside, "goblin")

	var tos []string
	for _, lr := range h.sink.lifecycle() {
		if lr.Instance == outside {
			tos = append(tos, lr.To)
		}
	}
	assert.Equal(t, []string{"HOT", "INCONSISTENT", "HOT"}, tos)

	require.Error(t, h.engine.ResetInstance("nowhere"))
}

func TestEngine_WarmInstanceDemotesAndRepopulates(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice", outside, model.V(960, 500))
	h.tick()
	firstGoblin := findNPC(t, h.engine, outside, "goblin").ID

	h.submit("alice", model.Command{Sequence: 1, Kind: model.IntentTransition})
	h.tick()
	require.Equal(t, instance.StateWarm, h.engine.Lifecycle().Get(outside).State())

	h.clock.Advance(h.engine.Config().WarmTTL)
	h.tick()
	require.Equal(t, instance.StateInactive, h.engine.Lifecycle().Get(outside).State())
	counts := 0
	h.engine.Store().ForEachInInstance(outside, func(e *model.Entity) {
		if e.Kind == model.KindNPC {
			counts++
		}
	})
	assert.Zero(t, counts, "transient npcs cleared on demotion")

	// Обратно к двери и через неё.
	h.submit("alice", move(2, model.V(-1, 0), 0.14))
	h.submit("alice", model.Command{Sequence: 3, Kind: model.IntentTransition})
	h.tick()
	acks := allAcks(drainFrames(alice))
	require.Equal(t, model.OutcomeAccepted, acks[len(acks)-1].Outcome, "acks: %+v", acks)

	assert.Equal(t, instance.StateHot, h.engine.Lifecycle().Get(outside).State())
	assert.NotEqual(t, firstGoblin, findNPC(t, h.engine, outside, "goblin").ID, "npcs respawn on the next hot")
	assert.Equal(t, instance.StateWarm, h.engine.Lifecycle().Get(inside).State())
	findNPC(t, h.engine, inside, "test_enemy")
}

func TestEngine_JoinPlacement(t *testing.T) {
	h := newHarness(t)

	s, err := h.engine.Join("nomad", &model.Profile{Instance: "atlantis", Position: model.V(1, 1)}, 8)
	require.NoError(t, err)
	assert.Equal(t, model.V(500, 500), h.player(s).Position, "unknown instance falls back to the starting spawn")

	s, err = h.engine.Join("miner", &model.Profile{Instance: outside, Position: model.V(500, 200), Health: 40, Items: map[string]int{"stone": 3}}, 8)
	require.NoError(t, err)
	p := h.player(s)
	assert.Equal(t, model.V(500, 500), p.Position, "profile inside an obstacle falls back to the spawn")
	assert.Equal(t, 40.0, p.Player.Health)
	assert.Equal(t, map[string]int{"stone": 3}, p.Player.Items)

	s, err = h.engine.Join("fresh", nil, 8)
	require.NoError(t, err)
	assert.Equal(t, 20, h.player(s).Player.ItemCount(model.Ammo))
	assert.Equal(t, 3, h.engine.SessionCount())
}

func TestEngine_SlowClientOutboxCloses(t *testing.T) {
	h := newHarness(t)
	s, err := h.engine.Join("alice", &model.Profile{Instance: outside, Position: model.V(500, 500)}, 1)
	require.NoError(t, err)

	for seq := uint32(1); seq <= 3; seq++ {
		h.submit("alice", move(seq, model.V(0, 1), 0.05))
		h.tick()
	}
	assert.True(t, s.Outbox().Closed(), "a full outbox closes instead of blocking the tick")
	assert.Equal(t, uint64(3), h.engine.TickCount())
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, func(c *config.Simulation) { c.TickRate = 200 })
	h.engine.SetClock(time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.Eventually(t, func() bool { return h.engine.TickCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestEngine_Profiles(t *testing.T) {
	h := newHarness(t)
	h.join("bob", inside, model.V(300, 500))
	h.join("alice", outside, model.V(500, 500))
	h.tick()

	profiles := h.engine.Profiles()
	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, outside, profiles[0].Instance)
	assert.Equal(t, "bob", profiles[1].Username)
	assert.Equal(t, model.V(300, 500), profiles[1].Position)
	assert.Equal(t, 20, profiles[0].Items["arrow"])
}
