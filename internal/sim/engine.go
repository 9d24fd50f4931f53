// Package sim is the authoritative tick engine. It owns the entity store,
// the instance lifecycle and the client sessions, and runs each Hot instance
// through movement, AI, actions and projectiles once per tick.
//
// Ticks are serial within an instance and parallel across instances.
// Cross-instance moves happen only in the serial phase after all instance
// ticks of the frame have finished.
package sim

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/data"
	"github.com/udisondev/coopsim/internal/game/combat"
	"github.com/udisondev/coopsim/internal/game/geo"
	"github.com/udisondev/coopsim/internal/game/instance"
	"github.com/udisondev/coopsim/internal/game/interact"
	"github.com/udisondev/coopsim/internal/game/interest"
	"github.com/udisondev/coopsim/internal/game/movement"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/world"
)

// DespawnFunc receives the profile of a player removed after its grace period.
type DespawnFunc func(p model.Profile)

// Engine is the simulation core.
type Engine struct {
	cfg      config.Simulation
	registry *data.Registry

	store     *world.Store
	lifecycle *instance.Manager
	validator *movement.Validator
	resolver  *combat.Resolver
	interact  *interact.Handler
	filter    *interest.Filter

	// geometry is built once per template and never changes.
	geometry map[string]*geo.Geometry
	// runtimes is written only while tickMu is held and no instance tick runs.
	runtimes map[string]*runtime

	sessMu   sync.RWMutex
	sessions map[string]*Session

	// tickMu serializes ticks with joins, disconnects and operator resets.
	tickMu       sync.Mutex
	tick         uint64
	lastMaintain time.Time
	pending      model.TickRecord

	arrival   atomic.Uint64
	tickCount atomic.Uint64
	clock     func() time.Time
	sink      EventSink
	onDespawn DespawnFunc
}

// New builds an engine over the registry's maps.
func New(cfg config.Simulation, reg *data.Registry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulation config: %w", err)
	}
	templates, err := reg.Templates()
	if err != nil {
		return nil, fmt.Errorf("building templates: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		registry:  reg,
		store:     world.NewStore(),
		lifecycle: instance.NewManager(cfg.WarmTTL),
		validator: movement.NewValidator(cfg.Movement),
		resolver:  combat.NewResolver(reg),
		interact:  interact.NewHandler(reg, cfg),
		filter:    interest.NewFilter(),
		geometry:  make(map[string]*geo.Geometry, len(templates)),
		runtimes:  make(map[string]*runtime, len(templates)),
		sessions:  make(map[string]*Session, 32),
		clock:     time.Now,
	}
	for _, t := range templates {
		if err := e.lifecycle.RegisterTemplate(t); err != nil {
			return nil, err
		}
		e.geometry[t.Key] = geo.New(t.Bounds, t.Obstacles, geo.DefaultCellSize)
	}
	if e.lifecycle.Template(reg.StartingMap) == nil {
		return nil, fmt.Errorf("%q: %w", reg.StartingMap, ErrNoStartingMap)
	}
	for slotName, item := range cfg.StartingEquipment {
		if _, err := e.equipSlot(slotName, item); err != nil {
			return nil, fmt.Errorf("starting equipment: %w", err)
		}
	}

	e.resolver.SetDamageFunc(e.notifyDamage)
	e.resolver.SetDeathFunc(e.notifyDeath)
	return e, nil
}

// SetSink sets the sink receiving tick records.
func (e *Engine) SetSink(s EventSink) { e.sink = s }

// SetDespawnFunc sets the callback receiving despawned player profiles.
// Called from the tick goroutine; it must not block.
func (e *Engine) SetDespawnFunc(fn DespawnFunc) { e.onDespawn = fn }

// SetClock replaces the time source. Tests only.
func (e *Engine) SetClock(clock func() time.Time) { e.clock = clock }

// Store returns the entity store. Reading it is safe only between ticks.
func (e *Engine) Store() *world.Store { return e.store }

// Lifecycle returns the instance lifecycle manager.
func (e *Engine) Lifecycle() *instance.Manager { return e.lifecycle }

// Registry returns the static game data.
func (e *Engine) Registry() *data.Registry { return e.registry }

// Config returns the simulation config.
func (e *Engine) Config() config.Simulation { return e.cfg }

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() uint64 { return e.tickCount.Load() }

// Instances returns the operator view of every created instance.
func (e *Engine) Instances() []instance.Snapshot { return e.lifecycle.Snapshots() }

// Session returns the session of identity.
func (e *Engine) Session(identity string) (*Session, bool) {
	e.sessMu.RLock()
	defer e.sessMu.RUnlock()
	s, ok := e.sessions[identity]
	return s, ok
}

// SessionCount returns the number of sessions, connected or in grace.
func (e *Engine) SessionCount() int {
	e.sessMu.RLock()
	defer e.sessMu.RUnlock()
	return len(e.sessions)
}

// Profiles captures the profile of every player that still has a session.
// Used to save everyone on shutdown.
func (e *Engine) Profiles() []model.Profile {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	now := e.clock()
	var out []model.Profile
	for _, s := range e.sortedSessions() {
		if p, ok := e.store.Get(s.entity); ok {
			out = append(out, model.ProfileOf(p, now))
		}
	}
	return out
}

func (e *Engine) sortedSessions() []*Session {
	e.sessMu.RLock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	e.sessMu.RUnlock()
	slices.SortFunc(out, func(a, b *Session) int { return cmp.Compare(a.identity, b.identity) })
	return out
}

// Join attaches a client. An existing session of identity (connected or in
// its grace period) is reclaimed with its player untouched. Otherwise a
// player is spawned from profile, or at the starting map spawn when profile
// is nil or points somewhere unusable.
func (e *Engine) Join(identity string, profile *model.Profile, outboxSize int) (*Session, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	now := e.clock()

	if s, ok := e.Session(identity); ok {
		key, ok := e.store.InstanceOf(s.entity)
		if !ok {
			return nil, fmt.Errorf("resume %s: %w", identity, world.ErrEntityNotFound)
		}
		e.filter.Subscribe(identity, key)
		s.attach(NewOutbox(identity, outboxSize))
		slog.Info("session resumed", "identity", identity, "entity", s.entity, "instance", key)
		return s, nil
	}

	key, pos := e.placement(profile)
	player := e.newPlayer(identity, profile, pos)
	player.Instance = key

	rec, changed, err := e.lifecycle.Enter(key, player.ID, now)
	if err != nil {
		return nil, fmt.Errorf("join %s into %s: %w", identity, key, ErrInstanceUnavailable)
	}
	if err := e.store.Insert(player); err != nil {
		e.lifecycle.Leave(key, player.ID, now)
		return nil, fmt.Errorf("join %s: %w", identity, err)
	}
	if changed {
		e.pending.Lifecycle = append(e.pending.Lifecycle, rec)
	}
	rt, err := e.ensureRuntime(key)
	if err != nil {
		return nil, err
	}
	e.populate(rt)

	s := newSession(identity, player.ID, e.cfg.CommandQueueSize, NewOutbox(identity, outboxSize))
	e.sessMu.Lock()
	e.sessions[identity] = s
	e.sessMu.Unlock()
	e.filter.Subscribe(identity, key)

	slog.Info("player joined", "identity", identity, "entity", player.ID, "instance", key, "x", pos.X, "y", pos.Y)
	return s, nil
}

// placement picks the instance and position of a new player.
func (e *Engine) placement(profile *model.Profile) (string, model.Vec2) {
	if profile != nil && profile.Instance != "" {
		if t := e.lifecycle.Template(profile.Instance); t != nil {
			bad := false
			if inst := e.lifecycle.Get(profile.Instance); inst != nil {
				_, bad = inst.Inconsistent()
			}
			g := e.geometry[t.Key]
			box := model.Box(profile.Position, e.cfg.PlayerHalfSize)
			if !bad && g.Inside(box) && !g.Blocks(box) {
				return t.Key, profile.Position
			}
		}
	}
	start := e.lifecycle.Template(e.registry.StartingMap)
	return start.Key, start.Spawn
}

func (e *Engine) newPlayer(identity string, profile *model.Profile, pos model.Vec2) *model.Entity {
	ps := &model.PlayerState{
		Username:  identity,
		Health:    e.cfg.PlayerMaxHealth,
		MaxHealth: e.cfg.PlayerMaxHealth,
		Items:     make(map[string]int, len(e.cfg.StartingItems)),
	}
	for k, v := range e.cfg.StartingItems {
		ps.Items[k] = v
	}
	if profile != nil {
		if profile.MaxHealth > 0 {
			ps.MaxHealth = profile.MaxHealth
		}
		if profile.Health > 0 && profile.Health <= ps.MaxHealth {
			ps.Health = profile.Health
		} else {
			ps.Health = ps.MaxHealth
		}
		if profile.Items != nil {
			clear(ps.Items)
			for k, v := range profile.Items {
				if v > 0 {
					ps.Items[k] = v
				}
			}
		}
	}
	e.equip(ps, e.cfg.StartingEquipment)
	if profile != nil && profile.Equipment != nil {
		clear(ps.Equipment)
		e.equip(ps, profile.Equipment)
	}
	return &model.Entity{
		ID:       e.store.IDs().Next(model.KindPlayer),
		Kind:     model.KindPlayer,
		Position: pos,
		HalfSize: e.cfg.PlayerHalfSize,
		Owner:    identity,
		Player:   ps,
	}
}

// equip puts the listed items into their slots. Entries naming an unknown
// slot, a non-gear item or an item the player does not hold are skipped.
func (e *Engine) equip(ps *model.PlayerState, equipment map[string]string) {
	for slotName, item := range equipment {
		slot, err := e.equipSlot(slotName, item)
		if err != nil {
			slog.Warn("skipping equipment", "username", ps.Username, "error", err)
			continue
		}
		ps.Equip(slot, item)
	}
}

func (e *Engine) equipSlot(slotName, item string) (model.EquipSlot, error) {
	slot, err := model.ParseEquipSlot(slotName)
	if err != nil {
		return 0, err
	}
	g, ok := e.registry.GearOf(item)
	if !ok {
		return 0, fmt.Errorf("%q is not gear: %w", item, ErrNotGear)
	}
	if g.EquipSlot() != slot {
		return 0, fmt.Errorf("%q does not fit %s: %w", item, slot, ErrNotGear)
	}
	return slot, nil
}

// Disconnect detaches the client of identity. The player stays in the world
// until the grace period ends; a Join within it resumes the session.
func (e *Engine) Disconnect(identity string) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	s, ok := e.Session(identity)
	if !ok {
		return fmt.Errorf("disconnect %s: %w", identity, ErrUnknownSession)
	}
	s.detach(e.clock().Add(e.cfg.DisconnectGrace))
	e.filter.Unsubscribe(identity)
	slog.Info("session disconnected", "identity", identity, "grace", e.cfg.DisconnectGrace)
	return nil
}

// Submit queues a command of identity for the next tick. It never blocks.
// A zero EntityID addresses the session's own player.
func (e *Engine) Submit(identity string, c model.Command) error {
	s, ok := e.Session(identity)
	if !ok {
		return fmt.Errorf("submit %s: %w", identity, ErrUnknownSession)
	}
	if !s.Connected() {
		return fmt.Errorf("submit %s: %w", identity, ErrSessionClosed)
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = e.clock()
	}
	if !s.commands.Push(Command{Command: c, Identity: identity, Arrival: e.arrival.Add(1)}) {
		return fmt.Errorf("submit %s seq %d: %w", identity, c.Sequence, ErrCommandQueueFull)
	}
	return nil
}

// ResetInstance clears the inconsistent mark of key. Everything but players
// is dropped and respawned from the template; players outside the bounds are
// moved to the template spawn.
func (e *Engine) ResetInstance(key string) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	now := e.clock()

	rec, err := e.lifecycle.Reset(key, now)
	if err != nil {
		return fmt.Errorf("reset instance: %w", err)
	}
	if rt, ok := e.runtimes[key]; ok {
		var drop []model.EntityID
		tmpl := rt.inst.Template()
		rt.space.Partition().ForEach(0, func(ent *model.Entity) {
			if ent.Kind != model.KindPlayer {
				drop = append(drop, ent.ID)
				return
			}
			if !tmpl.Bounds.Contains(ent.Position) {
				rt.space.Partition().Move(ent, tmpl.Spawn)
				ent.Velocity = model.Vec2{}
			}
		})
		for _, id := range drop {
			rt.space.Despawn(id)
		}
		rt.ai.Clear()
		rt.seeded = false
		slog.Info("instance reset", "instance", key, "dropped", len(drop))
	}
	e.pending.Lifecycle = append(e.pending.Lifecycle, rec)
	return nil
}

// Run ticks the engine at the configured rate until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulation started", "tick_rate", e.cfg.TickRate, "maps", len(e.geometry))

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation stopping", "ticks", e.TickCount())
			return ctx.Err()

		case <-ticker.C:
			start := time.Now()
			if err := e.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("tick failed", "error", err)
			}
			if elapsed := time.Since(start); elapsed > interval {
				slog.Warn("tick overran", "elapsed", elapsed, "interval", interval)
			}
		}
	}
}

func (e *Engine) notifyDamage(key string, npc, attacker model.EntityID, amount float64) {
	if rt, ok := e.runtimes[key]; ok {
		rt.ai.NotifyDamage(npc, attacker, amount, rt.now)
	}
}

func (e *Engine) notifyDeath(key string, npc *model.Entity) {
	if rt, ok := e.runtimes[key]; ok {
		rt.ai.Unregister(npc.ID)
	}
}
