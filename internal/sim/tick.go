package sim

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/coopsim/internal/game/instance"
	"github.com/udisondev/coopsim/internal/game/interact"
	"github.com/udisondev/coopsim/internal/game/interest"
	"github.com/udisondev/coopsim/internal/game/zone"
	"github.com/udisondev/coopsim/internal/model"
)

// Tick advances the world by one fixed step.
//
//  1. Parallel, one goroutine per Hot consistent instance: drain commands in
//     arrival order (moves applied at once, actions deferred), AI, actions,
//     projectiles, object respawns, invariant check.
//  2. Serial: instance handoffs, lifecycle maintenance on its own interval,
//     grace expiry, sink records.
//  3. Delivery: interest diffs, acks and events queued to each outbox.
func (e *Engine) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	now := e.clock()
	dt := e.cfg.TickInterval().Seconds()
	e.tick++
	if e.lastMaintain.IsZero() {
		e.lastMaintain = now
	}

	rec := e.pending
	e.pending = model.TickRecord{}
	rec.Tick = e.tick
	rec.At = now

	acks := make(map[string][]Ack)
	batches := e.collect(acks)

	active := e.lifecycle.Simulated()
	runtimes := make([]*runtime, 0, len(active))
	for _, inst := range active {
		rt, err := e.ensureRuntime(inst.Key())
		if err != nil {
			return fmt.Errorf("tick %d: %w", e.tick, err)
		}
		e.populate(rt)
		rt.begin(now)
		runtimes = append(runtimes, rt)
	}

	// Phase 1.
	var g errgroup.Group
	if e.cfg.Workers > 0 {
		g.SetLimit(e.cfg.Workers)
	}
	for _, rt := range runtimes {
		batch := batches[rt.key()]
		g.Go(func() error {
			e.tickInstance(rt, batch, now, dt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("tick %d: %w", e.tick, err)
	}

	// Phase 2.
	for _, rt := range runtimes {
		rec.Events = append(rec.Events, rt.events...)
		if rt.violation != "" {
			lr, err := e.lifecycle.MarkInconsistent(rt.key(), rt.violation, now)
			if err == nil {
				rec.Lifecycle = append(rec.Lifecycle, lr)
			}
			for _, h := range rt.handoffs {
				e.refuse(&rt.acks[h.ack].ack, model.RefusalInstanceUnavailable)
			}
		} else {
			for _, h := range rt.handoffs {
				e.handoff(rt, h, now, &rec)
			}
		}
		for _, pa := range rt.acks {
			acks[pa.identity] = append(acks[pa.identity], pa.ack)
		}
	}

	if now.Sub(e.lastMaintain) >= e.cfg.MaintenanceInterval {
		e.lastMaintain = now
		e.maintain(now, &rec)
	}

	for _, s := range e.sortedSessions() {
		if s.expired(now) {
			e.despawn(s, now, &rec)
		}
	}

	if e.sink != nil && !rec.Empty() {
		e.sink.Record(rec)
	}

	// Phase 3.
	e.deliver(rec, acks)
	e.tickCount.Add(1)
	return nil
}

// collect drains every session's queue and groups commands by the instance
// of the session's player. Commands that cannot reach a simulated instance
// are answered right away.
func (e *Engine) collect(acks map[string][]Ack) map[string][]Command {
	batches := make(map[string][]Command)
	for _, s := range e.sortedSessions() {
		cmds := s.commands.Drain()
		if len(cmds) == 0 {
			continue
		}
		player, ok := e.store.Get(s.entity)
		if !ok {
			for _, c := range cmds {
				acks[s.identity] = append(acks[s.identity], rejected(c, model.RefusalUnknownEntity, nil))
			}
			continue
		}
		inst := e.lifecycle.Get(player.Instance)
		for _, c := range cmds {
			switch {
			case c.EntityID != 0 && c.EntityID != s.entity:
				acks[s.identity] = append(acks[s.identity], rejected(c, model.RefusalNotOwner, player))
			case inst == nil || !inst.Simulated():
				acks[s.identity] = append(acks[s.identity], rejected(c, model.RefusalInstanceUnavailable, player))
			default:
				c.EntityID = s.entity
				batches[player.Instance] = append(batches[player.Instance], c)
			}
		}
	}
	for key := range batches {
		slices.SortFunc(batches[key], func(a, b Command) int { return cmp.Compare(a.Arrival, b.Arrival) })
	}
	return batches
}

func rejected(c Command, r model.Refusal, player *model.Entity) Ack {
	a := Ack{Sequence: c.Sequence, Kind: c.Kind, Outcome: model.OutcomeRejected, Refusal: r}
	if player != nil {
		a.Position = player.Position
		if player.Player != nil {
			a.LastSequence = player.Player.LastSequence
		}
	}
	return a
}

// tickInstance runs phase 1 for one instance. A panic is an invariant
// violation: the instance is marked inconsistent, the process keeps running.
func (e *Engine) tickInstance(rt *runtime, batch []Command, now time.Time, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			rt.violation = fmt.Sprintf("panic: %v", r)
			slog.Error("instance tick panicked", "instance", rt.key(), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	var actions []Command
	for _, c := range batch {
		if c.Kind == model.IntentMove {
			e.applyMove(rt, c, now)
			continue
		}
		if e.claim(rt, c) {
			actions = append(actions, c)
		}
	}

	rt.ai.TickAll(now, dt)

	for _, c := range actions {
		e.applyAction(rt, c, now)
	}

	rt.events = append(rt.events, e.resolver.AdvanceProjectiles(rt.space, dt, now)...)
	e.interact.Tick(rt.space, dt)

	if bad := rt.space.OutOfBounds(); len(bad) > 0 {
		rt.violation = fmt.Sprintf("%d entities out of bounds (first %d)", len(bad), bad[0])
	}
}

func (e *Engine) applyMove(rt *runtime, c Command, now time.Time) {
	player, ok := rt.space.Get(c.EntityID)
	if !ok || player.Player == nil {
		rt.ack(c.Identity, rejected(c, model.RefusalUnknownEntity, nil))
		return
	}
	if !rt.markClaimed(player.ID, c.Sequence) {
		rt.ack(c.Identity, duplicate(c, player))
		return
	}
	res := e.validator.ApplyMovement(rt.space, player, c.Direction, c.DeltaTime, c.Sequence, now)
	a := Ack{
		Sequence:     c.Sequence,
		Kind:         c.Kind,
		Outcome:      res.Outcome,
		Position:     res.Position,
		LastSequence: player.Player.LastSequence,
	}
	if res.Outcome == model.OutcomeRejected {
		a.Refusal = res.Refusal
		slog.Debug("move refused", "instance", rt.key(), "entity", player.ID, "seq", c.Sequence, "refusal", res.Refusal)
	}
	rt.ack(c.Identity, a)
}

// claim marks the sequence of an action as seen this tick so a resend in
// the same batch is answered as a duplicate before the action resolves. The
// sequence is committed only once the action is accepted. Returns false for
// duplicates.
func (e *Engine) claim(rt *runtime, c Command) bool {
	player, ok := rt.space.Get(c.EntityID)
	if !ok || player.Player == nil {
		rt.ack(c.Identity, rejected(c, model.RefusalUnknownEntity, nil))
		return false
	}
	if c.Sequence <= player.Player.LastSequence || !rt.markClaimed(player.ID, c.Sequence) {
		rt.ack(c.Identity, duplicate(c, player))
		return false
	}
	return true
}

func duplicate(c Command, player *model.Entity) Ack {
	return Ack{
		Sequence:     c.Sequence,
		Kind:         c.Kind,
		Outcome:      model.OutcomeDuplicate,
		Position:     player.Position,
		LastSequence: player.Player.LastSequence,
	}
}

// commit advances the last sequence of an accepted command. Actions resolve
// after the moves of the same batch, so a lower sequence never rewinds it.
func commit(p *model.PlayerState, seq uint32) {
	p.LastSequence = max(p.LastSequence, seq)
}

func (e *Engine) applyAction(rt *runtime, c Command, now time.Time) {
	player, ok := rt.space.Get(c.EntityID)
	if !ok {
		rt.ack(c.Identity, rejected(c, model.RefusalUnknownEntity, nil))
		return
	}

	var (
		events  []model.CombatEvent
		refusal model.Refusal
		z       *zone.TransitionZone
	)
	switch c.Kind {
	case model.IntentAttack:
		events, refusal = e.resolver.ResolveAttack(rt.space, player, c.Weapon, c.Direction, now)
	case model.IntentInteract:
		events, refusal = e.interact.Interact(rt.space, player, interact.RequestOf(c.Command), now)
	case model.IntentTransition:
		z, refusal = e.transition(rt, player, now)
	default:
		refusal = model.RefusalTargetNotEligible
	}
	rt.events = append(rt.events, events...)
	// Переход фиксируется только после успешного handoff
	if refusal == model.RefusalNone && z == nil {
		commit(player.Player, c.Sequence)
	}

	a := Ack{
		Sequence:     c.Sequence,
		Kind:         c.Kind,
		Outcome:      model.OutcomeAccepted,
		Position:     player.Position,
		LastSequence: player.Player.LastSequence,
	}
	if refusal != model.RefusalNone {
		a.Outcome = model.OutcomeRejected
		a.Refusal = refusal
		slog.Debug("action refused", "instance", rt.key(), "entity", player.ID, "kind", c.Kind, "seq", c.Sequence, "refusal", refusal)
	}
	idx := rt.ack(c.Identity, a)
	if z != nil {
		rt.handoffs = append(rt.handoffs, handoff{identity: c.Identity, entity: player.ID, zone: z, ack: idx})
	}
}

// transition validates a transition request. The move itself happens in the
// serial phase.
func (e *Engine) transition(rt *runtime, player *model.Entity, now time.Time) (*zone.TransitionZone, model.Refusal) {
	p := player.Player
	if p.Downed {
		return nil, model.RefusalDowned
	}
	z := rt.inst.Template().ZoneAt(player.Position)
	if z == nil {
		return nil, model.RefusalNotInTransitionZone
	}
	if e.lifecycle.Template(z.Destination) == nil {
		return nil, model.RefusalUnknownDestination
	}
	if !p.LastTransitionAt.IsZero() && now.Sub(p.LastTransitionAt) < e.cfg.TransitionCooldown {
		return nil, model.RefusalOnCooldown
	}
	return z, model.RefusalNone
}

func (e *Engine) refuse(a *Ack, r model.Refusal) {
	a.Outcome = model.OutcomeRejected
	a.Refusal = r
}

// handoff moves a player to the destination of its transition zone:
// occupancy first, then the store, then the subscription.
func (e *Engine) handoff(rt *runtime, h handoff, now time.Time, rec *model.TickRecord) {
	a := &rt.acks[h.ack].ack
	player, ok := rt.space.Get(h.entity)
	if !ok {
		e.refuse(a, model.RefusalUnknownEntity)
		return
	}
	from, dest := rt.key(), h.zone.Destination

	lr, changed, err := e.lifecycle.Enter(dest, player.ID, now)
	if err != nil {
		slog.Warn("transition refused", "entity", player.ID, "from", from, "to", dest, "error", err)
		e.refuse(a, model.RefusalInstanceUnavailable)
		return
	}
	if changed {
		rec.Lifecycle = append(rec.Lifecycle, lr)
	}

	if _, err := e.store.Handoff(player.ID, dest, h.zone.Spawn); err != nil {
		e.lifecycle.Leave(dest, player.ID, now)
		reason := fmt.Sprintf("handoff %d to %s: %v", player.ID, dest, err)
		if lr, err := e.lifecycle.MarkInconsistent(from, reason, now); err == nil {
			rec.Lifecycle = append(rec.Lifecycle, lr)
		}
		e.refuse(a, model.RefusalInstanceUnavailable)
		return
	}
	if lr, changed, err := e.lifecycle.Leave(from, player.ID, now); err != nil {
		slog.Error("leaving source instance", "entity", player.ID, "instance", from, "error", err)
	} else if changed {
		rec.Lifecycle = append(rec.Lifecycle, lr)
	}

	player.Player.LastTransitionAt = now
	commit(player.Player, a.Sequence)
	e.filter.Switch(h.identity, dest)
	if destRT, err := e.ensureRuntime(dest); err == nil {
		e.populate(destRT)
	}

	a.Position = player.Position
	a.LastSequence = player.Player.LastSequence
	rec.Transitions = append(rec.Transitions, model.TransitionRecord{Entity: player.ID, From: from, To: dest, At: now})
	slog.Debug("player transitioned", "entity", player.ID, "from", from, "to", dest)
}

func (e *Engine) maintain(now time.Time, rec *model.TickRecord) {
	for _, lr := range e.lifecycle.Maintain(now) {
		rec.Lifecycle = append(rec.Lifecycle, lr)
		if lr.To != instance.StateInactive.String() {
			continue
		}
		if rt, ok := e.runtimes[lr.Instance]; ok {
			n := e.clearTransient(rt)
			slog.Info("instance demoted", "instance", lr.Instance, "cleared", n)
		}
	}
}

// despawn removes the player of an expired session.
func (e *Engine) despawn(s *Session, now time.Time, rec *model.TickRecord) {
	e.sessMu.Lock()
	delete(e.sessions, s.identity)
	e.sessMu.Unlock()
	e.filter.Unsubscribe(s.identity)

	player, ok := e.store.Remove(s.entity)
	if !ok {
		return
	}
	if lr, changed, err := e.lifecycle.Leave(player.Instance, player.ID, now); err != nil {
		slog.Error("leaving instance on despawn", "identity", s.identity, "instance", player.Instance, "error", err)
	} else if changed {
		rec.Lifecycle = append(rec.Lifecycle, lr)
	}
	rec.Despawns = append(rec.Despawns, model.DespawnRecord{
		Entity:   player.ID,
		Identity: s.identity,
		Instance: player.Instance,
		At:       now,
	})
	if e.onDespawn != nil {
		e.onDespawn(model.ProfileOf(player, now))
	}
	slog.Info("player despawned", "identity", s.identity, "entity", player.ID, "instance", player.Instance)
}

// deliver queues one frame per connected session.
func (e *Engine) deliver(rec model.TickRecord, acks map[string][]Ack) {
	events := make(map[string][]model.CombatEvent)
	for _, ev := range rec.Events {
		events[ev.Instance] = append(events[ev.Instance], ev)
	}
	diffs := e.filter.ComputeAll(e.store)

	for _, s := range e.sortedSessions() {
		out, snapshot := s.delivery()
		if out == nil {
			continue
		}
		sub, ok := e.filter.Get(s.identity)
		if !ok {
			continue
		}
		f := Frame{
			Tick:     rec.Tick,
			At:       rec.At,
			Instance: sub.Instance(),
			Acks:     acks[s.identity],
			Events:   events[sub.Instance()],
		}
		if snapshot {
			f.Snapshot = sub.Snapshot(e.store)
			if f.Snapshot == nil {
				f.Snapshot = []interest.Row{}
			}
		} else {
			f.Changes = diffs[s.identity].Changes
		}
		if f.Empty() {
			continue
		}
		out.Send(f)
	}
}
