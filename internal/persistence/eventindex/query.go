package eventindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// CombatRow is a stored combat event.
type CombatRow struct {
	Tick     uint64
	At       time.Time
	Instance string
	Kind     string
	Attacker model.EntityID
	Target   model.EntityID
	Amount   float64
	Health   float64
}

// Events returns combat events of one kind in an instance, oldest first.
// An empty kind matches every kind; limit <= 0 means no limit.
func (x *Index) Events(ctx context.Context, instance, kind string, limit int) ([]CombatRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT tick, at, instance, kind, attacker, target, amount, health
		 FROM combat_events
		 WHERE instance = ? AND (? = '' OR kind = ?)
		 ORDER BY id LIMIT ?`,
		instance, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("querying combat events: %w", err)
	}
	defer rows.Close()

	var out []CombatRow
	for rows.Next() {
		var r CombatRow
		var at int64
		if err := rows.Scan(&r.Tick, &at, &r.Instance, &r.Kind, &r.Attacker, &r.Target, &r.Amount, &r.Health); err != nil {
			return nil, fmt.Errorf("scanning combat event: %w", err)
		}
		r.At = time.Unix(0, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountEvents counts combat events of kind across all instances.
func (x *Index) CountEvents(ctx context.Context, kind model.EventKind) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT count(*) FROM combat_events WHERE kind = ?`, kind.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s events: %w", kind, err)
	}
	return n, nil
}

// Transitions returns the handoffs of one entity, oldest first.
func (x *Index) Transitions(ctx context.Context, entity model.EntityID) ([]model.TransitionRecord, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT entity, from_instance, to_instance, at FROM transitions WHERE entity = ? ORDER BY id`, entity)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []model.TransitionRecord
	for rows.Next() {
		var t model.TransitionRecord
		var at int64
		if err := rows.Scan(&t.Entity, &t.From, &t.To, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.At = time.Unix(0, at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Lifecycle returns the state changes of one instance, oldest first.
func (x *Index) Lifecycle(ctx context.Context, instance string) ([]model.LifecycleRecord, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT instance, from_state, to_state, reason, at FROM lifecycle WHERE instance = ? ORDER BY id`, instance)
	if err != nil {
		return nil, fmt.Errorf("querying lifecycle: %w", err)
	}
	defer rows.Close()

	var out []model.LifecycleRecord
	for rows.Next() {
		var l model.LifecycleRecord
		var at int64
		if err := rows.Scan(&l.Instance, &l.From, &l.To, &l.Reason, &at); err != nil {
			return nil, fmt.Errorf("scanning lifecycle: %w", err)
		}
		l.At = time.Unix(0, at)
		out = append(out, l)
	}
	return out, rows.Err()
}

// LastDespawn returns the most recent despawn of identity.
func (x *Index) LastDespawn(ctx context.Context, identity string) (model.DespawnRecord, bool, error) {
	var d model.DespawnRecord
	var at int64
	err := x.db.QueryRowContext(ctx,
		`SELECT entity, identity, instance, at FROM despawns WHERE identity = ? ORDER BY id DESC LIMIT 1`, identity,
	).Scan(&d.Entity, &d.Identity, &d.Instance, &at)
	if err == sql.ErrNoRows {
		return model.DespawnRecord{}, false, nil
	}
	if err != nil {
		return model.DespawnRecord{}, false, fmt.Errorf("querying despawn of %s: %w", identity, err)
	}
	d.At = time.Unix(0, at)
	return d, true, nil
}
