// Package eventindex keeps a queryable SQLite index of combat events,
// instance transitions, lifecycle changes and despawns. It is a secondary
// store: writes happen on a single background goroutine and are dropped
// when the queue is full, never stalling the tick.
package eventindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/udisondev/coopsim/internal/model"
)

const defaultQueueSize = 4096

// Index is the SQLite event index. It implements sim.EventSink.
type Index struct {
	db *sql.DB

	// mu guards sends on ch against Close.
	mu   sync.RWMutex
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type req struct {
	rec   model.TickRecord
	flush chan struct{}
}

// Open creates or opens the index at path and starts its writer.
func Open(path string, queueSize int) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("open event index: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening event index %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	x := &Index{
		db: db,
		ch: make(chan req, queueSize),
	}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.loop()
	}()
	return x, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("applying %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS combat_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			at INTEGER NOT NULL,
			instance TEXT NOT NULL,
			kind TEXT NOT NULL,
			attacker INTEGER NOT NULL,
			attacker_kind TEXT NOT NULL,
			target INTEGER NOT NULL,
			target_kind TEXT NOT NULL,
			amount REAL NOT NULL,
			health REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_combat_instance_kind ON combat_events(instance, kind, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_combat_target ON combat_events(target, tick);`,
		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			at INTEGER NOT NULL,
			entity INTEGER NOT NULL,
			from_instance TEXT NOT NULL,
			to_instance TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_entity ON transitions(entity, tick);`,
		`CREATE TABLE IF NOT EXISTS lifecycle (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			at INTEGER NOT NULL,
			instance TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_instance ON lifecycle(instance, tick);`,
		`CREATE TABLE IF NOT EXISTS despawns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			at INTEGER NOT NULL,
			entity INTEGER NOT NULL,
			identity TEXT NOT NULL,
			instance TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("creating event index schema: %w", err)
		}
	}
	return nil
}

// Record queues a tick record. Never blocks; records are dropped when the
// writer falls behind.
func (x *Index) Record(rec model.TickRecord) {
	if x == nil || rec.Empty() {
		return
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return
	}
	select {
	case x.ch <- req{rec: rec}:
	default:
		if n := x.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn("event index queue full, dropping records", "dropped", n)
		}
	}
}

// Dropped returns how many records were dropped on a full queue.
func (x *Index) Dropped() uint64 { return x.dropped.Load() }

// Flush waits until every record queued before the call is written.
func (x *Index) Flush(ctx context.Context) error {
	done := make(chan struct{})
	x.mu.RLock()
	if x.closed.Load() {
		x.mu.RUnlock()
		return nil
	}
	select {
	case x.ch <- req{flush: done}:
		x.mu.RUnlock()
	case <-ctx.Done():
		x.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, stops the writer and closes the database.
func (x *Index) Close() error {
	var err error
	x.once.Do(func() {
		x.mu.Lock()
		x.closed.Store(true)
		close(x.ch)
		x.mu.Unlock()
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

func (x *Index) loop() {
	for r := range x.ch {
		if r.flush != nil {
			close(r.flush)
			continue
		}
		if err := x.write(r.rec); err != nil {
			slog.Error("writing event index", "tick", r.rec.Tick, "error", err)
		}
	}
}

func (x *Index) write(rec model.TickRecord) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range rec.Events {
		if _, err := tx.Exec(
			`INSERT INTO combat_events(tick,at,instance,kind,attacker,attacker_kind,target,target_kind,amount,health) VALUES(?,?,?,?,?,?,?,?,?,?)`,
			rec.Tick, stamp(ev.At, rec.At), ev.Instance, ev.Kind.String(),
			ev.Attacker, ev.AttackerKind.String(), ev.Target, ev.TargetKind.String(), ev.Amount, ev.Health,
		); err != nil {
			return fmt.Errorf("insert combat event: %w", err)
		}
	}
	for _, t := range rec.Transitions {
		if _, err := tx.Exec(
			`INSERT INTO transitions(tick,at,entity,from_instance,to_instance) VALUES(?,?,?,?,?)`,
			rec.Tick, stamp(t.At, rec.At), t.Entity, t.From, t.To,
		); err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}
	}
	for _, l := range rec.Lifecycle {
		if _, err := tx.Exec(
			`INSERT INTO lifecycle(tick,at,instance,from_state,to_state,reason) VALUES(?,?,?,?,?,?)`,
			rec.Tick, stamp(l.At, rec.At), l.Instance, l.From, l.To, l.Reason,
		); err != nil {
			return fmt.Errorf("insert lifecycle: %w", err)
		}
	}
	for _, d := range rec.Despawns {
		if _, err := tx.Exec(
			`INSERT INTO despawns(tick,at,entity,identity,instance) VALUES(?,?,?,?,?)`,
			rec.Tick, stamp(d.At, rec.At), d.Entity, d.Identity, d.Instance,
		); err != nil {
			return fmt.Errorf("insert despawn: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func stamp(at, fallback time.Time) int64 {
	if at.IsZero() {
		at = fallback
	}
	return at.UnixNano()
}
