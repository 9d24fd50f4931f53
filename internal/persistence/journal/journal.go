package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/udisondev/coopsim/internal/model"
)

const (
	defaultQueueSize = 4096
	flushInterval    = time.Second
)

// Entry is the journal form of a tick record.
type Entry struct {
	Tick        uint64            `json:"tick"`
	At          time.Time         `json:"at"`
	Events      []EventEntry      `json:"events,omitempty"`
	Transitions []TransitionEntry `json:"transitions,omitempty"`
	Lifecycle   []LifecycleEntry  `json:"lifecycle,omitempty"`
	Despawns    []DespawnEntry    `json:"despawns,omitempty"`
}

type EventEntry struct {
	Instance string         `json:"instance"`
	Kind     string         `json:"kind"`
	Attacker model.EntityID `json:"attacker"`
	Target   model.EntityID `json:"target"`
	Amount   float64        `json:"amount"`
	Health   float64        `json:"health"`
}

type TransitionEntry struct {
	Entity model.EntityID `json:"entity"`
	From   string         `json:"from"`
	To     string         `json:"to"`
}

type LifecycleEntry struct {
	Instance string `json:"instance"`
	From     string `json:"from"`
	To       string `json:"to"`
	Reason   string `json:"reason"`
}

type DespawnEntry struct {
	Entity   model.EntityID `json:"entity"`
	Identity string         `json:"identity"`
	Instance string         `json:"instance"`
}

// EntryOf converts a tick record.
func EntryOf(rec model.TickRecord) Entry {
	e := Entry{Tick: rec.Tick, At: rec.At.UTC()}
	for _, ev := range rec.Events {
		e.Events = append(e.Events, EventEntry{
			Instance: ev.Instance, Kind: ev.Kind.String(),
			Attacker: ev.Attacker, Target: ev.Target,
			Amount: ev.Amount, Health: ev.Health,
		})
	}
	for _, t := range rec.Transitions {
		e.Transitions = append(e.Transitions, TransitionEntry{Entity: t.Entity, From: t.From, To: t.To})
	}
	for _, l := range rec.Lifecycle {
		e.Lifecycle = append(e.Lifecycle, LifecycleEntry{Instance: l.Instance, From: l.From, To: l.To, Reason: l.Reason})
	}
	for _, d := range rec.Despawns {
		e.Despawns = append(e.Despawns, DespawnEntry{Entity: d.Entity, Identity: d.Identity, Instance: d.Instance})
	}
	return e
}

// Journal is the tick-record sink. Record never blocks; Run writes.
// It implements sim.EventSink.
type Journal struct {
	w       *Writer
	ch      chan model.TickRecord
	dropped atomic.Uint64
}

// New creates a journal writing under dir.
func New(dir string, queueSize int) *Journal {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Journal{
		w:  NewWriter(dir, "ticks"),
		ch: make(chan model.TickRecord, queueSize),
	}
}

// Record queues rec. Records are dropped when the writer falls behind.
func (j *Journal) Record(rec model.TickRecord) {
	if rec.Empty() {
		return
	}
	select {
	case j.ch <- rec:
	default:
		if n := j.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn("journal queue full, dropping records", "dropped", n)
		}
	}
}

// Dropped returns how many records were dropped on a full queue.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Writer returns the underlying file writer.
func (j *Journal) Writer() *Writer { return j.w }

// Run writes queued records until ctx is cancelled, then drains the queue
// and closes the current file.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.drain()
			if err := j.w.Close(); err != nil {
				return fmt.Errorf("closing journal: %w", err)
			}
			return nil
		case rec := <-j.ch:
			j.write(rec)
		case <-ticker.C:
			if err := j.w.Flush(); err != nil {
				slog.Error("flushing journal", "error", err)
			}
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case rec := <-j.ch:
			j.write(rec)
		default:
			return
		}
	}
}

func (j *Journal) write(rec model.TickRecord) {
	if err := j.w.Write(EntryOf(rec)); err != nil {
		slog.Error("writing journal", "tick", rec.Tick, "error", err)
	}
}

// ReadFile decodes every entry of one journal file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decoding journal line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return out, nil
}
