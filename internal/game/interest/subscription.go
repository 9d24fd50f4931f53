package interest

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/udisondev/coopsim/internal/model"
)

// ChangeKind is the kind of one row change.
type ChangeKind uint8

const (
	ChangeInsert ChangeKind = iota + 1
	ChangeUpdate
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k ChangeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *ChangeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "insert":
		*k = ChangeInsert
	case "update":
		*k = ChangeUpdate
	case "delete":
		*k = ChangeDelete
	default:
		return fmt.Errorf("unknown change kind %q", b)
	}
	return nil
}

// Change is one row change. Delete carries the last row the client was sent.
type Change struct {
	Kind ChangeKind `json:"op"`
	Row  Row        `json:"row"`
}

// Diff is the ordered set of changes for one client and one frame.
// Deletes come first, then inserts and updates, each in ascending ID order.
type Diff struct {
	Instance string   `json:"instance"`
	Changes  []Change `json:"changes"`
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool { return len(d.Changes) == 0 }

// Source enumerates entities for subscriptions. *world.Store implements it.
type Source interface {
	ForEachInInstance(key string, fn func(*model.Entity))
	ForEachOwned(identity string, fn func(*model.Entity))
}

// Subscription tracks one client's interest: the rows of its current
// instance plus every row it owns, and what it was last sent.
// Not safe for concurrent use.
type Subscription struct {
	identity string
	instance string
	sent     map[model.EntityID]Row
}

// NewSubscription creates a subscription that has sent nothing yet.
func NewSubscription(identity, instance string) *Subscription {
	return &Subscription{
		identity: identity,
		instance: instance,
		sent:     make(map[model.EntityID]Row, 64),
	}
}

// Identity returns the subscribed client identity.
func (s *Subscription) Identity() string { return s.identity }

// Instance returns the subscribed instance key.
func (s *Subscription) Instance() string { return s.instance }

// Len returns the number of rows the client currently holds.
func (s *Subscription) Len() int { return len(s.sent) }

// Switch moves the subscription to another instance. The next Compute
// deletes the old instance's rows and inserts the new ones in one diff,
// so the client never holds an empty row set in between.
func (s *Subscription) Switch(instance string) {
	s.instance = instance
}

// Compute returns the changes since the last Compute or Snapshot and records
// the current row set as sent.
func (s *Subscription) Compute(src Source) Diff {
	current := s.rows(src)
	diff := Diff{Instance: s.instance}

	var deletes, upserts []Change
	for id, old := range s.sent {
		if _, ok := current[id]; !ok {
			deletes = append(deletes, Change{Kind: ChangeDelete, Row: old})
		}
	}
	for id, row := range current {
		old, ok := s.sent[id]
		switch {
		case !ok:
			upserts = append(upserts, Change{Kind: ChangeInsert, Row: row})
		case old != row:
			upserts = append(upserts, Change{Kind: ChangeUpdate, Row: row})
		}
	}
	byID := func(a, b Change) int { return cmp.Compare(a.Row.ID, b.Row.ID) }
	slices.SortFunc(deletes, byID)
	slices.SortFunc(upserts, byID)
	diff.Changes = append(deletes, upserts...)

	s.sent = current
	return diff
}

// Snapshot returns the full current row set in ascending ID order and
// records it as sent. Used to bootstrap a client after (re)connect.
func (s *Subscription) Snapshot(src Source) []Row {
	current := s.rows(src)
	rows := make([]Row, 0, len(current))
	for _, r := range current {
		rows = append(rows, r)
	}
	slices.SortFunc(rows, func(a, b Row) int { return cmp.Compare(a.ID, b.ID) })
	s.sent = current
	return rows
}

// Reset forgets what was sent; the next Compute inserts everything.
func (s *Subscription) Reset() {
	s.sent = make(map[model.EntityID]Row, len(s.sent))
}

func (s *Subscription) rows(src Source) map[model.EntityID]Row {
	current := make(map[model.EntityID]Row, len(s.sent)+8)
	add := func(e *model.Entity) { current[e.ID] = RowOf(e) }
	src.ForEachInInstance(s.instance, add)
	src.ForEachOwned(s.identity, add)
	return current
}
