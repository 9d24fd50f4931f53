package sim

import (
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/coopsim/internal/game/interest"
	"github.com/udisondev/coopsim/internal/model"
)

const defaultOutboxSize = 256

// Ack is the server's answer to one input command. Position and LastSequence
// are absolute, so applying the same ack twice changes nothing on the client.
type Ack struct {
	Sequence     uint32
	Kind         model.IntentKind
	Outcome      model.Outcome
	Refusal      model.Refusal
	Position     model.Vec2
	LastSequence uint32
}

// Frame is what one client receives after a tick.
type Frame struct {
	Tick     uint64
	At       time.Time
	Instance string
	Acks     []Ack
	Changes  []interest.Change
	Events   []model.CombatEvent
	// Snapshot is set instead of Changes on the first frame of a session.
	Snapshot []interest.Row
}

// Empty reports whether the frame carries nothing for the client.
func (f Frame) Empty() bool {
	return len(f.Acks) == 0 && len(f.Changes) == 0 && len(f.Events) == 0 && f.Snapshot == nil
}

// Outbox is a session's bounded delivery queue. Sending never blocks the
// tick: a full queue closes the outbox and the transport drops the client.
type Outbox struct {
	identity  string
	ch        chan Frame
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewOutbox creates an outbox with room for size frames.
func NewOutbox(identity string, size int) *Outbox {
	if size <= 0 {
		size = defaultOutboxSize
	}
	return &Outbox{
		identity: identity,
		ch:       make(chan Frame, size),
		closeCh:  make(chan struct{}),
	}
}

// Send queues f for delivery. Non-blocking: returns false if the outbox is
// closed or full (slow client → close).
func (o *Outbox) Send(f Frame) bool {
	select {
	case <-o.closeCh:
		return false
	default:
	}

	select {
	case o.ch <- f:
		return true
	default:
		slog.Warn("outbox full, closing slow client", "identity", o.identity, "queued", len(o.ch))
		o.Close()
		return false
	}
}

// Frames returns the channel the transport writer drains.
func (o *Outbox) Frames() <-chan Frame { return o.ch }

// Done is closed when the outbox is closed.
func (o *Outbox) Done() <-chan struct{} { return o.closeCh }

// Close signals the writer to stop. Safe to call multiple times.
// The frame channel itself is never closed, so concurrent Send cannot panic.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() { close(o.closeCh) })
}

// Closed reports whether Close was called.
func (o *Outbox) Closed() bool {
	select {
	case <-o.closeCh:
		return true
	default:
		return false
	}
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int { return len(o.ch) }
