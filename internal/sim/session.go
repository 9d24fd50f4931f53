package sim

import (
	"sync"
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// Session binds a client identity to its player entity, its command queue
// and its delivery outbox. A session outlives its connection by the
// disconnect grace period.
type Session struct {
	identity string
	entity   model.EntityID
	commands *CommandBuffer

	// mu защищает поля соединения; меняются только при join/disconnect.
	mu           sync.Mutex
	outbox       *Outbox
	connected    bool
	resumed      bool
	graceUntil   time.Time
	needSnapshot bool
}

func newSession(identity string, entity model.EntityID, queueSize int, outbox *Outbox) *Session {
	return &Session{
		identity:     identity,
		entity:       entity,
		commands:     NewCommandBuffer(queueSize),
		outbox:       outbox,
		connected:    true,
		needSnapshot: true,
	}
}

// Identity returns the client identity.
func (s *Session) Identity() string { return s.identity }

// EntityID returns the player entity of the session.
func (s *Session) EntityID() model.EntityID { return s.entity }

// Outbox returns the current delivery outbox.
func (s *Session) Outbox() *Outbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbox
}

// Connected reports whether a client is attached.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Resumed reports whether the last attach reclaimed an existing player.
func (s *Session) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

// GraceUntil returns when a disconnected session is despawned.
func (s *Session) GraceUntil() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graceUntil
}

// QueuedCommands returns the number of commands waiting for the next tick.
func (s *Session) QueuedCommands() int { return s.commands.Len() }

func (s *Session) attach(outbox *Outbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbox != nil && s.outbox != outbox {
		s.outbox.Close()
	}
	s.outbox = outbox
	s.connected = true
	s.resumed = true
	s.graceUntil = time.Time{}
	s.needSnapshot = true
}

func (s *Session) detach(graceUntil time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbox != nil {
		s.outbox.Close()
	}
	s.connected = false
	s.graceUntil = graceUntil
}

// expired reports whether the session is disconnected past its grace period.
func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.connected && !now.Before(s.graceUntil)
}

// delivery returns the outbox to deliver to and whether the next frame must
// be a snapshot. A disconnected session returns nil.
func (s *Session) delivery() (*Outbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, false
	}
	snap := s.needSnapshot
	s.needSnapshot = false
	return s.outbox, snap
}
