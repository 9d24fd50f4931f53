package gameserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/coopsim/internal/protocol"
	"github.com/udisondev/coopsim/internal/sim"
)

// Default write queue / timeout constants.
// Overridden by config values when available.
const (
	defaultSendQueueSize    = 256
	defaultWriteTimeout     = 5 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultHandshakeTimeout = 5 * time.Second

	controlQueueSize = 16
	maxMessageSize   = 64 * 1024
)

// GameClient is a single websocket connection. Frames from the simulation
// come through the session outbox; replies produced by the reader (errors)
// go through a small control queue. Only writePump writes to conn.
type GameClient struct {
	conn *websocket.Conn
	ip   string

	// state использует atomic.Int32 для lock-free reads
	state atomic.Int32

	// mu защищает identity и session
	mu       sync.Mutex
	identity string
	session  *sim.Session

	controlCh chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
}

// NewGameClient wraps an upgraded connection.
func NewGameClient(conn *websocket.Conn, ip string, writeTimeout time.Duration) *GameClient {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	c := &GameClient{
		conn:         conn,
		ip:           ip,
		controlCh:    make(chan []byte, controlQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	c.state.Store(int32(ClientStateConnected))
	return c
}

// IP returns the client's remote IP address.
func (c *GameClient) IP() string {
	return c.ip
}

// State returns the connection state.
func (c *GameClient) State() ClientConnectionState {
	return ClientConnectionState(c.state.Load())
}

// SetState updates the connection state.
func (c *GameClient) SetState(s ClientConnectionState) {
	c.state.Store(int32(s))
}

// Identity returns the identity bound at the handshake ("" before it).
func (c *GameClient) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Session returns the attached simulation session, or nil.
func (c *GameClient) Session() *sim.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *GameClient) bind(identity string, s *sim.Session) {
	c.mu.Lock()
	c.identity = identity
	c.session = s
	c.mu.Unlock()
	c.SetState(ClientStateInGame)
}

// SendControl queues a message written ahead of simulation frames.
// Never blocks: returns false if the queue is full or the client is closed.
func (c *GameClient) SendControl(msg any) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encoding control message", "client", c.ip, "error", err)
		return false
	}
	select {
	case <-c.closeCh:
		return false
	default:
	}
	select {
	case c.controlCh <- b:
		return true
	default:
		slog.Warn("control queue full, dropping message", "client", c.ip, "identity", c.Identity())
		return false
	}
}

// Close stops the write pump and closes the connection. Safe to call many times.
func (c *GameClient) Close() {
	c.closeOnce.Do(func() {
		c.SetState(ClientStateDisconnected)
		close(c.closeCh)
		_ = c.conn.Close()
	})
}

// Done is closed when the client is closed.
func (c *GameClient) Done() <-chan struct{} {
	return c.closeCh
}

// writePump drains the control queue and the session outbox until either
// side closes. A closed outbox means the client fell behind or was replaced.
func (c *GameClient) writePump(outbox *sim.Outbox) {
	defer c.Close()
	for {
		select {
		case <-c.closeCh:
			return
		case b := <-c.controlCh:
			if err := c.write(b); err != nil {
				slog.Debug("write failed", "client", c.ip, "error", err)
				return
			}
		case f := <-outbox.Frames():
			for _, msg := range protocol.Encode(f) {
				if err := c.writeJSON(msg); err != nil {
					slog.Debug("write failed", "client", c.ip, "error", err)
					return
				}
			}
		case <-outbox.Done():
			c.closeWith(websocket.ClosePolicyViolation, "outbox closed")
			return
		}
	}
}

func (c *GameClient) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %T: %w", v, err)
	}
	return c.write(b)
}

func (c *GameClient) write(b []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

func (c *GameClient) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
