package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/coopsim/internal/config"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/protocol"
	"github.com/udisondev/coopsim/internal/sim"
)

const (
	profileLoadTimeout = 3 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Server accepts websocket clients and connects them to the simulation engine.
type Server struct {
	cfg        config.GameServer
	engine     *sim.Engine
	profiles   ProfileStore
	identities *Identities
	clients    *ClientManager
	upgrader   websocket.Upgrader

	// joinMu serialises session attach with connection cleanup so a stale
	// connection never detaches the session its successor resumed.
	joinMu sync.Mutex

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a new game server. profiles may be nil, in which case
// every player starts fresh.
func NewServer(cfg config.GameServer, engine *sim.Engine, profiles ProfileStore) *Server {
	return &Server{
		cfg:        cfg,
		engine:     engine,
		profiles:   profiles,
		identities: NewIdentities(),
		clients:    NewClientManager(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ClientManager returns the client manager for this server.
func (s *Server) ClientManager() *ClientManager {
	return s.clients
}

// Identities returns the resume-token table.
func (s *Server) Identities() *Identities {
	return s.identities
}

// OnDespawn forgets the resume token of a player whose grace period ended.
func (s *Server) OnDespawn(p model.Profile) {
	s.identities.Revoke(p.Username)
}

// Addr returns the address the server is listening on.
// Returns nil if the server hasn't started yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the HTTP routes: the websocket endpoint, a health check
// and, when enabled, the operator endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"tick":     s.engine.TickCount(),
			"sessions": s.engine.SessionCount(),
			"clients":  s.clients.Count(),
		})
	})
	if s.cfg.AdminEnabled {
		mux.HandleFunc("GET /admin/instances", s.handleInstances)
		mux.HandleFunc("POST /admin/instances/{key}/reset", s.handleReset)
	}
	return mux
}

// Run listens on cfg.Addr() and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from the given listener until ctx is cancelled.
// Used for testing with custom listeners.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.handshakeTimeout(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		// Hijacked websocket connections are not closed by Shutdown.
		s.clients.ForEachClient(func(c *GameClient) bool {
			c.Close()
			return true
		})
	}()

	slog.Info("game server started", "address", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	conn.SetReadLimit(maxMessageSize)

	client := NewGameClient(conn, host, s.cfg.WriteTimeout)
	defer client.Close()
	slog.Info("new game client connection", "remote", host)

	session, err := s.handshake(r.Context(), client)
	if session != nil {
		defer s.onDisconnection(client)
	}
	if err != nil {
		slog.Info("handshake failed", "remote", host, "error", err)
		return
	}

	go client.writePump(session.Outbox())
	s.readLoop(client)
}

func (s *Server) readLoop(client *GameClient) {
	identity := client.Identity()
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	for {
		if err := client.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		_, msg, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("client read error", "identity", identity, "error", err)
			} else {
				slog.Info("client disconnected", "identity", identity)
			}
			return
		}
		if !s.handleMessage(client, identity, msg) {
			return
		}
	}
}

// handleMessage decodes one intent and submits it. Returns false when the
// session is gone and the connection should be dropped.
func (s *Server) handleMessage(client *GameClient, identity string, msg []byte) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		client.SendControl(protocol.NewError(protocol.ErrBadRequest, err.Error(), 0))
		return true
	}
	if base.ProtocolVersion != protocol.Version {
		client.SendControl(protocol.NewError(protocol.ErrProtoVersion, "unsupported protocol_version "+base.ProtocolVersion, 0))
		return true
	}
	if base.Type != protocol.TypeIntent {
		client.SendControl(protocol.NewError(protocol.ErrBadRequest, "unexpected message type "+base.Type, 0))
		return true
	}

	var in protocol.IntentMsg
	if err := json.Unmarshal(msg, &in); err != nil {
		client.SendControl(protocol.NewError(protocol.ErrBadRequest, "decoding intent: "+err.Error(), 0))
		return true
	}
	cmd, err := in.Command(time.Now())
	if err != nil {
		client.SendControl(protocol.NewError(protocol.ErrBadRequest, err.Error(), in.Seq))
		return true
	}

	err = s.engine.Submit(identity, cmd)
	switch {
	case err == nil:
		return true
	case errors.Is(err, sim.ErrCommandQueueFull):
		client.SendControl(protocol.NewError(protocol.ErrQueueFull, "command queue full", in.Seq))
		return true
	case errors.Is(err, sim.ErrSessionClosed), errors.Is(err, sim.ErrUnknownSession):
		slog.Debug("intent for closed session", "identity", identity, "error", err)
		return false
	default:
		slog.Error("submitting intent", "identity", identity, "error", err)
		client.SendControl(protocol.NewError(protocol.ErrInternal, "internal error", in.Seq))
		return true
	}
}

func (s *Server) handshakeTimeout() time.Duration {
	if s.cfg.HandshakeTimeout > 0 {
		return s.cfg.HandshakeTimeout
	}
	return defaultHandshakeTimeout
}

func (s *Server) outboxSize() int {
	if s.cfg.SendQueueSize > 0 {
		return s.cfg.SendQueueSize
	}
	return defaultSendQueueSize
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing http response", "error", err)
	}
}
