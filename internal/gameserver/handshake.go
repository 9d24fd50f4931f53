package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/protocol"
	"github.com/udisondev/coopsim/internal/sim"
)

// errHandshake wraps every refused hello; the client was already told why.
var errHandshake = errors.New("handshake refused")

// handshake reads the hello, attaches the session and writes the welcome.
// It runs before the write pump, so it writes to the connection directly.
func (s *Server) handshake(ctx context.Context, client *GameClient) (*sim.Session, error) {
	if err := client.conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout())); err != nil {
		return nil, fmt.Errorf("setting handshake deadline: %w", err)
	}
	_, msg, err := client.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading hello: %w", err)
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return nil, s.refuse(client, protocol.ErrBadRequest, "expected hello", websocket.ClosePolicyViolation)
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, s.refuse(client, protocol.ErrBadRequest, "decoding hello: "+err.Error(), websocket.ClosePolicyViolation)
	}
	if hello.ProtocolVersion != protocol.Version {
		return nil, s.refuse(client, protocol.ErrProtoVersion, "unsupported protocol_version "+hello.ProtocolVersion, websocket.ClosePolicyViolation)
	}
	identity, err := CanonicalUsername(hello.Username)
	if err != nil {
		return nil, s.refuse(client, protocol.ErrUsernameInvalid, err.Error(), websocket.ClosePolicyViolation)
	}

	profile, err := s.loadProfile(ctx, identity)
	if err != nil {
		slog.Error("loading profile", "identity", identity, "error", err)
		return nil, s.refuse(client, protocol.ErrInternal, "profile unavailable", websocket.CloseInternalServerErr)
	}

	s.joinMu.Lock()
	session, code, err := s.attach(identity, hello.ResumeToken, profile)
	if err != nil {
		s.joinMu.Unlock()
		return nil, s.refuse(client, code, err.Error(), websocket.ClosePolicyViolation)
	}
	token, err := s.identities.Issue(identity)
	if err != nil {
		s.joinMu.Unlock()
		slog.Error("issuing resume token", "identity", identity, "error", err)
		_ = s.engine.Disconnect(identity)
		return nil, s.refuse(client, protocol.ErrInternal, "internal error", websocket.CloseInternalServerErr)
	}
	client.bind(identity, session)
	if prev := s.clients.Register(identity, client); prev != nil {
		slog.Info("connection replaced by resume", "identity", identity, "previous", prev.IP())
		prev.Close()
	}
	s.joinMu.Unlock()

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Identity:        identity,
		Entity:          uint32(session.EntityID()),
		ResumeToken:     token,
		Resumed:         session.Resumed(),
		TickRate:        s.engine.Config().TickRate,
		Catalog:         s.engine.Registry().Catalog().Entries(),
	}
	if err := client.writeJSON(welcome); err != nil {
		return session, fmt.Errorf("writing welcome: %w", err)
	}
	slog.Info("client entered", "identity", identity, "entity", session.EntityID(), "resumed", session.Resumed(), "client", client.IP())
	return session, nil
}

// attach joins or resumes the session of identity. An existing session,
// connected or in grace, is only handed to a client holding its token.
func (s *Server) attach(identity, token string, profile *model.Profile) (*sim.Session, string, error) {
	if existing, ok := s.engine.Session(identity); ok && !s.identities.Verify(identity, token) {
		if existing.Connected() {
			return nil, protocol.ErrUsernameTaken, fmt.Errorf("username %q is in use", identity)
		}
		return nil, protocol.ErrUnauthorized, fmt.Errorf("resume token required for %q", identity)
	}
	session, err := s.engine.Join(identity, profile, s.outboxSize())
	if err != nil {
		if errors.Is(err, sim.ErrInstanceUnavailable) {
			return nil, protocol.ErrInstanceUnavailable, err
		}
		slog.Error("joining session", "identity", identity, "error", err)
		return nil, protocol.ErrInternal, errors.New("internal error")
	}
	return session, "", nil
}

func (s *Server) loadProfile(ctx context.Context, identity string) (*model.Profile, error) {
	if s.profiles == nil {
		return nil, nil
	}
	if _, ok := s.engine.Session(identity); ok {
		// Resumes keep the live player; the stored profile is older.
		return nil, nil
	}
	loadCtx, cancel := context.WithTimeout(ctx, profileLoadTimeout)
	defer cancel()
	return s.profiles.Load(loadCtx, identity)
}

func (s *Server) refuse(client *GameClient, code, message string, closeCode int) error {
	if err := client.writeJSON(protocol.NewError(code, message, 0)); err != nil {
		slog.Debug("writing handshake error", "client", client.IP(), "error", err)
	}
	client.closeWith(closeCode, code)
	return fmt.Errorf("%w: %s: %s", errHandshake, code, message)
}
