package gameserver

import (
	"log/slog"
)

// onDisconnection detaches the session of a closed connection. The player
// stays in the world for the grace period and can be resumed with its token.
// A connection that was replaced by a resume leaves the session alone.
func (s *Server) onDisconnection(client *GameClient) {
	identity := client.Identity()
	if identity == "" {
		return
	}

	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	if !s.clients.Unregister(identity, client) {
		slog.Debug("stale connection closed", "identity", identity, "client", client.IP())
		return
	}
	if err := s.engine.Disconnect(identity); err != nil {
		slog.Warn("disconnect session", "identity", identity, "error", err)
		return
	}
	slog.Info("player disconnected", "identity", identity, "client", client.IP(), "grace", s.engine.Config().DisconnectGrace)
}
