package gameserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/udisondev/coopsim/internal/game/instance"
)

// handleInstances lists every instance with its lifecycle state.
func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"tick":      s.engine.TickCount(),
		"sessions":  s.engine.SessionCount(),
		"instances": s.engine.Instances(),
	})
}

// handleReset restores an instance from its template and clears the
// inconsistent mark.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	err := s.engine.ResetInstance(key)
	switch {
	case err == nil:
		slog.Info("instance reset by operator", "instance", key, "remote", r.RemoteAddr)
		writeJSONResponse(w, http.StatusOK, map[string]any{"instance": key, "reset": true})
	case errors.Is(err, instance.ErrInstanceNotFound), errors.Is(err, instance.ErrTemplateNotFound):
		writeJSONResponse(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		slog.Error("instance reset failed", "instance", key, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}
