package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvmerge/internal/logging"
)

// handleHealth reports liveness plus session and export load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"exports":  s.limiter.Status(),
	})
}

// handleCreateSession opens a new merge workspace.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ws, err := s.sessions.Create()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("session created", "session_id", ws.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": ws.ID})
}

// handleDeleteSession closes a workspace.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(id); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}
