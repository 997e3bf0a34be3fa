package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/anchor/internal/position"
)

// handleCapturePosition snapshots the session's reading position and
// persists it for the book.
func (s *Server) handleCapturePosition(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}

	snap, err := sess.CapturePosition(nil)
	if err != nil {
		jsonError(w, "capture: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		jsonError(w, "encode snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.store.SavePosition(r.Context(), sess.Metadata().Title, raw); err != nil {
		s.log.Warn("save position", "session_id", sess.ID, "error", err)
	}

	jsonOK(w, snap)
}

// handleRestorePosition runs the restoration cascade. The snapshot
// comes from the request body, or from the store when the body is
// empty.
func (s *Server) handleRestorePosition(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		jsonError(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		body, err = s.store.LoadPosition(r.Context(), sess.Metadata().Title)
		if err != nil {
			jsonError(w, "load position: "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	var snap position.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		jsonError(w, "malformed snapshot: "+err.Error(), http.StatusBadRequest)
		return
	}

	res := sess.RestorePosition(r.Context(), &snap)
	jsonOK(w, res)
}
