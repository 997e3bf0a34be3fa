package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/anchor/internal/book"
)

// handleOpenBook opens a directory-backed book under BooksDir and
// starts a reading session over it.
func (s *Server) handleOpenBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		jsonError(w, "body must carry a book name", http.StatusBadRequest)
		return
	}
	// Book names are plain directory names, never paths.
	if strings.ContainsAny(req.Name, `/\`) || req.Name == ".." {
		jsonError(w, "invalid book name", http.StatusBadRequest)
		return
	}

	b, err := book.OpenDir(filepath.Join(s.cfg.BooksDir, req.Name))
	if err != nil {
		jsonError(w, "open book: "+err.Error(), http.StatusNotFound)
		return
	}

	sess, err := book.Open(r.Context(), b, s.clock, s.log, s.cfg.SessionConfig())
	if err != nil {
		jsonError(w, "open session: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.addSession(sess)

	jsonOK(w, map[string]any{
		"session_id": sess.ID,
		"metadata":   sess.Metadata(),
		"navigation": sess.Navigation(),
	})
}

func (s *Server) handleCloseBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess := s.removeSession(id)
	if sess == nil {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	sess.Close()
	jsonOK(w, map[string]string{"closed": id})
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	jsonOK(w, map[string]any{"navigation": sess.Navigation()})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	payload := map[string]any{"stats": sess.Report().Stats()}
	if r.URL.Query().Get("full") == "true" {
		payload["entries"] = sess.Report().Dump()
	}
	jsonOK(w, payload)
}
