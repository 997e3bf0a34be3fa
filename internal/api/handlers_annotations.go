package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/anchor/internal/highlight"
	"github.com/dgallion1/anchor/internal/store"
)

// handleApplyAnnotations applies a batch of annotations to a session.
// An empty batch means "apply everything the store has for this book";
// outcomes are written back to the store so future sessions see the
// achieved strategy and confidence.
func (s *Server) handleApplyAnnotations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}

	var req struct {
		Annotations []store.Annotation `json:"annotations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "malformed body: "+err.Error(), http.StatusBadRequest)
		return
	}

	bookID := sess.Metadata().Title
	anns := req.Annotations
	if len(anns) == 0 {
		var err error
		anns, err = s.store.ListAnnotations(r.Context(), bookID)
		if err != nil {
			jsonError(w, "load annotations: "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	outcomes := sess.ApplyAnnotations(r.Context(), anns)
	for i, out := range outcomes {
		ann := anns[i]
		ann.Strategy = string(out.Strategy)
		ann.Confidence = out.Confidence
		if out.ErrorKind != "" {
			ann.LastError = string(out.ErrorKind)
		}
		if err := s.store.SaveAnnotation(r.Context(), bookID, ann); err != nil {
			s.log.Warn("save annotation outcome", "annotation_id", ann.ID, "error", err)
		}
	}

	jsonOK(w, map[string]any{"outcomes": outcomes, "applied": countApplied(outcomes)})
}

func countApplied(outcomes []highlight.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Applied {
			n++
		}
	}
	return n
}

func (s *Server) handleRemoveAnnotation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	annID := chi.URLParam(r, "annID")
	sess.RemoveAnnotation(annID)
	if err := s.store.DeleteAnnotation(r.Context(), sess.Metadata().Title, annID); err != nil {
		s.log.Warn("delete stored annotation", "annotation_id", annID, "error", err)
	}
	jsonOK(w, map[string]string{"removed": annID})
}

func (s *Server) handleActivateMarker(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "sessionID"))
	if !ok {
		jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	annID := chi.URLParam(r, "annID")
	if !sess.ActivateMarker(annID) {
		jsonError(w, "annotation is not applied", http.StatusConflict)
		return
	}
	jsonOK(w, map[string]string{"activated": annID})
}
