// Package api is the HTTP surface of the anchoring service: session
// management, annotation application, position capture/restore, the
// diagnostic report and a websocket event stream.
package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/anchor/internal/book"
	"github.com/dgallion1/anchor/internal/config"
	"github.com/dgallion1/anchor/internal/sched"
	"github.com/dgallion1/anchor/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	store  *store.Client
	clock  sched.Clock
	log    *slog.Logger
	cfg    config.Config

	mu       sync.Mutex
	sessions map[string]*book.Session
}

// NewServer creates and configures the HTTP server.
func NewServer(st *store.Client, clock sched.Clock, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:    st,
		clock:    clock,
		log:      log,
		cfg:      cfg,
		sessions: make(map[string]*book.Session),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.AnchorAPIKey, s.log))

		r.Post("/api/books", s.handleOpenBook)
		r.Delete("/api/books/{sessionID}", s.handleCloseBook)
		r.Get("/api/books/{sessionID}/navigation", s.handleNavigation)

		r.Post("/api/books/{sessionID}/annotations", s.handleApplyAnnotations)
		r.Delete("/api/books/{sessionID}/annotations/{annID}", s.handleRemoveAnnotation)
		r.Post("/api/books/{sessionID}/annotations/{annID}/activate", s.handleActivateMarker)

		r.Post("/api/books/{sessionID}/position/capture", s.handleCapturePosition)
		r.Post("/api/books/{sessionID}/position/restore", s.handleRestorePosition)

		r.Get("/api/books/{sessionID}/report", s.handleReport)
		r.Get("/api/events", s.handleEvents)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// session looks up an open session by id.
func (s *Server) session(id string) (*book.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) addSession(sess *book.Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *Server) removeSession(id string) *book.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	return sess
}

// CloseAll shuts down every open session.
func (s *Server) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}
