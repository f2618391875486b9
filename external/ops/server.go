package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/araucarialabs/presenca/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server exposes read-only operational views over the store. It never
// mutates anything; moderation stays in Discord.
type Server struct {
	addr  string
	store store.Store
	srv   *http.Server
}

func NewServer(addr string, st store.Store) *Server {
	return &Server{addr: addr, store: st}
}

func (s *Server) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Get("/event", s.handleOpenEvent)
		r.Get("/sessions", s.handleOpenSessions)
	})
	return r
}

// Run blocks serving HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Mount(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdown <- s.srv.Shutdown(shutdownCtx)
	}()

	slog.Info("ops server started", "addr", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdown; err != nil {
		return err
	}
	slog.Info("ops server stopped", "addr", s.addr)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenEvent(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	open, err := s.store.GetOpenEvent(r.Context(), guildID)
	if err != nil {
		slog.Error("failed to load open event", "error", err, "guild_id", guildID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if open == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active event"})
		return
	}
	writeJSON(w, http.StatusOK, open)
}

func (s *Server) handleOpenSessions(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	sessions, err := s.store.ListOpenSessions(r.Context(), guildID)
	if err != nil {
		slog.Error("failed to list open sessions", "error", err, "guild_id", guildID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode ops response", "error", err)
	}
}
