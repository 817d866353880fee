// Package core provides the API chassis: the chi router, the global
// middleware chain, and the shared response and validation helpers used by
// the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"duewatch/internal/config"
)

// Pinger is the minimal health-check view of the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the cross-cutting dependencies handlers need and the router
// they mount on.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	DB        Pinger

	router *chi.Mux
}

// NewServer builds a Server with the global middleware registered. Routes are
// mounted separately so tests can register only what they exercise.
func NewServer(cfg *config.Config, logger *slog.Logger, db Pinger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		DB:        db,
		router:    chi.NewRouter(),
	}
	s.registerGlobalMiddleware()
	return s, nil
}

// Handler returns the router as an http.Handler for ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MountRoutes registers the health endpoint and the v1 API group. The
// registrar callback receives the v1 router with admin authentication already
// applied; domain handler packages register their routes there, which keeps
// core free of imports on them.
func (s *Server) MountRoutes(v1 func(chi.Router)) {
	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.AdminAuthMiddleware)
		v1(r)
	})
}

// registerGlobalMiddleware applies the global chain. Order matters: the
// recoverer is outermost so every panic is caught, the request ID comes
// before logging so log lines can carry it.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware(s.Config.Security.CorsAllowedOrigins))
}
