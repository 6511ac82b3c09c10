// Package server assembles the HTTP API over the extraction pipeline.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/cleanup"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/extraction"
	"github.com/lexmine/lexmine/internal/review"
	"github.com/lexmine/lexmine/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Deps are the feature components the server exposes over HTTP.
type Deps struct {
	Documents    *documents.Store
	Sessions     *session.Store
	Concepts     *concepts.Store
	Audit        *audit.Store
	Orchestrator *extraction.Orchestrator
	Review       *review.Processor
	Cleanup      *cleanup.Runner
}

// Server is the lexmine API server.
type Server struct {
	cfg        Config
	router     chi.Router
	httpServer *http.Server
}

// New creates a server and mounts every feature router.
func New(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg}
	s.router = buildRouter(cfg, deps)
	return s
}

func buildRouter(cfg Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	documents.RegisterRoutes(r, deps.Documents)
	session.RegisterRoutes(r, deps.Sessions)
	concepts.RegisterRoutes(r, deps.Concepts, deps.Audit)
	audit.RegisterRoutes(r, deps.Audit)
	extraction.RegisterRoutes(r, deps.Orchestrator, deps.Sessions)
	review.RegisterRoutes(r, deps.Review)
	cleanup.RegisterRoutes(r, deps.Cleanup)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("lexmine server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
