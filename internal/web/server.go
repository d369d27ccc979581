// Package web provides the HTTP server: the public portfolio page and API,
// and the API-key protected admin API that drives the collection grids.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/folio/internal/config"
	"github.com/JonMunkholm/folio/internal/core"
	mw "github.com/JonMunkholm/folio/internal/web/middleware"
)

// Server is the HTTP server for the portfolio and its admin API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *mw.RateLimiter

	stopOnce sync.Once
	stop     chan struct{}
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		stop:    make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		go s.limiter.RunCleanup(time.Minute, s.stop)
		s.router.Use(s.limiter.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHome)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/public/{collection}", s.handlePublicCollection)

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.APIKeyAuth(&s.cfg.Security))
			r.Use(requestMetadata)

			r.Get("/collections", s.handleListCollections)
			r.Get("/audit-log", s.handleAuditLog)

			r.Route("/{collection}", func(r chi.Router) {
				// Table state
				r.Get("/view", s.withManager(s.handleView))
				r.Get("/rows", s.withManager(s.handleRows))
				r.Post("/query", s.withManager(s.handleSetQuery))
				r.Post("/filter", s.withManager(s.handleSetFilter))
				r.Post("/sort", s.withManager(s.handleSetSort))
				r.Post("/page", s.withManager(s.handleSetPage))
				r.Post("/refresh", s.withManager(s.handleRefresh))

				// Selection
				r.Post("/select/{id}", s.withManager(s.handleToggleSelect))
				r.Post("/select-page", s.withManager(s.handleSelectPage))
				r.Post("/select-none", s.withManager(s.handleSelectNone))

				// Bulk actions and export
				r.Post("/bulk-delete", s.withManager(s.handleBulkDelete))
				r.Post("/bulk-update", s.withManager(s.handleBulkUpdate))
				r.Get("/export", s.withManager(s.handleExport))

				// Records
				r.Post("/records", s.withManager(s.handleCreateRecord))
				r.Put("/records/{id}", s.withManager(s.handleUpdateRecord))
				r.Delete("/records/{id}", s.withManager(s.handleDeleteRecord))
				r.Post("/records/{id}/duplicate", s.withManager(s.handleDuplicateRecord))
			})
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Inline styles only; the public page ships no scripts.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; script-src 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"collections": len(s.service.Managers()),
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
