// Package web exposes the mapping and validation engine over HTTP: stateless
// file analysis, schema management, per-workbook grid sessions, and upload
// history.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/csvgrid/csvgrid/internal/config"
	"github.com/csvgrid/csvgrid/internal/grid"
	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sessionstore"
	"github.com/csvgrid/csvgrid/internal/uploads"
	"github.com/csvgrid/csvgrid/internal/web/middleware"
)

// Server is the HTTP front end for the import engine.
type Server struct {
	cfg      *config.Config
	registry *schema.Registry
	store    sessionstore.Store
	uploads  uploads.Store
	router   *chi.Mux
	server   *http.Server
	intake   *intakeLimiter

	mu       sync.Mutex
	sessions map[string]*sessionHandle
}

// sessionHandle serializes access to one workbook's session. The grid
// session itself is single-goroutine; concurrent requests for the same
// workbook queue here.
type sessionHandle struct {
	mu   sync.Mutex
	sess *grid.Session
}

// NewServer wires the engine's collaborators into a routed HTTP server.
func NewServer(cfg *config.Config, registry *schema.Registry, store sessionstore.Store, uploadStore uploads.Store) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		store:    store,
		uploads:  uploadStore,
		router:   chi.NewRouter(),
		sessions: make(map[string]*sessionHandle),
	}
	if cfg.Upload.MaxConcurrent > 0 {
		s.intake = newIntakeLimiter(cfg.Upload.MaxConcurrent, 0)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Compress(5))
	s.router.Use(chimiddleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Stateless file analysis
		r.With(s.limitIntake).Post("/parse", s.handleParse)

		// Schema management
		r.Get("/schemas", s.handleListSchemas)
		r.Post("/schemas", s.handleAddSchema)
		r.Get("/schemas/{schemaID}", s.handleGetSchema)
		r.Put("/schemas/{schemaID}", s.handleReplaceSchema)
		r.Delete("/schemas/{schemaID}", s.handleRemoveSchema)

		// Field catalog
		r.Get("/catalog", s.handleGetCatalog)
		r.Put("/catalog", s.handlePutCatalog)

		// Grid sessions
		r.Route("/sessions/{workbook}", func(r chi.Router) {
			r.Get("/", s.handleSessionView)
			r.Delete("/", s.handleSessionReset)
			r.With(s.limitIntake).Post("/import", s.handleSessionImport)
			r.Post("/schema", s.handleSessionSchema)
			r.Post("/mapping", s.handleSessionMapping)
			r.Post("/apply", s.handleSessionApply)
			r.Post("/back", s.handleSessionBack)
			r.Post("/cells", s.handleSessionUpdateCell)
			r.Post("/view", s.handleSessionSetView)
			r.Post("/rows/delete", s.handleSessionDeleteRows)
			r.Post("/columns/clear", s.handleSessionClearColumn)
			r.Post("/submit", s.handleSessionSubmit)
		})
		r.Get("/export/{workbook}", s.handleExport)

		// Upload history
		r.Get("/uploads", s.handleListUploads)
		r.Post("/uploads", s.handleCreateUpload)
		r.Get("/uploads/{uploadID}", s.handleGetUpload)
		r.Delete("/uploads/{uploadID}", s.handleDeleteUpload)
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// session returns the handle for one workbook, creating and restoring the
// session on first use.
func (s *Server) session(ctx context.Context, workbook string) *sessionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.sessions[workbook]; ok {
		return h
	}

	sess := grid.NewSession(grid.Config{
		Workbook:              workbook,
		Registry:              s.registry,
		Store:                 s.store,
		Submitter:             uploads.NewRecorder(s.uploads),
		Catalog:               grid.LoadCatalog(ctx, s.store),
		DefaultSchemaID:       s.cfg.Grid.DefaultSchemaID,
		AllowSubmitWithErrors: s.cfg.Grid.AllowSubmitWithErrors,
		PageSize:              s.cfg.Grid.PageSize,
		SkipEmptyLines:        s.cfg.Grid.SkipEmptyLines,
	})
	if sess.Restore(ctx) {
		slog.Debug("session restored", "workbook", workbook, "step", sess.Step())
	}

	h := &sessionHandle{sess: sess}
	s.sessions[workbook] = h
	return h
}

// forgetSession drops the in-memory handle so the next request rebuilds from
// the store.
func (s *Server) forgetSession(workbook string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, workbook)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
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
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1,
			lastReset: time.Now(),
		}
		return true
	}

	// Reset tokens if window has passed
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
