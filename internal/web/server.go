// Package web provides the HTTP API for merge sessions.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/sink"
	"github.com/JonMunkholm/csvmerge/internal/web/middleware"
)

// maxBodySize bounds JSON request bodies. Requests carry paths, not file data.
const maxBodySize = 1 << 20

// Server is the HTTP server for the merge API.
type Server struct {
	cfg      *config.Config
	sessions *SessionStore
	limiter  *core.ExportLimiter
	sinkOpts sink.Options
	router   *chi.Mux
	server   *http.Server
	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a Server. pool may be nil, which disables postgres exports.
func NewServer(cfg *config.Config, pool *pgxpool.Pool) *Server {
	limiter := core.NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)

	s := &Server{
		cfg:     cfg,
		limiter: limiter,
		sessions: NewSessionStore(cfg.Server.MaxSessions, core.WorkspaceOptions{
			Ingest: core.IngestOptions{
				AllowedExtensions: cfg.Ingest.AllowedExtensions,
				MaxFileSize:       cfg.Ingest.MaxFileSize,
				Delimiter:         cfg.Ingest.DelimiterRune(),
			},
			Limiter:       limiter,
			ExportTimeout: cfg.Export.Timeout,
		}),
		sinkOpts: sink.Options{
			Dir:               cfg.Export.Dir,
			RestrictToDir:     true,
			SQLitePath:        cfg.SQLite.Path,
			SQLiteBusyTimeout: cfg.SQLite.BusyTimeout,
			Pool:              pool,
		},
		router: chi.NewRouter(),
		stop:   make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute, s.stop)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)

			// Admission
			r.Post("/validate", s.handleValidate)
			r.Post("/check", s.handleCheck)
			r.Post("/files", s.handleAdmit)
			r.Get("/files", s.handleListFiles)
			r.Delete("/files/{index}", s.handleRemoveFile)
			r.Put("/files/{index}/header", s.handleSetHeader)
			r.Get("/files/{index}/table", s.handleFileTable)
			r.Get("/files/{index}/table.txt", s.handleFileText)
			r.Get("/headers/consistent", s.handleHeadersConsistent)

			// Merge
			r.Get("/merge", s.handleMerge)
			r.Get("/merge.txt", s.handleMergeText)

			// Export
			r.Get("/exports", s.handleListExports)
			r.Get("/exports/{exportID}", s.handleExportStatus)
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(newRateLimiter(s.cfg.Rate.ExportLimit, time.Minute, s.stop).middleware)
				}
				r.Post("/exports", s.handleStartExport)
			})
		})
	})
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

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for running exports.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	if waitErr := s.sessions.WaitForExports(ctx); waitErr != nil && err == nil {
		err = waitErr
	}

	// Deleted sessions are no longer in the store; the shared limiter still
	// counts their exports.
	if status := s.limiter.Status(); status.Active > 0 {
		slog.Info("waiting for exports to complete", "active", status.Active)
		if drainErr := s.limiter.WaitForDrain(ctx); drainErr != nil {
			slog.Warn("exports did not complete in time", "error", drainErr)
			if err == nil {
				err = drainErr
			}
		}
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request counter per client address.
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
// Its cleanup loop exits when stop is closed.
func newRateLimiter(rate int, window time.Duration, stop <-chan struct{}) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup(stop)
	return rl
}

// cleanup removes stale visitor entries once per window.
func (rl *rateLimiter) cleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
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

// middleware returns an HTTP middleware that rate limits by client address.
// RemoteAddr has already been rewritten by TrustedRealIP when appropriate.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _ := splitHost(r.RemoteAddr)
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error for malformed requests that never reached
// the core, such as undecodable bodies or bad path parameters.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "REQ001",
	})
}

// writeJSON encodes v as JSON and writes it to w with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
