// Package web serves the admin dashboard: one page per entity table, the
// htmx actions that drive it, a JSON API over the same tables, and exports.
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/votedesk/internal/clock"
	"github.com/JonMunkholm/votedesk/internal/config"
	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/prefs"
	"github.com/JonMunkholm/votedesk/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Deps are the collaborators a Server is built from.
type Deps struct {
	Backend Backend
	// Prefs persists column layouts. Nil keeps them in memory.
	Prefs *prefs.Store
	Clock clock.Clock
}

// Server is the admin HTTP server.
type Server struct {
	cfg      *config.Config
	backend  Backend
	prefs    *prefs.Store
	memPrefs *datatable.MemoryPreferences
	clock    clock.Clock
	queries  *datatable.QueryClient
	mounts   *MountRegistry
	exports  *ExportLimiter
	limiters []*rateLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	s := &Server{
		cfg:      cfg,
		backend:  deps.Backend,
		prefs:    deps.Prefs,
		memPrefs: datatable.NewMemoryPreferences(),
		clock:    c,
		queries: datatable.NewQueryClient(
			datatable.WithQueryClock(c),
			datatable.WithStaleTime(cfg.Table.QueryStaleTime),
			datatable.WithQueryTimeout(cfg.Table.QueryTimeout),
			datatable.WithQueryLogger(slog.Default()),
		),
		mounts:  NewMountRegistry(c, cfg.Mounts.IdleTTL),
		exports: NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime),
		router:  chi.NewRouter(),
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
	s.router.Use(chimw.Compress(5))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(&s.cfg.Security))

		// Interactive routes share the request timeout.
		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/", s.handleHome)
			r.Get("/admin", s.handleIndex)
			r.Get("/admin/{entity}", s.handleTablePage)
			r.Post("/admin/{entity}/{action}", s.handleTableAction)

			r.Get("/api/tables", s.handleListTables)
			r.Get("/api/tables/{entity}", s.handleTablePage)
			r.Post("/api/tables/{entity}/selection", s.handleSelection)
			r.Post("/api/tables/{entity}/{action}", s.handleTableAction)
		})

		// Exports run under their own timeout and rate limit.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled && s.cfg.Rate.ExportLimit > 0 {
				r.Use(s.newRateLimiter(s.cfg.Rate.ExportLimit, time.Minute).middleware)
			}
			r.Get("/admin/{entity}/export", s.handleExport)
			r.Get("/api/tables/{entity}/export", s.handleExport)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartSweeper closes idle table mounts until ctx is cancelled.
func (s *Server) StartSweeper(ctx context.Context) {
	s.mounts.StartSweeper(ctx, s.cfg.Mounts.SweepInterval)
}

// Shutdown stops accepting requests, lets running exports finish and
// closes every mounted table.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if drainErr := s.exports.WaitForDrain(ctx); drainErr != nil {
		slog.Warn("exports still running at shutdown", "active", s.exports.Active())
	}
	s.mounts.CloseAll()
	for _, l := range s.limiters {
		l.stop()
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Mounts exposes the mount registry.
func (s *Server) Mounts() *MountRegistry {
	return s.mounts
}

// Queries exposes the shared query client so writers can invalidate it.
func (s *Server) Queries() *datatable.QueryClient {
	return s.queries
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if s.cfg.Security.EnableCSP {
			// htmx comes from its CDN; the page script and styles are inline.
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; "+
					"style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'")
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a fixed-window token count per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	clock    clock.Clock
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a limiter that the server stops on shutdown.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		clock:    s.clock,
		done:     make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			now := rl.clock.Now()
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if now.Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow consumes a token for ip if one is left in the current window.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP. TrustedRealIP has already replaced
// RemoteAddr for proxied requests.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
