package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencode-ai/agentcore/internal/cronjob"
	"github.com/opencode-ai/agentcore/internal/sessionmgr"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the configuration a standalone agentcored
// process starts with.
func DefaultConfig() Config {
	return Config{
		Addr:        ":4096",
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE and streaming generate responses are
		// long-lived by design.
	}
}

// Server is the engine's HTTP/WebSocket driver, routing requests to a
// sessionmgr.Manager and an optional cronjob.Manager.
type Server struct {
	cfg     Config
	router  *chi.Mux
	httpSrv *http.Server

	sessions *sessionmgr.Manager
	cron     *cronjob.Manager // nil when the cron subsystem is disabled
}

// New builds a Server with its routes and middleware wired. cron may be
// nil, in which case the /cron routes answer 404.
func New(cfg Config, sessions *sessionmgr.Manager, cron *cronjob.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		sessions: sessions,
		cron:     cron,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start runs the HTTP server, blocking until it exits (Shutdown,
// ListenAndServe error, or process signal handled by the caller).
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
