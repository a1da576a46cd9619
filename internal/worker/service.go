// Package worker provides the HTTP search service for obsearch.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/obsearch/internal/config"
	"github.com/thebtf/obsearch/internal/db"
	"github.com/thebtf/obsearch/internal/search"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is used when the config has no request timeout.
	DefaultHTTPTimeout = 30 * time.Second

	// ReadHeaderTimeout bounds slow clients.
	ReadHeaderTimeout = 10 * time.Second
)

// Service is the HTTP front end over a search manager.
type Service struct {
	version string
	config  *config.Config

	provider db.Provider
	search   *search.Manager
	limiter  *PerClientRateLimiter

	router    *chi.Mux
	server    *http.Server
	listener  net.Listener
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	initError error
	initMu    sync.RWMutex
}

// NewService wires a service over provider. The dataset is not loaded until
// Start or the first search.
func NewService(version string, cfg *config.Config, provider db.Provider) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:  version,
		config:   cfg,
		provider: provider,
		search: search.NewManager(provider, search.Options{
			PageSize:    cfg.PerPage,
			PatternMode: cfg.Mode(),
		}),
		router:    chi.NewRouter(),
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.RateLimit > 0 {
		svc.limiter = NewPerClientRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Search returns the search manager.
func (s *Service) Search() *search.Manager {
	return s.search
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(timeout))
	s.router.Use(SecurityHeaders(s.config.AllowedOrigins))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/", serveIndex)
	s.router.Get("/css/*", serveAsset)
	s.router.Get("/js/*", serveAsset)

	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)

	s.router.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(PerClientRateLimitMiddleware(s.limiter))
		}
		r.Get("/api/session", s.handleSession)
		r.Get("/api/observation", s.handleObservation)
		r.Get("/api/stats", s.handleStats)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Preload loads the dataset snapshot. A failure is remembered for the
// health endpoints; later searches retry the load.
func (s *Service) Preload(ctx context.Context) error {
	start := time.Now()
	ds, err := s.search.Snapshot(ctx)
	if err != nil {
		s.setInitError(err)
		return err
	}
	s.setInitError(nil)

	log.Info().
		Int("observations", len(ds.Observations)).
		Int("session_rows", len(ds.SessionRows)).
		Dur("elapsed", time.Since(start)).
		Msg("Service ready")
	return nil
}

func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
}

// GetInitError returns the last preload error, if any.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

// Start binds the listen address, serves HTTP in the background and
// preloads the dataset.
func (s *Service) Start() error {
	addr := s.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Preload(s.ctx); err != nil && s.ctx.Err() == nil {
			log.Error().Err(err).Msg("Dataset preload failed; searches will retry")
		}
	}()

	log.Info().
		Str("addr", ln.Addr().String()).
		Int("pid", os.Getpid()).
		Str("backend", s.config.Backend).
		Msg("HTTP server started")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Service) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the HTTP server and closes the provider.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	s.wg.Wait()

	if err := s.provider.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close provider: %w", err))
	}

	log.Info().Msg("Service shutdown complete")
	return errors.Join(errs...)
}
