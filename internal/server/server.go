// Package server provides the HTTP interface: library pages, the JSON API
// and published images.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/cache"
	"github.com/puzzlepages/shelf/internal/config"
	"github.com/puzzlepages/shelf/internal/library"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/storage"
	"github.com/puzzlepages/shelf/pkg/utils"
)

// Server is the HTTP server.
type Server struct {
	libraries *library.Service
	cache     *cache.Cache
	storage   storage.Storage
	manifest  *models.LibraryManifest
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithCache exposes the cache state on /api/status.
func WithCache(c *cache.Cache) Option { return func(s *Server) { s.cache = c } }

// WithStorage exposes content index counts on /api/status.
func WithStorage(st storage.Storage) Option { return func(s *Server) { s.storage = st } }

// WithManifest resolves legacy "/library/{slug}" paths through the route
// manifest before falling back to the library service.
func WithManifest(m *models.LibraryManifest) Option { return func(s *Server) { s.manifest = m } }

// NewServer creates a server over the library service.
func NewServer(libraries *library.Service, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		libraries: libraries,
		config:    cfg,
		logger:    utils.OrNop(logger),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/library/*", s.handleLibraryPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/libraries", s.handleListLibraries)
		r.Get("/libraries/search", s.handleSearch)
		r.Get("/libraries/{identity}", s.handleGetLibrary)
		r.Get("/library-image/{slug}/*", s.handleLegacyImage)
		r.Get("/status", s.handleStatus)
	})

	prefix := strings.TrimSuffix(s.config.Public.ImagePrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.config.Public.Dir))))

	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs each request through zap at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops. A graceful Stop
// is not reported as an error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("mode", string(s.config.Mode)))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
