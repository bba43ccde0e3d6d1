// Package server provides the HTTP API for Finsight.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/rag"
	"github.com/finsight/finsight/internal/watcher"
)

// Server is the HTTP server for the Finsight API.
type Server struct {
	service  *rag.Service
	ingester *rag.FileIngester
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	// watch is optional; when set, watch directory endpoints are enabled.
	watch      *watcher.Watcher
	configPath string
	configMu   sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWatch enables the watch directory endpoints. configPath, when
// non-empty, is where directory add/remove changes are persisted.
func WithWatch(w *watcher.Watcher, configPath string) ServerOption {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	service *rag.Service,
	ingester *rag.FileIngester,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		service:  service,
		ingester: ingester,
		config:   cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/upload", s.handleUpload)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/clear", s.handleClear)
	r.Delete("/api/v1/documents", s.handleDeleteSource)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
