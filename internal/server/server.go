// Package server provides the HTTP API for Quaigle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/config"
	"github.com/quaigle/quaigle/internal/session"
	"github.com/quaigle/quaigle/internal/staging"
)

// Server is the HTTP server for the Quaigle API.
type Server struct {
	session *session.Session
	watcher *staging.Watcher
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(sess *session.Session, watcher *staging.Watcher, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		session: sess,
		watcher: watcher,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/upload", s.handleUpload)
	r.Post("/qa_text", s.handleQuestion)
	r.Get("/clear_storage", s.handleClearStorage)
	r.Get("/clear_history", s.handleClearHistory)
	r.Get("/quiz", s.handleQuiz)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
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
