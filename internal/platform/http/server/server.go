// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/staybook/frontdesk/internal/components/guard"
	"github.com/staybook/frontdesk/internal/platform/config"
	"github.com/staybook/frontdesk/internal/platform/logutil"
)

var ErrMissingSessions = errors.New("server: sessions are required")

// Service is a mountable group of routes under the base path.
type Service interface {
	// Prefix is the mount point relative to the base path, without slashes.
	Prefix() string
	Handler() http.Handler
	// Unprotected lists paths, relative to the prefix, that skip the guard.
	Unprotected() []string
	Close() error
}

// SessionEnder is implemented by services that hold per-session resources.
// SessionEnded runs whenever the guard denies a request.
type SessionEnder interface {
	SessionEnded()
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	basePath   string
	httpServer *http.Server
	logger     *slog.Logger
	sessions   guard.Sessions
	health     http.Handler
	services   []Service

	// mountedServices are closed in reverse order on shutdown.
	mountedServices []Service
}

// New creates a Server. health may be nil; nil services are skipped.
func New(cfg *config.Config, logger *slog.Logger, sessions guard.Sessions, health http.Handler, services ...Service) (*Server, error) {
	if sessions == nil {
		return nil, ErrMissingSessions
	}

	s := &Server{
		cfg:      cfg,
		basePath: guard.NormalizeBasePath(cfg.ExternalBasePath),
		logger:   logutil.NoopIfNil(logger),
		sessions: sessions,
		health:   health,
		services: services,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address. It blocks until the server is shut down.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting server",
		"addr", l.Addr().String(),
		"external_base_path", s.basePath,
	)
	return s.httpServer.Serve(l)
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	httpErr := s.httpServer.Shutdown(ctx)

	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		prefix := svc.Prefix()
		if prefix == "" {
			prefix = "(root)"
		}
		if err := svc.Close(); err != nil {
			// Best-effort; keep closing the rest.
			s.logger.Warn("service close error", "service", prefix, "error", err)
		} else {
			s.logger.Debug("service closed", "service", prefix)
		}
	}

	return httpErr
}
