// Package server exposes the read-only account status endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexKrutoy/SnapsterBot/internal/runner"
)

// StatusSource is implemented by runner.Registry.
type StatusSource interface {
	Snapshot() []runner.AccountStatus
	Get(session string) (runner.AccountStatus, bool)
}

type Options struct {
	Addr string
	// Token, when set, is required as a bearer token on /accounts.
	Token string
}

type Server struct {
	opts       Options
	source     StatusSource
	log        zerolog.Logger
	httpServer *http.Server
	started    time.Time

	serveFn    func() error
	shutdownFn func(ctx context.Context) error
}

func New(opts Options, source StatusSource, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:28000"
	}

	s := &Server{
		opts:    opts,
		source:  source,
		log:     logger,
		started: time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveFn = s.httpServer.ListenAndServe
	s.shutdownFn = s.httpServer.Shutdown

	return s
}

func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Msg("status server starting")

	if err := s.serveFn(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.shutdownFn(ctx); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}
