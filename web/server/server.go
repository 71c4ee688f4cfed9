package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps an [http.Server] with context-driven graceful shutdown.
type Server struct {
	srv             *http.Server
	ln              net.Listener
	shutdownTimeout time.Duration
	logger          *slog.Logger
	shutdownFuncs   []shutdownFunc
	ready           func(net.Addr)
}

// New creates a Server for handler, listening on ":8080" with the
// default slog logger unless options say otherwise.
func New(handler http.Handler, opts ...Option) *Server {
	o := options{
		host:            ":8080",
		readTimeout:     5 * time.Second,
		writeTimeout:    60 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 20 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		srv: &http.Server{
			Addr:         o.host,
			Handler:      handler,
			ReadTimeout:  o.readTimeout,
			WriteTimeout: o.writeTimeout,
			IdleTimeout:  o.idleTimeout,
			ErrorLog:     slog.NewLogLogger(o.logger.Handler(), slog.LevelError),
		},
		ln:              o.ln,
		shutdownTimeout: o.shutdownTimeout,
		logger:          o.logger,
		shutdownFuncs:   o.shutdownFuncs,
		ready:           o.ready,
	}
}

// Run serves until ctx is done, then shuts down gracefully within the
// shutdown timeout. It returns nil on clean shutdown or an error if the
// server fails to start or shut down.
func (s *Server) Run(ctx context.Context) error {
	ln := s.ln
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", s.srv.Addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	if s.ready != nil {
		s.ready(ln.Addr())
	}

	serverErrs := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String())
		serverErrs <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serverErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown started", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}

		s.logger.Info("shutdown complete")

		return nil
	}
}

// Shutdown gracefully shuts down the server. It first runs any registered
// shutdown functions in order, then drains in-flight requests. Callers
// should set a deadline on ctx to bound how long shutdown may take.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, fn := range s.shutdownFuncs {
		if err := fn(ctx); err != nil {
			s.logger.Error("shutdown func", "error", err)
		}
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
		return fmt.Errorf("server didn't stop gracefully: %w", err)
	}

	return nil
}
