package server

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Option configures a Server.
type Option func(*options)

type options struct {
	ln              net.Listener
	host            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	shutdownFuncs   []shutdownFunc
	ready           func(net.Addr)
}

type shutdownFunc func(ctx context.Context) error

// WithHost sets the host address the server listens on. Default is ":8080".
func WithHost(host string) Option {
	return func(opts *options) {
		opts.host = host
	}
}

// WithListener serves on an already bound listener instead of host.
func WithListener(ln net.Listener) Option {
	return func(opts *options) {
		opts.ln = ln
	}
}

// WithReady registers fn to receive the bound address once the server
// listens. Useful with a ":0" host.
func WithReady(fn func(addr net.Addr)) Option {
	return func(opts *options) {
		opts.ready = fn
	}
}

// WithReadTimeout sets the maximum duration for reading the entire
// request. Default is 5s.
func WithReadTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.readTimeout = d
	}
}

// WithWriteTimeout bounds writing a response. Whole-blob replies of a
// large blob need more than the default of 60s.
func WithWriteTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.writeTimeout = d
	}
}

// WithIdleTimeout sets the keep-alive idle timeout. Default is 120s.
func WithIdleTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.idleTimeout = d
	}
}

// WithShutdownTimeout bounds how long [Server.Run] waits for in-flight
// requests once its context is done. Default is 20s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.shutdownTimeout = d
	}
}

// WithLogger sets the logger used for server lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		if log != nil {
			opts.logger = log
		}
	}
}

// WithShutdownFunc registers a function to call during graceful shutdown,
// before the HTTP server is stopped. Multiple shutdown functions are
// called in the order they were registered.
func WithShutdownFunc(fn func(ctx context.Context) error) Option {
	return func(opts *options) {
		opts.shutdownFuncs = append(opts.shutdownFuncs, fn)
	}
}
