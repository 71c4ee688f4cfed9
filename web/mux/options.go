package mux

import (
	"log/slog"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type Option func(*options)

// options represents optional parameters.
type options struct {
	tracer trace.Tracer
	logger *slog.Logger
	mw     []Middleware
}

// WithMiddleware sorts the given middleware by function name so that
// Logger runs outermost, then Errors, then any custom middleware, and
// Panics innermost, regardless of the order passed.
func WithMiddleware(mw ...Middleware) Option {
	sorted := slices.Clone(mw)
	slices.SortStableFunc(sorted, func(a, b Middleware) int {
		return priority(a) - priority(b)
	})

	return func(opts *options) {
		opts.mw = sorted
	}
}

// WithTracer injects the given tracer into the App.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) {
		opts.tracer = tracer
	}
}

// WithLogger sets the logger used by the App for internal errors.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = log
	}
}

func priority(mw Middleware) int {
	switch name(mw) {
	case "Logger":
		return 1
	case "Errors":
		return 2
	case "Panics":
		return 100
	default:
		return 10
	}
}

// name returns the enclosing function name of mw, e.g. "Logger" for
// ".../web/middleware.Logger.func1".
func name(mw Middleware) string {
	fnName := runtime.FuncForPC(reflect.ValueOf(mw).Pointer()).Name()

	if i := strings.LastIndex(fnName, "/"); i >= 0 {
		fnName = fnName[i+1:]
	}

	parts := strings.Split(fnName, ".")
	if len(parts) >= 2 {
		return parts[1]
	}

	return fnName
}
