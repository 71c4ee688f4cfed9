package mux

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ctxKey int

const valuesKey ctxKey = 1

// BaseValues are set on every request context by the App.
type BaseValues struct {
	TraceID    string
	Now        time.Time
	Tracer     trace.Tracer
	StatusCode int
}

// SetStatusCode records the response status for the logger middleware.
func SetStatusCode(ctx context.Context, statusCode int) {
	if v, ok := ctx.Value(valuesKey).(*BaseValues); ok {
		v.StatusCode = statusCode
	}
}

// GetValues returns the request's BaseValues. Outside a request it
// returns placeholder values with a nil trace id and a no-op tracer.
func GetValues(ctx context.Context) *BaseValues {
	v, ok := ctx.Value(valuesKey).(*BaseValues)
	if !ok {
		return &BaseValues{
			TraceID: uuid.Nil.String(),
			Tracer:  noop.NewTracerProvider().Tracer(""),
			Now:     time.Now(),
		}
	}

	return v
}

// GetTraceID returns the request's trace id, or the nil uuid.
func GetTraceID(ctx context.Context) string {
	return GetValues(ctx).TraceID
}

// AddSpan starts a child span with the request's tracer. Outside a
// request it returns ctx and the span already in it.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	v, ok := ctx.Value(valuesKey).(*BaseValues)
	if !ok || v.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := v.Tracer.Start(ctx, spanName)
	span.SetAttributes(keyValues...)

	return ctx, span
}

func setValues(ctx context.Context, v *BaseValues) context.Context {
	return context.WithValue(ctx, valuesKey, v)
}
