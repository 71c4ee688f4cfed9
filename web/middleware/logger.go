package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/rangefetch/web/mux"
)

// Logger logs the start and end of every request with its trace id and
// requested range.
func Logger(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := mux.GetValues(ctx)

			reqLog := log.With(
				"trace_id", v.TraceID,
				"method", r.Method,
				"path", r.URL.Path,
				"range", r.Header.Get("Range"),
				"remoteaddr", r.RemoteAddr,
			)

			reqLog.Info("request started")

			err := handler(ctx, w, r)

			reqLog.Info("request completed", "statusCode", v.StatusCode, "since", time.Since(v.Now).String())

			return err
		}

		return h
	}

	return m
}
