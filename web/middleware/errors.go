package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/adamwoolhether/rangefetch/web"
	"github.com/adamwoolhether/rangefetch/web/errs"
	"github.com/adamwoolhether/rangefetch/web/mux"
)

// Errors turns handler errors into JSON responses. Errors that are not
// an *errs.Error are logged and reported as a bare 500.
func Errors(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			if fieldErr, ok := errors.AsType[errs.FieldErrors](err); ok {
				return web.RespondJSON(ctx, w, http.StatusUnprocessableEntity, fieldErr)
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok {
				appErr = errs.NewInternal(err)
			}

			reqLog := log.With("trace_id", mux.GetTraceID(ctx))
			reqLog.Error(err.Error(), "source_err_file", path.Base(appErr.FileName), "source_err_func", path.Base(appErr.FuncName))

			if appErr.InnerErr {
				appErr.Message = http.StatusText(appErr.Code)
			}

			return web.RespondError(ctx, w, appErr)
		}

		return h
	}

	return m
}
