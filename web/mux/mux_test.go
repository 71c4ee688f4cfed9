package mux_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/rangefetch/web"
	"github.com/adamwoolhether/rangefetch/web/errs"
	"github.com/adamwoolhether/rangefetch/web/middleware"
	"github.com/adamwoolhether/rangefetch/web/mux"
)

func TestApp_Get(t *testing.T) {
	app := mux.New()
	app.Get("/blob", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.RespondBytes(ctx, w, http.StatusOK, []byte("ok"))
	})

	srv := httptest.NewServer(app)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/blob")
	if err != nil {
		t.Fatalf("GET /blob: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("body = %q, want %q", body, "ok")
	}

	resp, err = http.Head(srv.URL + "/blob")
	if err != nil {
		t.Fatalf("HEAD /blob: %v", err)
	}
	resp.Body.Close()
	if resp.ContentLength != 2 {
		t.Fatalf("HEAD content length = %d, want 2", resp.ContentLength)
	}
}

func TestApp_WrongMethod(t *testing.T) {
	app := mux.New()
	app.Get("/blob", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusOK)
		return nil
	})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/blob", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestApp_MiddlewareOrder(t *testing.T) {
	var order []string

	tag := func(name string) mux.Middleware {
		return func(handler mux.Handler) mux.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return handler(ctx, w, r)
			}
		}
	}

	app := mux.New()
	app.Use(tag("app"))
	app.Get("/ordered", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
		return nil
	}, tag("route"))

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ordered", nil))

	if diff := cmp.Diff([]string{"app", "route", "handler"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestWithMiddleware_SortsByName(t *testing.T) {
	log, logOutput := newTestLogger(t)

	// Passed in reverse; Panics must still end up innermost so the
	// error middleware sees the recovered panic.
	app := mux.New(
		mux.WithLogger(log),
		mux.WithMiddleware(
			middleware.Panics(),
			middleware.Errors(log),
			middleware.Logger(log),
		),
	)
	app.Get("/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if logs := logOutput(); !strings.Contains(logs, "statusCode=500") {
		t.Fatalf("logger should run outside errors, got:\n%s", logs)
	}
}

// newFullStackApp creates an App wired with Logger → Errors → Panics and a
// captured log buffer for assertions.
func newFullStackApp(t *testing.T) (*mux.App, *httptest.Server, func() string) {
	t.Helper()
	log, logOutput := newTestLogger(t)
	app := mux.New(
		mux.WithLogger(log),
		mux.WithMiddleware(
			middleware.Logger(log),
			middleware.Errors(log),
			middleware.Panics(),
		),
	)
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)
	return app, srv, logOutput
}

func TestApp_FullStack(t *testing.T) {
	tests := map[string]struct {
		handler    mux.Handler
		wantStatus int
		wantBody   string
		wantLogs   []string
	}{
		"success": {
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return web.RespondJSON(ctx, w, http.StatusOK, map[string]int64{"size": 10})
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"size":10}`,
			wantLogs:   []string{"request started", "request completed", "statusCode=200", "range=bytes=0-9"},
		},
		"app error": {
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errs.New(http.StatusServiceUnavailable, errors.New("flaky"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"code":503,"message":"flaky"}`,
			wantLogs:   []string{"statusCode=503", "trace_id="},
		},
		"internal error": {
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return fmt.Errorf("secret disk error")
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"code":500,"message":"Internal Server Error"}`,
			wantLogs:   []string{"statusCode=500", "secret disk error"},
		},
		"field errors": {
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errs.NewFieldsError("range", errors.New("malformed"))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `[{"field":"range","error":"malformed"}]`,
			wantLogs:   []string{"statusCode=422"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			app, srv, logOutput := newFullStackApp(t)
			app.Get("/t", tt.handler)

			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/t", nil)
			if err != nil {
				t.Fatal(err)
			}
			req.Header.Set("Range", "bytes=0-9")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var got, want any
			body, _ := io.ReadAll(resp.Body)
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("decode body %q: %v", body, err)
			}
			if err := json.Unmarshal([]byte(tt.wantBody), &want); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}

			logs := logOutput()
			for _, s := range tt.wantLogs {
				if !strings.Contains(logs, s) {
					t.Errorf("log missing %q, got:\n%s", s, logs)
				}
			}
		})
	}
}

func newTestLogger(t *testing.T) (*slog.Logger, func() string) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() {
		if os.Getenv("VERBOSE") != "" {
			t.Log(buf.String())
		}
	})
	return log, buf.String
}
