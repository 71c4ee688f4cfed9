package mux_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/adamwoolhether/rangefetch/web/mux"
)

func TestGetValues_NoValues(t *testing.T) {
	v := mux.GetValues(context.Background())

	if v.TraceID != uuid.Nil.String() {
		t.Fatalf("TraceID = %q, want %q", v.TraceID, uuid.Nil.String())
	}
	if v.Tracer == nil {
		t.Fatal("Tracer should be non-nil (noop)")
	}
	if mux.GetTraceID(context.Background()) != uuid.Nil.String() {
		t.Fatal("expected nil trace id outside a request")
	}

	// Must not panic without BaseValues.
	mux.SetStatusCode(context.Background(), http.StatusOK)
}

func TestAddSpan_NoValues(t *testing.T) {
	ctx := context.Background()
	newCtx, span := mux.AddSpan(ctx, "test-span")

	if newCtx != ctx {
		t.Fatal("AddSpan should return original context when no BaseValues")
	}
	if span == nil {
		t.Fatal("span should not be nil")
	}
}

func TestValues_InRequest(t *testing.T) {
	var traceID string
	var status int

	app := mux.New()
	app.Get("/blob", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		traceID = mux.GetTraceID(ctx)
		mux.SetStatusCode(ctx, http.StatusPartialContent)
		status = mux.GetValues(ctx).StatusCode

		_, span := mux.AddSpan(ctx, "child")
		span.End()

		w.WriteHeader(http.StatusPartialContent)
		return nil
	})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blob", nil))

	if traceID == "" || traceID == uuid.Nil.String() {
		t.Fatalf("expected a generated trace id, got %q", traceID)
	}
	if status != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", status, http.StatusPartialContent)
	}
}
