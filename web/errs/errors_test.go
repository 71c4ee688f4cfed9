package errs_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/rangefetch/web/errs"
)

var errRange = errors.New("range start past blob")

func TestNew(t *testing.T) {
	err := errs.New(http.StatusRequestedRangeNotSatisfiable, errRange)

	if err.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("Code = %d, want %d", err.Code, http.StatusRequestedRangeNotSatisfiable)
	}
	if err.Message != errRange.Error() {
		t.Fatalf("Message = %q, want %q", err.Message, errRange.Error())
	}
	if err.InnerErr {
		t.Fatal("InnerErr should be false for New")
	}
	if !strings.Contains(err.FileName, "errors_test.go") {
		t.Fatalf("FileName = %q, want to contain errors_test.go", err.FileName)
	}
	if !strings.Contains(err.FuncName, "TestNew") {
		t.Fatalf("FuncName = %q, want to contain TestNew", err.FuncName)
	}
	if !errors.Is(err, errRange) {
		t.Fatal("expected New to wrap its cause")
	}
}

func TestNewInternal(t *testing.T) {
	err := errs.NewInternal(fmt.Errorf("reading blob: %w", errRange))

	if err.Code != http.StatusInternalServerError {
		t.Fatalf("Code = %d, want %d", err.Code, http.StatusInternalServerError)
	}
	if !err.IsInternal() {
		t.Fatal("InnerErr should be true for NewInternal")
	}
	if !strings.Contains(err.FuncName, "TestNewInternal") {
		t.Fatalf("FuncName = %q, want to contain TestNewInternal", err.FuncName)
	}
}

func TestNewRangeNotSatisfiable(t *testing.T) {
	err := errs.NewRangeNotSatisfiable(1000, errRange).WithHeader("Retry-After", "1")

	if err.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("Code = %d, want %d", err.Code, http.StatusRequestedRangeNotSatisfiable)
	}
	if !strings.Contains(err.FuncName, "TestNewRangeNotSatisfiable") {
		t.Fatalf("FuncName = %q, want the caller", err.FuncName)
	}

	want := http.Header{"Content-Range": {"bytes */1000"}, "Retry-After": {"1"}}
	if diff := cmp.Diff(want, err.Header); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestError_JSON(t *testing.T) {
	b, err := json.Marshal(errs.New(http.StatusServiceUnavailable, errors.New("flaky")))
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}

	want := map[string]any{"code": float64(http.StatusServiceUnavailable), "message": "flaky"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldErrors(t *testing.T) {
	var err error = errs.FieldErrors{
		{Field: "addr", Err: "This field is required"},
		{Field: "size", Err: "size must be 0 or greater"},
	}
	wrapped := fmt.Errorf("config: %w", err)

	if !errs.IsFieldErrors(wrapped) {
		t.Fatal("expected IsFieldErrors through wrapping")
	}

	want := map[string]string{
		"addr": "This field is required",
		"size": "size must be 0 or greater",
	}
	if diff := cmp.Diff(want, errs.GetFieldErrors(wrapped).Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	if got := err.Error(); got != "addr: This field is required; size: size must be 0 or greater" {
		t.Fatalf("Error() = %q", got)
	}

	if errs.GetFieldErrors(errRange) != nil {
		t.Fatal("expected nil for unrelated error")
	}
	if !errs.IsFieldErrors(errs.NewFieldsError("seed", errRange)) {
		t.Fatal("expected NewFieldsError to build FieldErrors")
	}
}
