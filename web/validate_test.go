package web_test

import (
	"testing"

	"github.com/adamwoolhether/rangefetch/web"
	"github.com/adamwoolhether/rangefetch/web/errs"
)

type blobConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	Size int64  `json:"size" validate:"gte=0"`
	Seed uint64 `yaml:"-"`
}

func TestValidate_Valid(t *testing.T) {
	v := blobConfig{Addr: "localhost:8080", Size: 1000}
	if err := web.Validate(&v); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	v := blobConfig{Size: 10}
	err := web.Validate(&v)
	if err == nil {
		t.Fatal("expected error for missing required field")
	}

	fe := errs.GetFieldErrors(err)
	if fe == nil {
		t.Fatal("expected FieldErrors")
	}

	fields := fe.Fields()
	if fields["addr"] != "This field is required" {
		t.Fatalf("addr error = %q, want %q", fields["addr"], "This field is required")
	}
}

func TestValidate_InvalidField(t *testing.T) {
	v := blobConfig{Addr: "localhost:8080", Size: -1}
	err := web.Validate(&v)

	fields := errs.GetFieldErrors(err).Fields()
	if _, ok := fields["size"]; !ok {
		t.Fatalf("expected 'size' field error, got %v", fields)
	}
}
