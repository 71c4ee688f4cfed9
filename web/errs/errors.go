// Package errs defines the errors glitch handlers return to the
// error middleware.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Error is an error with the HTTP status it should be reported with.
type Error struct {
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	Header   http.Header `json:"-"`
	FuncName string      `json:"-"`
	FileName string      `json:"-"`
	InnerErr bool        `json:"-"`
	err      error
}

// New constructs an error reported to the client with code.
func New(code int, err error) *Error {
	return newError(code, err, false)
}

// NewInternal creates an error that is not intended
// to be seen by users.
func NewInternal(err error) *Error {
	return newError(http.StatusInternalServerError, err, true)
}

func newError(code int, err error, internal bool) *Error {
	pc, filename, line, _ := runtime.Caller(2)

	return &Error{
		Code:     code,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
		InnerErr: internal,
		err:      err,
	}
}

// NewRangeNotSatisfiable reports a range outside a blob of size bytes.
// The reply carries the Content-Range "bytes */size" that tells clients
// the real size.
func NewRangeNotSatisfiable(size int64, err error) *Error {
	e := newError(http.StatusRequestedRangeNotSatisfiable, err, false)
	return e.WithHeader("Content-Range", fmt.Sprintf("bytes */%d", size))
}

// WithHeader adds a header to the error response and returns e.
func (e *Error) WithHeader(key, value string) *Error {
	if e.Header == nil {
		e.Header = make(http.Header)
	}
	e.Header.Add(key, value)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// IsInternal returns true if the error is internal.
func (e *Error) IsInternal() bool {
	return e.InnerErr
}

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// NewFieldsError creates a fields error.
func NewFieldsError(field string, err error) error {
	return FieldErrors{
		{
			Field: field,
			Err:   err.Error(),
		},
	}
}

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// Fields returns the failed fields keyed by name.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}
	return m
}

// IsFieldErrors checks if an error of type FieldErrors exists.
func IsFieldErrors(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}

// GetFieldErrors returns the FieldErrors in err's chain, if any.
func GetFieldErrors(err error) FieldErrors {
	var fe FieldErrors
	if !errors.As(err, &fe) {
		return nil
	}
	return fe
}
