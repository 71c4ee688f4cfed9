package download

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

var (
	// ErrBoundsViolation means the server delivered bytes outside the
	// announced blob length. It is never retried.
	ErrBoundsViolation = errors.New("bounds violation")
	// ErrStalledSpan means a span kept failing past the retry limit.
	ErrStalledSpan = errors.New("stalled span")
	// ErrTransport marks a failed exchange with the data source. It is
	// retried like an empty response.
	ErrTransport = errors.New("transport error")
	// ErrDigestMismatch means the assembled blob does not hash to the
	// expected digest.
	ErrDigestMismatch = errors.New("digest mismatch")
	// ErrInvalidDigest means the expected digest could not be parsed or
	// uses an unavailable algorithm.
	ErrInvalidDigest = errors.New("invalid digest")
	// ErrCancelled means the session was stopped by its context or by
	// the attempt budget.
	ErrCancelled = errors.New("download cancelled")
	// ErrGroupShutdown indicates the download queue was shut down.
	ErrGroupShutdown = errors.New("download queue shut down")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CheckSize fails with an *Error wrapping ErrBoundsViolation when an
// announced blob size is negative or above limit.
func CheckSize(size, limit int64) error {
	switch {
	case size < 0:
		return &Error{Err: ErrBoundsViolation, Detail: fmt.Sprintf("announced size[%d] is negative", size)}
	case size > limit:
		return &Error{Err: ErrBoundsViolation, Detail: fmt.Sprintf("announced size[%d] exceeds limit[%d]", size, limit)}
	}

	return nil
}

// BoundsError reports bytes that do not fit in [0, Total).
type BoundsError struct {
	Offset int64
	Length int64
	Total  int64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%v: %d bytes at offset %d exceed blob length %d", ErrBoundsViolation, e.Length, e.Offset, e.Total)
}

func (e *BoundsError) Unwrap() error {
	return ErrBoundsViolation
}

// SpanError reports a span that could not be filled within the retry
// limit. Cause holds the last failure observed for the span.
type SpanError struct {
	Span     Span
	Attempts int
	Cause    error
}

func (e *SpanError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v: %s after %d attempts", ErrStalledSpan, e.Span, e.Attempts)
	}

	return fmt.Sprintf("%v: %s after %d attempts: %v", ErrStalledSpan, e.Span, e.Attempts, e.Cause)
}

// Unwrap exposes both the sentinel and the last cause to errors.Is.
func (e *SpanError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrStalledSpan}
	}

	return []error{ErrStalledSpan, e.Cause}
}

// DigestError carries both digests of a failed verification.
type DigestError struct {
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *DigestError) Error() string {
	return fmt.Sprintf("%v: expected %s, got %s", ErrDigestMismatch, e.Expected, e.Actual)
}

func (e *DigestError) Unwrap() error {
	return ErrDigestMismatch
}

// Causes recorded on a *SpanError for attempts that were not transport
// failures.
var (
	// ErrBadStatus means the data source answered with a status other
	// than 200 or 206.
	ErrBadStatus = errors.New("unexpected status")
	// ErrEmptyReply means the data source answered with no body bytes.
	ErrEmptyReply = errors.New("empty reply")
	// ErrNoProgress means the reply only repeated bytes already held.
	ErrNoProgress = errors.New("no new bytes")
)
