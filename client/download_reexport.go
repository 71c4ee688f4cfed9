package client

import (
	"time"

	"github.com/adamwoolhether/rangefetch/client/download"
	"go.opentelemetry.io/otel/trace"
)

// --------------------------------------------------------------------
// Type aliases: re-export user-facing types from [download].
// --------------------------------------------------------------------

type (
	// Endpoint locates a blob on a data source.
	Endpoint = download.Endpoint

	// DownloadOption configures a download session.
	DownloadOption = download.Option

	// DownloadError wraps a sentinel error with additional detail.
	DownloadError = download.Error

	// DownloadResult represents an in-flight or completed async download.
	DownloadResult = download.Result

	// DownloadJobError names the destination of a failed batch download.
	DownloadJobError = download.JobError

	// Blob is a verified download held in memory.
	Blob = download.Blob
)

// --------------------------------------------------------------------
// Sentinel errors
// --------------------------------------------------------------------

var (
	// ErrBoundsViolation indicates the server sent bytes past the announced size.
	ErrBoundsViolation = download.ErrBoundsViolation

	// ErrStalledSpan indicates a span could not be filled within the retry limit.
	ErrStalledSpan = download.ErrStalledSpan

	// ErrDigestMismatch indicates the assembled blob failed verification.
	ErrDigestMismatch = download.ErrDigestMismatch

	// ErrDownloadCancelled indicates the download was cancelled via
	// context or ran out of attempts.
	ErrDownloadCancelled = download.ErrCancelled

	// ErrGroupShutdown indicates the download queue was shut down.
	ErrGroupShutdown = download.ErrGroupShutdown
)

// --------------------------------------------------------------------
// Download option forwarding functions
// --------------------------------------------------------------------

// WithRetryLimit sets how many consecutive failed attempts a single
// span may take before the session fails.
func WithRetryLimit(n int) DownloadOption { return download.WithRetryLimit(n) }

// WithMaxAttempts caps the attempts of a whole session.
func WithMaxAttempts(n int) DownloadOption { return download.WithMaxAttempts(n) }

// WithBackoff sets the retry delay of a span and its cap.
func WithBackoff(initial, maxDelay time.Duration) DownloadOption {
	return download.WithBackoff(initial, maxDelay)
}

// WithProgress enables periodic download progress logging.
func WithProgress() DownloadOption { return download.WithProgress() }

// WithTracer records sessions and attempts with tracer.
func WithTracer(tracer trace.Tracer) DownloadOption { return download.WithTracer(tracer) }

// WithSkipExisting causes a download to return nil immediately when
// the destination file already exists.
func WithSkipExisting() DownloadOption { return download.WithSkipExisting() }

// WithBatch activates batch mode by creating a download queue with the given
// concurrency limit. If maxConcurrent <= 0, concurrency is unlimited.
func WithBatch(maxConcurrent int) DownloadOption { return download.WithBatch(maxConcurrent) }
