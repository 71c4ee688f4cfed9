package download

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultRetryLimit  = 5
	defaultMaxAttempts = 1000
	defaultBackoff     = 100 * time.Millisecond
	defaultMaxBackoff  = 2 * time.Second
)

// DefaultMaxSize is the largest blob a session accepts unless
// WithMaxSize says otherwise. Blobs are assembled in memory.
const DefaultMaxSize int64 = 4 << 30

// Option defines optional settings for a download session.
//
// WithRetryLimit bounds consecutive failed attempts for one span.
// WithMaxAttempts bounds the attempts of the whole session.
// WithBackoff sets the delay between retries of the same span.
// WithMaxSize caps the announced blob size.
// WithProgress enables periodic coverage logging.
// WithTracer records sessions and attempts as trace spans.
// WithAttemptFunc observes every attempt.
// WithSkipExisting returns early when the destination file exists.
// WithBatch runs async downloads through a bounded queue.
type Option func(*options) error

type options struct {
	retryLimit   int
	maxAttempts  int
	backoff      time.Duration
	maxBackoff   time.Duration
	maxSize      int64
	progress     bool
	tracer       trace.Tracer
	onAttempt    func(Attempt)
	skipExisting bool
	queue        *Queue
	batchLimit   *int
}

func newOptions(optFns ...Option) (options, error) {
	opts := options{
		retryLimit:  defaultRetryLimit,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
		maxSize:     DefaultMaxSize,
	}

	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	return opts, nil
}

func WithRetryLimit(n int) Option {
	return func(opts *options) error {
		if n <= 0 {
			return fmt.Errorf("retry limit[%d] must be greater than zero", n)
		}

		opts.retryLimit = n
		return nil
	}
}

func WithMaxAttempts(n int) Option {
	return func(opts *options) error {
		if n <= 0 {
			return fmt.Errorf("max attempts[%d] must be greater than zero", n)
		}

		opts.maxAttempts = n
		return nil
	}
}

// WithBackoff sets the first retry delay and its cap. The delay doubles
// per failed attempt with jitter. A zero initial delay disables waiting.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(opts *options) error {
		if initial < 0 || maxDelay < 0 {
			return errors.New("backoff must not be negative")
		}
		if maxDelay < initial {
			return fmt.Errorf("max backoff[%s] must not be below initial backoff[%s]", maxDelay, initial)
		}

		opts.backoff = initial
		opts.maxBackoff = maxDelay
		return nil
	}
}

func WithMaxSize(n int64) Option {
	return func(opts *options) error {
		if n < 0 {
			return fmt.Errorf("max size[%d] must not be negative", n)
		}

		opts.maxSize = n
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}

		opts.tracer = tracer
		return nil
	}
}

// WithAttemptFunc registers fn to be called synchronously after every
// attempt, including failed ones.
func WithAttemptFunc(fn func(Attempt)) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("attempt func must not be nil")
		}

		opts.onAttempt = fn
		return nil
	}
}

func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithBatch starts a new queue for async downloads, allowing at most
// maxConcurrent sessions at once. If maxConcurrent <= 0, concurrency is
// unlimited. Sessions themselves stay sequential.
func WithBatch(maxConcurrent int) Option {
	return func(opts *options) error {
		if opts.queue != nil {
			return errors.New("download already belongs to a batch")
		}

		opts.batchLimit = &maxConcurrent
		return nil
	}
}

// withBatch joins an existing queue. Used by Result.Add.
func withBatch(q *Queue) Option {
	return func(opts *options) error {
		if opts.batchLimit != nil {
			return errors.New("WithBatch cannot be used when adding to a batch")
		}

		opts.queue = q
		return nil
	}
}
