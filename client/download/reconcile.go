package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is a step of the reconciliation loop.
type State int

const (
	StateRequesting State = iota
	StateAwaitingResponse
	StateReconciling
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateReconciling:
		return "reconciling"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reconcile fills a blob of m.Size bytes by repeatedly asking f for the
// lowest missing span, then verifies it against m.Digest. Only one
// request is in flight at a time. The returned error is one of
// *BoundsError, *SpanError, *DigestError or an error wrapping
// ErrCancelled. A size above WithMaxSize fails before any request with
// an *Error wrapping ErrBoundsViolation.
func Reconcile(ctx context.Context, f Fetcher, m Manifest, logger *slog.Logger, optFns ...Option) (*Blob, error) {
	if f == nil {
		return nil, errors.New("fetcher must not be nil")
	}
	if err := m.Digest.Validate(); err != nil {
		return nil, &Error{Err: ErrInvalidDigest, Detail: fmt.Sprintf("%q: %v", m.Digest, err)}
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := newOptions(optFns...)
	if err != nil {
		return nil, err
	}

	if err := CheckSize(m.Size, opts.maxSize); err != nil {
		return nil, err
	}

	s := newSession(f, m, logger, opts)

	ctx, span := opts.tracer.Start(ctx, "download.reconcile", trace.WithAttributes(
		attribute.String("session", s.id),
		attribute.Int64("size", m.Size),
		attribute.String("digest", m.Digest.String()),
	))
	defer span.End()

	blob, err := s.run(ctx)
	span.SetAttributes(attribute.Int("attempts", s.attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return blob, nil
}

// session is one download of one blob. It is not safe for concurrent
// use; the loop is its only caller.
type session struct {
	id       string
	fetcher  Fetcher
	manifest Manifest
	cov      *Coverage
	asm      *Assembler
	opts     options
	logger   *slog.Logger
	progress *progressLogger

	state    State
	span     Span
	reply    Reply
	fetchErr error
	elapsed  time.Duration
	failures int
	attempts int
	err      error
}

func newSession(f Fetcher, m Manifest, logger *slog.Logger, opts options) *session {
	id := uuid.New().String()
	logger = logger.With("session", id)

	s := session{
		id:       id,
		fetcher:  f,
		manifest: m,
		cov:      NewCoverage(m.Size),
		asm:      NewAssembler(m.Size),
		opts:     opts,
		logger:   logger,
		state:    StateRequesting,
	}

	if opts.progress {
		s.progress = newProgressLogger(logger, m.Size)
	}

	return &s
}

func (s *session) run(ctx context.Context) (*Blob, error) {
	s.logger.Debug("session started", "size", s.manifest.Size, "digest", s.manifest.Digest.String())

	for {
		switch s.state {
		case StateRequesting:
			s.request()

		case StateAwaitingResponse:
			s.await(ctx)

		case StateReconciling:
			s.reconcile(ctx)

		case StateComplete:
			return s.complete()

		case StateFailed:
			s.logger.Error("session failed", "error", s.err, "covered", s.cov.Covered(), "total", s.cov.Total(), "attempts", s.attempts)
			return nil, s.err
		}
	}
}

// request picks the next span to fill.
func (s *session) request() {
	span, ok := s.cov.NextMissing()
	if !ok {
		s.state = StateComplete
		return
	}

	s.span = span
	s.state = StateAwaitingResponse
}

// await issues one ranged read for the current span.
func (s *session) await(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		s.fail(cancelled(err))
		return
	}

	if s.attempts >= s.opts.maxAttempts {
		s.fail(&Error{Err: ErrCancelled, Detail: fmt.Sprintf("attempt budget of %d exhausted", s.opts.maxAttempts)})
		return
	}
	s.attempts++

	ctx, span := s.opts.tracer.Start(ctx, "download.fetch", trace.WithAttributes(
		attribute.Int("attempt", s.attempts),
		attribute.Int64("span.start", s.span.Start),
		attribute.Int64("span.end", s.span.End),
	))

	start := time.Now()
	s.reply, s.fetchErr = s.fetcher.Fetch(ctx, s.span)
	s.elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("status", s.reply.Status),
		attribute.Int("bytes", len(s.reply.Body)),
	)
	if s.fetchErr != nil {
		span.RecordError(s.fetchErr)
		span.SetStatus(codes.Error, s.fetchErr.Error())
	}
	span.End()

	s.state = StateReconciling
}

// reconcile applies the last reply and decides where the loop goes next.
func (s *session) reconcile(ctx context.Context) {
	// Replies that arrive after cancellation are dropped unapplied.
	if err := ctx.Err(); err != nil {
		s.fail(cancelled(err))
		return
	}

	gained, err := s.apply()
	s.observe(err)

	switch {
	case errors.Is(err, ErrBoundsViolation):
		s.fail(err)

	case err != nil:
		s.retry(ctx, err)

	case gained == 0:
		s.retry(ctx, ErrNoProgress)

	default:
		s.failures = 0
		if s.progress != nil {
			s.progress.update(len(s.reply.Body), s.cov.Covered())
		}
		s.state = StateRequesting
	}
}

// apply writes the reply into the blob and returns the newly covered
// byte count.
func (s *session) apply() (int64, error) {
	if s.fetchErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, s.fetchErr)
	}

	if s.reply.Status != http.StatusOK && s.reply.Status != http.StatusPartialContent {
		return 0, &Error{Err: ErrBadStatus, Detail: fmt.Sprintf("%d", s.reply.Status)}
	}

	if len(s.reply.Body) == 0 {
		return 0, ErrEmptyReply
	}

	before := s.cov.Covered()

	offset := s.reply.offset(s.span)
	if offset != s.span.Start {
		s.logger.Warn("reply placed away from requested start", "span", s.span.String(), "offset", offset, "bytes", len(s.reply.Body))
	}
	if err := s.asm.Write(offset, s.reply.Body); err != nil {
		return 0, err
	}

	got := Span{Start: offset, End: offset + int64(len(s.reply.Body))}
	if err := s.cov.Record(got); err != nil {
		return 0, err
	}

	return s.cov.Covered() - before, nil
}

// retry counts a failed attempt for the current span and either waits
// to try it again or gives up on the session.
func (s *session) retry(ctx context.Context, cause error) {
	s.failures++

	if s.failures >= s.opts.retryLimit {
		s.fail(&SpanError{Span: s.span, Attempts: s.failures, Cause: cause})
		return
	}

	s.logger.Warn("retrying span", "span", s.span.String(), "failures", s.failures, "limit", s.opts.retryLimit, "cause", cause)

	if err := s.wait(ctx); err != nil {
		s.fail(cancelled(err))
		return
	}

	s.state = StateAwaitingResponse
}

// wait sleeps for an exponentially increasing duration with jitter.
func (s *session) wait(ctx context.Context) error {
	if s.opts.backoff <= 0 {
		return nil
	}

	backoff := s.opts.maxBackoff
	if shift := s.failures - 1; shift < 32 {
		backoff = min(s.opts.backoff*time.Duration(1<<uint(shift)), s.opts.maxBackoff)
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *session) complete() (*Blob, error) {
	if err := Verify(s.asm.Bytes(), s.manifest.Digest); err != nil {
		s.logger.Error("verification failed", "error", err)
		return nil, err
	}

	s.logger.Info("download verified", "size", s.manifest.Size, "digest", s.manifest.Digest.String(), "attempts", s.attempts)

	return &Blob{
		Data:     s.asm.Bytes(),
		Digest:   s.manifest.Digest,
		Attempts: s.attempts,
	}, nil
}

func (s *session) fail(err error) {
	s.err = err
	s.state = StateFailed
}

// observe logs the attempt and hands it to the attempt func.
func (s *session) observe(err error) {
	a := Attempt{
		Number:    s.attempts,
		Requested: s.span,
		Status:    s.reply.Status,
		Offset:    s.reply.offset(s.span),
		Bytes:     len(s.reply.Body),
		Covered:   s.cov.Covered(),
		Err:       err,
		Elapsed:   s.elapsed,
	}

	s.logger.Debug("attempt", "number", a.Number, "span", a.Requested.String(), "status", a.Status, "offset", a.Offset, "bytes", a.Bytes, "covered", a.Covered, "error", a.Err)

	if s.opts.onAttempt != nil {
		s.opts.onAttempt(a)
	}
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
