package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config holds the token bucket settings: requests per second and
// burst capacity.
type Config struct {
	RPS   int
	Burst int
}

// Stats counts the requests that had to wait for a token and the
// total time spent waiting.
type Stats struct {
	Delayed int64
	Waited  time.Duration
}

// RoundTripper is an http.RoundTripper that holds outbound requests
// until the token bucket allows them.
type RoundTripper struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger

	delayed atomic.Int64
	waited  atomic.Int64
}

// NewRoundTripper returns a RoundTripper allowing rps requests per
// second with the given burst. logFn resolves the logger at request
// time, so it may be set after construction. A nil logFn, or one
// returning nil, disables logging.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (*RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := RoundTripper{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cfg:     Config{RPS: rps, Burst: burst},
		next:    next,
		logFn:   logFn,
	}

	return &t, nil
}

// RoundTrip waits for a token, then hands r to the next transport.
func (t *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	exhausted := t.limiter.Tokens() < 1
	logger := t.logFn()
	if exhausted && logger != nil {
		logger.Info("throttle tokens exhausted", "rate", t.cfg.RPS, "burst", t.cfg.Burst, "path", r.URL.Path, "range", r.Header.Get("Range"))
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if exhausted {
		waited := time.Since(start)
		t.delayed.Add(1)
		t.waited.Add(int64(waited))

		if logger != nil {
			logger.Info("throttle wait complete", "waited", waited.String(), "range", r.Header.Get("Range"))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}

// Stats returns the delays recorded so far.
func (t *RoundTripper) Stats() Stats {
	return Stats{
		Delayed: t.delayed.Load(),
		Waited:  time.Duration(t.waited.Load()),
	}
}
