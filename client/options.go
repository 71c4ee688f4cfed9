package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/rangefetch/client/download"
	"github.com/adamwoolhether/rangefetch/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error

type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	maxSize           *int64
}

// WithClient makes the [Client] send its requests through hc. Build
// copies hc, so later option changes never leak into it.
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets the innermost [http.RoundTripper]. User-Agent and
// throttling are layered on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout bounds each single request, including reading its body.
// Whole sessions are bounded by the context passed to [Client.Fetch].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent names the client in the User-Agent header of every
// request.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.userAgent = header
		return nil
	}
}

// WithThrottle limits the rate of range requests with a token bucket of
// rps requests per second and the given burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP
// redirects. A redirected range request is then counted as a failed
// attempt.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithMaxBlobSize caps the blob size a data source may announce.
// Larger blobs fail the handshake with [ErrBoundsViolation]. The default
// is [download.DefaultMaxSize].
func WithMaxBlobSize(n int64) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("max blob size[%d] must not be negative", n)
		}
		o.maxSize = &n
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// identity is an http.RoundTripper that asks for unencoded bodies, so
// byte offsets and Content-Length refer to the blob itself, and sets
// the User-Agent when one is configured.
type identity struct {
	userAgent string
	base      http.RoundTripper
}

func (t identity) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("Accept-Encoding", "identity")
	if t.userAgent != "" {
		cpy.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(cpy)
}

// DoOption is a functional option for [Client.Do].
type DoOption func(options *doOpts) error

type doOpts struct {
	responseBody any
}

// WithDestination decodes the JSON response body into bodyTemplate.
// bodyTemplate must be a pointer.
func WithDestination[T any](bodyTemplate *T) DoOption {
	return func(opts *doOpts) error {
		if bodyTemplate == nil {
			return errors.New("destination must not be nil")
		}
		opts.responseBody = bodyTemplate

		return nil
	}
}

// RequestOption is a functional option for [Request].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	span    *download.Span
	headers http.Header
}

// WithSpan asks for the bytes of span only.
func WithSpan(span download.Span) RequestOption {
	return func(opts *requestOpts) error {
		if span.Start < 0 || span.Len() <= 0 {
			return fmt.Errorf("invalid span %s", span)
		}
		opts.span = &span

		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request. Repeated use
// merges the values.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		if opts.headers == nil {
			opts.headers = make(http.Header, len(headers))
		}
		for k, v := range headers {
			for _, element := range v {
				opts.headers.Add(k, element)
			}
		}

		return nil
	}
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}
