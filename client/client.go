package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/adamwoolhether/rangefetch/client/download"
	"github.com/adamwoolhether/rangefetch/client/throttle"
)

// maxDecodeSize caps the JSON documents, such as manifests, that Do
// decodes.
const maxDecodeSize = 1 << 20 // 1MB

// Client talks to blob data sources over HTTP. It owns its
// *http.Client, whose transport chain is built from the options passed
// to [Build].
type Client struct {
	c        *http.Client
	logger   *slog.Logger
	throttle *throttle.RoundTripper
	maxSize  int64
}

// Build returns a Client configured by optFns.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		c:       &http.Client{},
		logger:  slog.Default(),
		maxSize: download.DefaultMaxSize,
	}
	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}
	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.maxSize != nil {
		client.maxSize = *opts.maxSize
	}
	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}
	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if err := client.chain(opts); err != nil {
		return nil, err
	}

	return client, nil
}

// chain layers the identity and throttle round trippers over the base
// transport. Throttling is outermost.
func (c *Client) chain(opts options) error {
	var base http.RoundTripper
	switch {
	case opts.rt != nil:
		base = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		base = opts.client.Transport
	default:
		base = http.DefaultTransport
	}

	c.c.Transport = identity{userAgent: opts.userAgent, base: base}
	if opts.throttle == nil {
		return nil
	}

	rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, c.Logger, c.c.Transport)
	if err != nil {
		return fmt.Errorf("configuring throttle: %w", err)
	}
	c.throttle = rt
	c.c.Transport = rt

	return nil
}

// ThrottleStats reports the waits imposed by [WithThrottle]. ok is false
// when the client is not throttled.
func (c *Client) ThrottleStats() (stats throttle.Stats, ok bool) {
	if c.throttle == nil {
		return throttle.Stats{}, false
	}

	return c.throttle.Stats(), true
}

// Logger returns the logger the client was built with.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Do sends req and fails with an [*UnexpectedStatusError] unless the
// response carries expCode. A JSON body is decoded into the destination
// set by [WithDestination], if any.
func (c *Client) Do(req *http.Request, expCode int, opts ...DoOption) error {
	var settings doOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return err
		}
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}
	defer c.release(resp, true)

	if resp.StatusCode != expCode {
		return statusError(resp)
	}

	if settings.responseBody == nil {
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDecodeSize)).Decode(settings.responseBody); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	return nil
}

// release closes the response body, draining it first when asked so
// the connection can be reused.
func (c *Client) release(resp *http.Response, drain bool) {
	if drain {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDecodeSize)); err != nil {
			c.logger.Debug("failed to discard unused body", "error", err)
		}
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

// Request returns a bodiless GET for reqURL. Use [WithSpan] to make it a
// range request.
func Request(ctx context.Context, reqURL *url.URL, opts ...RequestOption) (*http.Request, error) {
	var settings requestOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	for k, v := range settings.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}
	if settings.span != nil {
		req.Header.Set("Range", settings.span.RangeHeader())
	}

	return req, nil
}

// URL creates a url.URL, for instance the BaseURL of an [Endpoint].
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}
