package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/adamwoolhether/rangefetch/client/download"
	"github.com/adamwoolhether/rangefetch/web"
)

// DigestHeader carries the expected digest of a blob when the data
// source announces it on the resource itself.
const DigestHeader = "X-Content-Digest"

// Source serves ranged reads of one endpoint over HTTP. It implements
// [download.Source]. A Source is bound to a single session: Handshake
// must be called before Fetch.
type Source struct {
	client   *Client
	endpoint download.Endpoint
	total    int64
}

// Source returns a Source for ep.
func (c *Client) Source(ep download.Endpoint) (*Source, error) {
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("validating endpoint: %w", err)
	}

	return &Source{client: c, endpoint: ep, total: -1}, nil
}

// Handshake learns the blob size and expected digest. With a manifest
// path the JSON manifest is authoritative. Otherwise the size comes from
// the Content-Length of an unranged GET, and the digest from the
// endpoint or the DigestHeader of that response. A size above
// [WithMaxBlobSize] fails with [ErrBoundsViolation].
func (s *Source) Handshake(ctx context.Context) (download.Manifest, error) {
	var m download.Manifest
	var err error

	if u := s.endpoint.ManifestURL(); u != nil {
		m, err = s.manifest(ctx)
	} else {
		m, err = s.probe(ctx)
	}
	if err != nil {
		return download.Manifest{}, err
	}

	if err := download.CheckSize(m.Size, s.client.maxSize); err != nil {
		return download.Manifest{}, err
	}

	s.total = m.Size
	s.client.logger.Info("handshake", "url", s.endpoint.ResourceURL().String(), "size", m.Size, "digest", m.Digest.String())

	return m, nil
}

func (s *Source) manifest(ctx context.Context) (download.Manifest, error) {
	req, err := Request(ctx, s.endpoint.ManifestURL(), WithHeaders(map[string][]string{
		"Accept": {"application/json"},
	}))
	if err != nil {
		return download.Manifest{}, err
	}

	var doc ManifestDocument
	if err := s.client.Do(req, http.StatusOK, WithDestination(&doc)); err != nil {
		return download.Manifest{}, fmt.Errorf("fetching manifest: %w", err)
	}

	if err := web.Validate(doc); err != nil {
		return download.Manifest{}, fmt.Errorf("validating manifest: %w", err)
	}

	raw := doc.Digest
	if s.endpoint.Digest != "" {
		raw = s.endpoint.Digest
	}

	d, err := download.ParseDigest(raw)
	if err != nil {
		return download.Manifest{}, err
	}

	return download.Manifest{Size: *doc.Size, Digest: d}, nil
}

// probe issues an unranged GET and reads only its headers.
func (s *Source) probe(ctx context.Context) (download.Manifest, error) {
	req, err := Request(ctx, s.endpoint.ResourceURL())
	if err != nil {
		return download.Manifest{}, err
	}

	resp, err := s.client.c.Do(req)
	if err != nil {
		return download.Manifest{}, fmt.Errorf("exec http do: %w", err)
	}
	// The body is the whole blob; don't drain it.
	defer s.client.release(resp, false)

	if resp.StatusCode != http.StatusOK {
		return download.Manifest{}, statusError(resp)
	}

	if resp.ContentLength < 0 {
		return download.Manifest{}, ErrUnknownLength
	}

	raw := s.endpoint.Digest
	if raw == "" {
		raw = resp.Header.Get(DigestHeader)
	}
	if raw == "" {
		return download.Manifest{}, ErrMissingDigest
	}

	d, err := download.ParseDigest(raw)
	if err != nil {
		return download.Manifest{}, err
	}

	return download.Manifest{Size: resp.ContentLength, Digest: d}, nil
}

// Fetch issues one ranged GET for span. Statuses other than 200 and 206
// are returned in the Reply without a body. At most one byte past the
// announced size is read, enough for the session to see over-delivery.
// A body cut short by a read error keeps the bytes read before it.
func (s *Source) Fetch(ctx context.Context, span download.Span) (download.Reply, error) {
	if s.total < 0 {
		return download.Reply{}, errors.New("fetch before handshake")
	}

	req, err := Request(ctx, s.endpoint.ResourceURL(), WithSpan(span))
	if err != nil {
		return download.Reply{}, err
	}

	resp, err := s.client.c.Do(req)
	if err != nil {
		return download.Reply{}, fmt.Errorf("exec http do: %w", err)
	}
	defer s.client.release(resp, false)

	reply := download.Reply{Status: resp.StatusCode}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return reply, nil
	}

	offset := span.Start
	if resp.StatusCode == http.StatusPartialContent {
		if start, ok := contentRangeStart(resp.Header.Get("Content-Range")); ok {
			if start != span.Start {
				s.client.logger.Debug("content range moved reply", "span", span.String(), "start", start)
			}
			offset = start
			reply.Offset = &start
		}
	}

	limit := max(s.total-offset, 0) + 1

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	reply.Body = body
	if err != nil {
		if len(body) == 0 {
			return reply, fmt.Errorf("reading body: %w", err)
		}
		s.client.logger.Debug("body cut short", "span", span.String(), "bytes", len(body), "error", err)
	}

	return reply, nil
}

// contentRangeStart parses the first byte position of a
// "bytes first-last/complete" Content-Range value.
func contentRangeStart(v string) (int64, bool) {
	rest, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return 0, false
	}

	first, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || start < 0 {
		return 0, false
	}

	return start, true
}
