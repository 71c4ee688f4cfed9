package download

import (
	"context"
	"time"

	"github.com/opencontainers/go-digest"
)

// Fetcher performs a single ranged read against the data source. It
// may return fewer bytes than requested. A non-nil error means the
// exchange itself failed; a bad status is reported through Reply.
type Fetcher interface {
	Fetch(ctx context.Context, span Span) (Reply, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, span Span) (Reply, error)

// Fetch calls f(ctx, span).
func (f FetcherFunc) Fetch(ctx context.Context, span Span) (Reply, error) {
	return f(ctx, span)
}

// Reply is what the data source returned for one ranged read.
// Offset is where Body belongs in the blob when the server said so;
// nil means the body starts at the requested offset.
type Reply struct {
	Status int
	Offset *int64
	Body   []byte
}

// offset resolves where the reply's body belongs for a request of span.
func (r Reply) offset(span Span) int64 {
	if r.Offset == nil {
		return span.Start
	}

	return *r.Offset
}

// Manifest is announced by the data source once per session.
type Manifest struct {
	Size   int64
	Digest digest.Digest
}

// Attempt records one round of the reconciliation loop.
type Attempt struct {
	Number    int
	Requested Span
	Status    int
	Offset    int64
	Bytes     int
	Covered   int64
	Err       error
	Elapsed   time.Duration
}

// Blob is a verified, fully assembled download.
type Blob struct {
	Data     []byte
	Digest   digest.Digest
	Attempts int
}
