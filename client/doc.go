// Package client fetches blobs from unreliable HTTP data sources.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithThrottle(20, 5),
//		client.WithNoFollowRedirects(),
//	)
//
// # Fetching a Blob
//
// An [Endpoint] names the data source. The size and digest are learned
// from a JSON manifest or from the resource itself:
//
//	ep := client.Endpoint{
//		BaseURL:      client.URL("http", "localhost:8080", ""),
//		ManifestPath: "/manifest",
//	}
//	blob, err := c.Fetch(ctx, ep, client.WithRetryLimit(8))
//
// Missing byte ranges are requested one at a time until the blob is
// complete, then the blob is checked against its digest. Errors can be
// matched with [ErrStalledSpan], [ErrBoundsViolation],
// [ErrDigestMismatch] and [ErrDownloadCancelled].
//
// # Downloading to Disk
//
//	blob, err = c.Download(ctx, ep, "/tmp/blob.bin", client.WithProgress())
//
// The file is written to a temp file and renamed into place only after
// verification.
//
// # Async Downloads
//
// Independent blobs can be downloaded concurrently with [WithBatch]:
//
//	r, err := c.DownloadAsync(ctx, epA, "/tmp/a.bin", client.WithBatch(4))
//	r.Add(ctx, epB, "/tmp/b.bin")
//	err = r.Wait()
//
// Each session still requests its own ranges strictly in sequence.
//
// For lower-level control see the
// [github.com/adamwoolhether/rangefetch/client/download] package.
package client
