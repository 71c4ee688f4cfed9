// Package download reconstructs a fixed-size blob from a data source
// that may cut its ranged replies short, then verifies the result
// against the digest the source announced.
//
// # Reconciliation
//
// [Reconcile] keeps a [Coverage] of the spans already written into an
// [Assembler] and repeatedly asks a [Fetcher] for the lowest missing
// span. Short replies are kept and only the remainder is requested
// again. Empty replies, bad statuses and transport errors are retried
// per span up to [WithRetryLimit]; the whole session is capped by
// [WithMaxAttempts] and by its context:
//
//	blob, err := download.Reconcile(ctx, fetcher, manifest, logger,
//		download.WithRetryLimit(5),
//		download.WithBackoff(100*time.Millisecond, 2*time.Second),
//	)
//
// # Sessions
//
// [Fetch] runs the handshake of a [Source] before reconciling, and
// [Handle] additionally persists the verified blob to disk through a
// temp file that is renamed into place.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/rangefetch/client] package, which provides
// an HTTP [Source] and re-exports the options as client.With* functions.
package download
