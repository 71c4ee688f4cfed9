// Package throttle rate limits range requests to a data source with a
// token bucket from [golang.org/x/time/rate].
//
// A reconciliation session that keeps getting short or empty replies
// asks again, and again. Wrapping the transport in a [RoundTripper]
// spreads those retries out:
//
//	rt, err := throttle.NewRoundTripper(10, 5, nil, http.DefaultTransport)
//	hc := &http.Client{Transport: rt}
//
// Requests block until a token is free or their context ends.
// [RoundTripper.Stats] reports how often and how long they waited.
package throttle
