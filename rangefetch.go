// Package rangefetch fetches fixed-size blobs from HTTP data sources
// that answer range requests with short, empty or failed replies.
//
// The work is done by [client.Client]; this package only offers a
// shorter way to build one.
package rangefetch

import (
	"github.com/adamwoolhether/rangefetch/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// If not specified, a fresh http.Client over http.DefaultTransport is used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
