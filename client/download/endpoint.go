package download

import (
	"context"
	"errors"
	"net/url"
)

// Source is a data source that announces a blob once per session and
// then serves ranged reads of it.
type Source interface {
	Fetcher
	Handshake(ctx context.Context) (Manifest, error)
}

// Endpoint locates a blob on an HTTP data source. It is passed
// explicitly to every session; nothing about the server is global.
type Endpoint struct {
	// BaseURL is the scheme and host of the data source.
	BaseURL *url.URL
	// Path of the blob resource. Defaults to "/".
	Path string
	// ManifestPath optionally names a JSON document announcing the size
	// and digest of the blob.
	ManifestPath string
	// Digest is the expected digest when it is announced out of band,
	// e.g. printed by the data source at startup. It overrides any
	// digest the data source reports itself.
	Digest string
}

// Validate reports whether the endpoint can be used.
func (e Endpoint) Validate() error {
	if e.BaseURL == nil {
		return errors.New("endpoint base URL must not be nil")
	}
	if e.BaseURL.Scheme == "" || e.BaseURL.Host == "" {
		return errors.New("endpoint base URL must include scheme and host")
	}
	return nil
}

// ResourceURL returns the URL of the blob.
func (e Endpoint) ResourceURL() *url.URL {
	return e.resolve(e.Path)
}

// ManifestURL returns the URL of the manifest, or nil if none is set.
func (e Endpoint) ManifestURL() *url.URL {
	if e.ManifestPath == "" {
		return nil
	}

	return e.resolve(e.ManifestPath)
}

func (e Endpoint) resolve(path string) *url.URL {
	if path == "" {
		path = "/"
	}

	u := *e.BaseURL
	u.Path = path
	u.RawPath = ""
	u.RawQuery = ""

	return &u
}
