package client

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/adamwoolhether/rangefetch/client/download"
)

// Fetch downloads the blob at ep into memory and verifies it.
func (c *Client) Fetch(ctx context.Context, ep Endpoint, opts ...DownloadOption) (*download.Blob, error) {
	src, err := c.Source(ep)
	if err != nil {
		return nil, err
	}

	blob, err := download.Fetch(ctx, src, c.logger, c.sessionOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return blob, nil
}

// Download fetches the blob at ep and writes it to destPath. The file
// only appears once the blob has been verified. The returned Blob is nil
// when [WithSkipExisting] left an existing file in place.
func (c *Client) Download(ctx context.Context, ep Endpoint, destPath string, opts ...DownloadOption) (*download.Blob, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}

	src, err := c.Source(ep)
	if err != nil {
		return nil, err
	}

	blob, err := download.Handle(ctx, src, destPath, c.logger, c.sessionOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	return blob, nil
}

// sessionOptions applies the client's size cap ahead of opts.
func (c *Client) sessionOptions(opts []DownloadOption) []DownloadOption {
	return slices.Concat([]DownloadOption{download.WithMaxSize(c.maxSize)}, opts)
}

// DownloadAsync runs Download in the background. Use [WithBatch] to
// bound how many downloads of a batch run at once, and
// [download.Result.Add] to add more to it.
func (c *Client) DownloadAsync(ctx context.Context, ep Endpoint, destPath string, opts ...DownloadOption) (*DownloadResult, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("validating endpoint: %w", err)
	}

	work := func(ctx context.Context) error {
		_, err := c.Download(ctx, ep, destPath, opts...)
		return err
	}

	return download.Async(ctx, destPath, work, c.DownloadAsync, opts...)
}
