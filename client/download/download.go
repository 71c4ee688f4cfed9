package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Fetch runs one complete session against src: handshake, range
// reconciliation and verification.
func Fetch(ctx context.Context, src Source, logger *slog.Logger, optFns ...Option) (*Blob, error) {
	if src == nil {
		return nil, errors.New("source must not be nil")
	}

	m, err := src.Handshake(ctx)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	return Reconcile(ctx, src, m, logger, optFns...)
}

// Handle fetches the blob from src and persists it to destPath. Data
// goes to a temp file in the same directory which is renamed to
// destPath only after verification; on any error it is removed. The
// returned Blob is nil when WithSkipExisting found destPath in place.
func Handle(ctx context.Context, src Source, destPath string, logger *slog.Logger, optFns ...Option) (*Blob, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := newOptions(optFns...)
	if err != nil {
		return nil, err
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil, nil
		}
	}

	blob, err := Fetch(ctx, src, logger, optFns...)
	if err != nil {
		return nil, err
	}

	if err := persist(blob.Data, destPath, logger); err != nil {
		return nil, err
	}

	return blob, nil
}

// persist writes data next to destPath and renames it into place.
func persist(data []byte, destPath string, logger *slog.Logger) error {
	file, err := os.CreateTemp(filepath.Dir(destPath), ".rangefetch-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}
