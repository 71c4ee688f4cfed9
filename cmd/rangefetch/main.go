// Command rangefetch downloads a blob from an unreliable HTTP data source
// and prints its digest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamwoolhether/rangefetch/client"
	"github.com/adamwoolhether/rangefetch/internal/config"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitStalled         = 3
	ExitBoundsViolation = 4
	ExitDigestMismatch  = 5
	ExitCancelled       = 6
	ExitSourceNotAccess = 7
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the command and writes the digest and outcome to stdout.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("rangefetch", flag.ContinueOnError)

	cfgPath := fs.String("config", "", "YAML config file; flags override its values")

	var cfg config.Config
	fs.StringVar(&cfg.URL, "url", "", "URL of the blob (required)")
	fs.StringVar(&cfg.Manifest, "manifest", "", "Path of the JSON manifest on the same host")
	fs.StringVar(&cfg.Digest, "digest", "", "Expected digest, e.g. sha256:<hex>")
	fs.StringVar(&cfg.Output, "output", "", "Write the verified blob to this file")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Deadline for the whole download, 0 for none")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Progress, "progress", false, "Log download progress")
	fs.BoolVar(&cfg.Force, "force", false, "Download even if -output already exists")
	fs.IntVar(&cfg.Retry.Limit, "retry-limit", 0, "Failed attempts allowed per span without progress")
	fs.IntVar(&cfg.Retry.MaxAttempts, "max-attempts", 0, "Total attempts allowed per session")
	fs.IntVar(&cfg.Throttle.RPS, "rps", 0, "Maximum range requests per second, 0 for no limit")
	fs.IntVar(&cfg.Throttle.Burst, "burst", 0, "Burst size for -rps")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: rangefetch -url <url> [options]

Fetch a blob by requesting its missing byte ranges one at a time until
it is complete, then verify it against its digest. The digest is
printed on success.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	base := config.Default()
	if *cfgPath != "" {
		var err error
		if base, err = config.LoadFromFile(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
	}
	cfg = overlay(base, cfg, fs)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	ep, err := cfg.Endpoint()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	c, err := build(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if stats, ok := c.ThrottleStats(); ok && stats.Delayed > 0 {
			logger.Info("throttled", "requests", stats.Delayed, "waited", stats.Waited)
		}
	}()

	var blob *client.Blob
	if cfg.Output != "" {
		blob, err = c.Download(ctx, ep, cfg.Output, cfg.DownloadOptions()...)
	} else {
		blob, err = c.Fetch(ctx, ep, cfg.DownloadOptions()...)
	}

	if err != nil {
		logger.Error("download", "error", err, "elapsed", time.Since(start))
		fmt.Fprintln(stdout, "failed")
		return exitCode(err)
	}

	// A nil blob means the output file already existed.
	if blob != nil {
		fmt.Fprintln(stdout, blob.Digest)
	}
	logger.Info("download", "elapsed", time.Since(start))
	fmt.Fprintln(stdout, "ok")

	return ExitSuccess
}

func build(cfg config.Config, logger *slog.Logger) (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(cfg.Request.Timeout),
		client.WithUserAgent(cfg.Request.UserAgent),
		client.WithNoFollowRedirects(),
		client.WithLogger(logger),
	}
	if cfg.Throttle.RPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.Throttle.RPS, cfg.Throttle.Burst))
	}

	return client.Build(opts...)
}

// overlay copies the fields set on the command line from flags onto base.
func overlay(base, flags config.Config, fs *flag.FlagSet) config.Config {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			base.URL = flags.URL
		case "manifest":
			base.Manifest = flags.Manifest
		case "digest":
			base.Digest = flags.Digest
		case "output":
			base.Output = flags.Output
		case "timeout":
			base.Timeout = flags.Timeout
		case "log-level":
			base.LogLevel = flags.LogLevel
		case "progress":
			base.Progress = flags.Progress
		case "force":
			base.Force = flags.Force
		case "retry-limit":
			base.Retry.Limit = flags.Retry.Limit
		case "max-attempts":
			base.Retry.MaxAttempts = flags.Retry.MaxAttempts
		case "rps":
			base.Throttle.RPS = flags.Throttle.RPS
		case "burst":
			base.Throttle.Burst = flags.Throttle.Burst
		}
	})

	return base
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, client.ErrBoundsViolation):
		return ExitBoundsViolation
	case errors.Is(err, client.ErrDigestMismatch):
		return ExitDigestMismatch
	case errors.Is(err, client.ErrDownloadCancelled):
		return ExitCancelled
	case errors.Is(err, client.ErrStalledSpan):
		return ExitStalled
	case errors.Is(err, client.ErrUnexpectedStatusCode),
		errors.Is(err, client.ErrUnknownLength),
		errors.Is(err, client.ErrMissingDigest):
		return ExitSourceNotAccess
	default:
		return ExitGeneralError
	}
}
