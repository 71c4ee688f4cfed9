// Command glitchsrv serves a pseudo-random blob over HTTP with injected
// faults, for exercising rangefetch against an unreliable data source.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamwoolhether/rangefetch/internal/config"
	"github.com/adamwoolhether/rangefetch/internal/glitch"
	"github.com/adamwoolhether/rangefetch/web/server"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("glitchsrv", flag.ContinueOnError)

	cfgPath := fs.String("config", "", "YAML file with blob and fault settings")
	addr := fs.String("addr", "127.0.0.1:8080", "Listen address")
	level := fs.String("log-level", "info", "Log level (debug, info, warn, error)")

	cfg := glitch.DefaultConfig()
	fs.Int64Var(&cfg.Size, "size", cfg.Size, "Blob size in bytes")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for the blob and the fault draws")
	fs.Int64Var(&cfg.MaxChunk, "max-chunk", cfg.MaxChunk, "Largest body served per request, 0 for no limit")
	fs.Float64Var(&cfg.EmptyRate, "empty-rate", cfg.EmptyRate, "Probability of an empty 206 reply")
	fs.Float64Var(&cfg.ErrorRate, "error-rate", cfg.ErrorRate, "Probability of a 503 reply")
	fs.Float64Var(&cfg.CutRate, "cut-rate", cfg.CutRate, "Probability of a reply cut off mid-body")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: glitchsrv [options]

Serve a pseudo-random blob whose ranged replies are short, empty,
cut off or failed. The blob digest and URL are printed on startup.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	// Flags given explicitly win over the file.
	if *cfgPath != "" {
		fileCfg := glitch.DefaultConfig()
		if err := config.Decode(*cfgPath, &fileCfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = overlay(fileCfg, cfg, fs)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*level)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	src, err := glitch.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	fmt.Println(src.Digest())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(src.Handler(),
		server.WithHost(*addr),
		server.WithLogger(logger),
		server.WithReady(func(a net.Addr) {
			fmt.Printf("http://%s%s\n", a, cfg.Path)
		}),
		server.WithShutdownFunc(func(context.Context) error {
			st := src.Stats()
			logger.Info("replies served", "total", st.Replies, "empty", st.Empty, "errors", st.Errors, "cut", st.Cut)
			return nil
		}),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server", "error", err)
		return ExitGeneralError
	}

	return ExitSuccess
}

// overlay copies the fields set on the command line from flags onto base.
func overlay(base, flags glitch.Config, fs *flag.FlagSet) glitch.Config {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "size":
			base.Size = flags.Size
		case "seed":
			base.Seed = flags.Seed
		case "max-chunk":
			base.MaxChunk = flags.MaxChunk
		case "empty-rate":
			base.EmptyRate = flags.EmptyRate
		case "error-rate":
			base.ErrorRate = flags.ErrorRate
		case "cut-rate":
			base.CutRate = flags.CutRate
		}
	})

	return base
}
