// Package glitch serves a blob the way an unreliable data source does:
// ranged reads come back short, empty, cut off mid-body or failed.
// Faults are drawn from a seeded generator so runs are reproducible.
package glitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
	"go.opentelemetry.io/otel/attribute"

	"github.com/adamwoolhether/rangefetch/client"
	"github.com/adamwoolhether/rangefetch/web"
	"github.com/adamwoolhether/rangefetch/web/errs"
	"github.com/adamwoolhether/rangefetch/web/middleware"
	"github.com/adamwoolhether/rangefetch/web/mux"
)

// Config shapes the blob and the faults injected into its replies.
// Rates are probabilities in [0, 1] drawn independently per request.
type Config struct {
	Size         int64   `yaml:"size" validate:"gte=0"`
	Seed         uint64  `yaml:"seed"`
	Path         string  `yaml:"path" validate:"required,startswith=/"`
	ManifestPath string  `yaml:"manifest_path" validate:"omitempty,startswith=/,nefield=Path"`
	MaxChunk     int64   `yaml:"max_chunk" validate:"gte=0"`
	EmptyRate    float64 `yaml:"empty_rate" validate:"gte=0,lte=1"`
	ErrorRate    float64 `yaml:"error_rate" validate:"gte=0,lte=1"`
	CutRate      float64 `yaml:"cut_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns a 1MiB blob served in chunks of at most 64KiB
// with a few faults of every kind.
func DefaultConfig() Config {
	return Config{
		Size:         1 << 20,
		Seed:         1,
		Path:         "/",
		ManifestPath: "/manifest",
		MaxChunk:     64 << 10,
		EmptyRate:    0.1,
		ErrorRate:    0.05,
		CutRate:      0.05,
	}
}

// Source is the simulated data source.
type Source struct {
	cfg    Config
	blob   []byte
	digest digest.Digest
	logger *slog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	stats Stats
}

// Stats counts the ranged replies served, by fault.
type Stats struct {
	Replies int64
	Empty   int64
	Errors  int64
	Cut     int64
}

// New returns a Source serving Size pseudo-random bytes derived from Seed.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if err := web.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	blob := make([]byte, cfg.Size)
	gen := rand.NewChaCha8(seedBytes(cfg.Seed))
	if _, err := gen.Read(blob); err != nil {
		return nil, fmt.Errorf("generating blob: %w", err)
	}

	return NewWithBlob(cfg, blob, logger)
}

// NewWithBlob serves blob instead of generated bytes. cfg.Size is
// ignored.
func NewWithBlob(cfg Config, blob []byte, logger *slog.Logger) (*Source, error) {
	cfg.Size = int64(len(blob))
	if err := web.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := Source{
		cfg:    cfg,
		blob:   blob,
		digest: digest.SHA256.FromBytes(blob),
		logger: logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	logger.Info("blob ready", "size", cfg.Size, "digest", s.digest.String(), "path", cfg.Path, "manifest", cfg.ManifestPath)

	return &s, nil
}

// Digest returns the SHA-256 digest of the served blob.
func (s *Source) Digest() digest.Digest { return s.digest }

// Size returns the length of the served blob.
func (s *Source) Size() int64 { return int64(len(s.blob)) }

// Blob returns the served bytes.
func (s *Source) Blob() []byte { return s.blob }

// Stats returns the fault counts so far.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Handler returns the source's routes wrapped in the logging, error and
// panic middleware.
func (s *Source) Handler(optFns ...mux.Option) http.Handler {
	opts := append([]mux.Option{
		mux.WithLogger(s.logger),
		mux.WithMiddleware(
			middleware.Logger(s.logger),
			middleware.Errors(s.logger),
			middleware.Panics(),
		),
	}, optFns...)

	app := mux.New(opts...)
	s.Routes(app)

	return app
}

// Routes registers the blob and, if configured, the manifest on app.
func (s *Source) Routes(app *mux.App) {
	app.Get(s.cfg.Path, s.serveBlob)
	if s.cfg.ManifestPath != "" {
		app.Get(s.cfg.ManifestPath, s.serveManifest)
	}
}

func (s *Source) serveManifest(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	size := s.Size()

	return web.RespondJSON(ctx, w, http.StatusOK, client.ManifestDocument{
		Size:   &size,
		Digest: s.digest.String(),
	})
}

func (s *Source) serveBlob(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set(client.DigestHeader, s.digest.String())
	w.Header().Set("Accept-Ranges", "bytes")

	raw := r.Header.Get("Range")
	if raw == "" {
		return s.reply(ctx, w, http.StatusOK, 0, s.blob)
	}

	start, end, err := parseRange(raw, s.Size())
	if err != nil {
		return err
	}

	f := s.draw(end - start)

	ctx, span := mux.AddSpan(ctx, "glitch.reply",
		attribute.String("fault", f.kind.String()),
		attribute.Int64("start", start),
		attribute.Int64("length", f.length),
	)
	defer span.End()

	switch f.kind {
	case faultError:
		return errs.New(http.StatusServiceUnavailable, errors.New("source unavailable"))

	case faultEmpty:
		return web.RespondBytes(ctx, w, http.StatusPartialContent, nil)
	}

	body := s.blob[start : start+f.length]
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+f.length-1, s.Size()))

	return s.reply(ctx, w, http.StatusPartialContent, f.cut, body)
}

// reply writes body. A non-zero cut declares the full body length but
// writes only cut bytes, so the client sees the connection drop.
func (s *Source) reply(ctx context.Context, w http.ResponseWriter, status int, cut int64, body []byte) error {
	if cut > 0 && cut < int64(len(body)) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		body = body[:cut]
	}

	return web.RespondBytes(ctx, w, status, body)
}

type faultKind int

const (
	faultNone faultKind = iota
	faultEmpty
	faultError
	faultCut
)

func (k faultKind) String() string {
	switch k {
	case faultEmpty:
		return "empty"
	case faultError:
		return "error"
	case faultCut:
		return "cut"
	default:
		return "none"
	}
}

type fault struct {
	kind   faultKind
	length int64
	cut    int64
}

// draw picks the fault and reply length for a request of want bytes.
func (s *Source) draw(want int64) fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := want
	if s.cfg.MaxChunk > 0 {
		limit = min(limit, s.cfg.MaxChunk)
	}

	f := fault{length: 1 + s.rng.Int64N(limit)}

	switch p := s.rng.Float64(); {
	case p < s.cfg.ErrorRate:
		f.kind = faultError
	case p < s.cfg.ErrorRate+s.cfg.EmptyRate:
		f.kind = faultEmpty
	case p < s.cfg.ErrorRate+s.cfg.EmptyRate+s.cfg.CutRate && f.length > 1:
		f.kind = faultCut
		f.cut = 1 + s.rng.Int64N(f.length-1)
	}

	s.stats.Replies++
	switch f.kind {
	case faultEmpty:
		s.stats.Empty++
	case faultError:
		s.stats.Errors++
	case faultCut:
		s.stats.Cut++
	}

	return f
}

// parseRange parses a single "bytes=first-last" or "bytes=first-" range
// and returns it as a half-open interval clipped to size.
func parseRange(raw string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(raw, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errs.NewFieldsError("range", fmt.Errorf("unsupported range %q", raw))
	}

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, errs.NewFieldsError("range", fmt.Errorf("malformed range %q", raw))
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errs.NewFieldsError("range", fmt.Errorf("malformed range start %q", first))
	}

	end := size
	if last != "" {
		l, err := strconv.ParseInt(last, 10, 64)
		if err != nil || l < start {
			return 0, 0, errs.NewFieldsError("range", fmt.Errorf("malformed range end %q", last))
		}
		end = min(l+1, size)
	}

	if start >= size {
		return 0, 0, errs.NewRangeNotSatisfiable(size, fmt.Errorf("range start %d past blob size %d", start, size))
	}

	return start, end, nil
}

func seedBytes(seed uint64) [32]byte {
	var b [32]byte
	for i := range 4 {
		v := seed + uint64(i)*0x9e3779b97f4a7c15
		for j := range 8 {
			b[i*8+j] = byte(v >> (8 * j))
		}
	}
	return b
}
