package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
)

// fakeSource is a Source over a scripted fetcher.
type fakeSource struct {
	*scripted
	manifest     Manifest
	handshakeErr error
	handshakes   int
}

func (s *fakeSource) Handshake(ctx context.Context) (Manifest, error) {
	s.handshakes++
	return s.manifest, s.handshakeErr
}

func newFakeSource(blob []byte, steps ...step) *fakeSource {
	return &fakeSource{
		scripted: &scripted{blob: blob, steps: steps},
		manifest: manifestFor(blob),
	}
}

func TestFetch(t *testing.T) {
	blob := fixture(2048)
	src := newFakeSource(blob, partial(512))

	got, err := Fetch(t.Context(), src, quietLogger(), noBackoff())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got.Data, blob) {
		t.Fatal("blob mismatch")
	}
	if src.handshakes != 1 {
		t.Fatalf("handshakes = %d, want 1", src.handshakes)
	}
}

func TestFetch_HandshakeError(t *testing.T) {
	src := newFakeSource(fixture(10), partial(10))
	src.handshakeErr = errors.New("no manifest")

	_, err := Fetch(t.Context(), src, quietLogger())
	if !errors.Is(err, src.handshakeErr) {
		t.Fatalf("expected handshake error, got %v", err)
	}
	if len(src.requested()) != 0 {
		t.Fatal("no range request should follow a failed handshake")
	}
}

func TestFetch_NilSource(t *testing.T) {
	if _, err := Fetch(t.Context(), nil, quietLogger()); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestHandle(t *testing.T) {
	blob := fixture(5000)
	src := newFakeSource(blob, partial(1200), partial(0), partial(5000))
	dest := filepath.Join(t.TempDir(), "blob.bin")

	got, err := Handle(t.Context(), src, dest, quietLogger(), noBackoff(), WithProgress())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got.Digest != digest.SHA256.FromBytes(blob) {
		t.Errorf("digest = %s", got.Digest)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, blob) {
		t.Fatal("file contents mismatch")
	}

	assertNoTempFiles(t, filepath.Dir(dest))
}

func TestHandle_FailureLeavesNoFile(t *testing.T) {
	blob := fixture(1000)
	src := newFakeSource(blob, partial(1000))
	src.manifest.Digest = manifestFor([]byte("other")).Digest
	dest := filepath.Join(t.TempDir(), "blob.bin")

	_, err := Handle(t.Context(), src, dest, quietLogger(), noBackoff())
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err = %v", err)
	}
	assertNoTempFiles(t, filepath.Dir(dest))
}

func TestHandle_SkipExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := newFakeSource(fixture(100), partial(100))

	skipped, err := Handle(t.Context(), src, dest, quietLogger(), WithSkipExisting())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if skipped != nil {
		t.Fatal("skipped download should return no blob")
	}
	if src.handshakes != 0 {
		t.Fatal("existing file should skip the session")
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "old" {
		t.Fatalf("existing file was overwritten: %q", got)
	}
}

func TestHandle_Overwrite(t *testing.T) {
	blob := fixture(100)
	dest := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := newFakeSource(blob, step{status: http.StatusOK, length: 100})

	if _, err := Handle(t.Context(), src, dest, quietLogger()); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, blob) {
		t.Fatal("file was not replaced")
	}
}

func TestHandle_EmptyDestPath(t *testing.T) {
	src := newFakeSource(fixture(10), partial(10))

	if _, err := Handle(t.Context(), src, "", quietLogger()); err == nil {
		t.Fatal("expected error for empty destPath")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".rangefetch-dl-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}
