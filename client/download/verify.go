package download

import (
	_ "crypto/sha256" // registers sha256 for go-digest
	_ "crypto/sha512" // registers sha384 and sha512 for go-digest
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ParseDigest parses an announced digest. Both the "algorithm:hex" form
// and a bare hex string are accepted; a bare value is taken as SHA-256.
func ParseDigest(s string) (digest.Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &Error{Err: ErrInvalidDigest, Detail: "empty digest"}
	}

	var d digest.Digest
	if strings.Contains(s, ":") {
		d = digest.Digest(s)
	} else {
		d = digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(s))
	}

	if err := d.Validate(); err != nil {
		return "", &Error{Err: ErrInvalidDigest, Detail: fmt.Sprintf("%q: %v", s, err)}
	}

	return d, nil
}

// Verify hashes blob with the algorithm of expected and compares the
// full encoded values. A mismatch returns a *DigestError.
func Verify(blob []byte, expected digest.Digest) error {
	if err := expected.Validate(); err != nil {
		return &Error{Err: ErrInvalidDigest, Detail: fmt.Sprintf("%q: %v", expected, err)}
	}

	actual := expected.Algorithm().FromBytes(blob)
	if actual != expected {
		return &DigestError{Expected: expected, Actual: actual}
	}

	return nil
}
