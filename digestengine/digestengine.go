// Package digestengine implements C1, the streaming digest computation and
// digest parsing/formatting used throughout the registry: blob upload
// verification, manifest self-digest computation, and reference parsing.
//
// It is a thin layer over github.com/opencontainers/go-digest, the
// dependency the teacher (github.com/distribution/distribution/v3) uses
// for the same purpose in registry/storage/blobwriter.go and the
// manifest/* packages.
package digestengine

import (
	"fmt"
	"hash"

	"github.com/opencontainers/go-digest"
)

// Canonical is the only digest algorithm this registry writes with (spec
// §3: "Algorithm for writes is always sha256").
const Canonical = digest.SHA256

// Hasher accumulates bytes for a single blob or chunked upload and
// produces a digest.Digest on Finalize. It is not safe for concurrent
// use; the upload session manager (C3) serializes writes per session.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a fresh streaming hasher using the canonical
// algorithm.
func NewHasher() *Hasher {
	return &Hasher{h: Canonical.Hash()}
}

// Update feeds p into the running hash.
func (hr *Hasher) Update(p []byte) {
	hr.h.Write(p)
}

// Finalize returns the digest of all bytes fed so far. It does not reset
// the hasher; callers that need a fresh run should allocate a new Hasher.
func (hr *Hasher) Finalize() digest.Digest {
	return digest.NewDigest(Canonical, hr.h)
}

// Parse validates s as a canonical "<algorithm>:<hex>" digest string,
// failing with an error when the string has no colon, names an
// unrecognized algorithm, contains non-hex characters, or has the wrong
// hex length for its algorithm (spec §4.1).
func Parse(s string) (digest.Digest, error) {
	dgst, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDigestInvalid, err)
	}
	return dgst, nil
}

// Format returns the canonical lowercase "<algorithm>:<hex>" string form.
func Format(dgst digest.Digest) string {
	return dgst.String()
}

// FromBytes computes the canonical digest of p directly, used for small
// in-memory payloads such as manifests (spec §3 "dig(M) = sha256 of its
// raw bytes").
func FromBytes(p []byte) digest.Digest {
	return Canonical.FromBytes(p)
}

// ErrDigestInvalid is returned by Parse on malformed input.
var ErrDigestInvalid = fmt.Errorf("digest invalid")
