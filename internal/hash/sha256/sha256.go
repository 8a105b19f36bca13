// Package sha256 fingerprints fetched page bodies.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags digests so consumers can tell the algorithm apart.
const Prefix = "sha256:"

// Hasher implements analyzer.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Digest returns the prefixed hex digest of body. Empty bodies have no digest.
func (h *Hasher) Digest(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return Prefix + hex.EncodeToString(sum[:])
}
