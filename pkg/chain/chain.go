// Package chain computes the GEF causal hash chain. Every envelope commits
// to its predecessor via the SHA-256 of the predecessor's canonical signing
// surface; the genesis entry commits to a fixed sentinel.
package chain

import (
	"strings"

	"github.com/guardclaw/gef/pkg/canonicalize"
	"github.com/guardclaw/gef/pkg/envelope"
)

// GenesisHash returns the sentinel causal hash for the entry at position 0:
// 64 zeros.
func GenesisHash() string {
	return strings.Repeat("0", 64)
}

// ComputeCausalHash returns the causal hash a successor of prev must carry:
// hex(SHA-256(JCS(signing_surface(prev)))).
//
// The hash depends only on the signing surface; the presence or value of
// prev.Signature never affects it.
func ComputeCausalHash(prev *envelope.Envelope) (string, error) {
	return canonicalize.CanonicalHash(prev.ChainSurface())
}

// FromCanonicalBytes computes the causal hash from already-canonicalized
// signing-surface bytes. The ledger handle and the replay engine cache these
// bytes so successive entries need no re-canonicalization.
func FromCanonicalBytes(b []byte) string {
	return canonicalize.HashBytes(b)
}
