package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeSignature renders a raw Ed25519 signature as base64url with no
// padding, the GEF wire form (64 bytes, ~86 characters).
func EncodeSignature(sig []byte) string {
	return base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeSignature decodes a base64url (no padding) signature and checks its
// length. Padded input is rejected: the wire format forbids '='.
func DecodeSignature(s string) ([]byte, error) {
	if strings.ContainsRune(s, '=') {
		return nil, fmt.Errorf("signature must be base64url without padding")
	}
	sig, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64url signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("signature must decode to %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	return sig, nil
}
