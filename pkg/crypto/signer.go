// Package crypto provides the GEF cryptographic primitives: Ed25519 signing
// and verification (RFC 8032, pure Ed25519 only), SHA-256 hashing via
// pkg/canonicalize, base64url signature encoding, and CSPRNG nonces.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeyProvider defines the interface for signing operations. This allows
// swapping the in-memory backend for an HSM, Vault, or Cloud KMS.
type KeyProvider interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider is an in-memory implementation backed by a raw
// Ed25519 private key.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewMemoryKeyProvider generates a fresh keypair from the OS CSPRNG.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// MemoryKeyProviderFromKey wraps an existing private key.
func MemoryKeyProviderFromKey(priv ed25519.PrivateKey) *MemoryKeyProvider {
	return &MemoryKeyProvider{
		pub:  priv.Public().(ed25519.PublicKey),
		priv: priv,
	}
}

// MemoryKeyProviderFromSeed derives the keypair from a 32-byte seed.
// Deterministic; useful for reproducible fixtures.
func MemoryKeyProviderFromSeed(seed []byte) (*MemoryKeyProvider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return MemoryKeyProviderFromKey(priv), nil
}

func (m *MemoryKeyProvider) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(m.priv, msg), nil
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

// PrivateKey exposes the raw key for persistence via SaveKeyFile. HSM-backed
// providers have no equivalent; only the in-memory provider offers this.
func (m *MemoryKeyProvider) PrivateKey() ed25519.PrivateKey {
	return m.priv
}

// Signer signs GEF canonical bytes through a KeyProvider.
type Signer struct {
	provider KeyProvider
}

func NewSigner(p KeyProvider) *Signer {
	return &Signer{provider: p}
}

// Sign returns the base64url (no padding) Ed25519 signature of msg.
func (s *Signer) Sign(msg []byte) (string, error) {
	sig, err := s.provider.Sign(msg)
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}
	return EncodeSignature(sig), nil
}

// PublicKeyHex returns the signer's public key as 64 lowercase hex chars.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.provider.PublicKey())
}

// PublicKeyBytes returns the raw 32-byte public key.
func (s *Signer) PublicKeyBytes() []byte {
	return s.provider.PublicKey()
}

// Verify checks a base64url signature over msg against a hex public key.
//
// It returns false on any failure, including malformed keys or signatures.
// It never panics and never returns an error: verification failures are data
// for the replay engine, not exceptions.
func Verify(pubKeyHex string, msg []byte, sigB64 string) bool {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := DecodeSignature(sigB64)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}

// VerifyBytes is the raw-byte form of Verify.
func VerifyBytes(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
