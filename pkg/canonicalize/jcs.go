// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization for deterministic hashing and signing of GEF
// envelopes.
//
// This is the ONLY canonicalization permitted in GEF. All signing, hashing,
// and chain computation must go through this package.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// SerializationError reports a value that cannot be represented in canonical
// JSON (NaN, infinities, unsupported Go types).
type SerializationError struct {
	msg string
	err error
}

func (e *SerializationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("canonicalize: %s: %v", e.msg, e.err)
	}
	return "canonicalize: " + e.msg
}

func (e *SerializationError) Unwrap() error { return e.err }

// Canonicalize returns the RFC 8785 canonical JSON bytes of v.
//
// v is first marshaled to intermediate JSON (respecting struct tags), then
// transformed by the JCS library: keys sorted by UTF-8 code point, numbers in
// ES6 shortest form, the JCS string-escaping subset. Identical semantic
// inputs yield byte-identical output on every conforming implementation.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &SerializationError{msg: "value is not JSON-representable", err: err}
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, &SerializationError{msg: "jcs transform failed", err: err}
	}
	return canonical, nil
}

// CanonicalHash returns the lowercase hex SHA-256 digest of the canonical
// form of v. Used for causal_hash chaining and record binding.
func CanonicalHash(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 of raw bytes and returns it as 64 lowercase
// hex characters.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
