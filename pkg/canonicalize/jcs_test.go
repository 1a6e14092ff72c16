package canonicalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Normative vector from the GEF protocol: the ten-field signing surface must
// canonicalize to exactly these bytes on every conforming implementation.
const vectorCanonical = `{"agent_id":"agent-test-001","causal_hash":"0000000000000000000000000000000000000000000000000000000000000000","gef_version":"1.0","nonce":"a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4","payload":{"action":"initialize"},"record_id":"550e8400-e29b-41d4-a716-446655440000","record_type":"execution","sequence":0,"signer_public_key":"d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a","timestamp":"2026-02-26T00:00:00.000Z"}`

const vectorHash = "54da2c310b4c31650cc6a2a2208b5c6996e9089e71e10ccf1f06390d875584f8"

func vectorSurface() map[string]any {
	return map[string]any{
		"agent_id":          "agent-test-001",
		"causal_hash":       "0000000000000000000000000000000000000000000000000000000000000000",
		"gef_version":       "1.0",
		"nonce":             "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4",
		"payload":           map[string]any{"action": "initialize"},
		"record_id":         "550e8400-e29b-41d4-a716-446655440000",
		"record_type":       "execution",
		"sequence":          0,
		"signer_public_key": "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a",
		"timestamp":         "2026-02-26T00:00:00.000Z",
	}
}

func TestCanonicalize_NormativeVector(t *testing.T) {
	b, err := Canonicalize(vectorSurface())
	require.NoError(t, err)
	assert.Equal(t, vectorCanonical, string(b))
}

func TestCanonicalHash_NormativeVector(t *testing.T) {
	h, err := CanonicalHash(vectorSurface())
	require.NoError(t, err)
	assert.Equal(t, vectorHash, h)
}

func TestCanonicalize_KeyOrderIndependent(t *testing.T) {
	a, err := Canonicalize(map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": true, "y": false}})
	require.NoError(t, err)
	b, err := Canonicalize(map[string]any{"c": map[string]any{"y": false, "z": true}, "a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":false,"z":true}}`, string(a))
}

func TestCanonicalize_NoHTMLEscaping(t *testing.T) {
	b, err := Canonicalize(map[string]any{"k": "<a>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<a>&</a>"}`, string(b))
}

func TestCanonicalize_UnicodeKeyOrdering(t *testing.T) {
	// Ordering is by UTF-8 code point of the encoded key, not locale order.
	b, err := Canonicalize(map[string]any{"é": 1, "z": 2, "a": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":2,"é":1}`, string(b))
}

func TestCanonicalize_NaNFails(t *testing.T) {
	_, err := Canonicalize(map[string]any{"x": math.NaN()})
	require.Error(t, err)
	var serr *SerializationError
	assert.ErrorAs(t, err, &serr)

	_, err = Canonicalize(map[string]any{"x": math.Inf(1)})
	assert.Error(t, err)
}

func TestHashBytes(t *testing.T) {
	// SHA-256 of the empty string, FIPS 180-4.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashBytes(nil))
}
