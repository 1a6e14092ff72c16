package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	provider, err := NewMemoryKeyProvider()
	require.NoError(t, err)
	return NewSigner(provider)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := testSigner(t)
	msg := []byte(`{"action":"initialize"}`)

	sig, err := s.Sign(msg)
	require.NoError(t, err)
	assert.True(t, Verify(s.PublicKeyHex(), msg, sig))
}

func TestVerify_WrongKey(t *testing.T) {
	s1 := testSigner(t)
	s2 := testSigner(t)
	msg := []byte("payload")

	sig, err := s1.Sign(msg)
	require.NoError(t, err)
	assert.False(t, Verify(s2.PublicKeyHex(), msg, sig))
}

func TestVerify_MutatedMessage(t *testing.T) {
	s := testSigner(t)
	msg := []byte("payload")
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	mutated := append([]byte(nil), msg...)
	mutated[0] ^= 0x01
	assert.False(t, Verify(s.PublicKeyHex(), mutated, sig))
}

func TestVerify_MalformedInputsReturnFalse(t *testing.T) {
	s := testSigner(t)
	msg := []byte("payload")
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	cases := map[string]struct {
		pub string
		sig string
	}{
		"truncated key":     {s.PublicKeyHex()[:10], sig},
		"non-hex key":       {"zz" + s.PublicKeyHex()[2:], sig},
		"empty signature":   {s.PublicKeyHex(), ""},
		"padded signature":  {s.PublicKeyHex(), sig + "=="},
		"garbage signature": {s.PublicKeyHex(), "!!not-base64!!"},
		"short signature":   {s.PublicKeyHex(), "AAAA"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Verify(tc.pub, msg, tc.sig))
		})
	}
}

func TestDeterministicKeyFromSeed(t *testing.T) {
	seed, err := hex.DecodeString("deadbeefdeadbeefdeadbeefdeadbeefcafebabecafebabecafebabecafebabe")
	require.NoError(t, err)

	p1, err := MemoryKeyProviderFromSeed(seed)
	require.NoError(t, err)
	p2, err := MemoryKeyProviderFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, p1.PublicKey(), p2.PublicKey())

	_, err = MemoryKeyProviderFromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestRandomNonceHex(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n, err := RandomNonceHex()
		require.NoError(t, err)
		assert.Regexp(t, pattern, n)
		assert.False(t, seen[n], "nonce collision")
		seen[n] = true
	}
}

func TestSignatureEncoding(t *testing.T) {
	raw := make([]byte, ed25519.SignatureSize)
	for i := range raw {
		raw[i] = byte(i)
	}
	enc := EncodeSignature(raw)
	assert.NotContains(t, enc, "=")

	dec, err := DecodeSignature(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)

	_, err = DecodeSignature(enc + "==")
	assert.Error(t, err)
	_, err = DecodeSignature("AAAA")
	assert.Error(t, err)
}

func TestKeyFile_Plaintext(t *testing.T) {
	provider, err := NewMemoryKeyProvider()
	require.NoError(t, err)
	priv := ed25519.NewKeyFromSeed(provider.priv.Seed())

	path := filepath.Join(t.TempDir(), "agent.key")
	require.NoError(t, SaveKeyFile(path, priv, nil))

	loaded, err := LoadKeyFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, priv, loaded)
}

func TestKeyFile_Encrypted(t *testing.T) {
	provider, err := NewMemoryKeyProvider()
	require.NoError(t, err)
	priv := provider.priv

	path := filepath.Join(t.TempDir(), "agent.key")
	require.NoError(t, SaveKeyFile(path, priv, []byte("correct horse")))

	loaded, err := LoadKeyFile(path, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, priv, loaded)

	_, err = LoadKeyFile(path, []byte("wrong"))
	assert.Error(t, err)
	_, err = LoadKeyFile(path, nil)
	assert.Error(t, err)
}
