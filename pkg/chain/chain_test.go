package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardclaw/gef/pkg/canonicalize"
	"github.com/guardclaw/gef/pkg/envelope"
)

const (
	testPubKey = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	testNonce  = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"
)

func TestGenesisHash(t *testing.T) {
	h := GenesisHash()
	assert.Len(t, h, 64)
	assert.Equal(t, strings.Repeat("0", 64), h)
}

func TestComputeCausalHash_NormativeVector(t *testing.T) {
	env, err := envelope.BuildUnsignedWithID(
		"550e8400-e29b-41d4-a716-446655440000",
		envelope.RecordTypeExecution, "agent-test-001", testPubKey,
		0, testNonce, "2026-02-26T00:00:00.000Z", GenesisHash(),
		map[string]any{"action": "initialize"},
	)
	require.NoError(t, err)

	h, err := ComputeCausalHash(env)
	require.NoError(t, err)
	assert.Equal(t, "54da2c310b4c31650cc6a2a2208b5c6996e9089e71e10ccf1f06390d875584f8", h)
}

func TestCausalHash_IndependentOfSignature(t *testing.T) {
	env, err := envelope.BuildUnsigned(
		envelope.RecordTypeExecution, "agent-test-001", testPubKey,
		0, testNonce, "2026-02-26T00:00:00.000Z", GenesisHash(), nil,
	)
	require.NoError(t, err)

	unsigned, err := ComputeCausalHash(env)
	require.NoError(t, err)

	env.Signature = strings.Repeat("B", 86)
	signed, err := ComputeCausalHash(env)
	require.NoError(t, err)
	assert.Equal(t, unsigned, signed)

	env.Signature = strings.Repeat("C", 86)
	resigned, err := ComputeCausalHash(env)
	require.NoError(t, err)
	assert.Equal(t, unsigned, resigned)
}

func TestFromCanonicalBytes_MatchesCompute(t *testing.T) {
	env, err := envelope.BuildUnsigned(
		envelope.RecordTypeIntent, "agent-test-001", testPubKey,
		3, testNonce, "2026-02-26T00:00:00.000Z",
		"54da2c310b4c31650cc6a2a2208b5c6996e9089e71e10ccf1f06390d875584f8", nil,
	)
	require.NoError(t, err)

	b, err := canonicalize.Canonicalize(env.SigningSurface())
	require.NoError(t, err)

	direct, err := ComputeCausalHash(env)
	require.NoError(t, err)
	assert.Equal(t, direct, FromCanonicalBytes(b))
}
