package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardclaw/gef/pkg/crypto"
	"github.com/guardclaw/gef/pkg/envelope"
	"github.com/guardclaw/gef/pkg/ledger"
	"github.com/guardclaw/gef/pkg/replay"
)

func buildLedgerFile(t *testing.T) (string, string) {
	t.Helper()
	provider, err := crypto.NewMemoryKeyProvider()
	require.NoError(t, err)
	signer := crypto.NewSigner(provider)

	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	h, err := ledger.Open(path, signer, "agent-test-001")
	require.NoError(t, err)
	for _, rt := range []string{
		envelope.RecordTypeIntent,
		envelope.RecordTypeExecution,
		envelope.RecordTypeExecution,
		envelope.RecordTypeResult,
	} {
		_, err := h.Append(rt, map[string]any{"rt": rt})
		require.NoError(t, err)
	}
	require.NoError(t, h.Close())
	return path, signer.PublicKeyHex()
}

func TestMirrorAndQuery(t *testing.T) {
	ctx := context.Background()
	path, pub := buildLedgerFile(t)

	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	summary, err := store.MirrorFile(ctx, "prod", path, replay.WithPolicyKey(pub))
	require.NoError(t, err)
	assert.True(t, summary.OverallValid)

	n, err := store.Count(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	execs, err := store.ByRecordType(ctx, "prod", envelope.RecordTypeExecution)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, int64(1), execs[0].Sequence)
	assert.Equal(t, "1.0", execs[0].GEFVersion)
	assert.Equal(t, map[string]any{"rt": "execution"}, execs[0].Payload)

	window, err := store.BySequence(ctx, "prod", 1, 3)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, int64(1), window[0].Sequence)
	assert.Equal(t, int64(2), window[1].Sequence)

	counts, err := store.CountByRecordType(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[envelope.RecordTypeExecution])
	assert.Equal(t, int64(1), counts[envelope.RecordTypeIntent])
}

func TestMirror_RefusesInvalidLedger(t *testing.T) {
	ctx := context.Background()
	path, pub := buildLedgerFile(t)

	// Break the chain by dropping an interior entry.
	data := readFile(t, path)
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	writeFile(t, path, strings.Join(append(lines[:1], lines[2:]...), "\n")+"\n")

	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	summary, err := store.MirrorFile(ctx, "prod", path, replay.WithPolicyKey(pub))
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.OverallValid)

	n, err := store.Count(ctx, "prod")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestInsert_Replaces(t *testing.T) {
	ctx := context.Background()
	path, _ := buildLedgerFile(t)
	envs, err := replay.LoadEnvelopes(path)
	require.NoError(t, err)

	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Insert(ctx, "prod", envs[0]))
	require.NoError(t, store.Insert(ctx, "prod", envs[0]))
	n, err := store.Count(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
