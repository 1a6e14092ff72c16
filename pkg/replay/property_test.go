//go:build property

package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/guardclaw/gef/pkg/canonicalize"
	"github.com/guardclaw/gef/pkg/chain"
	"github.com/guardclaw/gef/pkg/crypto"
	"github.com/guardclaw/gef/pkg/envelope"
	"github.com/guardclaw/gef/pkg/ledger"
)

func propParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	return parameters
}

func genRecordType() gopter.Gen {
	return gen.OneConstOf(
		envelope.RecordTypeIntent,
		envelope.RecordTypeExecution,
		envelope.RecordTypeResult,
		envelope.RecordTypeFailure,
	)
}

// buildPropLedger appends the given record types with generated payloads and
// returns the path, public key hex, and envelopes.
func buildPropLedger(t *testing.T, dir string, types []string, payloadKeys []string) (string, string, []*envelope.Envelope, error) {
	provider, err := crypto.NewMemoryKeyProvider()
	if err != nil {
		return "", "", nil, err
	}
	signer := crypto.NewSigner(provider)

	path := filepath.Join(dir, "prop.jsonl")
	_ = os.Remove(path)
	h, err := ledger.Open(path, signer, "agent-prop")
	if err != nil {
		return "", "", nil, err
	}
	defer h.Close()

	var envs []*envelope.Envelope
	for i, rt := range types {
		payload := map[string]any{"i": i}
		for _, k := range payloadKeys {
			if k != "" {
				payload[k] = k + "-value"
			}
		}
		e, err := h.Append(rt, payload)
		if err != nil {
			return "", "", nil, err
		}
		envs = append(envs, e)
	}
	return path, signer.PublicKeyHex(), envs, nil
}

// P2 + P3: every produced ledger chains correctly, sequences equal
// positions, and the genesis entry carries the sentinel.
func TestProperty_ChainAndSequence(t *testing.T) {
	properties := gopter.NewProperties(propParams())
	dir := t.TempDir()

	properties.Property("produced ledgers verify with zero violations", prop.ForAll(
		func(types []string) bool {
			if len(types) == 0 {
				return true
			}
			path, pub, envs, err := buildPropLedger(t, dir, types, nil)
			if err != nil {
				return false
			}
			s, err := VerifyFile(path, WithPolicyKey(pub))
			if err != nil || !s.OverallValid || s.TotalEntries != len(types) {
				return false
			}
			if envs[0].CausalHash != chain.GenesisHash() {
				return false
			}
			for i, e := range envs {
				if e.Sequence != int64(i) {
					return false
				}
				if i > 0 {
					want, err := chain.ComputeCausalHash(envs[i-1])
					if err != nil || e.CausalHash != want {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(genRecordType()),
	))

	properties.TestingRun(t)
}

// P4: nonces are pairwise distinct and well-formed.
func TestProperty_NonceUniqueness(t *testing.T) {
	properties := gopter.NewProperties(propParams())
	dir := t.TempDir()

	properties.Property("all nonces distinct and 32 lowercase hex", prop.ForAll(
		func(n uint8) bool {
			count := int(n%20) + 1
			types := make([]string, count)
			for i := range types {
				types[i] = envelope.RecordTypeExecution
			}
			_, _, envs, err := buildPropLedger(t, dir, types, nil)
			if err != nil {
				return false
			}
			seen := make(map[string]bool)
			for _, e := range envs {
				if len(e.Nonce) != 32 || seen[e.Nonce] {
					return false
				}
				if strings.ToLower(e.Nonce) != e.Nonce {
					return false
				}
				seen[e.Nonce] = true
			}
			return true
		},
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// P5: reading an envelope back from disk and re-canonicalizing yields the
// exact bytes produced at sign time.
func TestProperty_RoundTripCanonicalBytes(t *testing.T) {
	properties := gopter.NewProperties(propParams())
	dir := t.TempDir()

	properties.Property("disk round-trip preserves canonical bytes", prop.ForAll(
		func(keys []string) bool {
			path, _, envs, err := buildPropLedger(t, dir, []string{envelope.RecordTypeExecution}, keys)
			if err != nil {
				return false
			}
			want, err := canonicalize.Canonicalize(envs[0].SigningSurface())
			if err != nil {
				return false
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			line := strings.TrimSuffix(string(data), "\n")
			parsed, issues := envelope.ParseLine([]byte(line))
			if parsed == nil || len(issues) != 0 {
				return false
			}
			got, err := canonicalize.Canonicalize(parsed.SigningSurface())
			if err != nil {
				return false
			}
			return string(want) == string(got)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// P6: the causal hash never depends on the predecessor's signature.
func TestProperty_ChainIndependentOfSignature(t *testing.T) {
	properties := gopter.NewProperties(propParams())

	provider, err := crypto.NewMemoryKeyProvider()
	if err != nil {
		t.Fatal(err)
	}
	signer := crypto.NewSigner(provider)

	properties.Property("re-signing does not move the chain", prop.ForAll(
		func(agentSuffix string) bool {
			nonce, err := crypto.RandomNonceHex()
			if err != nil {
				return false
			}
			env, err := envelope.BuildUnsigned(
				envelope.RecordTypeExecution, "agent-"+agentSuffix, signer.PublicKeyHex(),
				0, nonce, "2026-02-26T00:00:00.000Z", chain.GenesisHash(), nil,
			)
			if err != nil {
				return false
			}
			before, err := chain.ComputeCausalHash(env)
			if err != nil {
				return false
			}
			b, err := canonicalize.Canonicalize(env.SigningSurface())
			if err != nil {
				return false
			}
			env.Signature, err = signer.Sign(b)
			if err != nil {
				return false
			}
			after, err := chain.ComputeCausalHash(env)
			return err == nil && before == after
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// P8 (sampled): mutating any signing-surface field invalidates the entry's
// signature and breaks the successor's chain.
func TestProperty_TamperCompleteness(t *testing.T) {
	properties := gopter.NewProperties(propParams())
	dir := t.TempDir()

	mutate := func(e *envelope.Envelope, field int) {
		switch field % 7 {
		case 0:
			e.AgentID += "x"
		case 1:
			e.RecordID += "x"
		case 2:
			e.Sequence += 100
		case 3:
			e.Timestamp = "2031-01-01T00:00:00.000Z"
		case 4:
			e.Payload = map[string]any{"tampered": true}
		case 5:
			// flip one nonce character
			if e.Nonce[0] == 'a' {
				e.Nonce = "b" + e.Nonce[1:]
			} else {
				e.Nonce = "a" + e.Nonce[1:]
			}
		case 6:
			e.RecordType = envelope.RecordTypeFailure
		}
	}

	properties.Property("any field mutation is detected", prop.ForAll(
		func(target uint8, field uint8) bool {
			const n = 4
			types := make([]string, n)
			for i := range types {
				types[i] = envelope.RecordTypeExecution
			}
			path, pub, _, err := buildPropLedger(t, dir, types, nil)
			if err != nil {
				return false
			}

			i := int(target) % (n - 1) // keep a successor so chain_break is observable
			data, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
			env, issues := envelope.ParseLine([]byte(lines[i]))
			if env == nil || len(issues) != 0 {
				return false
			}
			mutate(env, int(field))
			mutated, err := env.MarshalLine()
			if err != nil {
				return false
			}
			lines[i] = string(mutated)
			if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
				return false
			}

			s, err := VerifyFile(path, WithPolicyKey(pub))
			if err != nil || s.OverallValid {
				return false
			}
			sigBroken := false
			for _, v := range s.ViolationsOfKind(ViolationInvalidSignature) {
				if v.AtSequence == int64(i) {
					sigBroken = true
				}
			}
			chainBroken := false
			for _, v := range s.ViolationsOfKind(ViolationChainBreak) {
				if v.AtSequence == int64(i+1) {
					chainBroken = true
				}
			}
			return sigBroken && chainBroken
		},
		gen.UInt8(), gen.UInt8(),
	))

	properties.TestingRun(t)
}

// P7: verification is a pure function of the input bytes.
func TestProperty_IdempotentVerification(t *testing.T) {
	properties := gopter.NewProperties(propParams())
	dir := t.TempDir()

	properties.Property("two runs agree", prop.ForAll(
		func(types []string) bool {
			if len(types) == 0 {
				return true
			}
			path, pub, _, err := buildPropLedger(t, dir, types, nil)
			if err != nil {
				return false
			}
			s1, err1 := VerifyFile(path, WithPolicyKey(pub))
			s2, err2 := VerifyFile(path, WithPolicyKey(pub))
			if err1 != nil || err2 != nil {
				return false
			}
			if s1.TotalEntries != s2.TotalEntries || s1.OverallValid != s2.OverallValid {
				return false
			}
			return s1.HeadHash == s2.HeadHash && len(s1.Violations) == len(s2.Violations)
		},
		gen.SliceOf(genRecordType()),
	))

	properties.TestingRun(t)
}
