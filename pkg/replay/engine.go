package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/guardclaw/gef/pkg/canonicalize"
	"github.com/guardclaw/gef/pkg/chain"
	"github.com/guardclaw/gef/pkg/crypto"
	"github.com/guardclaw/gef/pkg/envelope"
)

// maxLineBytes bounds a single ledger line. The protocol imposes no payload
// maximum; this implementation documents 16 MiB per line.
const maxLineBytes = 16 * 1024 * 1024

// Option configures one verification run.
type Option func(*engine)

// WithPolicyKey pins the trusted signer: every envelope's signer_public_key
// must equal keyHex or a schema violation is recorded. Without a policy key
// each envelope is verified against its own embedded key, which proves
// internal consistency but not authorship.
func WithPolicyKey(keyHex string) Option {
	return func(e *engine) { e.policyKey = keyHex }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *engine) { e.logger = l }
}

// engine carries the per-run scratch state. A new engine is built for every
// run; the package is stateless between runs, so repeated verification of
// the same input yields equal summaries.
type engine struct {
	policyKey string
	logger    *slog.Logger

	position      int64
	lastCanonical []byte
	seenNonces    map[string]bool
	seenRecordIDs map[string]bool

	ledgerVersion string
	compat        envelope.Compat

	summary *ReplaySummary
}

// VerifyFile verifies the ledger at path. It returns an error only for I/O
// failures and the one fatal protocol condition (unsupported major
// version); every other problem is reported inside the summary.
func VerifyFile(path string, opts ...Option) (*ReplaySummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Verify(f, opts...)
}

// Verify verifies a ledger read from r.
func Verify(r io.Reader, opts ...Option) (*ReplaySummary, error) {
	e := &engine{
		logger:        slog.Default(),
		seenNonces:    make(map[string]bool),
		seenRecordIDs: make(map[string]bool),
		compat:        envelope.CompatExact,
		summary: &ReplaySummary{
			Violations:   []ChainViolation{},
			HeadSequence: -1,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		// Writers emit bare \n; tolerate \r\n from foreign tooling.
		line := bytes.TrimSuffix(scanner.Bytes(), []byte{'\r'})
		if err := e.verifyEntry(line); err != nil {
			return nil, err
		}
		e.position++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay: read: %w", err)
	}

	e.finish()
	return e.summary, nil
}

// verifyEntry runs the two-phase check for one line. The returned error is
// non-nil only for the version-fatal condition.
func (e *engine) verifyEntry(line []byte) error {
	i := e.position
	e.summary.TotalEntries++

	// Phase 1, steps 1-2: parse, then schema.
	env, issues := envelope.ParseLine(line)
	if env == nil {
		for _, issue := range issues {
			e.violate(ChainViolation{Kind: ViolationSchema, AtSequence: i, Detail: issue.String()})
		}
		return nil
	}

	firstParsed := e.ledgerVersion == ""
	if firstParsed {
		// The ledger's version is declared by its first parsable entry,
		// normally position 0.
		e.ledgerVersion = env.GEFVersion
		compat, err := envelope.CheckCompat(env.GEFVersion)
		if err != nil {
			// The only halting condition: a major version this verifier
			// cannot interpret. No summary is produced.
			return err
		}
		e.compat = compat
		e.summary.GEFVersion = env.GEFVersion
	}

	schemaOK := true
	for _, issue := range issues {
		if e.compat == envelope.CompatForwardMinor && issue.Field == "record_type" {
			// Same major, newer minor: unknown record types are expected
			// forward-compatibility cases, not violations.
			e.summary.Warnings = append(e.summary.Warnings, Warning{AtSequence: i, Detail: issue.String()})
			continue
		}
		schemaOK = false
		e.violate(ChainViolation{Kind: ViolationSchema, AtSequence: i, Detail: issue.String()})
	}

	if !firstParsed && env.GEFVersion != e.ledgerVersion {
		schemaOK = false
		e.violate(ChainViolation{
			Kind: ViolationSchema, AtSequence: i,
			Detail:   "mixed gef_version across ledger",
			Expected: e.ledgerVersion, Actual: env.GEFVersion,
		})
	}

	if e.policyKey != "" && env.SignerPublicKey != e.policyKey {
		schemaOK = false
		e.violate(ChainViolation{
			Kind: ViolationSchema, AtSequence: i,
			Detail:   "signer_public_key does not match policy key",
			Expected: e.policyKey, Actual: env.SignerPublicKey,
		})
	}

	// Step 3: sequence continuity. Runs even when schema failed.
	if env.Sequence != i {
		e.violate(ChainViolation{
			Kind: ViolationSequenceGap, AtSequence: i,
			Detail:   "stored sequence does not match position",
			Expected: fmt.Sprintf("%d", i), Actual: fmt.Sprintf("%d", env.Sequence),
		})
	}

	// Step 4: chain continuity.
	switch {
	case i == 0:
		if env.CausalHash != chain.GenesisHash() {
			e.violate(ChainViolation{
				Kind: ViolationChainBreak, AtSequence: i,
				Detail:   "genesis entry must carry the sentinel causal hash",
				Expected: chain.GenesisHash(), Actual: env.CausalHash,
			})
		}
	case e.lastCanonical != nil:
		expected := chain.FromCanonicalBytes(e.lastCanonical)
		if env.CausalHash != expected {
			e.violate(ChainViolation{
				Kind: ViolationChainBreak, AtSequence: i,
				Detail:   "causal hash does not commit to the preceding entry",
				Expected: expected, Actual: env.CausalHash,
			})
		}
	default:
		e.violate(ChainViolation{
			Kind: ViolationChainBreak, AtSequence: i,
			Detail: "cannot recompute causal hash: preceding entry was unparsable",
		})
	}

	// Step 5: nonce uniqueness. The nonce joins the seen set regardless, so
	// a run of duplicates reports every occurrence after the first.
	if e.seenNonces[env.Nonce] {
		e.violate(ChainViolation{Kind: ViolationSchema, AtSequence: i, Detail: "duplicate nonce"})
	}
	e.seenNonces[env.Nonce] = true

	if e.seenRecordIDs[env.RecordID] {
		e.violate(ChainViolation{Kind: ViolationSchema, AtSequence: i, Detail: "duplicate record_id"})
	}
	e.seenRecordIDs[env.RecordID] = true

	// Step 6: advance the chain cursor whether or not phase 2 passes.
	// Chain integrity is deliberately independent of signature validity.
	canonical, err := canonicalize.Canonicalize(env.SigningSurface())
	if err != nil {
		e.violate(ChainViolation{
			Kind: ViolationSchema, AtSequence: i,
			Detail: fmt.Sprintf("signing surface is not canonicalizable: %v", err),
		})
		return nil
	}
	e.lastCanonical = canonical
	e.summary.HeadSequence = env.Sequence

	// Phase 2, step 7: signature over the bytes computed in step 6.
	if !schemaOK {
		return nil
	}
	if !crypto.Verify(env.SignerPublicKey, canonical, env.Signature) {
		e.violate(ChainViolation{
			Kind: ViolationInvalidSignature, AtSequence: i,
			Detail: "Ed25519 verification failed over the canonical signing surface",
		})
	}
	return nil
}

func (e *engine) violate(v ChainViolation) {
	e.summary.Violations = append(e.summary.Violations, v)
}

func (e *engine) finish() {
	s := e.summary
	if e.lastCanonical != nil {
		s.HeadHash = chain.FromCanonicalBytes(e.lastCanonical)
	}

	s.SchemaValid = true
	s.ChainValid = true
	s.SignaturesValid = true
	for _, v := range s.Violations {
		switch v.Kind {
		case ViolationSchema:
			s.SchemaValid = false
		case ViolationSequenceGap, ViolationChainBreak:
			s.ChainValid = false
		case ViolationInvalidSignature:
			s.SignaturesValid = false
		}
	}
	s.OverallValid = s.SchemaValid && s.ChainValid && s.SignaturesValid

	e.logger.Debug("replay finished",
		"entries", s.TotalEntries,
		"violations", len(s.Violations),
		"overall_valid", s.OverallValid,
	)
}
