package envelope

import (
	"fmt"
	"strings"

	"github.com/guardclaw/gef/pkg/crypto"
)

// SchemaIssue is one typed validation failure. Field is empty for
// line-level problems (malformed JSON).
type SchemaIssue struct {
	Field  string
	Detail string
}

func (i SchemaIssue) String() string {
	if i.Field == "" {
		return i.Detail
	}
	return i.Field + ": " + i.Detail
}

// SchemaError aggregates the issues that made construction or validation
// fail. Violations are reported as a list, not a single string, so callers
// can surface precise diagnostics.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return "envelope schema: " + strings.Join(parts, "; ")
}

const (
	publicKeyHexLen  = 64
	nonceHexLen      = 32
	causalHashHexLen = 64
)

// ValidateSchema checks every field constraint of the envelope, including
// the signature. It returns all failures, not just the first.
func (e *Envelope) ValidateSchema() []SchemaIssue {
	issues := e.validateUnsigned()
	if e.Signature == "" {
		issues = append(issues, SchemaIssue{Field: "signature", Detail: "must not be empty"})
	} else if _, err := crypto.DecodeSignature(e.Signature); err != nil {
		issues = append(issues, SchemaIssue{Field: "signature", Detail: err.Error()})
	}
	return issues
}

// validateUnsigned checks every constraint except the signature, which is
// absent at build time.
func (e *Envelope) validateUnsigned() []SchemaIssue {
	var issues []SchemaIssue

	if e.GEFVersion == "" {
		issues = append(issues, SchemaIssue{Field: "gef_version", Detail: "must not be empty"})
	} else if !versionSyntaxOK(e.GEFVersion) {
		issues = append(issues, SchemaIssue{Field: "gef_version", Detail: fmt.Sprintf("invalid version %q", e.GEFVersion)})
	}

	if e.RecordID == "" {
		issues = append(issues, SchemaIssue{Field: "record_id", Detail: "must not be empty"})
	}

	if !IsRegistered(e.GEFVersion, e.RecordType) {
		issues = append(issues, SchemaIssue{Field: "record_type", Detail: fmt.Sprintf("unknown record type %q", e.RecordType)})
	}

	if e.AgentID == "" {
		issues = append(issues, SchemaIssue{Field: "agent_id", Detail: "must not be empty"})
	}

	if !isLowerHex(e.SignerPublicKey, publicKeyHexLen) {
		issues = append(issues, SchemaIssue{Field: "signer_public_key", Detail: "must be exactly 64 lowercase hex characters"})
	}

	if e.Sequence < 0 {
		issues = append(issues, SchemaIssue{Field: "sequence", Detail: "must be non-negative"})
	}

	if !isLowerHex(e.Nonce, nonceHexLen) {
		issues = append(issues, SchemaIssue{Field: "nonce", Detail: "must be exactly 32 lowercase hex characters"})
	}

	if !ValidTimestamp(e.Timestamp) {
		issues = append(issues, SchemaIssue{Field: "timestamp", Detail: "must match YYYY-MM-DDTHH:MM:SS.sssZ"})
	}

	if !isLowerHex(e.CausalHash, causalHashHexLen) {
		issues = append(issues, SchemaIssue{Field: "causal_hash", Detail: "must be exactly 64 lowercase hex characters"})
	}

	if e.Payload == nil {
		issues = append(issues, SchemaIssue{Field: "payload", Detail: "must be a JSON object"})
	}

	return issues
}

func isLowerHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
