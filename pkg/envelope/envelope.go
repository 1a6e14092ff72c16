// Package envelope implements the GEF envelope data model: the eleven-field
// record, its ten-field signing surface, schema validation with typed
// reasons, and strict timestamp handling.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is one signed record, the atomic unit of a ledger. Exactly eleven
// fields; no optional fields.
type Envelope struct {
	GEFVersion      string         `json:"gef_version"`
	RecordID        string         `json:"record_id"`
	RecordType      string         `json:"record_type"`
	AgentID         string         `json:"agent_id"`
	SignerPublicKey string         `json:"signer_public_key"`
	Sequence        int64          `json:"sequence"`
	Nonce           string         `json:"nonce"`
	Timestamp       string         `json:"timestamp"`
	CausalHash      string         `json:"causal_hash"`
	Payload         map[string]any `json:"payload"`
	Signature       string         `json:"signature"`
}

// fieldNames is the closed field set of the wire format, in no particular
// order. Parsing rejects lines whose key set differs.
var fieldNames = map[string]bool{
	"gef_version":       true,
	"record_id":         true,
	"record_type":       true,
	"agent_id":          true,
	"signer_public_key": true,
	"sequence":          true,
	"nonce":             true,
	"timestamp":         true,
	"causal_hash":       true,
	"payload":           true,
	"signature":         true,
}

// SigningSurface returns the ten-field projection that omits signature.
// The canonical bytes of this value are the sole input to both the envelope
// signature and the successor's causal_hash.
func (e *Envelope) SigningSurface() map[string]any {
	return map[string]any{
		"gef_version":       e.GEFVersion,
		"record_id":         e.RecordID,
		"record_type":       e.RecordType,
		"agent_id":          e.AgentID,
		"signer_public_key": e.SignerPublicKey,
		"sequence":          e.Sequence,
		"nonce":             e.Nonce,
		"timestamp":         e.Timestamp,
		"causal_hash":       e.CausalHash,
		"payload":           e.Payload,
	}
}

// ChainSurface is defined identical to SigningSurface. The two must never
// diverge; chain hashing and signing share one projection.
func (e *Envelope) ChainSurface() map[string]any {
	return e.SigningSurface()
}

// MarshalLine serializes the envelope as a single-line JSON object for the
// ledger file. In-file field ordering is not significant for verification;
// canonicalization happens on the reconstructed surface, not the stored line.
func (e *Envelope) MarshalLine() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("envelope serialization failed: %w", err)
	}
	// Encode appends a newline; the writer owns the line terminator.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// ParseLine reconstructs an envelope from one ledger line. It reports
// structural problems (malformed JSON, missing/extra fields, wrong types) and
// format problems (from ValidateSchema) as typed issues. The returned
// envelope is nil when the line is not a single JSON object, a field is
// missing, or a field has an unusable type.
//
// Numbers inside payload are decoded as json.Number so re-canonicalizing a
// parsed envelope reproduces the exact bytes produced at sign time.
func ParseLine(line []byte) (*Envelope, []SchemaIssue) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, []SchemaIssue{{Field: "", Detail: fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if dec.More() {
		return nil, []SchemaIssue{{Field: "", Detail: "trailing data after JSON object"}}
	}

	var issues []SchemaIssue
	for k := range m {
		if !fieldNames[k] {
			issues = append(issues, SchemaIssue{Field: k, Detail: "unknown field"})
		}
	}
	for k := range fieldNames {
		if _, ok := m[k]; !ok {
			issues = append(issues, SchemaIssue{Field: k, Detail: "missing field"})
		}
	}

	env := &Envelope{}
	ok := true
	ok = readString(m, "gef_version", &env.GEFVersion, &issues) && ok
	ok = readString(m, "record_id", &env.RecordID, &issues) && ok
	ok = readString(m, "record_type", &env.RecordType, &issues) && ok
	ok = readString(m, "agent_id", &env.AgentID, &issues) && ok
	ok = readString(m, "signer_public_key", &env.SignerPublicKey, &issues) && ok
	ok = readString(m, "nonce", &env.Nonce, &issues) && ok
	ok = readString(m, "timestamp", &env.Timestamp, &issues) && ok
	ok = readString(m, "causal_hash", &env.CausalHash, &issues) && ok
	ok = readString(m, "signature", &env.Signature, &issues) && ok
	ok = readSequence(m, &env.Sequence, &issues) && ok
	ok = readPayload(m, &env.Payload, &issues) && ok

	if !ok {
		return nil, issues
	}
	issues = append(issues, env.ValidateSchema()...)
	return env, issues
}

func readString(m map[string]any, field string, dst *string, issues *[]SchemaIssue) bool {
	v, ok := m[field]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		*issues = append(*issues, SchemaIssue{Field: field, Detail: "must be a string"})
		return false
	}
	*dst = s
	return true
}

func readSequence(m map[string]any, dst *int64, issues *[]SchemaIssue) bool {
	v, ok := m["sequence"]
	if !ok {
		return false
	}
	num, ok := v.(json.Number)
	if !ok {
		*issues = append(*issues, SchemaIssue{Field: "sequence", Detail: "must be an integer"})
		return false
	}
	n, err := num.Int64()
	if err != nil {
		*issues = append(*issues, SchemaIssue{Field: "sequence", Detail: "must be an integer"})
		return false
	}
	*dst = n
	return true
}

func readPayload(m map[string]any, dst *map[string]any, issues *[]SchemaIssue) bool {
	v, ok := m["payload"]
	if !ok {
		return false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		*issues = append(*issues, SchemaIssue{Field: "payload", Detail: "must be a JSON object"})
		return false
	}
	*dst = obj
	return true
}

// BuildUnsigned constructs and schema-validates an envelope without a
// signature. record_id is a fresh UUIDv4. On any constraint failure it
// returns a *SchemaError and no envelope is ever emitted.
func BuildUnsigned(recordType, agentID, signerPublicKeyHex string, sequence int64, nonceHex, timestamp, causalHashHex string, payload map[string]any) (*Envelope, error) {
	return BuildUnsignedWithID(uuid.NewString(), recordType, agentID, signerPublicKeyHex, sequence, nonceHex, timestamp, causalHashHex, payload)
}

// BuildUnsignedWithID is BuildUnsigned with a caller-chosen record_id, for
// deterministic fixtures.
func BuildUnsignedWithID(recordID, recordType, agentID, signerPublicKeyHex string, sequence int64, nonceHex, timestamp, causalHashHex string, payload map[string]any) (*Envelope, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	env := &Envelope{
		GEFVersion:      Version,
		RecordID:        recordID,
		RecordType:      recordType,
		AgentID:         agentID,
		SignerPublicKey: signerPublicKeyHex,
		Sequence:        sequence,
		Nonce:           nonceHex,
		Timestamp:       timestamp,
		CausalHash:      causalHashHex,
		Payload:         payload,
	}
	if issues := env.validateUnsigned(); len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}
	return env, nil
}
