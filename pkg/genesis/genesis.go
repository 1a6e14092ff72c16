// Package genesis provides the well-known payload shapes carried by the
// first envelopes of a ledger: the root-of-trust genesis record and agent
// registrations. They are ordinary envelope payloads; the envelope's own
// signature and chain position bind them, so they carry no signature of
// their own.
package genesis

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guardclaw/gef/pkg/envelope"
)

// Record is the root-of-trust payload, conventionally the payload of the
// envelope at sequence 0.
type Record struct {
	GenesisID     string         `json:"genesis_id"`
	LedgerName    string         `json:"ledger_name"`
	Timestamp     string         `json:"timestamp"`
	CreatedBy     string         `json:"created_by"`
	RootPublicKey string         `json:"root_public_key"`
	Purpose       string         `json:"purpose"`
	Jurisdiction  string         `json:"jurisdiction,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewRecord builds a genesis record stamped with the current time.
func NewRecord(ledgerName, createdBy, rootPublicKeyHex, purpose string) *Record {
	return &Record{
		GenesisID:     "genesis-" + uuid.NewString(),
		LedgerName:    ledgerName,
		Timestamp:     envelope.FormatTimestamp(time.Now()),
		CreatedBy:     createdBy,
		RootPublicKey: rootPublicKeyHex,
		Purpose:       purpose,
	}
}

// Validate checks the fields a consumer relies on.
func (r *Record) Validate() error {
	switch {
	case r.GenesisID == "":
		return fmt.Errorf("genesis: genesis_id must not be empty")
	case r.LedgerName == "":
		return fmt.Errorf("genesis: ledger_name must not be empty")
	case len(r.RootPublicKey) != 64:
		return fmt.Errorf("genesis: root_public_key must be 64 hex characters")
	case !envelope.ValidTimestamp(r.Timestamp):
		return fmt.Errorf("genesis: timestamp must be in GEF wire format")
	}
	return nil
}

// Payload renders the record as an envelope payload.
func (r *Record) Payload() map[string]any {
	p := map[string]any{
		"genesis_id":      r.GenesisID,
		"ledger_name":     r.LedgerName,
		"timestamp":       r.Timestamp,
		"created_by":      r.CreatedBy,
		"root_public_key": r.RootPublicKey,
		"purpose":         r.Purpose,
	}
	if r.Jurisdiction != "" {
		p["jurisdiction"] = r.Jurisdiction
	}
	if len(r.Metadata) > 0 {
		p["metadata"] = r.Metadata
	}
	return p
}

// AgentRegistration declares an agent key under the ledger's root of trust.
type AgentRegistration struct {
	AgentID        string         `json:"agent_id"`
	AgentName      string         `json:"agent_name"`
	Timestamp      string         `json:"timestamp"`
	RegisteredBy   string         `json:"registered_by"`
	AgentPublicKey string         `json:"agent_public_key"`
	Capabilities   []string       `json:"capabilities"`
	ValidFrom      string         `json:"valid_from"`
	ValidUntil     string         `json:"valid_until"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewAgentRegistration builds a registration valid between from and until.
func NewAgentRegistration(agentID, agentName, registeredBy, agentPublicKeyHex string, capabilities []string, from, until time.Time) *AgentRegistration {
	return &AgentRegistration{
		AgentID:        agentID,
		AgentName:      agentName,
		Timestamp:      envelope.FormatTimestamp(time.Now()),
		RegisteredBy:   registeredBy,
		AgentPublicKey: agentPublicKeyHex,
		Capabilities:   capabilities,
		ValidFrom:      envelope.FormatTimestamp(from),
		ValidUntil:     envelope.FormatTimestamp(until),
	}
}

func (a *AgentRegistration) Validate() error {
	switch {
	case a.AgentID == "":
		return fmt.Errorf("genesis: agent_id must not be empty")
	case len(a.AgentPublicKey) != 64:
		return fmt.Errorf("genesis: agent_public_key must be 64 hex characters")
	case !envelope.ValidTimestamp(a.ValidFrom) || !envelope.ValidTimestamp(a.ValidUntil):
		return fmt.Errorf("genesis: validity window must be in GEF wire format")
	}
	from, _ := envelope.ParseTimestamp(a.ValidFrom)
	until, _ := envelope.ParseTimestamp(a.ValidUntil)
	if !until.After(from) {
		return fmt.Errorf("genesis: valid_until must be after valid_from")
	}
	return nil
}

// Payload renders the registration as an envelope payload.
func (a *AgentRegistration) Payload() map[string]any {
	caps := make([]any, len(a.Capabilities))
	for i, c := range a.Capabilities {
		caps[i] = c
	}
	p := map[string]any{
		"agent_id":         a.AgentID,
		"agent_name":       a.AgentName,
		"timestamp":        a.Timestamp,
		"registered_by":    a.RegisteredBy,
		"agent_public_key": a.AgentPublicKey,
		"capabilities":     caps,
		"valid_from":       a.ValidFrom,
		"valid_until":      a.ValidUntil,
	}
	if len(a.Metadata) > 0 {
		p["metadata"] = a.Metadata
	}
	return p
}

// KeyDelegation records one key delegating capabilities to another. Carried
// as an ordinary envelope payload.
type KeyDelegation struct {
	DelegationID  string   `json:"delegation_id"`
	Timestamp     string   `json:"timestamp"`
	DelegatingKey string   `json:"delegating_key"`
	DelegatedKey  string   `json:"delegated_key"`
	Capabilities  []string `json:"capabilities"`
	ValidFrom     string   `json:"valid_from"`
	ValidUntil    string   `json:"valid_until"`
}

func NewKeyDelegation(delegatingKeyHex, delegatedKeyHex string, capabilities []string, from, until time.Time) *KeyDelegation {
	return &KeyDelegation{
		DelegationID:  "delegation-" + uuid.NewString(),
		Timestamp:     envelope.FormatTimestamp(time.Now()),
		DelegatingKey: delegatingKeyHex,
		DelegatedKey:  delegatedKeyHex,
		Capabilities:  capabilities,
		ValidFrom:     envelope.FormatTimestamp(from),
		ValidUntil:    envelope.FormatTimestamp(until),
	}
}

// Payload renders the delegation as an envelope payload.
func (d *KeyDelegation) Payload() map[string]any {
	caps := make([]any, len(d.Capabilities))
	for i, c := range d.Capabilities {
		caps[i] = c
	}
	return map[string]any{
		"delegation_id":  d.DelegationID,
		"timestamp":      d.Timestamp,
		"delegating_key": d.DelegatingKey,
		"delegated_key":  d.DelegatedKey,
		"capabilities":   caps,
		"valid_from":     d.ValidFrom,
		"valid_until":    d.ValidUntil,
	}
}
