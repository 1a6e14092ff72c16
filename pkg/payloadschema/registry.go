// Package payloadschema is the application-layer hook for payload
// validation. The core treats payloads opaquely beyond "is a JSON object";
// applications that want typed payload semantics per record type register a
// JSON Schema here and attach the registry to the ledger handle.
package payloadschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry maps record types to compiled JSON Schemas.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles schemaJSON and binds it to recordType, replacing any
// previous binding.
func (r *Registry) Register(recordType string, schemaJSON []byte) error {
	compiler := jsonschema.NewCompiler()
	url := "gef://payload/" + recordType
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("payload schema for %q: %w", recordType, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("payload schema for %q: %w", recordType, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[recordType] = schema
	return nil
}

// Validate checks payload against the schema registered for recordType.
// Record types without a registered schema pass: the registry constrains
// only what the application opted into.
func (r *Registry) Validate(recordType string, payload map[string]any) error {
	r.mu.RLock()
	schema := r.schemas[recordType]
	r.mu.RUnlock()

	if schema == nil {
		return nil
	}
	if err := schema.Validate(toPlain(payload)); err != nil {
		return fmt.Errorf("payload for %q rejected: %w", recordType, err)
	}
	return nil
}

// toPlain re-decodes payload into generic JSON values so the validator never
// sees application-specific Go types.
func toPlain(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

// Has reports whether recordType has a registered schema.
func (r *Registry) Has(recordType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[recordType] != nil
}
