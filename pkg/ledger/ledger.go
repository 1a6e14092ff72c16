// Package ledger implements the GEF producer side: a handle that owns
// exclusive write access to one JSONL ledger file, builds and signs
// envelopes, and appends them with crash-consistent single-line writes.
package ledger

import (
	"errors"
	"log/slog"
	"time"

	"github.com/guardclaw/gef/pkg/payloadschema"
)

// State of a ledger handle.
type State int

const (
	Closed State = iota
	OpenEmpty
	OpenNonempty
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case OpenEmpty:
		return "open-empty"
	case OpenNonempty:
		return "open-nonempty"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by Append on a closed handle.
	ErrClosed = errors.New("ledger: handle is closed")
	// ErrLocked is returned by Open when another writer holds the ledger.
	ErrLocked = errors.New("ledger: file is locked by another writer")
	// ErrCorruptTail is returned by Open when the final line is terminated
	// but unparsable. A torn write never produces this; tampering or
	// external edits do, and appending past it would bury the evidence.
	ErrCorruptTail = errors.New("ledger: final line is complete but unparsable; run verification before appending")
)

// Option configures a handle at Open time.
type Option func(*Handle)

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handle) { h.logger = l }
}

// WithSync fsyncs the file after every append. Durability beyond the OS
// page cache is opt-in; the writer always issues the line as one write call.
func WithSync() Option {
	return func(h *Handle) { h.syncOnAppend = true }
}

// WithClock injects the timestamp source. Tests pin it; production uses the
// wall clock.
func WithClock(now func() time.Time) Option {
	return func(h *Handle) { h.now = now }
}

// WithPayloadSchemas validates payloads against registered per-record-type
// JSON Schemas before an envelope is built.
func WithPayloadSchemas(r *payloadschema.Registry) Option {
	return func(h *Handle) { h.schemas = r }
}
