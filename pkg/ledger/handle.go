package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/guardclaw/gef/pkg/canonicalize"
	"github.com/guardclaw/gef/pkg/chain"
	"github.com/guardclaw/gef/pkg/crypto"
	"github.com/guardclaw/gef/pkg/envelope"
	"github.com/guardclaw/gef/pkg/payloadschema"
)

// Handle owns one open ledger file, the monotonic sequence counter, and the
// canonical bytes of the most recently appended signing surface. One writer
// per ledger; the handle takes an exclusive advisory lock where the platform
// supports it and holds it until Close.
type Handle struct {
	mu sync.Mutex

	path    string
	file    *os.File
	signer  *crypto.Signer
	agentID string

	state         State
	lastSequence  int64 // -1 while empty
	lastCanonical []byte
	size          int64 // committed file size, for truncate-on-failed-write

	syncOnAppend bool
	schemas      *payloadschema.Registry
	logger       *slog.Logger
	now          func() time.Time
}

// Open creates or opens the ledger at path for appending. An existing file
// is scanned once to recover (last_sequence, last_canonical_bytes) from its
// final envelope. Unterminated trailing bytes (the residue of a torn write)
// are discarded before the first append; they never invalidate any preceding
// envelope.
func Open(path string, signer *crypto.Signer, agentID string, opts ...Option) (*Handle, error) {
	if signer == nil {
		return nil, fmt.Errorf("ledger: signer is required")
	}
	if agentID == "" {
		return nil, fmt.Errorf("ledger: agent id is required")
	}

	h := &Handle{
		path:         path,
		signer:       signer,
		agentID:      agentID,
		lastSequence: -1,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := lockExclusive(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	h.file = f

	if err := h.recover(); err != nil {
		unlock(f)
		_ = f.Close()
		return nil, err
	}

	h.logger.Info("ledger opened",
		"path", path,
		"agent_id", agentID,
		"state", h.state.String(),
		"last_sequence", h.lastSequence,
	)
	return h, nil
}

// recover scans the file, positions the handle after the last complete
// envelope, and caches that envelope's canonical signing-surface bytes.
func (h *Handle) recover() error {
	info, err := h.file.Stat()
	if err != nil {
		return fmt.Errorf("ledger: stat: %w", err)
	}
	if info.Size() == 0 {
		h.state = OpenEmpty
		h.size = 0
		return nil
	}

	if _, err := h.file.Seek(0, 0); err != nil {
		return fmt.Errorf("ledger: seek: %w", err)
	}

	var (
		lastLine   []byte
		offset     int64
		tailOffset int64 // end of the last '\n'-terminated line
	)
	reader := bufio.NewReaderSize(h.file, 256*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if err == nil {
			offset += int64(len(line))
			tailOffset = offset
			trimmed := bytes.TrimRight(line, "\r\n")
			if len(trimmed) > 0 {
				lastLine = trimmed
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("ledger: scan: %w", err)
		}
		// Unterminated tail: a torn write. Drop it so the next append
		// starts on a fresh line; verifiers of pre-crash copies report it
		// as one schema violation without touching earlier entries.
		if len(line) > 0 {
			h.logger.Warn("ledger has unterminated trailing bytes; truncating torn write",
				"path", h.path, "bytes", len(line))
			if terr := h.file.Truncate(tailOffset); terr != nil {
				return fmt.Errorf("ledger: truncate torn tail: %w", terr)
			}
		}
		break
	}

	if lastLine == nil {
		h.state = OpenEmpty
		h.size = tailOffset
		return nil
	}

	env, issues := envelope.ParseLine(lastLine)
	if env == nil {
		return ErrCorruptTail
	}
	if len(issues) > 0 {
		h.logger.Warn("last ledger entry has schema issues; appending will continue the stored chain",
			"path", h.path, "issues", len(issues))
	}

	canonical, err := canonicalize.Canonicalize(env.SigningSurface())
	if err != nil {
		return fmt.Errorf("ledger: canonicalize recovered entry: %w", err)
	}

	h.lastSequence = env.Sequence
	h.lastCanonical = canonical
	h.size = tailOffset
	h.state = OpenNonempty
	return nil
}

// Append builds, signs, and appends one envelope (fsynced only with
// WithSync). The step order is
// contractual: causal hash, sequence, nonce, timestamp, build, canonicalize,
// sign, attach, write. In-memory state advances only after the write
// succeeds, so a failed append leaves the handle retry-safe and the ledger
// unchanged.
func (h *Handle) Append(recordType string, payload map[string]any) (*envelope.Envelope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Closed {
		return nil, ErrClosed
	}

	if h.schemas != nil {
		if err := h.schemas.Validate(recordType, payload); err != nil {
			return nil, err
		}
	}

	causal := chain.GenesisHash()
	if h.state == OpenNonempty {
		causal = chain.FromCanonicalBytes(h.lastCanonical)
	}
	seq := h.lastSequence + 1

	nonce, err := crypto.RandomNonceHex()
	if err != nil {
		return nil, err
	}
	ts := envelope.FormatTimestamp(h.now())

	env, err := envelope.BuildUnsigned(recordType, h.agentID, h.signer.PublicKeyHex(), seq, nonce, ts, causal, payload)
	if err != nil {
		return nil, err
	}

	canonical, err := canonicalize.Canonicalize(env.SigningSurface())
	if err != nil {
		return nil, err
	}
	sig, err := h.signer.Sign(canonical)
	if err != nil {
		return nil, err
	}
	env.Signature = sig

	line, err := env.MarshalLine()
	if err != nil {
		return nil, err
	}

	if err := h.writeLine(line); err != nil {
		return nil, err
	}

	h.lastSequence = seq
	h.lastCanonical = canonical
	h.state = OpenNonempty

	h.logger.Debug("envelope appended",
		"sequence", seq,
		"record_type", recordType,
		"record_id", env.RecordID,
	)
	return env, nil
}

// writeLine appends line plus '\n' as a single write call and rolls the file
// back to its committed size if the write fails or comes up short.
func (h *Handle) writeLine(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	n, err := h.file.WriteAt(buf, h.size)
	if err != nil || n != len(buf) {
		if terr := h.file.Truncate(h.size); terr != nil {
			h.logger.Error("rollback of partial append failed", "path", h.path, "error", terr)
		}
		if err == nil {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(buf))
		}
		return fmt.Errorf("ledger: append: %w", err)
	}

	if h.syncOnAppend {
		if err := h.file.Sync(); err != nil {
			return fmt.Errorf("ledger: fsync: %w", err)
		}
	}
	h.size += int64(len(buf))
	return nil
}

// Sequence returns the sequence of the most recently appended envelope, or
// -1 for an empty ledger.
func (h *Handle) Sequence() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSequence
}

// HeadHash returns the causal hash the next appended envelope will carry:
// the genesis sentinel while empty, otherwise the hash of the last signing
// surface. This is the ledger's commitment to its entire history, suitable
// for external anchoring.
func (h *Handle) HeadHash() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != OpenNonempty {
		return chain.GenesisHash()
	}
	return chain.FromCanonicalBytes(h.lastCanonical)
}

// State returns the handle's lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// AgentID returns the agent this handle writes for.
func (h *Handle) AgentID() string { return h.agentID }

// Path returns the ledger file path.
func (h *Handle) Path() string { return h.path }

// Close releases the advisory lock and the file handle. Further Appends
// return ErrClosed; the handle can not be reopened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Closed {
		return nil
	}
	h.state = Closed

	unlock(h.file)
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	h.logger.Info("ledger closed", "path", h.path, "last_sequence", h.lastSequence)
	return nil
}
