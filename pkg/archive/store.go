// Package archive mirrors verified ledger entries into SQLite for ad-hoc
// querying by sequence, record type, or agent. The JSONL file stays the
// authoritative evidence; the mirror is a read-side convenience and carries
// no cryptographic weight.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/guardclaw/gef/pkg/envelope"
	"github.com/guardclaw/gef/pkg/replay"
)

// Store wraps the SQLite mirror database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the mirror at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS envelopes (
		ledger TEXT NOT NULL,
		gef_version TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		record_id TEXT NOT NULL,
		record_type TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		signer_public_key TEXT NOT NULL,
		nonce TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		causal_hash TEXT NOT NULL,
		payload JSON NOT NULL,
		signature TEXT NOT NULL,
		PRIMARY KEY (ledger, sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_envelopes_record_type ON envelopes(ledger, record_type);
	CREATE INDEX IF NOT EXISTS idx_envelopes_agent ON envelopes(agent_id);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// MirrorFile verifies the ledger at ledgerPath and, when it is overall
// valid, inserts every envelope under the given ledger name. A ledger with
// violations is refused: the mirror only ever holds evidence that passed
// replay.
func (s *Store) MirrorFile(ctx context.Context, ledgerName, ledgerPath string, opts ...replay.Option) (*replay.ReplaySummary, error) {
	summary, err := replay.VerifyFile(ledgerPath, opts...)
	if err != nil {
		return nil, err
	}
	if !summary.OverallValid {
		return summary, fmt.Errorf("archive: ledger %s has %d violations; refusing to mirror", ledgerPath, len(summary.Violations))
	}

	envs, err := readAll(ledgerPath)
	if err != nil {
		return summary, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("archive: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, env := range envs {
		if err := insertTx(ctx, tx, ledgerName, env); err != nil {
			return summary, err
		}
	}
	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("archive: commit: %w", err)
	}
	return summary, nil
}

// Insert mirrors one envelope, replacing any previous row at the same
// (ledger, sequence).
func (s *Store) Insert(ctx context.Context, ledgerName string, env *envelope.Envelope) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertTx(ctx, tx, ledgerName, env); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

func insertTx(ctx context.Context, tx *sql.Tx, ledgerName string, env *envelope.Envelope) error {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("archive: payload encode: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO envelopes
		(ledger, gef_version, sequence, record_id, record_type, agent_id, signer_public_key,
		 nonce, timestamp, causal_hash, payload, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ledgerName, env.GEFVersion, env.Sequence, env.RecordID, env.RecordType, env.AgentID,
		env.SignerPublicKey, env.Nonce, env.Timestamp, env.CausalHash,
		string(payload), env.Signature,
	)
	if err != nil {
		return fmt.Errorf("archive: insert sequence %d: %w", env.Sequence, err)
	}
	return nil
}

// BySequence returns envelopes with sequence in [from, to), ordered.
func (s *Store) BySequence(ctx context.Context, ledgerName string, from, to int64) ([]*envelope.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gef_version, sequence, record_id, record_type, agent_id, signer_public_key,
		       nonce, timestamp, causal_hash, payload, signature
		FROM envelopes
		WHERE ledger = ? AND sequence >= ? AND sequence < ?
		ORDER BY sequence`,
		ledgerName, from, to)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	return scanEnvelopes(rows)
}

// ByRecordType returns envelopes of one record type, ordered by sequence.
func (s *Store) ByRecordType(ctx context.Context, ledgerName, recordType string) ([]*envelope.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gef_version, sequence, record_id, record_type, agent_id, signer_public_key,
		       nonce, timestamp, causal_hash, payload, signature
		FROM envelopes
		WHERE ledger = ? AND record_type = ?
		ORDER BY sequence`,
		ledgerName, recordType)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	return scanEnvelopes(rows)
}

// Count returns the number of mirrored envelopes for a ledger.
func (s *Store) Count(ctx context.Context, ledgerName string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM envelopes WHERE ledger = ?`, ledgerName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

// CountByRecordType returns per-record-type entry counts for a ledger.
func (s *Store) CountByRecordType(ctx context.Context, ledgerName string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_type, COUNT(*)
		FROM envelopes WHERE ledger = ?
		GROUP BY record_type`, ledgerName)
	if err != nil {
		return nil, fmt.Errorf("archive: count by type: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int64)
	for rows.Next() {
		var rt string
		var n int64
		if err := rows.Scan(&rt, &n); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out[rt] = n
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEnvelopes(rows *sql.Rows) ([]*envelope.Envelope, error) {
	defer func() { _ = rows.Close() }()

	var out []*envelope.Envelope
	for rows.Next() {
		var env envelope.Envelope
		var payloadRaw string
		if err := rows.Scan(
			&env.GEFVersion, &env.Sequence, &env.RecordID, &env.RecordType, &env.AgentID,
			&env.SignerPublicKey, &env.Nonce, &env.Timestamp, &env.CausalHash,
			&payloadRaw, &env.Signature,
		); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadRaw), &env.Payload); err != nil {
			return nil, fmt.Errorf("archive: payload decode: %w", err)
		}
		out = append(out, &env)
	}
	return out, rows.Err()
}

// readAll loads every complete line of a verified ledger. Called only after
// replay succeeded, so parse failures are unexpected and returned as errors.
func readAll(path string) ([]*envelope.Envelope, error) {
	envs, err := replay.LoadEnvelopes(path)
	if err != nil {
		return nil, err
	}
	return envs, nil
}
