// Package store is the document store backing the pipeline: a settlements
// collection keyed by transaction id and an append-only audit_log collection.
// A Store is constructed explicitly and handed to each pipeline stage; there
// is no process-wide handle.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/clearsettle/clearsettle/internal/txn"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id TEXT NOT NULL UNIQUE,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	transaction_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	action TEXT NOT NULL,
	actor TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_txn ON audit_log(transaction_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
`

// ErrNotFound is returned when a settlement id has no document.
var ErrNotFound = fmt.Errorf("settlement not found")

// Store manages the SQLite document store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the SQLite document store.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("setting WAL mode: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("creating schema: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BatchWrite upserts all records in a single transaction. Records keep
// their original insertion position on re-upload so snapshot order stays
// stable across runs.
func (s *Store) BatchWrite(records []txn.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO settlements (transaction_id, doc) VALUES (?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET doc = excluded.doc`)
	if err != nil {
		return fmt.Errorf("preparing batch write: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		id, ok := r.TransactionID()
		if !ok {
			return fmt.Errorf("record without transaction id in batch")
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", id, err)
		}
		if _, err := stmt.Exec(id, string(doc)); err != nil {
			return fmt.Errorf("writing %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch write: %w", err)
	}
	return nil
}

// Get returns the settlement document for the given transaction id.
func (s *Store) Get(id string) (txn.Record, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM settlements WHERE transaction_id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}

	var r txn.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", id, err)
	}
	return r, nil
}

// StreamAll returns the full settlements snapshot in insertion order. The
// audit chain builder depends on this order being stable between calls
// against an unchanged store.
func (s *Store) StreamAll() ([]txn.Record, error) {
	rows, err := s.db.Query(`SELECT doc FROM settlements ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("streaming settlements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []txn.Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var r txn.Record
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Update merges partial fields into the settlement document for id.
// Missing documents return ErrNotFound.
func (s *Store) Update(id string, fields map[string]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var doc string
	err = tx.QueryRow(`SELECT doc FROM settlements WHERE transaction_id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", id, err)
	}

	var r txn.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return fmt.Errorf("decoding %s: %w", id, err)
	}
	for k, v := range fields {
		r[k] = v
	}
	merged, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}

	if _, err := tx.Exec(`UPDATE settlements SET doc = ? WHERE transaction_id = ?`, string(merged), id); err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update of %s: %w", id, err)
	}
	return nil
}

// CountSettlements returns the number of stored settlement documents.
func (s *Store) CountSettlements() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM settlements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting settlements: %w", err)
	}
	return n, nil
}
