package store

import (
	"fmt"

	"github.com/google/uuid"
)

// AuditEntry is one immutable record in the hash-chained audit log.
type AuditEntry struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	Timestamp     string `json:"timestamp"` // RFC 3339 UTC
	Action        string `json:"action"`
	Actor         string `json:"actor"`
	PreviousHash  string `json:"previous_hash"`
	Hash          string `json:"hash"`
}

// AuditQuery holds filters for audit log queries. Results come back newest
// first.
type AuditQuery struct {
	TransactionID string
	Since         string // RFC 3339 lower bound on timestamp
	Limit         int
}

// AppendAudit appends one entry to the audit log. Entries are never updated
// or deleted. An empty ID is assigned a fresh one.
func (s *Store) AppendAudit(e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_log (id, transaction_id, timestamp, action, actor, previous_hash, hash) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TransactionID, e.Timestamp, e.Action, e.Actor, e.PreviousHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry for %s: %w", e.TransactionID, err)
	}
	return nil
}

// QueryAudit returns audit entries matching the given filters, newest first.
func (s *Store) QueryAudit(q AuditQuery) ([]AuditEntry, error) {
	query := `SELECT id, transaction_id, timestamp, action, actor, previous_hash, hash FROM audit_log WHERE 1=1`
	var args []any

	if q.TransactionID != "" {
		query += " AND transaction_id = ?"
		args = append(args, q.TransactionID)
	}
	if q.Since != "" {
		query += " AND timestamp >= ?"
		args = append(args, q.Since)
	}

	query += " ORDER BY seq DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	} else {
		query += " LIMIT 50"
	}

	return s.scanAuditEntries(query, args...)
}

// AuditChain returns the complete audit log in append order, the order the
// hash chain was built in.
func (s *Store) AuditChain() ([]AuditEntry, error) {
	return s.scanAuditEntries(`SELECT id, transaction_id, timestamp, action, actor, previous_hash, hash FROM audit_log ORDER BY seq`)
}

// CountAudit returns the number of audit entries.
func (s *Store) CountAudit() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit entries: %w", err)
	}
	return n, nil
}

func (s *Store) scanAuditEntries(query string, args ...any) ([]AuditEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Timestamp, &e.Action, &e.Actor, &e.PreviousHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
