// Package auditchain derives the tamper-evident audit log from the
// settlements snapshot. Each entry carries the hash of its predecessor,
// so any retroactive edit breaks every later link.
package auditchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/clearsettle/clearsettle/internal/store"
)

// GenesisHash is the fixed previous_hash sentinel of the first entry.
const GenesisHash = "0000"

// EntryHash digests one entry's content. The previous hash is carried on
// the entry but chains by reference, not by inclusion in the digest.
func EntryHash(transactionID, timestamp, action, actor string) string {
	sum := sha256.Sum256([]byte(transactionID + timestamp + action + actor))
	return hex.EncodeToString(sum[:])
}

// Builder appends one chained audit entry per settlement in the snapshot.
// It is the sole owner of chain order: records are processed in snapshot
// order, single-writer, no reordering.
type Builder struct {
	store   *store.Store
	retrier *store.Retrier
	actor   string
	logger  *slog.Logger
	now     func() time.Time // overridable in tests
}

// NewBuilder wires a chain builder against the given store.
func NewBuilder(st *store.Store, retrier *store.Retrier, actor string, logger *slog.Logger) *Builder {
	return &Builder{store: st, retrier: retrier, actor: actor, logger: logger, now: time.Now}
}

// Build reads the settlements snapshot once and appends one entry per
// record with an identifiable transaction id. Records without one are
// skipped and do not consume a chain position. A failed append aborts the
// build: advancing past a missing entry would corrupt the linkage.
func (b *Builder) Build() (int, error) {
	records, err := b.store.StreamAll()
	if err != nil {
		return 0, fmt.Errorf("fetching settlements snapshot: %w", err)
	}
	if len(records) == 0 {
		b.logger.Warn("no settlements found for audit logging")
		return 0, nil
	}

	previous := GenesisHash
	appended := 0
	for _, r := range records {
		id, ok := r.TransactionID()
		if !ok {
			b.logger.Warn("skipping settlement with missing transaction id")
			continue
		}

		timestamp := b.now().UTC().Format(time.RFC3339)
		action := fmt.Sprintf("Settlement status updated to '%s'", r.Status())
		entry := store.AuditEntry{
			TransactionID: id,
			Timestamp:     timestamp,
			Action:        action,
			Actor:         b.actor,
			PreviousHash:  previous,
			Hash:          EntryHash(id, timestamp, action, b.actor),
		}

		if err := b.retrier.Do("audit append", id, func() error {
			return b.store.AppendAudit(entry)
		}); err != nil {
			return appended, fmt.Errorf("appending chain entry: %w", err)
		}

		previous = entry.Hash
		appended++
	}

	b.logger.Info("audit chain extended", "entries", appended, "snapshot", len(records))
	return appended, nil
}
