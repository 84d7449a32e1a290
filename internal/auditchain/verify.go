package auditchain

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/store"
)

// VerifyResult reports the outcome of a chain verification walk.
type VerifyResult struct {
	Entries int    `json:"entries"`
	OK      bool   `json:"ok"`
	Broken  int    `json:"broken"`           // index of the first bad entry when !OK
	Reason  string `json:"reason,omitempty"` // human-readable description of the break
}

// Verify walks the chain in append order, recomputing each entry's digest
// and checking that every previous_hash matches its predecessor. Each
// builder invocation roots a fresh segment at the genesis sentinel, so an
// entry carrying the sentinel restarts the walk. The walk stops at the
// first break; everything before it is still intact.
func Verify(entries []store.AuditEntry) VerifyResult {
	res := VerifyResult{Entries: len(entries), OK: true}

	previous := GenesisHash
	for i, e := range entries {
		if e.PreviousHash == GenesisHash {
			previous = GenesisHash
		}
		if e.PreviousHash != previous {
			return VerifyResult{
				Entries: len(entries), Broken: i,
				Reason: fmt.Sprintf("entry %d (%s): previous_hash %.8s does not match predecessor hash %.8s", i, e.TransactionID, e.PreviousHash, previous),
			}
		}
		if got := EntryHash(e.TransactionID, e.Timestamp, e.Action, e.Actor); got != e.Hash {
			return VerifyResult{
				Entries: len(entries), Broken: i,
				Reason: fmt.Sprintf("entry %d (%s): stored hash %.8s does not match recomputed content hash", i, e.TransactionID, e.Hash),
			}
		}
		previous = e.Hash
	}
	return res
}
