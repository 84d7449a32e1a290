// Package recommend maps a settlement's root-cause tag to the repair
// recommendation an analyst should start from.
package recommend

import (
	"fmt"
	"log/slog"

	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/clearsettle/clearsettle/internal/txn"
)

// DefaultRecommendation is used for tags with no known playbook.
const DefaultRecommendation = "Investigate manually"

// byTag is the static root-cause playbook.
var byTag = map[string]string{
	"Insufficient securities":      "Initiate securities recall",
	"Counterparty liquidity issue": "Request liquidity injection from counterparty",
	"Settlement window mismatch":   "Initiate trade matching earlier",
	"anomaly_detected":             "Investigate unusual settlement pattern",
	"normal":                       "Follow standard repair process – pattern is common",
}

// ForTag returns the recommendation text for a root-cause tag.
func ForTag(tag string) string {
	if rec, ok := byTag[tag]; ok {
		return rec
	}
	return DefaultRecommendation
}

// Apply writes a recommendation onto every settlement in the store, keyed
// off its root_cause_tag. Returns the number of records updated.
func Apply(st *store.Store, retrier *store.Retrier, logger *slog.Logger) (int, error) {
	records, err := st.StreamAll()
	if err != nil {
		return 0, fmt.Errorf("fetching settlements: %w", err)
	}
	if len(records) == 0 {
		logger.Warn("no settlements found for recommendations")
		return 0, nil
	}

	updated := 0
	for _, r := range records {
		id, ok := r.TransactionID()
		if !ok {
			logger.Warn("skipping settlement with missing transaction id")
			continue
		}
		tag, _ := r[txn.FieldRootCauseTag].(string)
		rec := ForTag(tag)

		if err := retrier.Do("recommendation update", id, func() error {
			return st.Update(id, map[string]any{txn.FieldRecommendation: rec})
		}); err != nil {
			return updated, fmt.Errorf("updating recommendation: %w", err)
		}
		updated++
	}

	logger.Info("recommendations updated", "count", updated)
	return updated, nil
}
