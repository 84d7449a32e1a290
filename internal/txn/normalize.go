package txn

import (
	"log/slog"
	"strings"
)

// normalizedFields are the free-text fields that get lowercased and trimmed.
var normalizedFields = []string{FieldStatus, FieldAssetType, FieldCounterparty}

// requiredFields must be present and of string type for a record to be valid.
var requiredFields = []string{FieldTransactionID, FieldStatus, FieldISIN}

// NormalizeValue lowercases and trims a string value. Non-string values pass
// through unchanged.
func NormalizeValue(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return v
}

// Normalize returns a copy of the record with its free-text fields cleaned.
// Fields absent from the input stay absent; normalization is idempotent.
func Normalize(r Record) Record {
	out := r.Clone()
	for _, field := range normalizedFields {
		if v, ok := out[field]; ok {
			out[field] = NormalizeValue(v)
		}
	}
	return out
}

// NormalizeBatch normalizes every record in the batch.
func NormalizeBatch(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Normalize(r)
	}
	return out
}

// Validate reports whether the record carries all required string fields and
// a transaction id not yet present in seen. On success the id is inserted
// into seen, so a shared set rejects duplicates across one validation pass.
// The set is owned by a single pass; callers must not share it concurrently.
func Validate(r Record, seen map[string]struct{}) bool {
	for _, field := range requiredFields {
		v, ok := r[field]
		if !ok {
			return false
		}
		if _, ok := v.(string); !ok {
			return false
		}
	}

	id := r[FieldTransactionID].(string)
	if _, dup := seen[id]; dup {
		return false
	}
	seen[id] = struct{}{}
	return true
}

// Prepare normalizes the batch and drops invalid or duplicate records,
// logging how many were skipped. This is the standard front door for every
// detector pass.
func Prepare(records []Record, logger *slog.Logger) []Record {
	seen := make(map[string]struct{}, len(records))
	valid := make([]Record, 0, len(records))
	for _, r := range NormalizeBatch(records) {
		if Validate(r, seen) {
			valid = append(valid, r)
		}
	}
	if dropped := len(records) - len(valid); dropped > 0 {
		logger.Warn("skipped invalid or duplicate transactions", "dropped", dropped, "kept", len(valid))
	}
	return valid
}
