// Package txn defines the settlement transaction record and the
// normalization/validation pass every batch goes through before detection.
package txn

// Record is one settlement instruction as stored in the document store.
// Records are schemaless: detectors and the audit chain only rely on the
// fields they read, everything else passes through untouched.
type Record map[string]any

// Fields with well-known meaning. Historical exports used CamelCase
// variants for some of them, so readers fall back where noted.
const (
	FieldTransactionID    = "transaction_id"
	FieldTransactionIDAlt = "TransactionID"
	FieldStatus           = "status"
	FieldStatusAlt        = "SettlementStatus"
	FieldISIN             = "ISIN"
	FieldAssetType        = "asset_type"
	FieldCounterparty     = "counterparty"
	FieldAnomalyScore     = "anomaly_score"
	FieldAnomalyDetected  = "anomaly_detected"
	FieldRootCauseTag     = "root_cause_tag"
	FieldRecommendation   = "recommendation"
)

// TransactionID returns the record's transaction id, trying the canonical
// field first and the legacy CamelCase variant second. ok is false when
// neither holds a non-empty string.
func (r Record) TransactionID() (string, bool) {
	for _, key := range []string{FieldTransactionID, FieldTransactionIDAlt} {
		if s, ok := r[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Status returns the record's settlement status, falling back to the legacy
// field name, or "unknown" when absent.
func (r Record) Status() string {
	for _, key := range []string{FieldStatus, FieldStatusAlt} {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

// AnomalyScore returns the record's anomaly score feature. Missing or
// non-numeric values count as 0, matching how detectors fill gaps.
func (r Record) AnomalyScore() float64 {
	return Float(r[FieldAnomalyScore])
}

// Float coerces a document store value to float64. JSON decoding yields
// float64 for all numbers, but ints appear when records are built in code.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
