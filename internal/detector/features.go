// Package detector holds the two anomaly detectors that score settlement
// batches: an isolation forest fit per batch and a reconstruction-error
// check against a pre-trained autoencoder. The detectors are independent;
// a record may be flagged by neither, either, or both.
package detector

import "github.com/clearsettle/clearsettle/internal/txn"

// DefaultFeatures is the feature set both detectors use unless configured
// otherwise.
var DefaultFeatures = []string{txn.FieldAnomalyScore}

// BuildMatrix extracts one feature vector per record. Missing or
// non-numeric values count as 0.
func BuildMatrix(records []txn.Record, fields []string) [][]float64 {
	if len(fields) == 0 {
		fields = DefaultFeatures
	}
	X := make([][]float64, len(records))
	for i, r := range records {
		row := make([]float64, len(fields))
		for j, f := range fields {
			row[j] = txn.Float(r[f])
		}
		X[i] = row
	}
	return X
}
