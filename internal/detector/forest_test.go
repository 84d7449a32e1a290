package detector

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func forestConfig() config.ForestConfig {
	return config.ForestConfig{Estimators: 100, Contamination: 0.02, MaxFeatures: 0.8, Seed: 42}
}

func TestDetectForestEmptyBatch(t *testing.T) {
	out := DetectForest(nil, forestConfig(), discardLogger())
	assert.Empty(t, out.Flagged)
}

func TestDetectForestFlagsFarOutlier(t *testing.T) {
	// 99 unremarkable scores and one extreme outlier.
	var records []txn.Record
	for i := 0; i < 99; i++ {
		records = append(records, txn.Record{
			"transaction_id": fmt.Sprintf("T%03d", i),
			"status":         "settled",
			"ISIN":           "US1",
			"anomaly_score":  0.1 + float64(i%10)*0.01,
		})
	}
	records = append(records, txn.Record{
		"transaction_id": "T-OUTLIER",
		"status":         "failed",
		"ISIN":           "US1",
		"anomaly_score":  50.0,
	})

	// The ensemble is randomized but seeded; the extreme outlier must be
	// flagged on every run.
	for run := 0; run < 3; run++ {
		out := DetectForest(records, forestConfig(), discardLogger())
		require.NotEmpty(t, out.Flagged, "run %d", run)
		found := false
		for _, r := range out.Flagged {
			if id, _ := r.TransactionID(); id == "T-OUTLIER" {
				found = true
			}
		}
		assert.True(t, found, "run %d: outlier missing from flagged set", run)
	}
}

func TestDetectForestDeterministicWithSeed(t *testing.T) {
	var records []txn.Record
	for i := 0; i < 50; i++ {
		records = append(records, txn.Record{
			"transaction_id": fmt.Sprintf("T%02d", i),
			"status":         "settled",
			"ISIN":           "US1",
			"anomaly_score":  float64(i) * 0.1,
		})
	}

	first := DetectForest(records, forestConfig(), discardLogger())
	second := DetectForest(records, forestConfig(), discardLogger())

	assert.Equal(t, first.Threshold, second.Threshold)
	require.Equal(t, len(first.Flagged), len(second.Flagged))
	for i := range first.Flagged {
		a, _ := first.Flagged[i].TransactionID()
		b, _ := second.Flagged[i].TransactionID()
		assert.Equal(t, a, b)
	}
}

func TestIsolationForestScoresOutlierHigher(t *testing.T) {
	X := [][]float64{
		{0.1}, {0.12}, {0.09}, {0.11}, {0.1}, {0.13}, {0.08}, {0.1},
		{0.11}, {0.09}, {0.12}, {0.1}, {0.11}, {0.1}, {0.09}, {25.0},
	}
	f := &IsolationForest{Estimators: 100, MaxFeatures: 1, Seed: 1}
	f.Fit(X)
	scores := f.Scores(X)

	outlier := scores[len(scores)-1]
	for i := 0; i < len(scores)-1; i++ {
		assert.Greater(t, outlier, scores[i], "outlier should outscore inlier %d", i)
	}
}

func TestAvgPathLength(t *testing.T) {
	assert.Equal(t, 0.0, avgPathLength(0))
	assert.Equal(t, 0.0, avgPathLength(1))
	assert.InDelta(t, 0.154, avgPathLength(2), 0.01)
	// Grows with n.
	assert.Greater(t, avgPathLength(256), avgPathLength(16))
}

func TestBuildMatrix(t *testing.T) {
	records := []txn.Record{
		{"anomaly_score": 0.5},
		{"anomaly_score": 2},
		{}, // missing → 0
		{"anomaly_score": "bogus"}, // non-numeric → 0
	}
	X := BuildMatrix(records, nil)
	require.Len(t, X, 4)
	assert.Equal(t, []float64{0.5}, X[0])
	assert.Equal(t, []float64{2}, X[1])
	assert.Equal(t, []float64{0}, X[2])
	assert.Equal(t, []float64{0}, X[3])
}
