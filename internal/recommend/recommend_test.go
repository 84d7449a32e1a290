package recommend

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/clearsettle/clearsettle/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForTag(t *testing.T) {
	assert.Equal(t, "Initiate securities recall", ForTag("Insufficient securities"))
	assert.Equal(t, "Investigate unusual settlement pattern", ForTag("anomaly_detected"))
	assert.Equal(t, DefaultRecommendation, ForTag("never heard of it"))
	assert.Equal(t, DefaultRecommendation, ForTag(""))
}

func TestApply(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	retrier := store.NewRetrier(config.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, logger)

	require.NoError(t, st.BatchWrite([]txn.Record{
		{"transaction_id": "T1", "status": "failed", "ISIN": "US1", "root_cause_tag": "Insufficient securities"},
		{"transaction_id": "T2", "status": "failed", "ISIN": "US2", "root_cause_tag": "mystery"},
		{"transaction_id": "T3", "status": "settled", "ISIN": "US3"},
	}))

	updated, err := Apply(st, retrier, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	r1, err := st.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, "Initiate securities recall", r1["recommendation"])

	r2, err := st.Get("T2")
	require.NoError(t, err)
	assert.Equal(t, DefaultRecommendation, r2["recommendation"])

	r3, err := st.Get("T3")
	require.NoError(t, err)
	assert.Equal(t, DefaultRecommendation, r3["recommendation"], "missing tag falls back")
}

func TestApplyEmptyStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	retrier := store.NewRetrier(config.Defaults().Retry, logger)
	updated, err := Apply(st, retrier, logger)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
