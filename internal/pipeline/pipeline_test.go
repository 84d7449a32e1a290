package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/detector"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identityModel = `{"layers": [{"weights": [[1]], "bias": [0], "activation": "linear"}]}`

func testRunner(t *testing.T) (*Runner, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Defaults()
	cfg.Store.Path = filepath.Join(dir, "test.db")
	cfg.LogsDir = filepath.Join(dir, "logs")
	cfg.Autoencoder.ModelPath = filepath.Join(dir, "autoencoder_model.json")
	cfg.Retry = config.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	require.NoError(t, os.WriteFile(cfg.Autoencoder.ModelPath, []byte(identityModel), 0o644))

	st, err := store.NewStore(cfg.Store.Path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return NewRunner(cfg, st, logger), st, dir
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "settlement_transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadNormalizesAndDropsDuplicates(t *testing.T) {
	r, st, dir := testRunner(t)
	path := writeInput(t, dir, `[
		{"transaction_id": "T1", "status": "Failed", "ISIN": "US1"},
		{"transaction_id": "T1", "status": "Settled", "ISIN": "US2"},
		{"transaction_id": 42, "status": "Settled", "ISIN": "US3"}
	]`)

	n, err := r.Upload(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got["status"], "first occurrence wins, normalized")
	assert.Equal(t, "US1", got["ISIN"])
}

func TestUploadBadFile(t *testing.T) {
	r, _, dir := testRunner(t)

	_, err := r.Upload(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	path := writeInput(t, dir, `{"not": "an array"}`)
	_, err = r.Upload(path)
	assert.Error(t, err)
}

func TestRunFullPipeline(t *testing.T) {
	r, st, dir := testRunner(t)

	// 60 ordinary settlements plus one extreme outlier.
	input := `[`
	for i := 0; i < 60; i++ {
		input += `{"transaction_id": "T` + string(rune('A'+i/10)) + string(rune('0'+i%10)) + `", "status": "Settled", "ISIN": "US1", "anomaly_score": 0.1},`
	}
	input += `{"transaction_id": "T-OUT", "status": "Failed", "ISIN": "US9", "anomaly_score": 40.0, "root_cause_tag": "Insufficient securities"}]`
	path := writeInput(t, dir, input)

	require.NoError(t, r.Run(path))

	// The outlier is flagged by the forest pass.
	out, err := st.Get("T-OUT")
	require.NoError(t, err)
	assert.Equal(t, true, out["anomaly_detected"])
	assert.Equal(t, "Initiate securities recall", out["recommendation"])

	// Ordinary records still got recommendations.
	ra, err := st.Get("TA0")
	require.NoError(t, err)
	assert.Equal(t, "Investigate manually", ra["recommendation"])

	// One audit entry per stored settlement, chained from genesis.
	n, err := st.CountAudit()
	require.NoError(t, err)
	assert.Equal(t, 61, n)

	count, err := st.CountSettlements()
	require.NoError(t, err)
	assert.Equal(t, 61, count)
}

func TestRunMissingModelSkipsAutoencoderOnly(t *testing.T) {
	r, st, dir := testRunner(t)
	require.NoError(t, os.Remove(r.cfg.Autoencoder.ModelPath))

	path := writeInput(t, dir, `[{"transaction_id": "T1", "status": "Failed", "ISIN": "US1"}]`)
	require.NoError(t, r.Run(path), "missing model must not abort the run")

	// Later stages still ran.
	got, err := st.Get("T1")
	require.NoError(t, err)
	assert.NotNil(t, got["recommendation"])

	n, err := st.CountAudit()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunUploadFailureIsFatal(t *testing.T) {
	r, st, dir := testRunner(t)

	err := r.Run(filepath.Join(dir, "missing.json"))
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "upload", stageErr.Stage)

	// Nothing ran.
	n, err := st.CountAudit()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDetectAutoencoderSurfacesModelError(t *testing.T) {
	r, _, _ := testRunner(t)
	require.NoError(t, os.WriteFile(r.cfg.Autoencoder.ModelPath, []byte(`broken`), 0o644))

	_, err := r.DetectAutoencoder()
	assert.True(t, errors.Is(err, detector.ErrModelUnavailable))
}

func TestStagesOnEmptyStore(t *testing.T) {
	r, _, _ := testRunner(t)

	ids, err := r.DetectForest()
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = r.DetectAutoencoder()
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := r.Recommend()
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.Chain()
	require.NoError(t, err)
	assert.Zero(t, n)
}
