// Package pipeline sequences the settlement monitoring run: upload,
// both anomaly detectors, recommendation assignment, audit chain. Stages
// execute strictly in order and fail fast; completed stages are never
// rolled back.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clearsettle/clearsettle/internal/auditchain"
	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/detector"
	"github.com/clearsettle/clearsettle/internal/recommend"
	"github.com/clearsettle/clearsettle/internal/safefile"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/clearsettle/clearsettle/internal/txn"
)

// maxUploadBytes caps the settlement input file size.
const maxUploadBytes = 256 << 20

// StageError marks the pipeline stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Runner executes pipeline stages against an injected store.
type Runner struct {
	cfg     *config.Config
	store   *store.Store
	retrier *store.Retrier
	logger  *slog.Logger
}

// NewRunner wires a pipeline runner.
func NewRunner(cfg *config.Config, st *store.Store, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   st,
		retrier: store.NewRetrier(cfg.Retry, logger),
		logger:  logger,
	}
}

// Upload loads a JSON array of settlement transactions, normalizes and
// validates them, and batch-writes the survivors to the store. Invalid or
// duplicate records are dropped with a logged count.
func (r *Runner) Upload(dataFile string) (int, error) {
	data, err := safefile.ReadFileMax(dataFile, maxUploadBytes)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dataFile, err)
	}

	var records []txn.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", dataFile, err)
	}
	r.logger.Info("loaded transactions from file", "path", dataFile, "count", len(records))

	valid := txn.Prepare(records, r.logger)
	if len(valid) == 0 {
		r.logger.Warn("no valid transactions to upload")
		return 0, nil
	}

	if err := r.store.BatchWrite(valid); err != nil {
		return 0, fmt.Errorf("uploading settlements: %w", err)
	}
	r.logger.Info("settlements uploaded", "count", len(valid))
	return len(valid), nil
}

// snapshot fetches the full settlements collection and runs the
// normalization/validation pass over it. Every caller gets an independent
// copy with a fresh duplicate-tracking set.
func (r *Runner) snapshot() ([]txn.Record, error) {
	records, err := r.store.StreamAll()
	if err != nil {
		return nil, fmt.Errorf("fetching settlements: %w", err)
	}
	return txn.Prepare(records, r.logger), nil
}

// DetectForest runs the isolation forest pass and applies its results.
func (r *Runner) DetectForest() ([]string, error) {
	records, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	out := detector.DetectForest(records, r.cfg.Forest, r.logger)
	res := detector.Apply(r.store, r.retrier, "forest", r.cfg.LogsDir, out.Flagged, r.logger)
	if res.Failed > 0 {
		r.logger.Warn("forest pass had partial write failures", "failed", res.Failed)
	}
	return res.FlaggedIDs, nil
}

// DetectAutoencoder loads the model artifact, runs the reconstruction
// pass and applies its results. A missing or incompatible artifact
// surfaces as detector.ErrModelUnavailable.
func (r *Runner) DetectAutoencoder() ([]string, error) {
	model, err := detector.LoadModel(r.cfg.Autoencoder.ModelPath)
	if err != nil {
		return nil, err
	}

	records, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	out, err := detector.DetectAutoencoder(records, model, r.cfg.Autoencoder, r.logger)
	if err != nil {
		return nil, err
	}
	res := detector.Apply(r.store, r.retrier, "autoencoder", r.cfg.LogsDir, out.Flagged, r.logger)
	if res.Failed > 0 {
		r.logger.Warn("autoencoder pass had partial write failures", "failed", res.Failed)
	}
	return res.FlaggedIDs, nil
}

// Recommend assigns repair recommendations across the store.
func (r *Runner) Recommend() (int, error) {
	return recommend.Apply(r.store, r.retrier, r.logger)
}

// Chain extends the hash-chained audit log from the current snapshot.
func (r *Runner) Chain() (int, error) {
	builder := auditchain.NewBuilder(r.store, r.retrier, r.cfg.Actor, r.logger)
	return builder.Build()
}

// Run executes the full pipeline from a settlement input file. The first
// failing stage aborts the rest of the run; an unavailable autoencoder
// model only skips that detector.
func (r *Runner) Run(dataFile string) error {
	r.logger.Info("starting settlement pipeline", "input", dataFile)

	if _, err := r.Upload(dataFile); err != nil {
		return &StageError{Stage: "upload", Err: err}
	}

	forestIDs, err := r.DetectForest()
	if err != nil {
		return &StageError{Stage: "detect-forest", Err: err}
	}
	r.logger.Info("forest detection completed", "flagged", len(forestIDs))

	aeIDs, err := r.DetectAutoencoder()
	switch {
	case errors.Is(err, detector.ErrModelUnavailable):
		r.logger.Error("autoencoder unavailable, skipping detector", "error", err)
	case err != nil:
		return &StageError{Stage: "detect-autoencoder", Err: err}
	default:
		r.logger.Info("autoencoder detection completed", "flagged", len(aeIDs))
	}

	if _, err := r.Recommend(); err != nil {
		return &StageError{Stage: "recommend", Err: err}
	}

	if _, err := r.Chain(); err != nil {
		return &StageError{Stage: "audit-chain", Err: err}
	}

	r.logger.Info("pipeline completed")
	return nil
}
