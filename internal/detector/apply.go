package detector

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/clearsettle/clearsettle/internal/safefile"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/clearsettle/clearsettle/internal/txn"
)

// ApplyResult summarizes the write-through of one detector pass.
type ApplyResult struct {
	FlaggedIDs []string
	Failed     int // records whose flag update exhausted retries
}

// Apply performs the shared post-detection work for a detector: mark each
// flagged record in the store (retried independently; one record's failure
// never aborts its siblings) and export the flagged set to a CSV side file.
// The export is best-effort and never fails the detection result.
func Apply(st *store.Store, retrier *store.Retrier, name, logsDir string, flagged []txn.Record, logger *slog.Logger) ApplyResult {
	var res ApplyResult
	for _, r := range flagged {
		id, ok := r.TransactionID()
		if !ok {
			continue
		}
		err := retrier.Do("flag update", id, func() error {
			return st.Update(id, map[string]any{txn.FieldAnomalyDetected: true})
		})
		if err != nil {
			logger.Error("flag update failed", "detector", name, "transaction_id", id, "error", err)
			res.Failed++
			continue
		}
		res.FlaggedIDs = append(res.FlaggedIDs, id)
	}

	if len(flagged) > 0 {
		if err := exportCSV(name, logsDir, flagged); err != nil {
			logger.Error("anomaly export failed", "detector", name, "error", err)
		} else {
			logger.Info("anomalies exported", "detector", name, "path", exportPath(name, logsDir))
		}
	}

	return res
}

func exportPath(name, logsDir string) string {
	// The forest detector predates the second detector and keeps the
	// original file name.
	if name == "forest" {
		return filepath.Join(logsDir, "anomalies.csv")
	}
	return filepath.Join(logsDir, fmt.Sprintf("anomalies_%s.csv", name))
}

func exportCSV(name, logsDir string, flagged []txn.Record) error {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"transaction_id", "status", "ISIN", "anomaly_score"}); err != nil {
		return err
	}
	for _, r := range flagged {
		id, _ := r.TransactionID()
		isin, _ := r[txn.FieldISIN].(string)
		row := []string{
			id,
			r.Status(),
			isin,
			strconv.FormatFloat(r.AnomalyScore(), 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return safefile.WriteFileAtomic(exportPath(name, logsDir), buf.Bytes(), 0o644)
}
