package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/safefile"
	"github.com/clearsettle/clearsettle/internal/txn"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrModelUnavailable marks a missing or incompatible model artifact. It is
// fatal to the autoencoder stage only; the forest detector and the audit
// chain are unaffected.
var ErrModelUnavailable = errors.New("autoencoder model unavailable")

// maxModelBytes caps the model artifact size on load.
const maxModelBytes = 64 << 20

// Model reconstructs a batch of scaled feature vectors. Implementations
// are opaque to the detector; anything that can compress and decompress a
// batch qualifies.
type Model interface {
	Reconstruct(batch [][]float64) ([][]float64, error)
}

// Scaler standardizes features to zero mean and unit variance, column by
// column. Columns with no spread pass through unscaled.
type Scaler struct {
	mean []float64
	std  []float64
}

// Fit computes per-column mean and standard deviation over the batch.
func (s *Scaler) Fit(X [][]float64) {
	if len(X) == 0 {
		s.mean, s.std = nil, nil
		return
	}
	dims := len(X[0])
	s.mean = make([]float64, dims)
	s.std = make([]float64, dims)
	col := make([]float64, len(X))
	for j := 0; j < dims; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.mean[j] = stat.Mean(col, nil)
		s.std[j] = stat.StdDev(col, nil)
		if s.std[j] == 0 || math.IsNaN(s.std[j]) {
			s.std[j] = 1
		}
	}
}

// Transform returns the standardized batch. Fit must have been called.
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.std[j]
		}
		out[i] = scaled
	}
	return out
}

// DenseModel is a feed-forward network loaded from a JSON weights
// artifact: a stack of dense layers with relu or linear activations.
type DenseModel struct {
	layers []denseLayer
}

type denseLayer struct {
	weights    *mat.Dense // in x out
	bias       []float64
	activation string
}

type modelArtifact struct {
	Layers []struct {
		Weights    [][]float64 `json:"weights"`
		Bias       []float64   `json:"bias"`
		Activation string      `json:"activation"`
	} `json:"layers"`
}

// LoadModel reads a dense-network artifact from path. Missing files and
// malformed or inconsistent artifacts return ErrModelUnavailable.
func LoadModel(path string) (*DenseModel, error) {
	data, err := safefile.ReadFileMax(path, maxModelBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var artifact modelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrModelUnavailable, path, err)
	}
	if len(artifact.Layers) == 0 {
		return nil, fmt.Errorf("%w: %s has no layers", ErrModelUnavailable, path)
	}

	m := &DenseModel{}
	prevOut := -1
	for i, l := range artifact.Layers {
		in := len(l.Weights)
		if in == 0 {
			return nil, fmt.Errorf("%w: layer %d has empty weights", ErrModelUnavailable, i)
		}
		out := len(l.Weights[0])
		if prevOut != -1 && in != prevOut {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer emits %d", ErrModelUnavailable, i, in, prevOut)
		}
		if len(l.Bias) != out {
			return nil, fmt.Errorf("%w: layer %d bias size %d, want %d", ErrModelUnavailable, i, len(l.Bias), out)
		}
		switch l.Activation {
		case "relu", "linear":
		default:
			return nil, fmt.Errorf("%w: layer %d has unsupported activation %q", ErrModelUnavailable, i, l.Activation)
		}

		w := mat.NewDense(in, out, nil)
		for r, row := range l.Weights {
			if len(row) != out {
				return nil, fmt.Errorf("%w: layer %d has a ragged weight matrix", ErrModelUnavailable, i)
			}
			w.SetRow(r, row)
		}
		m.layers = append(m.layers, denseLayer{weights: w, bias: l.Bias, activation: l.Activation})
		prevOut = out
	}

	return m, nil
}

// InputDim returns the feature width the model expects.
func (m *DenseModel) InputDim() int {
	r, _ := m.layers[0].weights.Dims()
	return r
}

// Reconstruct runs the batch through the network.
func (m *DenseModel) Reconstruct(batch [][]float64) ([][]float64, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	dims := len(batch[0])
	if dims != m.InputDim() {
		return nil, fmt.Errorf("%w: batch has %d features, model expects %d", ErrModelUnavailable, dims, m.InputDim())
	}

	x := mat.NewDense(len(batch), dims, nil)
	for i, row := range batch {
		x.SetRow(i, row)
	}

	for _, layer := range m.layers {
		_, out := layer.weights.Dims()
		next := mat.NewDense(len(batch), out, nil)
		next.Mul(x, layer.weights)
		for i := 0; i < len(batch); i++ {
			for j := 0; j < out; j++ {
				v := next.At(i, j) + layer.bias[j]
				if layer.activation == "relu" && v < 0 {
					v = 0
				}
				next.Set(i, j, v)
			}
		}
		x = next
	}

	rows, cols := x.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		copy(out[i], x.RawRowView(i))
	}
	return out, nil
}

// ReconstructionErrors returns the per-row mean squared difference between
// the scaled input and its reconstruction.
func ReconstructionErrors(scaled, reconstructed [][]float64) []float64 {
	errs := make([]float64, len(scaled))
	for i := range scaled {
		var sum float64
		for j := range scaled[i] {
			d := scaled[i][j] - reconstructed[i][j]
			sum += d * d
		}
		errs[i] = sum / float64(len(scaled[i]))
	}
	return errs
}

// AutoencoderOutcome is the result of one autoencoder detection pass.
type AutoencoderOutcome struct {
	Flagged []txn.Record
	Errors  []float64
}

// DetectAutoencoder scales the batch, reconstructs it through the model
// and flags every record whose reconstruction error strictly exceeds the
// threshold. A record exactly at the threshold is not flagged.
//
// The scaler is fit on the inference batch itself, so reconstruction
// errors are relative to the batch being scored, not to training data.
func DetectAutoencoder(records []txn.Record, model Model, cfg config.AutoencoderConfig, logger *slog.Logger) (AutoencoderOutcome, error) {
	if len(records) == 0 {
		logger.Warn("no valid settlement data found")
		return AutoencoderOutcome{}, nil
	}

	X := BuildMatrix(records, cfg.Features)

	scaler := &Scaler{}
	scaler.Fit(X)
	scaled := scaler.Transform(X)

	reconstructed, err := model.Reconstruct(scaled)
	if err != nil {
		return AutoencoderOutcome{}, fmt.Errorf("reconstructing batch: %w", err)
	}

	errs := ReconstructionErrors(scaled, reconstructed)
	var flagged []txn.Record
	for i, e := range errs {
		if e > cfg.Threshold {
			flagged = append(flagged, records[i])
		}
	}

	logger.Info("autoencoder pass complete",
		"threshold", cfg.Threshold, "flagged", len(flagged), "total", len(records))
	return AutoencoderOutcome{Flagged: flagged, Errors: errs}, nil
}
