package detector

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/txn"
	"gonum.org/v1/gonum/stat"
)

// maxTreeSample caps the per-tree subsample; beyond this, extra rows add
// compute without improving isolation depth estimates.
const maxTreeSample = 256

// IsolationForest is an unsupervised ensemble outlier scorer. Each tree
// isolates points by random axis-aligned splits; anomalous points isolate
// in fewer splits and therefore get shorter average path lengths.
type IsolationForest struct {
	Estimators  int
	MaxFeatures float64 // fraction of features sampled per tree
	Seed        int64

	trees      []*isoTree
	sampleSize int
}

type isoTree struct {
	features []int
	root     *isoNode
}

type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int // rows at this node, set on leaves
}

// Fit builds the ensemble over the batch. The forest is refit on every
// batch; with a fixed seed an identical batch yields identical trees.
func (f *IsolationForest) Fit(X [][]float64) {
	n := len(X)
	if n == 0 {
		f.trees = nil
		return
	}

	f.sampleSize = n
	if f.sampleSize > maxTreeSample {
		f.sampleSize = maxTreeSample
	}

	dims := len(X[0])
	nFeatures := int(float64(dims) * f.MaxFeatures)
	if nFeatures < 1 {
		nFeatures = 1
	}
	depthLimit := int(math.Ceil(math.Log2(float64(f.sampleSize)))) + 1

	rng := rand.New(rand.NewSource(f.Seed))
	f.trees = make([]*isoTree, f.Estimators)
	for i := range f.trees {
		sample := make([][]float64, f.sampleSize)
		for j, idx := range rng.Perm(n)[:f.sampleSize] {
			sample[j] = X[idx]
		}
		features := rng.Perm(dims)[:nFeatures]
		f.trees[i] = &isoTree{
			features: features,
			root:     buildIsoNode(sample, features, 0, depthLimit, rng),
		}
	}
}

func buildIsoNode(rows [][]float64, features []int, depth, limit int, rng *rand.Rand) *isoNode {
	if len(rows) <= 1 || depth >= limit {
		return &isoNode{size: len(rows)}
	}

	feature := features[rng.Intn(len(features))]
	lo, hi := rows[0][feature], rows[0][feature]
	for _, row := range rows[1:] {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	if lo == hi {
		// No spread left on the sampled feature; the points are
		// indistinguishable here.
		return &isoNode{size: len(rows)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildIsoNode(left, features, depth+1, limit, rng),
		right:   buildIsoNode(right, features, depth+1, limit, rng),
	}
}

// Score returns the anomaly score for one point in [0, 1]; values near 1
// indicate outliers.
func (f *IsolationForest) Score(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t.root, x, 0)
	}
	mean := total / float64(len(f.trees))
	return math.Exp2(-mean / avgPathLength(f.sampleSize))
}

// Scores scores every row of the batch.
func (f *IsolationForest) Scores(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = f.Score(x)
	}
	return out
}

func pathLength(n *isoNode, x []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if x[n.feature] < n.split {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points, used to normalize depths.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649 // Euler-Mascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// ForestOutcome is the result of one forest detection pass.
type ForestOutcome struct {
	Flagged   []txn.Record
	Threshold float64
}

// DetectForest fits an isolation forest over the batch's anomaly-score
// feature and flags records whose score exceeds the contamination
// quantile of the batch. An empty batch yields an empty outcome.
func DetectForest(records []txn.Record, cfg config.ForestConfig, logger *slog.Logger) ForestOutcome {
	if len(records) == 0 {
		logger.Warn("no valid settlement data found")
		return ForestOutcome{}
	}

	X := BuildMatrix(records, nil)
	forest := &IsolationForest{
		Estimators:  cfg.Estimators,
		MaxFeatures: cfg.MaxFeatures,
		Seed:        cfg.Seed,
	}
	forest.Fit(X)
	scores := forest.Scores(X)

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(1-cfg.Contamination, stat.Empirical, sorted, nil)

	var flagged []txn.Record
	for i, s := range scores {
		if s > threshold {
			flagged = append(flagged, records[i])
		}
	}

	logger.Info("isolation forest pass complete",
		"threshold", threshold, "flagged", len(flagged), "total", len(records))
	return ForestOutcome{Flagged: flagged, Threshold: threshold}
}
