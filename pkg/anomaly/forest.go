// Package anomaly implements unsupervised anomaly detection over numeric
// feature matrices using an isolation forest: an ensemble of randomized
// partitioning trees in which points that separate from the bulk in unusually
// few splits score as anomalous.
package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Config controls forest construction and flagging.
type Config struct {
	// Trees is the ensemble size.
	Trees int
	// SubsampleSize is the per-tree sample size; capped at the dataset size.
	SubsampleSize int
	// Contamination is the expected fraction of anomalous rows in [0, 0.5].
	Contamination float64
	// Seed fixes the ensemble's randomness. Per-tree generators are derived
	// from Seed and the tree index, so results are reproducible even when
	// trees are built concurrently.
	Seed int64
}

// DefaultConfig returns the standard configuration: 100 trees over subsamples
// of 256 rows, 10% expected contamination, fixed seed.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		SubsampleSize: 256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// node is a single partition in an isolation tree. Leaves carry the number of
// sample rows that ended there.
type node struct {
	feature int
	split   float64
	left    *node
	right   *node
	size    int
}

// IsolationForest is a fitted ensemble. Fit must be called before Scores or
// Flag. A fitted forest is safe for concurrent scoring.
type IsolationForest struct {
	cfg      Config
	trees    []*node
	norm     float64 // c(subsample) path-length normalizer
	features int
}

// New returns an unfitted forest with the given configuration. Zero-value
// fields fall back to DefaultConfig values.
func New(cfg Config) *IsolationForest {
	def := DefaultConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.SubsampleSize <= 0 {
		cfg.SubsampleSize = def.SubsampleSize
	}
	if cfg.Contamination <= 0 {
		cfg.Contamination = def.Contamination
	}
	return &IsolationForest{cfg: cfg}
}

// Fit builds the ensemble over the given row-major feature matrix.
func (f *IsolationForest) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return fmt.Errorf("empty feature matrix")
	}
	f.features = len(matrix[0])
	if f.features == 0 {
		return fmt.Errorf("feature matrix has no columns")
	}
	for i, row := range matrix {
		if len(row) != f.features {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), f.features)
		}
	}

	sample := f.cfg.SubsampleSize
	if sample > len(matrix) {
		sample = len(matrix)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))
	if maxDepth < 1 {
		maxDepth = 1
	}
	f.norm = avgPathLength(sample)
	f.trees = make([]*node, f.cfg.Trees)

	var wg sync.WaitGroup
	for i := range f.trees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(f.cfg.Seed + int64(i)))
			idx := rng.Perm(len(matrix))[:sample]
			rows := make([][]float64, sample)
			for j, r := range idx {
				rows[j] = matrix[r]
			}
			f.trees[i] = buildTree(rows, rng, 0, maxDepth)
		}(i)
	}
	wg.Wait()
	return nil
}

// Scores returns the anomaly score of every row in [0,1]; higher means more
// isolated. Scores are deterministic for a given seed.
func (f *IsolationForest) Scores(matrix [][]float64) ([]float64, error) {
	if f.trees == nil {
		return nil, fmt.Errorf("forest not fitted")
	}
	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != f.features {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), f.features)
		}
		var total float64
		for _, t := range f.trees {
			total += pathLength(t, row, 0)
		}
		mean := total / float64(len(f.trees))
		scores[i] = math.Pow(2, -mean/f.norm)
	}
	return scores, nil
}

// Flag fits nothing; it scores the matrix and returns the indices of the
// floor(contamination*n) highest-scoring rows (at least one), ascending. Ties
// resolve to the lower row index.
func (f *IsolationForest) Flag(matrix [][]float64) ([]int, error) {
	scores, err := f.Scores(matrix)
	if err != nil {
		return nil, err
	}
	k := int(f.cfg.Contamination * float64(len(matrix)))
	if k < 1 {
		k = 1
	}
	if k > len(matrix) {
		k = len(matrix)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	flagged := append([]int(nil), order[:k]...)
	sort.Ints(flagged)
	return flagged, nil
}

// buildTree recursively partitions rows on a random feature at a random split
// point until rows are isolated or the depth limit is reached.
func buildTree(rows [][]float64, rng *rand.Rand, depth, maxDepth int) *node {
	if len(rows) <= 1 || depth >= maxDepth {
		return &node{size: len(rows)}
	}

	// Collect features that still have spread; constant features cannot split.
	splittable := make([]int, 0, len(rows[0]))
	for fi := range rows[0] {
		lo, hi := rows[0][fi], rows[0][fi]
		for _, r := range rows[1:] {
			if r[fi] < lo {
				lo = r[fi]
			}
			if r[fi] > hi {
				hi = r[fi]
			}
		}
		if hi > lo {
			splittable = append(splittable, fi)
		}
	}
	if len(splittable) == 0 {
		return &node{size: len(rows)}
	}

	feature := splittable[rng.Intn(len(splittable))]
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows[1:] {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{size: len(rows)}
	}

	return &node{
		feature: feature,
		split:   split,
		left:    buildTree(left, rng, depth+1, maxDepth),
		right:   buildTree(right, rng, depth+1, maxDepth),
	}
}

// pathLength walks a row down a tree; leaves containing multiple rows extend
// the path by the expected depth of an unbuilt subtree of that size.
func pathLength(n *node, row []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if row[n.feature] < n.split {
		return pathLength(n.left, row, depth+1)
	}
	return pathLength(n.right, row, depth+1)
}

const eulerMascheroni = 0.5772156649

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n rows, used to normalize isolation depths.
func avgPathLength(n int) float64 {
	switch {
	case n > 2:
		h := math.Log(float64(n-1)) + eulerMascheroni
		return 2*h - 2*float64(n-1)/float64(n)
	case n == 2:
		return 1
	default:
		return 0
	}
}
