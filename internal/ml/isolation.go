package ml

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// IsolationOptions configures FitIsolationForest.
type IsolationOptions struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          int64
}

// INode is one node of an isolation tree. A leaf has Left < 0 and records
// the number of training samples that reached it.
type INode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Size      int     `json:"n"`
}

// ITree is an isolation tree.
type ITree struct {
	Nodes []INode `json:"nodes"`
}

// IsolationForest scores points by how quickly random splits isolate them.
// Threshold is the training score quantile at 1-contamination; points
// scoring above it are anomalies.
type IsolationForest struct {
	Trees      []*ITree `json:"trees"`
	SampleSize int      `json:"sample_size"`
	Threshold  float64  `json:"threshold"`
}

// FitIsolationForest grows the trees on subsamples drawn without
// replacement and sets the anomaly threshold from the training scores.
func FitIsolationForest(X [][]float64, opts IsolationOptions) (*IsolationForest, error) {
	if len(X) == 0 {
		return nil, eris.New("ml: cannot fit isolation forest on empty matrix")
	}
	if opts.Contamination <= 0 || opts.Contamination >= 0.5 {
		return nil, eris.Errorf("ml: contamination %v outside (0, 0.5)", opts.Contamination)
	}
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 256
	}
	size := opts.MaxSamples
	if size > len(X) {
		size = len(X)
	}
	limit := int(math.Ceil(math.Log2(math.Max(float64(size), 2))))

	rng := rand.New(rand.NewSource(opts.Seed))
	f := &IsolationForest{Trees: make([]*ITree, opts.Trees), SampleSize: size}
	for t := range f.Trees {
		rows := rng.Perm(len(X))[:size]
		tree := &ITree{}
		growITree(tree, X, rows, 0, limit, rng)
		f.Trees[t] = tree
	}

	scores := make([]float64, len(X))
	for i, row := range X {
		scores[i] = f.Score(row)
	}
	sort.Float64s(scores)
	f.Threshold = stat.Quantile(1-opts.Contamination, stat.Empirical, scores, nil)
	return f, nil
}

func growITree(t *ITree, X [][]float64, rows []int, depth, limit int, rng *rand.Rand) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, INode{Left: -1, Right: -1, Size: len(rows)})
	if depth >= limit || len(rows) <= 1 {
		return idx
	}

	d := len(X[0])
	feat := rng.Intn(d)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := X[r][feat]
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return idx
	}
	thr := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, r := range rows {
		if X[r][feat] < thr {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := growITree(t, X, left, depth+1, limit, rng)
	r := growITree(t, X, right, depth+1, limit, rng)
	n := &t.Nodes[idx]
	n.Feature, n.Threshold, n.Left, n.Right = feat, thr, l, r
	return idx
}

// averagePath is the expected path length of an unsuccessful search in a
// binary search tree of n points.
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

func (t *ITree) pathLength(row []float64) float64 {
	i, depth := 0, 0.0
	for t.Nodes[i].Left >= 0 {
		n := &t.Nodes[i]
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
	return depth + averagePath(t.Nodes[i].Size)
}

// Score returns the anomaly score in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(row []float64) float64 {
	var total float64
	for _, t := range f.Trees {
		total += t.pathLength(row)
	}
	mean := total / float64(len(f.Trees))
	c := averagePath(f.SampleSize)
	if c == 0 {
		c = 1
	}
	return math.Pow(2, -mean/c)
}

// Predict returns -1 for an anomaly and 1 otherwise.
func (f *IsolationForest) Predict(row []float64) int {
	if f.Score(row) > f.Threshold {
		return -1
	}
	return 1
}
