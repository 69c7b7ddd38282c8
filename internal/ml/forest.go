package ml

import (
	"context"
	"math"
	"math/rand"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ForestOptions configures a random forest.
type ForestOptions struct {
	Trees       int
	MaxDepth    int
	MaxFeatures int
	// Classes is zero for a regressor.
	Classes int
	Seed    int64
}

// Forest is a bagged ensemble of CART trees.
type Forest struct {
	Trees      []*Tree   `json:"trees"`
	Classes    int       `json:"classes,omitempty"`
	Importance []float64 `json:"importance"`
}

// SqrtFeatures is the per-split feature count used by classifiers.
func SqrtFeatures(d int) int {
	k := int(math.Sqrt(float64(d)))
	if k < 1 {
		k = 1
	}
	return k
}

// FitForest fits opts.Trees trees on bootstrap samples of X. Per-tree seeds
// are drawn in order from opts.Seed before any tree is grown, so results do
// not depend on scheduling.
func FitForest(ctx context.Context, X [][]float64, y []float64, opts ForestOptions) (*Forest, error) {
	if len(X) == 0 {
		return nil, eris.New("ml: cannot fit forest on empty matrix")
	}
	if len(X) != len(y) {
		return nil, eris.Errorf("ml: %d rows but %d targets", len(X), len(y))
	}
	if opts.Trees <= 0 {
		opts.Trees = 100
	}

	master := rand.New(rand.NewSource(opts.Seed))
	seeds := make([]int64, opts.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	f := &Forest{Trees: make([]*Tree, opts.Trees), Classes: opts.Classes}
	treeOpts := TreeOptions{MaxDepth: opts.MaxDepth, MaxFeatures: opts.MaxFeatures, Classes: opts.Classes}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range f.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			rows := make([]int, len(X))
			for k := range rows {
				rows[k] = rng.Intn(len(X))
			}
			f.Trees[i] = FitTree(X, y, rows, treeOpts, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ml: fit forest")
	}

	d := len(X[0])
	f.Importance = make([]float64, d)
	for _, t := range f.Trees {
		for j, v := range t.Importance() {
			f.Importance[j] += v
		}
	}
	var total float64
	for _, v := range f.Importance {
		total += v
	}
	if total > 0 {
		for j := range f.Importance {
			f.Importance[j] /= total
		}
	}
	return f, nil
}

// Proba averages the tree leaf vectors for row.
func (f *Forest) Proba(row []float64) []float64 {
	var out []float64
	for _, t := range f.Trees {
		v := t.Predict(row)
		if out == nil {
			out = make([]float64, len(v))
		}
		for k := range v {
			out[k] += v[k]
		}
	}
	for k := range out {
		out[k] /= float64(len(f.Trees))
	}
	return out
}

// Predict returns the mean prediction for a regressor, or the most probable
// class index for a classifier.
func (f *Forest) Predict(row []float64) float64 {
	p := f.Proba(row)
	if len(p) == 0 {
		return math.NaN()
	}
	if f.Classes == 0 {
		return p[0]
	}
	best := 0
	for k := range p {
		if p[k] > p[best] {
			best = k
		}
	}
	return float64(best)
}

// PredictAll applies Predict to every row.
func (f *Forest) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = f.Predict(row)
	}
	return out
}
