package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a fitted tree, stored in a flat slice. A leaf has
// Left < 0. Value holds the mean target for regression or the class
// probabilities for classification.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Samples   int       `json:"n"`
	Value     []float64 `json:"v"`
}

// Tree is a CART decision tree. Classes is zero for regression.
type Tree struct {
	Nodes    []Node `json:"nodes"`
	Features int    `json:"features"`
	Classes  int    `json:"classes,omitempty"`

	importance []float64
}

// TreeOptions controls tree growth.
type TreeOptions struct {
	// MaxDepth of zero grows until leaves are pure.
	MaxDepth int
	// MaxFeatures considered per split; zero means all.
	MaxFeatures int
	// Classes is the label count for classification, zero for regression.
	Classes int
}

// FitTree grows a tree on the rows of X listed in rows (repeats allowed, as
// in a bootstrap sample). Regression splits minimise squared error and
// classification splits minimise Gini impurity. y holds class indices for
// classification.
func FitTree(X [][]float64, y []float64, rows []int, opts TreeOptions, rng *rand.Rand) *Tree {
	d := 0
	if len(X) > 0 {
		d = len(X[0])
	}
	b := &treeBuilder{
		X:    X,
		y:    y,
		opts: opts,
		rng:  rng,
		tree: &Tree{Features: d, Classes: opts.Classes, importance: make([]float64, d)},
	}
	b.build(rows, 0)
	return b.tree
}

// Predict returns the leaf value vector for row.
func (t *Tree) Predict(row []float64) []float64 {
	if len(t.Nodes) == 0 {
		return nil
	}
	i := 0
	for t.Nodes[i].Left >= 0 {
		n := &t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// Importance returns the normalised impurity decrease per feature. It is only
// populated on freshly fitted trees.
func (t *Tree) Importance() []float64 {
	out := make([]float64, len(t.importance))
	var total float64
	for _, v := range t.importance {
		total += v
	}
	if total == 0 {
		return out
	}
	for j, v := range t.importance {
		out[j] = v / total
	}
	return out
}

type treeBuilder struct {
	X    [][]float64
	y    []float64
	opts TreeOptions
	rng  *rand.Rand
	tree *Tree
}

func (b *treeBuilder) build(rows []int, depth int) int {
	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Left: -1, Right: -1, Samples: len(rows), Value: b.leafValue(rows)})

	if len(rows) < 2 || (b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		return idx
	}
	parent := b.weightedImpurity(rows)
	if parent <= 1e-12 {
		return idx
	}

	feat, thr, child, ok := b.bestSplit(rows)
	if !ok || parent-child <= 1e-12 {
		return idx
	}
	b.tree.importance[feat] += parent - child

	var left, right []int
	for _, r := range rows {
		if b.X[r][feat] <= thr {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &b.tree.Nodes[idx]
	n.Feature, n.Threshold, n.Left, n.Right = feat, thr, l, r
	return idx
}

func (b *treeBuilder) leafValue(rows []int) []float64 {
	if b.opts.Classes == 0 {
		var s float64
		for _, r := range rows {
			s += b.y[r]
		}
		if len(rows) == 0 {
			return []float64{math.NaN()}
		}
		return []float64{s / float64(len(rows))}
	}
	out := make([]float64, b.opts.Classes)
	for _, r := range rows {
		out[int(b.y[r])]++
	}
	for k := range out {
		out[k] /= float64(len(rows))
	}
	return out
}

// weightedImpurity is the node impurity multiplied by its sample count.
func (b *treeBuilder) weightedImpurity(rows []int) float64 {
	if b.opts.Classes == 0 {
		var s, sq float64
		for _, r := range rows {
			s += b.y[r]
			sq += b.y[r] * b.y[r]
		}
		return sq - s*s/float64(len(rows))
	}
	counts := make([]float64, b.opts.Classes)
	for _, r := range rows {
		counts[int(b.y[r])]++
	}
	return giniWeighted(counts, float64(len(rows)))
}

func giniWeighted(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var sq float64
	for _, c := range counts {
		sq += c * c
	}
	return n - sq/n
}

func (b *treeBuilder) candidates() []int {
	d := b.tree.Features
	if b.opts.MaxFeatures <= 0 || b.opts.MaxFeatures >= d {
		all := make([]int, d)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.rng.Perm(d)[:b.opts.MaxFeatures]
}

// bestSplit scans every midpoint between distinct sorted values of each
// candidate feature and returns the split with the lowest weighted child
// impurity.
func (b *treeBuilder) bestSplit(rows []int) (feat int, thr, best float64, ok bool) {
	best = math.Inf(1)
	sorted := make([]int, len(rows))
	n := float64(len(rows))

	for _, f := range b.candidates() {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		if b.opts.Classes == 0 {
			var total, totalSq float64
			for _, r := range sorted {
				total += b.y[r]
				totalSq += b.y[r] * b.y[r]
			}
			var s, sq float64
			for i := 1; i < len(sorted); i++ {
				v := b.y[sorted[i-1]]
				s += v
				sq += v * v
				lo, hi := b.X[sorted[i-1]][f], b.X[sorted[i]][f]
				if lo == hi {
					continue
				}
				nl := float64(i)
				nr := n - nl
				child := (sq - s*s/nl) + ((totalSq - sq) - (total-s)*(total-s)/nr)
				if child < best {
					best, feat, thr, ok = child, f, (lo+hi)/2, true
				}
			}
			continue
		}

		left := make([]float64, b.opts.Classes)
		right := make([]float64, b.opts.Classes)
		for _, r := range sorted {
			right[int(b.y[r])]++
		}
		for i := 1; i < len(sorted); i++ {
			k := int(b.y[sorted[i-1]])
			left[k]++
			right[k]--
			lo, hi := b.X[sorted[i-1]][f], b.X[sorted[i]][f]
			if lo == hi {
				continue
			}
			nl := float64(i)
			child := giniWeighted(left, nl) + giniWeighted(right, n-nl)
			if child < best {
				best, feat, thr, ok = child, f, (lo+hi)/2, true
			}
		}
	}
	return feat, thr, best, ok
}
