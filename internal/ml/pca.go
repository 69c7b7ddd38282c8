package ml

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA is a fitted principal component projection. Components[k] is the unit
// loading vector of component k, signed so its largest-magnitude entry is
// positive.
type PCA struct {
	Mean                   []float64   `json:"mean"`
	Components             [][]float64 `json:"components"`
	ExplainedVarianceRatio []float64   `json:"explained_variance_ratio"`
}

// FitPCA keeps the first k principal components of X.
func FitPCA(X [][]float64, k int) (*PCA, error) {
	n := len(X)
	if n < 2 {
		return nil, eris.New("ml: pca needs at least two samples")
	}
	d := len(X[0])
	if k <= 0 || k > d || k > n {
		return nil, eris.Errorf("ml: cannot keep %d components of %d samples x %d features", k, n, d)
	}

	flat := make([]float64, 0, n*d)
	for _, row := range X {
		flat = append(flat, row...)
	}
	a := mat.NewDense(n, d, flat)

	var pc stat.PC
	if ok := pc.PrincipalComponents(a, nil); !ok {
		return nil, eris.New("ml: principal component decomposition failed")
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	var total float64
	for _, v := range vars {
		total += v
	}

	p := &PCA{
		Mean:                   make([]float64, d),
		Components:             make([][]float64, k),
		ExplainedVarianceRatio: make([]float64, k),
	}
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		p.Mean[j] = stat.Mean(col, nil)
	}
	for c := 0; c < k; c++ {
		comp := mat.Col(nil, c, &vecs)
		maxAbs := 0
		for j := range comp {
			if math.Abs(comp[j]) > math.Abs(comp[maxAbs]) {
				maxAbs = j
			}
		}
		if comp[maxAbs] < 0 {
			for j := range comp {
				comp[j] = -comp[j]
			}
		}
		p.Components[c] = comp
		if total > 0 {
			p.ExplainedVarianceRatio[c] = vars[c] / total
		}
	}
	return p, nil
}

// TransformRow projects one row onto the kept components.
func (p *PCA) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(p.Mean) {
		return nil, eris.Errorf("ml: pca expects %d features, got %d", len(p.Mean), len(row))
	}
	out := make([]float64, len(p.Components))
	for c, comp := range p.Components {
		for j, v := range row {
			out[c] += (v - p.Mean[j]) * comp[j]
		}
	}
	return out, nil
}

// Transform projects every row of X.
func (p *PCA) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := p.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// TotalExplained sums the kept explained variance ratios.
func (p *PCA) TotalExplained() float64 {
	var s float64
	for _, v := range p.ExplainedVarianceRatio {
		s += v
	}
	return s
}
