// Package ml holds the estimators used by the training harness: a standard
// scaler, CART trees and random forests, k-means, isolation forests and PCA.
// Every fitted estimator is a plain struct that round-trips through JSON.
package ml

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/census-insights/internal/frame"
)

// StandardScaler centres each feature on its mean and divides by its
// population standard deviation. A constant feature is scaled by 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column statistics over X.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, eris.New("ml: cannot fit scaler on empty matrix")
	}
	d := len(X[0])
	s := &StandardScaler{Mean: make([]float64, d), Scale: make([]float64, d)}
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Width is the number of features the scaler was fitted on.
func (s *StandardScaler) Width() int { return len(s.Mean) }

// TransformRow scales one feature vector.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, eris.Errorf("ml: scaler expects %d features, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Transform scales every row of X into a new matrix.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// PrepareFeatures fills NaN in cols with each column's median, fits a scaler
// on the resulting rows and returns the scaled matrix with the scaler.
func PrepareFeatures(f *frame.Frame, cols []string) ([][]float64, *StandardScaler, error) {
	sub := frame.New()
	for _, c := range cols {
		vals := f.Float(c)
		if vals == nil {
			return nil, nil, eris.Errorf("ml: feature column %q not found", c)
		}
		cp := make([]float64, len(vals))
		copy(cp, vals)
		if err := sub.AddFloat(c, cp); err != nil {
			return nil, nil, err
		}
	}
	sub.FillNaNWithMedian()

	X, err := sub.Matrix(cols)
	if err != nil {
		return nil, nil, err
	}
	scaler, err := FitScaler(X)
	if err != nil {
		return nil, nil, err
	}
	scaled, err := scaler.Transform(X)
	if err != nil {
		return nil, nil, err
	}
	return scaled, scaler, nil
}
