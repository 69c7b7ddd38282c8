package ml

import (
	"math"
	"math/rand"
)

// TrainTestSplit shuffles 0..n-1 with seed and holds out ceil(testSize*n)
// indices for testing.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest > n {
		nTest = n
	}
	if nTest < 0 {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	var s float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot float64
	for i, v := range yTrue {
		ssRes += (v - yPred[i]) * (v - yPred[i])
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Accuracy is the fraction of equal labels.
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// RiskLabels name the three bins of a [0, 20, 50, 100] cut.
var RiskLabels = []string{"Low", "Medium", "High"}

// Bin returns the index of the right-closed interval (edges[i], edges[i+1]]
// holding v, or -1 when v is NaN or outside every interval.
func Bin(v float64, edges []float64) int {
	if math.IsNaN(v) {
		return -1
	}
	for i := 1; i < len(edges); i++ {
		if v > edges[i-1] && v <= edges[i] {
			return i - 1
		}
	}
	return -1
}

// BinLabel returns labels[Bin(v, edges)], or "" when v falls outside.
func BinLabel(v float64, edges []float64, labels []string) string {
	i := Bin(v, edges)
	if i < 0 || i >= len(labels) {
		return ""
	}
	return labels[i]
}
