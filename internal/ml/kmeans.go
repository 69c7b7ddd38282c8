package ml

import (
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
)

// KMeansOptions configures FitKMeans.
type KMeansOptions struct {
	K        int
	Restarts int
	MaxIter  int
	Seed     int64
}

// KMeans is a fitted centroid model.
type KMeans struct {
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
}

// FitKMeans runs Lloyd's algorithm from opts.Restarts k-means++
// initialisations and keeps the run with the lowest inertia. It returns the
// model and the cluster label of each row.
func FitKMeans(X [][]float64, opts KMeansOptions) (*KMeans, []int, error) {
	if opts.K <= 0 {
		return nil, nil, eris.New("ml: k must be positive")
	}
	if len(X) < opts.K {
		return nil, nil, eris.Errorf("ml: %d samples fewer than %d clusters", len(X), opts.K)
	}
	if opts.Restarts <= 0 {
		opts.Restarts = 10
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 300
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var best *KMeans
	var bestLabels []int
	for run := 0; run < opts.Restarts; run++ {
		km, labels := lloyd(X, plusPlus(X, opts.K, rng), opts.MaxIter)
		if best == nil || km.Inertia < best.Inertia {
			best, bestLabels = km, labels
		}
	}
	return best, bestLabels, nil
}

// Predict returns the index of the nearest centroid.
func (k *KMeans) Predict(row []float64) int {
	best, bestD := 0, math.Inf(1)
	for c, centroid := range k.Centroids {
		if d := sqDist(row, centroid); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func plusPlus(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := X[rng.Intn(len(X))]
	centroids = append(centroids, append([]float64(nil), first...))

	dist := make([]float64, len(X))
	for i, row := range X {
		dist[i] = sqDist(row, centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}
		pick := 0
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dist {
				if d == 0 {
					continue
				}
				pick = i
				acc += d
				if acc >= target {
					break
				}
			}
		} else {
			pick = rng.Intn(len(X))
		}
		c := append([]float64(nil), X[pick]...)
		centroids = append(centroids, c)
		for i, row := range X {
			if d := sqDist(row, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func lloyd(X [][]float64, centroids [][]float64, maxIter int) (*KMeans, []int) {
	labels := make([]int, len(X))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range X {
			c := (&KMeans{Centroids: centroids}).Predict(row)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		empty := updateMeans(X, centroids, labels)
		if len(empty) == 0 {
			continue
		}
		for _, c := range empty {
			reseed(X, centroids, labels, c)
		}
		// Reseeding relabels points, so the donor clusters' means are stale.
		updateMeans(X, centroids, labels)
	}

	km := &KMeans{Centroids: centroids}
	for i, row := range X {
		km.Inertia += sqDist(row, centroids[labels[i]])
	}
	return km, labels
}

// updateMeans moves every populated centroid to the mean of its points and
// returns the clusters that have none.
func updateMeans(X [][]float64, centroids [][]float64, labels []int) []int {
	k, d := len(centroids), len(X[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}
	for i, row := range X {
		counts[labels[i]]++
		for j, v := range row {
			sums[labels[i]][j] += v
		}
	}
	var empty []int
	for c := range centroids {
		if counts[c] == 0 {
			empty = append(empty, c)
			continue
		}
		for j := range sums[c] {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
	return empty
}

// reseed moves an empty centroid onto the point farthest from its own
// centroid. Nothing moves when every point sits on its centroid.
func reseed(X [][]float64, centroids [][]float64, labels []int, empty int) {
	far, farD := -1, 0.0
	for i, row := range X {
		if d := sqDist(row, centroids[labels[i]]); d > farD {
			far, farD = i, d
		}
	}
	if far < 0 {
		return
	}
	copy(centroids[empty], X[far])
	labels[far] = empty
}

// Silhouette is the mean silhouette coefficient of a labelling. It returns
// NaN and false when fewer than two clusters are populated or every point is
// in its own cluster.
func Silhouette(X [][]float64, labels []int) (float64, bool) {
	n := len(X)
	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 || len(sizes) >= n {
		return math.NaN(), false
	}

	var total float64
	sums := make(map[int]float64, len(sizes))
	for i := 0; i < n; i++ {
		for c := range sums {
			delete(sums, c)
		}
		for j := 0; j < n; j++ {
			if i != j {
				sums[labels[j]] += math.Sqrt(sqDist(X[i], X[j]))
			}
		}
		own := labels[i]
		if sizes[own] == 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c, size := range sizes {
			if c == own {
				continue
			}
			if m := sums[c] / float64(size); m < b {
				b = m
			}
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), true
}
