// Package quantization holds the k-means machinery shared by the coarse
// blob-centroid and per-subspace codebook training stages of the
// quantised inverted index. Everything here operates on squared Euclidean
// distance: codebook training, blob assignment, and the asymmetric
// distance table all work in that space, so no square root is ever taken.
package quantization

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Config fixes the training parameters for one clustering pass.
type Config struct {
	Iterations int
	Seed       int64
}

// DefaultConfig returns the baseline training parameters.
func DefaultConfig() Config {
	return Config{Iterations: 25, Seed: 42}
}

// SquaredDistance computes the squared Euclidean distance between two
// equal-length vectors.
func SquaredDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// KMeansPlusPlus clusters vectors into k centroids, seeding with the
// k-means++ D² weighting and refining with Lloyd iterations until
// convergence or cfg.Iterations, whichever comes first.
func KMeansPlusPlus(vectors [][]float32, k int, cfg Config) ([][]float32, error) {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("quantization: no training vectors")
	}
	if len(vectors) < k {
		return nil, fmt.Errorf("quantization: %d vectors cannot seed %d clusters", len(vectors), k)
	}

	dim := len(vectors[0])
	r := rand.New(rand.NewSource(cfg.Seed))

	centroids := make([][]float32, 0, k)
	centroids = append(centroids, clone(vectors[r.Intn(len(vectors))]))

	weights := make([]float32, len(vectors))
	for len(centroids) < k {
		var total float32
		for i, v := range vectors {
			best := float32(math.MaxFloat32)
			for _, c := range centroids {
				if d := SquaredDistance(v, c); d < best {
					best = d
				}
			}
			weights[i] = best
			total += best
		}

		// Sample the next centroid proportionally to its squared distance
		// from the nearest existing one; a zero total means every vector
		// coincides with a centroid already, so any pick is as good.
		idx := r.Intn(len(vectors))
		if total > 0 {
			target := r.Float32() * total
			var cum float32
			for i, w := range weights {
				cum += w
				if cum >= target {
					idx = i
					break
				}
			}
		}
		centroids = append(centroids, clone(vectors[idx]))
	}

	iters := cfg.Iterations
	if iters <= 0 {
		iters = DefaultConfig().Iterations
	}
	assignments := make([]int, len(vectors))
	counts := make([]int, k)
	for iter := 0; iter < iters; iter++ {
		for i, v := range vectors {
			best, bestDist := 0, float32(math.MaxFloat32)
			for c, centroid := range centroids {
				if d := SquaredDistance(v, centroid); d < bestDist {
					bestDist, best = d, c
				}
			}
			assignments[i] = best
		}

		sums := make([][]float32, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
			counts[c] = 0
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += x
			}
		}

		moved := false
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its old centroid
			}
			for d := range sums[c] {
				sums[c][d] /= float32(counts[c])
			}
			if SquaredDistance(centroids[c], sums[c]) > 1e-12 {
				moved = true
			}
			centroids[c] = sums[c]
		}
		if !moved {
			break
		}
	}
	return centroids, nil
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
