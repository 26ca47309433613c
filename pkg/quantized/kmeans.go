package quantized

import (
	"math"

	"github.com/vecgraph/ngt/internal/quantization"
)

// hierarchicalKMeans clusters vectors in three layers (first-objects →
// first-clusters → second-objects → second-clusters → third-clusters) as
// the coarse quantisation stage, reusing the k-means++ routine from
// internal/quantization at each layer instead of a single flat pass. The
// final layer's centroids become the blob centroids. Each layer splits into
// branch = ceil(cbrt(numBlobs)) clusters, so there are at most branch³
// blobs: exactly numBlobs only when numBlobs is a perfect cube (numBlobs=4
// gives 8), and fewer when clampK limits a layer to the vectors available.
func hierarchicalKMeans(vectors [][]float32, numBlobs, iters int, seed int64) (centroids [][]float32, assignment []int) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	cfg := quantization.Config{Iterations: iters, Seed: seed}

	branch := int(math.Ceil(math.Cbrt(float64(numBlobs))))
	if branch < 1 {
		branch = 1
	}

	k1 := clampK(branch, n)
	c1, err := quantization.KMeansPlusPlus(vectors, k1, cfg)
	if err != nil {
		// Degenerate input (fewer vectors than requested clusters even
		// after clamping shouldn't happen, but fall back to one blob).
		return [][]float32{mean(vectors)}, zeros(n)
	}
	groups1 := assign(vectors, c1)

	var finalCentroids [][]float32
	assignment = make([]int, n)

	for g1, idxs := range groups1 {
		if len(idxs) == 0 {
			continue
		}
		sub1 := gather(vectors, idxs)
		k2 := clampK(branch, len(sub1))
		c2, err := quantization.KMeansPlusPlus(sub1, k2, cfg)
		if err != nil {
			c2 = [][]float32{mean(sub1)}
		}
		groups2 := assign(sub1, c2)

		for _, idxs2 := range groups2 {
			if len(idxs2) == 0 {
				continue
			}
			sub2 := gather(sub1, idxs2)
			k3 := clampK(branch, len(sub2))
			c3, err := quantization.KMeansPlusPlus(sub2, k3, cfg)
			if err != nil {
				c3 = [][]float32{mean(sub2)}
			}
			groups3 := assign(sub2, c3)

			for _, centroid := range c3 {
				finalCentroids = append(finalCentroids, centroid)
			}
			base := len(finalCentroids) - len(c3)
			for localBlob, idxs3 := range groups3 {
				for _, localIdx := range idxs3 {
					origIdx := idxs[idxs2[localIdx]]
					assignment[origIdx] = base + localBlob
				}
			}
		}
		_ = g1
	}

	return finalCentroids, assignment
}

func clampK(k, n int) int {
	if n < 1 {
		return 1
	}
	if k > n {
		return n
	}
	if k < 1 {
		return 1
	}
	return k
}

func assign(vectors, centroids [][]float32) [][]int {
	groups := make([][]int, len(centroids))
	for i, v := range vectors {
		best, bestDist := 0, float32(math.MaxFloat32)
		for c, centroid := range centroids {
			d := quantization.SquaredDistance(v, centroid)
			if d < bestDist {
				bestDist, best = d, c
			}
		}
		groups[best] = append(groups[best], i)
	}
	return groups
}

func gather(vectors [][]float32, idxs []int) [][]float32 {
	out := make([][]float32, len(idxs))
	for i, idx := range idxs {
		out[i] = vectors[idx]
	}
	return out
}

func mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}

func zeros(n int) []int { return make([]int, n) }
