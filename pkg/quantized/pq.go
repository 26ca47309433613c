package quantized

import (
	"fmt"
	"math"

	"github.com/vecgraph/ngt/internal/quantization"
)

// trainSubspaceCodebooks trains one codebook per subspace on the residuals
// (rotated vector minus its assigned blob centroid, not the global mean),
// splitting each residual into cfg.NumSubspaces equal-length chunks.
func trainSubspaceCodebooks(residuals [][]float32, cfg Config) ([]Codebook, error) {
	if len(residuals) == 0 {
		return nil, fmt.Errorf("quantized: no residuals to train on")
	}
	dim := len(residuals[0])
	if dim%cfg.NumSubspaces != 0 {
		return nil, fmt.Errorf("quantized: dim %d not divisible by NumSubspaces %d", dim, cfg.NumSubspaces)
	}
	subDim := dim / cfg.NumSubspaces
	k := clampK(int(cfg.Size), len(residuals))

	kcfg := quantization.Config{Iterations: cfg.KMeansIters, Seed: cfg.RandomSeed}

	codebooks := make([]Codebook, cfg.NumSubspaces)
	for sv := 0; sv < cfg.NumSubspaces; sv++ {
		start := sv * subDim
		sub := make([][]float32, len(residuals))
		for i, r := range residuals {
			sub[i] = append([]float32{}, r[start:start+subDim]...)
		}
		centroids, err := quantization.KMeansPlusPlus(sub, k, kcfg)
		if err != nil {
			return nil, fmt.Errorf("quantized: training subspace %d codebook: %w", sv, err)
		}
		codebooks[sv] = Codebook{Size: cfg.Size, SubDim: subDim, Centroids: centroids}
	}
	return codebooks, nil
}

// encode finds, for each subspace, the nearest codebook centroid to the
// residual's corresponding chunk (Q2: squared error minimised
// per-subspace independently).
func encode(residual []float32, codebooks []Codebook) []uint32 {
	codes := make([]uint32, len(codebooks))
	for sv, cb := range codebooks {
		start := sv * cb.SubDim
		chunk := residual[start : start+cb.SubDim]
		best, bestDist := 0, float32(math.MaxFloat32)
		for c, centroid := range cb.Centroids {
			d := quantization.SquaredDistance(chunk, centroid)
			if d < bestDist {
				bestDist, best = d, c
			}
		}
		codes[sv] = uint32(best)
	}
	return codes
}

// decode reconstructs an approximate residual vector from per-subspace
// codes.
func decode(codes []uint32, codebooks []Codebook) []float32 {
	if len(codebooks) == 0 {
		return nil
	}
	dim := 0
	for _, cb := range codebooks {
		dim += cb.SubDim
	}
	out := make([]float32, 0, dim)
	for sv, cb := range codebooks {
		out = append(out, cb.Centroids[codes[sv]]...)
	}
	return out
}
