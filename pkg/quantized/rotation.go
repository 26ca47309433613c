package quantized

import (
	"fmt"
	"math/rand"

	"github.com/katalvlaran/lvlath/matrix"
	"github.com/katalvlaran/lvlath/matrix/ops"
)

// Rotation is a dim×dim orthogonal matrix applied to every vector before
// blob routing and subspace quantisation, decorrelating dimensions across
// the PQ subspace boundaries. Stored row-major for cheap application.
type Rotation struct {
	Dim int
	Q   [][]float32
}

// Identity returns a Rotation that leaves vectors unchanged, for configs
// with UseRotation = false.
func Identity(dim int) *Rotation {
	q := make([][]float32, dim)
	for i := range q {
		q[i] = make([]float32, dim)
		q[i][i] = 1
	}
	return &Rotation{Dim: dim, Q: q}
}

// TrainRotation produces a Haar-random orthogonal dim×dim matrix: fill a
// dim×dim matrix with independent standard-Gaussian entries and take the Q
// factor of its QR decomposition, grounded on
// github.com/katalvlaran/lvlath/matrix/ops.QR (Householder reflections).
func TrainRotation(dim int, seed int64) (*Rotation, error) {
	m, err := matrix.NewDense(dim, dim)
	if err != nil {
		return nil, fmt.Errorf("quantized: allocate rotation seed matrix: %w", err)
	}
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			if err := m.Set(i, j, gaussian(r)); err != nil {
				return nil, fmt.Errorf("quantized: seed rotation matrix: %w", err)
			}
		}
	}

	q, _, err := ops.QR(m)
	if err != nil {
		return nil, fmt.Errorf("quantized: QR decomposition for rotation: %w", err)
	}

	out := make([][]float32, dim)
	for i := 0; i < dim; i++ {
		out[i] = make([]float32, dim)
		for j := 0; j < dim; j++ {
			v, err := q.At(i, j)
			if err != nil {
				return nil, fmt.Errorf("quantized: read rotation entry (%d,%d): %w", i, j, err)
			}
			out[i][j] = float32(v)
		}
	}
	return &Rotation{Dim: dim, Q: out}, nil
}

// gaussian draws from the standard normal distribution with r.NormFloat64;
// using our own seeded *rand.Rand keeps rotation training reproducible
// across runs with the same seed.
func gaussian(r *rand.Rand) float64 {
	return r.NormFloat64()
}

// Apply rotates v in place semantics (returns a new slice) via Q·v.
func (rot *Rotation) Apply(v []float32) []float32 {
	out := make([]float32, rot.Dim)
	for i := 0; i < rot.Dim; i++ {
		var sum float32
		row := rot.Q[i]
		for j := 0; j < rot.Dim; j++ {
			sum += row[j] * v[j]
		}
		out[i] = sum
	}
	return out
}
