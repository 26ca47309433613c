package quantized

import (
	"math"

	"github.com/vecgraph/ngt/internal/quantization"
)

// adtTable is one subspace's quantised row of the asymmetric distance
// table: squared distances from the query's subvector to every codebook
// centroid, rescaled into an 8-bit range instead of kept as float32.
type adtTable struct {
	offset float32 // minimum squared distance in this subspace's row
	scale  float32 // (max-min)/255
	qvals  []uint8
}

// ADT is the asymmetric distance table for one query against one probed
// blob's residual.
type ADT struct {
	tables []adtTable
}

// buildADT computes, for each subspace, the squared distance from
// queryResidual's corresponding chunk to every codebook centroid, then
// quantises that row with a per-subspace scale+offset.
func buildADT(queryResidual []float32, codebooks []Codebook) *ADT {
	tables := make([]adtTable, len(codebooks))
	for sv, cb := range codebooks {
		start := sv * cb.SubDim
		chunk := queryResidual[start : start+cb.SubDim]

		raw := make([]float32, len(cb.Centroids))
		minV, maxV := float32(math.MaxFloat32), float32(-math.MaxFloat32)
		for c, centroid := range cb.Centroids {
			sq := quantization.SquaredDistance(chunk, centroid)
			raw[c] = sq
			if sq < minV {
				minV = sq
			}
			if sq > maxV {
				maxV = sq
			}
		}
		rng := maxV - minV
		scale := rng / 255
		if scale == 0 {
			scale = 1
		}
		q := make([]uint8, len(raw))
		for c, v := range raw {
			idx := (v - minV) / scale
			q[c] = uint8(math.Round(float64(idx)))
		}
		tables[sv] = adtTable{offset: minV, scale: scale, qvals: q}
	}
	return &ADT{tables: tables}
}

// Distance sums the dequantised per-subspace squared distance for a coded
// vector.
func (a *ADT) Distance(codes []uint32) float32 {
	var sum float32
	for sv, t := range a.tables {
		sum += t.offset + float32(t.qvals[codes[sv]])*t.scale
	}
	return sum
}
