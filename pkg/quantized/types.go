// Package quantized implements the QuantisedInvertedIndex component: a
// rotation-preprocessed, hierarchically blob-routed, product-quantised
// posting-list index supporting asymmetric distance table (ADT) search with
// optional exact-metric refinement. The subspace training and residual
// math generalise internal/quantization and pkg/ivf/ivf_pq.go's
// blob-routing shape to arbitrary codebook sizes and a rotation
// preprocessing stage neither package implements.
package quantized

import "github.com/vecgraph/ngt/pkg/objectstore"

// ObjectID aliases the shared id type.
type ObjectID = objectstore.ObjectID

// BlobID is a coarse partition identifier assigned by hierarchical k-means.
type BlobID uint32

// CodebookSize is the closed set of per-subspace codebook widths supported,
// each implying a fixed per-code bit width.
type CodebookSize int

const (
	Codebook16    CodebookSize = 16
	Codebook256   CodebookSize = 256
	Codebook65536 CodebookSize = 65536
)

// BitWidth returns the number of bits needed to index this codebook size.
func (c CodebookSize) BitWidth() int {
	switch c {
	case Codebook16:
		return 4
	case Codebook256:
		return 8
	case Codebook65536:
		return 16
	default:
		return 8
	}
}

// PostingEntry is one (ObjectId, per-subspace codes) row in a BlobId's
// inverted list, in insertion order.
type PostingEntry struct {
	ID    ObjectID
	Codes []uint32 // one code per subspace, widened to uint32 regardless of bit width
}

// InvertedList is the posting list owned by a single BlobId.
type InvertedList struct {
	Centroid []float32
	Entries  []PostingEntry
}

// Codebook is one subspace's num_subspaces-independent set of centroids.
type Codebook struct {
	Size      CodebookSize
	SubDim    int
	Centroids [][]float32 // Centroids[code] = centroid vector of length SubDim
}

// Config fixes the build-time parameters for an Index.
type Config struct {
	NumBlobs     int
	NumSubspaces int
	Size         CodebookSize
	NProbes      int
	KMeansIters  int
	RandomSeed   int64
	UseRotation  bool
	ResultExpand int // refinement candidate multiplier (k * ResultExpand)
}

// DefaultConfig mirrors quantization.DefaultConfig's defaults where the
// concern overlaps (iteration count, seed) and adds the new
// blob/subspace/rotation knobs this component introduces.
func DefaultConfig() Config {
	return Config{
		NumBlobs:     64,
		NumSubspaces: 8,
		Size:         Codebook256,
		NProbes:      4,
		KMeansIters:  25,
		RandomSeed:   42,
		UseRotation:  true,
		ResultExpand: 4,
	}
}
