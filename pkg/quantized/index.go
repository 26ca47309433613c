package quantized

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/ngterr"
	"github.com/vecgraph/ngt/pkg/objectstore"
)

// Result is one hit from a quantised-index search.
type Result struct {
	ID       ObjectID
	Distance float32
}

// Index is the QuantisedInvertedIndex: a trained rotation, a set of blob
// centroids with their posting lists, and the subspace codebooks used to
// decode/score those lists.
type Index struct {
	cfg        Config
	store      *objectstore.Store
	dist       metric.Func
	dim        int
	rotation   *Rotation
	codebooks  []Codebook
	blobs      [][]float32 // rotated-space centroids, indexed by BlobID
	lists      []InvertedList
	assignment map[ObjectID]BlobID
}

// New constructs an untrained Index bound to store and dist.
func New(store *objectstore.Store, dist metric.Func, cfg Config) *Index {
	return &Index{cfg: cfg, store: store, dist: dist, dim: store.Dim()}
}

// Build trains the rotation, the hierarchical coarse quantiser, and the
// subspace codebooks from ids, then assigns each id to a BlobId posting
// list. ids must all currently be live in the Index's store.
func (ix *Index) Build(ctx context.Context, ids []ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("quantized: build requires at least one object")
	}

	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		v, err := ix.store.Get(id)
		if err != nil {
			return fmt.Errorf("quantized: build: %w", err)
		}
		vectors[i] = v
	}

	if ix.cfg.UseRotation {
		rot, err := TrainRotation(ix.dim, ix.cfg.RandomSeed)
		if err != nil {
			return fmt.Errorf("quantized: build: %w", err)
		}
		ix.rotation = rot
	} else {
		ix.rotation = Identity(ix.dim)
	}

	rotated := make([][]float32, len(vectors))
	for i, v := range vectors {
		rotated[i] = ix.rotation.Apply(v)
	}

	centroids, assignment := hierarchicalKMeans(rotated, ix.cfg.NumBlobs, ix.cfg.KMeansIters, ix.cfg.RandomSeed)
	ix.blobs = centroids

	residuals := make([][]float32, len(rotated))
	for i, r := range rotated {
		residuals[i] = subtract(r, centroids[assignment[i]])
	}

	codebooks, err := trainSubspaceCodebooks(residuals, ix.cfg)
	if err != nil {
		return fmt.Errorf("quantized: build: %w", err)
	}
	ix.codebooks = codebooks

	ix.lists = make([]InvertedList, len(centroids))
	for b, c := range centroids {
		ix.lists[b] = InvertedList{Centroid: c}
	}
	ix.assignment = make(map[ObjectID]BlobID, len(ids))

	for i, id := range ids {
		blob := BlobID(assignment[i])
		codes := encode(residuals[i], codebooks)
		ix.lists[blob].Entries = append(ix.lists[blob].Entries, PostingEntry{ID: id, Codes: codes})
		ix.assignment[id] = blob
	}
	return nil
}

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// BlobOf returns the BlobId an object was assigned to at build time
// (invariant Q1).
func (ix *Index) BlobOf(id ObjectID) (BlobID, bool) {
	b, ok := ix.assignment[id]
	return b, ok
}

// NumBlobs returns the number of posting lists produced by Build.
func (ix *Index) NumBlobs() int { return len(ix.lists) }

// Rotation returns the trained (or identity) rotation, for callers that
// need to persist it separately from the codebooks/posting lists (the
// "qr" file in the on-disk layout).
func (ix *Index) Rotation() *Rotation { return ix.rotation }

type candidate struct {
	id   ObjectID
	dist float32
}

type candidateHeap []candidate // max-heap on dist: worst candidate at root

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Search runs ADT-scored approximate search, optionally refining the top
// k*ResultExpand approximate
// candidates with the exact metric before returning the final top-k.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if ix.rotation == nil {
		return nil, fmt.Errorf("quantized: search before build")
	}
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("quantized: %w", ngterr.ErrAborted)
	}

	rotatedQuery := ix.rotation.Apply(query)

	type probe struct {
		blob int
		dist float32
	}
	probes := make([]probe, len(ix.blobs))
	for b, c := range ix.blobs {
		d := quantizedEuclidean(rotatedQuery, c)
		probes[b] = probe{blob: b, dist: d}
	}
	sort.Slice(probes, func(i, j int) bool { return probes[i].dist < probes[j].dist })

	nProbes := ix.cfg.NProbes
	if nProbes <= 0 || nProbes > len(probes) {
		nProbes = len(probes)
	}

	limit := k
	if ix.cfg.ResultExpand > 1 {
		limit = k * ix.cfg.ResultExpand
	}

	ch := &candidateHeap{}
	heap.Init(ch)
	for _, p := range probes[:nProbes] {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("quantized: %w", ngterr.ErrAborted)
		}
		residual := subtract(rotatedQuery, ix.blobs[p.blob])
		table := buildADT(residual, ix.codebooks)
		for _, entry := range ix.lists[p.blob].Entries {
			d := table.Distance(entry.Codes)
			heap.Push(ch, candidate{id: entry.ID, dist: d})
			if ch.Len() > limit {
				heap.Pop(ch)
			}
		}
	}

	candidates := make([]candidate, len(*ch))
	copy(candidates, *ch)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if ix.cfg.ResultExpand <= 1 || ix.dist == nil {
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		out := make([]Result, len(candidates))
		for i, c := range candidates {
			out[i] = Result{ID: c.id, Distance: c.dist}
		}
		return out, nil
	}

	refined := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		v, err := ix.store.Get(c.id)
		if err != nil {
			continue
		}
		d, err := ix.dist(query, v)
		if err != nil {
			continue
		}
		refined = append(refined, Result{ID: c.id, Distance: d})
	}
	sort.Slice(refined, func(i, j int) bool {
		if refined[i].Distance != refined[j].Distance {
			return refined[i].Distance < refined[j].Distance
		}
		return refined[i].ID < refined[j].ID
	})
	if len(refined) > k {
		refined = refined[:k]
	}
	return refined, nil
}

func quantizedEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
