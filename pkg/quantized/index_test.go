package quantized

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/objectstore"
)

func buildCorpus(t *testing.T, n, dim int) (*objectstore.Store, []ObjectID, [][]float32) {
	t.Helper()
	store := objectstore.Allocate(metric.F32, dim, metric.L2)
	r := rand.New(rand.NewSource(7))
	ids := make([]ObjectID, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for d := 0; d < dim; d++ {
			v[d] = r.Float32()*10 - 5
		}
		id, err := store.Insert(v)
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
		vecs[i] = v
	}
	return store, ids, vecs
}

func TestBuildAssignsEveryObjectExactlyOneBlob(t *testing.T) {
	dim := 8
	store, ids, _ := buildCorpus(t, 40, dim)
	fn, _ := metric.Kernel(metric.F32, metric.L2)

	cfg := DefaultConfig()
	cfg.NumBlobs = 8
	cfg.NumSubspaces = 4
	cfg.Size = Codebook16

	ix := New(store, fn, cfg)
	if err := ix.Build(context.Background(), ids); err != nil {
		t.Fatal(err)
	}

	seen := make(map[ObjectID]bool)
	for _, list := range ix.lists {
		for _, e := range list.Entries {
			if seen[e.ID] {
				t.Errorf("object %d appears in more than one posting list", e.ID)
			}
			seen[e.ID] = true
		}
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("object %d missing from every posting list", id)
		}
		if _, ok := ix.BlobOf(id); !ok {
			t.Errorf("BlobOf(%d) not found", id)
		}
	}
}

func TestSearchReturnsKResults(t *testing.T) {
	dim := 8
	store, ids, vecs := buildCorpus(t, 60, dim)
	fn, _ := metric.Kernel(metric.F32, metric.L2)

	cfg := DefaultConfig()
	cfg.NumBlobs = 8
	cfg.NumSubspaces = 4
	cfg.Size = Codebook16
	cfg.NProbes = 4
	cfg.ResultExpand = 3

	ix := New(store, fn, cfg)
	if err := ix.Build(context.Background(), ids); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search(context.Background(), vecs[0], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) == 0 {
		t.Fatal("expected at least one result")
	}
	if len(res) > 5 {
		t.Errorf("expected at most 5 results, got %d", len(res))
	}
}

func TestSearchRefinementFindsExactSelf(t *testing.T) {
	dim := 8
	store, ids, vecs := buildCorpus(t, 50, dim)
	fn, _ := metric.Kernel(metric.F32, metric.L2)

	cfg := DefaultConfig()
	cfg.NumBlobs = 4
	cfg.NumSubspaces = 4
	cfg.Size = Codebook16
	cfg.NProbes = 4
	cfg.ResultExpand = 8

	ix := New(store, fn, cfg)
	if err := ix.Build(context.Background(), ids); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search(context.Background(), vecs[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(res))
	}
	if res[0].ID != ids[0] {
		t.Errorf("expected nearest neighbour of its own vector to be itself (id %d), got %d", ids[0], res[0].ID)
	}
	if res[0].Distance > 1e-3 {
		t.Errorf("expected near-zero refined distance for exact self match, got %v", res[0].Distance)
	}
}

func TestRotationIsOrthogonal(t *testing.T) {
	rot, err := TrainRotation(6, 3)
	if err != nil {
		t.Fatal(err)
	}
	v := []float32{1, 2, 3, 4, 5, 6}
	rotated := rot.Apply(v)

	var normBefore, normAfter float32
	for _, x := range v {
		normBefore += x * x
	}
	for _, x := range rotated {
		normAfter += x * x
	}
	if d := normBefore - normAfter; d > 1e-2 || d < -1e-2 {
		t.Errorf("orthogonal rotation should preserve norm: before=%v after=%v", normBefore, normAfter)
	}
}

// TestRecallAgainstExactScan checks the refinement path end to end: with
// every blob probed and a 4x candidate expansion, the quantised index
// should recover most of the exact top-10 under L2.
func TestRecallAgainstExactScan(t *testing.T) {
	dim := 8
	k := 10
	store, ids, vecs := buildCorpus(t, 200, dim)
	fn, _ := metric.Kernel(metric.F32, metric.L2)

	cfg := DefaultConfig()
	cfg.NumBlobs = 8
	cfg.NumSubspaces = 4
	cfg.Size = Codebook16
	cfg.NProbes = 0 // probe every blob
	cfg.ResultExpand = 4

	ix := New(store, fn, cfg)
	if err := ix.Build(context.Background(), ids); err != nil {
		t.Fatal(err)
	}

	query := vecs[0]
	type hit struct {
		id   ObjectID
		dist float32
	}
	exact := make([]hit, len(ids))
	for i, id := range ids {
		d, err := fn(query, vecs[i])
		if err != nil {
			t.Fatal(err)
		}
		exact[i] = hit{id: id, dist: d}
	}
	sort.Slice(exact, func(i, j int) bool { return exact[i].dist < exact[j].dist })
	truth := make(map[ObjectID]bool, k)
	for _, h := range exact[:k] {
		truth[h.id] = true
	}

	res, err := ix.Search(context.Background(), query, k)
	if err != nil {
		t.Fatal(err)
	}
	found := 0
	for _, r := range res {
		if truth[r.ID] {
			found++
		}
	}
	if recall := float64(found) / float64(k); recall < 0.7 {
		t.Errorf("recall@%d = %.2f, want >= 0.7", k, recall)
	}
}
