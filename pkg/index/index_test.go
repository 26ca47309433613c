package index

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/vecgraph/ngt/pkg/graph"
	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/ngterr"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = r.Float32()*10 - 5
		}
		out[i] = v
	}
	return out
}

func TestInsertAndSearchFindsSelf(t *testing.T) {
	cfg := DefaultConfig(8, metric.L2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	vecs := randomVectors(30, 8, 1)
	var ids []uint32
	for _, v := range vecs {
		id, err := ix.Insert(context.Background(), v)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, uint32(id))
	}

	res, err := ix.Search(context.Background(), vecs[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}
	if uint32(res[0].ID) != ids[0] {
		t.Errorf("expected nearest neighbour of its own vector to be itself, got id %d want %d", res[0].ID, ids[0])
	}
}

func TestRemoveExcludesFromSearch(t *testing.T) {
	cfg := DefaultConfig(4, metric.L2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	vecs := randomVectors(15, 4, 2)
	var ids []uint32
	for _, v := range vecs {
		id, err := ix.Insert(context.Background(), v)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, uint32(id))
	}

	removeID := ids[0]
	if err := ix.Remove(graph.ObjectID(removeID)); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search(context.Background(), vecs[0], len(ids))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res {
		if uint32(r.ID) == removeID {
			t.Errorf("removed id %d still returned by search", removeID)
		}
	}
}

func TestSaveOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig(6, metric.L2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	vecs := randomVectors(20, 6, 3)
	for _, v := range vecs {
		if _, err := ix.Insert(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != ix.Len() {
		t.Errorf("reopened Len() = %d, want %d", reopened.Len(), ix.Len())
	}

	res, err := reopened.Search(context.Background(), vecs[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 result after reopen, got %d", len(res))
	}
}

func TestOpenReadOnlyRejectsMutation(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig(4, metric.L2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	vecs := randomVectors(10, 4, 5)
	for _, v := range vecs {
		if _, err := ix.Insert(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}

	ro, err := OpenReadOnly(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ro.Insert(context.Background(), vecs[0]); err == nil {
		t.Error("expected Insert on a read-only index to fail")
	}
	if err := ro.Remove(graph.ObjectID(1)); err == nil {
		t.Error("expected Remove on a read-only index to fail")
	}

	res, err := ro.Search(context.Background(), vecs[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Distance != 0 {
		t.Errorf("expected exact self-match search to still work read-only, got %+v", res)
	}
}

func TestSearchRadiusExcludesFarResults(t *testing.T) {
	cfg := DefaultConfig(2, metric.L2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range [][]float32{{0, 0}, {3, 4}, {1, 1}} {
		if _, err := ix.Insert(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	res, err := ix.SearchRadius(context.Background(), []float32{0, 0}, 3, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res {
		if r.Distance > 2.0 {
			t.Errorf("result %+v exceeds radius 2.0", r)
		}
	}
	if len(res) != 2 {
		t.Errorf("expected 2 results within radius 2.0 (dist 0 and ~1.41), got %d: %v", len(res), res)
	}
}

func TestBuildQuantizedEnablesQuantisedSearch(t *testing.T) {
	cfg := DefaultConfig(8, metric.L2)
	cfg.Kind = Quantised
	cfg.Quantized.NumBlobs = 4
	cfg.Quantized.NumSubspaces = 4

	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	vecs := randomVectors(40, 8, 4)
	for _, v := range vecs {
		if _, err := ix.Insert(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	if err := ix.BuildQuantized(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search(context.Background(), vecs[0], 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) == 0 {
		t.Fatal("expected results from quantised search")
	}
}

func TestInsertBatchInsertsEverything(t *testing.T) {
	cfg := DefaultConfig(8, metric.L2)
	cfg.BatchSize = 7
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	vecs := randomVectors(25, 8, 3)
	ids, err := ix.InsertBatch(context.Background(), vecs)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != len(vecs) {
		t.Fatalf("expected %d inserted ids, got %d", len(vecs), len(ids))
	}
	if ix.Len() != len(vecs) {
		t.Errorf("expected %d live objects, got %d", len(vecs), ix.Len())
	}
}

func TestInsertBatchAbortsOnBuildTimeLimit(t *testing.T) {
	cfg := DefaultConfig(8, metric.L2)
	cfg.BatchSize = 10
	cfg.BuildTimeLimitSec = 1e-9
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	vecs := randomVectors(100, 8, 4)
	ids, err := ix.InsertBatch(context.Background(), vecs)
	if !errors.Is(err, ngterr.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if len(ids) >= len(vecs) {
		t.Errorf("expected a partial build, got all %d ids", len(ids))
	}
	if ix.Len() != len(ids) {
		t.Errorf("partial index should hold exactly the returned ids: len=%d ids=%d", ix.Len(), len(ids))
	}
}

func TestDynamicEdgeSize(t *testing.T) {
	// epsilon=1 makes the exponent zero, so the width is base + 1.
	if got := dynamicEdgeSize(20, 2, 1.0); got != 21 {
		t.Errorf("dynamicEdgeSize(20, 2, 1.0) = %d, want 21", got)
	}
	// The default epsilon shrinks the additive term below one.
	if got := dynamicEdgeSize(20, 2, 0.1); got != 20 {
		t.Errorf("dynamicEdgeSize(20, 2, 0.1) = %d, want 20", got)
	}
}

func TestRepairRestoresReverseEdgesAfterMaintenance(t *testing.T) {
	cfg := DefaultConfig(4, metric.L2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	vecs := randomVectors(40, 4, 5)
	for _, v := range vecs {
		if _, err := ix.Insert(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.AdjustPaths(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if err := ix.Repair(); err != nil {
		t.Fatal(err)
	}
	// Search still works and finds an inserted vector's own id first.
	res, err := ix.Search(context.Background(), vecs[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Distance > 1e-6 {
		t.Errorf("post-repair self search failed: %v", res)
	}
}

func TestSeedAndBuildOptionsSurviveSaveOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(4, metric.L2)
	cfg.SeedKind = SeedFirst
	cfg.InsertionEpsilon = 0.2
	cfg.BatchSize = 37
	cfg.EdgeSizeForSearch = -2
	cfg.DynamicEdgeSizeBase = 15
	cfg.DynamicEdgeSizeRate = 3
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Insert(context.Background(), []float32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.cfg
	if got.SeedKind != SeedFirst || got.InsertionEpsilon != 0.2 || got.BatchSize != 37 {
		t.Errorf("seed/build options lost across save/open: %+v", got)
	}
	if got.EdgeSizeForSearch != -2 || got.DynamicEdgeSizeBase != 15 || got.DynamicEdgeSizeRate != 3 {
		t.Errorf("dynamic edge size options lost across save/open: %+v", got)
	}
}

// TestNormalizedMetricNormalisesQuery covers the unit-vector contract end
// to end: stored vectors are normalised at insert, and the query must be
// normalised the same way, so a scaled copy of an inserted vector comes
// back at distance zero.
func TestNormalizedMetricNormalisesQuery(t *testing.T) {
	cfg := DefaultConfig(4, metric.NormalizedL2)
	ix, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ix.Insert(context.Background(), []float32{0, 0, 0, 0}); !errors.Is(err, ngterr.ErrInvalidVector) {
		t.Errorf("zero-vector insert: err = %v, want ErrInvalidVector", err)
	}

	id, err := ix.Insert(context.Background(), []float32{1, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}

	res, err := ix.Search(context.Background(), []float32{2, 2, 2, 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].ID != id {
		t.Fatalf("expected the inserted id back, got %v", res)
	}
	if res[0].Distance > 1e-6 {
		t.Errorf("scaled query should match its unit vector at distance 0, got %v", res[0].Distance)
	}
}
