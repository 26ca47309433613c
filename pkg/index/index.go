// Package index implements the IndexFacade component: the composition root
// binding MetricKernels, ObjectStore, NeighbourhoodGraph, Searcher, and
// optionally QuantisedInvertedIndex behind a single-writer/many-reader
// envelope, with a persisted on-disk directory layout.
package index

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vecgraph/ngt/pkg/concurrency"
	"github.com/vecgraph/ngt/pkg/graph"
	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/ngterr"
	"github.com/vecgraph/ngt/pkg/objectstore"
	"github.com/vecgraph/ngt/pkg/quantized"
	"github.com/vecgraph/ngt/pkg/searcher"
	"github.com/vecgraph/ngt/pkg/telemetry"
)

// Kind is the closed set of index facades supported.
type Kind int

const (
	// Graph searches the live NeighbourhoodGraph directly, seeded randomly.
	Graph Kind = iota
	// GraphWithTreeSeed searches the graph but is seeded from an
	// auxiliary leaf set (e.g. a vantage-point tree over objects)
	// instead of random sampling.
	GraphWithTreeSeed
	// Quantised searches a QuantisedInvertedIndex built over the graph's
	// objects, trading recall for memory and latency.
	Quantised
)

// SeedKind selects how a search's initial frontier is chosen when the
// caller supplies no explicit seeds.
type SeedKind int

const (
	// SeedRandom samples up to SeedSize live ids (default when unset).
	SeedRandom SeedKind = iota
	// SeedNone requires an explicit seed list on every search call.
	SeedNone
	// SeedFixed always starts from Config.FixedSeeds.
	SeedFixed
	// SeedFirst starts from the single smallest live id.
	SeedFirst
	// SeedAllLeaf starts from every leaf in Config.TreeSeedLeaves.
	SeedAllLeaf
)

func (k SeedKind) String() string {
	switch k {
	case SeedNone:
		return "None"
	case SeedRandom:
		return "Random"
	case SeedFixed:
		return "Fixed"
	case SeedFirst:
		return "First"
	case SeedAllLeaf:
		return "AllLeaf"
	default:
		return "unknown"
	}
}

// Config fixes everything an Index needs to construct its component
// pipeline.
type Config struct {
	Kind       Kind
	Dim        int
	ScalarKind metric.ScalarKind
	Metric     metric.Metric

	Graph     graph.Config
	Quantized quantized.Config

	// CandidateSize bounds how many neighbours Insert searches for before
	// handing them to the graph's insertion policy.
	CandidateSize int

	// InsertionEpsilon is the exploration coefficient Insert's candidate
	// search runs with (default 0.1, a 1.1x bound multiplier).
	InsertionEpsilon float32

	// EdgeSizeForSearch overrides how many of a popped node's edges a
	// Search traversal expands; <=0 defaults to Graph.EdgeSizeForCreation,
	// and the sentinel -2 derives the width from DynamicEdgeSizeBase and
	// DynamicEdgeSizeRate instead.
	EdgeSizeForSearch int

	// DynamicEdgeSizeBase and DynamicEdgeSizeRate feed the dynamic
	// traversal width base + 10^((epsilon-1)*rate), consulted only when
	// EdgeSizeForSearch == -2.
	DynamicEdgeSizeBase int
	DynamicEdgeSizeRate int

	// BatchSize groups InsertBatch's bulk build into build-time-limit
	// checkpoints (default 200).
	BatchSize int

	// BuildTimeLimitSec aborts InsertBatch once exceeded, returning the
	// partially built index; <=0 means no limit.
	BuildTimeLimitSec float64

	// SeedKind and SeedSize configure the default SeedProvider. SeedSize
	// <=0 falls back to the sentinel 10 for SeedRandom.
	SeedKind SeedKind
	SeedSize int

	// FixedSeeds is consulted only when SeedKind == SeedFixed.
	FixedSeeds []graph.ObjectID

	// TreeSeedLeaves is consulted when Kind == GraphWithTreeSeed or
	// SeedKind == SeedAllLeaf.
	TreeSeedLeaves []graph.ObjectID
}

// DefaultConfig returns reasonable defaults for a Graph-kind index of the
// given dimension and metric.
func DefaultConfig(dim int, m metric.Metric) Config {
	return Config{
		Kind:             Graph,
		Dim:              dim,
		ScalarKind:       metric.F32,
		Metric:           m,
		Graph:            graph.DefaultConfig(),
		Quantized:        quantized.DefaultConfig(),
		CandidateSize:    10,
		InsertionEpsilon: 0.1,
		BatchSize:        200,
		SeedKind:         SeedRandom,
	}
}

// Index is the IndexFacade: it owns an ObjectStore, a NeighbourhoodGraph,
// a Searcher bound to both, and (for the Quantised kind) a
// QuantisedInvertedIndex built on demand from the current graph contents.
type Index struct {
	cfg      Config
	env      concurrency.Envelope
	store    *objectstore.Store
	g        *graph.Graph
	readOnly bool
	dist     metric.Func
	search   *searcher.Searcher
	qix      *quantized.Index
	metrics  *telemetry.Metrics
	log      *telemetry.Logger
}

// New constructs an empty Index from cfg.
func New(cfg Config) (*Index, error) {
	fn, err := metric.Kernel(cfg.ScalarKind, cfg.Metric)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	store := objectstore.Allocate(cfg.ScalarKind, cfg.Dim, cfg.Metric)
	g := graph.New(cfg.Graph)
	return newFromParts(cfg, store, g, fn), nil
}

// newFromParts builds an Index around an already-constructed store and
// graph, used both by New (fresh, empty parts) and by Open (parts
// reconstructed from a persisted directory).
func newFromParts(cfg Config, store *objectstore.Store, g *graph.Graph, fn metric.Func) *Index {
	var seeder searcher.SeedProvider
	switch {
	case cfg.Kind == GraphWithTreeSeed || cfg.SeedKind == SeedAllLeaf:
		seeder = searcher.AllLeafSeeder{Leaves: cfg.TreeSeedLeaves}
	case cfg.SeedKind == SeedNone:
		seeder = searcher.NoneSeeder{}
	case cfg.SeedKind == SeedFixed:
		seeder = searcher.FixedSeeder{IDs: cfg.FixedSeeds}
	case cfg.SeedKind == SeedFirst:
		seeder = searcher.FirstSeeder{}
	default:
		rs := searcher.NewRandomSeeder()
		if cfg.SeedSize > 0 {
			rs.Size = cfg.SeedSize
		}
		seeder = rs
	}

	return &Index{
		cfg:     cfg,
		store:   store,
		g:       g,
		dist:    fn,
		search:  searcher.New(store, g, fn, seeder),
		metrics: telemetry.NewMetrics(),
		log:     telemetry.GetGlobalLogger(),
	}
}

// Insert adds vec to the store and integrates it into the graph under the
// write lock, so no reader ever observes the new object's vector without
// its graph edges or vice versa.
func (ix *Index) Insert(ctx context.Context, vec []float32) (graph.ObjectID, error) {
	if ix.readOnly {
		return 0, fmt.Errorf("index: insert: %w", ngterr.ErrReadOnly)
	}
	var id graph.ObjectID
	err := ix.env.Write(func() error {
		var err error
		id, err = ix.store.Insert(vec)
		if err != nil {
			return fmt.Errorf("index: insert: %w", err)
		}
		ix.g.AddNode(id)

		if ix.store.LiveCount() > 1 {
			results, _, err := ix.search.SearchParams(ctx, vec, ix.cfg.CandidateSize+1, searcher.Params{
				Epsilon: ix.cfg.InsertionEpsilon,
			})
			if err != nil && len(results) == 0 {
				return fmt.Errorf("index: insert: finding candidates: %w", err)
			}
			candidates := make([]graph.Edge, 0, ix.cfg.CandidateSize)
			for _, r := range results {
				if r.ID == id {
					continue
				}
				candidates = append(candidates, graph.Edge{Neighbour: r.ID, Distance: r.Distance})
				if len(candidates) >= ix.cfg.CandidateSize {
					break
				}
			}
			if err := ix.g.Integrate(id, candidates); err != nil {
				return fmt.Errorf("index: insert: integrating: %w", err)
			}
			if err := ix.g.DrainTruncations(); err != nil {
				return fmt.Errorf("index: insert: truncating: %w", err)
			}
		}
		ix.metrics.ObjectsInserted.Inc()
		ix.metrics.GraphSize.WithLabelValues("default").Set(float64(ix.g.Size()))
		return nil
	})
	return id, err
}

// InsertBatch bulk-inserts vecs in BatchSize groups, checking the
// configured build time limit between groups. On expiry it stops and
// returns the ids inserted so far alongside ErrAborted — the index remains
// usable with the partial contents.
func (ix *Index) InsertBatch(ctx context.Context, vecs [][]float32) ([]graph.ObjectID, error) {
	if ix.readOnly {
		return nil, fmt.Errorf("index: insert batch: %w", ngterr.ErrReadOnly)
	}
	batch := ix.cfg.BatchSize
	if batch <= 0 {
		batch = 200
	}
	start := time.Now()
	ids := make([]graph.ObjectID, 0, len(vecs))
	for off := 0; off < len(vecs); off += batch {
		if ix.cfg.BuildTimeLimitSec > 0 && time.Since(start).Seconds() > ix.cfg.BuildTimeLimitSec {
			return ids, fmt.Errorf("index: insert batch: build time limit %.3fs exceeded: %w",
				ix.cfg.BuildTimeLimitSec, ngterr.ErrAborted)
		}
		end := off + batch
		if end > len(vecs) {
			end = len(vecs)
		}
		for _, v := range vecs[off:end] {
			id, err := ix.Insert(ctx, v)
			if err != nil {
				return ids, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Remove deletes id from both the store and the graph under the write
// lock.
func (ix *Index) Remove(id graph.ObjectID) error {
	if ix.readOnly {
		return fmt.Errorf("index: remove: %w", ngterr.ErrReadOnly)
	}
	return ix.env.Write(func() error {
		if err := ix.store.Remove(id); err != nil {
			return fmt.Errorf("index: remove: %w", err)
		}
		if err := ix.g.RemoveNode(id); err != nil {
			return fmt.Errorf("index: remove: %w", err)
		}
		ix.metrics.ObjectsRemoved.Inc()
		ix.metrics.GraphSize.WithLabelValues("default").Set(float64(ix.g.Size()))
		return nil
	})
}

// Search runs under a read lock, so it may proceed concurrently with other
// searches but never with a writer. It is a convenience wrapper around
// SearchRadius with no radius bound (radius defaults to unbounded).
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]searcher.Result, error) {
	return ix.SearchRadius(ctx, query, k, 0)
}

// SearchRadius runs the same read-locked search as Search but additionally
// bounds accepted results to within radius (<=0 means unbounded).
func (ix *Index) SearchRadius(ctx context.Context, query []float32, k int, radius float32) ([]searcher.Result, error) {
	return ix.SearchWith(ctx, query, k, SearchOptions{Radius: radius})
}

// SearchOptions carries the per-call overrides SearchWith accepts beyond
// the query and k: a radius bound, an exploration-coefficient override,
// and a traversal-width override. Zero values defer to the index
// configuration.
type SearchOptions struct {
	Radius   float32
	Epsilon  float32
	EdgeSize int
}

// SearchWith runs a read-locked search with per-call overrides. The
// Quantised index kind does not support a radius or edge-size bound since
// ADT scanning and refinement are expressed purely in top-k terms; those
// options are ignored for that kind.
func (ix *Index) SearchWith(ctx context.Context, query []float32, k int, opts SearchOptions) ([]searcher.Result, error) {
	var results []searcher.Result
	err := ix.env.Read(func() error {
		var err error
		if ix.cfg.Kind == Quantised {
			if ix.qix == nil {
				return ErrNotBuilt
			}
			q, perr := ix.store.PrepareQuery(query)
			if perr != nil {
				return fmt.Errorf("index: search: %w", perr)
			}
			qresults, qerr := ix.qix.Search(ctx, q, k)
			if qerr != nil {
				return qerr
			}
			results = make([]searcher.Result, len(qresults))
			for i, r := range qresults {
				results[i] = searcher.Result{ID: r.ID, Distance: r.Distance}
			}
			return nil
		}
		epsilon := opts.Epsilon
		if epsilon <= 0 {
			epsilon = ix.search.Epsilon
		}
		edgeSize := opts.EdgeSize
		if edgeSize <= 0 {
			edgeSize = ix.edgeSizeForSearch(epsilon)
		}
		results, _, err = ix.search.SearchParams(ctx, query, k, searcher.Params{
			Radius:   opts.Radius,
			Epsilon:  epsilon,
			EdgeSize: edgeSize,
		})
		return err
	})
	ix.metrics.SearchResultSize.Observe(float64(len(results)))
	return results, err
}

// edgeSizeForSearch resolves the configured traversal width: an explicit
// positive override wins, the sentinel -2 computes
// base + 10^((epsilon-1)*rate), and anything else falls back to the
// graph's creation-time edge size.
func (ix *Index) edgeSizeForSearch(epsilon float32) int {
	switch {
	case ix.cfg.EdgeSizeForSearch > 0:
		return ix.cfg.EdgeSizeForSearch
	case ix.cfg.EdgeSizeForSearch == -2:
		return dynamicEdgeSize(ix.cfg.DynamicEdgeSizeBase, ix.cfg.DynamicEdgeSizeRate, epsilon)
	default:
		return ix.cfg.Graph.EdgeSizeForCreation
	}
}

func dynamicEdgeSize(base, rate int, epsilon float32) int {
	return base + int(math.Pow(10, float64(epsilon-1)*float64(rate)))
}

// BuildQuantized trains a QuantisedInvertedIndex over every currently-live
// object, for use by the Quantised index kind. It requires exclusive
// access since it reads the entire live object set as one operation.
func (ix *Index) BuildQuantized(ctx context.Context) error {
	if ix.readOnly {
		return fmt.Errorf("index: build quantised: %w", ngterr.ErrReadOnly)
	}
	return ix.env.Write(func() error {
		ids := ix.store.LiveIDs()
		qix := quantized.New(ix.store, ix.dist, ix.cfg.Quantized)
		if err := qix.Build(ctx, ids); err != nil {
			return fmt.Errorf("index: build quantised: %w", err)
		}
		ix.qix = qix
		return nil
	})
}

// AdjustPaths runs redundant-edge removal over the whole graph under the
// write lock.
func (ix *Index) AdjustPaths(ctx context.Context, workers int) error {
	if ix.readOnly {
		return fmt.Errorf("index: adjust paths: %w", ngterr.ErrReadOnly)
	}
	return ix.env.Write(func() error {
		if err := ix.g.AdjustPaths(ctx, workers); err != nil {
			return fmt.Errorf("index: adjust paths: %w", err)
		}
		ix.metrics.PathAdjustments.Inc()
		return nil
	})
}

// Repair reinstates missing reverse edges across the whole graph under
// the write lock, restoring the bidirectional shape ANNG-family kinds
// converge to at quiescence.
func (ix *Index) Repair() error {
	if ix.readOnly {
		return fmt.Errorf("index: repair: %w", ngterr.ErrReadOnly)
	}
	return ix.env.Write(func() error {
		added := ix.g.Repair()
		if added > 0 {
			ix.log.Debug("repair reinstated reverse edges", map[string]interface{}{"added": added})
		}
		return nil
	})
}

// Len reports the number of live objects.
func (ix *Index) Len() int { return ix.store.LiveCount() }

// LiveIDs returns every currently-live object id, for callers (e.g. export
// tooling) that need to enumerate the whole index.
func (ix *Index) LiveIDs() []graph.ObjectID {
	var ids []graph.ObjectID
	ix.env.Read(func() error {
		ids = ix.store.LiveIDs()
		return nil
	})
	return ids
}

// VectorOf returns a copy-on-read view of id's stored vector.
func (ix *Index) VectorOf(id graph.ObjectID) ([]float32, error) {
	var vec []float32
	err := ix.env.Read(func() error {
		v, err := ix.store.Get(id)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	return vec, err
}

// DrainTruncations runs any edge-truncation maintenance queued by prior
// Integrate calls that Insert itself hasn't already drained.
func (ix *Index) DrainTruncations() error {
	if ix.readOnly {
		return fmt.Errorf("index: drain truncations: %w", ngterr.ErrReadOnly)
	}
	return ix.env.Write(func() error {
		return ix.g.DrainTruncations()
	})
}

// ErrNotBuilt is returned by Search against a Quantised-kind index that has
// not had BuildQuantized called on it yet.
var ErrNotBuilt = fmt.Errorf("index: quantised index not built: %w", ngterr.ErrInternal)
