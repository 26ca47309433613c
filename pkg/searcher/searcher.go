// Package searcher implements the Searcher component: best-first traversal
// of a NeighbourhoodGraph, seeded by a pluggable SeedProvider, bounded by an
// epsilon-relaxed stopping rule, and cancellable through a context.Context
// checked once per frontier pop.
package searcher

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vecgraph/ngt/pkg/graph"
	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/ngterr"
	"github.com/vecgraph/ngt/pkg/objectstore"
)

// NoRadiusLimit marks an unbounded radius (+Inf), the default when the
// caller does not supply one.
const NoRadiusLimit = float32(math.MaxFloat32)

// Stats reports per-query counters alongside a Search's results: how many
// candidates were ever visited and how many distance kernel calls that
// took.
type Stats struct {
	DistanceComputations int
	Visited              int
}

// Params bundles the per-call parameters a search needs beyond the query
// vector and k: a radius bound, a traversal-width override for the edges
// expanded per popped node, and an explicit seed list.
type Params struct {
	// Radius caps which candidates may enter the result set; <=0 means
	// NoRadiusLimit (unbounded, the default).
	Radius float32
	// Epsilon overrides the Searcher's exploration coefficient for this
	// call only; <=0 keeps the Searcher's own value. Insert-time candidate
	// collection uses this to run with its own epsilon without disturbing
	// concurrent queries.
	Epsilon float32
	// EdgeSize caps how many of a popped node's neighbours are expanded;
	// <=0 means every neighbour is expanded.
	EdgeSize int
	Seeds    []ObjectID
}

// ObjectID aliases the shared id type.
type ObjectID = objectstore.ObjectID

// Graph is the read-only surface a Searcher needs: either a live
// *graph.Graph or a frozen *graph.Compact satisfy it.
type Graph interface {
	Neighbours(id ObjectID) ([]graph.Edge, error)
}

// Result is one hit, ordered nearest-first in Search's return value.
type Result struct {
	ID       ObjectID
	Distance float32
}

// Searcher runs best-first graph traversal against a fixed store, graph,
// and distance function.
type Searcher struct {
	store  *objectstore.Store
	g      Graph
	dist   metric.Func
	seeder SeedProvider
	// Epsilon relaxes the stopping rule: traversal continues while the
	// frontier's best candidate is within (1+Epsilon) of the current
	// worst kept result, trading latency for recall.
	Epsilon float32
}

// New builds a Searcher. seeder may be nil, meaning Search requires an
// explicit seed list on every call.
func New(store *objectstore.Store, g Graph, dist metric.Func, seeder SeedProvider) *Searcher {
	return &Searcher{store: store, g: g, dist: dist, seeder: seeder, Epsilon: 0.1}
}

// Seeder returns the SeedProvider this Searcher was constructed with, so
// callers rebinding a Searcher to a different Graph implementation (e.g.
// freezing to a compact read-only snapshot) can carry it forward.
func (s *Searcher) Seeder() SeedProvider { return s.seeder }

type frontierItem struct {
	id   ObjectID
	dist float32
}

type frontierHeap []frontierItem

func (h frontierHeap) Len() int            { return len(h) }
func (h frontierHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h frontierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x interface{}) { *h = append(*h, x.(frontierItem)) }
func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type resultHeap []frontierItem // max-heap: worst-of-kept at the root

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(frontierItem)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Search runs best-first traversal for the k nearest neighbours of query
// with no radius bound and no per-node edge-size override. It is a thin
// convenience wrapper around SearchParams for callers that only need top-k.
func (s *Searcher) Search(ctx context.Context, query []float32, k int, seeds []ObjectID) ([]Result, error) {
	res, _, err := s.SearchParams(ctx, query, k, Params{Seeds: seeds})
	return res, err
}

// SearchParams runs best-first traversal for the k nearest neighbours of
// query, honoring a radius bound and an edge-size traversal-width override.
// If Params.Seeds is non-empty it is used verbatim; otherwise the
// Searcher's SeedProvider supplies the initial frontier. Steps:
//  1. seed the frontier, marking each seed visited
//  2. compute bound B = (k-th-best * (1+Epsilon) if result is full else
//     +∞), capped at Radius
//  3. pop the closest frontier node, checking ctx once per pop;
//     stop if the frontier is exhausted or its best exceeds B
//  4. expand up to EdgeSize of the popped node's neighbours: admit each to
//     the result set if its distance is within Radius, and to the frontier
//     if within B
//  5. recompute B and repeat
//  6. return nearest-first results; on cancellation return whatever was
//     collected plus ErrAborted
func (s *Searcher) SearchParams(ctx context.Context, query []float32, k int, p Params) ([]Result, Stats, error) {
	var stats Stats
	if k <= 0 {
		return nil, stats, nil
	}
	// The Normalized metric family compares unit vectors on both sides;
	// stored vectors were normalised at insert, the query must be too.
	query, err := s.store.PrepareQuery(query)
	if err != nil {
		return nil, stats, fmt.Errorf("searcher: %w", err)
	}
	radius := p.Radius
	if radius <= 0 {
		radius = NoRadiusLimit
	}
	epsilon := p.Epsilon
	if epsilon <= 0 {
		epsilon = s.Epsilon
	}
	seeds := p.Seeds
	if len(seeds) == 0 && s.seeder != nil {
		seeds = s.seeder.Seeds(s.store)
	}
	if len(seeds) == 0 {
		return nil, stats, fmt.Errorf("searcher: no seeds available")
	}

	visited := make(map[ObjectID]bool)
	frontier := &frontierHeap{}
	results := &resultHeap{}
	heap.Init(frontier)
	heap.Init(results)

	bound := func() float32 {
		b := radius
		if results.Len() >= k {
			eps := (*results)[0].dist * (1 + epsilon)
			if eps < b {
				b = eps
			}
		}
		return b
	}

	admit := func(id ObjectID, b float32) {
		if visited[id] {
			return
		}
		visited[id] = true
		stats.Visited++
		vec, err := s.store.Get(id)
		if err != nil {
			return
		}
		d, err := s.dist(query, vec)
		if err != nil {
			return
		}
		stats.DistanceComputations++
		if d <= radius {
			heap.Push(results, frontierItem{id: id, dist: d})
			if results.Len() > k {
				heap.Pop(results)
			}
		}
		if d <= b {
			heap.Push(frontier, frontierItem{id: id, dist: d})
		}
	}

	seedBound := bound()
	for _, id := range seeds {
		admit(id, seedBound)
	}

	for frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return sortedResults(results), stats, fmt.Errorf("searcher: %w", ngterr.ErrAborted)
		}

		b := bound()
		if (*frontier)[0].dist > b {
			break
		}

		top := heap.Pop(frontier).(frontierItem)
		neighbours, err := s.g.Neighbours(top.id)
		if err != nil {
			continue
		}
		if p.EdgeSize > 0 && len(neighbours) > p.EdgeSize {
			neighbours = neighbours[:p.EdgeSize]
		}
		for _, e := range neighbours {
			admit(e.Neighbour, b)
		}
	}

	return sortedResults(results), stats, nil
}

func sortedResults(h *resultHeap) []Result {
	items := append([]frontierItem{}, (*h)...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].id < items[j].id
	})
	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = Result{ID: it.id, Distance: it.dist}
	}
	return out
}
