// Package graph implements the NeighbourhoodGraph component: an adjacency
// list keyed by ObjectId, with edges carrying distances, six graph-kind
// insertion policies, edge truncation, path adjustment, and an optional
// read-only compact form.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vecgraph/ngt/pkg/objectstore"
)

// ObjectID aliases the store's id type so callers don't need to import both
// packages for the same concept.
type ObjectID = objectstore.ObjectID

// Kind is the closed set of graph construction policies.
type Kind int

const (
	ANNG Kind = iota
	IANNG
	KNNG
	BKNNG
	ONNG
	DNNG
)

func (k Kind) String() string {
	switch k {
	case ANNG:
		return "ANNG"
	case IANNG:
		return "IANNG"
	case KNNG:
		return "KNNG"
	case BKNNG:
		return "BKNNG"
	case ONNG:
		return "ONNG"
	case DNNG:
		return "DNNG"
	default:
		return "unknown"
	}
}

// Edge is a directed, distance-weighted connection to a neighbour.
type Edge struct {
	Neighbour ObjectID
	Distance  float32
}

// Config holds the build-time parameters that affect graph construction
// and maintenance.
type Config struct {
	Kind                     Kind
	EdgeSizeForCreation      int // IANNG eviction limit is this minus one; Truncate's cap is at least this (default 10). Insert's candidate count comes from index.Config.CandidateSize, not from this field.
	EdgeSizeLimitForCreation int // persisted and validated only; no graph code reads it, and truncation does not depend on it (default 5)
	TruncationThreshold      int // soft cap beyond which truncation is queued (default 50)
	OutgoingEdge             int // ONNG outgoing cap
	IncomingEdge             int // ONNG incoming cap
}

// DefaultConfig returns reasonable defaults for a freshly built graph.
func DefaultConfig() Config {
	return Config{
		Kind:                     ANNG,
		EdgeSizeForCreation:      10,
		EdgeSizeLimitForCreation: 5,
		TruncationThreshold:      50,
		OutgoingEdge:             10,
		IncomingEdge:             10,
	}
}

// node is the adjacency list for one ObjectId, guarded independently so
// concurrent integration of unrelated nodes doesn't serialise on a single
// graph-wide lock — the same per-node mutex shape as nsg.Node.
type node struct {
	mu    sync.RWMutex
	edges []Edge
}

// Graph is the mutable, incrementally-built NeighbourhoodGraph.
type Graph struct {
	cfg Config

	mu    sync.RWMutex // protects the nodes map's key set, not individual adjacency lists
	nodes map[ObjectID]*node

	truncMu    sync.Mutex
	truncQueue []ObjectID
}

// New creates an empty graph with the given configuration.
func New(cfg Config) *Graph {
	return &Graph{
		cfg:   cfg,
		nodes: make(map[ObjectID]*node),
	}
}

// Kind returns the graph's construction policy.
func (g *Graph) Kind() Kind { return g.cfg.Kind }

// AddNode ensures id has an (possibly empty) adjacency list, satisfying
// invariant G1 for every live ObjectId.
func (g *Graph) AddNode(id ObjectID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &node{}
	}
}

// RemoveNode deletes id's adjacency list and strips every edge in the graph
// that points at id, so no search can ever return a removed object.
func (g *Graph) RemoveNode(id ObjectID) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("graph: node %d not found", id)
	}
	delete(g.nodes, id)
	others := make([]*node, 0, len(g.nodes))
	for _, other := range g.nodes {
		others = append(others, other)
	}
	g.mu.Unlock()

	n.mu.Lock()
	n.edges = nil
	n.mu.Unlock()

	for _, other := range others {
		other.mu.Lock()
		filtered := other.edges[:0:0]
		for _, e := range other.edges {
			if e.Neighbour != id {
				filtered = append(filtered, e)
			}
		}
		other.edges = filtered
		other.mu.Unlock()
	}
	return nil
}

// Neighbours returns a copy of id's adjacency list, ordered by distance
// ascending (ties by neighbour ascending), per invariant G3.
func (g *Graph) Neighbours(id ObjectID) ([]Edge, error) {
	n, ok := g.get(id)
	if !ok {
		return nil, fmt.Errorf("graph: node %d not found", id)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Edge, len(n.edges))
	copy(out, n.edges)
	return out, nil
}

// Size returns the number of nodes currently in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) get(id ObjectID) (*node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// sortedInsert inserts e into a node's edge list maintaining the ordering
// invariant (distance ascending, ties by neighbour ascending), replacing any
// existing edge to the same neighbour, and returns the updated slice.
func sortedInsert(edges []Edge, e Edge) []Edge {
	for i, existing := range edges {
		if existing.Neighbour == e.Neighbour {
			if existing.Distance == e.Distance {
				return edges
			}
			edges = append(edges[:i], edges[i+1:]...)
			break
		}
	}
	idx := sort.Search(len(edges), func(i int) bool {
		if edges[i].Distance != e.Distance {
			return edges[i].Distance > e.Distance
		}
		return edges[i].Neighbour > e.Neighbour
	})
	edges = append(edges, Edge{})
	copy(edges[idx+1:], edges[idx:])
	edges[idx] = e
	return edges
}

func (n *node) addEdge(e Edge) {
	n.mu.Lock()
	n.edges = sortedInsert(n.edges, e)
	n.mu.Unlock()
}

func (n *node) removeWorstEdge() (Edge, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.edges) == 0 {
		return Edge{}, false
	}
	worst := n.edges[len(n.edges)-1]
	n.edges = n.edges[:len(n.edges)-1]
	return worst, true
}

// removeEdgeTo removes the edge pointing at id, if any, and reports whether
// one was removed.
func (n *node) removeEdgeTo(id ObjectID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.edges {
		if e.Neighbour == id {
			n.edges = append(n.edges[:i], n.edges[i+1:]...)
			return true
		}
	}
	return false
}

func (n *node) hasNeighbour(id ObjectID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, e := range n.edges {
		if e.Neighbour == id {
			return true
		}
	}
	return false
}

func (n *node) len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.edges)
}
