package graph

import (
	"fmt"

	"github.com/vecgraph/ngt/pkg/ngterr"
)

// Compact is a read-only, densely packed snapshot of a Graph: flat arrays
// instead of per-node maps and mutexes, for serving search traffic without
// per-node lock overhead once a graph has stopped mutating. Any attempt to
// mutate it returns ErrReadOnly via the caller's own check; Compact exposes
// no mutating methods at all.
type Compact struct {
	ids     []ObjectID
	index   map[ObjectID]int
	offsets []int32 // offsets[i]..offsets[i+1] bound ids[i]'s edges in edges
	edges   []Edge
}

// Freeze packs g into a Compact snapshot. The graph is read-locked only
// while the node ids are collected; each node's edges are then copied under
// that node's own read lock, so a concurrent Integrate is not blocked for
// the whole copy and may land before or after a given node is copied.
func (g *Graph) Freeze() *Compact {
	g.mu.RLock()
	ids := make([]ObjectID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	c := &Compact{
		ids:     ids,
		index:   make(map[ObjectID]int, len(ids)),
		offsets: make([]int32, len(ids)+1),
	}
	for i, id := range ids {
		c.index[id] = i
	}
	var total int32
	for i, id := range ids {
		n, _ := g.get(id)
		n.mu.RLock()
		c.edges = append(c.edges, n.edges...)
		total += int32(len(n.edges))
		n.mu.RUnlock()
		c.offsets[i+1] = total
	}
	return c
}

// Neighbours returns id's edges, or an error wrapping ngterr.ErrNotFound if
// id was not present when Freeze ran.
func (c *Compact) Neighbours(id ObjectID) ([]Edge, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("graph: compact snapshot has no node %d: %w", id, ngterr.ErrNotFound)
	}
	return c.edges[c.offsets[i]:c.offsets[i+1]], nil
}

// Size returns the number of nodes in the snapshot.
func (c *Compact) Size() int { return len(c.ids) }

// IDs returns the snapshot's node ids in frozen order. The returned slice
// must not be mutated.
func (c *Compact) IDs() []ObjectID { return c.ids }
