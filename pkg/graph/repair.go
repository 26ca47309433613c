package graph

// Repair reinstates missing reverse edges. ANNG-family edges are
// bidirectional in intent but not at every instant — IANNG eviction,
// truncation, and interleaved removals can all leave a surviving edge
// x->y whose mirror y->x is gone. Repair walks every node's outgoing
// edges and re-adds the mirror wherever it is absent, restoring the
// quiescent-state shape of invariant G4. Kinds that are outgoing-only by
// construction (KNNG) or enforce their own exact caps (ONNG) are left
// untouched. Returns the number of edges added.
func (g *Graph) Repair() int {
	switch g.cfg.Kind {
	case KNNG, ONNG:
		return 0
	}

	g.mu.RLock()
	ids := make([]ObjectID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	added := 0
	for _, x := range ids {
		xNode, ok := g.get(x)
		if !ok {
			continue
		}
		xNode.mu.RLock()
		edges := append([]Edge{}, xNode.edges...)
		xNode.mu.RUnlock()

		for _, e := range edges {
			yNode, ok := g.get(e.Neighbour)
			if !ok {
				continue
			}
			if yNode.hasNeighbour(x) {
				continue
			}
			yNode.addEdge(Edge{Neighbour: x, Distance: e.Distance})
			added++
		}
	}
	return added
}
