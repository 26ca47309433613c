package graph

// Truncate applies the chosen edge-truncation strategy (truncate by
// distance, then rebuild reachability) to a single node: edges beyond
// cap = max(TruncationThreshold,
// EdgeSizeForCreation) are dropped, and any dropped edge whose target is not
// reachable in two hops through the retained prefix is reinserted as a
// bridge edge on kept[0], the retained neighbour closest to x, so the graph
// never silently loses a component.
func (g *Graph) Truncate(x ObjectID) error {
	xNode, ok := g.get(x)
	if !ok {
		return nil
	}
	cap := g.cfg.TruncationThreshold
	if g.cfg.EdgeSizeForCreation > cap {
		cap = g.cfg.EdgeSizeForCreation
	}
	if cap <= 0 {
		return nil
	}

	xNode.mu.Lock()
	if len(xNode.edges) <= cap {
		xNode.mu.Unlock()
		return nil
	}
	kept := append([]Edge{}, xNode.edges[:cap]...)
	evicted := append([]Edge{}, xNode.edges[cap:]...)
	xNode.edges = kept
	xNode.mu.Unlock()

	if len(kept) == 0 {
		return nil
	}

	for _, e := range evicted {
		if g.twoHopReachable(kept, e.Neighbour) {
			continue
		}
		bridge := kept[0]
		if bridgeNode, ok := g.get(bridge.Neighbour); ok {
			bridgeNode.addEdge(e)
		}
	}
	return nil
}

func (g *Graph) twoHopReachable(from []Edge, target ObjectID) bool {
	for _, r := range from {
		if r.Neighbour == target {
			return true
		}
		if rNode, ok := g.get(r.Neighbour); ok && rNode.hasNeighbour(target) {
			return true
		}
	}
	return false
}

// DrainTruncations runs Truncate over every id queued by Integrate since
// the last call, in FIFO order.
func (g *Graph) DrainTruncations() error {
	for _, id := range g.PendingTruncations() {
		if err := g.Truncate(id); err != nil {
			return err
		}
	}
	return nil
}
