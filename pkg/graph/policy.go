package graph

// Integrate applies x's graph-kind-specific insertion policy against a
// caller-supplied candidate list (already found by a Searcher run against
// the pre-insertion graph, sorted nearest-first). Integrate never searches
// the graph itself — that keeps this package free of a dependency on the
// searcher package.
func (g *Graph) Integrate(x ObjectID, candidates []Edge) error {
	g.AddNode(x)
	switch g.cfg.Kind {
	case ANNG:
		g.integrateANNG(x, candidates, true)
	case IANNG:
		g.integrateIANNG(x, candidates)
	case KNNG:
		g.integrateKNNG(x, candidates)
	case BKNNG:
		// Bidirectional merge-and-resort, same shape as ANNG's reverse-edge
		// step, but truncation is an ANNG-only maintenance pass — BKNNG lists
		// are left to grow and are never queued for it.
		g.integrateANNG(x, candidates, false)
	case ONNG:
		g.integrateONNG(x, candidates)
	case DNNG:
		// Unspecified by the source algorithm; DNNG is treated as ANNG's
		// bidirectional policy without truncation, since the dynamic
		// maintenance it implies is handled by RemoveNode/AdjustPaths
		// instead of a distinct insertion rule.
		g.integrateANNG(x, candidates, false)
	}
	return nil
}

// integrateANNG stores the candidate list as x's outgoing edges and adds a
// mirrored reverse edge on every candidate. If enqueueTruncation is set, a
// candidate whose list grows past TruncationThreshold is queued for
// truncate-by-distance-then-repair maintenance.
func (g *Graph) integrateANNG(x ObjectID, candidates []Edge, enqueueTruncation bool) {
	xNode, _ := g.get(x)
	for _, c := range candidates {
		xNode.addEdge(c)
	}
	for _, c := range candidates {
		cNode, ok := g.get(c.Neighbour)
		if !ok {
			continue
		}
		cNode.addEdge(Edge{Neighbour: x, Distance: c.Distance})
		if enqueueTruncation && cNode.len() > g.cfg.TruncationThreshold {
			g.enqueueTruncate(c.Neighbour)
		}
	}
}

// integrateIANNG mirrors ANNG but resolves overflow immediately, in place,
// rather than deferring to the background truncation queue: when adding the
// reverse edge would push a candidate past EdgeSizeForCreation-1, c's single
// worst edge is evicted first, along with the mirror edge it points to, so
// no dangling one-directional edge is left behind.
func (g *Graph) integrateIANNG(x ObjectID, candidates []Edge) {
	xNode, _ := g.get(x)
	for _, c := range candidates {
		xNode.addEdge(c)
	}
	limit := g.cfg.EdgeSizeForCreation - 1
	for _, c := range candidates {
		cNode, ok := g.get(c.Neighbour)
		if !ok {
			continue
		}
		if limit > 0 {
			for cNode.len() >= limit {
				worst, ok := cNode.removeWorstEdge()
				if !ok {
					break
				}
				if eNode, ok := g.get(worst.Neighbour); ok {
					eNode.removeEdgeTo(c.Neighbour)
				}
			}
		}
		cNode.addEdge(Edge{Neighbour: x, Distance: c.Distance})
	}
}

// integrateKNNG stores only the outgoing edges; neighbours never learn of
// x, matching a plain k-nearest-neighbour graph with no reciprocal repair.
func (g *Graph) integrateKNNG(x ObjectID, candidates []Edge) {
	xNode, _ := g.get(x)
	for _, c := range candidates {
		xNode.addEdge(c)
	}
}

// integrateONNG caps x's outgoing degree at OutgoingEdge and adds reverse
// edges only for the closest IncomingEdge candidates, trading recall for a
// degree-bounded graph that never needs background truncation.
func (g *Graph) integrateONNG(x ObjectID, candidates []Edge) {
	xNode, _ := g.get(x)
	out := candidates
	if g.cfg.OutgoingEdge > 0 && len(out) > g.cfg.OutgoingEdge {
		out = out[:g.cfg.OutgoingEdge]
	}
	for _, c := range out {
		xNode.addEdge(c)
	}
	in := candidates
	if g.cfg.IncomingEdge > 0 && len(in) > g.cfg.IncomingEdge {
		in = in[:g.cfg.IncomingEdge]
	}
	for _, c := range in {
		cNode, ok := g.get(c.Neighbour)
		if !ok {
			continue
		}
		cNode.addEdge(Edge{Neighbour: x, Distance: c.Distance})
	}
}

func (g *Graph) enqueueTruncate(id ObjectID) {
	g.truncMu.Lock()
	g.truncQueue = append(g.truncQueue, id)
	g.truncMu.Unlock()
}

// PendingTruncations returns and clears the ids currently queued for
// truncation maintenance.
func (g *Graph) PendingTruncations() []ObjectID {
	g.truncMu.Lock()
	defer g.truncMu.Unlock()
	ids := g.truncQueue
	g.truncQueue = nil
	return ids
}
