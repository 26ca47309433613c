package graph

import (
	"context"
	"sync"
)

// AdjustPaths removes redundant edges: an edge x->y is redundant if some
// earlier (shorter-distance) neighbour z of x already reaches y directly at
// no greater distance, since a search descending x's edge list in order
// would discover y via z first anyway. Nodes are processed concurrently by
// a fixed-size worker pool, the same fan-out shape
// diskann.DiskGraph.BatchReadNodes uses for batched node access.
func (g *Graph) AdjustPaths(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g.mu.RLock()
	ids := make([]ObjectID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	jobs := make(chan ObjectID)
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := ctx.Err(); err != nil {
					select {
					case errCh <- err:
					default:
					}
					continue
				}
				g.adjustOne(id)
			}
		}()
	}

feed:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (g *Graph) adjustOne(x ObjectID) {
	xNode, ok := g.get(x)
	if !ok {
		return
	}
	xNode.mu.Lock()
	edges := xNode.edges
	keep := edges[:0:0]
	for rank, e := range edges {
		redundant := false
		for _, z := range edges[:rank] {
			zNode, ok := g.get(z.Neighbour)
			if !ok {
				continue
			}
			if d, ok := zNode.distanceTo(e.Neighbour); ok && d <= e.Distance {
				redundant = true
				break
			}
		}
		if !redundant {
			keep = append(keep, e)
		}
	}
	xNode.edges = keep
	xNode.mu.Unlock()
}

func (n *node) distanceTo(id ObjectID) (float32, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, e := range n.edges {
		if e.Neighbour == id {
			return e.Distance, true
		}
	}
	return 0, false
}
