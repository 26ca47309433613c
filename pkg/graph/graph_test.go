package graph

import (
	"bytes"
	"context"
	"testing"
)

func TestAddNodeSatisfiesG1(t *testing.T) {
	g := New(DefaultConfig())
	g.AddNode(1)
	edges, err := g.Neighbours(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("fresh node should have no edges, got %v", edges)
	}
}

func TestANNGIntegrateAddsReverseEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = ANNG
	g := New(cfg)
	g.AddNode(1)
	g.AddNode(2)
	g.AddNode(3)

	if err := g.Integrate(1, []Edge{{Neighbour: 2, Distance: 1}, {Neighbour: 3, Distance: 2}}); err != nil {
		t.Fatal(err)
	}

	n1, _ := g.Neighbours(1)
	if len(n1) != 2 {
		t.Fatalf("node 1 should have 2 outgoing edges, got %v", n1)
	}
	n2, _ := g.Neighbours(2)
	if len(n2) != 1 || n2[0].Neighbour != 1 {
		t.Errorf("node 2 should have reverse edge to 1, got %v", n2)
	}
}

func TestEdgeOrderingInvariant(t *testing.T) {
	g := New(DefaultConfig())
	g.AddNode(1)
	n, _ := g.get(1)
	n.addEdge(Edge{Neighbour: 5, Distance: 3})
	n.addEdge(Edge{Neighbour: 2, Distance: 1})
	n.addEdge(Edge{Neighbour: 3, Distance: 1})

	edges, _ := g.Neighbours(1)
	for i := 1; i < len(edges); i++ {
		if edges[i].Distance < edges[i-1].Distance {
			t.Fatalf("edges not sorted by distance: %v", edges)
		}
		if edges[i].Distance == edges[i-1].Distance && edges[i].Neighbour < edges[i-1].Neighbour {
			t.Fatalf("tie not broken by ascending neighbour id: %v", edges)
		}
	}
}

func TestKNNGHasNoReverseEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = KNNG
	g := New(cfg)
	g.AddNode(1)
	g.AddNode(2)
	g.Integrate(1, []Edge{{Neighbour: 2, Distance: 1}})

	n2, _ := g.Neighbours(2)
	if len(n2) != 0 {
		t.Errorf("KNNG should not create reverse edges, got %v", n2)
	}
}

func TestONNGCapsOutgoingDegree(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = ONNG
	cfg.OutgoingEdge = 2
	cfg.IncomingEdge = 1
	g := New(cfg)
	for i := ObjectID(1); i <= 5; i++ {
		g.AddNode(i)
	}
	candidates := []Edge{
		{Neighbour: 2, Distance: 1},
		{Neighbour: 3, Distance: 2},
		{Neighbour: 4, Distance: 3},
		{Neighbour: 5, Distance: 4},
	}
	g.Integrate(1, candidates)

	n1, _ := g.Neighbours(1)
	if len(n1) != 2 {
		t.Errorf("ONNG should cap outgoing degree at 2, got %d", len(n1))
	}
	n2, _ := g.Neighbours(2)
	if len(n2) != 1 {
		t.Errorf("ONNG should give closest candidate a reverse edge, got %v", n2)
	}
	n3, _ := g.Neighbours(3)
	if len(n3) != 0 {
		t.Errorf("ONNG should not reverse-edge beyond IncomingEdge, got %v", n3)
	}
}

func TestIANNGEvictsWorstEdgeAndItsMirror(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = IANNG
	cfg.EdgeSizeForCreation = 2 // limit = EdgeSizeForCreation-1 = 1
	g := New(cfg)
	for _, id := range []ObjectID{1, 2, 5} {
		g.AddNode(id)
	}
	// Node 2 already has one (bidirectional) edge to node 5.
	n2, _ := g.get(2)
	n2.addEdge(Edge{Neighbour: 5, Distance: 10})
	n5, _ := g.get(5)
	n5.addEdge(Edge{Neighbour: 2, Distance: 10})

	if err := g.Integrate(1, []Edge{{Neighbour: 2, Distance: 1}}); err != nil {
		t.Fatal(err)
	}

	edges2, _ := g.Neighbours(2)
	if len(edges2) != 1 || edges2[0].Neighbour != 1 {
		t.Fatalf("node 2 should have evicted its worst edge (to 5) and gained a reverse edge to 1, got %v", edges2)
	}
	edges5, _ := g.Neighbours(5)
	for _, e := range edges5 {
		if e.Neighbour == 2 {
			t.Errorf("expected mirror edge 5->2 removed alongside evicted edge 2->5, got %v", edges5)
		}
	}
	edges1, _ := g.Neighbours(1)
	if len(edges1) != 1 || edges1[0].Neighbour != 2 {
		t.Errorf("node 1 should have outgoing edge to candidate 2, got %v", edges1)
	}
}

func TestTruncateBridgesUnreachableNode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TruncationThreshold = 2
	cfg.EdgeSizeForCreation = 2
	g := New(cfg)
	for i := ObjectID(1); i <= 4; i++ {
		g.AddNode(i)
	}
	n1, _ := g.get(1)
	n1.addEdge(Edge{Neighbour: 2, Distance: 1})
	n1.addEdge(Edge{Neighbour: 3, Distance: 2})
	n1.addEdge(Edge{Neighbour: 4, Distance: 3})

	if err := g.Truncate(1); err != nil {
		t.Fatal(err)
	}
	edges, _ := g.Neighbours(1)
	if len(edges) != 2 {
		t.Fatalf("expected truncation to cap at 2 edges, got %v", edges)
	}

	n2, _ := g.Neighbours(2)
	found := false
	for _, e := range n2 {
		if e.Neighbour == 4 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected evicted edge to 4 bridged onto closest retained node 2, got %v", n2)
	}
}

func TestRemoveNodeStripsIncomingEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = ANNG
	g := New(cfg)
	g.AddNode(1)
	g.AddNode(2)
	g.Integrate(1, []Edge{{Neighbour: 2, Distance: 1}})

	if err := g.RemoveNode(2); err != nil {
		t.Fatal(err)
	}
	n1, _ := g.Neighbours(1)
	for _, e := range n1 {
		if e.Neighbour == 2 {
			t.Errorf("expected edge to removed node 2 stripped, got %v", n1)
		}
	}
}

func TestAdjustPathsRemovesRedundantEdge(t *testing.T) {
	g := New(DefaultConfig())
	for i := ObjectID(1); i <= 3; i++ {
		g.AddNode(i)
	}
	n1, _ := g.get(1)
	n1.addEdge(Edge{Neighbour: 2, Distance: 1})
	n1.addEdge(Edge{Neighbour: 3, Distance: 5})
	n2, _ := g.get(2)
	n2.addEdge(Edge{Neighbour: 3, Distance: 1})

	if err := g.AdjustPaths(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	edges, _ := g.Neighbours(1)
	for _, e := range edges {
		if e.Neighbour == 3 {
			t.Errorf("expected redundant edge 1->3 removed since 2 reaches 3 at no greater distance, got %v", edges)
		}
	}
}

func TestSaveOpenRoundTrip(t *testing.T) {
	g := New(DefaultConfig())
	g.AddNode(1)
	g.AddNode(2)
	n1, _ := g.get(1)
	n1.addEdge(Edge{Neighbour: 2, Distance: 1.5})

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatal(err)
	}
	g2, err := Open(&buf, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	edges, err := g2.Neighbours(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].Neighbour != 2 || edges[0].Distance != 1.5 {
		t.Errorf("round-trip mismatch: %v", edges)
	}
}

func TestFreezeCompact(t *testing.T) {
	g := New(DefaultConfig())
	g.AddNode(1)
	g.AddNode(2)
	n1, _ := g.get(1)
	n1.addEdge(Edge{Neighbour: 2, Distance: 1})

	c := g.Freeze()
	if c.Size() != 2 {
		t.Errorf("expected 2 nodes in snapshot, got %d", c.Size())
	}
	edges, err := c.Neighbours(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].Neighbour != 2 {
		t.Errorf("unexpected compact neighbours: %v", edges)
	}
	if _, err := c.Neighbours(99); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestRepairRestoresMissingReverseEdges(t *testing.T) {
	g := New(DefaultConfig())
	g.AddNode(1)
	g.AddNode(2)
	g.AddNode(3)
	n1, _ := g.get(1)
	n1.addEdge(Edge{Neighbour: 2, Distance: 1})
	n1.addEdge(Edge{Neighbour: 3, Distance: 2})
	n2, _ := g.get(2)
	n2.addEdge(Edge{Neighbour: 1, Distance: 1})

	added := g.Repair()
	if added != 1 {
		t.Errorf("expected 1 reinstated edge, got %d", added)
	}
	edges, _ := g.Neighbours(3)
	if len(edges) != 1 || edges[0].Neighbour != 1 || edges[0].Distance != 2 {
		t.Errorf("expected 3->1 mirror of 1->3, got %v", edges)
	}
	if g.Repair() != 0 {
		t.Error("second repair pass should find nothing to reinstate")
	}
}

func TestRepairSkipsOutgoingOnlyKinds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = KNNG
	g := New(cfg)
	g.AddNode(1)
	g.AddNode(2)
	n1, _ := g.get(1)
	n1.addEdge(Edge{Neighbour: 2, Distance: 1})

	if added := g.Repair(); added != 0 {
		t.Errorf("KNNG repair should be a no-op, reinstated %d", added)
	}
	if edges, _ := g.Neighbours(2); len(edges) != 0 {
		t.Errorf("KNNG node 2 should stay outgoing-only, got %v", edges)
	}
}
