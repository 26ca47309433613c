package graph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/vecgraph/ngt/pkg/ngterr"
)

// Save writes the graph in the "grp" layout: a u32 node
// count N, then per node its u32 ObjectId followed by either '-' (no edges)
// or '+', a u32 edge count and that many (u32 id, f32 distance) pairs. Each
// record carries its own id, so a record's position in the file is not its
// ObjectId. Nodes are written in ascending ObjectId order so Open is
// deterministic.
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	ids := make([]ObjectID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := binary.Write(bw, binary.LittleEndian, uint32(id)); err != nil {
			return err
		}
		n, _ := g.get(id)
		n.mu.RLock()
		edges := append([]Edge{}, n.edges...)
		n.mu.RUnlock()

		if len(edges) == 0 {
			if _, err := bw.Write([]byte{'-'}); err != nil {
				return err
			}
			continue
		}
		if _, err := bw.Write([]byte{'+'}); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(edges))); err != nil {
			return err
		}
		for _, e := range edges {
			if err := binary.Write(bw, binary.LittleEndian, uint32(e.Neighbour)); err != nil {
				return err
			}
			if err := binary.Write(bw, binary.LittleEndian, math.Float32bits(e.Distance)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Open reconstructs a graph previously written by Save.
func Open(r io.Reader, cfg Config) (*Graph, error) {
	br := bufio.NewReader(r)
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("graph: open header: %w", ngterr.ErrCorrupt)
	}

	g := New(cfg)
	for i := uint32(0); i < count; i++ {
		var idRaw uint32
		if err := binary.Read(br, binary.LittleEndian, &idRaw); err != nil {
			return nil, fmt.Errorf("graph: open node %d id: %w", i, ngterr.ErrCorrupt)
		}
		id := ObjectID(idRaw)
		g.AddNode(id)

		tag := make([]byte, 1)
		if _, err := io.ReadFull(br, tag); err != nil {
			return nil, fmt.Errorf("graph: open node %d tag: %w", i, ngterr.ErrCorrupt)
		}
		switch tag[0] {
		case '-':
			continue
		case '+':
			var n uint32
			if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
				return nil, fmt.Errorf("graph: open node %d edge count: %w", i, ngterr.ErrCorrupt)
			}
			node, _ := g.get(id)
			edges := make([]Edge, n)
			for j := uint32(0); j < n; j++ {
				var neighbour, distBits uint32
				if err := binary.Read(br, binary.LittleEndian, &neighbour); err != nil {
					return nil, fmt.Errorf("graph: open node %d edge %d: %w", i, j, ngterr.ErrCorrupt)
				}
				if err := binary.Read(br, binary.LittleEndian, &distBits); err != nil {
					return nil, fmt.Errorf("graph: open node %d edge %d: %w", i, j, ngterr.ErrCorrupt)
				}
				edges[j] = Edge{Neighbour: ObjectID(neighbour), Distance: math.Float32frombits(distBits)}
			}
			node.edges = edges
		default:
			return nil, fmt.Errorf("graph: open node %d tag %q: %w", i, tag[0], ngterr.ErrCorrupt)
		}
	}
	return g, nil
}
