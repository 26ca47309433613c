package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vecgraph/ngt/pkg/config"
	"github.com/vecgraph/ngt/pkg/graph"
	"github.com/vecgraph/ngt/pkg/metric"
	"github.com/vecgraph/ngt/pkg/objectstore"
	"github.com/vecgraph/ngt/pkg/quantized"
	"github.com/vecgraph/ngt/pkg/searcher"
)

// Save writes the index's persisted directory layout: prf, obj, grp, and
// — for a built Quantised-kind index — qr and qcb. Save
// requires exclusive access so the files it writes describe a single
// consistent point in the write sequence.
func (ix *Index) Save(dir string) error {
	return ix.env.Write(func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("index: save: %w", err)
		}

		prf := ix.propertySet()
		if err := writeFile(filepath.Join(dir, "prf"), prf.Save); err != nil {
			return fmt.Errorf("index: save prf: %w", err)
		}
		if err := writeFile(filepath.Join(dir, "obj"), ix.store.Save); err != nil {
			return fmt.Errorf("index: save obj: %w", err)
		}
		if err := writeFile(filepath.Join(dir, "grp"), ix.g.Save); err != nil {
			return fmt.Errorf("index: save grp: %w", err)
		}

		if ix.cfg.Kind == Quantised && ix.qix != nil {
			if err := writeFile(filepath.Join(dir, "qr"), ix.qix.Rotation().Save); err != nil {
				return fmt.Errorf("index: save qr: %w", err)
			}
			if err := writeFile(filepath.Join(dir, "qcb"), ix.qix.Save); err != nil {
				return fmt.Errorf("index: save qcb: %w", err)
			}
		}
		return nil
	})
}

// writeFile is a small helper so Save's steps read as one line each rather
// than repeating the open/defer-close/error-wrap boilerplate five times.
func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

func (ix *Index) propertySet() *config.PropertySet {
	p := config.NewPropertySet()
	p.Set("Dimension", ix.cfg.Dim)
	p.Set("ObjectType", ix.cfg.ScalarKind.String())
	p.Set("MetricType", ix.cfg.Metric.String())
	p.Set("GraphType", ix.cfg.Graph.Kind.String())
	p.Set("EdgeSizeForCreation", ix.cfg.Graph.EdgeSizeForCreation)
	p.Set("EdgeSizeForSearch", ix.cfg.EdgeSizeForSearch)
	p.Set("EdgeSizeLimitForCreation", ix.cfg.Graph.EdgeSizeLimitForCreation)
	p.Set("IncrimentalEdgeSizeLimitForTruncation", ix.cfg.Graph.TruncationThreshold)
	p.Set("EpsilonForCreation", ix.cfg.InsertionEpsilon)
	p.Set("BatchSizeForCreation", ix.cfg.BatchSize)
	p.Set("SeedType", ix.cfg.SeedKind.String())
	p.Set("SeedSize", ix.cfg.SeedSize)
	p.Set("BuildTimeLimit", ix.cfg.BuildTimeLimitSec)
	p.Set("DynamicEdgeSizeBase", ix.cfg.DynamicEdgeSizeBase)
	p.Set("DynamicEdgeSizeRate", ix.cfg.DynamicEdgeSizeRate)
	p.Set("OutgoingEdge", ix.cfg.Graph.OutgoingEdge)
	p.Set("IncomingEdge", ix.cfg.Graph.IncomingEdge)
	p.Set("IndexKind", int(ix.cfg.Kind))
	return p
}

// Open reconstructs an Index from a directory previously written by Save.
func Open(dir string) (*Index, error) {
	prfFile, err := os.Open(filepath.Join(dir, "prf"))
	if err != nil {
		return nil, fmt.Errorf("index: open prf: %w", err)
	}
	defer prfFile.Close()
	prf, err := config.LoadPropertySet(prfFile)
	if err != nil {
		return nil, fmt.Errorf("index: open prf: %w", err)
	}

	dim := int(prf.GetInt("Dimension", 0))
	scalarKind := parseScalarKind(prf.Get("ObjectType"))
	m := parseMetric(prf.Get("MetricType"))

	fn, err := metric.Kernel(scalarKind, m)
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}

	objFile, err := os.Open(filepath.Join(dir, "obj"))
	if err != nil {
		return nil, fmt.Errorf("index: open obj: %w", err)
	}
	defer objFile.Close()
	store, err := objectstore.Open(objFile, m)
	if err != nil {
		return nil, fmt.Errorf("index: open obj: %w", err)
	}

	gcfg := graph.Config{
		Kind:                     parseGraphKind(prf.Get("GraphType")),
		EdgeSizeForCreation:      int(prf.GetInt("EdgeSizeForCreation", 10)),
		EdgeSizeLimitForCreation: int(prf.GetInt("EdgeSizeLimitForCreation", 5)),
		TruncationThreshold:      int(prf.GetInt("IncrimentalEdgeSizeLimitForTruncation", 50)),
		OutgoingEdge:             int(prf.GetInt("OutgoingEdge", 10)),
		IncomingEdge:             int(prf.GetInt("IncomingEdge", 10)),
	}
	grpFile, err := os.Open(filepath.Join(dir, "grp"))
	if err != nil {
		return nil, fmt.Errorf("index: open grp: %w", err)
	}
	defer grpFile.Close()
	g, err := graph.Open(grpFile, gcfg)
	if err != nil {
		return nil, fmt.Errorf("index: open grp: %w", err)
	}

	cfg := Config{
		Kind:                Kind(prf.GetInt("IndexKind", int64(Graph))),
		Dim:                 dim,
		ScalarKind:          scalarKind,
		Metric:              m,
		Graph:               gcfg,
		Quantized:           quantized.DefaultConfig(),
		CandidateSize:       10,
		InsertionEpsilon:    float32(prf.GetFloat("EpsilonForCreation", 0.1)),
		EdgeSizeForSearch:   int(prf.GetInt("EdgeSizeForSearch", 0)),
		DynamicEdgeSizeBase: int(prf.GetInt("DynamicEdgeSizeBase", 0)),
		DynamicEdgeSizeRate: int(prf.GetInt("DynamicEdgeSizeRate", 0)),
		BatchSize:           int(prf.GetInt("BatchSizeForCreation", 200)),
		BuildTimeLimitSec:   prf.GetFloat("BuildTimeLimit", 0),
		SeedKind:            parseSeedKind(prf.Get("SeedType")),
		SeedSize:            int(prf.GetInt("SeedSize", 0)),
	}

	ix := newFromParts(cfg, store, g, fn)

	if cfg.Kind == Quantised {
		qrFile, err := os.Open(filepath.Join(dir, "qr"))
		if err == nil {
			defer qrFile.Close()
			rot, err := quantized.OpenRotation(qrFile)
			if err != nil {
				return nil, fmt.Errorf("index: open qr: %w", err)
			}
			qcbFile, err := os.Open(filepath.Join(dir, "qcb"))
			if err != nil {
				return nil, fmt.Errorf("index: open qcb: %w", err)
			}
			defer qcbFile.Close()
			qix := quantized.New(store, fn, cfg.Quantized)
			if err := qix.Load(qcbFile, rot); err != nil {
				return nil, fmt.Errorf("index: open qcb: %w", err)
			}
			ix.qix = qix
		}
	}
	return ix, nil
}

// OpenReadOnly reconstructs an Index from a directory previously written by
// Save, then immediately freezes its NeighbourhoodGraph into the compact,
// densely-packed read-only form: Insert, Remove, BuildQuantized,
// AdjustPaths, and DrainTruncations all fail with
// ErrReadOnly, while Search proceeds against the frozen snapshot under the
// same read lock as a mutable index — per-node locking is unnecessary once
// the graph can no longer change.
func OpenReadOnly(dir string) (*Index, error) {
	ix, err := Open(dir)
	if err != nil {
		return nil, err
	}
	compact := ix.g.Freeze()
	ix.readOnly = true
	ix.search = searcher.New(ix.store, compact, ix.dist, ix.search.Seeder())
	return ix, nil
}

func parseScalarKind(s string) metric.ScalarKind {
	switch s {
	case "U8":
		return metric.U8
	case "F16":
		return metric.F16
	default:
		return metric.F32
	}
}

func parseMetric(s string) metric.Metric {
	for m := metric.L1; m <= metric.Lorentz; m++ {
		if m.String() == s {
			return m
		}
	}
	return metric.L2
}

func parseSeedKind(s string) SeedKind {
	for k := SeedRandom; k <= SeedAllLeaf; k++ {
		if k.String() == s {
			return k
		}
	}
	return SeedRandom
}

func parseGraphKind(s string) graph.Kind {
	for k := graph.ANNG; k <= graph.DNNG; k++ {
		if k.String() == s {
			return k
		}
	}
	return graph.ANNG
}
