// Command ngtctl is a flag-subcommand CLI companion to pkg/index, operating
// in-process on a directory-backed index rather than over a network
// protocol: flag-subcommand dispatch talking straight to the library
// instead of a gRPC server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vecgraph/ngt/pkg/config"
	"github.com/vecgraph/ngt/pkg/graph"
	"github.com/vecgraph/ngt/pkg/index"
	"github.com/vecgraph/ngt/pkg/metric"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "create":
		err = cmdCreate(args)
	case "append":
		err = cmdAppend(args)
	case "search":
		err = cmdSearch(args)
	case "remove":
		err = cmdRemove(args)
	case "info":
		err = cmdInfo(args)
	case "export":
		err = cmdExport(args)
	case "import":
		err = cmdImport(args)
	case "prune":
		err = cmdPrune(args)
	case "reconstruct-graph":
		err = cmdReconstructGraph(args)
	case "repair":
		err = cmdRepair(args)
	case "build-qg":
		err = cmdBuildQG(args)
	case "search-qg":
		err = cmdSearchQG(args)
	case "version":
		fmt.Printf("ngtctl version %s\n", version)
		return
	case "help", "-h", "--help":
		showUsage()
		return
	default:
		fmt.Printf("unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags seeds create's flag defaults from the NGT_* environment
// overlay, so flags beat environment beats built-in defaults.
func commonFlags(fs *flag.FlagSet) (dim *int, objType, distType *string) {
	base := config.LoadFromEnv()
	dim = fs.Int("d", base.Dimensions, "vector dimension")
	objType = fs.String("o", base.ScalarKind, "object type: U8, F16, F32")
	distType = fs.String("D", base.Metric, "distance type")
	return
}

func parseScalarKind(s string) (metric.ScalarKind, error) {
	switch strings.ToUpper(s) {
	case "U8":
		return metric.U8, nil
	case "F16":
		return metric.F16, nil
	case "F32":
		return metric.F32, nil
	default:
		return 0, fmt.Errorf("unknown object type %q", s)
	}
}

func parseMetric(s string) (metric.Metric, error) {
	for m := metric.L1; m <= metric.Lorentz; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown distance type %q", s)
}

func cmdCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dim, objType, distType := commonFlags(fs)
	path := fs.String("n", "", "index directory (required)")
	edgeForCreation := fs.Int("E", 10, "edge size for creation")
	truncThreshold := fs.Int("t", 50, "truncation threshold")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-n is required")
	}
	scalar, err := parseScalarKind(*objType)
	if err != nil {
		return err
	}
	m, err := parseMetric(*distType)
	if err != nil {
		return err
	}

	cfg := index.DefaultConfig(*dim, m)
	cfg.ScalarKind = scalar
	cfg.Graph.EdgeSizeForCreation = *edgeForCreation
	cfg.Graph.TruncationThreshold = *truncThreshold

	ix, err := index.New(cfg)
	if err != nil {
		return err
	}
	if err := ix.Save(*path); err != nil {
		return err
	}
	fmt.Printf("created empty index at %s (dim=%d, object=%s, distance=%s)\n", *path, *dim, *objType, *distType)
	return nil
}

func cmdAppend(args []string) error {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	vectorJSON := fs.String("vector", "", "vector as JSON array (required)")
	fs.Parse(args)

	if *path == "" || *vectorJSON == "" {
		return fmt.Errorf("-n and -vector are required")
	}
	vec, err := parseVector(*vectorJSON)
	if err != nil {
		return err
	}

	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	id, err := ix.Insert(context.Background(), vec)
	if err != nil {
		return err
	}
	if err := ix.Save(*path); err != nil {
		return err
	}
	fmt.Printf("inserted id %d\n", id)
	return nil
}

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	queryJSON := fs.String("query", "", "query vector as JSON array (required)")
	k := fs.Int("k", 10, "number of results")
	epsilon := fs.Float64("e", 0.1, "exploration coefficient")
	edgeSize := fs.Int("S", 0, "edge size for search (0 = index default)")
	radius := fs.Float64("r", 0, "radius bound (0 = unbounded)")
	fs.Parse(args)

	if *path == "" || *queryJSON == "" {
		return fmt.Errorf("-n and -query are required")
	}
	query, err := parseVector(*queryJSON)
	if err != nil {
		return err
	}

	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	results, err := ix.SearchWith(context.Background(), query, *k, index.SearchOptions{
		Radius:   float32(*radius),
		Epsilon:  float32(*epsilon),
		EdgeSize: *edgeSize,
	})
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Printf("%d: id=%d distance=%.6f\n", i+1, r.ID, r.Distance)
	}
	return nil
}

func cmdRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	id := fs.Uint("id", 0, "object id (required)")
	fs.Parse(args)

	if *path == "" || *id == 0 {
		return fmt.Errorf("-n and -id are required")
	}

	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	if err := ix.Remove(graph.ObjectID(*id)); err != nil {
		return err
	}
	if err := ix.Save(*path); err != nil {
		return err
	}
	fmt.Printf("removed id %d\n", *id)
	return nil
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-n is required")
	}
	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	fmt.Printf("objects: %d\n", ix.Len())
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	out := fs.String("out", "", "output JSON file (required)")
	fs.Parse(args)

	if *path == "" || *out == "" {
		return fmt.Errorf("-n and -out are required")
	}
	ix, err := index.Open(*path)
	if err != nil {
		return err
	}

	ids := ix.LiveIDs()
	records := make([]exportRecord, 0, len(ids))
	for _, id := range ids {
		vec, err := ix.VectorOf(id)
		if err != nil {
			continue
		}
		records = append(records, exportRecord{ID: uint32(id), Vector: vec})
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(records)
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	in := fs.String("in", "", "input JSON file (required)")
	fs.Parse(args)

	if *path == "" || *in == "" {
		return fmt.Errorf("-n and -in are required")
	}
	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	var records []exportRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return err
	}

	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	vecs := make([][]float32, len(records))
	for i, rec := range records {
		vecs[i] = rec.Vector
	}
	if _, err := ix.InsertBatch(context.Background(), vecs); err != nil {
		return err
	}
	return ix.Save(*path)
}

func cmdPrune(args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	workers := fs.Int("p", 4, "worker count")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-n is required")
	}
	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	if err := ix.AdjustPaths(context.Background(), *workers); err != nil {
		return err
	}
	return ix.Save(*path)
}

func cmdReconstructGraph(args []string) error {
	return cmdPrune(args)
}

func cmdRepair(args []string) error {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-n is required")
	}
	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	if err := ix.Repair(); err != nil {
		return err
	}
	if err := ix.DrainTruncations(); err != nil {
		return err
	}
	return ix.Save(*path)
}

func cmdBuildQG(args []string) error {
	fs := flag.NewFlagSet("build-qg", flag.ExitOnError)
	path := fs.String("n", "", "index directory (required)")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-n is required")
	}
	ix, err := index.Open(*path)
	if err != nil {
		return err
	}
	if err := ix.BuildQuantized(context.Background()); err != nil {
		return err
	}
	return ix.Save(*path)
}

func cmdSearchQG(args []string) error {
	return cmdSearch(args)
}

type exportRecord struct {
	ID     uint32    `json:"id"`
	Vector []float32 `json:"vector"`
}

func parseVector(s string) ([]float32, error) {
	var raw []float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parsing vector: %w", err)
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

func showUsage() {
	fmt.Println(`ngtctl - approximate nearest neighbour index command line tool

Usage:
  ngtctl <command> [options]

Commands:
  create              Create a new empty index directory
  append              Insert a vector into an existing index
  search              Search an index for nearest neighbours
  remove              Remove an object by id
  info                Print basic index statistics
  export              Dump all live vectors to a JSON file
  import              Bulk-insert vectors from a JSON file
  prune               Run redundant-edge path adjustment
  reconstruct-graph   Alias for prune
  repair              Reinstate missing reverse edges, then drain truncations
  build-qg            Train the quantised inverted index (Quantised kind)
  search-qg           Alias for search (quantised only for a Quantised-kind index)
  version             Show version
  help                Show this help message

Common flags:
  -n PATH     index directory
  -d DIM      vector dimension (create only)
  -o TYPE     object type: U8, F16, F32 (create only)
  -D METRIC   distance type, e.g. L2, Cosine, Angle (create only)
  -E SIZE     edge size for creation (create only)
  -t SIZE     truncation threshold (create only)
  -p N        worker count (prune)
  -k N        result count (search)
  -e EPS      exploration coefficient (search)
  -S SIZE     edge size for search (search)
  -r RADIUS   radius bound (search)

Examples:
  ngtctl create -n ./idx -d 128 -D L2
  ngtctl append -n ./idx -vector '[0.1, 0.2, ...]'
  ngtctl search -n ./idx -query '[0.1, 0.2, ...]' -k 10`)
}
