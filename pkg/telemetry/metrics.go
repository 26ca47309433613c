package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one process's indexes,
// scoped down to the operations this module actually performs (no
// request/tenant/cache surface, since this module exposes no network API).
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	ObjectsInserted prometheus.Counter
	ObjectsRemoved  prometheus.Counter

	GraphSize       *prometheus.GaugeVec
	GraphEdgeCount  *prometheus.GaugeVec
	TruncationsRun  prometheus.Counter
	PathAdjustments prometheus.Counter

	SearchLatency    prometheus.Histogram
	SearchResultSize prometheus.Histogram

	BuildDuration prometheus.Histogram
}

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
)

// NewMetrics returns the process-wide Metrics set, registering its
// collectors with prometheus.DefaultRegisterer the first time it is called.
// Every Index in a process shares this one set (promauto panics on a second
// registration of the same collector name), the same way GetGlobalLogger
// shares one Logger.
func NewMetrics() *Metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngt_operations_total",
				Help: "Total number of index operations by kind and status",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ngt_operation_duration_seconds",
				Help:    "Operation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"operation"},
		),
		OperationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngt_operation_errors_total",
				Help: "Total number of operation errors by kind and error type",
			},
			[]string{"operation", "error_type"},
		),
		ObjectsInserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ngt_objects_inserted_total",
				Help: "Total number of objects inserted",
			},
		),
		ObjectsRemoved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ngt_objects_removed_total",
				Help: "Total number of objects removed",
			},
		),
		GraphSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ngt_graph_nodes",
				Help: "Number of live nodes in the neighbourhood graph",
			},
			[]string{"index"},
		),
		GraphEdgeCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ngt_graph_edges",
				Help: "Number of edges in the neighbourhood graph",
			},
			[]string{"index"},
		),
		TruncationsRun: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ngt_truncations_total",
				Help: "Total number of edge-truncation passes run",
			},
		),
		PathAdjustments: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ngt_path_adjustments_total",
				Help: "Total number of AdjustPaths passes run",
			},
		),
		SearchLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngt_search_latency_seconds",
				Help:    "Search call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SearchResultSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngt_search_result_size",
				Help:    "Number of results returned per search",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 500},
			},
		),
		BuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngt_quantized_build_duration_seconds",
				Help:    "Duration of QuantisedInvertedIndex Build calls",
				Buckets: []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
	}
}
