package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCohortMetrics() {
	r.CohortRecordsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "epigraph_cohort_records_total",
			Help: "Total number of patient records seen by the cohort filter",
		},
	)

	r.CohortRejectedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "epigraph_cohort_rejected_total",
			Help: "Total number of malformed patient records rejected",
		},
	)

	r.CohortPatients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epigraph_cohort_patients",
			Help: "Number of patients admitted to the cohort",
		},
	)
}

func (r *Registry) initGraphMetrics() {
	r.BuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "epigraph_build_duration_seconds",
			Help:    "Co-occurrence graph build duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 60.0},
		},
	)

	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epigraph_graph_nodes",
			Help: "Number of disease nodes in the finalized graph",
		},
	)

	r.GraphEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epigraph_graph_edges",
			Help: "Number of co-occurrence edges in the finalized graph",
		},
	)

	r.EdgesPruned = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "epigraph_graph_edges_pruned_total",
			Help: "Edges dropped by the minimum-weight threshold at finalize",
		},
	)
}

func (r *Registry) initAlgorithmMetrics() {
	r.AlgorithmDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epigraph_algorithm_duration_seconds",
			Help:    "Graph algorithm execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		[]string{"algorithm"},
	)

	r.LouvainPasses = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "epigraph_louvain_passes_total",
			Help: "Total local-phase passes executed by community detection",
		},
	)

	r.LouvainLevels = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epigraph_louvain_levels",
			Help: "Aggregation levels used by the last community detection run",
		},
	)

	r.Modularity = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epigraph_modularity",
			Help: "Modularity of the last detected partition",
		},
	)
}
