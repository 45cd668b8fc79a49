package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all prometheus metrics for a pipeline run.
type Registry struct {
	registry *prometheus.Registry

	// Cohort metrics
	CohortRecordsTotal  prometheus.Counter
	CohortRejectedTotal prometheus.Counter
	CohortPatients      prometheus.Gauge

	// Graph metrics
	BuildDuration prometheus.Histogram
	GraphNodes    prometheus.Gauge
	GraphEdges    prometheus.Gauge
	EdgesPruned   prometheus.Counter

	// Algorithm metrics
	AlgorithmDuration *prometheus.HistogramVec
	LouvainPasses     prometheus.Counter
	LouvainLevels     prometheus.Gauge
	Modularity        prometheus.Gauge
}

// NewRegistry creates a Registry with all metrics registered against a
// dedicated prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initCohortMetrics()
	r.initGraphMetrics()
	r.initAlgorithmMetrics()

	return r
}

// Registry exposes the underlying prometheus registry for HTTP handlers.
func (r *Registry) Registry() *prometheus.Registry {
	return r.registry
}
