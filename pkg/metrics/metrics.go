package metrics

import (
	"time"
)

// RecordCohort records cohort-filter outcomes.
func (r *Registry) RecordCohort(records, rejected, patients int) {
	r.CohortRecordsTotal.Add(float64(records))
	r.CohortRejectedTotal.Add(float64(rejected))
	r.CohortPatients.Set(float64(patients))
}

// RecordBuild records a graph build with its duration and final shape.
func (r *Registry) RecordBuild(nodes, edges, pruned int, duration time.Duration) {
	r.BuildDuration.Observe(duration.Seconds())
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
	r.EdgesPruned.Add(float64(pruned))
}

// RecordAlgorithm records a single algorithm execution.
func (r *Registry) RecordAlgorithm(algorithm string, duration time.Duration) {
	r.AlgorithmDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordLouvain records community-detection progress counters.
func (r *Registry) RecordLouvain(passes, levels int, modularity float64) {
	r.LouvainPasses.Add(float64(passes))
	r.LouvainLevels.Set(float64(levels))
	r.Modularity.Set(modularity)
}
