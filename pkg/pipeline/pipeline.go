// Package pipeline wires the run: cohort load and filter, co-occurrence
// build, largest-component extraction, centrality, community detection,
// and report aggregation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencohort/epigraph/pkg/algorithms"
	"github.com/opencohort/epigraph/pkg/cohort"
	"github.com/opencohort/epigraph/pkg/config"
	"github.com/opencohort/epigraph/pkg/graph"
	"github.com/opencohort/epigraph/pkg/logging"
	"github.com/opencohort/epigraph/pkg/metrics"
	"github.com/opencohort/epigraph/pkg/report"
)

// Result is everything one run produces. All fields are read-only after
// Run returns.
type Result struct {
	RunID      string
	CohortName string

	Graph     *graph.Graph // full co-occurrence graph
	Main      *graph.Graph // largest connected component
	Component *algorithms.Component

	Degrees     *algorithms.DegreeResult
	Communities *algorithms.CommunityDetectionResult
	Report      *report.Report

	Patients int
	Rejected int
	Pruned   int
}

// Runner executes pipeline runs with shared logging and metrics.
type Runner struct {
	cfg    *config.Config
	logger logging.Logger
	reg    *metrics.Registry
}

// NewRunner creates a Runner. A nil logger or registry disables that
// concern rather than failing.
func NewRunner(cfg *config.Config, logger logging.Logger, reg *metrics.Registry) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &Runner{cfg: cfg, logger: logger, reg: reg}
}

// Run loads the cohort from the source and performs the full analysis.
func (r *Runner) Run(ctx context.Context, src cohort.Source) (*Result, error) {
	runID := uuid.New().String()
	logger := r.logger.With(logging.RunID(runID), logging.Cohort(r.cfg.Cohort.Name))

	observations, names, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cohort source: %w", err)
	}

	filter := cohort.Filter{MinAge: r.cfg.Cohort.MinAge, MaxAge: r.cfg.Cohort.MaxAge}
	records, rejectedObs := cohort.Assemble(observations, filter)
	patients, rejectedRecs := filter.Apply(records)
	rejected := rejectedObs + rejectedRecs

	r.reg.RecordCohort(len(records), rejected, len(patients))
	logger.Info("cohort assembled",
		logging.Patients(len(patients)),
		logging.Rejected(rejected))

	g, pruned, err := r.build(patients, names, logger)
	if err != nil {
		return nil, err
	}

	result, err := r.analyze(ctx, g, logger)
	if err != nil {
		return nil, err
	}

	result.RunID = runID
	result.Patients = len(patients)
	result.Rejected = rejected
	result.Pruned = pruned
	result.Report.Summary.Patients = len(patients)
	result.Report.Summary.Rejected = rejected
	return result, nil
}

// Analyze runs the analysis stages over an already-built graph, e.g. one
// loaded from a snapshot.
func (r *Runner) Analyze(ctx context.Context, g *graph.Graph) (*Result, error) {
	runID := uuid.New().String()
	logger := r.logger.With(logging.RunID(runID), logging.Cohort(r.cfg.Cohort.Name))
	result, err := r.analyze(ctx, g, logger)
	if err != nil {
		return nil, err
	}
	result.RunID = runID
	return result, nil
}

func (r *Runner) build(patients []cohort.Patient, names map[uint64]string, logger logging.Logger) (*graph.Graph, int, error) {
	timer := logging.StartTimer(logger, "graph built", logging.Component("builder"))
	start := time.Now()

	sets := make([][]uint64, len(patients))
	for i, p := range patients {
		sets[i] = p.Diseases
	}

	builder, err := graph.BuildParallel(sets, r.cfg.Build.Workers)
	if err != nil {
		timer.EndError(err)
		return nil, 0, fmt.Errorf("build graph: %w", err)
	}
	builder.SetNames(names)

	g, pruned, err := builder.Finalize(r.cfg.Build.MinEdgeWeight)
	if err != nil {
		timer.EndError(err)
		return nil, 0, fmt.Errorf("finalize graph: %w", err)
	}

	r.reg.RecordBuild(g.NodeCount(), g.EdgeCount(), pruned, time.Since(start))
	timer.End()
	logger.Info("graph finalized",
		logging.Nodes(g.NodeCount()),
		logging.Edges(g.EdgeCount()),
		logging.Int("pruned_edges", pruned))
	return g, pruned, nil
}

func (r *Runner) analyze(ctx context.Context, g *graph.Graph, logger logging.Logger) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	main, component := algorithms.LargestComponent(g)
	r.reg.RecordAlgorithm("largest_component", time.Since(start))
	logger.Info("largest component extracted",
		logging.Nodes(main.NodeCount()),
		logging.Edges(main.EdgeCount()))

	start = time.Now()
	degrees := algorithms.DegreeCentrality(main)
	r.reg.RecordAlgorithm("degree_centrality", time.Since(start))

	start = time.Now()
	communities, err := algorithms.Louvain(main, algorithms.LouvainOptions{
		MaxPasses:  r.cfg.Louvain.MaxPasses,
		MaxLevels:  r.cfg.Louvain.MaxLevels,
		Resolution: r.cfg.Louvain.Resolution,
	})
	if err != nil {
		return nil, fmt.Errorf("community detection: %w", err)
	}
	r.reg.RecordAlgorithm("louvain", time.Since(start))
	r.reg.RecordLouvain(communities.Passes, communities.Levels, communities.Modularity)
	if !communities.Converged {
		logger.Warn("community detection did not fully converge",
			logging.Int("passes", communities.Passes),
			logging.Int("levels", communities.Levels))
	}
	logger.Info("communities detected",
		logging.Communities(len(communities.Communities)),
		logging.Modularity(communities.Modularity))

	rep := report.Build(main, degrees, communities, report.Summary{}, report.Options{
		TopNodes:               r.cfg.Report.TopNodes,
		TopMembersPerCommunity: r.cfg.Report.TopMembersPerCommunity,
	})

	return &Result{
		CohortName:  r.cfg.Cohort.Name,
		Graph:       g,
		Main:        main,
		Component:   component,
		Degrees:     degrees,
		Communities: communities,
		Report:      rep,
	}, nil
}
