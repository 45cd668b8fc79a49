package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencohort/epigraph/pkg/cohort"
	"github.com/opencohort/epigraph/pkg/config"
)

// fakeSource serves a fixed observation set.
type fakeSource struct {
	observations []cohort.Observation
	names        map[uint64]string
	err          error
}

func (f *fakeSource) Load(ctx context.Context) ([]cohort.Observation, map[uint64]string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.observations, f.names, nil
}

// referenceSource produces the four-patient cohort: P1:{A,B,C} P2:{A,B}
// P3:{C,D} P4:{A,D}, all diagnosed inside the 60+ window, plus one
// under-age patient that the filter must drop.
func referenceSource() *fakeSource {
	obs := []cohort.Observation{
		{PatientID: 1, ConceptID: 1, AgeAtEvent: 65},
		{PatientID: 1, ConceptID: 2, AgeAtEvent: 66},
		{PatientID: 1, ConceptID: 3, AgeAtEvent: 67},
		{PatientID: 2, ConceptID: 1, AgeAtEvent: 70},
		{PatientID: 2, ConceptID: 2, AgeAtEvent: 71},
		{PatientID: 3, ConceptID: 3, AgeAtEvent: 62},
		{PatientID: 3, ConceptID: 4, AgeAtEvent: 63},
		{PatientID: 4, ConceptID: 1, AgeAtEvent: 80},
		{PatientID: 4, ConceptID: 4, AgeAtEvent: 81},
		{PatientID: 5, ConceptID: 1, AgeAtEvent: 30}, // under age
	}
	return &fakeSource{
		observations: obs,
		names: map[uint64]string{
			1: "Hypertension",
			2: "Type 2 diabetes",
			3: "CKD",
			4: "Anemia",
		},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cohort.MinAge = 60
	cfg.Build.MinEdgeWeight = 1
	cfg.Build.Workers = 1
	return cfg
}

func TestRunner_Run(t *testing.T) {
	runner := NewRunner(testConfig(), nil, nil)

	result, err := runner.Run(context.Background(), referenceSource())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "elderly_60plus", result.CohortName)
	assert.Equal(t, 4, result.Patients)
	assert.Equal(t, 0, result.Rejected)

	// Full graph: 4 diseases, 5 co-occurrence pairs, A-B twice
	require.NotNil(t, result.Graph)
	assert.Equal(t, 4, result.Graph.NodeCount())
	assert.Equal(t, 5, result.Graph.EdgeCount())
	assert.Equal(t, 2, result.Graph.Weight(1, 2))
	assert.Equal(t, 3, result.Graph.Degree(1))

	// The graph is connected, so the main component is the whole graph
	require.NotNil(t, result.Component)
	assert.Equal(t, 4, result.Component.Size)
	assert.Equal(t, result.Graph.NodeCount(), result.Main.NodeCount())

	// Names flowed through the builder
	node, ok := result.Graph.Node(1)
	require.True(t, ok)
	assert.Equal(t, "Hypertension", node.Name)

	// Report reflects the run
	require.NotNil(t, result.Report)
	assert.Equal(t, 4, result.Report.Summary.Patients)
	assert.Equal(t, 4, result.Report.Summary.Nodes)
	assert.Equal(t, 5, result.Report.Summary.Edges)
	require.NotEmpty(t, result.Report.TopByDegree)
	assert.Equal(t, uint64(1), result.Report.TopByDegree[0].ConceptID)
}

func TestRunner_RunPrunesWeakEdges(t *testing.T) {
	cfg := testConfig()
	cfg.Build.MinEdgeWeight = 2
	runner := NewRunner(cfg, nil, nil)

	result, err := runner.Run(context.Background(), referenceSource())
	require.NoError(t, err)

	// Only the A-B pair appears in two patients
	assert.Equal(t, 1, result.Graph.EdgeCount())
	assert.Equal(t, 4, result.Pruned)
}

func TestRunner_RunCountsRejected(t *testing.T) {
	src := referenceSource()
	src.observations = append(src.observations,
		cohort.Observation{PatientID: 0, ConceptID: 1, AgeAtEvent: 70},
		cohort.Observation{PatientID: 9, ConceptID: 0, AgeAtEvent: 70},
	)
	runner := NewRunner(testConfig(), nil, nil)

	result, err := runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 4, result.Patients)
}

func TestRunner_RunSourceError(t *testing.T) {
	runner := NewRunner(testConfig(), nil, nil)

	_, err := runner.Run(context.Background(), &fakeSource{err: errors.New("connection refused")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cohort source")
}

func TestRunner_Analyze(t *testing.T) {
	runner := NewRunner(testConfig(), nil, nil)

	built, err := runner.Run(context.Background(), referenceSource())
	require.NoError(t, err)

	// Re-analyzing the built graph reproduces the component and partition
	again, err := runner.Analyze(context.Background(), built.Graph)
	require.NoError(t, err)

	assert.NotEqual(t, built.RunID, again.RunID)
	assert.Equal(t, built.Main.NodeCount(), again.Main.NodeCount())
	assert.Equal(t, built.Communities.Modularity, again.Communities.Modularity)
	assert.Equal(t, len(built.Communities.Communities), len(again.Communities.Communities))
}

func TestRunner_AnalyzeCancelledContext(t *testing.T) {
	runner := NewRunner(testConfig(), nil, nil)

	built, err := runner.Run(context.Background(), referenceSource())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = runner.Analyze(ctx, built.Graph)
	require.ErrorIs(t, err, context.Canceled)
}
