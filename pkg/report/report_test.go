package report

import (
	"testing"

	"github.com/opencohort/epigraph/pkg/algorithms"
	"github.com/opencohort/epigraph/pkg/graph"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()

	nodes := []graph.Disease{
		{ConceptID: 1, Name: "Hypertension", Prevalence: 3},
		{ConceptID: 2, Name: "Diabetes", Prevalence: 2},
		{ConceptID: 3, Name: "CKD", Prevalence: 2},
		{ConceptID: 4, Name: "Anemia", Prevalence: 2},
	}
	edges := []graph.Edge{
		{Source: 1, Target: 2, Weight: 2},
		{Source: 1, Target: 3, Weight: 1},
		{Source: 2, Target: 3, Weight: 1},
		{Source: 3, Target: 4, Weight: 1},
		{Source: 1, Target: 4, Weight: 1},
	}
	g, err := graph.Restore(nodes, edges)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	return g
}

func testCommunities() *algorithms.CommunityDetectionResult {
	return &algorithms.CommunityDetectionResult{
		Communities: []*algorithms.Community{
			{ID: 0, Nodes: []uint64{1, 2, 3}, Size: 3, InternalEdges: 3, Density: 1.0},
			{ID: 1, Nodes: []uint64{4}, Size: 1},
		},
		NodeCommunity: map[uint64]int{1: 0, 2: 0, 3: 0, 4: 1},
		Modularity:    0.35,
		Converged:     true,
	}
}

func TestBuild_NodeOrdering(t *testing.T) {
	g := testGraph(t)
	degrees := algorithms.DegreeCentrality(g)

	rep := Build(g, degrees, testCommunities(), Summary{Patients: 4}, DefaultOptions())

	if len(rep.Nodes) != 4 {
		t.Fatalf("Expected 4 node rows, got %d", len(rep.Nodes))
	}

	// Community ascending, degree descending, concept ID ascending.
	// Degrees: 1->3, 2->2, 3->3, 4->2.
	wantOrder := []uint64{1, 3, 2, 4}
	for i, want := range wantOrder {
		if rep.Nodes[i].ConceptID != want {
			t.Errorf("Nodes[%d] = %d, want %d", i, rep.Nodes[i].ConceptID, want)
		}
	}

	first := rep.Nodes[0]
	if first.Name != "Hypertension" || first.Prevalence != 3 || first.Degree != 3 || first.Community != 0 {
		t.Errorf("Unexpected first row: %+v", first)
	}
}

func TestBuild_UnlabeledNodes(t *testing.T) {
	g := testGraph(t)
	degrees := algorithms.DegreeCentrality(g)

	// Node 4 missing from the partition
	partial := testCommunities()
	delete(partial.NodeCommunity, 4)
	partial.Communities = partial.Communities[:1]

	rep := Build(g, degrees, partial, Summary{}, DefaultOptions())

	var found bool
	for _, row := range rep.Nodes {
		if row.ConceptID == 4 {
			found = true
			if row.Community != Unlabeled {
				t.Errorf("Node 4 community = %d, want Unlabeled", row.Community)
			}
		}
	}
	if !found {
		t.Fatal("Node 4 missing from the node table")
	}

	// Unlabeled sorts before labeled communities
	if rep.Nodes[0].ConceptID != 4 {
		t.Errorf("Unlabeled node should sort first, got %d", rep.Nodes[0].ConceptID)
	}
}

func TestBuild_NilCommunities(t *testing.T) {
	g := testGraph(t)
	degrees := algorithms.DegreeCentrality(g)

	rep := Build(g, degrees, nil, Summary{}, DefaultOptions())

	if len(rep.Communities) != 0 {
		t.Errorf("Expected no community rows, got %d", len(rep.Communities))
	}
	for _, row := range rep.Nodes {
		if row.Community != Unlabeled {
			t.Errorf("Node %d community = %d, want Unlabeled", row.ConceptID, row.Community)
		}
	}
	if rep.Summary.Communities != 0 {
		t.Errorf("Summary.Communities = %d, want 0", rep.Summary.Communities)
	}
}

func TestBuild_CommunityRows(t *testing.T) {
	g := testGraph(t)
	degrees := algorithms.DegreeCentrality(g)

	rep := Build(g, degrees, testCommunities(), Summary{}, Options{TopNodes: 10, TopMembersPerCommunity: 2})

	if len(rep.Communities) != 2 {
		t.Fatalf("Expected 2 community rows, got %d", len(rep.Communities))
	}

	// Larger community first
	big := rep.Communities[0]
	if big.ID != 0 || big.Size != 3 || big.InternalEdges != 3 {
		t.Errorf("Unexpected first community row: %+v", big)
	}

	// Members ranked by degree (1:3, 3:3, 2:2), truncated to 2
	wantMembers := []string{"Hypertension", "CKD"}
	if len(big.TopMembers) != len(wantMembers) {
		t.Fatalf("TopMembers = %v, want %v", big.TopMembers, wantMembers)
	}
	for i, want := range wantMembers {
		if big.TopMembers[i] != want {
			t.Errorf("TopMembers[%d] = %q, want %q", i, big.TopMembers[i], want)
		}
	}
}

func TestBuild_TopByDegree(t *testing.T) {
	g := testGraph(t)
	degrees := algorithms.DegreeCentrality(g)

	rep := Build(g, degrees, testCommunities(), Summary{}, Options{TopNodes: 2, TopMembersPerCommunity: 10})

	if len(rep.TopByDegree) != 2 {
		t.Fatalf("Expected 2 top rows, got %d", len(rep.TopByDegree))
	}
	// Degree ties (1 and 3 both have 3) break by concept ID
	if rep.TopByDegree[0].ConceptID != 1 || rep.TopByDegree[1].ConceptID != 3 {
		t.Errorf("Top rows = %d, %d; want 1, 3",
			rep.TopByDegree[0].ConceptID, rep.TopByDegree[1].ConceptID)
	}
}

func TestBuild_SummaryFilled(t *testing.T) {
	g := testGraph(t)
	degrees := algorithms.DegreeCentrality(g)

	rep := Build(g, degrees, testCommunities(), Summary{Patients: 4, Rejected: 1}, DefaultOptions())

	s := rep.Summary
	if s.Patients != 4 || s.Rejected != 1 {
		t.Errorf("Cohort figures lost: %+v", s)
	}
	if s.Nodes != 4 || s.Edges != 5 {
		t.Errorf("Graph figures: nodes=%d edges=%d, want 4, 5", s.Nodes, s.Edges)
	}
	if s.Communities != 2 || s.Modularity != 0.35 || !s.Converged {
		t.Errorf("Community figures: %+v", s)
	}
}
