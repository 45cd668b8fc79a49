package algorithms

import (
	"testing"

	"github.com/opencohort/epigraph/pkg/graph"
)

func makeGraph(t *testing.T, nodes []uint64, edges []graph.Edge) *graph.Graph {
	t.Helper()

	diseases := make([]graph.Disease, 0, len(nodes))
	for _, id := range nodes {
		diseases = append(diseases, graph.Disease{ConceptID: id, Prevalence: 1})
	}
	g, err := graph.Restore(diseases, edges)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	return g
}

// exampleGraph mirrors the reference cohort network: A-B:2, A-C:1, B-C:1,
// C-D:1, A-D:1.
func exampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	return makeGraph(t,
		[]uint64{1, 2, 3, 4},
		[]graph.Edge{
			{Source: 1, Target: 2, Weight: 2},
			{Source: 1, Target: 3, Weight: 1},
			{Source: 2, Target: 3, Weight: 1},
			{Source: 3, Target: 4, Weight: 1},
			{Source: 1, Target: 4, Weight: 1},
		})
}

func TestConnectedComponents_Empty(t *testing.T) {
	g := makeGraph(t, nil, nil)

	components := ConnectedComponents(g)
	if len(components) != 0 {
		t.Errorf("Expected 0 components, got %d", len(components))
	}

	sub, largest := LargestComponent(g)
	if largest != nil {
		t.Error("Expected nil component for empty graph")
	}
	if sub.NodeCount() != 0 {
		t.Errorf("Expected empty subgraph, got %d nodes", sub.NodeCount())
	}
}

func TestConnectedComponents_Singleton(t *testing.T) {
	g := makeGraph(t, []uint64{7}, nil)

	components := ConnectedComponents(g)
	if len(components) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(components))
	}
	if components[0].Size != 1 || components[0].Nodes[0] != 7 {
		t.Errorf("Unexpected component: %+v", components[0])
	}
}

func TestConnectedComponents_Disjoint(t *testing.T) {
	// Triangle {1,2,3}, pair {10,11}, isolated {20}
	g := makeGraph(t,
		[]uint64{1, 2, 3, 10, 11, 20},
		[]graph.Edge{
			{Source: 1, Target: 2, Weight: 1},
			{Source: 2, Target: 3, Weight: 1},
			{Source: 1, Target: 3, Weight: 1},
			{Source: 10, Target: 11, Weight: 1},
		})

	components := ConnectedComponents(g)
	if len(components) != 3 {
		t.Fatalf("Expected 3 components, got %d", len(components))
	}

	// Discovery order follows ascending concept IDs
	wantSizes := []int{3, 2, 1}
	for i, want := range wantSizes {
		if components[i].Size != want {
			t.Errorf("Component %d size = %d, want %d", i, components[i].Size, want)
		}
		if components[i].ID != i {
			t.Errorf("Component %d has ID %d", i, components[i].ID)
		}
	}

	sub, largest := LargestComponent(g)
	if largest.Size != 3 {
		t.Fatalf("Largest component size = %d, want 3", largest.Size)
	}
	if sub.NodeCount() != 3 || sub.EdgeCount() != 3 {
		t.Errorf("Induced subgraph: %d nodes, %d edges; want 3, 3", sub.NodeCount(), sub.EdgeCount())
	}
	if sub.HasNode(10) || sub.HasNode(20) {
		t.Error("Other components leaked into the largest-component subgraph")
	}
}

func TestLargestComponent_TieKeepsLowestID(t *testing.T) {
	// Two pairs of equal size
	g := makeGraph(t,
		[]uint64{1, 2, 10, 11},
		[]graph.Edge{
			{Source: 1, Target: 2, Weight: 1},
			{Source: 10, Target: 11, Weight: 1},
		})

	_, largest := LargestComponent(g)
	if largest.Nodes[0] != 1 {
		t.Errorf("Tie should keep the component containing the lowest ID, got %v", largest.Nodes)
	}
}

func TestLargestComponent_ExampleIsConnected(t *testing.T) {
	g := exampleGraph(t)

	sub, largest := LargestComponent(g)
	if largest.Size != 4 {
		t.Fatalf("Expected one 4-node component, got size %d", largest.Size)
	}
	if sub.EdgeCount() != g.EdgeCount() {
		t.Errorf("Connected graph should induce itself: %d vs %d edges", sub.EdgeCount(), g.EdgeCount())
	}
}

func TestLargestComponent_Idempotent(t *testing.T) {
	g := makeGraph(t,
		[]uint64{1, 2, 3, 10},
		[]graph.Edge{
			{Source: 1, Target: 2, Weight: 1},
			{Source: 2, Target: 3, Weight: 1},
		})

	sub, first := LargestComponent(g)
	again, second := LargestComponent(sub)

	if first.Size != second.Size {
		t.Errorf("Sizes differ on re-extraction: %d vs %d", first.Size, second.Size)
	}
	if again.NodeCount() != sub.NodeCount() || again.EdgeCount() != sub.EdgeCount() {
		t.Error("Re-extraction changed the subgraph")
	}
}
