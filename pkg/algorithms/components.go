// Package algorithms derives read-only structures from a finalized
// co-occurrence graph: connected components, centrality scores and a
// Louvain community partition. All traversal orders are canonical
// (ascending concept ID) so repeated runs on the same graph produce
// identical results.
package algorithms

import (
	"container/list"
	"sort"

	"github.com/opencohort/epigraph/pkg/graph"
)

// Component is one connected component of the graph.
type Component struct {
	ID    int
	Nodes []uint64 // ascending
	Size  int
}

// ConnectedComponents finds all connected components via BFS. Components
// are numbered in order of discovery, starting from the lowest concept ID.
func ConnectedComponents(g *graph.Graph) []*Component {
	nodeIDs := g.NodeIDs()

	visited := make(map[uint64]bool, len(nodeIDs))
	components := make([]*Component, 0)
	componentID := 0

	for _, startNode := range nodeIDs {
		if visited[startNode] {
			continue
		}

		component := &Component{
			ID:    componentID,
			Nodes: make([]uint64, 0),
		}

		queue := list.New()
		queue.PushBack(startNode)
		visited[startNode] = true

		for queue.Len() > 0 {
			nodeID, ok := queue.Remove(queue.Front()).(uint64)
			if !ok {
				continue
			}
			component.Nodes = append(component.Nodes, nodeID)

			for _, neighbor := range g.Neighbors(nodeID) {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue.PushBack(neighbor)
				}
			}
		}

		sort.Slice(component.Nodes, func(i, j int) bool {
			return component.Nodes[i] < component.Nodes[j]
		})
		component.Size = len(component.Nodes)
		components = append(components, component)
		componentID++
	}

	return components
}

// LargestComponent returns the subgraph induced by the largest connected
// component. Ties go to the component discovered first, which by the
// ascending traversal order is the one containing the lowest concept ID.
// An empty graph yields an empty subgraph and a nil component.
func LargestComponent(g *graph.Graph) (*graph.Graph, *Component) {
	components := ConnectedComponents(g)
	if len(components) == 0 {
		return g.Induced(nil), nil
	}

	best := components[0]
	for _, c := range components[1:] {
		if c.Size > best.Size {
			best = c
		}
	}

	return g.Induced(best.Nodes), best
}
