package algorithms

import (
	"container/list"

	"github.com/opencohort/epigraph/pkg/graph"
)

// Scorer computes a per-node score over a graph view. Additional measures
// (PageRank, eigenvector, ...) plug in here without touching the pipeline.
type Scorer func(g *graph.Graph) (map[uint64]float64, error)

// DegreeResult holds raw and normalized degree centrality.
type DegreeResult struct {
	Degree     map[uint64]int
	Centrality map[uint64]float64 // degree / (n-1), 0 when n <= 1
}

// DegreeCentrality computes the degree (distinct neighbor count) and the
// normalized degree centrality for every node. Insensitive to edge
// insertion order.
func DegreeCentrality(g *graph.Graph) *DegreeResult {
	nodeIDs := g.NodeIDs()
	n := len(nodeIDs)

	result := &DegreeResult{
		Degree:     make(map[uint64]int, n),
		Centrality: make(map[uint64]float64, n),
	}

	for _, nodeID := range nodeIDs {
		degree := g.Degree(nodeID)
		result.Degree[nodeID] = degree
		if n > 1 {
			result.Centrality[nodeID] = float64(degree) / float64(n-1)
		} else {
			result.Centrality[nodeID] = 0.0
		}
	}

	return result
}

// DegreeScorer adapts DegreeCentrality to the Scorer interface.
func DegreeScorer(g *graph.Graph) (map[uint64]float64, error) {
	return DegreeCentrality(g).Centrality, nil
}

// BetweennessCentrality computes node betweenness via Brandes' algorithm
// on unweighted shortest paths. Scores are normalized by 2/((n-1)(n-2))
// for undirected graphs.
func BetweennessCentrality(g *graph.Graph) (map[uint64]float64, error) {
	nodeIDs := g.NodeIDs()
	n := len(nodeIDs)

	betweenness := make(map[uint64]float64, n)
	for _, nodeID := range nodeIDs {
		betweenness[nodeID] = 0.0
	}

	for _, source := range nodeIDs {
		stack := make([]uint64, 0, n)
		predecessors := make(map[uint64][]uint64, n)
		sigma := make(map[uint64]float64, n)
		distance := make(map[uint64]int, n)

		for _, nodeID := range nodeIDs {
			sigma[nodeID] = 0.0
			distance[nodeID] = -1
		}
		sigma[source] = 1.0
		distance[source] = 0

		queue := list.New()
		queue.PushBack(source)

		for queue.Len() > 0 {
			v, ok := queue.Remove(queue.Front()).(uint64)
			if !ok {
				continue
			}
			stack = append(stack, v)

			for _, w := range g.Neighbors(v) {
				if distance[w] < 0 {
					queue.PushBack(w)
					distance[w] = distance[v] + 1
				}
				if distance[w] == distance[v]+1 {
					sigma[w] += sigma[v]
					predecessors[w] = append(predecessors[w], v)
				}
			}
		}

		delta := make(map[uint64]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range predecessors[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1.0 + delta[w])
			}
			if w != source {
				betweenness[w] += delta[w]
			}
		}
	}

	// Each undirected pair is counted twice in the accumulation
	if n > 2 {
		normFactor := 1.0 / float64((n-1)*(n-2))
		for nodeID := range betweenness {
			betweenness[nodeID] *= normFactor
		}
	}

	return betweenness, nil
}

// ClosenessCentrality computes closeness for all nodes: reachable node
// count divided by the sum of shortest-path distances. Unreachable nodes
// do not contribute.
func ClosenessCentrality(g *graph.Graph) (map[uint64]float64, error) {
	nodeIDs := g.NodeIDs()

	closeness := make(map[uint64]float64, len(nodeIDs))

	for _, source := range nodeIDs {
		distance := make(map[uint64]int, len(nodeIDs))
		for _, nodeID := range nodeIDs {
			distance[nodeID] = -1
		}
		distance[source] = 0

		queue := list.New()
		queue.PushBack(source)

		for queue.Len() > 0 {
			v, ok := queue.Remove(queue.Front()).(uint64)
			if !ok {
				continue
			}
			for _, w := range g.Neighbors(v) {
				if distance[w] < 0 {
					distance[w] = distance[v] + 1
					queue.PushBack(w)
				}
			}
		}

		totalDistance := 0
		reachableNodes := 0
		for _, dist := range distance {
			if dist > 0 {
				totalDistance += dist
				reachableNodes++
			}
		}

		if totalDistance > 0 {
			closeness[source] = float64(reachableNodes) / float64(totalDistance)
		} else {
			closeness[source] = 0.0
		}
	}

	return closeness, nil
}
