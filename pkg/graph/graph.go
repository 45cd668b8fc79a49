// Package graph holds the weighted undirected disease co-occurrence graph.
//
// Nodes are diseases keyed by concept ID. An edge between two diseases
// carries an integer weight equal to the number of patients diagnosed with
// both. The graph is immutable once finalized by a Builder; every analysis
// consumes it read-only and returns a new derived structure.
package graph

import (
	"sort"
)

// Disease is a node in the co-occurrence graph.
type Disease struct {
	ConceptID  uint64 `json:"concept_id"`
	Name       string `json:"name"`
	Prevalence int    `json:"prevalence"` // number of cohort patients carrying the disease
}

// Edge is an unordered co-occurrence pair. Source < Target always holds.
type Edge struct {
	Source uint64 `json:"source"`
	Target uint64 `json:"target"`
	Weight int    `json:"weight"`
}

// Graph is a finalized weighted undirected graph.
type Graph struct {
	nodes       map[uint64]Disease
	adj         map[uint64]map[uint64]int
	edgeCount   int
	totalWeight int
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[uint64]Disease),
		adj:   make(map[uint64]map[uint64]int),
	}
}

// NodeCount returns the number of disease nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of co-occurrence edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// TotalWeight returns the sum of all edge weights (each edge counted once).
func (g *Graph) TotalWeight() int {
	return g.totalWeight
}

// Node returns the disease with the given concept ID.
func (g *Graph) Node(id uint64) (Disease, bool) {
	d, ok := g.nodes[id]
	return d, ok
}

// HasNode reports whether a disease node exists.
func (g *Graph) HasNode(id uint64) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeIDs returns all concept IDs in ascending order.
func (g *Graph) NodeIDs() []uint64 {
	ids := make([]uint64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Weight returns the edge weight between two diseases, 0 if no edge exists.
func (g *Graph) Weight(u, v uint64) int {
	return g.adj[u][v]
}

// HasEdge reports whether an edge exists between two diseases.
func (g *Graph) HasEdge(u, v uint64) bool {
	_, ok := g.adj[u][v]
	return ok
}

// Neighbors returns the distinct neighbors of a node in ascending order.
func (g *Graph) Neighbors(id uint64) []uint64 {
	nbrs := make([]uint64, 0, len(g.adj[id]))
	for n := range g.adj[id] {
		nbrs = append(nbrs, n)
	}
	sort.Slice(nbrs, func(i, j int) bool { return nbrs[i] < nbrs[j] })
	return nbrs
}

// Degree returns the number of distinct neighbors of a node.
func (g *Graph) Degree(id uint64) int {
	return len(g.adj[id])
}

// WeightedDegree returns the sum of edge weights incident to a node.
func (g *Graph) WeightedDegree(id uint64) int {
	total := 0
	for _, w := range g.adj[id] {
		total += w
	}
	return total
}

// Edges returns all edges sorted by (source, target).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edgeCount)
	for u, nbrs := range g.adj {
		for v, w := range nbrs {
			if u < v {
				edges = append(edges, Edge{Source: u, Target: v, Weight: w})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// addNode inserts a disease node.
func (g *Graph) addNode(d Disease) {
	g.nodes[d.ConceptID] = d
	if g.adj[d.ConceptID] == nil {
		g.adj[d.ConceptID] = make(map[uint64]int)
	}
}

// addEdge inserts an undirected edge. Both endpoints must already exist.
func (g *Graph) addEdge(u, v uint64, weight int) error {
	if u == v {
		return &GraphError{Op: "addEdge", Entity: "edge", ID: u, Cause: ErrSelfLoop}
	}
	if !g.HasNode(u) {
		return &GraphError{Op: "addEdge", Entity: "node", ID: u, Cause: ErrDanglingEdge}
	}
	if !g.HasNode(v) {
		return &GraphError{Op: "addEdge", Entity: "node", ID: v, Cause: ErrDanglingEdge}
	}
	if weight < 1 {
		return &GraphError{Op: "addEdge", Entity: "edge", ID: u, Cause: ErrInvalidWeight}
	}
	if _, exists := g.adj[u][v]; !exists {
		g.edgeCount++
	} else {
		g.totalWeight -= g.adj[u][v]
	}
	g.adj[u][v] = weight
	g.adj[v][u] = weight
	g.totalWeight += weight
	return nil
}

// Restore rebuilds a Graph from node and edge lists, enforcing the edge
// invariants. Used when loading a previously finalized graph.
func Restore(nodes []Disease, edges []Edge) (*Graph, error) {
	g := newGraph()
	for _, d := range nodes {
		g.addNode(d)
	}
	for _, e := range edges {
		if err := g.addEdge(e.Source, e.Target, e.Weight); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Induced returns the subgraph induced by the given node set. Nodes not
// present in the graph are ignored. The result is a fresh Graph; the
// receiver is not modified.
func (g *Graph) Induced(ids []uint64) *Graph {
	sub := newGraph()
	keep := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if d, ok := g.nodes[id]; ok {
			keep[id] = struct{}{}
			sub.addNode(d)
		}
	}
	for u := range keep {
		for v, w := range g.adj[u] {
			if u < v {
				if _, ok := keep[v]; ok {
					// endpoints verified above, error unreachable
					_ = sub.addEdge(u, v, w)
				}
			}
		}
	}
	return sub
}
