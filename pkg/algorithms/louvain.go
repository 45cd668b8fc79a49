package algorithms

import (
	"sort"

	"github.com/opencohort/epigraph/pkg/graph"
)

// Community is one detected community.
type Community struct {
	ID            int      `json:"id"`
	Nodes         []uint64 `json:"nodes"` // ascending
	Size          int      `json:"size"`
	InternalEdges int      `json:"internal_edges"`
	Density       float64  `json:"density"` // internal edges / possible edges
}

// CommunityDetectionResult contains a partition of the graph's nodes.
type CommunityDetectionResult struct {
	Communities   []*Community
	NodeCommunity map[uint64]int // concept ID -> community label
	Modularity    float64
	Converged     bool // false when a pass or level cap forced termination
	Levels        int
	Passes        int
}

// LouvainOptions bound the optimization. Zero values take defaults.
type LouvainOptions struct {
	MaxPasses  int     // local-phase passes per level
	MaxLevels  int     // aggregation rounds
	Resolution float64 // scales the expected-density term, 1.0 = classic modularity
}

const (
	DefaultMaxPasses  = 100
	DefaultMaxLevels  = 32
	defaultResolution = 1.0
)

func (o LouvainOptions) withDefaults() LouvainOptions {
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	if o.MaxLevels <= 0 {
		o.MaxLevels = DefaultMaxLevels
	}
	if o.Resolution <= 0 {
		o.Resolution = defaultResolution
	}
	return o
}

// levelGraph is one graph in the aggregation hierarchy, in dense-index
// form. selfLoop holds intra-community weight (counted once); a node's
// weighted degree is its incident edge weights plus twice its self-loop.
type levelGraph struct {
	n        int
	weights  []map[int]float64 // neighbor index -> weight, no self entries
	selfLoop []float64
	degree   []float64 // weighted degree including self-loops
}

func (lg *levelGraph) addWeight(u, v int, w float64) {
	if lg.weights[u] == nil {
		lg.weights[u] = make(map[int]float64)
	}
	lg.weights[u][v] += w
}

// Louvain partitions the graph into communities by two-phase modularity
// optimization. Nodes are visited in ascending concept-ID order and moved
// only on strictly positive gain, so runs on identical input produce
// identical partitions. Pass and level caps guarantee termination; hitting
// a cap surfaces as Converged=false with the best partition found so far.
func Louvain(g *graph.Graph, opts LouvainOptions) (*CommunityDetectionResult, error) {
	opts = opts.withDefaults()

	ids := g.NodeIDs()
	n := len(ids)
	if n == 0 {
		return &CommunityDetectionResult{
			Communities:   []*Community{},
			NodeCommunity: map[uint64]int{},
			Converged:     true,
		}, nil
	}

	m := float64(g.TotalWeight())
	if m == 0 {
		// No edges: every node is its own community, modularity 0
		return singletonPartition(g, ids), nil
	}

	index := make(map[uint64]int, n)
	for i, id := range ids {
		index[id] = i
	}

	lg := &levelGraph{
		n:        n,
		weights:  make([]map[int]float64, n),
		selfLoop: make([]float64, n),
		degree:   make([]float64, n),
	}
	for _, e := range g.Edges() {
		u, v := index[e.Source], index[e.Target]
		w := float64(e.Weight)
		lg.addWeight(u, v, w)
		lg.addWeight(v, u, w)
		lg.degree[u] += w
		lg.degree[v] += w
	}

	// assignment[i] = community of original node i at the current level
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = i
	}

	converged := true
	totalPasses := 0
	levels := 0

	for {
		comm, passes, localConverged := localPhase(lg, m, opts)
		totalPasses += passes
		if !localConverged {
			converged = false
		}

		next, mapping := aggregate(lg, comm)
		for i := range assignment {
			assignment[i] = mapping[comm[assignment[i]]]
		}
		levels++

		// Aggregation no longer reduces super-nodes: done
		if next.n == lg.n {
			break
		}
		lg = next

		if levels >= opts.MaxLevels {
			if lg.n > 1 {
				converged = false
			}
			break
		}
	}

	return assembleResult(g, ids, assignment, converged, levels, totalPasses), nil
}

// localPhase runs greedy node moves until a full pass produces no moves or
// the pass cap is reached. Returns the community of each node, the number
// of passes executed, and whether the phase converged within the cap.
func localPhase(lg *levelGraph, m float64, opts LouvainOptions) ([]int, int, bool) {
	comm := make([]int, lg.n)
	sigmaTot := make([]float64, lg.n)
	for i := 0; i < lg.n; i++ {
		comm[i] = i
		sigmaTot[i] = lg.degree[i]
	}

	passes := 0
	for passes < opts.MaxPasses {
		moves := 0
		passes++

		for i := 0; i < lg.n; i++ {
			current := comm[i]

			// Weight from i to each neighboring community
			neighborWeight := make(map[int]float64)
			for j, w := range lg.weights[i] {
				neighborWeight[comm[j]] += w
			}

			// Detach i before evaluating candidates
			sigmaTot[current] -= lg.degree[i]

			// Gain comparison term: d_ic - γ·Σtot(c)·k_i/(2m).
			// Staying is a candidate too; ties favor staying.
			bestComm := current
			bestGain := neighborWeight[current] -
				opts.Resolution*sigmaTot[current]*lg.degree[i]/(2*m)

			candidates := make([]int, 0, len(neighborWeight))
			for c := range neighborWeight {
				if c != current {
					candidates = append(candidates, c)
				}
			}
			sort.Ints(candidates)

			for _, c := range candidates {
				gain := neighborWeight[c] -
					opts.Resolution*sigmaTot[c]*lg.degree[i]/(2*m)
				if gain > bestGain {
					bestGain = gain
					bestComm = c
				}
			}

			sigmaTot[bestComm] += lg.degree[i]
			if bestComm != current {
				comm[i] = bestComm
				moves++
			}
		}

		if moves == 0 {
			return comm, passes, true
		}
	}

	return comm, passes, false
}

// aggregate collapses each community into a super-node. Inter-community
// weights sum onto edges, intra-community weights sum onto self-loops.
// Returns the aggregated graph and the old-community-to-new-index mapping.
func aggregate(lg *levelGraph, comm []int) (*levelGraph, map[int]int) {
	labels := make([]int, 0)
	seen := make(map[int]struct{})
	for i := 0; i < lg.n; i++ {
		if _, ok := seen[comm[i]]; !ok {
			seen[comm[i]] = struct{}{}
			labels = append(labels, comm[i])
		}
	}
	sort.Ints(labels)

	mapping := make(map[int]int, len(labels))
	for newIdx, label := range labels {
		mapping[label] = newIdx
	}

	next := &levelGraph{
		n:        len(labels),
		weights:  make([]map[int]float64, len(labels)),
		selfLoop: make([]float64, len(labels)),
		degree:   make([]float64, len(labels)),
	}

	for i := 0; i < lg.n; i++ {
		ci := mapping[comm[i]]
		next.selfLoop[ci] += lg.selfLoop[i]
		for j, w := range lg.weights[i] {
			cj := mapping[comm[j]]
			if ci == cj {
				if i < j {
					next.selfLoop[ci] += w
				}
			} else {
				next.addWeight(ci, cj, w)
			}
		}
	}

	for c := 0; c < next.n; c++ {
		d := 2 * next.selfLoop[c]
		for _, w := range next.weights[c] {
			d += w
		}
		next.degree[c] = d
	}

	return next, mapping
}

// assembleResult unwinds the hierarchy into final labels, renumbered
// contiguously from 0 by descending community size (ties by lowest member
// concept ID), and computes the partition's modularity on the original
// graph.
func assembleResult(g *graph.Graph, ids []uint64, assignment []int, converged bool, levels, passes int) *CommunityDetectionResult {
	members := make(map[int][]uint64)
	for i, id := range ids {
		members[assignment[i]] = append(members[assignment[i]], id)
	}

	type group struct {
		minID uint64
		nodes []uint64
	}
	groups := make([]group, 0, len(members))
	for _, nodes := range members {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
		groups = append(groups, group{minID: nodes[0], nodes: nodes})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].nodes) != len(groups[j].nodes) {
			return len(groups[i].nodes) > len(groups[j].nodes)
		}
		return groups[i].minID < groups[j].minID
	})

	nodeCommunity := make(map[uint64]int, len(ids))
	communities := make([]*Community, 0, len(groups))
	for label, grp := range groups {
		internal := 0
		for i := 0; i < len(grp.nodes); i++ {
			for j := i + 1; j < len(grp.nodes); j++ {
				if g.HasEdge(grp.nodes[i], grp.nodes[j]) {
					internal++
				}
			}
		}
		size := len(grp.nodes)
		density := 0.0
		if size > 1 {
			density = float64(2*internal) / float64(size*(size-1))
		}

		communities = append(communities, &Community{
			ID:            label,
			Nodes:         grp.nodes,
			Size:          size,
			InternalEdges: internal,
			Density:       density,
		})
		for _, id := range grp.nodes {
			nodeCommunity[id] = label
		}
	}

	return &CommunityDetectionResult{
		Communities:   communities,
		NodeCommunity: nodeCommunity,
		Modularity:    Modularity(g, nodeCommunity),
		Converged:     converged,
		Levels:        levels,
		Passes:        passes,
	}
}

// Modularity computes Q = Σ_c [W_in(c)/m − (Σtot(c)/2m)²] for a partition,
// where W_in is the intra-community edge weight and Σtot the summed
// weighted degrees. An edgeless graph has modularity 0 by convention.
func Modularity(g *graph.Graph, nodeCommunity map[uint64]int) float64 {
	m := float64(g.TotalWeight())
	if m == 0 {
		return 0.0
	}

	intra := make(map[int]float64)
	degree := make(map[int]float64)

	for _, id := range g.NodeIDs() {
		degree[nodeCommunity[id]] += float64(g.WeightedDegree(id))
	}
	for _, e := range g.Edges() {
		if nodeCommunity[e.Source] == nodeCommunity[e.Target] {
			intra[nodeCommunity[e.Source]] += float64(e.Weight)
		}
	}

	q := 0.0
	for c, d := range degree {
		q += intra[c]/m - (d/(2*m))*(d/(2*m))
	}
	return q
}

// singletonPartition places every node in its own community, labels
// assigned by ascending concept ID.
func singletonPartition(g *graph.Graph, ids []uint64) *CommunityDetectionResult {
	nodeCommunity := make(map[uint64]int, len(ids))
	communities := make([]*Community, 0, len(ids))
	for label, id := range ids {
		nodeCommunity[id] = label
		communities = append(communities, &Community{
			ID:    label,
			Nodes: []uint64{id},
			Size:  1,
		})
	}
	return &CommunityDetectionResult{
		Communities:   communities,
		NodeCommunity: nodeCommunity,
		Converged:     true,
	}
}
