package graph

import (
	"fmt"
	"sort"
)

// pairKey identifies an unordered disease pair. lo < hi always holds.
type pairKey struct {
	lo, hi uint64
}

func makePair(a, b uint64) pairKey {
	if a < b {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

// Builder accumulates co-occurrence counts across patients. It is created
// per run and discarded after Finalize; a finalized Builder rejects further
// mutation. Builders are not safe for concurrent use — for parallel builds,
// give each worker its own Builder and Merge the results.
type Builder struct {
	names      map[uint64]string
	prevalence map[uint64]int
	weights    map[pairKey]int
	patients   int
	finalized  bool
}

// NewBuilder creates an empty accumulator.
func NewBuilder() *Builder {
	return &Builder{
		names:      make(map[uint64]string),
		prevalence: make(map[uint64]int),
		weights:    make(map[pairKey]int),
	}
}

// SetName records the display name for a concept ID.
func (b *Builder) SetName(id uint64, name string) {
	b.names[id] = name
}

// SetNames records display names in bulk.
func (b *Builder) SetNames(names map[uint64]string) {
	for id, name := range names {
		b.names[id] = name
	}
}

// AddPatient records one patient's disease set. Duplicate concept IDs are
// collapsed; a set of size k contributes exactly C(k,2) edge-weight
// increments and one prevalence increment per distinct disease. Sets of
// size 0 or 1 contribute no edges.
func (b *Builder) AddPatient(diseases []uint64) error {
	if b.finalized {
		return &GraphError{Op: "AddPatient", Entity: "builder", Cause: ErrBuilderFinalized}
	}

	distinct := make([]uint64, 0, len(diseases))
	seen := make(map[uint64]struct{}, len(diseases))
	for _, d := range diseases {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		distinct = append(distinct, d)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	for _, d := range distinct {
		b.prevalence[d]++
	}
	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			b.weights[pairKey{lo: distinct[i], hi: distinct[j]}]++
		}
	}

	b.patients++
	return nil
}

// Merge folds another builder's counts into this one. Edge weights and
// prevalence counts sum, so merge order is irrelevant.
func (b *Builder) Merge(other *Builder) error {
	if b.finalized {
		return &GraphError{Op: "Merge", Entity: "builder", Cause: ErrBuilderFinalized}
	}
	for id, n := range other.prevalence {
		b.prevalence[id] += n
	}
	for pair, w := range other.weights {
		b.weights[pair] += w
	}
	for id, name := range other.names {
		if _, ok := b.names[id]; !ok {
			b.names[id] = name
		}
	}
	b.patients += other.patients
	return nil
}

// Patients returns the number of patients accumulated so far.
func (b *Builder) Patients() int {
	return b.patients
}

// Finalize produces the immutable Graph and seals the builder. Edges with
// weight below minEdgeWeight are dropped; their endpoints remain as nodes.
// Returns the graph and the number of pruned edges.
func (b *Builder) Finalize(minEdgeWeight int) (*Graph, int, error) {
	if b.finalized {
		return nil, 0, &GraphError{Op: "Finalize", Entity: "builder", Cause: ErrBuilderFinalized}
	}
	b.finalized = true

	if minEdgeWeight < 1 {
		minEdgeWeight = 1
	}

	g := newGraph()
	for id, count := range b.prevalence {
		name, ok := b.names[id]
		if !ok {
			name = fmt.Sprintf("concept-%d", id)
		}
		g.addNode(Disease{ConceptID: id, Name: name, Prevalence: count})
	}

	pruned := 0
	for pair, weight := range b.weights {
		if weight < minEdgeWeight {
			pruned++
			continue
		}
		if err := g.addEdge(pair.lo, pair.hi, weight); err != nil {
			// unreachable by construction: every pair endpoint had its
			// prevalence incremented in the same AddPatient call
			return nil, 0, err
		}
	}

	return g, pruned, nil
}
