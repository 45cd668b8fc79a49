package graph

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func patientSetsGen() gopter.Gen {
	return gen.SliceOf(gen.SliceOf(gen.UInt64Range(1, 12)))
}

func buildFrom(sets [][]uint64) (*Graph, error) {
	b := NewBuilder()
	for _, s := range sets {
		if err := b.AddPatient(s); err != nil {
			return nil, err
		}
	}
	g, _, err := b.Finalize(1)
	return g, err
}

func TestBuilderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("edge weight counts patients sharing the pair", prop.ForAll(
		func(sets [][]uint64) bool {
			g, err := buildFrom(sets)
			if err != nil {
				return false
			}
			for _, e := range g.Edges() {
				count := 0
				for _, s := range sets {
					if containsBoth(s, e.Source, e.Target) {
						count++
					}
				}
				if count != e.Weight {
					return false
				}
			}
			return true
		},
		patientSetsGen(),
	))

	properties.Property("total weight equals sum of per-patient pair counts", prop.ForAll(
		func(sets [][]uint64) bool {
			g, err := buildFrom(sets)
			if err != nil {
				return false
			}
			want := 0
			for _, s := range sets {
				k := distinctCount(s)
				want += k * (k - 1) / 2
			}
			return g.TotalWeight() == want
		},
		patientSetsGen(),
	))

	properties.Property("patient insertion order does not matter", prop.ForAll(
		func(sets [][]uint64) bool {
			g1, err := buildFrom(sets)
			if err != nil {
				return false
			}

			reversed := make([][]uint64, len(sets))
			for i, s := range sets {
				reversed[len(sets)-1-i] = s
			}
			g2, err := buildFrom(reversed)
			if err != nil {
				return false
			}

			return graphsEqual(g1, g2)
		},
		patientSetsGen(),
	))

	properties.Property("no self loops and endpoints ordered", prop.ForAll(
		func(sets [][]uint64) bool {
			g, err := buildFrom(sets)
			if err != nil {
				return false
			}
			for _, e := range g.Edges() {
				if e.Source >= e.Target {
					return false
				}
			}
			return true
		},
		patientSetsGen(),
	))

	properties.TestingRun(t)
}

func containsBoth(set []uint64, a, b uint64) bool {
	hasA, hasB := false, false
	for _, d := range set {
		if d == a {
			hasA = true
		}
		if d == b {
			hasB = true
		}
	}
	return hasA && hasB
}

func distinctCount(set []uint64) int {
	seen := make(map[uint64]struct{}, len(set))
	for _, d := range set {
		seen[d] = struct{}{}
	}
	return len(seen)
}

func graphsEqual(a, b *Graph) bool {
	if a.NodeCount() != b.NodeCount() || a.EdgeCount() != b.EdgeCount() {
		return false
	}
	for _, id := range a.NodeIDs() {
		na, _ := a.Node(id)
		nb, ok := b.Node(id)
		if !ok || na.Prevalence != nb.Prevalence {
			return false
		}
	}
	for _, e := range a.Edges() {
		if b.Weight(e.Source, e.Target) != e.Weight {
			return false
		}
	}
	return true
}
