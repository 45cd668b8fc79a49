package algorithms

import (
	"container/heap"
	"sort"
)

// RankedNode holds a node with its score for top-N selection.
type RankedNode struct {
	ConceptID uint64  `json:"concept_id"`
	Score     float64 `json:"score"`
}

// rankedNodeHeap implements a min-heap for RankedNode by score, breaking
// ties by descending concept ID so the lowest-ID node survives eviction.
type rankedNodeHeap []RankedNode

func (h rankedNodeHeap) Len() int { return len(h) }
func (h rankedNodeHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ConceptID > h[j].ConceptID
}
func (h rankedNodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankedNodeHeap) Push(x any) {
	*h = append(*h, x.(RankedNode))
}

func (h *rankedNodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// TopNodes returns the top n nodes by score using a min-heap. Output is
// sorted by score descending, ties broken by ascending concept ID.
func TopNodes(scores map[uint64]float64, n int) []RankedNode {
	if n <= 0 {
		return nil
	}

	h := make(rankedNodeHeap, 0, n)
	heap.Init(&h)

	for nodeID, score := range scores {
		rn := RankedNode{ConceptID: nodeID, Score: score}
		if h.Len() < n {
			heap.Push(&h, rn)
		} else if score > h[0].Score || (score == h[0].Score && nodeID < h[0].ConceptID) {
			heap.Pop(&h)
			heap.Push(&h, rn)
		}
	}

	result := make([]RankedNode, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(RankedNode)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].ConceptID < result[j].ConceptID
	})

	return result
}
