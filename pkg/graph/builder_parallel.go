package graph

import (
	"sync"

	"github.com/opencohort/epigraph/pkg/parallel"
)

// BuildParallel accumulates patient disease sets across a worker pool.
// Patients are partitioned into one chunk per worker; each chunk feeds a
// private Builder and the per-worker builders are merged by summation.
// Increments are commutative and associative, so the result is identical
// to a sequential build regardless of partitioning or merge order.
func BuildParallel(patientSets [][]uint64, workers int) (*Builder, error) {
	if workers <= 1 || len(patientSets) < 2 {
		b := NewBuilder()
		for _, set := range patientSets {
			if err := b.AddPatient(set); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	if workers > len(patientSets) {
		workers = len(patientSets)
	}

	pool, err := parallel.NewWorkerPool(workers)
	if err != nil {
		return nil, err
	}

	partials := make([]*Builder, workers)
	errs := make([]error, workers)
	chunk := (len(patientSets) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(patientSets) {
			end = len(patientSets)
		}
		if start >= end {
			partials[w] = NewBuilder()
			continue
		}

		w, start, end := w, start, end
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			b := NewBuilder()
			for _, set := range patientSets[start:end] {
				if err := b.AddPatient(set); err != nil {
					errs[w] = err
					break
				}
			}
			partials[w] = b
		})
	}

	wg.Wait()
	pool.Close()

	merged := NewBuilder()
	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			return nil, errs[w]
		}
		if partials[w] == nil {
			continue
		}
		if err := merged.Merge(partials[w]); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
