package checkout

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/speedwagon-io/checkout/internal/result"
)

// Comparisons yields the file's prepared comparisons, skipping preparation
// failures.
func (f *PreparedFile) Comparisons() iter.Seq[*PreparedComparison] {
	return func(yield func(*PreparedComparison) bool) {
		for item := range f.WalkComparisons() {
			if pc, ok := item.(*PreparedComparison); ok {
				if !yield(pc) {
					return
				}
			}
		}
	}
}

// Run executes every prepared comparison concurrently, waits for all of
// them, then folds the tree bottom-up into the file verdict. The cache
// deduplicates data acquisition across comparisons sharing a source.
func (f *PreparedFile) Run(ctx context.Context) result.Result {
	var eg errgroup.Group
	for pc := range f.Comparisons() {
		eg.Go(func() error {
			pc.Compare(ctx)
			return nil
		})
	}
	_ = eg.Wait() // comparisons never return errors; faults become results

	return f.Root.fold()
}

// RunSequential executes the comparisons one at a time in tree order, then
// folds. Useful when the underlying transport cannot tolerate concurrency.
func (f *PreparedFile) RunSequential(ctx context.Context) result.Result {
	for pc := range f.Comparisons() {
		pc.Compare(ctx)
	}
	return f.Root.fold()
}
