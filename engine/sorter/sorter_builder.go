package sorter

import "github.com/Carmen-Shannon/automation/tools/worker"

// SorterBuilderOption is a functional option for configuring a Sorter.
type SorterBuilderOption func(*sorter)

// WithPool computes depth keys on a shared worker pool.
//
// Parameters:
//   - pool: the worker pool, or nil for sequential key computation
//
// Returns:
//   - SorterBuilderOption: the option
func WithPool(pool worker.DynamicWorkerPool) SorterBuilderOption {
	return func(s *sorter) {
		s.pool = pool
	}
}

// WithChunkSize sets how many depth keys each worker task computes.
func WithChunkSize(n int) SorterBuilderOption {
	return func(s *sorter) {
		s.chunkSize = n
	}
}
