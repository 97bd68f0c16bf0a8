package rasterizer

import "github.com/Carmen-Shannon/automation/tools/worker"

// RasterizerBuilderOption is a functional option for configuring a Rasterizer.
type RasterizerBuilderOption func(*rasterizer)

// WithPool composites row bands in parallel on a shared worker pool. Targets
// must then tolerate concurrent writes to distinct pixels.
//
// Parameters:
//   - pool: the worker pool, or nil for sequential compositing
//
// Returns:
//   - RasterizerBuilderOption: the option
func WithPool(pool worker.DynamicWorkerPool) RasterizerBuilderOption {
	return func(r *rasterizer) {
		r.pool = pool
	}
}

// WithBandRows sets the height in pixels of each parallel row band.
func WithBandRows(rows int) RasterizerBuilderOption {
	return func(r *rasterizer) {
		r.bandRows = rows
	}
}
