package scene

import (
	"github.com/Carmen-Shannon/oxy-splat/engine/rasterizer"
	"github.com/Carmen-Shannon/oxy-splat/engine/sorter"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithWorkers sets the number of worker goroutines shared by depth-key
// computation and row-band compositing. One worker (the default) keeps the
// whole frame on the calling goroutine.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithBandRows sets the row-band height used when compositing in parallel.
//
// Parameters:
//   - rows: band height in pixels
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBandRows(rows int) SceneBuilderOption {
	return func(s *scene) {
		s.bandRows = rows
	}
}

// WithCamera sets the initial view and projection matrices.
//
// Parameters:
//   - worldToView: column-major view matrix
//   - viewToProjection: column-major projection matrix
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(worldToView, viewToProjection [16]float32) SceneBuilderOption {
	return func(s *scene) {
		s.worldToView = worldToView
		s.viewToProjection = viewToProjection
	}
}

// WithSorter replaces the default depth sorter.
func WithSorter(so sorter.Sorter) SceneBuilderOption {
	return func(s *scene) {
		s.sorter = so
	}
}

// WithRasterizer replaces the default rasterizer.
func WithRasterizer(r rasterizer.Rasterizer) SceneBuilderOption {
	return func(s *scene) {
		s.rasterizer = r
	}
}
