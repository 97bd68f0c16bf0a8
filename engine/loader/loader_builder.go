package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithProgress reports file loading progress as a byte progress bar on w.
//
// Parameters:
//   - w: where the bar is drawn, typically os.Stderr; nil disables it
//
// Returns:
//   - LoaderBuilderOption: a function that applies the progress option to a loader
func WithProgress(w io.Writer) LoaderBuilderOption {
	return func(l *loader) {
		l.progress = w
	}
}

// WithMaxSHDegree drops spherical-harmonic bands above degree while decoding.
// Values outside 0-3 are clamped.
func WithMaxSHDegree(degree int) LoaderBuilderOption {
	return func(l *loader) {
		l.maxDegree = degree
	}
}

// WithSplats is an option builder that pre-populates the cache with a batch.
//
// Parameters:
//   - key: the cache key for the batch
//   - a: the batch to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cache option to a loader
func WithSplats(key string, a scene.RawAttributes) LoaderBuilderOption {
	return func(l *loader) {
		l.cache[key] = a
	}
}
