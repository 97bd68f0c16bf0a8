package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
)

// loaderBackend defines the generic interface for decoding splat files.
// Concrete implementations (e.g., plyLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Extensions lists the lower-case file extensions the backend accepts, with the dot.
	Extensions() []string

	// Decode reads one splat batch from a stream.
	//
	// Parameters:
	//   - r: the reader providing file data
	//
	// Returns:
	//   - scene.RawAttributes: the decoded batch
	//   - error: error if decoding fails
	Decode(r io.Reader) (scene.RawAttributes, error)

	// Encode writes a batch in the backend's format.
	//
	// Parameters:
	//   - w: destination
	//   - a: the batch to write
	//
	// Returns:
	//   - error: error if writing fails
	Encode(w io.Writer, a scene.RawAttributes) error
}
