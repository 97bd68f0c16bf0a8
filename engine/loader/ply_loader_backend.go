package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
)

// plyLoaderBackend is a loaderBackend implementation for 3D Gaussian Splatting PLY files.
type plyLoaderBackend struct {
	maxDegree int
}

var _ loaderBackend = &plyLoaderBackend{}

func newPLYLoaderBackend(maxDegree int) *plyLoaderBackend {
	return &plyLoaderBackend{maxDegree: maxDegree}
}

func (b *plyLoaderBackend) Extensions() []string {
	return []string{".ply"}
}

func (b *plyLoaderBackend) Decode(r io.Reader) (scene.RawAttributes, error) {
	a, h, err := decodePLY(r, b.maxDegree)
	if err != nil {
		return scene.RawAttributes{}, err
	}
	common.Logger().Debug("decoded ply",
		"format", h.format.String(),
		"elements", len(h.elements),
		"splats", a.Len(),
		"degree", a.Degree,
	)
	return a, nil
}

func (b *plyLoaderBackend) Encode(w io.Writer, a scene.RawAttributes) error {
	return WritePLY(w, a)
}
