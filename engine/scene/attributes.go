package scene

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// RawAttributes is one ingestion batch in struct-of-arrays form. Positions
// defines the splat count N. Every other per-splat array is used only when
// its length is exactly N and otherwise replaced by defaults: identity
// orientation, unit scale, opacity 1 and flat gray color.
type RawAttributes struct {
	Positions    [][3]float32
	Orientations []common.Quat
	Scales       [][3]float32
	Opacities    []float32

	// SH holds (Degree+1)² raw coefficients per splat, splat-major. It is
	// used only when Degree is 0-3 and the length is N*(Degree+1)².
	SH     [][3]float32
	Degree int

	// Transform is the column-major local-to-world matrix of the batch.
	// The all-zero matrix means "no transform" and is replaced by the
	// identity, so a zero-valued RawAttributes places splats as given.
	// Any other singular matrix, such as a zero scale with a nonzero w
	// row, is applied as is and yields degenerate splats.
	Transform [16]float32

	// PrimID is written to the id target wherever a splat of this batch
	// dominates a pixel.
	PrimID int
}

// Len returns the number of splats the batch describes.
func (a *RawAttributes) Len() int {
	return len(a.Positions)
}

// HasSH reports whether the SH array will be used.
func (a *RawAttributes) HasSH() bool {
	k := splat.CoeffCount(a.Degree)
	return k > 0 && len(a.SH) == len(a.Positions)*k
}

func (a *RawAttributes) transform() [16]float32 {
	if a.Transform == ([16]float32{}) {
		return common.Identity4()
	}
	return a.Transform
}

// build converts the batch into world-space splats.
func (a *RawAttributes) build() []splat.Splat {
	n := a.Len()
	xf := a.transform()
	useRot := len(a.Orientations) == n
	useScale := len(a.Scales) == n
	useOpacity := len(a.Opacities) == n
	k := 0
	if a.HasSH() {
		k = splat.CoeffCount(a.Degree)
	}

	out := make([]splat.Splat, n)
	for i, p := range a.Positions {
		rot := common.IdentityQuat
		if useRot {
			rot = a.Orientations[i]
		}
		scale := [3]float32{1, 1, 1}
		if useScale {
			scale = a.Scales[i]
		}
		opacity := float32(1)
		if useOpacity {
			opacity = a.Opacities[i]
		}
		var sh [][3]float32
		if k > 0 {
			sh = a.SH[i*k : (i+1)*k]
		}
		out[i] = splat.New(p, rot, scale, opacity, sh, xf)
	}
	return out
}
