package splat

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
)

// Real spherical-harmonic basis normalization constants for degrees 0-3.
const (
	SHC0 = 0.28209479177387814
	SHC1 = 0.4886025119029199

	SHC2_0 = 1.0925484305920792
	SHC2_1 = -1.0925484305920792
	SHC2_2 = 0.31539156525252005
	SHC2_3 = -1.0925484305920792
	SHC2_4 = 0.5462742152960396

	SHC3_0 = -0.5900435899266435
	SHC3_1 = 2.890611442640554
	SHC3_2 = -0.4570457994644658
	SHC3_3 = 0.3731763325901154
	SHC3_4 = -0.4570457994644658
	SHC3_5 = 1.445305721320277
	SHC3_6 = -0.5900435899266435
)

// MaxDegree is the highest supported SH degree.
const MaxDegree = 3

// shWeights lists the per-coefficient constant in band order.
var shWeights = [16]float32{
	SHC0,
	SHC1, SHC1, SHC1,
	SHC2_0, SHC2_1, SHC2_2, SHC2_3, SHC2_4,
	SHC3_0, SHC3_1, SHC3_2, SHC3_3, SHC3_4, SHC3_5, SHC3_6,
}

// CoeffCount returns the number of SH coefficients per splat for a degree, or
// 0 if the degree is unsupported.
func CoeffCount(degree int) int {
	if degree < 0 || degree > MaxDegree {
		return 0
	}
	return (degree + 1) * (degree + 1)
}

// ValidCoeffCount reports whether n is 1, 4, 9 or 16.
func ValidCoeffCount(n int) bool {
	return n == 1 || n == 4 || n == 9 || n == 16
}

// PreWeight copies raw SH coefficients and multiplies each by its basis
// constant. Input whose length is not a valid coefficient count yields the
// single zero coefficient.
//
// Parameters:
//   - raw: the raw coefficients for one splat in band order
//
// Returns:
//   - [][3]float32: the pre-weighted coefficients (length 1, 4, 9 or 16)
func PreWeight(raw [][3]float32) [][3]float32 {
	if !ValidCoeffCount(len(raw)) {
		return [][3]float32{{0, 0, 0}}
	}
	out := make([][3]float32, len(raw))
	for i, c := range raw {
		w := shWeights[i]
		out[i] = [3]float32{c[0] * w, c[1] * w, c[2] * w}
	}
	return out
}

// Color evaluates the view-dependent color of the splat for a unit view
// direction (from the camera toward the splat). The result is biased by 0.5
// and clamped to [0, 1] per channel.
//
// Parameters:
//   - dir: normalized world-space view direction
//
// Returns:
//   - [3]float32: RGB color
func (s *Splat) Color(dir [3]float32) [3]float32 {
	return EvalSH(s.SH, dir)
}

// EvalSH evaluates pre-weighted SH coefficients along a direction. Each band
// is only added when enough coefficients are present.
//
// Parameters:
//   - sh: pre-weighted coefficients
//   - dir: normalized direction
//
// Returns:
//   - [3]float32: clamp01(sum + 0.5) per channel
func EvalSH(sh [][3]float32, dir [3]float32) [3]float32 {
	var acc [3]float32
	if len(sh) == 0 {
		return [3]float32{0.5, 0.5, 0.5}
	}
	acc = sh[0]

	if len(sh) >= 4 {
		x, y, z := dir[0], dir[1], dir[2]
		addScaled(&acc, sh[1], -y)
		addScaled(&acc, sh[2], z)
		addScaled(&acc, sh[3], -x)

		if len(sh) >= 9 {
			xx, yy, zz := x*x, y*y, z*z
			xy, yz, xz := x*y, y*z, x*z
			addScaled(&acc, sh[4], xy)
			addScaled(&acc, sh[5], yz)
			addScaled(&acc, sh[6], 2*zz-xx-yy)
			addScaled(&acc, sh[7], xz)
			addScaled(&acc, sh[8], xx-yy)

			if len(sh) >= 16 {
				addScaled(&acc, sh[9], y*(3*xx-yy))
				addScaled(&acc, sh[10], xy*z)
				addScaled(&acc, sh[11], y*(4*zz-xx-yy))
				addScaled(&acc, sh[12], z*(2*zz-3*xx-3*yy))
				addScaled(&acc, sh[13], x*(4*zz-xx-yy))
				addScaled(&acc, sh[14], z*(xx-yy))
				addScaled(&acc, sh[15], x*(xx-3*yy))
			}
		}
	}

	return [3]float32{
		common.Clamp01(acc[0] + 0.5),
		common.Clamp01(acc[1] + 0.5),
		common.Clamp01(acc[2] + 0.5),
	}
}

func addScaled(acc *[3]float32, c [3]float32, k float32) {
	acc[0] += c[0] * k
	acc[1] += c[1] * k
	acc[2] += c[2] * k
}

// RawDCForColor returns the raw degree-0 coefficient that evaluates to the
// given flat color, inverting the C0 weight and the 0.5 bias. Handy for
// authoring solid-colored splats.
//
// Parameters:
//   - rgb: desired color in [0, 1]
//
// Returns:
//   - [3]float32: the raw DC coefficient
func RawDCForColor(rgb [3]float32) [3]float32 {
	return [3]float32{
		(rgb[0] - 0.5) / SHC0,
		(rgb[1] - 0.5) / SHC0,
		(rgb[2] - 0.5) / SHC0,
	}
}
