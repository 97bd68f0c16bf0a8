package splat

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
)

// LocalCovariance builds the covariance of a Gaussian with the given per-axis
// scale, rotated by orientation: R · diag(scale²) · Rᵀ with R the column-vector
// rotation matrix. Written with row vectors this is the familiar Rᵀ·S·R.
//
// Parameters:
//   - orientation: rotation of the Gaussian's principal axes
//   - scale: standard deviation along each principal axis
//
// Returns:
//   - [9]float32: the local covariance (column-major, symmetric)
func LocalCovariance(orientation common.Quat, scale [3]float32) [9]float32 {
	r := common.QuatToMat3(orientation)
	s := [3]float32{scale[0] * scale[0], scale[1] * scale[1], scale[2] * scale[2]}

	// (R·S)ᵢⱼ = Rᵢⱼ·sⱼ, then (R·S)·Rᵀ.
	var out [9]float32
	for c := 0; c < 3; c++ {
		for row := 0; row < 3; row++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += r[k*3+row] * s[k] * r[k*3+c]
			}
			out[c*3+row] = sum
		}
	}
	return out
}

// WorldCovariance conjugates a local covariance by the rotation+scale block of
// a transform: M · C · Mᵀ.
//
// Parameters:
//   - local: covariance in the group's local frame
//   - m: upper-left 3x3 of the group transform
//
// Returns:
//   - [9]float32: the world-space covariance
func WorldCovariance(local, m [9]float32) [9]float32 {
	out := common.Mul3(common.Mul3(m, local), common.Transpose3(m))
	// Re-symmetrize to remove float drift from the two products.
	for c := 0; c < 3; c++ {
		for row := c + 1; row < 3; row++ {
			avg := 0.5 * (out[c*3+row] + out[row*3+c])
			out[c*3+row] = avg
			out[row*3+c] = avg
		}
	}
	return out
}
