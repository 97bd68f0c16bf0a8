// Package splat defines the Gaussian splat value type: a world-space center,
// a 3x3 covariance, an opacity and pre-weighted spherical-harmonic color
// coefficients, plus the helpers that build them from raw attributes.
package splat

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
)

// Splat is one anisotropic 3D Gaussian. It is immutable after construction.
type Splat struct {
	// Position is the world-space center (group transform already applied).
	Position [3]float32

	// Covariance is the symmetric positive-semidefinite world-space covariance,
	// stored column-major.
	Covariance [9]float32

	// Opacity is the peak alpha of the Gaussian in [0, 1].
	Opacity float32

	// SH holds the spherical-harmonic coefficients, each already multiplied by
	// its basis normalization constant. Length is always 1, 4, 9 or 16.
	SH [][3]float32
}

// New builds a Splat from local attributes and the owning group's transform.
// Invalid SH input (wrong length for any degree) collapses to a single zero
// coefficient, which renders as flat 0.5 gray.
//
// Parameters:
//   - position: local-space center
//   - orientation: local orientation quaternion
//   - scale: per-axis standard deviation in local space
//   - opacity: peak alpha
//   - sh: raw (un-weighted) SH coefficients for this splat, or nil
//   - transform: the group's column-major local-to-world transform
//
// Returns:
//   - Splat: the world-space splat
func New(position [3]float32, orientation common.Quat, scale [3]float32, opacity float32, sh [][3]float32, transform [16]float32) Splat {
	return Splat{
		Position:   common.TransformPoint3(transform, position),
		Covariance: WorldCovariance(LocalCovariance(orientation, scale), common.Upper3x3(transform)),
		Opacity:    opacity,
		SH:         PreWeight(sh),
	}
}

// Depth returns the view depth of the splat center: its distance in front of
// the camera along the viewing axis. The camera looks down -Z in view space,
// so larger values are farther away.
//
// Parameters:
//   - worldToView: column-major view matrix
//
// Returns:
//   - float32: the view depth (negative for points behind the camera)
func (s *Splat) Depth(worldToView [16]float32) float32 {
	return -common.TransformPoint3(worldToView, s.Position)[2]
}

// Degree returns the SH degree (0-3) implied by the coefficient count.
func (s *Splat) Degree() int {
	switch len(s.SH) {
	case 16:
		return 3
	case 9:
		return 2
	case 4:
		return 1
	default:
		return 0
	}
}
