// Package target defines the pixel-buffer capability the rasterizer writes
// into, an in-memory implementation of it, and image export helpers.
package target

import "errors"

// Format identifies the channel layout of a Target.
type Format int

const (
	// FormatFloat32x4 holds RGBA floats, used for color.
	FormatFloat32x4 Format = iota
	// FormatFloat32 holds one float per pixel, used for depth.
	FormatFloat32
	// FormatInt32 holds one signed integer per pixel, used for primitive ids.
	FormatInt32
)

// Channels returns the number of values stored per pixel.
func (f Format) Channels() int {
	switch f {
	case FormatFloat32x4:
		return 4
	default:
		return 1
	}
}

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatFloat32x4:
		return "float32x4"
	case FormatFloat32:
		return "float32"
	case FormatInt32:
		return "int32"
	default:
		return "unknown"
	}
}

// ErrFormatMismatch is returned by exporters handed a target of the wrong format.
var ErrFormatMismatch = errors.New("target: format mismatch")

// Target is a 2D pixel buffer addressed bottom-up: row 0 is the bottom of the
// image. Writes outside [0, Width) x [0, Height) are ignored.
//
// Implementations used with a parallel rasterizer must tolerate concurrent
// writes to distinct pixels.
type Target interface {
	// Width returns the target width in pixels.
	Width() int

	// Height returns the target height in pixels.
	Height() int

	// Format returns the channel layout of the target.
	Format() Format

	// WriteFloats stores up to Channels() values at a pixel.
	WriteFloats(x, y int, values []float32)

	// WriteInts stores up to Channels() values at a pixel.
	WriteInts(x, y int, values []int32)

	// OverColor composites rgb with coverage alpha over the pixel:
	// dst = src*alpha + dst*(1-alpha), applied to the alpha channel as well.
	OverColor(x, y int, rgb [3]float32, alpha float32)

	// Clear fills every pixel with values, repeating the last value when
	// fewer than Channels() are given.
	Clear(values ...float32)
}
