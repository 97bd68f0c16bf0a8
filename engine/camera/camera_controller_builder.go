package camera

// CameraControllerOption configures an orbit controller before its first pose is placed.
type CameraControllerOption func(*orbitController)

// WithRadius sets the initial distance from the pivot.
func WithRadius(radius float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.pose.Radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle in radians; 0 places the eye on +Z.
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.pose.Azimuth = azimuth
	}
}

// WithElevation sets the initial angle above the horizontal plane in radians.
func WithElevation(elevation float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.pose.Elevation = elevation
	}
}

// WithTarget sets the pivot.
func WithTarget(target [3]float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.pose.Target = target
	}
}

// WithRadiusBounds limits how close to and far from the pivot zooming may go.
//
// Parameters:
//   - lo: minimum distance
//   - hi: maximum distance
//
// Returns:
//   - CameraControllerOption: functional option to set radius bounds
func WithRadiusBounds(lo, hi float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.minRadius = lo
		oc.maxRadius = hi
	}
}

// WithElevationBounds limits the tilt. Bounds inside (-pi/2, pi/2) keep the
// view from flipping over the poles.
//
// Parameters:
//   - lo: minimum elevation in radians
//   - hi: maximum elevation in radians
//
// Returns:
//   - CameraControllerOption: functional option to set elevation bounds
func WithElevationBounds(lo, hi float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.minElevation = lo
		oc.maxElevation = hi
	}
}

// WithOrbitSpeed sets the radians turned by one keyboard orbit step.
func WithOrbitSpeed(speed float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.orbitSpeed = speed
	}
}

// WithMouseSensitivity sets the radians turned per dragged pixel.
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the world distance of one zoom step. Frame overrides it.
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the world distance of one pan step. Frame overrides it.
func WithPanSpeed(speed float32) CameraControllerOption {
	return func(oc *orbitController) {
		oc.panSpeed = speed
	}
}
