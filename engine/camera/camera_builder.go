package camera

// CameraBuilderOption configures a camera in NewCamera.
type CameraBuilderOption func(*cameraImpl)

// WithLens replaces the whole lens. Later WithFov, WithAspect, WithNear and
// WithFar options adjust single fields of it.
func WithLens(l Lens) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens = l
	}
}

// WithFov sets the vertical field of view in radians.
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens.Fov = fov
	}
}

// WithAspect sets the width to height ratio.
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens.Aspect = aspect
	}
}

// WithNear sets the near plane distance. Splats closer than it still render;
// it only bounds the depth range written to the depth target.
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens.Near = near
	}
}

// WithFar sets the far plane distance.
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens.Far = far
	}
}

// WithUp sets the world up vector used to orient the view.
func WithUp(up [3]float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = up
	}
}

// WithController attaches a controller; the view matrix is computed from it
// once all options are applied.
//
// Parameters:
//   - ctrl: the controller to attach
//
// Returns:
//   - CameraBuilderOption: functional option to set the controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
