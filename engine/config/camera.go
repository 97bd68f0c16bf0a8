package config

import (
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
)

// Bounded reports the world-space extent of its content. scene.Scene implements it.
type Bounded interface {
	Bounds() (lo, hi [3]float32, ok bool)
}

// NewCamera builds an orbit camera for the configured mode. In frame mode
// the controller is fitted to b's bounds; an empty b leaves the default pose.
//
// Parameters:
//   - aspect: viewport width divided by height
//   - b: the content to frame, consulted only in frame mode
//   - options: extra controller options applied before the pose is set
//
// Returns:
//   - camera.Camera: the camera with its controller attached
func (c *Config) NewCamera(aspect float32, b Bounded, options ...camera.CameraControllerOption) camera.Camera {
	cc := c.Camera
	opts := append([]camera.CameraControllerOption{
		camera.WithTarget(cc.TargetVec()),
		camera.WithRadiusBounds(cc.Near, cc.Far),
	}, options...)
	ctrl := camera.NewOrbitController(opts...)
	cam := camera.NewCamera(
		camera.WithLens(camera.Lens{Fov: cc.Fov(), Aspect: aspect, Near: cc.Near, Far: cc.Far}),
		camera.WithUp(cc.UpVec()),
		camera.WithController(ctrl),
	)

	switch cc.Mode() {
	case CameraLookAt:
		ctrl.LookFrom(cc.EyeVec(), cc.TargetVec())
	case CameraOrbit:
		ctrl.SetPose(camera.Pose{
			Target:    cc.TargetVec(),
			Radius:    cc.Orbit.Radius,
			Azimuth:   radians(cc.Orbit.AzimuthDeg),
			Elevation: radians(cc.Orbit.ElevationDeg),
		})
	default:
		if lo, hi, ok := b.Bounds(); ok {
			cam.FrameBounds(lo, hi)
		}
	}
	cam.Update()
	return cam
}
