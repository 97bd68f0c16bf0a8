package camera

// Pose is the orbit state of a controller: the pivot and the spherical offset
// of the eye from it. Azimuth 0 looks down -Z from +Z; elevation 0 is level.
type Pose struct {
	Target    [3]float32
	Radius    float32
	Azimuth   float32
	Elevation float32
}

// CameraController owns the eye position and pivot of a Camera. The orbit
// and pan controls can be mixed freely: panning shifts eye and pivot
// together, so later orbit steps continue around the new pivot.
type CameraController interface {
	// Position returns the eye in world space.
	Position() [3]float32

	// Target returns the pivot the eye looks at.
	Target() [3]float32

	// Pose returns a snapshot of the orbit state.
	Pose() Pose

	// SetPose replaces the orbit state. Radius and elevation are clamped to
	// the controller's bounds.
	//
	// Parameters:
	//   - p: the new pose
	SetPose(p Pose)

	// LookFrom places the camera at eye looking at target, converting the
	// offset into orbit radius, azimuth and elevation so later orbit calls
	// continue from there.
	//
	// Parameters:
	//   - eye: world-space camera position
	//   - target: world-space look-at point
	LookFrom(eye, target [3]float32)

	// Frame aims at the center of a bounding box and backs off until a sphere
	// enclosing the box fits the vertical field of view. Zoom and pan steps
	// are rescaled to the size of the box.
	//
	// Parameters:
	//   - lo, hi: the box corners
	//   - fov: vertical field of view in radians
	Frame(lo, hi [3]float32, fov float32)

	// Zoom moves the eye toward the pivot by delta zoom steps. Negative
	// delta moves away.
	Zoom(delta float32)

	// OrbitLeft, OrbitRight, OrbitUp and OrbitDown step the eye around the
	// pivot by the orbit speed.
	OrbitLeft()
	OrbitRight()
	OrbitUp()
	OrbitDown()

	// Drag orbits by a mouse movement in pixels, scaled by the mouse
	// sensitivity. Moving right orbits right and moving down tilts up.
	Drag(dx, dy float32)

	Radius() float32
	Azimuth() float32
	Elevation() float32

	// SetAzimuth turns the eye to an absolute azimuth in radians.
	SetAzimuth(azimuth float32)

	// PanRight, PanUp and PanForward translate eye and pivot along the view
	// axes by delta pan steps.
	PanRight(delta float32)
	PanUp(delta float32)
	PanForward(delta float32)
}
