package camera

import (
	"math"
	"sync"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// orbitController keeps the eye on a sphere around the pivot. The eye
// position is derived from the pose after every change.
type orbitController struct {
	mu *sync.Mutex

	pose Pose
	eye  [3]float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

var _ CameraController = &orbitController{}

// NewOrbitController creates a controller with defaults sized for splat
// captures a few units across: radius 5 around the origin, tilted 15 degrees
// above the horizon.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewOrbitController(options ...CameraControllerOption) CameraController {
	oc := &orbitController{
		mu: &sync.Mutex{},
		pose: Pose{
			Radius:    5,
			Elevation: float32(math.Pi / 12),
		},

		minRadius:    0.05,
		maxRadius:    1000,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.1,
		panSpeed:         0.05,
	}
	for _, option := range options {
		option(oc)
	}
	oc.place()
	return oc
}

// place clamps the pose and recomputes the eye. Caller must hold the mutex.
func (oc *orbitController) place() {
	p := &oc.pose
	p.Radius = common.Clamp(p.Radius, oc.minRadius, oc.maxRadius)
	p.Elevation = common.Clamp(p.Elevation, oc.minElevation, oc.maxElevation)

	sinE, cosE := math32.Sincos(p.Elevation)
	sinA, cosA := math32.Sincos(p.Azimuth)
	oc.eye = [3]float32{
		p.Target[0] + p.Radius*cosE*sinA,
		p.Target[1] + p.Radius*sinE,
		p.Target[2] + p.Radius*cosE*cosA,
	}
}

// viewAxes returns the right, up and forward axes of the LookAt basis with a
// +Y world up. All three are zero when the eye sits on the pivot.
// Caller must hold the mutex.
func (oc *orbitController) viewAxes() (right, up, forward [3]float32) {
	back := common.Sub3(oc.eye, oc.pose.Target)
	n := math32.Sqrt(back[0]*back[0] + back[1]*back[1] + back[2]*back[2])
	if n < 1e-8 {
		return
	}
	back = [3]float32{back[0] / n, back[1] / n, back[2] / n}

	// (0,1,0) x back
	h := math32.Hypot(back[0], back[2])
	if h < 1e-8 {
		return
	}
	right = [3]float32{back[2] / h, 0, -back[0] / h}
	up = [3]float32{
		back[1]*right[2] - back[2]*right[1],
		back[2]*right[0] - back[0]*right[2],
		back[0]*right[1] - back[1]*right[0],
	}
	forward = [3]float32{-back[0], -back[1], -back[2]}
	return
}

// shift moves eye and pivot together. Caller must hold the mutex.
func (oc *orbitController) shift(axis [3]float32, d float32) {
	for i := range 3 {
		oc.pose.Target[i] += axis[i] * d
		oc.eye[i] += axis[i] * d
	}
}

func (oc *orbitController) Position() [3]float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.eye
}

func (oc *orbitController) Target() [3]float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.pose.Target
}

func (oc *orbitController) Pose() Pose {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.pose
}

func (oc *orbitController) SetPose(p Pose) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.pose = p
	oc.place()
}

func (oc *orbitController) LookFrom(eye, target [3]float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	oc.pose.Target = target
	d := common.Sub3(eye, target)
	r := math32.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	if r >= 1e-8 {
		// An explicit eye outside the radius bounds widens them.
		oc.minRadius = min(oc.minRadius, r)
		oc.maxRadius = max(oc.maxRadius, r)
		oc.pose.Radius = r
		oc.pose.Elevation = math32.Asin(common.Clamp(d[1]/r, -1, 1))
		oc.pose.Azimuth = math32.Atan2(d[0], d[2])
	}
	oc.place()
}

func (oc *orbitController) Frame(lo, hi [3]float32, fov float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	for i := range 3 {
		oc.pose.Target[i] = 0.5 * (lo[i] + hi[i])
	}
	ext := common.Sub3(hi, lo)
	r := 0.5 * math32.Sqrt(ext[0]*ext[0]+ext[1]*ext[1]+ext[2]*ext[2])
	if r < 1e-6 {
		r = 1
	}
	dist := r / math32.Sin(0.5*fov)

	oc.pose.Radius = dist
	oc.minRadius = min(oc.minRadius, 0.01*dist)
	oc.maxRadius = max(oc.maxRadius, 4*dist)
	oc.zoomSpeed = 0.1 * dist
	oc.panSpeed = 0.01 * dist
	oc.place()
}

func (oc *orbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.pose.Radius -= delta * oc.zoomSpeed
	oc.place()
}

// orbit turns the pose by whole orbit steps.
func (oc *orbitController) orbit(dAzimuth, dElevation float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.pose.Azimuth += dAzimuth * oc.orbitSpeed
	oc.pose.Elevation += dElevation * oc.orbitSpeed
	oc.place()
}

func (oc *orbitController) OrbitLeft()  { oc.orbit(-1, 0) }
func (oc *orbitController) OrbitRight() { oc.orbit(1, 0) }
func (oc *orbitController) OrbitUp()    { oc.orbit(0, 1) }
func (oc *orbitController) OrbitDown()  { oc.orbit(0, -1) }

func (oc *orbitController) Drag(dx, dy float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.pose.Azimuth -= dx * oc.mouseSensitivity
	oc.pose.Elevation += dy * oc.mouseSensitivity
	oc.place()
}

func (oc *orbitController) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.pose.Radius
}

func (oc *orbitController) Azimuth() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.pose.Azimuth
}

func (oc *orbitController) Elevation() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.pose.Elevation
}

func (oc *orbitController) SetAzimuth(azimuth float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.pose.Azimuth = azimuth
	oc.place()
}

func (oc *orbitController) PanRight(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	right, _, _ := oc.viewAxes()
	oc.shift(right, delta*oc.panSpeed)
}

func (oc *orbitController) PanUp(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	_, up, _ := oc.viewAxes()
	oc.shift(up, delta*oc.panSpeed)
}

func (oc *orbitController) PanForward(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	_, _, forward := oc.viewAxes()
	oc.shift(forward, delta*oc.panSpeed)
}
