// Package camera provides a pinhole perspective camera driven by an orbit
// controller, and pushes its matrices into anything that accepts them.
package camera

import (
	"math"
	"sync"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// Lens holds the pinhole projection. Fov is the vertical field of view in
// radians and Aspect is width over height.
type Lens struct {
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultLens is a 45 degree lens for a square image.
var DefaultLens = Lens{Fov: math.Pi / 4, Aspect: 1, Near: 0.1, Far: 100}

// Projection returns the view-to-projection matrix with depth mapped to [0, 1].
func (l Lens) Projection() [16]float32 {
	var m [16]float32
	common.Perspective(m[:], l.Fov, l.Aspect, l.Near, l.Far)
	return m
}

// MatrixSink receives camera matrices. scene.Scene implements it.
type MatrixSink interface {
	SetWorldToView(m [16]float32)
	SetViewToProjection(m [16]float32)
}

type cameraImpl struct {
	mu *sync.Mutex

	lens Lens
	up   [3]float32

	view [16]float32
	proj [16]float32

	controller CameraController
}

// Camera combines a Lens with the eye and pivot of a CameraController.
// Matrices are recomputed by Update, once per frame, so controller input
// arriving mid-frame never tears a frame.
type Camera interface {
	// Lens returns the projection parameters.
	Lens() Lens

	// SetLens replaces the projection parameters and recomputes the projection.
	//
	// Parameters:
	//   - l: the new lens
	SetLens(l Lens)

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// SetAspect changes the width to height ratio, typically after a resize.
	//
	// Parameters:
	//   - aspect: width divided by height
	SetAspect(aspect float32)

	// Up returns the world up vector used to orient the view.
	Up() [3]float32

	// ViewMatrix returns the world-to-view matrix as of the last Update.
	//
	// Returns:
	//   - [16]float32: column-major view matrix; identity before a controller is attached
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the view-to-projection matrix.
	//
	// Returns:
	//   - [16]float32: column-major projection matrix
	ProjectionMatrix() [16]float32

	// Controller returns the attached controller, or nil.
	Controller() CameraController

	// SetController attaches a controller and recomputes the view from it.
	SetController(ctrl CameraController)

	// Update reads the controller and recomputes the view matrix. Does
	// nothing without a controller.
	Update()

	// Apply pushes the current view and projection matrices into sink.
	//
	// Parameters:
	//   - sink: the receiver, typically a scene
	Apply(sink MatrixSink)

	// FrameBounds points the controller at a world-space box so that all of
	// it is visible, and pushes the far plane back when the box would
	// otherwise be clipped. Does nothing without a controller.
	//
	// Parameters:
	//   - lo, hi: the box corners
	FrameBounds(lo, hi [3]float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera with DefaultLens and +Y up.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:   &sync.Mutex{},
		lens: DefaultLens,
		up:   [3]float32{0, 1, 0},
		view: common.Identity4(),
	}
	for _, option := range options {
		option(c)
	}
	c.refresh()
	return c
}

func (c *cameraImpl) Lens() Lens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lens
}

func (c *cameraImpl) SetLens(l Lens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lens = l
	c.proj = l.Projection()
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lens.Fov
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lens.Aspect = aspect
	c.proj = c.lens.Projection()
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proj
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.refresh()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller != nil {
		c.refresh()
	}
}

func (c *cameraImpl) Apply(sink MatrixSink) {
	c.mu.Lock()
	view, proj := c.view, c.proj
	c.mu.Unlock()

	sink.SetWorldToView(view)
	sink.SetViewToProjection(proj)
}

func (c *cameraImpl) FrameBounds(lo, hi [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.controller.Frame(lo, hi, c.lens.Fov)

	ext := common.Sub3(hi, lo)
	diag := math32.Sqrt(ext[0]*ext[0] + ext[1]*ext[1] + ext[2]*ext[2])
	if far := c.controller.Radius() + diag; far > c.lens.Far {
		c.lens.Far = far
	}
	c.refresh()
}

// refresh recomputes both matrices, taking the view from the controller when
// one is attached. Caller must hold the mutex.
func (c *cameraImpl) refresh() {
	if c.controller != nil {
		common.LookAt(c.view[:], c.controller.Position(), c.controller.Target(), c.up)
	}
	c.proj = c.lens.Projection()
}
