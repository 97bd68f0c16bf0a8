package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

type sink struct {
	view, proj [16]float32
	calls      int
}

func (s *sink) SetWorldToView(m [16]float32)      { s.view = m; s.calls++ }
func (s *sink) SetViewToProjection(m [16]float32) { s.proj = m; s.calls++ }

func TestControllerOrbitPosition(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithAzimuth(0), WithElevation(0))
	p := cc.Position()
	assert.InDelta(t, 0, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, 10, p[2], 1e-5)

	cc.SetAzimuth(math.Pi / 2)
	p = cc.Position()
	assert.InDelta(t, 10, p[0], 1e-4)
	assert.InDelta(t, 0, p[2], 1e-4)
}

func TestControllerClamps(t *testing.T) {
	cc := NewOrbitController(WithRadiusBounds(1, 5), WithElevationBounds(-0.5, 0.5))
	cc.SetPose(Pose{Radius: 100, Elevation: 2})
	assert.Equal(t, float32(5), cc.Radius())
	assert.Equal(t, float32(0.5), cc.Elevation())

	cc.Zoom(1000)
	assert.Equal(t, float32(1), cc.Radius())
	cc.Drag(0, -1e6)
	assert.Equal(t, float32(-0.5), cc.Elevation())
}

func TestControllerOrbitSteps(t *testing.T) {
	cc := NewOrbitController(WithOrbitSpeed(0.1), WithElevation(0))
	cc.OrbitRight()
	cc.OrbitRight()
	cc.OrbitLeft()
	cc.OrbitUp()
	assert.InDelta(t, 0.1, cc.Azimuth(), 1e-6)
	assert.InDelta(t, 0.1, cc.Elevation(), 1e-6)
	cc.OrbitDown()
	cc.OrbitDown()
	assert.InDelta(t, -0.1, cc.Elevation(), 1e-6)
}

func TestControllerDragOrbits(t *testing.T) {
	cc := NewOrbitController(WithMouseSensitivity(0.01), WithElevation(0))
	cc.Drag(10, 5)
	assert.InDelta(t, -0.1, cc.Azimuth(), 1e-6)
	assert.InDelta(t, 0.05, cc.Elevation(), 1e-6)
}

func TestControllerPoseRoundTrip(t *testing.T) {
	cc := NewOrbitController()
	want := Pose{Target: [3]float32{1, 2, 3}, Radius: 3, Azimuth: 0.7, Elevation: -0.2}
	cc.SetPose(want)
	assert.Equal(t, want, cc.Pose())
	assert.Equal(t, want.Target, cc.Target())

	p := cc.Position()
	d := common.Sub3(p, want.Target)
	assert.InDelta(t, 3, math.Sqrt(float64(d[0]*d[0]+d[1]*d[1]+d[2]*d[2])), 1e-5)
}

func TestControllerLookFrom(t *testing.T) {
	cc := NewOrbitController()
	cc.LookFrom([3]float32{3, 4, 0}, [3]float32{0, 0, 0})

	assert.InDelta(t, 5, cc.Radius(), 1e-5)
	p := cc.Position()
	assert.InDelta(t, 3, p[0], 1e-4)
	assert.InDelta(t, 4, p[1], 1e-4)
	assert.InDelta(t, 0, p[2], 1e-4)

	// An eye beyond the radius bounds widens them instead of being pulled in.
	bounded := NewOrbitController(WithRadiusBounds(1, 2))
	bounded.LookFrom([3]float32{0, 0, 10}, [3]float32{})
	assert.InDelta(t, 10, bounded.Radius(), 1e-5)
}

func TestControllerFrame(t *testing.T) {
	cc := NewOrbitController()
	fov := float32(math.Pi / 3)
	cc.Frame([3]float32{-1, -1, -1}, [3]float32{3, 1, 1}, fov)

	assert.Equal(t, [3]float32{1, 0, 0}, cc.Target())
	r := float32(math.Sqrt(16+4+4)) / 2
	assert.InDelta(t, r/float32(math.Sin(float64(fov)/2)), cc.Radius(), 1e-4)

	// A degenerate box still produces a usable distance.
	cc.Frame([3]float32{2, 2, 2}, [3]float32{2, 2, 2}, fov)
	assert.Equal(t, [3]float32{2, 2, 2}, cc.Target())
	assert.Greater(t, cc.Radius(), float32(0))
}

func TestControllerPanMovesTargetAndPosition(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithElevation(0), WithPanSpeed(1))
	before := cc.Position()
	cc.PanRight(2)
	after := cc.Position()
	assert.InDelta(t, before[0]+2, after[0], 1e-5)
	assert.InDelta(t, 2, cc.Target()[0], 1e-5)

	cc.PanUp(1)
	assert.InDelta(t, 1, cc.Target()[1], 1e-5)

	cc.PanForward(1)
	assert.InDelta(t, -1, cc.Target()[2], 1e-5)
	assert.InDelta(t, 10, cc.Radius(), 1e-5)
}

func TestCameraMatricesFollowController(t *testing.T) {
	cc := NewOrbitController(WithRadius(4), WithElevation(0))
	cam := NewCamera(WithController(cc), WithFov(math.Pi/2), WithAspect(2), WithNear(0.5), WithFar(50))

	view := cam.ViewMatrix()
	// The origin sits 4 units in front of the camera.
	o := common.TransformPoint3(view, [3]float32{})
	assert.InDelta(t, -4, o[2], 1e-5)

	proj := cam.ProjectionMatrix()
	assert.InDelta(t, 0.5, proj[0], 1e-5)
	assert.InDelta(t, 1, proj[5], 1e-5)

	cc.SetPose(Pose{Radius: 8})
	assert.Equal(t, view, cam.ViewMatrix(), "matrices only change on Update")
	cam.Update()
	o = common.TransformPoint3(cam.ViewMatrix(), [3]float32{})
	assert.InDelta(t, -8, o[2], 1e-5)
}

func TestCameraApply(t *testing.T) {
	cam := NewCamera(WithController(NewOrbitController()))
	var s sink
	cam.Apply(&s)
	assert.Equal(t, 2, s.calls)
	assert.Equal(t, cam.ViewMatrix(), s.view)
	assert.Equal(t, cam.ProjectionMatrix(), s.proj)
}

func TestCameraLens(t *testing.T) {
	cam := NewCamera()
	require.Nil(t, cam.Controller())
	assert.Equal(t, common.Identity4(), cam.ViewMatrix())
	assert.Equal(t, DefaultLens, cam.Lens())
	assert.Equal(t, DefaultLens.Projection(), cam.ProjectionMatrix())

	lens := Lens{Fov: 1, Aspect: 1.5, Near: 0.2, Far: 20}
	cam.SetLens(lens)
	assert.Equal(t, lens, cam.Lens())
	assert.Equal(t, float32(1), cam.Fov())
	assert.Equal(t, lens.Projection(), cam.ProjectionMatrix())

	cam.SetAspect(3)
	assert.Equal(t, float32(3), cam.Lens().Aspect)
	assert.InDelta(t, cam.ProjectionMatrix()[5]/3, cam.ProjectionMatrix()[0], 1e-6)

	up := NewCamera(WithLens(lens), WithUp([3]float32{0, 0, 1}), WithFar(40))
	assert.Equal(t, [3]float32{0, 0, 1}, up.Up())
	assert.Equal(t, float32(40), up.Lens().Far)
	assert.Equal(t, float32(0.2), up.Lens().Near)

	cam.SetController(NewOrbitController())
	assert.NotNil(t, cam.Controller())
	assert.NotEqual(t, common.Identity4(), cam.ViewMatrix())
}

func TestCameraFrameBounds(t *testing.T) {
	// Without a controller there is nothing to move.
	bare := NewCamera()
	bare.FrameBounds([3]float32{-1, -1, -1}, [3]float32{1, 1, 1})
	assert.Equal(t, common.Identity4(), bare.ViewMatrix())

	cam := NewCamera(WithController(NewOrbitController()), WithFar(10))
	lo, hi := [3]float32{-50, -50, -50}, [3]float32{50, 50, 50}
	cam.FrameBounds(lo, hi)

	assert.Equal(t, [3]float32{}, cam.Controller().Target())
	assert.Greater(t, cam.Lens().Far, cam.Controller().Radius())

	// The far corner of the box lands inside the depth range.
	view, proj := cam.ViewMatrix(), cam.ProjectionMatrix()
	var vp [16]float32
	common.Mul4(vp[:], proj[:], view[:])
	for _, c := range [][3]float32{lo, hi, {-50, 50, -50}, {50, -50, 50}} {
		clip := common.TransformPoint4(vp, c)
		z := clip[2] / clip[3]
		assert.GreaterOrEqual(t, z, float32(0))
		assert.LessOrEqual(t, z, float32(1))
	}

	// A small box never pulls the far plane in.
	cam.FrameBounds([3]float32{0, 0, 0}, [3]float32{0.1, 0.1, 0.1})
	assert.GreaterOrEqual(t, cam.Lens().Far, float32(100))
}
