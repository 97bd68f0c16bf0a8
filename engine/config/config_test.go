package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

const sceneYAML = `
output:
  width: 320
  height: 240
  color: out/color.png
  depth: out/depth.tif
render:
  workers: 4
  background: [0.1, 0.2, 0.3]
  maxSHDegree: 1
camera:
  eye: [0, 1, 5]
  target: [0, 0, 0]
  fov: 60
groups:
  - name: bust
    path: bust.ply
    primId: 3
    translate: [1, 2, 3]
    scale: [2]
  - path: /data/room.ply
    matrix: [1,0,0,0, 0,1,0,0, 0,0,1,0, 5,6,7,1]
`

func TestParseAppliesValuesAndDefaults(t *testing.T) {
	c, err := Parse([]byte(sceneYAML))
	require.NoError(t, err)

	assert.Equal(t, 320, c.Output.Width)
	assert.Equal(t, 4, c.Render.Workers)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, c.Background())
	assert.Equal(t, 1, c.SHDegree())

	assert.Equal(t, CameraLookAt, c.Camera.Mode())
	assert.Equal(t, [3]float32{0, 1, 5}, c.Camera.EyeVec())
	assert.Equal(t, [3]float32{0, 1, 0}, c.Camera.UpVec())
	assert.InDelta(t, 1.0471976, c.Camera.Fov(), 1e-6)
	assert.Equal(t, float32(DefaultNear), c.Camera.Near)
	assert.Equal(t, float32(DefaultFar), c.Camera.Far)

	require.Len(t, c.Groups, 2)
	assert.Equal(t, "bust", c.Groups[0].Name)
	assert.Equal(t, "group1", c.Groups[1].Name)
	assert.Equal(t, 3, c.Groups[0].PrimID)
}

func TestEmptyDocumentFailsValidationWithDefaults(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no groups")
}

func TestMinimalDocument(t *testing.T) {
	c, err := Parse([]byte("groups:\n  - path: a.ply\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, c.Output.Width)
	assert.Equal(t, DefaultHeight, c.Output.Height)
	assert.Equal(t, runtime.GOMAXPROCS(0), c.Render.Workers)
	assert.Equal(t, CameraFrame, c.Camera.Mode())
	assert.Equal(t, [4]float32{0, 0, 0, 1}, c.Background())
	assert.Equal(t, 3, c.SHDegree())
}

func TestUnknownKeysRejected(t *testing.T) {
	_, err := Parse([]byte("groups:\n  - path: a.ply\n    primID: 2\n"))
	require.Error(t, err)
}

func TestValidateJoinsAllProblems(t *testing.T) {
	doc := `
output: {width: -1}
render: {background: [1, 1], maxSHDegree: 5, turntable: -2}
camera:
  eye: [0, 0, 1]
  target: [0, 0]
  orbit: {radius: 0}
  fov: 190
  near: 5
  far: 1
groups:
  - name: bad
    translate: [1]
    scale: [1, 2]
    matrix: [1, 2, 3]
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"output size",
		"render.background",
		"render.maxSHDegree",
		"render.turntable",
		"camera.target needs 3 values",
		"mutually exclusive",
		"camera.orbit.radius",
		"camera.fov",
		"near",
		"groups[0] (bad): path is required",
		"groups[0].translate",
		"groups[0].scale",
		"groups[0].matrix",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestGroupTransform(t *testing.T) {
	c, err := Parse([]byte(sceneYAML))
	require.NoError(t, err)

	m := c.Groups[0].Transform()
	p := common.TransformPoint3(m, [3]float32{1, 1, 1})
	assert.InDeltaSlice(t, []float32{3, 4, 5}, p[:], 1e-6)

	m = c.Groups[1].Transform()
	assert.Equal(t, float32(5), m[12])
	assert.Equal(t, float32(7), m[14])

	// Yaw 90 degrees maps +X onto -Z.
	g := GroupConfig{Rotate: []float32{0, 90, 0}}
	p = common.TransformPoint3(g.Transform(), [3]float32{1, 0, 0})
	assert.InDeltaSlice(t, []float32{0, 0, -1}, p[:], 1e-6)

	assert.Equal(t, common.Identity4(), GroupConfig{}.Transform())
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sceneYAML), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bust.ply"), c.Groups[0].Path)
	assert.Equal(t, "/data/room.ply", c.Groups[1].Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	c, err := Parse([]byte(sceneYAML))
	require.NoError(t, err)
	data, err := c.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestFromFiles(t *testing.T) {
	c, err := FromFiles("scans/a.ply", "b.ply")
	require.NoError(t, err)
	require.Len(t, c.Groups, 2)
	assert.Equal(t, "a.ply", c.Groups[0].Name)
	assert.Equal(t, 1, c.Groups[1].PrimID)
	assert.True(t, filepath.IsAbs(c.Groups[0].Path))
	assert.Equal(t, DefaultWidth, c.Output.Width)

	_, err = FromFiles()
	assert.Error(t, err)
}

type fixedBounds struct {
	lo, hi [3]float32
	ok     bool
}

func (b fixedBounds) Bounds() (lo, hi [3]float32, ok bool) {
	return b.lo, b.hi, b.ok
}

func TestNewCameraModes(t *testing.T) {
	box := fixedBounds{lo: [3]float32{-1, -1, -1}, hi: [3]float32{3, 1, 1}, ok: true}

	c, err := Parse([]byte("groups:\n  - path: a.ply\n"))
	require.NoError(t, err)
	cam := c.NewCamera(2, box)
	assert.Equal(t, float32(2), cam.Lens().Aspect)
	assert.Equal(t, [3]float32{1, 0, 0}, cam.Controller().Target())
	// The view already looks at the framed box.
	center := common.TransformPoint3(cam.ViewMatrix(), [3]float32{1, 0, 0})
	assert.InDelta(t, 0, center[0], 1e-4)
	assert.InDelta(t, 0, center[1], 1e-4)
	assert.Less(t, center[2], float32(0))

	c, err = Parse([]byte("camera: {eye: [0, 0, 7], target: [0, 0, 1]}\ngroups:\n  - path: a.ply\n"))
	require.NoError(t, err)
	ctrl := c.NewCamera(1, box).Controller()
	assert.InDelta(t, 6, ctrl.Radius(), 1e-5)
	pos := ctrl.Position()
	assert.InDeltaSlice(t, []float32{0, 0, 7}, pos[:], 1e-5)

	c, err = Parse([]byte("camera: {orbit: {radius: 4, azimuth: 90}}\ngroups:\n  - path: a.ply\n"))
	require.NoError(t, err)
	ctrl = c.NewCamera(1, fixedBounds{}).Controller()
	assert.InDelta(t, 4, ctrl.Radius(), 1e-5)
	assert.InDelta(t, 1.5707964, ctrl.Azimuth(), 1e-6)
	assert.InDelta(t, 0, ctrl.Elevation(), 1e-6)
}
