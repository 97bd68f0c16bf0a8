// Package config reads the YAML scene description used by the command line
// tools: output size and files, render settings, the camera and the splat
// groups to load.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// Defaults applied to fields left empty.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
	DefaultFovDeg = 50
	DefaultNear   = 0.01
	DefaultFar    = 1000
)

// CameraMode says how the camera pose is derived.
type CameraMode int

const (
	// CameraFrame fits an orbit camera around the bounds of all loaded splats.
	CameraFrame CameraMode = iota
	// CameraLookAt places the camera at Eye looking at Target.
	CameraLookAt
	// CameraOrbit places the camera on a sphere around Target.
	CameraOrbit
)

// Config is one scene file.
type Config struct {
	Output OutputConfig  `yaml:"output"`
	Render RenderConfig  `yaml:"render"`
	Camera CameraConfig  `yaml:"camera"`
	Groups []GroupConfig `yaml:"groups"`
}

// OutputConfig sets the frame size and where each target is written.
// Empty paths skip that output.
type OutputConfig struct {
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Color  string `yaml:"color,omitempty"`
	Depth  string `yaml:"depth,omitempty"`
	ID     string `yaml:"id,omitempty"`
}

type RenderConfig struct {
	// Workers is the number of rasterizer workers; 0 means one per CPU.
	Workers  int `yaml:"workers,omitempty"`
	BandRows int `yaml:"bandRows,omitempty"`

	// Background is RGB or RGBA in [0, 1]; alpha defaults to 1.
	Background []float32 `yaml:"background,omitempty"`

	// MaxSHDegree limits the SH bands kept while loading; nil keeps all.
	MaxSHDegree *int `yaml:"maxSHDegree,omitempty"`

	// Turntable renders this many frames orbiting the target instead of one.
	Turntable int `yaml:"turntable,omitempty"`
}

type CameraConfig struct {
	Eye    []float32    `yaml:"eye,omitempty"`
	Target []float32    `yaml:"target,omitempty"`
	Up     []float32    `yaml:"up,omitempty"`
	Orbit  *OrbitConfig `yaml:"orbit,omitempty"`

	FovDeg float32 `yaml:"fov,omitempty"`
	Near   float32 `yaml:"near,omitempty"`
	Far    float32 `yaml:"far,omitempty"`
}

// OrbitConfig positions the camera in spherical coordinates around the target.
type OrbitConfig struct {
	Radius       float32 `yaml:"radius"`
	AzimuthDeg   float32 `yaml:"azimuth,omitempty"`
	ElevationDeg float32 `yaml:"elevation,omitempty"`
}

// GroupConfig is one splat file added to the scene as a named group.
type GroupConfig struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	PrimID int    `yaml:"primId,omitempty"`

	Translate []float32 `yaml:"translate,omitempty"`
	// Rotate is Euler angles in degrees, applied yaw (Y), pitch (X), roll (Z).
	Rotate []float32 `yaml:"rotate,omitempty"`
	// Scale is one uniform factor or three per-axis factors.
	Scale []float32 `yaml:"scale,omitempty"`
	// Matrix is a column-major 4x4 transform that replaces Translate, Rotate and Scale.
	Matrix []float32 `yaml:"matrix,omitempty"`
}

// Load reads and validates a scene file. Relative group paths are resolved
// against the directory of the file.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - *Config: the normalized configuration
//   - error: read, parse or validation errors
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.ResolvePaths(filepath.Dir(path))
	return c, nil
}

// Parse decodes YAML, applies defaults and validates the result. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromFiles builds a configuration with one group per file and defaults
// everywhere else. Groups are named after the file and numbered from 0.
func FromFiles(paths ...string) (*Config, error) {
	var c Config
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		c.Groups = append(c.Groups, GroupConfig{Name: filepath.Base(p), Path: abs, PrimID: i})
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal encodes the configuration back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Config) normalize() {
	c.Output.Width = common.Coalesce(c.Output.Width, DefaultWidth)
	c.Output.Height = common.Coalesce(c.Output.Height, DefaultHeight)
	c.Render.Workers = common.Coalesce(c.Render.Workers, runtime.GOMAXPROCS(0))
	c.Camera.FovDeg = common.Coalesce(c.Camera.FovDeg, DefaultFovDeg)
	c.Camera.Near = common.Coalesce(c.Camera.Near, DefaultNear)
	c.Camera.Far = common.Coalesce(c.Camera.Far, DefaultFar)
	for i := range c.Groups {
		c.Groups[i].Name = common.Coalesce(c.Groups[i].Name, fmt.Sprintf("group%d", i))
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		add("output size %dx%d must be positive", c.Output.Width, c.Output.Height)
	}
	if c.Render.Workers < 0 {
		add("render.workers %d must not be negative", c.Render.Workers)
	}
	if c.Render.BandRows < 0 {
		add("render.bandRows %d must not be negative", c.Render.BandRows)
	}
	if n := len(c.Render.Background); n != 0 && n != 3 && n != 4 {
		add("render.background needs 3 or 4 values, got %d", n)
	}
	if d := c.Render.MaxSHDegree; d != nil && (*d < 0 || *d > splat.MaxDegree) {
		add("render.maxSHDegree %d outside 0-%d", *d, splat.MaxDegree)
	}
	if c.Render.Turntable < 0 {
		add("render.turntable %d must not be negative", c.Render.Turntable)
	}

	cam := c.Camera
	checkVec3(add, "camera.eye", cam.Eye)
	checkVec3(add, "camera.target", cam.Target)
	checkVec3(add, "camera.up", cam.Up)
	if len(cam.Eye) > 0 && cam.Orbit != nil {
		add("camera.eye and camera.orbit are mutually exclusive")
	}
	if len(cam.Eye) == 3 && cam.EyeVec() == cam.TargetVec() {
		add("camera.eye equals camera.target")
	}
	if cam.Orbit != nil && cam.Orbit.Radius <= 0 {
		add("camera.orbit.radius %g must be positive", cam.Orbit.Radius)
	}
	if cam.FovDeg <= 0 || cam.FovDeg >= 180 {
		add("camera.fov %g outside (0, 180)", cam.FovDeg)
	}
	if cam.Near <= 0 || cam.Far <= cam.Near {
		add("camera near %g / far %g must satisfy 0 < near < far", cam.Near, cam.Far)
	}

	if len(c.Groups) == 0 {
		add("no groups")
	}
	for i, g := range c.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		if g.Path == "" {
			add("%s (%s): path is required", field, g.Name)
		}
		checkVec3(add, field+".translate", g.Translate)
		checkVec3(add, field+".rotate", g.Rotate)
		if n := len(g.Scale); n != 0 && n != 1 && n != 3 {
			add("%s.scale needs 1 or 3 values, got %d", field, n)
		}
		if n := len(g.Matrix); n != 0 && n != 16 {
			add("%s.matrix needs 16 values, got %d", field, n)
		}
	}
	return errors.Join(errs...)
}

func checkVec3(add func(string, ...any), field string, v []float32) {
	if len(v) != 0 && len(v) != 3 {
		add("%s needs 3 values, got %d", field, len(v))
	}
}

// ResolvePaths makes relative group paths relative to dir.
func (c *Config) ResolvePaths(dir string) {
	for i := range c.Groups {
		if p := c.Groups[i].Path; p != "" && !filepath.IsAbs(p) {
			c.Groups[i].Path = filepath.Join(dir, p)
		}
	}
}

// Background returns the clear color as RGBA.
func (c *Config) Background() [4]float32 {
	bg := [4]float32{0, 0, 0, 1}
	copy(bg[:], c.Render.Background)
	return bg
}

// SHDegree returns the highest SH degree to load.
func (c *Config) SHDegree() int {
	if c.Render.MaxSHDegree == nil {
		return splat.MaxDegree
	}
	return *c.Render.MaxSHDegree
}

func vec3(v []float32, def [3]float32) [3]float32 {
	if len(v) != 3 {
		return def
	}
	return [3]float32{v[0], v[1], v[2]}
}

func radians(deg float32) float32 {
	return deg * math.Pi / 180
}

// Mode reports how the camera pose should be computed.
func (c CameraConfig) Mode() CameraMode {
	switch {
	case len(c.Eye) == 3:
		return CameraLookAt
	case c.Orbit != nil:
		return CameraOrbit
	default:
		return CameraFrame
	}
}

func (c CameraConfig) EyeVec() [3]float32 {
	return vec3(c.Eye, [3]float32{0, 0, 5})
}

func (c CameraConfig) TargetVec() [3]float32 {
	return vec3(c.Target, [3]float32{})
}

func (c CameraConfig) UpVec() [3]float32 {
	return vec3(c.Up, [3]float32{0, 1, 0})
}

// Fov returns the vertical field of view in radians.
func (c CameraConfig) Fov() float32 {
	return radians(c.FovDeg)
}

// Transform returns the group's column-major local-to-world matrix.
//
// Returns:
//   - [16]float32: Matrix when given, otherwise translate * rotate(Y*X*Z) * scale
func (g GroupConfig) Transform() [16]float32 {
	if len(g.Matrix) == 16 {
		var m [16]float32
		copy(m[:], g.Matrix)
		return m
	}
	rot := vec3(g.Rotate, [3]float32{})
	scale := [3]float32{1, 1, 1}
	switch len(g.Scale) {
	case 1:
		scale = [3]float32{g.Scale[0], g.Scale[0], g.Scale[0]}
	case 3:
		scale = [3]float32{g.Scale[0], g.Scale[1], g.Scale[2]}
	}
	m := common.Identity4()
	common.BuildModelMatrix(m[:],
		vec3(g.Translate, [3]float32{}),
		[3]float32{radians(rot[0]), radians(rot[1]), radians(rot[2])},
		scale,
	)
	return m
}
