// Package rasterizer projects depth-sorted Gaussian splats to screen space and
// composites them back to front into color, depth and id targets.
package rasterizer

import (
	"context"
	"errors"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/sorter"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
	"github.com/Carmen-Shannon/oxy-splat/engine/target"
)

const (
	// MaxAlpha caps per-pixel coverage so no single splat is fully opaque.
	MaxAlpha float32 = 0.99

	// IDDepthAlphaThreshold is the coverage a splat needs at a pixel before it
	// claims that pixel's id and depth. Weaker contributions only blend color.
	IDDepthAlphaThreshold float32 = 0.1

	// SigmaExtent is the footprint half-size in standard deviations.
	SigmaExtent float32 = 3

	// DefaultBandRows is the height of the row bands used in parallel mode.
	DefaultBandRows = 32

	cancelCheckInterval = 1024
)

// ErrNoColorTarget is returned when a frame is requested without a color target.
var ErrNoColorTarget = errors.New("rasterizer: color target is required")

// Targets are the outputs of one frame. Depth and ID may be nil.
type Targets struct {
	Color target.Target
	Depth target.Target
	ID    target.Target
}

// Frame is the borrowed scene state for one render: splat storage, the
// far-to-near draw order and the camera.
type Frame struct {
	Groups           [][]splat.Splat
	PrimIDs          []int
	Order            []sorter.Index
	WorldToView      [16]float32
	ViewToProjection [16]float32
}

// FrameStats summarizes one render.
type FrameStats struct {
	// Splats is the number of entries in the draw order.
	Splats int
	// Drawn is the number of splats whose footprint reached the image.
	Drawn int
	// Culled is the number of splats rejected before touching any pixel.
	Culled int
	// Fragments is the number of pixels composited.
	Fragments int
	// Duration is the wall time of the render.
	Duration time.Duration
}

// Rasterizer renders a Frame into Targets.
type Rasterizer interface {
	// Render composites every splat of f, in f.Order, into targets.
	// A cancelled context stops the frame early and returns ctx.Err();
	// pixels already written are left in place.
	//
	// Parameters:
	//   - ctx: cancellation for the frame
	//   - f: the scene state to draw
	//   - targets: output buffers; Color is required
	//
	// Returns:
	//   - FrameStats: counters for the frame
	//   - error: ErrNoColorTarget, or the context error if cancelled
	Render(ctx context.Context, f *Frame, targets Targets) (FrameStats, error)
}

type rasterizer struct {
	pool     worker.DynamicWorkerPool
	bandRows int

	// footprints is reused across frames. Render is never called
	// concurrently on one rasterizer.
	footprints []footprint
}

var _ Rasterizer = &rasterizer{}

// NewRasterizer creates a Rasterizer. By default compositing runs on the
// calling goroutine.
//
// Parameters:
//   - options: functional options to configure the rasterizer
//
// Returns:
//   - Rasterizer: the new rasterizer
func NewRasterizer(options ...RasterizerBuilderOption) Rasterizer {
	r := &rasterizer{bandRows: DefaultBandRows}
	for _, option := range options {
		option(r)
	}
	if r.bandRows < 1 {
		r.bandRows = DefaultBandRows
	}
	return r
}

// camera holds the per-frame values derived from the view and projection.
type camera struct {
	view     [16]float32
	proj     [16]float32
	w        [9]float32
	position [3]float32
	tanX     float32
	tanY     float32
	focalX   float32
	focalY   float32
	width    int
	height   int
}

func newCamera(f *Frame, width, height int) (camera, bool) {
	c := camera{
		view:   f.WorldToView,
		proj:   f.ViewToProjection,
		w:      common.Upper3x3(f.WorldToView),
		width:  width,
		height: height,
	}
	if c.proj[0] == 0 || c.proj[5] == 0 {
		return c, false
	}
	c.tanX = 1 / c.proj[0]
	c.tanY = 1 / c.proj[5]
	c.focalX = float32(width) / (2 * c.tanX)
	c.focalY = float32(height) / (2 * c.tanY)

	var inv [16]float32
	if !common.Invert4(inv[:], c.view[:]) {
		return c, false
	}
	c.position = [3]float32{inv[12], inv[13], inv[14]}
	return c, true
}

func (r *rasterizer) Render(ctx context.Context, f *Frame, targets Targets) (FrameStats, error) {
	start := time.Now()
	stats := FrameStats{Splats: len(f.Order)}
	if targets.Color == nil {
		return stats, ErrNoColorTarget
	}

	width, height := targets.Color.Width(), targets.Color.Height()
	cam, ok := newCamera(f, width, height)
	if !ok || width == 0 || height == 0 {
		stats.Culled = len(f.Order)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	r.footprints = r.footprints[:0]
	for i, e := range f.Order {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}
		fp, ok := project(&cam, &f.Groups[e.Group][e.Splat], primID(f.PrimIDs, e.Group))
		if !ok {
			stats.Culled++
			continue
		}
		r.footprints = append(r.footprints, fp)
	}
	stats.Drawn = len(r.footprints)

	var err error
	if r.pool == nil || height <= r.bandRows {
		stats.Fragments, err = compositeBand(ctx, r.footprints, targets, 0, height)
	} else {
		stats.Fragments, err = r.compositeParallel(ctx, targets, height)
	}
	stats.Duration = time.Since(start)
	return stats, err
}

func primID(ids []int, group int) int32 {
	if group < len(ids) {
		return int32(ids[group])
	}
	return -1
}

// footprint is a splat reduced to its screen-space ellipse.
type footprint struct {
	// Unclipped pixel bounds, [x0, x1) x [y0, y1).
	x0, x1, y0, y1 int
	// Footprint half-extent and per-pixel step in pixels.
	rx, ry       float32
	stepX, stepY float32
	// Inverse 2D covariance.
	conicA, conicB, conicC float32

	color   [3]float32
	opacity float32
	depth   []float32
	id      []int32
}

// project runs the per-splat geometry: view transform, behind-camera test,
// clamped EWA covariance projection, footprint bounds and color. It reports
// false for splats that cannot touch the image.
func project(cam *camera, s *splat.Splat, id int32) (footprint, bool) {
	var fp footprint
	if s.Opacity <= 0 {
		return fp, false
	}

	t := common.TransformPoint3(cam.view, s.Position)
	clip := common.TransformPoint4(cam.proj, t)
	// Points in front of the camera but nearer than the near plane are kept.
	if clip[3] <= 0 {
		return fp, false
	}
	ndc := [3]float32{clip[0] / clip[3], clip[1] / clip[3], clip[2] / clip[3]}

	cov := projectCovariance(cam, t, s.Covariance)
	a, b, c := cov[0], cov[1], cov[2]
	det := a*c - b*b
	if det == 0 || math32.IsNaN(det) {
		return fp, false
	}

	fp.rx = SigmaExtent * math32.Sqrt(a)
	fp.ry = SigmaExtent * math32.Sqrt(c)
	fw, fh := float32(cam.width), float32(cam.height)
	ndcRX := 2 * fp.rx / fw
	ndcRY := 2 * fp.ry / fh
	fp.x0 = toPixel(math32.Floor((ndc[0] - ndcRX + 1) * 0.5 * fw))
	fp.x1 = toPixel(math32.Ceil((ndc[0] + ndcRX + 1) * 0.5 * fw))
	fp.y0 = toPixel(math32.Floor((ndc[1] - ndcRY + 1) * 0.5 * fh))
	fp.y1 = toPixel(math32.Ceil((ndc[1] + ndcRY + 1) * 0.5 * fh))
	if fp.x1 <= 0 || fp.x0 >= cam.width || fp.y1 <= 0 || fp.y0 >= cam.height {
		return fp, false
	}
	if fp.x1 <= fp.x0 || fp.y1 <= fp.y0 {
		return fp, false
	}
	fp.stepX = 2 * fp.rx / float32(fp.x1-fp.x0)
	fp.stepY = 2 * fp.ry / float32(fp.y1-fp.y0)

	inv := 1 / det
	fp.conicA = c * inv
	fp.conicB = -b * inv
	fp.conicC = a * inv

	dir := common.Normalize3(common.Sub3(s.Position, cam.position))
	fp.color = s.Color(dir)
	fp.opacity = s.Opacity
	fp.depth = []float32{ndc[2]}
	fp.id = []int32{id}
	return fp, true
}

// projectCovariance returns the upper triangle (xx, xy, yy) of the 2D
// screen-space covariance in pixel units. The view-space point is clamped to
// the field of view before building the Jacobian so splats near the frustum
// edge do not blow up.
func projectCovariance(cam *camera, t [3]float32, cov3 [9]float32) [3]float32 {
	// The camera looks down -Z; d is the positive distance along the view axis.
	d := -t[2]
	tx := common.Clamp(t[0]/d, -cam.tanX, cam.tanX) * d
	ty := common.Clamp(t[1]/d, -cam.tanY, cam.tanY) * d
	d2 := d * d

	// Jacobian of (fx*x/d, fy*y/d) with respect to view-space (x, y, z).
	j00, j02 := cam.focalX/d, cam.focalX*tx/d2
	j11, j12 := cam.focalY/d, cam.focalY*ty/d2

	// T = J * W, rows 0 and 1. W is column-major.
	w := cam.w
	t0 := [3]float32{
		j00*w[0] + j02*w[2],
		j00*w[3] + j02*w[5],
		j00*w[6] + j02*w[8],
	}
	t1 := [3]float32{
		j11*w[1] + j12*w[2],
		j11*w[4] + j12*w[5],
		j11*w[7] + j12*w[8],
	}

	// T * Σ * Tᵀ, top-left 2x2.
	st0 := mulSym(cov3, t0)
	st1 := mulSym(cov3, t1)
	return [3]float32{
		dot3(t0, st0),
		dot3(t0, st1),
		dot3(t1, st1),
	}
}

// pixelLimit bounds footprint coordinates so huge near-camera splats convert
// to int safely.
const pixelLimit = 1 << 24

func toPixel(v float32) int {
	return int(common.Clamp(v, -pixelLimit, pixelLimit))
}

func mulSym(m [9]float32, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
