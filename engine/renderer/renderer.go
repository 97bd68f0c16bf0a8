// Package renderer presents CPU-rasterized frames in a window. The color
// target is converted to RGBA8, uploaded to a GPU texture and drawn over the
// swapchain with a single fullscreen triangle.
package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-splat/engine/target"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	// staging is reused between frames while the target size is unchanged
	staging *image.NRGBA

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	filter               FilterMode
}

// Renderer shows the contents of a color target in a window.
//
// Present may be called from any goroutine, but calls are serialized.
type Renderer interface {
	// Present converts the color target to 8-bit, uploads it and draws it to the window surface.
	//
	// Parameters:
	//   - src: a FormatFloat32x4 target, bottom row first
	//
	// Returns:
	//   - error: target.ErrFormatMismatch for non-color targets, or a GPU error
	Present(src target.Source) error

	// Resize reconfigures the window surface. Non-positive sizes (a minimized window) are ignored.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	Resize(width, height int)

	// SetPresentMode changes vsync behaviour; it takes effect on the next Resize.
	SetPresentMode(mode PresentMode)

	// Release frees the GPU resources. The Renderer must not be used afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer for the given window. It panics when no
// GPU adapter or device can be acquired.
//
// Parameters:
//   - backendType: the type of presentation backend to use (e.g., WGPU)
//   - window: the window whose surface frames are drawn to
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := newRenderer(backendType, options...)

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter, r.filter)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.backend.ConfigureSurface(window.Width(), window.Height()); err != nil {
		panic(err)
	}
	return r
}

// newRenderer applies options to a renderer that has no backend yet.
func newRenderer(backendType RendererBackendType, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *renderer) Present(src target.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, err := r.stage(src)
	if err != nil {
		return err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	if err := r.backend.UploadFrame(img.Pix, uint32(w), uint32(h)); err != nil {
		return fmt.Errorf("upload frame: %w", err)
	}
	if err := r.backend.DrawFrame(); err != nil {
		return fmt.Errorf("draw frame: %w", err)
	}
	return nil
}

// stage converts src into the reusable staging image as tightly packed
// top-down RGBA8 rows.
func (r *renderer) stage(src target.Source) (*image.NRGBA, error) {
	img, err := target.ColorImageInto(r.staging, src)
	if err != nil {
		return nil, err
	}
	r.staging = img
	return img, nil
}

func (r *renderer) Resize(width, height int) {
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		panic(err)
	}
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Release()
	r.staging = nil
}
