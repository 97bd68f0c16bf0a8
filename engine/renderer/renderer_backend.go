package renderer

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based presentation backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how presented frames reach the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping the
	// present rate to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// FilterMode selects how the frame texture is sampled when the window and the
// color target differ in size.
type FilterMode int

const (
	// FilterLinear blends neighbouring texels.
	FilterLinear FilterMode = iota
	// FilterNearest keeps hard texel edges, useful when inspecting individual splats.
	FilterNearest
)

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
