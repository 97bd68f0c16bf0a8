package renderer

// RendererBuilderOption configures a presenter in NewRenderer, before the
// surface is first configured.
type RendererBuilderOption func(*renderer)

// WithPresentMode chooses between waiting for vertical blank and presenting
// every uploaded frame immediately. The surface default is PresentModeVSync.
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithFilter selects how the frame texture is sampled when the render
// targets and the window differ in size. The default is FilterLinear.
func WithFilter(mode FilterMode) RendererBuilderOption {
	return func(r *renderer) {
		r.filter = mode
	}
}

// WithForceSoftwareRenderer requests a CPU fallback adapter. This needs a
// software Vulkan ICD such as lavapipe or SwiftShader.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}
