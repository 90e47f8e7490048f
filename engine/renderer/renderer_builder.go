package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine/camera"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithCamera sets the user camera drawn through when a batch does not select an embedded camera.
//
// Parameters:
//   - c: the user camera
//
// Returns:
//   - RendererBuilderOption: a function that applies the camera option to a renderer
func WithCamera(c camera.UserCamera) RendererBuilderOption {
	return func(r *renderer) {
		r.camera = c
	}
}

// WithParameters sets the shared viewer parameters the renderer reads its clear color from.
//
// Parameters:
//   - p: the shared parameters
//
// Returns:
//   - RendererBuilderOption: a function that applies the parameters option to a renderer
func WithParameters(p *config.Parameters) RendererBuilderOption {
	return func(r *renderer) {
		r.params = p
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the renderer.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x or MSAA8x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.msaa = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLogger sets the logger used for residency and fallback diagnostics.
func WithLogger(logger *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
