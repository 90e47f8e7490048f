package renderer

import "github.com/Carmen-Shannon/oxy-viewer/common"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8
)

// ParseMSAA maps a sample count from configuration to an MSAASampleCount. Unsupported counts turn MSAA off.
func ParseMSAA(samples int) MSAASampleCount {
	switch samples {
	case 4:
		return MSAA4x
	case 8:
		return MSAA8x
	default:
		return MSAAOff
	}
}

// handle identifies a GPU resource owned by a backend. Zero is never a valid handle.
type handle uint64

// drawCommand is one indexed draw of an uploaded mesh.
type drawCommand struct {
	Mesh    handle
	Texture handle
	Sampler handle
	Uniform GPUDrawUniform

	Blend       bool
	DoubleSided bool
}

// RendererBackend is the GPU side of the Renderer. It knows nothing about assets; the renderer turns
// asset content into handles and draw commands.
type RendererBackend interface {
	// ConfigureSurface (re)creates the swapchain and the MSAA and depth targets for a new size.
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// CreateMesh uploads interleaved position/texcoord vertices and 32-bit indices.
	//
	// Parameters:
	//   - label: debug label
	//   - vertices: packed vertex data, vertexStride bytes per vertex
	//   - indices: triangle list indices
	//
	// Returns:
	//   - handle: the mesh handle
	//   - error: an error if buffer creation fails
	CreateMesh(label string, vertices []byte, indices []uint32) (handle, error)

	// CreateTexture uploads an RGBA8 texture.
	CreateTexture(label string, data common.TextureStagingData) (handle, error)

	// CreateSampler creates a sampler.
	CreateSampler(label string, data common.SamplerStagingData) (handle, error)

	// BeginFrame acquires the next surface texture and begins the render pass, cleared to clearColor.
	BeginFrame(clearColor [4]float32) error

	// Draw encodes one draw into the current pass.
	Draw(cmd drawCommand) error

	// EndFrame ends the render pass, submits and presents.
	EndFrame()

	// Release frees the resources behind the given handles. Unknown handles are ignored.
	Release(handles ...handle)
}
