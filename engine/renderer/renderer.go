package renderer

import (
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/Carmen-Shannon/oxy-viewer/engine/asset"
	"github.com/Carmen-Shannon/oxy-viewer/engine/camera"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

var (
	errNoFrame      = errors.New("draw outside of BeginFrame/EndFrame")
	errFrameStarted = errors.New("previous frame not ended")
)

// Renderer is the draw contract the frame loop dispatches to.
//
// A frame is BeginFrame, Resize, any number of DrawBatch calls, then EndFrame.
// GPU resources for an asset are created on its first DrawBatch and kept until ReleaseAsset.
type Renderer interface {
	// BeginFrame acquires the next frame and clears it to the configured clear color.
	//
	// Returns:
	//   - error: an error if the frame could not be started
	BeginFrame() error

	// Resize adapts the surface and the camera aspect ratio to a new size. Unchanged sizes are a no-op.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// DrawBatch draws every primitive of the given nodes.
	//
	// Parameters:
	//   - a: the asset the nodes belong to
	//   - nodes: node indices into a.Nodes, drawn in order
	//   - cameraIndex: -1 for the user camera, otherwise an index into a.Cameras
	//   - alphaBlend: draw with alpha blending and without depth writes
	//   - sortBackToFront: order the nodes by decreasing distance from the camera first
	//
	// Returns:
	//   - error: an error if called outside a frame or the asset cannot be uploaded
	DrawBatch(a *asset.Asset, nodes []int, cameraIndex int, alphaBlend, sortBackToFront bool) error

	// EndFrame submits and presents the frame.
	EndFrame()

	// ReleaseAsset frees every GPU resource created for the asset. Releasing an asset that was never drawn is a no-op.
	//
	// Parameters:
	//   - a: the asset to release
	ReleaseAsset(a *asset.Asset)
}

// Surface is the window side of a renderer: the platform surface plus its initial size.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend RendererBackend
	camera  camera.UserCamera
	params  *config.Parameters
	logger  *slog.Logger

	residency map[uint64]*residency

	whiteTexture   handle
	defaultSampler handle

	width   int
	height  int
	inFrame bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	msaa                 MSAASampleCount
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend type drawing to the given surface.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - surface: the window surface to render into
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the GPU adapter or device could not be acquired
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := newRenderer(nil, options...)

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		backend, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.msaa, r.logger)
		if err != nil {
			return nil, err
		}
		r.backend = backend
	}

	r.backend.SetPresentMode(r.presentMode)
	r.Resize(surface.Width(), surface.Height())
	return r, nil
}

func newRenderer(backend RendererBackend, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backend:     backend,
		logger:      slog.Default(),
		residency:   make(map[uint64]*residency),
		presentMode: PresentModeVSync,
		msaa:        MSAA4x,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.camera == nil {
		r.camera = camera.NewUserCamera()
	}
	if r.params == nil {
		r.params = config.NewParameters(config.Default().Rendering)
	}
	return r
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFrame {
		return errFrameStarted
	}
	if err := r.backend.BeginFrame(r.params.ClearColor()); err != nil {
		return err
	}
	r.inFrame = true
	return nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 || height <= 0 || (width == r.width && height == r.height) {
		return
	}
	r.width, r.height = width, height
	r.backend.ConfigureSurface(width, height)
	r.camera.SetAspect(r.aspect())
}

func (r *renderer) DrawBatch(a *asset.Asset, nodes []int, cameraIndex int, alphaBlend, sortBackToFront bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFrame {
		return errNoFrame
	}
	res, err := r.residencyFor(a)
	if err != nil {
		return err
	}

	view := r.view(a, cameraIndex)
	if sortBackToFront {
		nodes = a.SortBackToFront(nodes, view.Position)
	}
	vp := view.ViewProjection()

	for _, n := range nodes {
		if n < 0 || n >= len(a.Nodes) || a.Nodes[n].Mesh == nil {
			continue
		}
		node := &a.Nodes[n]
		mi := *node.Mesh
		if mi < 0 || mi >= len(a.Meshes) {
			continue
		}
		mvp := vp.Mul4(node.World)
		for pi, prim := range a.Meshes[mi].Primitives {
			mesh, ok := res.meshes[primitiveKey{mi, pi}]
			if !ok {
				continue
			}
			cmd := r.drawCommand(a, res, prim, mesh, mvp)
			cmd.Blend = alphaBlend
			if err := r.backend.Draw(cmd); err != nil {
				return errors.Wrapf(err, "draw node %d primitive %d", n, pi)
			}
		}
	}
	return nil
}

func (r *renderer) EndFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFrame {
		return
	}
	r.backend.EndFrame()
	r.inFrame = false
}

func (r *renderer) ReleaseAsset(a *asset.Asset) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.residency[a.ID()]
	if !ok {
		return
	}
	delete(r.residency, a.ID())
	r.backend.Release(res.handles()...)
	r.logger.Debug("[renderer] released asset", "asset", a.ID(), "path", a.Path)
}

// residencyFor returns the uploaded resources for a, uploading on first use.
// Caller must hold the mutex.
func (r *renderer) residencyFor(a *asset.Asset) (*residency, error) {
	if res, ok := r.residency[a.ID()]; ok {
		return res, nil
	}
	if err := r.ensureDefaults(); err != nil {
		return nil, err
	}
	res, err := r.upload(a)
	if err != nil {
		return nil, err
	}
	r.residency[a.ID()] = res
	r.logger.Debug("[renderer] uploaded asset", "asset", a.ID(), "primitives", len(res.meshes), "textures", len(res.textures), "skipped", res.skipped)
	return res, nil
}

// ensureDefaults creates the 1x1 white texture and the default sampler used by untextured materials.
// Caller must hold the mutex.
func (r *renderer) ensureDefaults() error {
	if r.whiteTexture != 0 {
		return nil
	}
	tex, err := r.backend.CreateTexture("white", common.TextureStagingData{Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1})
	if err != nil {
		return errors.Wrap(err, "failed to create default texture")
	}
	samp, err := r.backend.CreateSampler("default", *common.DefaultSamplerStagingData())
	if err != nil {
		r.backend.Release(tex)
		return errors.Wrap(err, "failed to create default sampler")
	}
	r.whiteTexture, r.defaultSampler = tex, samp
	return nil
}

func (r *renderer) drawCommand(a *asset.Asset, res *residency, prim asset.Primitive, mesh handle, mvp [16]float32) drawCommand {
	cmd := drawCommand{
		Mesh:    mesh,
		Texture: r.whiteTexture,
		Sampler: r.defaultSampler,
		Uniform: NewGPUDrawUniform(mvp, [4]float32{1, 1, 1, 1}, -1),
	}
	if prim.Material == nil || *prim.Material < 0 || *prim.Material >= len(a.Materials) {
		return cmd
	}
	m := a.Materials[*prim.Material]
	cutoff := float32(-1)
	if m.AlphaMode == asset.AlphaMask {
		cutoff = m.AlphaCutoff
	}
	cmd.Uniform = NewGPUDrawUniform(mvp, m.BaseColorFactor, cutoff)
	cmd.DoubleSided = m.DoubleSided
	if m.BaseColorTexture != nil {
		if th, ok := res.textures[*m.BaseColorTexture]; ok {
			cmd.Texture = th
			cmd.Sampler = res.samplers[*m.BaseColorTexture]
		}
	}
	return cmd
}

// view resolves the camera for a draw. An embedded camera that cannot be resolved falls back to the user camera.
// Caller must hold the mutex.
func (r *renderer) view(a *asset.Asset, cameraIndex int) camera.View {
	if cameraIndex >= 0 {
		v, err := camera.FromAsset(a, cameraIndex, r.aspect())
		if err == nil {
			return v
		}
		r.logger.Debug("[renderer] falling back to user camera", "camera", cameraIndex, "error", err)
	}
	return r.camera.View()
}

func (r *renderer) aspect() float32 {
	if r.width <= 0 || r.height <= 0 {
		return 1
	}
	return float32(r.width) / float32(r.height)
}
