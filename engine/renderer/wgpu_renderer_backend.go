package renderer

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-viewer/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// maxDrawsPerFrame bounds the per-draw uniform buffer. Draws past it are rejected for the rest of the frame.
const maxDrawsPerFrame = 4096

var (
	errNoActiveFrame   = errors.New("no frame in progress")
	errFrameHeld       = errors.New("previous frame surface not yet presented")
	errUniformsFull    = errors.New("per-frame draw limit reached")
	errUnknownResource = errors.New("unknown resource handle")
)

type wgpuMesh struct {
	vertices   *wgpu.Buffer
	indices    *wgpu.Buffer
	indexCount uint32
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

// pipelineKey selects one of the four unlit pipelines.
type pipelineKey struct {
	blend       bool
	doubleSided bool
}

type bindGroupKey struct {
	texture handle
	sampler handle
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *slog.Logger

	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode
	sampleCount MSAASampleCount

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	frameDraws   int

	// Resources owned by handles
	nextHandle handle
	meshes     map[handle]*wgpuMesh
	textures   map[handle]*wgpuTexture
	samplers   map[handle]*wgpu.Sampler

	shaderModule    *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	pipelines       map[pipelineKey]*wgpu.RenderPipeline
	bindGroups      map[bindGroupKey]*wgpu.BindGroup
	uniformBuffer   *wgpu.Buffer
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount, logger *slog.Logger) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      logger,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		sampleCount: sampleCount,
		meshes:      make(map[handle]*wgpuMesh),
		textures:    make(map[handle]*wgpuTexture),
		samplers:    make(map[handle]*wgpu.Sampler),
		pipelines:   make(map[pipelineKey]*wgpu.RenderPipeline),
		bindGroups:  make(map[bindGroupKey]*wgpu.BindGroup),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to request adapter")
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to request device")
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.initSharedState(); err != nil {
		return nil, err
	}
	return b, nil
}

// initSharedState creates the shader module, the bind group layout and the per-draw uniform buffer.
func (b *wgpuRendererBackendImpl) initSharedState() error {
	var err error
	b.shaderModule, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "unlit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: unlitShaderSource,
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to compile unlit shader")
	}

	uniformSize := uint64((&GPUDrawUniform{}).Size())
	b.bindGroupLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "unlit draw",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   uniformSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create bind group layout")
	}

	b.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "unlit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.bindGroupLayout},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline layout")
	}

	b.uniformBuffer, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Draw Uniforms",
		Size:  maxDrawsPerFrame * uniformSlotSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create uniform buffer")
	}
	return nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	format := capabilities.Formats[0]
	if b.surfaceFormat != nil && *b.surfaceFormat != format {
		b.releasePipelines()
	}
	b.surfaceFormat = &format

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseTargets()

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1
	size := wgpu.Extent3D{
		Width:              uint32(width),
		Height:             uint32(height),
		DepthOrArrayLayers: 1,
	}

	if msaaEnabled {
		// The render pass draws into the MSAA texture and resolves into the swapchain view.
		var err error
		b.msaaTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTextureView, err = b.msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	}

	// Depth texture sample count must match the color attachment.
	var err error
	b.depthTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	b.depthTextureView, err = b.depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: storeOp,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) CreateMesh(label string, vertices []byte, indices []uint32) (handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(vertices) == 0 || len(indices) == 0 {
		return 0, errors.Errorf("mesh %q has no geometry", label)
	}

	vb, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Vertex Buffer",
		Size:  uint64(len(vertices)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, err
	}
	b.queue.WriteBuffer(vb, 0, vertices)

	indexData := common.SliceToBytes(indices)
	ib, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return 0, err
	}
	b.queue.WriteBuffer(ib, 0, indexData)

	h := b.newHandle()
	b.meshes[h] = &wgpuMesh{vertices: vb, indices: ib, indexCount: uint32(len(indices))}
	return h, nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, data common.TextureStagingData) (handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if data.Width == 0 || data.Height == 0 || len(data.Pixels) < int(data.Width*data.Height*4) {
		return 0, errors.Errorf("texture %q has invalid staging data", label)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return 0, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, err
	}

	h := b.newHandle()
	b.textures[h] = &wgpuTexture{texture: tex, view: view}
	return h, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
	})
	if err != nil {
		return 0, err
	}

	h := b.newHandle()
	b.samplers[h] = samp
	return h, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame(clearColor [4]float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A held surface texture means the last frame was never presented; acquiring again fails in wgpu-native.
	if b.frameSurface != nil {
		return errFrameHeld
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	b.renderPassDescriptor.ColorAttachments[0].ClearValue = wgpu.Color{
		R: float64(clearColor[0]),
		G: float64(clearColor[1]),
		B: float64(clearColor[2]),
		A: float64(clearColor[3]),
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.frameDraws = 0

	return nil
}

func (b *wgpuRendererBackendImpl) Draw(cmd drawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errNoActiveFrame
	}
	if b.frameDraws >= maxDrawsPerFrame {
		return errUniformsFull
	}
	mesh, ok := b.meshes[cmd.Mesh]
	if !ok {
		return errors.Wrapf(errUnknownResource, "mesh %d", cmd.Mesh)
	}

	pipeline, err := b.pipeline(pipelineKey{blend: cmd.Blend, doubleSided: cmd.DoubleSided})
	if err != nil {
		return err
	}
	bindGroup, err := b.bindGroup(bindGroupKey{texture: cmd.Texture, sampler: cmd.Sampler})
	if err != nil {
		return err
	}

	offset := uint32(b.frameDraws * uniformSlotSize)
	b.queue.WriteBuffer(b.uniformBuffer, uint64(offset), cmd.Uniform.Marshal())
	b.frameDraws++

	b.framePass.SetPipeline(pipeline)
	b.framePass.SetBindGroup(0, bindGroup, []uint32{offset})
	b.framePass.SetVertexBuffer(0, mesh.vertices, 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(mesh.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(mesh.indexCount, 1, 0, 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.logger.Error("[renderer] failed to finish frame", "error", err)
		b.frameEncoder.Release()
		b.frameEncoder = nil
		b.releaseFrameSurface()
		return
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil

	b.surface.Present()
	b.releaseFrameSurface()
}

func (b *wgpuRendererBackendImpl) Release(handles ...handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range handles {
		if m, ok := b.meshes[h]; ok {
			m.vertices.Release()
			m.indices.Release()
			delete(b.meshes, h)
			continue
		}
		if t, ok := b.textures[h]; ok {
			b.dropBindGroups(h)
			t.view.Release()
			t.texture.Release()
			delete(b.textures, h)
			continue
		}
		if s, ok := b.samplers[h]; ok {
			b.dropBindGroups(h)
			s.Release()
			delete(b.samplers, h)
		}
	}
}

func (b *wgpuRendererBackendImpl) newHandle() handle {
	b.nextHandle++
	return b.nextHandle
}

// pipeline returns the render pipeline for key, creating it on first use. Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) pipeline(key pipelineKey) (*wgpu.RenderPipeline, error) {
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	target := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if key.blend {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	cull := wgpu.CullModeBack
	if key.doubleSided {
		cull = wgpu.CullModeNone
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "unlit Render Pipeline",
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     b.shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: vertexStride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.shaderModule,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: !key.blend,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create render pipeline")
	}
	b.pipelines[key] = created
	return created, nil
}

// bindGroup returns the bind group for a texture/sampler pair. Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) bindGroup(key bindGroupKey) (*wgpu.BindGroup, error) {
	if bg, ok := b.bindGroups[key]; ok {
		return bg, nil
	}
	tex, ok := b.textures[key.texture]
	if !ok {
		return nil, errors.Wrapf(errUnknownResource, "texture %d", key.texture)
	}
	samp, ok := b.samplers[key.sampler]
	if !ok {
		return nil, errors.Wrapf(errUnknownResource, "sampler %d", key.sampler)
	}

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "unlit draw Bind Group",
		Layout: b.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.uniformBuffer, Offset: 0, Size: uint64((&GPUDrawUniform{}).Size())},
			{Binding: 1, TextureView: tex.view},
			{Binding: 2, Sampler: samp},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bind group")
	}
	b.bindGroups[key] = bg
	return bg, nil
}

func (b *wgpuRendererBackendImpl) dropBindGroups(h handle) {
	for key, bg := range b.bindGroups {
		if key.texture == h || key.sampler == h {
			bg.Release()
			delete(b.bindGroups, key)
		}
	}
}

func (b *wgpuRendererBackendImpl) releasePipelines() {
	for key, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, key)
	}
}

func (b *wgpuRendererBackendImpl) releaseTargets() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *wgpuRendererBackendImpl) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}
