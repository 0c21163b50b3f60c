// Package webgpu runs the renderer on a real device through wgpu-native.
package webgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ErrHDRUnsupported is returned for HDR views: there is no tonemapping pass to
// bring an RGBA16Float target onto the sRGB surface.
var ErrHDRUnsupported = errors.New("webgpu: HDR views are not supported by the surface backend")

var errPassEnded = errors.New("webgpu: pass already ended")

type sampleTargets struct {
	msaa      *wgpu.Texture
	msaaView  *wgpu.TextureView
	depth     *wgpu.Texture
	depthView *wgpu.TextureView
}

func (t *sampleTargets) release() {
	if t.msaaView != nil {
		t.msaaView.Release()
		t.msaa.Release()
	}
	t.depthView.Release()
	t.depth.Release()
}

// Backend owns the device, the window surface and the frame being recorded.
// Every pipeline it compiles shares one layout: the view uniform at group 0
// and the entity transform at group 1.
type Backend struct {
	mu sync.Mutex

	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	config  *wgpu.SurfaceConfiguration
	format  gpu.TextureFormat

	viewLayout     *wgpu.BindGroupLayout
	meshLayout     *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	shaders        map[string]*wgpu.ShaderModule
	targets        map[uint32]*sampleTargets

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
	encoder      *wgpu.CommandEncoder
	passes       int

	ClearColor wgpu.Color
}

var (
	_ gpu.Device           = (*Backend)(nil)
	_ gpu.Queue            = (*Backend)(nil)
	_ gpu.PipelineCompiler = (*Backend)(nil)
	_ gpu.RenderTarget     = (*Backend)(nil)
)

// NewFromWindow creates a device presenting to win.
func NewFromWindow(win *glfw.Window) (*Backend, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "swarm device"})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}

	caps := surface.GetCapabilities(adapter)
	rawFormat, format, err := surfaceFormat(caps.Formats)
	if err != nil {
		return nil, err
	}
	width, height := win.GetFramebufferSize()
	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      rawFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, config)

	b := &Backend{
		surface:    surface,
		adapter:    adapter,
		device:     device,
		queue:      device.GetQueue(),
		config:     config,
		format:     format,
		shaders:    make(map[string]*wgpu.ShaderModule),
		targets:    make(map[uint32]*sampleTargets),
		ClearColor: wgpu.Color{R: 0.02, G: 0.02, B: 0.03, A: 1},
	}
	if err := b.createLayouts(); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (b *Backend) createLayouts() error {
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "view bind group layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return fmt.Errorf("view bind group layout: %w", err)
	}
	b.viewLayout = layout

	layout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "mesh bind group layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return fmt.Errorf("mesh bind group layout: %w", err)
	}
	b.meshLayout = layout

	pl, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "mesh pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.viewLayout, b.meshLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	b.pipelineLayout = pl
	return nil
}

// SurfaceFormat is the color format pipelines must target for non-HDR views.
func (b *Backend) SurfaceFormat() gpu.TextureFormat {
	return b.format
}

func (b *Backend) Size() (width, height uint32) {
	return b.config.Width, b.config.Height
}

// Resize reconfigures the surface. Attachments are recreated on the next pass.
func (b *Backend) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config.Width = uint32(width)
	b.config.Height = uint32(height)
	b.surface.Configure(b.adapter, b.device, b.config)
	for samples, t := range b.targets {
		t.release()
		delete(b.targets, samples)
	}
}

func (b *Backend) CreateBufferInit(desc *gpu.BufferInitDescriptor) (gpu.Buffer, error) {
	raw, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    desc.Label,
		Contents: desc.Contents,
		Usage:    bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, err
	}
	return &buffer{raw: raw, label: desc.Label, size: uint64(len(desc.Contents)), usage: desc.Usage}, nil
}

func (b *Backend) CreateViewBindGroup(label string, uniform gpu.Buffer) (gpu.BindGroup, error) {
	return b.uniformBindGroup(b.viewLayout, label, uniform)
}

func (b *Backend) CreateMeshBindGroup(label string, uniform gpu.Buffer) (gpu.BindGroup, error) {
	return b.uniformBindGroup(b.meshLayout, label, uniform)
}

func (b *Backend) uniformBindGroup(layout *wgpu.BindGroupLayout, label string, uniform gpu.Buffer) (gpu.BindGroup, error) {
	raw, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label,
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  uniform.(*buffer).raw,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		return nil, err
	}
	return &bindGroup{raw: raw}, nil
}

func (b *Backend) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	if err := b.queue.WriteBuffer(buf.(*buffer).raw, offset, data); err != nil {
		return fmt.Errorf("write %q: %w", buf.Label(), err)
	}
	return nil
}

func (b *Backend) shaderModule(ref gpu.ShaderRef) (*wgpu.ShaderModule, error) {
	if m, ok := b.shaders[ref.Label]; ok {
		return m, nil
	}
	m, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          ref.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: ref.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", ref.Label, err)
	}
	b.shaders[ref.Label] = m
	return m, nil
}

func (b *Backend) CompileRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.shaderModule(desc.Vertex.Shader)
	if err != nil {
		return nil, err
	}
	buffers, err := vertexBufferLayouts(desc.Vertex.Buffers)
	if err != nil {
		return nil, err
	}

	var fragment *wgpu.FragmentState
	if desc.Fragment != nil {
		fs, err := b.shaderModule(desc.Fragment.Shader)
		if err != nil {
			return nil, err
		}
		targets := make([]wgpu.ColorTargetState, 0, len(desc.Fragment.Targets))
		for _, t := range desc.Fragment.Targets {
			format, err := textureFormat(t.Format)
			if err != nil {
				return nil, err
			}
			targets = append(targets, wgpu.ColorTargetState{
				Format:    format,
				Blend:     blendState(t.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			})
		}
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		}
	}

	var depth *wgpu.DepthStencilState
	if desc.DepthStencil != nil {
		format, err := textureFormat(desc.DepthStencil.Format)
		if err != nil {
			return nil, err
		}
		depth = &wgpu.DepthStencilState{
			Format:            format,
			DepthWriteEnabled: desc.DepthStencil.DepthWriteEnabled,
			DepthCompare:      compareFunction(desc.DepthStencil.DepthCompare),
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	cull := wgpu.CullModeNone
	if desc.CullBackFaces {
		cull = wgpu.CullModeBack
	}
	samples := max(desc.MultisampleCount, 1)

	raw, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    buffers,
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  primitiveTopology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	return &renderPipeline{raw: raw, label: desc.Label}, nil
}

func (b *Backend) ensureTargets(samples uint32) (*sampleTargets, error) {
	if t, ok := b.targets[samples]; ok {
		return t, nil
	}
	size := wgpu.Extent3D{Width: b.config.Width, Height: b.config.Height, DepthOrArrayLayers: 1}
	t := &sampleTargets{}

	if samples > 1 {
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   samples,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.config.Format,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return nil, err
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			return nil, err
		}
		t.msaa, t.msaaView = tex, view
	}

	depth, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		if t.msaa != nil {
			t.msaaView.Release()
			t.msaa.Release()
		}
		return nil, err
	}
	depthView, err := depth.CreateView(nil)
	if err != nil {
		depth.Release()
		return nil, err
	}
	t.depth, t.depthView = depth, depthView
	b.targets[samples] = t
	return t, nil
}

func (b *Backend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoder != nil {
		return errors.New("webgpu: previous frame not ended")
	}

	tex, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		tex.Release()
		return err
	}
	b.frameTexture = tex
	b.frameView = view
	b.encoder = encoder
	b.passes = 0
	return nil
}

// BeginViewPass starts a pass drawing onto the surface. The first pass of a
// frame clears it; later passes draw on top.
func (b *Backend) BeginViewPass(label string, msaaSamples uint32, hdr bool) (gpu.RenderPass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoder == nil {
		return nil, errors.New("webgpu: pass begun outside a frame")
	}
	if hdr {
		return nil, ErrHDRUnsupported
	}
	samples := max(msaaSamples, 1)
	t, err := b.ensureTargets(samples)
	if err != nil {
		return nil, fmt.Errorf("%s attachments: %w", label, err)
	}

	color := wgpu.RenderPassColorAttachment{
		View:       b.frameView,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: b.ClearColor,
	}
	if b.passes > 0 {
		color.LoadOp = wgpu.LoadOpLoad
	}
	if samples > 1 {
		color.View = t.msaaView
		color.ResolveTarget = b.frameView
	}

	pass := b.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            t.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	b.passes++
	return &renderPass{raw: pass}, nil
}

// EndViewPass ends the pass and releases its encoder. The pass is unusable
// afterwards whether or not End failed.
func (b *Backend) EndViewPass(pass gpu.RenderPass) error {
	if err := pass.(*renderPass).end(); err != nil {
		return fmt.Errorf("end pass: %w", err)
	}
	return nil
}

// EndFrame submits the frame's passes and presents the surface.
func (b *Backend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.encoder == nil {
		return errors.New("webgpu: no frame to end")
	}
	defer func() {
		b.encoder.Release()
		b.encoder = nil
		b.frameView.Release()
		b.frameView = nil
		b.frameTexture.Release()
		b.frameTexture = nil
	}()

	cmd, err := b.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish frame: %w", err)
	}
	b.queue.Submit(cmd)
	cmd.Release()
	b.surface.Present()
	return nil
}

func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for samples, t := range b.targets {
		t.release()
		delete(b.targets, samples)
	}
	for label, m := range b.shaders {
		m.Release()
		delete(b.shaders, label)
	}
	if b.pipelineLayout != nil {
		b.pipelineLayout.Release()
	}
	if b.viewLayout != nil {
		b.viewLayout.Release()
	}
	if b.meshLayout != nil {
		b.meshLayout.Release()
	}
	if b.queue != nil {
		b.queue.Release()
	}
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
}
