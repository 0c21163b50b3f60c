package swarm

import (
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/webgpu"
)

// GpuBackend is the device surface the render systems draw through.
type GpuBackend interface {
	gpu.Device
	gpu.Queue
	gpu.PipelineCompiler
	gpu.RenderTarget
	SurfaceFormat() gpu.TextureFormat
}

type GpuState struct {
	Backend GpuBackend
}

// GpuModule installs an already created backend. Tests use it with an
// in-memory device; WebGpuModule uses it for the window surface.
type GpuModule struct {
	Backend GpuBackend
}

func (m GpuModule) Install(app *App, cmd *Commands) {
	if m.Backend == nil {
		panic("gpu module installed without a backend")
	}
	cmd.AddResources(&GpuState{Backend: m.Backend})
}

// WebGpuModule opens a wgpu device presenting to the shared window. It needs
// PlatformWindowModule installed before it.
type WebGpuModule struct{}

func (m WebGpuModule) Install(app *App, cmd *Commands) {
	ws := resource[WindowState](app)
	if ws == nil {
		panic("WebGpuModule requires PlatformWindowModule")
	}
	backend, err := webgpu.NewFromWindow(ws.windowGlfw)
	if err != nil {
		app.Logger().Errorf("webgpu: %v", err)
		panic(err)
	}
	w, h := backend.Size()
	app.Logger().Infof("webgpu: surface %dx%d, format %v", w, h, backend.SurfaceFormat())

	GpuModule{Backend: backend}.Install(app, cmd)
	app.OnShutdown(backend.Release)
	app.UseSystem(
		System(surfaceResizeSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
}

func surfaceResizeSystem(ws *WindowState, gs *GpuState) {
	backend, ok := gs.Backend.(*webgpu.Backend)
	if !ok {
		return
	}
	fw, fh := ws.FramebufferSize()
	w, h := backend.Size()
	if uint32(fw) != w || uint32(fh) != h {
		backend.Resize(fw, fh)
	}
}
