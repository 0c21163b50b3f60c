package gpu

import "errors"

// ErrDeviceLost is returned by backends once the device can no longer accept work.
var ErrDeviceLost = errors.New("gpu: device lost")

// WholeSize binds a buffer from the given offset to its end.
const WholeSize = ^uint64(0)

type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	Release()
}

type BindGroup interface {
	Release()
}

type RenderPipeline interface {
	Label() string
	Release()
}

type BufferInitDescriptor struct {
	Label    string
	Contents []byte
	Usage    BufferUsage
}

// Device creates GPU resources. Creation errors are resource exhaustion or
// device loss and are never recoverable by the caller.
type Device interface {
	CreateBufferInit(desc *BufferInitDescriptor) (Buffer, error)
	// CreateViewBindGroup binds a view uniform buffer at group 0, binding 0 of
	// the layout shared by every pipeline the backend compiles.
	CreateViewBindGroup(label string, uniform Buffer) (BindGroup, error)
	// CreateMeshBindGroup binds a per-entity transform uniform at group 1,
	// binding 0.
	CreateMeshBindGroup(label string, uniform Buffer) (BindGroup, error)
}

// Queue writes are executed by the device in submission order, before any
// command buffer submitted after them.
type Queue interface {
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
}

type PipelineCompiler interface {
	CompileRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
}

// RenderPass records draw commands for one view.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer, offset, size uint64)
	SetIndexBuffer(buf Buffer, format IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
}

// RenderTarget owns the per-frame command stream. Passes begun between
// BeginFrame and EndFrame are submitted together by EndFrame.
type RenderTarget interface {
	BeginFrame() error
	BeginViewPass(label string, msaaSamples uint32, hdr bool) (RenderPass, error)
	EndViewPass(pass RenderPass) error
	EndFrame() error
}
