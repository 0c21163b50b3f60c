package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/swarm/render/gpu"
)

type buffer struct {
	raw   *wgpu.Buffer
	label string
	size  uint64
	usage gpu.BufferUsage
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Size() uint64           { return b.size }
func (b *buffer) Usage() gpu.BufferUsage { return b.usage }

func (b *buffer) Release() {
	if b.raw != nil {
		b.raw.Release()
		b.raw = nil
	}
}

type bindGroup struct {
	raw *wgpu.BindGroup
}

func (g *bindGroup) Release() {
	if g.raw != nil {
		g.raw.Release()
		g.raw = nil
	}
}

type renderPipeline struct {
	raw   *wgpu.RenderPipeline
	label string
}

func (p *renderPipeline) Label() string { return p.label }

func (p *renderPipeline) Release() {
	if p.raw != nil {
		p.raw.Release()
		p.raw = nil
	}
}

// passEncoder is the part of *wgpu.RenderPassEncoder a pass uses.
type passEncoder interface {
	SetPipeline(pipeline *wgpu.RenderPipeline)
	SetBindGroup(groupIndex uint32, group *wgpu.BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset uint64, size uint64)
	SetIndexBuffer(buffer *wgpu.Buffer, format wgpu.IndexFormat, offset uint64, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount uint32, instanceCount uint32, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End() error
	Release()
}

var _ passEncoder = (*wgpu.RenderPassEncoder)(nil)

// renderPass adapts a wgpu pass encoder. Resources from another backend panic.
type renderPass struct {
	raw passEncoder
}

// end ends the pass and releases its encoder, even when End fails.
func (p *renderPass) end() error {
	if p.raw == nil {
		return errPassEnded
	}
	err := p.raw.End()
	p.raw.Release()
	p.raw = nil
	return err
}

func (p *renderPass) SetPipeline(pl gpu.RenderPipeline) {
	p.raw.SetPipeline(pl.(*renderPipeline).raw)
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	p.raw.SetBindGroup(index, group.(*bindGroup).raw, nil)
}

func (p *renderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer, offset, size uint64) {
	p.raw.SetVertexBuffer(slot, buf.(*buffer).raw, offset, size)
}

func (p *renderPass) SetIndexBuffer(buf gpu.Buffer, format gpu.IndexFormat, offset, size uint64) {
	p.raw.SetIndexBuffer(buf.(*buffer).raw, indexFormat(format), offset, size)
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.raw.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.raw.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}
