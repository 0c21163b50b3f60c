package gputest

import "github.com/gekko3d/swarm/render/gpu"

type CommandKind int

const (
	CmdSetPipeline CommandKind = iota
	CmdSetBindGroup
	CmdSetVertexBuffer
	CmdSetIndexBuffer
	CmdDraw
	CmdDrawIndexed
)

type Command struct {
	Kind CommandKind

	Pipeline    gpu.RenderPipeline
	BindGroup   gpu.BindGroup
	Buffer      gpu.Buffer
	Slot        uint32
	IndexFormat gpu.IndexFormat

	// Count is the vertex or index count of a draw.
	Count         uint32
	InstanceCount uint32
	First         uint32
	BaseVertex    int32
	FirstInstance uint32
}

type Pass struct {
	Label       string
	MsaaSamples uint32
	HDR         bool
	Commands    []Command
	Ended       bool
}

var _ gpu.RenderPass = (*Pass)(nil)

func (p *Pass) SetPipeline(pl gpu.RenderPipeline) {
	p.Commands = append(p.Commands, Command{Kind: CmdSetPipeline, Pipeline: pl})
}

func (p *Pass) SetBindGroup(index uint32, group gpu.BindGroup) {
	p.Commands = append(p.Commands, Command{Kind: CmdSetBindGroup, Slot: index, BindGroup: group})
}

func (p *Pass) SetVertexBuffer(slot uint32, buf gpu.Buffer, offset, size uint64) {
	p.Commands = append(p.Commands, Command{Kind: CmdSetVertexBuffer, Slot: slot, Buffer: buf})
}

func (p *Pass) SetIndexBuffer(buf gpu.Buffer, format gpu.IndexFormat, offset, size uint64) {
	p.Commands = append(p.Commands, Command{Kind: CmdSetIndexBuffer, Buffer: buf, IndexFormat: format})
}

func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Commands = append(p.Commands, Command{
		Kind:          CmdDraw,
		Count:         vertexCount,
		InstanceCount: instanceCount,
		First:         firstVertex,
		FirstInstance: firstInstance,
	})
}

func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.Commands = append(p.Commands, Command{
		Kind:          CmdDrawIndexed,
		Count:         indexCount,
		InstanceCount: instanceCount,
		First:         firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

func (p *Pass) DrawCalls() []Command {
	var draws []Command
	for _, c := range p.Commands {
		if c.Kind == CmdDraw || c.Kind == CmdDrawIndexed {
			draws = append(draws, c)
		}
	}
	return draws
}

// VertexBuffers returns the buffers bound per slot, last binding wins.
func (p *Pass) VertexBuffers() map[uint32]gpu.Buffer {
	bound := make(map[uint32]gpu.Buffer)
	for _, c := range p.Commands {
		if c.Kind == CmdSetVertexBuffer {
			bound[c.Slot] = c.Buffer
		}
	}
	return bound
}
