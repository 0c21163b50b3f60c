// Package gputest provides an in-memory recording backend for render tests.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/swarm/render/gpu"
)

type Buffer struct {
	ID       int
	label    string
	usage    gpu.BufferUsage
	Data     []byte
	Released bool
}

func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Size() uint64           { return uint64(len(b.Data)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *Buffer) Release()               { b.Released = true }

type BindGroup struct {
	Label string
	// Index is the bind group slot the layout belongs to.
	Index    uint32
	Uniform  gpu.Buffer
	Released bool
}

func (g *BindGroup) Release() { g.Released = true }

type Pipeline struct {
	ID         int
	Descriptor *gpu.RenderPipelineDescriptor
	Released   bool
}

func (p *Pipeline) Label() string { return p.Descriptor.Label }
func (p *Pipeline) Release()      { p.Released = true }

type Write struct {
	Buffer *Buffer
	Offset uint64
	Size   int
}

// Backend implements gpu.Device, gpu.Queue, gpu.PipelineCompiler and
// gpu.RenderTarget, recording every call.
type Backend struct {
	mu sync.Mutex

	Buffers    []*Buffer
	BindGroups []*BindGroup
	Writes     []Write
	Pipelines  []*Pipeline
	Passes     []*Pass
	Frames     int

	// FailCreate makes every buffer creation fail with the given error.
	FailCreate error
	// FailWrite makes every queue write fail with the given error.
	FailWrite error
	// FailCompile makes every pipeline compilation fail with the given error.
	FailCompile error
	// FailPass makes BeginViewPass fail with the given error.
	FailPass error
	// Format is reported by SurfaceFormat.
	Format gpu.TextureFormat

	inFrame bool
}

var (
	_ gpu.Device           = (*Backend)(nil)
	_ gpu.Queue            = (*Backend)(nil)
	_ gpu.PipelineCompiler = (*Backend)(nil)
	_ gpu.RenderTarget     = (*Backend)(nil)
)

func NewBackend() *Backend {
	return &Backend{Format: gpu.TextureFormatBGRA8UnormSrgb}
}

func (b *Backend) SurfaceFormat() gpu.TextureFormat {
	return b.Format
}

func (b *Backend) CreateBufferInit(desc *gpu.BufferInitDescriptor) (gpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCreate != nil {
		return nil, b.FailCreate
	}
	data := make([]byte, len(desc.Contents))
	copy(data, desc.Contents)
	buf := &Buffer{ID: len(b.Buffers), label: desc.Label, usage: desc.Usage, Data: data}
	b.Buffers = append(b.Buffers, buf)
	return buf, nil
}

func (b *Backend) CreateViewBindGroup(label string, uniform gpu.Buffer) (gpu.BindGroup, error) {
	return b.bindGroup(0, label, uniform), nil
}

func (b *Backend) CreateMeshBindGroup(label string, uniform gpu.Buffer) (gpu.BindGroup, error) {
	return b.bindGroup(1, label, uniform), nil
}

func (b *Backend) bindGroup(index uint32, label string, uniform gpu.Buffer) *BindGroup {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := &BindGroup{Label: label, Index: index, Uniform: uniform}
	b.BindGroups = append(b.BindGroups, g)
	return g
}

// WriteBuffer panics when the write would overrun the buffer, like a
// validation error on a real device.
func (b *Backend) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrite != nil {
		return b.FailWrite
	}
	fb := buf.(*Buffer)
	if fb.Released {
		panic(fmt.Sprintf("gputest: write to released buffer %d", fb.ID))
	}
	if offset+uint64(len(data)) > uint64(len(fb.Data)) {
		panic(fmt.Sprintf("gputest: write of %d bytes at %d overruns buffer %d of size %d", len(data), offset, fb.ID, len(fb.Data)))
	}
	copy(fb.Data[offset:], data)
	b.Writes = append(b.Writes, Write{Buffer: fb, Offset: offset, Size: len(data)})
	return nil
}

func (b *Backend) CompileRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCompile != nil {
		return nil, b.FailCompile
	}
	p := &Pipeline{ID: len(b.Pipelines), Descriptor: desc.Clone()}
	b.Pipelines = append(b.Pipelines, p)
	return p, nil
}

func (b *Backend) BeginFrame() error {
	if b.inFrame {
		return errors.New("gputest: frame already begun")
	}
	b.inFrame = true
	return nil
}

func (b *Backend) BeginViewPass(label string, msaaSamples uint32, hdr bool) (gpu.RenderPass, error) {
	if !b.inFrame {
		return nil, errors.New("gputest: pass begun outside a frame")
	}
	if b.FailPass != nil {
		return nil, b.FailPass
	}
	p := &Pass{Label: label, MsaaSamples: msaaSamples, HDR: hdr}
	b.Passes = append(b.Passes, p)
	return p, nil
}

func (b *Backend) EndViewPass(pass gpu.RenderPass) error {
	pass.(*Pass).Ended = true
	return nil
}

func (b *Backend) EndFrame() error {
	if !b.inFrame {
		return errors.New("gputest: no frame to end")
	}
	b.inFrame = false
	b.Frames++
	return nil
}

// LiveBuffers returns the buffers that have not been released.
func (b *Backend) LiveBuffers() []*Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	var live []*Buffer
	for _, buf := range b.Buffers {
		if !buf.Released {
			live = append(live, buf)
		}
	}
	return live
}

// DrawCalls returns every draw recorded across all passes.
func (b *Backend) DrawCalls() []Command {
	var draws []Command
	for _, p := range b.Passes {
		draws = append(draws, p.DrawCalls()...)
	}
	return draws
}
