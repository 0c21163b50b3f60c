package gpu

import "slices"

// ShaderRef names a WGSL module. Backends cache compiled modules by Label.
type ShaderRef struct {
	Label  string
	Source string
}

type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAlpha
)

type CompareFunction uint8

const (
	CompareLess CompareFunction = iota
	CompareLessEqual
	CompareGreater
	CompareAlways
)

type VertexState struct {
	Shader     ShaderRef
	EntryPoint string
	Buffers    []VertexBufferLayout
}

type ColorTarget struct {
	Format TextureFormat
	Blend  BlendMode
}

type FragmentState struct {
	Shader     ShaderRef
	EntryPoint string
	Targets    []ColorTarget
}

type DepthStencilState struct {
	Format            TextureFormat
	DepthWriteEnabled bool
	DepthCompare      CompareFunction
}

type RenderPipelineDescriptor struct {
	Label            string
	Vertex           VertexState
	Fragment         *FragmentState
	Topology         PrimitiveTopology
	CullBackFaces    bool
	DepthStencil     *DepthStencilState
	MultisampleCount uint32
}

// Clone returns a deep copy so cached descriptors are never shared mutably.
func (d *RenderPipelineDescriptor) Clone() *RenderPipelineDescriptor {
	out := *d
	out.Vertex.Buffers = make([]VertexBufferLayout, len(d.Vertex.Buffers))
	for i, b := range d.Vertex.Buffers {
		b.Attributes = slices.Clone(b.Attributes)
		out.Vertex.Buffers[i] = b
	}
	if d.Fragment != nil {
		frag := *d.Fragment
		frag.Targets = slices.Clone(d.Fragment.Targets)
		out.Fragment = &frag
	}
	if d.DepthStencil != nil {
		ds := *d.DepthStencil
		out.DepthStencil = &ds
	}
	return &out
}
