package pipeline

import (
	"fmt"

	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/mesh"
)

// MeshSpecializer builds the descriptor of one pipeline variant.
type MeshSpecializer interface {
	Specialize(key Key, layout mesh.Layout) (*gpu.RenderPipelineDescriptor, error)
}

// MeshPipeline is the base pipeline every mesh draw starts from.
type MeshPipeline struct {
	Shader        gpu.ShaderRef
	SurfaceFormat gpu.TextureFormat
	DepthFormat   gpu.TextureFormat
}

func NewMeshPipeline(surfaceFormat gpu.TextureFormat) *MeshPipeline {
	return &MeshPipeline{
		Shader:        MeshShader,
		SurfaceFormat: surfaceFormat,
		DepthFormat:   gpu.TextureFormatDepth32Float,
	}
}

var meshAttributeFormats = map[uint32]gpu.VertexFormat{
	mesh.LocationPosition: gpu.VertexFormatFloat32x3,
	mesh.LocationNormal:   gpu.VertexFormatFloat32x3,
	mesh.LocationUV:       gpu.VertexFormatFloat32x2,
}

func (p *MeshPipeline) Specialize(key Key, layout mesh.Layout) (*gpu.RenderPipelineDescriptor, error) {
	fail := func(format string, args ...any) error {
		return &SpecializationError{Key: key, LayoutKey: layout.Key(), Reason: fmt.Sprintf(format, args...)}
	}

	if _, ok := layout.Attribute(mesh.LocationPosition); !ok {
		return nil, fail("missing position attribute at location %d", mesh.LocationPosition)
	}
	for _, a := range layout.Attributes {
		want, ok := meshAttributeFormats[a.ShaderLocation]
		if !ok {
			return nil, fail("attribute location %d is reserved for instance data", a.ShaderLocation)
		}
		if a.Format != want {
			return nil, fail("attribute %d has format %s, want %s", a.ShaderLocation, a.Format, want)
		}
	}

	format := p.SurfaceFormat
	if key.HDR() {
		format = gpu.TextureFormatRGBA16Float
	}

	vertexLayout := layout.VertexBufferLayout
	return (&gpu.RenderPipelineDescriptor{
		Label: "mesh pipeline (" + key.String() + ")",
		Vertex: gpu.VertexState{
			Shader:     p.Shader,
			EntryPoint: VertexEntryPoint,
			Buffers:    []gpu.VertexBufferLayout{vertexLayout},
		},
		Fragment: &gpu.FragmentState{
			Shader:     p.Shader,
			EntryPoint: FragmentEntryPoint,
			Targets:    []gpu.ColorTarget{{Format: format, Blend: gpu.BlendAlpha}},
		},
		Topology:      key.PrimitiveTopology(),
		CullBackFaces: true,
		// Transparent geometry is sorted back to front and does not write depth.
		DepthStencil: &gpu.DepthStencilState{
			Format:            p.DepthFormat,
			DepthWriteEnabled: false,
			DepthCompare:      gpu.CompareLessEqual,
		},
		MultisampleCount: key.MsaaSamples(),
	}).Clone(), nil
}
