package pipeline

import (
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
)

// Shader locations of the per-instance attributes.
const (
	LocationInstancePosScale uint32 = 3
	LocationInstanceColor    uint32 = 4
)

// InstanceBufferLayout is the layout of the buffer bound at slot 1: one
// instance.Record per instance.
func InstanceBufferLayout() gpu.VertexBufferLayout {
	return gpu.VertexBufferLayout{
		ArrayStride: instance.RecordSize,
		StepMode:    gpu.VertexStepModeInstance,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: LocationInstancePosScale},
			{Format: gpu.VertexFormatFloat32x4, Offset: gpu.VertexFormatFloat32x4.Size(), ShaderLocation: LocationInstanceColor},
		},
	}
}

// InstancingPipeline specializes the base mesh pipeline for instanced draws.
type InstancingPipeline struct {
	Shader gpu.ShaderRef
	Base   MeshSpecializer
}

func NewInstancingPipeline(base MeshSpecializer) *InstancingPipeline {
	return &InstancingPipeline{Shader: InstancingShader, Base: base}
}

func (p *InstancingPipeline) Specialize(key Key, layout mesh.Layout) (*gpu.RenderPipelineDescriptor, error) {
	desc, err := p.Base.Specialize(key, layout)
	if err != nil {
		return nil, err
	}
	desc.Label = "instancing pipeline (" + key.String() + ")"
	desc.Vertex.Shader = p.Shader
	desc.Vertex.Buffers = append(desc.Vertex.Buffers, InstanceBufferLayout())
	if desc.Fragment == nil {
		return nil, &SpecializationError{Key: key, LayoutKey: layout.Key(), Reason: "base pipeline has no fragment stage"}
	}
	desc.Fragment.Shader = p.Shader
	return desc, nil
}
