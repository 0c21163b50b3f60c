package phase

import (
	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/gekko3d/swarm/render/pipeline"
	"github.com/gekko3d/swarm/render/view"
	"github.com/gekko3d/swarm/render/world"
)

type RenderCommandResult uint8

const (
	Success RenderCommandResult = iota
	Skip
)

func (r RenderCommandResult) String() string {
	if r == Success {
		return "Success"
	}
	return "Skip"
}

type DrawStats struct {
	Drawn   int
	Skipped int
}

// Executor replays sorted phases into render passes. Every lookup fails
// closed: a missing resource skips the item and the rest of the phase is drawn.
type Executor struct {
	World         *world.World
	Meshes        *mesh.Registry
	Cache         *pipeline.Cache
	Views         *view.Uniforms
	Transforms    *mesh.TransformUniforms
	DrawFunctions *DrawFunctions
	Logger        render.Logger
}

func (x *Executor) logger() render.Logger {
	if x.Logger == nil {
		return render.NopLogger()
	}
	return x.Logger
}

func (x *Executor) Render(pass gpu.RenderPass, v *view.ExtractedView, p *SortedRenderPhase) DrawStats {
	var stats DrawStats
	for i := range p.items {
		if x.Draw(pass, v, &p.items[i]) == Success {
			stats.Drawn++
		} else {
			stats.Skipped++
		}
	}
	return stats
}

func (x *Executor) Draw(pass gpu.RenderPass, v *view.ExtractedView, item *DrawItem) RenderCommandResult {
	kind, ok := x.DrawFunctions.Kind(item.DrawFunction)
	if !ok {
		return Skip
	}
	switch kind {
	case DrawInstancedMesh:
		if r := x.SetItemPipeline(pass, item); r != Success {
			return r
		}
		if r := x.SetViewBindGroup(pass, v, 0); r != Success {
			return r
		}
		if r := x.SetMeshBindGroup(pass, item, 1); r != Success {
			return r
		}
		return x.DrawMeshInstanced(pass, item)
	}
	return Skip
}

// SetItemPipeline skips items whose pipeline has not finished compiling.
func (x *Executor) SetItemPipeline(pass gpu.RenderPass, item *DrawItem) RenderCommandResult {
	p, ok := x.Cache.Get(item.Pipeline)
	if !ok {
		x.logger().Debugf("draw %s: pipeline %d not ready", item.Entity, item.Pipeline)
		return Skip
	}
	pass.SetPipeline(p)
	return Success
}

func (x *Executor) SetViewBindGroup(pass gpu.RenderPass, v *view.ExtractedView, index uint32) RenderCommandResult {
	g, ok := x.Views.BindGroup(v.Entity)
	if !ok {
		return Skip
	}
	pass.SetBindGroup(index, g)
	return Success
}

// SetMeshBindGroup binds the transform of the item's entity.
func (x *Executor) SetMeshBindGroup(pass gpu.RenderPass, item *DrawItem, index uint32) RenderCommandResult {
	if x.Transforms == nil {
		return Skip
	}
	g, ok := x.Transforms.BindGroup(item.Entity)
	if !ok {
		x.logger().Debugf("draw %s: no transform", item.Entity)
		return Skip
	}
	pass.SetBindGroup(index, g)
	return Success
}

// DrawMeshInstanced binds the mesh vertices at slot 0 and the instance buffer
// at slot 1, then draws every instance in one call.
func (x *Executor) DrawMeshInstanced(pass gpu.RenderPass, item *DrawItem) RenderCommandResult {
	mi, ok := x.World.MeshInstance(item.Entity)
	if !ok {
		return Skip
	}
	gm, ok := x.Meshes.Get(mi.Mesh)
	if !ok {
		return Skip
	}
	h, ok := x.World.InstanceBuffer(item.Entity)
	if !ok {
		return Skip
	}
	vertices, ok := x.Meshes.VertexSlice(mi.Mesh)
	if !ok {
		return Skip
	}

	pass.SetVertexBuffer(0, vertices.Buffer, 0, gpu.WholeSize)
	pass.SetVertexBuffer(1, h.Buffer, 0, gpu.WholeSize)
	instances := uint32(h.Length)

	if gm.BufferInfo.Indexed {
		indices, ok := x.Meshes.IndexSlice(mi.Mesh)
		if !ok {
			return Skip
		}
		pass.SetIndexBuffer(indices.Buffer, gm.BufferInfo.IndexFormat, 0, gpu.WholeSize)
		pass.DrawIndexed(gm.BufferInfo.IndexCount, instances, indices.Range.Start, int32(vertices.Range.Start), 0)
		return Success
	}
	pass.Draw(vertices.Range.Len(), instances, vertices.Range.Start, 0)
	return Success
}
