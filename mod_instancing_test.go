package swarm

import (
	"errors"
	"testing"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/gpu/gputest"
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instancingFixture struct {
	app     *App
	cmd     *Commands
	backend *gputest.Backend
	rs      *InstancingRenderState
	sphere  mesh.Id
}

func newInstancingFixture(t *testing.T, mod InstancingModule) *instancingFixture {
	t.Helper()
	backend := gputest.NewBackend()
	app := NewAppBuilder().
		UseModule(GpuModule{Backend: backend}, mod).
		Build()
	t.Cleanup(app.Shutdown)

	rs := resource[InstancingRenderState](app)
	require.NotNil(t, rs)
	assets := resource[AssetServer](app)
	require.NotNil(t, assets, "the module installs an asset server when none exists")

	return &instancingFixture{
		app:     app,
		cmd:     app.Commands(),
		backend: backend,
		rs:      rs,
		sphere:  assets.LoadMesh(mesh.UVSphere(0.1, 2, 2)),
	}
}

func (f *instancingFixture) camera(pos mgl32.Vec3) EntityId {
	id := f.cmd.AddEntity(CameraComponent{
		Position: pos,
		LookAt:   mgl32.Vec3{0, 0, 0},
		Fov:      mgl32.DegToRad(60),
		Aspect:   1,
		Near:     0.1,
		Far:      1000,
	})
	f.app.FlushCommands()
	return id
}

func (f *instancingFixture) swarm(n int, pos mgl32.Vec3) EntityId {
	id := f.cmd.AddEntity(
		TransformComponent{Position: pos},
		Mesh3d{Mesh: f.sphere},
		InstanceMaterialData{Group: group(n)},
	)
	f.app.FlushCommands()
	return id
}

func (f *instancingFixture) frame() {
	f.backend.Passes = nil
	f.app.Update()
}

func group(n int) instance.Group {
	g := make(instance.Group, n)
	for i := range g {
		g[i] = instance.Record{Position: [3]float32{float32(i), 0, 0}, Scale: 1, Color: [4]float32{1, 0, 0, 1}}
	}
	return g
}

func TestInstancing_DrawsOneInstancedCallPerEntity(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.swarm(3, mgl32.Vec3{})

	f.frame()

	require.Len(t, f.backend.Passes, 1)
	pass := f.backend.Passes[0]
	assert.True(t, pass.Ended)
	assert.Equal(t, uint32(4), pass.MsaaSamples)

	draws := pass.DrawCalls()
	require.Len(t, draws, 1)
	assert.Equal(t, gputest.CmdDrawIndexed, draws[0].Kind)
	assert.Equal(t, uint32(12), draws[0].Count)
	assert.Equal(t, uint32(3), draws[0].InstanceCount)

	instances := pass.VertexBuffers()[1]
	require.NotNil(t, instances)
	assert.Equal(t, uint64(3*instance.RecordSize), instances.Size())
	assert.Equal(t, 1, f.rs.Stats.Instances.Created)
	assert.Equal(t, 1, f.backend.Frames)
	assert.True(t, f.rs.Stats.Presented)
}

func TestInstancing_BufferLifecycleAcrossFrames(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	eid := f.swarm(4, mgl32.Vec3{})

	f.frame()
	first := f.backend.Passes[0].VertexBuffers()[1]

	f.frame()
	assert.Equal(t, 1, f.rs.Stats.Instances.Overwritten)
	assert.Same(t, first, f.backend.Passes[0].VertexBuffers()[1], "unchanged count keeps the buffer")

	MakeQuery1[InstanceMaterialData](f.cmd).Map(func(id EntityId, data *InstanceMaterialData) bool {
		data.Group = group(9)
		return true
	})
	f.frame()
	assert.Equal(t, 1, f.rs.Stats.Instances.Reallocated)
	second := f.backend.Passes[0].VertexBuffers()[1]
	assert.Equal(t, uint64(9*instance.RecordSize), second.Size())
	assert.True(t, first.(*gputest.Buffer).Released)

	f.cmd.RemoveEntity(eid)
	f.app.FlushCommands()
	f.frame()
	assert.Equal(t, 1, f.rs.Stats.Despawned)
	assert.True(t, second.(*gputest.Buffer).Released)
	assert.Empty(t, f.backend.Passes[0].DrawCalls())
}

func TestInstancing_ExtractionSnapshotsGroups(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	eid := f.swarm(2, mgl32.Vec3{})

	f.frame()
	e, ok := f.rs.World.Lookup(render.MainEntity(eid))
	require.True(t, ok)

	MakeQuery1[InstanceMaterialData](f.cmd).Map(func(id EntityId, data *InstanceMaterialData) bool {
		data.Group[0].Scale = 42
		return true
	})
	extracted, ok := f.rs.World.InstanceGroup(e)
	require.True(t, ok)
	assert.Equal(t, float32(1), extracted[0].Scale)
}

func TestInstancing_TwoCamerasShareOnePipeline(t *testing.T) {
	for _, workers := range []int{1, 4} {
		f := newInstancingFixture(t, InstancingModule{Workers: workers})
		f.camera(mgl32.Vec3{0, 0, 10})
		f.camera(mgl32.Vec3{10, 0, 0})
		f.swarm(5, mgl32.Vec3{})
		f.swarm(5, mgl32.Vec3{1, 0, 0})

		f.frame()

		assert.Len(t, f.backend.Pipelines, 1, "workers=%d", workers)
		require.Len(t, f.backend.Passes, 2)
		for _, p := range f.backend.Passes {
			assert.Len(t, p.DrawCalls(), 2)
		}
		assert.Equal(t, 4, f.rs.Stats.Draws.Drawn)
		assert.Equal(t, 4, f.rs.Stats.Queue.Queued)
	}
}

func TestInstancing_DrawsBackToFront(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	near := f.swarm(1, mgl32.Vec3{0, 0, 5})
	far := f.swarm(2, mgl32.Vec3{0, 0, -20})

	f.frame()

	v := f.rs.World.Views()[0]
	p, ok := f.rs.Phases.Get(v.Entity)
	require.True(t, ok)
	items := p.Items()
	require.Len(t, items, 2)
	assert.Equal(t, render.MainEntity(far), items[0].MainEntity)
	assert.Equal(t, render.MainEntity(near), items[1].MainEntity)

	draws := f.backend.Passes[0].DrawCalls()
	require.Len(t, draws, 2)
	assert.Equal(t, uint32(2), draws[0].InstanceCount)
	assert.Equal(t, uint32(1), draws[1].InstanceCount)
}

func TestInstancing_MissingMeshQueuesNothing(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.cmd.AddEntity(Mesh3d{Mesh: "never-loaded"}, InstanceMaterialData{Group: group(3)})
	f.app.FlushCommands()

	f.frame()

	assert.Equal(t, 1, f.rs.Stats.Queue.MissingMesh)
	assert.Zero(t, f.rs.Stats.Queue.Queued)
	require.Len(t, f.backend.Passes, 1)
	assert.Empty(t, f.backend.Passes[0].DrawCalls())
}

func TestInstancing_EmptyGroupIsSkipped(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.swarm(0, mgl32.Vec3{})

	f.frame()

	assert.Zero(t, f.rs.Stats.Instances.Created)
	assert.Equal(t, 1, f.rs.Stats.Draws.Skipped)
	assert.Empty(t, f.backend.Passes[0].DrawCalls())
}

func TestInstancing_RejectedMeshIsNotUploaded(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	assets := resource[AssetServer](f.app)
	broken := assets.LoadMesh(&mesh.Mesh{Topology: gpu.PrimitiveTopologyTriangleList})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.cmd.AddEntity(Mesh3d{Mesh: broken}, InstanceMaterialData{Group: group(1)})
	f.app.FlushCommands()

	f.frame()
	f.frame()

	assert.False(t, f.rs.Meshes.Has(broken))
	assert.True(t, f.rs.Meshes.Has(f.sphere))
}

func TestInstancing_RemovedMeshIsReleased(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.frame()
	require.True(t, f.rs.Meshes.Has(f.sphere))

	resource[AssetServer](f.app).RemoveMesh(f.sphere)
	f.frame()

	assert.False(t, f.rs.Meshes.Has(f.sphere))
}

func TestInstancing_FailedPassSkipsViewButEndsFrame(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1, HDR: true})
	f.backend.FailPass = errors.New("hdr target unavailable")
	f.camera(mgl32.Vec3{0, 0, 10})
	f.swarm(3, mgl32.Vec3{})

	f.frame()

	assert.Empty(t, f.backend.Passes)
	assert.Equal(t, 1, f.backend.Frames)
	assert.Zero(t, f.rs.Stats.Draws.Drawn)
}

func TestInstancing_NoCameraSkipsFrame(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.swarm(3, mgl32.Vec3{})

	f.frame()

	assert.Zero(t, f.backend.Frames)
	assert.Equal(t, 1, f.rs.Stats.Instances.Created, "buffers are prepared even without a view")
}

func TestInstancing_AllocationFailureIsFatal(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.frame()
	f.swarm(3, mgl32.Vec3{})
	f.backend.FailCreate = gpu.ErrDeviceLost

	assert.Panics(t, f.frame)
}

func TestInstancing_ShutdownReleasesEverything(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 2, ValidateShaders: true})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.swarm(3, mgl32.Vec3{})
	f.frame()
	require.NotEmpty(t, f.backend.LiveBuffers())

	f.app.Shutdown()

	assert.Empty(t, f.backend.LiveBuffers())
	for _, p := range f.backend.Pipelines {
		assert.True(t, p.Released)
	}
}

// meshTransformsDrawn returns the transform uniform bound at slot 1 for each draw.
func meshTransformsDrawn(p *gputest.Pass) []*gputest.Buffer {
	var out []*gputest.Buffer
	var current *gputest.Buffer
	for _, c := range p.Commands {
		switch c.Kind {
		case gputest.CmdSetBindGroup:
			if c.Slot == 1 {
				current = c.BindGroup.(*gputest.BindGroup).Uniform.(*gputest.Buffer)
			}
		case gputest.CmdDraw, gputest.CmdDrawIndexed:
			out = append(out, current)
		}
	}
	return out
}

func TestInstancing_TransformReachesTheDraw(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.swarm(4, mgl32.Vec3{})
	moved := f.swarm(4, mgl32.Vec3{100, 0, -50})

	f.frame()

	drawn := meshTransformsDrawn(f.backend.Passes[0])
	require.Len(t, drawn, 2)
	require.NotNil(t, drawn[0])
	require.NotNil(t, drawn[1])
	assert.NotSame(t, drawn[0], drawn[1])

	want := make([]byte, mesh.TransformUniformSize)
	mesh.EncodeTransform(want, mgl32.Translate3D(100, 0, -50))
	assert.Equal(t, want, drawn[0].Data, "the far entity draws first with its own transform")
	mesh.EncodeTransform(want, mgl32.Ident4())
	assert.Equal(t, want, drawn[1].Data)

	MakeQuery1[TransformComponent](f.cmd).Map(func(id EntityId, tr *TransformComponent) bool {
		if id == moved {
			tr.Position = mgl32.Vec3{0, 0, -200}
		}
		return true
	})
	f.frame()

	drawn = meshTransformsDrawn(f.backend.Passes[0])
	require.Len(t, drawn, 2)
	mesh.EncodeTransform(want, mgl32.Translate3D(0, 0, -200))
	assert.Equal(t, want, drawn[0].Data)
}

func TestInstancing_UnsupportedMsaaIsRejected(t *testing.T) {
	assert.Panics(t, func() {
		NewAppBuilder().
			UseModule(GpuModule{Backend: gputest.NewBackend()}, InstancingModule{MsaaSamples: 3}).
			Build()
	})
}

func TestInstancing_CameraWithUnsupportedMsaaUsesDefault(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1, MsaaSamples: 1})
	f.cmd.AddEntity(CameraComponent{
		Position:    mgl32.Vec3{0, 0, 10},
		Fov:         mgl32.DegToRad(60),
		Aspect:      1,
		Near:        0.1,
		Far:         1000,
		MsaaSamples: 6,
	})
	f.app.FlushCommands()
	f.swarm(2, mgl32.Vec3{})

	f.frame()

	require.Len(t, f.backend.Passes, 1)
	assert.Equal(t, uint32(1), f.backend.Passes[0].MsaaSamples)
	require.Len(t, f.backend.Pipelines, 1)
	assert.Equal(t, uint32(1), max(f.backend.Pipelines[0].Descriptor.MultisampleCount, 1))
	assert.Len(t, f.backend.Passes[0].DrawCalls(), 1)
}

func TestInstancing_FailedOverwriteIsFatal(t *testing.T) {
	f := newInstancingFixture(t, InstancingModule{Workers: 1})
	f.camera(mgl32.Vec3{0, 0, 10})
	f.swarm(3, mgl32.Vec3{})
	f.frame()

	f.backend.FailWrite = errors.New("queue rejected write")
	assert.Panics(t, f.frame)
}
