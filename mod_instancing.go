package swarm

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/gekko3d/swarm/render/phase"
	"github.com/gekko3d/swarm/render/pipeline"
	"github.com/gekko3d/swarm/render/view"
	"github.com/gekko3d/swarm/render/world"
	"github.com/go-gl/mathgl/mgl32"
)

// InstancingModule draws every entity carrying Mesh3d and InstanceMaterialData
// with one instanced draw per camera. It needs a GpuState resource, so install
// it after GpuModule or WebGpuModule.
type InstancingModule struct {
	// MsaaSamples applies to cameras that leave theirs at zero or set an
	// unsupported count. Defaults to 4; must be 1 or 4.
	MsaaSamples uint32
	// HDR forces every camera onto an RGBA16Float target.
	HDR bool
	// ParallelEncodeThreshold is the group length above which instance data
	// is encoded on the worker pool.
	ParallelEncodeThreshold int
	// Workers sizes the pools for instance encoding and per-view queueing.
	// Defaults to GOMAXPROCS; 1 keeps everything on the frame goroutine.
	Workers int
	// ValidateShaders compiles the WGSL sources offline at install.
	ValidateShaders bool
}

// FrameStats is what the render stages did in the last frame.
type FrameStats struct {
	Extracted int
	Despawned int
	Views     int
	Instances instance.Stats
	Queue     phase.QueueStats
	Draws     phase.DrawStats
	Presented bool
}

// InstancingRenderState is the render world and everything derived from it.
// It lives as a resource so systems and tests can inspect it.
type InstancingRenderState struct {
	World         *world.World
	Meshes        *mesh.Registry
	Instances     *instance.Manager
	Views         *view.Uniforms
	Transforms    *mesh.TransformUniforms
	Cache         *pipeline.Cache
	Pipelines     *pipeline.SpecializedMeshPipelines
	Specializer   pipeline.MeshSpecializer
	DrawFunctions *phase.DrawFunctions
	Phases        *phase.ViewSortedPhases
	Queuer        *phase.InstancedQueuer
	Executor      *phase.Executor
	Stats         FrameStats

	msaaSamples uint32
	hdr         bool
	encoder     *instance.Encoder
	uploaded    map[mesh.Id]uint
	rejected    map[mesh.Id]uint
	warnedViews map[render.Entity]struct{}
	warnedMsaa  map[render.MainEntity]struct{}
	transforms  []mesh.Transform
	logger      Logger
}

func (m InstancingModule) Install(app *App, cmd *Commands) {
	gs := resource[GpuState](app)
	if gs == nil {
		panic("InstancingModule requires a GpuState resource")
	}
	if m.MsaaSamples == 0 {
		m.MsaaSamples = 4
	}
	if !pipeline.ValidMsaaSamples(m.MsaaSamples) {
		panic(fmt.Sprintf("InstancingModule: unsupported MSAA sample count %d, want 1 or 4", m.MsaaSamples))
	}
	if m.Workers <= 0 {
		m.Workers = runtime.GOMAXPROCS(0)
	}
	log := app.Logger()
	if resource[AssetServer](app) == nil {
		AssetServerModule{}.Install(app, cmd)
	}

	if m.ValidateShaders {
		for _, ref := range []gpu.ShaderRef{pipeline.MeshShader, pipeline.InstancingShader} {
			if err := pipeline.ValidateShader(ref); err != nil {
				log.Errorf("instancing: %v", err)
				panic(err)
			}
		}
	}

	rs := newInstancingRenderState(gs.Backend, m, log)
	cmd.AddResources(rs)
	app.OnShutdown(rs.Release)

	app.UseSystem(System(extractInstancedSystem).InStage(Extract).RunAlways())
	app.UseSystem(System(prepareMeshesSystem).InStage(PrepareAssets).RunAlways())
	app.UseSystem(System(prepareInstanceBuffersSystem).InStage(PrepareResources).RunAlways())
	app.UseSystem(System(queueInstancedSystem).InStage(QueueMeshes).RunAlways())
	app.UseSystem(System(sortPhasesSystem).InStage(PhaseSort).RunAlways())
	app.UseSystem(System(renderInstancedSystem).InStage(Render).RunAlways())
	app.UseSystem(System(cleanupInstancedSystem).InStage(Cleanup).RunAlways())

	log.Infof("instancing: msaa %d, hdr %v, %d workers", m.MsaaSamples, m.HDR, m.Workers)
}

func newInstancingRenderState(backend GpuBackend, m InstancingModule, log Logger) *InstancingRenderState {
	encoder := instance.NewEncoder(m.Workers, m.ParallelEncodeThreshold)
	rs := &InstancingRenderState{
		World:         world.New(),
		Meshes:        mesh.NewRegistry(),
		Instances:     instance.NewManager(backend, backend, encoder),
		Views:         view.NewUniforms(),
		Transforms:    mesh.NewTransformUniforms(),
		Cache:         pipeline.NewCache(),
		Pipelines:     pipeline.NewSpecializedMeshPipelines(),
		Specializer:   pipeline.NewInstancingPipeline(pipeline.NewMeshPipeline(backend.SurfaceFormat())),
		DrawFunctions: phase.NewDrawFunctions(),
		Phases:        phase.NewViewSortedPhases(),
		Queuer:        phase.NewInstancedQueuer(m.Workers),

		msaaSamples: m.MsaaSamples,
		hdr:         m.HDR,
		encoder:     encoder,
		uploaded:    make(map[mesh.Id]uint),
		rejected:    make(map[mesh.Id]uint),
		warnedViews: make(map[render.Entity]struct{}),
		warnedMsaa:  make(map[render.MainEntity]struct{}),
		logger:      log,
	}
	rs.DrawFunctions.Add(phase.DrawInstancedMesh)

	rs.Queuer.Meshes = rs.Meshes
	rs.Queuer.Cache = rs.Cache
	rs.Queuer.Pipelines = rs.Pipelines
	rs.Queuer.Specializer = rs.Specializer
	rs.Queuer.DrawFunctions = rs.DrawFunctions
	rs.Queuer.Logger = log

	rs.Executor = &phase.Executor{
		World:         rs.World,
		Meshes:        rs.Meshes,
		Cache:         rs.Cache,
		Views:         rs.Views,
		Transforms:    rs.Transforms,
		DrawFunctions: rs.DrawFunctions,
		Logger:        log,
	}
	return rs
}

// Release frees every GPU resource the render state owns.
func (rs *InstancingRenderState) Release() {
	rs.World.Clear(rs.Instances.Release)
	rs.Views.Release()
	rs.Transforms.Release()
	for id := range rs.uploaded {
		rs.Meshes.Remove(id)
	}
	clear(rs.uploaded)
	rs.Cache.Release()
	rs.Queuer.Close()
	rs.encoder.Close()
}

// fatal logs a frame-aborting GPU error and panics with it.
func (rs *InstancingRenderState) fatal(stage string, err error) {
	rs.logger.Errorf("%s: %v", stage, err)
	panic(fmt.Errorf("%s: %w", stage, err))
}

func extractInstancedSystem(cmd *Commands, rs *InstancingRenderState) {
	rs.Stats = FrameStats{}
	rs.World.BeginExtract()

	MakeQuery3[Mesh3d, InstanceMaterialData, TransformComponent](cmd).Map(
		func(eid EntityId, m *Mesh3d, data *InstanceMaterialData, t *TransformComponent) bool {
			mi := world.MeshInstance{Mesh: m.Mesh, WorldFromLocal: mgl32.Ident4()}
			if t != nil {
				mi.WorldFromLocal = t.Matrix()
			}
			rs.World.ExtractInstanced(render.MainEntity(eid), data.Group, mi)
			rs.Stats.Extracted++
			return true
		}, TransformComponent{})

	MakeQuery1[CameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent) bool {
		samples := cam.MsaaSamples
		if samples == 0 {
			samples = rs.msaaSamples
		} else if !pipeline.ValidMsaaSamples(samples) {
			if _, warned := rs.warnedMsaa[render.MainEntity(eid)]; !warned {
				rs.warnedMsaa[render.MainEntity(eid)] = struct{}{}
				rs.logger.Warnf("extract: camera %v: unsupported MSAA sample count %d, using %d", eid, samples, rs.msaaSamples)
			}
			samples = rs.msaaSamples
		}
		rs.World.ExtractView(render.MainEntity(eid), view.ExtractedView{
			ViewFromWorld: cam.ViewMatrix(),
			ClipFromView:  cam.ProjectionMatrix(),
			WorldPosition: cam.Position,
			HDR:           cam.HDR || rs.hdr,
			MsaaSamples:   samples,
		})
		return true
	})

	rs.Stats.Despawned = rs.World.EndExtract(rs.Instances.Release)
	rs.Stats.Views = len(rs.World.Views())
}

// prepareMeshesSystem uploads meshes that are new or changed since the last
// upload and drops the GPU copy of removed ones.
func prepareMeshesSystem(assets *AssetServer, gs *GpuState, rs *InstancingRenderState) {
	for _, id := range assets.takeRemoved() {
		rs.Meshes.Remove(id)
		delete(rs.uploaded, id)
		delete(rs.rejected, id)
	}

	for id, asset := range assets.meshes {
		stamp := asset.version + 1
		if rs.uploaded[id] == stamp || rs.rejected[id] == stamp {
			continue
		}
		if _, err := asset.mesh.Layout(); err != nil {
			rs.logger.Warnf("prepare meshes: %s: %v", id, err)
			rs.rejected[id] = stamp
			continue
		}
		if err := rs.Meshes.Upload(gs.Backend, id, asset.mesh); err != nil {
			rs.fatal("prepare meshes", err)
		}
		rs.uploaded[id] = stamp
		delete(rs.rejected, id)
		rs.logger.Debugf("prepare meshes: uploaded %s (%d vertices)", id, asset.mesh.VertexCount())
	}
}

func prepareInstanceBuffersSystem(gs *GpuState, rs *InstancingRenderState) {
	stats, err := rs.Instances.Prepare(rs.World)
	if err != nil {
		rs.fatal("prepare instance buffers", err)
	}
	rs.Stats.Instances = stats

	if err := rs.Views.Prepare(gs.Backend, gs.Backend, rs.World.Views()); err != nil {
		rs.fatal("prepare view uniforms", err)
	}

	rs.transforms = rs.World.AppendTransforms(rs.transforms[:0])
	if err := rs.Transforms.Prepare(gs.Backend, gs.Backend, rs.transforms); err != nil {
		rs.fatal("prepare mesh transforms", err)
	}
}

func queueInstancedSystem(rs *InstancingRenderState) {
	views := rs.World.Views()
	entities := make([]render.Entity, len(views))
	for i := range views {
		entities[i] = views[i].Entity
	}
	rs.Phases.Retain(entities)
	rs.Stats.Queue = rs.Queuer.QueueInstanced(rs.World, rs.Phases)
}

// sortPhasesSystem compiles the pipelines queued this frame and orders every
// phase back to front.
func sortPhasesSystem(gs *GpuState, rs *InstancingRenderState) {
	if err := rs.Cache.Process(gs.Backend); err != nil {
		if errors.Is(err, gpu.ErrDeviceLost) {
			rs.fatal("compile pipelines", err)
		}
		rs.logger.Errorf("compile pipelines: %v", err)
	}
	rs.Phases.SortAll()
}

func renderInstancedSystem(gs *GpuState, rs *InstancingRenderState) {
	views := rs.World.Views()
	if len(views) == 0 {
		return
	}
	target := gs.Backend
	if err := target.BeginFrame(); err != nil {
		rs.logger.Warnf("render: %v", err)
		return
	}

	for i := range views {
		v := &views[i]
		p, ok := rs.Phases.Get(v.Entity)
		if !ok {
			continue
		}
		pass, err := target.BeginViewPass("main transparent pass "+v.Entity.String(), v.MsaaSamples, v.HDR)
		if err != nil {
			if _, warned := rs.warnedViews[v.Entity]; !warned {
				rs.warnedViews[v.Entity] = struct{}{}
				rs.logger.Warnf("render: view %s: %v", v.Entity, err)
			}
			continue
		}
		stats := rs.Executor.Render(pass, v, p)
		rs.Stats.Draws.Drawn += stats.Drawn
		rs.Stats.Draws.Skipped += stats.Skipped
		if err := target.EndViewPass(pass); err != nil {
			rs.logger.Errorf("render: view %s: %v", v.Entity, err)
		}
	}

	if err := target.EndFrame(); err != nil {
		if errors.Is(err, gpu.ErrDeviceLost) {
			rs.fatal("render", err)
		}
		rs.logger.Errorf("render: %v", err)
		return
	}
	rs.Stats.Presented = true
}

func cleanupInstancedSystem(rs *InstancingRenderState) {
	for e := range rs.warnedViews {
		if !rs.World.Contains(e) {
			delete(rs.warnedViews, e)
		}
	}
	for m := range rs.warnedMsaa {
		if _, ok := rs.World.Lookup(m); !ok {
			delete(rs.warnedMsaa, m)
		}
	}
	s := rs.Stats
	rs.logger.Debugf("frame: %d extracted, %d views, %d queued, %d drawn, %d skipped",
		s.Extracted, s.Views, s.Queue.Queued, s.Draws.Drawn, s.Draws.Skipped)
}
