package phase

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/gekko3d/swarm/render/pipeline"
	"github.com/gekko3d/swarm/render/view"
	"github.com/gekko3d/swarm/render/world"
)

const queueTaskBuffer = 64

// QueueStats counts what one QueueInstanced call did across all views.
type QueueStats struct {
	Views       int
	Queued      int
	MissingMesh int
	Failed      int
}

func (s *QueueStats) add(o QueueStats) {
	s.Views += o.Views
	s.Queued += o.Queued
	s.MissingMesh += o.MissingMesh
	s.Failed += o.Failed
}

// InstancedQueuer adds a draw item for every instanced entity to every view's
// transparent phase.
type InstancedQueuer struct {
	Meshes        *mesh.Registry
	Cache         *pipeline.Cache
	Pipelines     *pipeline.SpecializedMeshPipelines
	Specializer   pipeline.MeshSpecializer
	DrawFunctions *DrawFunctions
	Logger        render.Logger

	workers  int
	parallel bool
	pool     worker.DynamicWorkerPool
	taskID   int
}

// NewInstancedQueuer returns a queuer that handles views on up to workers
// goroutines. workers <= 1 queues views one after another.
func NewInstancedQueuer(workers int) *InstancedQueuer {
	q := &InstancedQueuer{workers: workers, Logger: render.NopLogger()}
	if workers > 1 {
		q.pool = worker.NewDynamicWorkerPool(workers, queueTaskBuffer, 1*time.Second)
		q.parallel = true
	}
	return q
}

// QueueInstanced fills the phase of every view in w. Views without a phase are
// skipped. Phases must have been cleared by the caller.
func (q *InstancedQueuer) QueueInstanced(w *world.World, phases *ViewSortedPhases) QueueStats {
	drawFn, ok := q.DrawFunctions.Id(DrawInstancedMesh)
	if !ok {
		drawFn = q.DrawFunctions.Add(DrawInstancedMesh)
	}
	entities := w.Instanced()
	views := w.Views()
	perView := make([]QueueStats, len(views))

	if !q.parallel || len(views) < 2 {
		for i := range views {
			perView[i] = q.queueView(w, phases, &views[i], entities, drawFn)
		}
	} else {
		var wg sync.WaitGroup
		for i := range views {
			wg.Add(1)
			q.taskID++
			q.pool.SubmitTask(worker.Task{
				ID: q.taskID,
				Do: func() (any, error) {
					defer wg.Done()
					perView[i] = q.queueView(w, phases, &views[i], entities, drawFn)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	var stats QueueStats
	for _, s := range perView {
		stats.add(s)
	}
	return stats
}

func (q *InstancedQueuer) queueView(w *world.World, phases *ViewSortedPhases, v *view.ExtractedView, entities []render.Entity, drawFn DrawFunctionId) QueueStats {
	var stats QueueStats
	p, ok := phases.Get(v.Entity)
	if !ok {
		return stats
	}
	stats.Views = 1

	log := q.Logger
	if log == nil {
		log = render.NopLogger()
	}
	rangefinder := v.Rangefinder()
	viewKey := pipeline.KeyFromMsaaSamples(v.MsaaSamples) | pipeline.KeyFromHDR(v.HDR)

	for _, e := range entities {
		mi, ok := w.MeshInstance(e)
		if !ok {
			continue
		}
		gm, ok := q.Meshes.Get(mi.Mesh)
		if !ok {
			log.Debugf("queue instanced: entity %s: mesh %s not uploaded", e, mi.Mesh)
			stats.MissingMesh++
			continue
		}

		key := viewKey | pipeline.KeyFromPrimitiveTopology(gm.Topology)
		id, err := q.Pipelines.Specialize(q.Cache, q.Specializer, key, gm.Layout)
		if err != nil {
			log.Warnf("queue instanced: entity %s: %v", e, err)
			stats.Failed++
			continue
		}

		main, _ := w.MainEntity(e)
		p.Add(DrawItem{
			Entity:       e,
			MainEntity:   main,
			Pipeline:     id,
			DrawFunction: drawFn,
			Distance:     rangefinder.DistanceTranslation(mi.Translation()),
			BatchRange:   gpu.Range{Start: 0, End: 1},
			ExtraIndex:   ExtraIndexNone,
		})
		stats.Queued++
	}
	return stats
}

// Close stops the worker pool. Later calls queue views one after another.
func (q *InstancedQueuer) Close() {
	if q.parallel {
		q.pool.Stop()
		q.parallel = false
	}
}
