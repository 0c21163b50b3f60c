// Package world is the render-side mirror of the simulation: an arena of
// render entities rebuilt by extraction every frame.
package world

import (
	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/gekko3d/swarm/render/view"
	"github.com/go-gl/mathgl/mgl32"
)

// MeshInstance says which mesh a render entity draws and where.
type MeshInstance struct {
	Mesh           mesh.Id
	WorldFromLocal mgl32.Mat4
}

// Translation is the world-space origin of the mesh.
func (mi MeshInstance) Translation() mgl32.Vec3 {
	return mi.WorldFromLocal.Col(3).Vec3()
}

// World stores render entities in parallel tables indexed by slot. Dead slots
// go to a free list and are reused with a bumped generation.
type World struct {
	generation []uint32
	alive      []bool
	seen       []bool
	main       []render.MainEntity

	hasGroup []bool
	groups   []instance.Group
	handles  []*instance.BufferHandle
	hasMesh  []bool
	meshes   []MeshInstance
	isView   []bool

	views  []view.ExtractedView
	free   []uint32
	byMain map[render.MainEntity]render.Entity
}

func New() *World {
	return &World{byMain: make(map[render.MainEntity]render.Entity)}
}

func (w *World) spawn(m render.MainEntity) render.Entity {
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
		w.generation[idx]++
	} else {
		idx = uint32(len(w.alive))
		w.generation = append(w.generation, 0)
		w.alive = append(w.alive, false)
		w.seen = append(w.seen, false)
		w.main = append(w.main, 0)
		w.hasGroup = append(w.hasGroup, false)
		w.groups = append(w.groups, nil)
		w.handles = append(w.handles, nil)
		w.hasMesh = append(w.hasMesh, false)
		w.meshes = append(w.meshes, MeshInstance{})
		w.isView = append(w.isView, false)
	}
	w.alive[idx] = true
	w.main[idx] = m
	e := render.Entity{Index: idx, Generation: w.generation[idx]}
	w.byMain[m] = e
	return e
}

func (w *World) live(e render.Entity) bool {
	return int(e.Index) < len(w.alive) && w.alive[e.Index] && w.generation[e.Index] == e.Generation
}

// entityFor returns the render entity mirroring m, spawning it on first sight.
func (w *World) entityFor(m render.MainEntity) render.Entity {
	if e, ok := w.byMain[m]; ok && w.live(e) {
		return e
	}
	return w.spawn(m)
}

// BeginExtract starts a frame. Entities not extracted again before EndExtract
// are despawned.
func (w *World) BeginExtract() {
	for i := range w.seen {
		w.seen[i] = false
	}
	w.views = w.views[:0]
}

// ExtractInstanced mirrors an entity that carries instance data and a mesh.
// The group is copied; the simulation may change it once this returns.
func (w *World) ExtractInstanced(m render.MainEntity, group instance.Group, mi MeshInstance) render.Entity {
	e := w.entityFor(m)
	i := e.Index
	w.seen[i] = true
	w.hasGroup[i] = true
	w.groups[i] = append(w.groups[i][:0], group...)
	w.hasMesh[i] = true
	w.meshes[i] = mi
	return e
}

// ExtractView mirrors a camera; v.Entity and v.MainEntity are filled in.
func (w *World) ExtractView(m render.MainEntity, v view.ExtractedView) render.Entity {
	e := w.entityFor(m)
	w.seen[e.Index] = true
	w.isView[e.Index] = true
	v.Entity = e
	v.MainEntity = m
	w.views = append(w.views, v)
	return e
}

// EndExtract despawns every entity that was not extracted this frame. Their
// instance buffers go to release. It returns how many were despawned.
func (w *World) EndExtract(release func(*instance.BufferHandle)) int {
	n := 0
	for i := range w.alive {
		if w.alive[i] && !w.seen[i] {
			w.despawn(uint32(i), release)
			n++
		}
	}
	return n
}

// Despawn removes e now. Stale entities are ignored.
func (w *World) Despawn(e render.Entity, release func(*instance.BufferHandle)) {
	if w.live(e) {
		w.despawn(e.Index, release)
	}
}

func (w *World) despawn(i uint32, release func(*instance.BufferHandle)) {
	if h := w.handles[i]; h != nil && release != nil {
		release(h)
	}
	if e, ok := w.byMain[w.main[i]]; ok && e.Index == i {
		delete(w.byMain, w.main[i])
	}
	w.alive[i] = false
	w.seen[i] = false
	w.hasGroup[i] = false
	w.groups[i] = w.groups[i][:0]
	w.handles[i] = nil
	w.hasMesh[i] = false
	w.meshes[i] = MeshInstance{}
	w.isView[i] = false
	w.free = append(w.free, i)
}

// Len is the number of slots, live or not. It is the bound for slot loops.
func (w *World) Len() int {
	return len(w.alive)
}

// Count is the number of live entities.
func (w *World) Count() int {
	return len(w.alive) - len(w.free)
}

// Group implements instance.Targets.
func (w *World) Group(i int) (instance.Group, bool) {
	if !w.alive[i] || !w.hasGroup[i] {
		return nil, false
	}
	return w.groups[i], true
}

func (w *World) Handle(i int) *instance.BufferHandle {
	return w.handles[i]
}

func (w *World) SetHandle(i int, h *instance.BufferHandle) {
	w.handles[i] = h
}

// Instanced returns every live entity carrying an instance group, in slot order.
func (w *World) Instanced() []render.Entity {
	var out []render.Entity
	for i := range w.alive {
		if w.alive[i] && w.hasGroup[i] {
			out = append(out, render.Entity{Index: uint32(i), Generation: w.generation[i]})
		}
	}
	return out
}

// AppendTransforms appends the transform of every live entity that draws a mesh.
func (w *World) AppendTransforms(dst []mesh.Transform) []mesh.Transform {
	for i := range w.alive {
		if w.alive[i] && w.hasMesh[i] {
			dst = append(dst, mesh.Transform{
				Entity:         render.Entity{Index: uint32(i), Generation: w.generation[i]},
				WorldFromLocal: w.meshes[i].WorldFromLocal,
			})
		}
	}
	return dst
}

func (w *World) Views() []view.ExtractedView {
	return w.views
}

func (w *World) Contains(e render.Entity) bool {
	return w.live(e)
}

func (w *World) MainEntity(e render.Entity) (render.MainEntity, bool) {
	if !w.live(e) {
		return 0, false
	}
	return w.main[e.Index], true
}

func (w *World) Lookup(m render.MainEntity) (render.Entity, bool) {
	e, ok := w.byMain[m]
	if !ok || !w.live(e) {
		return render.Entity{}, false
	}
	return e, true
}

func (w *World) MeshInstance(e render.Entity) (MeshInstance, bool) {
	if !w.live(e) || !w.hasMesh[e.Index] {
		return MeshInstance{}, false
	}
	return w.meshes[e.Index], true
}

func (w *World) InstanceGroup(e render.Entity) (instance.Group, bool) {
	if !w.live(e) || !w.hasGroup[e.Index] {
		return nil, false
	}
	return w.groups[e.Index], true
}

// InstanceBuffer returns the prepared buffer of e, false when there is none
// (empty group, or not prepared yet).
func (w *World) InstanceBuffer(e render.Entity) (*instance.BufferHandle, bool) {
	if !w.live(e) {
		return nil, false
	}
	h := w.handles[e.Index]
	return h, h != nil && h.Buffer != nil
}

// Clear despawns everything.
func (w *World) Clear(release func(*instance.BufferHandle)) {
	for i := range w.alive {
		if w.alive[i] {
			w.despawn(uint32(i), release)
		}
	}
	w.views = w.views[:0]
}

var _ instance.Targets = (*World)(nil)
