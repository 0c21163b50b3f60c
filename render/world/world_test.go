package world

import (
	"testing"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu/gputest"
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/gekko3d/swarm/render/view"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func group(n int) instance.Group {
	g := make(instance.Group, n)
	for i := range g {
		g[i] = instance.Record{Position: [3]float32{float32(i), 0, 0}, Scale: 1, Color: [4]float32{1, 1, 1, 1}}
	}
	return g
}

func TestExtractKeepsEntityAcrossFrames(t *testing.T) {
	w := New()
	meshId := mesh.NewId()

	w.BeginExtract()
	e1 := w.ExtractInstanced(7, group(3), MeshInstance{Mesh: meshId})
	assert.Equal(t, 0, w.EndExtract(nil))

	w.BeginExtract()
	e2 := w.ExtractInstanced(7, group(5), MeshInstance{Mesh: meshId})
	assert.Equal(t, 0, w.EndExtract(nil))

	assert.Equal(t, e1, e2)
	g, ok := w.InstanceGroup(e2)
	require.True(t, ok)
	assert.Len(t, g, 5)

	m, ok := w.MainEntity(e2)
	require.True(t, ok)
	assert.Equal(t, render.MainEntity(7), m)
}

func TestExtractCopiesGroup(t *testing.T) {
	w := New()
	src := group(2)

	w.BeginExtract()
	e := w.ExtractInstanced(1, src, MeshInstance{})
	w.EndExtract(nil)

	src[0].Scale = 99
	g, _ := w.InstanceGroup(e)
	assert.Equal(t, float32(1), g[0].Scale)
}

func TestEndExtractDespawnsAndReleases(t *testing.T) {
	backend := gputest.NewBackend()
	mgr := instance.NewManager(backend, backend, nil)
	w := New()

	w.BeginExtract()
	a := w.ExtractInstanced(1, group(4), MeshInstance{})
	b := w.ExtractInstanced(2, group(4), MeshInstance{})
	w.EndExtract(mgr.Release)
	_, err := mgr.Prepare(w)
	require.NoError(t, err)
	require.Len(t, backend.LiveBuffers(), 2)

	// entity 2 is gone from the simulation
	w.BeginExtract()
	w.ExtractInstanced(1, group(4), MeshInstance{})
	assert.Equal(t, 1, w.EndExtract(mgr.Release))

	assert.True(t, w.Contains(a))
	assert.False(t, w.Contains(b))
	assert.Len(t, backend.LiveBuffers(), 1)
	assert.Equal(t, 1, w.Count())

	// the freed slot is reused with a new generation
	w.BeginExtract()
	w.ExtractInstanced(1, group(4), MeshInstance{})
	c := w.ExtractInstanced(3, group(1), MeshInstance{})
	w.EndExtract(mgr.Release)
	assert.Equal(t, b.Index, c.Index)
	assert.NotEqual(t, b.Generation, c.Generation)
	assert.False(t, w.Contains(b))

	_, ok := w.InstanceBuffer(c)
	assert.False(t, ok, "new entity has no buffer before prepare")
}

func TestTargetsSkipDeadSlots(t *testing.T) {
	w := New()
	w.BeginExtract()
	w.ExtractInstanced(1, group(1), MeshInstance{})
	w.ExtractInstanced(2, group(2), MeshInstance{})
	w.ExtractView(3, view.ExtractedView{})
	w.EndExtract(nil)

	w.BeginExtract()
	w.ExtractInstanced(2, group(2), MeshInstance{})
	w.ExtractView(3, view.ExtractedView{})
	w.EndExtract(nil)

	var groups []int
	for i := 0; i < w.Len(); i++ {
		if g, ok := w.Group(i); ok {
			groups = append(groups, len(g))
		}
	}
	assert.Equal(t, []int{2}, groups)
	assert.Len(t, w.Instanced(), 1)
}

func TestExtractViews(t *testing.T) {
	w := New()
	v := view.ExtractedView{ViewFromWorld: mgl32.Ident4(), ClipFromView: mgl32.Ident4(), MsaaSamples: 4}

	w.BeginExtract()
	e := w.ExtractView(100, v)
	w.EndExtract(nil)

	require.Len(t, w.Views(), 1)
	assert.Equal(t, e, w.Views()[0].Entity)
	assert.Equal(t, render.MainEntity(100), w.Views()[0].MainEntity)

	w.BeginExtract()
	assert.Empty(t, w.Views())
	assert.Equal(t, 1, w.EndExtract(nil))
	_, ok := w.Lookup(100)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	backend := gputest.NewBackend()
	mgr := instance.NewManager(backend, backend, nil)
	w := New()
	w.BeginExtract()
	w.ExtractInstanced(1, group(2), MeshInstance{})
	w.EndExtract(mgr.Release)
	_, err := mgr.Prepare(w)
	require.NoError(t, err)

	w.Clear(mgr.Release)
	assert.Equal(t, 0, w.Count())
	assert.Empty(t, backend.LiveBuffers())
}

func TestAppendTransforms(t *testing.T) {
	w := New()
	moved := mgl32.Translate3D(100, 0, -50)

	w.BeginExtract()
	a := w.ExtractInstanced(1, group(4), MeshInstance{WorldFromLocal: mgl32.Ident4()})
	b := w.ExtractInstanced(2, group(4), MeshInstance{WorldFromLocal: moved})
	w.ExtractView(3, view.ExtractedView{})
	w.EndExtract(nil)

	transforms := w.AppendTransforms(nil)
	require.Len(t, transforms, 2, "views carry no mesh transform")
	assert.Equal(t, mesh.Transform{Entity: a, WorldFromLocal: mgl32.Ident4()}, transforms[0])
	assert.Equal(t, mesh.Transform{Entity: b, WorldFromLocal: moved}, transforms[1])

	mi, ok := w.MeshInstance(b)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{100, 0, -50}, mi.Translation())
}
