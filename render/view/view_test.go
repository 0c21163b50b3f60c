package view

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testView(e uint32, eye mgl32.Vec3) ExtractedView {
	return ExtractedView{
		Entity:        render.Entity{Index: e},
		ViewFromWorld: mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		ClipFromView:  mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 1000),
		WorldPosition: eye,
		MsaaSamples:   4,
	}
}

func TestRangefinderOrdersByDepth(t *testing.T) {
	v := testView(0, mgl32.Vec3{0, 0, 10})
	rf := v.Rangefinder()

	near := rf.DistanceTranslation(mgl32.Vec3{0, 0, 5})
	far := rf.DistanceTranslation(mgl32.Vec3{0, 0, -5})

	assert.InDelta(t, -5, near, 1e-4)
	assert.InDelta(t, -15, far, 1e-4)
	assert.Less(t, far, near, "farther points sort first")

	// off-axis offsets do not change depth
	assert.InDelta(t, near, rf.DistanceTranslation(mgl32.Vec3{3, -2, 5}), 1e-4)
}

func TestEncodeUniform(t *testing.T) {
	v := testView(0, mgl32.Vec3{1, 2, 3})
	buf := make([]byte, UniformSize)
	EncodeUniform(buf, &v)

	m := v.ClipFromWorld()
	for i := range m {
		assert.Equal(t, m[i], math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[64:])))
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[68:])))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(buf[72:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[76:])))
}

func TestUniformsLifecycle(t *testing.T) {
	backend := gputest.NewBackend()
	u := NewUniforms()

	a := testView(0, mgl32.Vec3{0, 0, 10})
	b := testView(1, mgl32.Vec3{10, 0, 0})
	require.NoError(t, u.Prepare(backend, backend, []ExtractedView{a, b}))
	assert.Equal(t, 2, u.Len())
	require.Len(t, backend.Buffers, 2)
	assert.True(t, backend.Buffers[0].Usage().Has(gpu.BufferUsageUniform))
	assert.Len(t, backend.Buffers[0].Data, UniformSize)

	groupA, ok := u.BindGroup(a.Entity)
	require.True(t, ok)

	// same views next frame: rewritten in place
	require.NoError(t, u.Prepare(backend, backend, []ExtractedView{a, b}))
	assert.Len(t, backend.Buffers, 2)
	assert.Len(t, backend.Writes, 2)
	again, _ := u.BindGroup(a.Entity)
	assert.Same(t, groupA, again)

	// view b disappears
	require.NoError(t, u.Prepare(backend, backend, []ExtractedView{a}))
	assert.Equal(t, 1, u.Len())
	assert.True(t, backend.Buffers[1].Released)
	assert.True(t, backend.BindGroups[1].Released)
	_, ok = u.BindGroup(b.Entity)
	assert.False(t, ok)

	u.Release()
	assert.Empty(t, backend.LiveBuffers())
}

func TestUniformsCreateFailure(t *testing.T) {
	backend := gputest.NewBackend()
	backend.FailCreate = gpu.ErrDeviceLost
	u := NewUniforms()
	v := testView(0, mgl32.Vec3{0, 0, 1})
	err := u.Prepare(backend, backend, []ExtractedView{v})
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.Equal(t, 0, u.Len())
}
