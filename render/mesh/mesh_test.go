package mesh

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/gpu/gputest"
)

func TestUVSphere_LowResolution(t *testing.T) {
	m := UVSphere(0.1, 2, 2)

	assert.Equal(t, 9, m.VertexCount())
	assert.Len(t, m.Indices32, 12)
	assert.Equal(t, gpu.PrimitiveTopologyTriangleList, m.Topology)

	for _, idx := range m.Indices32 {
		assert.Less(t, int(idx), m.VertexCount())
	}
	for _, p := range m.Positions {
		r := math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2]))
		assert.InDelta(t, 0.1, r, 1e-6)
	}
}

func TestMesh_LayoutLocations(t *testing.T) {
	layout, err := UVSphere(1, 4, 4).Layout()
	require.NoError(t, err)

	assert.Equal(t, uint64(32), layout.ArrayStride)
	assert.Equal(t, gpu.VertexStepModeVertex, layout.StepMode)

	pos, ok := layout.Attribute(LocationPosition)
	require.True(t, ok)
	assert.Equal(t, uint64(0), pos.Offset)

	uv, ok := layout.Attribute(LocationUV)
	require.True(t, ok)
	assert.Equal(t, uint64(24), uv.Offset)
	assert.Equal(t, gpu.VertexFormatFloat32x2, uv.Format)
}

func TestMesh_LayoutKeyDistinguishesAttributes(t *testing.T) {
	full, err := UVSphere(1, 4, 4).Layout()
	require.NoError(t, err)

	bare := &Mesh{Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}}
	posOnly, err := bare.Layout()
	require.NoError(t, err)

	assert.NotEqual(t, full.Key(), posOnly.Key())
	assert.Equal(t, uint64(12), posOnly.ArrayStride)

	again, _ := UVSphere(2, 8, 8).Layout()
	assert.Equal(t, full.Key(), again.Key())
}

func TestMesh_LayoutRejectsMismatchedAttributes(t *testing.T) {
	m := &Mesh{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}},
		Normals:   [][3]float32{{0, 0, 1}},
	}
	_, err := m.Layout()
	assert.Error(t, err)

	_, err = (&Mesh{}).Layout()
	assert.Error(t, err)
}

func TestMesh_VertexBytesInterleaved(t *testing.T) {
	m := &Mesh{
		Positions: [][3]float32{{1, 2, 3}},
		UVs:       [][2]float32{{0.5, 0.25}},
	}
	layout, err := m.Layout()
	require.NoError(t, err)

	data := m.VertexBytes(layout)
	require.Len(t, data, 20)
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(data[8:])))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(data[16:])))
}

func TestMesh_IndexBytesPadded(t *testing.T) {
	m := &Mesh{Indices16: []uint16{0, 1, 2}}
	data, format, count := m.IndexBytes()

	assert.Equal(t, gpu.IndexFormatUint16, format)
	assert.Equal(t, 3, count)
	assert.Len(t, data, 8)
}

func TestRegistry_Upload(t *testing.T) {
	be := gputest.NewBackend()
	r := NewRegistry()
	id := NewId()

	require.NoError(t, r.Upload(be, id, UVSphere(0.1, 2, 2)))

	gm, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, uint32(9), gm.VertexCount)
	assert.True(t, gm.BufferInfo.Indexed)
	assert.Equal(t, gpu.IndexFormatUint32, gm.BufferInfo.IndexFormat)
	assert.Equal(t, uint32(12), gm.BufferInfo.IndexCount)

	vs, ok := r.VertexSlice(id)
	require.True(t, ok)
	assert.Equal(t, gpu.Range{Start: 0, End: 9}, vs.Range)
	assert.True(t, vs.Buffer.Usage().Has(gpu.BufferUsageVertex))

	is, ok := r.IndexSlice(id)
	require.True(t, ok)
	assert.Equal(t, uint32(12), is.Range.Len())
	assert.True(t, is.Buffer.Usage().Has(gpu.BufferUsageIndex))
}

func TestRegistry_NonIndexedAndRemove(t *testing.T) {
	be := gputest.NewBackend()
	r := NewRegistry()
	id := NewId()
	tri := &Mesh{
		Topology:  gpu.PrimitiveTopologyTriangleList,
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	}

	require.NoError(t, r.Upload(be, id, tri))
	gm, _ := r.Get(id)
	assert.False(t, gm.BufferInfo.Indexed)
	_, ok := r.IndexSlice(id)
	assert.False(t, ok)

	r.Remove(id)
	assert.False(t, r.Has(id))
	assert.Empty(t, be.LiveBuffers())
}

func TestRegistry_UploadFailure(t *testing.T) {
	be := gputest.NewBackend()
	be.FailCreate = gpu.ErrDeviceLost
	r := NewRegistry()

	err := r.Upload(be, NewId(), UVSphere(1, 2, 2))
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.Equal(t, 0, r.Len())
}
