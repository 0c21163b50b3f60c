package mesh

import (
	"fmt"

	"github.com/gekko3d/swarm/render/gpu"
)

// BufferInfo tells the draw how to walk a mesh's vertices.
type BufferInfo struct {
	Indexed     bool
	IndexFormat gpu.IndexFormat
	IndexCount  uint32
}

// GpuMesh is the render-side description of an uploaded mesh.
type GpuMesh struct {
	VertexCount uint32
	Topology    gpu.PrimitiveTopology
	Layout      Layout
	BufferInfo  BufferInfo
}

// Slice locates a mesh's elements inside a (possibly shared) GPU buffer.
type Slice struct {
	Buffer gpu.Buffer
	Range  gpu.Range
}

// Registry holds the GPU representation of every uploaded mesh and where its
// vertices and indices live.
type Registry struct {
	meshes  map[Id]*GpuMesh
	vertex  map[Id]Slice
	index   map[Id]Slice
	buffers map[Id][]gpu.Buffer
}

func NewRegistry() *Registry {
	return &Registry{
		meshes:  make(map[Id]*GpuMesh),
		vertex:  make(map[Id]Slice),
		index:   make(map[Id]Slice),
		buffers: make(map[Id][]gpu.Buffer),
	}
}

// Upload creates dedicated vertex and index buffers for m under id,
// replacing any previous upload.
func (r *Registry) Upload(device gpu.Device, id Id, m *Mesh) error {
	layout, err := m.Layout()
	if err != nil {
		return fmt.Errorf("upload mesh %s: %w", id, err)
	}

	vbuf, err := device.CreateBufferInit(&gpu.BufferInitDescriptor{
		Label:    "mesh vertex buffer " + string(id),
		Contents: m.VertexBytes(layout),
		Usage:    gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("upload mesh %s vertices: %w", id, err)
	}

	gm := &GpuMesh{
		VertexCount: uint32(m.VertexCount()),
		Topology:    m.Topology,
		Layout:      layout,
	}
	vertex := Slice{Buffer: vbuf, Range: gpu.Range{Start: 0, End: gm.VertexCount}}

	var index *Slice
	if m.Indexed() {
		data, format, count := m.IndexBytes()
		ibuf, err := device.CreateBufferInit(&gpu.BufferInitDescriptor{
			Label:    "mesh index buffer " + string(id),
			Contents: data,
			Usage:    gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
		})
		if err != nil {
			vbuf.Release()
			return fmt.Errorf("upload mesh %s indices: %w", id, err)
		}
		gm.BufferInfo = BufferInfo{Indexed: true, IndexFormat: format, IndexCount: uint32(count)}
		index = &Slice{Buffer: ibuf, Range: gpu.Range{Start: 0, End: uint32(count)}}
	}

	r.Remove(id)
	r.Insert(id, gm, vertex, index)
	if index != nil {
		r.buffers[id] = []gpu.Buffer{vbuf, index.Buffer}
	} else {
		r.buffers[id] = []gpu.Buffer{vbuf}
	}
	return nil
}

// Insert registers an already allocated mesh. Buffers inserted this way stay
// owned by the caller.
func (r *Registry) Insert(id Id, gm *GpuMesh, vertex Slice, index *Slice) {
	r.meshes[id] = gm
	r.vertex[id] = vertex
	if index != nil {
		r.index[id] = *index
	} else {
		delete(r.index, id)
	}
}

// Remove forgets id and releases buffers created by Upload.
func (r *Registry) Remove(id Id) {
	for _, b := range r.buffers[id] {
		b.Release()
	}
	delete(r.buffers, id)
	delete(r.meshes, id)
	delete(r.vertex, id)
	delete(r.index, id)
}

func (r *Registry) Has(id Id) bool {
	_, ok := r.meshes[id]
	return ok
}

func (r *Registry) Get(id Id) (*GpuMesh, bool) {
	gm, ok := r.meshes[id]
	return gm, ok
}

func (r *Registry) VertexSlice(id Id) (Slice, bool) {
	s, ok := r.vertex[id]
	return s, ok
}

func (r *Registry) IndexSlice(id Id) (Slice, bool) {
	s, ok := r.index[id]
	return s, ok
}

func (r *Registry) Len() int {
	return len(r.meshes)
}
