package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/gekko3d/swarm/render/gpu"
	"github.com/google/uuid"
)

// Id identifies a mesh asset on both sides of extraction.
type Id string

func NewId() Id {
	return Id(uuid.NewString())
}

// Shader locations of the per-vertex attributes. Instance attributes start above these.
const (
	LocationPosition uint32 = 0
	LocationNormal   uint32 = 1
	LocationUV       uint32 = 2
)

// Mesh is CPU-side geometry. Normals and UVs are optional but, when present,
// must have one entry per position. At most one of Indices16/Indices32 is set.
type Mesh struct {
	Topology  gpu.PrimitiveTopology
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices16 []uint16
	Indices32 []uint32
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) Indexed() bool {
	return m.Indices16 != nil || m.Indices32 != nil
}

// Layout describes the interleaved per-vertex buffer of a mesh.
type Layout struct {
	gpu.VertexBufferLayout
	key string
}

// Key identifies layouts with identical memory layouts; equal keys mean equal layouts.
func (l Layout) Key() string {
	return l.key
}

// Attribute returns the attribute bound at a shader location.
func (l Layout) Attribute(location uint32) (gpu.VertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.ShaderLocation == location {
			return a, true
		}
	}
	return gpu.VertexAttribute{}, false
}

// NewLayout builds a per-vertex layout from attributes packed in the given order.
func NewLayout(attrs ...gpu.VertexAttribute) Layout {
	var b strings.Builder
	var stride uint64
	for _, a := range attrs {
		if end := a.Offset + a.Format.Size(); end > stride {
			stride = end
		}
		fmt.Fprintf(&b, "%d:%s@%d;", a.ShaderLocation, a.Format, a.Offset)
	}
	fmt.Fprintf(&b, "stride=%d", stride)
	return Layout{
		VertexBufferLayout: gpu.VertexBufferLayout{
			ArrayStride: stride,
			StepMode:    gpu.VertexStepModeVertex,
			Attributes:  attrs,
		},
		key: b.String(),
	}
}

// Layout validates the mesh and returns its vertex layout.
func (m *Mesh) Layout() (Layout, error) {
	n := len(m.Positions)
	if n == 0 {
		return Layout{}, fmt.Errorf("mesh: no positions")
	}
	if m.Normals != nil && len(m.Normals) != n {
		return Layout{}, fmt.Errorf("mesh: %d normals for %d positions", len(m.Normals), n)
	}
	if m.UVs != nil && len(m.UVs) != n {
		return Layout{}, fmt.Errorf("mesh: %d uvs for %d positions", len(m.UVs), n)
	}
	if m.Indices16 != nil && m.Indices32 != nil {
		return Layout{}, fmt.Errorf("mesh: both 16 and 32 bit indices set")
	}

	attrs := []gpu.VertexAttribute{{Format: gpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: LocationPosition}}
	offset := gpu.VertexFormatFloat32x3.Size()
	if m.Normals != nil {
		attrs = append(attrs, gpu.VertexAttribute{Format: gpu.VertexFormatFloat32x3, Offset: offset, ShaderLocation: LocationNormal})
		offset += gpu.VertexFormatFloat32x3.Size()
	}
	if m.UVs != nil {
		attrs = append(attrs, gpu.VertexAttribute{Format: gpu.VertexFormatFloat32x2, Offset: offset, ShaderLocation: LocationUV})
	}
	return NewLayout(attrs...), nil
}

// VertexBytes interleaves the vertex attributes following layout.
func (m *Mesh) VertexBytes(layout Layout) []byte {
	stride := int(layout.ArrayStride)
	out := make([]byte, stride*len(m.Positions))
	put := func(dst []byte, vals ...float32) {
		for i, v := range vals {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
		}
	}
	for i, p := range m.Positions {
		v := out[i*stride:]
		put(v, p[0], p[1], p[2])
		if a, ok := layout.Attribute(LocationNormal); ok {
			n := m.Normals[i]
			put(v[a.Offset:], n[0], n[1], n[2])
		}
		if a, ok := layout.Attribute(LocationUV); ok {
			uv := m.UVs[i]
			put(v[a.Offset:], uv[0], uv[1])
		}
	}
	return out
}

// IndexBytes returns the packed index buffer, its format and index count.
func (m *Mesh) IndexBytes() ([]byte, gpu.IndexFormat, int) {
	if m.Indices32 != nil {
		out := make([]byte, 4*len(m.Indices32))
		for i, idx := range m.Indices32 {
			binary.LittleEndian.PutUint32(out[i*4:], idx)
		}
		return out, gpu.IndexFormatUint32, len(m.Indices32)
	}
	// wgpu requires buffer sizes in multiples of 4.
	out := make([]byte, (2*len(m.Indices16)+3)&^3)
	for i, idx := range m.Indices16 {
		binary.LittleEndian.PutUint16(out[i*2:], idx)
	}
	return out, gpu.IndexFormatUint16, len(m.Indices16)
}
