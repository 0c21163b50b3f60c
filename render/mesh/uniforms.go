package mesh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// TransformUniformSize is the size of the Mesh struct in the shaders:
//
//	world_from_local: mat4x4<f32>  -- 64
const TransformUniformSize = 64

// Transform places the mesh of one render entity in the world.
type Transform struct {
	Entity         render.Entity
	WorldFromLocal mgl32.Mat4
}

// EncodeTransform writes m into dst, which must hold TransformUniformSize bytes.
func EncodeTransform(dst []byte, m mgl32.Mat4) {
	for i, f := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

type transformBinding struct {
	buffer gpu.Buffer
	group  gpu.BindGroup
	last   mgl32.Mat4
	seen   bool
}

// TransformUniforms owns one uniform buffer and bind group per drawn entity.
type TransformUniforms struct {
	bindings map[render.Entity]*transformBinding
	scratch  [TransformUniformSize]byte
}

func NewTransformUniforms() *TransformUniforms {
	return &TransformUniforms{bindings: make(map[render.Entity]*transformBinding)}
}

// Prepare writes the transform of every entity whose matrix changed, creating
// buffers for new entities and releasing those of entities that are gone.
func (u *TransformUniforms) Prepare(device gpu.Device, queue gpu.Queue, transforms []Transform) error {
	for _, b := range u.bindings {
		b.seen = false
	}

	for _, t := range transforms {
		b, ok := u.bindings[t.Entity]
		if ok && b.last == t.WorldFromLocal {
			b.seen = true
			continue
		}
		EncodeTransform(u.scratch[:], t.WorldFromLocal)

		if !ok {
			buf, err := device.CreateBufferInit(&gpu.BufferInitDescriptor{
				Label:    "mesh transform buffer",
				Contents: u.scratch[:],
				Usage:    gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("entity %s transform: %w", t.Entity, err)
			}
			group, err := device.CreateMeshBindGroup("mesh bind group", buf)
			if err != nil {
				buf.Release()
				return fmt.Errorf("entity %s bind group: %w", t.Entity, err)
			}
			b = &transformBinding{buffer: buf, group: group}
			u.bindings[t.Entity] = b
		} else if err := queue.WriteBuffer(b.buffer, 0, u.scratch[:]); err != nil {
			return fmt.Errorf("entity %s transform: %w", t.Entity, err)
		}
		b.last = t.WorldFromLocal
		b.seen = true
	}

	for e, b := range u.bindings {
		if !b.seen {
			b.group.Release()
			b.buffer.Release()
			delete(u.bindings, e)
		}
	}
	return nil
}

func (u *TransformUniforms) BindGroup(e render.Entity) (gpu.BindGroup, bool) {
	b, ok := u.bindings[e]
	if !ok {
		return nil, false
	}
	return b.group, true
}

func (u *TransformUniforms) Len() int {
	return len(u.bindings)
}

func (u *TransformUniforms) Release() {
	for e, b := range u.bindings {
		b.group.Release()
		b.buffer.Release()
		delete(u.bindings, e)
	}
}
