package view

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
)

// UniformSize is the size of the View struct in the shaders:
//
//	clip_from_world: mat4x4<f32>  -- 64
//	world_position:  vec4<f32>    -- 80
const UniformSize = 80

// EncodeUniform writes the view uniform for v into dst, which must hold UniformSize bytes.
func EncodeUniform(dst []byte, v *ExtractedView) {
	m := v.ClipFromWorld()
	for i, f := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(dst[64:], math.Float32bits(v.WorldPosition[0]))
	binary.LittleEndian.PutUint32(dst[68:], math.Float32bits(v.WorldPosition[1]))
	binary.LittleEndian.PutUint32(dst[72:], math.Float32bits(v.WorldPosition[2]))
	binary.LittleEndian.PutUint32(dst[76:], math.Float32bits(1))
}

type viewBinding struct {
	buffer gpu.Buffer
	group  gpu.BindGroup
	seen   bool
}

// Uniforms owns one uniform buffer and bind group per view.
type Uniforms struct {
	bindings map[render.Entity]*viewBinding
	scratch  [UniformSize]byte
}

func NewUniforms() *Uniforms {
	return &Uniforms{bindings: make(map[render.Entity]*viewBinding)}
}

// Prepare writes the uniform of every view, creating buffers for new views and
// releasing those of views that are gone.
func (u *Uniforms) Prepare(device gpu.Device, queue gpu.Queue, views []ExtractedView) error {
	for _, b := range u.bindings {
		b.seen = false
	}

	for i := range views {
		v := &views[i]
		EncodeUniform(u.scratch[:], v)

		b, ok := u.bindings[v.Entity]
		if !ok {
			buf, err := device.CreateBufferInit(&gpu.BufferInitDescriptor{
				Label:    "view uniform buffer",
				Contents: u.scratch[:],
				Usage:    gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("view %s uniform: %w", v.Entity, err)
			}
			group, err := device.CreateViewBindGroup("view bind group", buf)
			if err != nil {
				buf.Release()
				return fmt.Errorf("view %s bind group: %w", v.Entity, err)
			}
			b = &viewBinding{buffer: buf, group: group}
			u.bindings[v.Entity] = b
		} else if err := queue.WriteBuffer(b.buffer, 0, u.scratch[:]); err != nil {
			return fmt.Errorf("view %s uniform: %w", v.Entity, err)
		}
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

func (u *Uniforms) BindGroup(e render.Entity) (gpu.BindGroup, bool) {
	b, ok := u.bindings[e]
	if !ok {
		return nil, false
	}
	return b.group, true
}

func (u *Uniforms) Len() int {
	return len(u.bindings)
}

func (u *Uniforms) Release() {
	for e, b := range u.bindings {
		b.group.Release()
		b.buffer.Release()
		delete(u.bindings, e)
	}
}
