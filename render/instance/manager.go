package instance

import (
	"errors"
	"fmt"

	"github.com/gekko3d/swarm/render/gpu"
)

// ErrAllocation marks a failed instance buffer allocation. It is fatal for the frame.
var ErrAllocation = errors.New("instance: buffer allocation failed")

const bufferLabel = "instance data buffer"

// BufferHandle is the GPU copy of one entity's group. Length is the record
// count the buffer was allocated for.
type BufferHandle struct {
	Buffer gpu.Buffer
	Length int
}

// Targets is the render-side table of entities carrying instance groups.
type Targets interface {
	Len() int
	// Group returns the extracted group at slot i, false for empty or dead slots.
	Group(i int) (Group, bool)
	Handle(i int) *BufferHandle
	SetHandle(i int, h *BufferHandle)
}

type Stats struct {
	Created     int
	Overwritten int
	Reallocated int
	Released    int
}

// Manager keeps one vertex buffer per instanced entity in sync with its group.
type Manager struct {
	device  gpu.Device
	queue   gpu.Queue
	encoder *Encoder
	scratch []byte
	stats   Stats
}

func NewManager(device gpu.Device, queue gpu.Queue, encoder *Encoder) *Manager {
	if encoder == nil {
		encoder = NewEncoder(1, 0)
	}
	return &Manager{
		device:  device,
		queue:   queue,
		encoder: encoder,
	}
}

// Prepare syncs every live slot of t and returns what it did this frame.
// An allocation error aborts the pass: the frame cannot be drawn.
func (m *Manager) Prepare(t Targets) (Stats, error) {
	m.stats = Stats{}
	for i := 0; i < t.Len(); i++ {
		group, ok := t.Group(i)
		if !ok {
			continue
		}
		h, err := m.Sync(group, t.Handle(i))
		t.SetHandle(i, h)
		if err != nil {
			return m.stats, err
		}
	}
	return m.stats, nil
}

// Sync returns a handle whose contents equal group. The buffer is overwritten
// in place while its allocated length matches, and recreated otherwise. An
// empty group releases the handle and yields nil.
func (m *Manager) Sync(group Group, h *BufferHandle) (*BufferHandle, error) {
	if len(group) == 0 {
		m.Release(h)
		return nil, nil
	}

	m.scratch = m.encoder.Encode(m.scratch, group)
	data := m.scratch

	if h != nil && h.Length == len(group) && h.Buffer.Size() == uint64(len(data)) {
		if err := m.queue.WriteBuffer(h.Buffer, 0, data); err != nil {
			return h, fmt.Errorf("overwrite %d records: %w", len(group), err)
		}
		m.stats.Overwritten++
		return h, nil
	}

	if h != nil {
		h.Buffer.Release()
		m.stats.Reallocated++
	} else {
		m.stats.Created++
	}

	buf, err := m.device.CreateBufferInit(&gpu.BufferInitDescriptor{
		Label:    bufferLabel,
		Contents: data,
		Usage:    gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %d records (%d bytes): %w", ErrAllocation, len(group), len(data), err)
	}
	return &BufferHandle{Buffer: buf, Length: len(group)}, nil
}

// Release frees the buffer behind h. Nil handles are ignored.
func (m *Manager) Release(h *BufferHandle) {
	if h == nil || h.Buffer == nil {
		return
	}
	h.Buffer.Release()
	h.Buffer = nil
	m.stats.Released++
}

func (m *Manager) Stats() Stats {
	return m.stats
}
