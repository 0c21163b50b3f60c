// Package phase builds the sorted transparent phase of each view and replays
// it into render passes.
package phase

import (
	"slices"
	"sync"

	"github.com/gekko3d/swarm/render"
	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gekko3d/swarm/render/pipeline"
)

// ExtraIndex is an optional per-item index for batched draws.
type ExtraIndex uint32

const ExtraIndexNone ExtraIndex = ^ExtraIndex(0)

// DrawItem is one draw in a view's transparent phase.
type DrawItem struct {
	Entity       render.Entity
	MainEntity   render.MainEntity
	Pipeline     pipeline.Id
	DrawFunction DrawFunctionId
	// Distance is the view-space z of the entity; smaller is farther away.
	Distance   float32
	BatchRange gpu.Range
	ExtraIndex ExtraIndex
}

// SortedRenderPhase holds the draw items of one view.
type SortedRenderPhase struct {
	items []DrawItem
}

func (p *SortedRenderPhase) Add(item DrawItem) {
	p.items = append(p.items, item)
}

// Sort orders items back to front. Items at equal distance keep insertion order.
func (p *SortedRenderPhase) Sort() {
	slices.SortStableFunc(p.items, func(a, b DrawItem) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
}

func (p *SortedRenderPhase) Items() []DrawItem {
	return p.items
}

func (p *SortedRenderPhase) Len() int {
	return len(p.items)
}

func (p *SortedRenderPhase) Clear() {
	p.items = p.items[:0]
}

// ViewSortedPhases maps each view to its phase. The map only changes between
// frames; during queueing each view writes its own phase.
type ViewSortedPhases struct {
	mu     sync.RWMutex
	phases map[render.Entity]*SortedRenderPhase
}

func NewViewSortedPhases() *ViewSortedPhases {
	return &ViewSortedPhases{phases: make(map[render.Entity]*SortedRenderPhase)}
}

// Retain makes sure exactly the given views have a phase, emptied for a new frame.
func (v *ViewSortedPhases) Retain(views []render.Entity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	keep := make(map[render.Entity]struct{}, len(views))
	for _, e := range views {
		keep[e] = struct{}{}
		if p, ok := v.phases[e]; ok {
			p.Clear()
		} else {
			v.phases[e] = &SortedRenderPhase{}
		}
	}
	for e := range v.phases {
		if _, ok := keep[e]; !ok {
			delete(v.phases, e)
		}
	}
}

func (v *ViewSortedPhases) Get(view render.Entity) (*SortedRenderPhase, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.phases[view]
	return p, ok
}

// SortAll sorts every phase.
func (v *ViewSortedPhases) SortAll() {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, p := range v.phases {
		p.Sort()
	}
}

func (v *ViewSortedPhases) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.phases)
}
