package phase

import (
	"fmt"
	"sync"
)

// DrawFunctionKind enumerates the draw command sequences the renderer knows.
type DrawFunctionKind uint8

const (
	// DrawInstancedMesh sets the item pipeline, binds the view at group 0 and
	// draws the mesh once per instance record.
	DrawInstancedMesh DrawFunctionKind = iota + 1
)

func (k DrawFunctionKind) String() string {
	switch k {
	case DrawInstancedMesh:
		return "DrawInstancedMesh"
	}
	return fmt.Sprintf("DrawFunctionKind(%d)", uint8(k))
}

// DrawFunctionId indexes a phase's DrawFunctions table.
type DrawFunctionId uint32

// DrawFunctions is the per-phase registry of draw functions.
type DrawFunctions struct {
	mu    sync.RWMutex
	kinds []DrawFunctionKind
	ids   map[DrawFunctionKind]DrawFunctionId
}

func NewDrawFunctions() *DrawFunctions {
	return &DrawFunctions{ids: make(map[DrawFunctionKind]DrawFunctionId)}
}

// Add registers kind and returns its id. Adding a kind twice returns the first id.
func (d *DrawFunctions) Add(kind DrawFunctionKind) DrawFunctionId {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.ids[kind]; ok {
		return id
	}
	id := DrawFunctionId(len(d.kinds))
	d.kinds = append(d.kinds, kind)
	d.ids[kind] = id
	return id
}

func (d *DrawFunctions) Id(kind DrawFunctionKind) (DrawFunctionId, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ids[kind]
	return id, ok
}

func (d *DrawFunctions) Kind(id DrawFunctionId) (DrawFunctionKind, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.kinds) {
		return 0, false
	}
	return d.kinds[id], true
}
