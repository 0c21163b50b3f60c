package render

import "fmt"

// Entity is a render-world entity: a slot index plus the generation of the
// slot, so a stale reference to a recycled slot never resolves.
type Entity struct {
	Index      uint32
	Generation uint32
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index, e.Generation)
}

// MainEntity is the id of the simulation entity a render entity was extracted from.
type MainEntity uint64
